package browser

import (
	"time"

	"github.com/chromedp/chromedp"
)

// Config controls how Chrome is launched and how long pages are waited on
type Config struct {
	Headless       bool              `yaml:"headless"`
	NoSandbox      bool              `yaml:"no_sandbox"`
	DisableDevShm  bool              `yaml:"disable_dev_shm"`
	DisableGPU     bool              `yaml:"disable_gpu"`
	Width          int               `yaml:"width"`
	Height         int               `yaml:"height"`
	ExecPath       string            `yaml:"exec_path"`
	UserAgent      string            `yaml:"user_agent"`
	WaitTimeout    time.Duration     `yaml:"wait_timeout"`
	StartupTimeout time.Duration     `yaml:"startup_timeout"`
	ExtraFlags     map[string]string `yaml:"extra_flags"`
}

// DefaultConfig returns a headless, container friendly configuration
func DefaultConfig() Config {
	return Config{
		Headless:       true,
		NoSandbox:      true,
		DisableDevShm:  true,
		DisableGPU:     true,
		Width:          1920,
		Height:         1080,
		WaitTimeout:    10 * time.Second,
		StartupTimeout: 30 * time.Second,
	}
}

// Flags returns the Chrome command line switches for this configuration.
// An empty ExtraFlags value becomes a bare switch.
func (c Config) Flags() map[string]any {
	flags := map[string]any{
		"headless":              c.Headless,
		"no-sandbox":            c.NoSandbox,
		"disable-dev-shm-usage": c.DisableDevShm,
		"disable-gpu":           c.DisableGPU,
	}
	for name, value := range c.ExtraFlags {
		if value == "" {
			flags[name] = true
			continue
		}
		flags[name] = value
	}
	return flags
}

// AllocatorOptions builds the exec allocator options on top of chromedp's
// defaults
func (c Config) AllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range c.Flags() {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if c.Width > 0 && c.Height > 0 {
		opts = append(opts, chromedp.WindowSize(c.Width, c.Height))
	}
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	if c.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.UserAgent))
	}
	return opts
}
