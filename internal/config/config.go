// Package config loads lotscrape settings from a YAML file, an optional
// local override file, the environment and command line flags, in that
// order of precedence from lowest to highest.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"lotscrape/internal/browser"
	"lotscrape/internal/sites"
	"lotscrape/internal/telemetry"

	"dario.cat/mergo"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when none is given
const DefaultPath = "lotscrape.yaml"

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the full application configuration
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	OutputDir string           `yaml:"output_dir"`
	LogLevel  string           `yaml:"log_level"`
	Browser   browser.Config   `yaml:"browser"`
	Sites     sites.Config     `yaml:"sites"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server:    ServerConfig{Addr: ":4000"},
		OutputDir: "downloads",
		LogLevel:  "info",
		Browser:   browser.DefaultConfig(),
		Sites:     sites.DefaultConfig(),
	}
}

// Load reads path over the defaults, then <name>.local.<ext> next to it,
// then LOTSCRAPE_* environment variables. Missing files are not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	if err := decodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	if local := localPath(path); local != path {
		if err := decodeFile(local, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Override merges every non-zero field of o into c
func (c *Config) Override(o Config) error {
	if err := mergo.Merge(c, o, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge config overrides: %w", err)
	}
	return nil
}

// Validate checks values that would only fail later at runtime
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Browser.WaitTimeout < 0 || c.Browser.StartupTimeout < 0 {
		errs = append(errs, errors.New("browser timeouts must not be negative"))
	}
	if c.Browser.Width < 0 || c.Browser.Height < 0 {
		errs = append(errs, errors.New("browser window size must not be negative"))
	}
	for name, tmpl := range map[string]string{
		"sites.bisweb.lookup_url": c.Sites.BISWEB.LookupURL,
		"sites.dobnow.bin_url":    c.Sites.DOBNOW.BinURL,
	} {
		if tmpl != "" && !strings.HasPrefix(tmpl, "http://") && !strings.HasPrefix(tmpl, "https://") {
			errs = append(errs, fmt.Errorf("%s must be an http(s) URL template", name))
		}
	}
	return errors.Join(errs...)
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	log.Debug("Loaded config", "path", path)
	return nil
}

// localPath turns config.yaml into config.local.yaml
func localPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".local" + ext
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("LOTSCRAPE_ADDR"); ok && v != "" {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("LOTSCRAPE_OUTPUT_DIR"); ok && v != "" {
		cfg.OutputDir = v
	}
	if v, ok := lookup("LOTSCRAPE_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup("LOTSCRAPE_HEADLESS"); ok && v != "" {
		headless, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOTSCRAPE_HEADLESS: %w", err)
		}
		cfg.Browser.Headless = headless
	}
	return nil
}
