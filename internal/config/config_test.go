package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":4000", cfg.Server.Addr)
	assert.Equal(t, "downloads", cfg.OutputDir)
	assert.True(t, cfg.Browser.Headless)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "lotscrape.yaml", `
server:
  addr: ":8080"
output_dir: /var/lib/lotscrape
browser:
  headless: false
  wait_timeout: 15s
  extra_flags:
    start-maximized: ""
sites:
  dobnow:
    bin_url: "https://a810-dobnow.nyc.gov/publish/#!/bin/{bin}"
telemetry:
  otlp_endpoint: "http://collector:4318/v1/traces"
`)
	writeFile(t, dir, "lotscrape.local.yaml", `
server:
  addr: ":9090"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/var/lib/lotscrape", cfg.OutputDir)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Browser.WaitTimeout)
	assert.Equal(t, 1920, cfg.Browser.Width, "unset values keep defaults")
	assert.Equal(t, map[string]string{"start-maximized": ""}, cfg.Browser.ExtraFlags)
	assert.Equal(t, "https://a810-dobnow.nyc.gov/publish/#!/bin/{bin}", cfg.Sites.DOBNOW.BinURL)
	assert.NotEmpty(t, cfg.Sites.BISWEB.LookupURL)
	assert.Equal(t, "http://collector:4318/v1/traces", cfg.Telemetry.OTLPEndpoint)
}

func TestLoadBadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "lotscrape.yaml", "server: [")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOTSCRAPE_ADDR", ":5000")
	t.Setenv("LOTSCRAPE_OUTPUT_DIR", "/tmp/exports")
	t.Setenv("LOTSCRAPE_LOG_LEVEL", "debug")
	t.Setenv("LOTSCRAPE_HEADLESS", "false")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/exports", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.Browser.Headless)

	t.Setenv("LOTSCRAPE_HEADLESS", "maybe")
	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestOverride(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Override(Config{
		Server:   ServerConfig{Addr: ":7000"},
		LogLevel: "warn",
	}))
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "downloads", cfg.OutputDir, "zero values do not override")
	assert.True(t, cfg.Browser.Headless)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.LogLevel = "loud"
	cfg.Browser.WaitTimeout = -time.Second
	cfg.Sites.DOBNOW.BinURL = "ftp://example/{bin}"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.addr")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "timeouts")
	assert.Contains(t, err.Error(), "sites.dobnow.bin_url")
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "conf/lotscrape.local.yaml", localPath("conf/lotscrape.yaml"))
	assert.Equal(t, "lotscrape.local", localPath("lotscrape"))
}
