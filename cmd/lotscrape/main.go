package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lotscrape/internal/config"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/log"
)

// Globals are the flags shared by every command
type Globals struct {
	Config   string `help:"Path to configuration file" default:"lotscrape.yaml" type:"path" short:"c"`
	LogLevel string `help:"Log level: debug, info, warn or error"`
	Headed   bool   `help:"Show the browser window instead of running headless"`
}

// CLI flags structure
type CLI struct {
	Globals

	Serve  ServeCmd  `cmd:"" help:"Run the HTTP API"`
	Scrape ScrapeCmd `cmd:"" help:"Scrape one lot and write a CSV export"`
}

// load resolves the configuration and sets up logging
func (g *Globals) load() (config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Override(config.Config{LogLevel: g.LogLevel}); err != nil {
		return cfg, err
	}
	// mergo never overrides with a zero value, so the headed switch is
	// applied directly
	if g.Headed {
		cfg.Browser.Headless = false
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)
	log.SetReportTimestamp(true)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	var cli CLI

	// Parse command line flags using kong
	ctx := kong.Parse(&cli,
		kong.Name("lotscrape"),
		kong.Description("Scrape NYC tax lot data from HPD Online, BIS and DOB NOW."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli.Globals); err != nil {
		log.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
