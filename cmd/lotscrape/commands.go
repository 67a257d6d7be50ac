package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/config"
	"lotscrape/internal/crawler"
	"lotscrape/internal/progress"
	"lotscrape/internal/server"
	"lotscrape/internal/sites"
	"lotscrape/internal/telemetry"
	"lotscrape/internal/types"
	"lotscrape/internal/writer"

	"github.com/charmbracelet/log"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	serviceName     = "lotscrape"
	shutdownTimeout = 30 * time.Second
)

// ServeCmd runs the HTTP API
type ServeCmd struct {
	Addr      string `help:"Listen address (default :4000)"`
	OutputDir string `help:"Directory for CSV exports" type:"path"`
}

func (s *ServeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Override(config.Config{
		Server:    config.ServerConfig{Addr: s.Addr},
		OutputDir: s.OutputDir,
	}); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer flush(shutdown)

	exports, err := writer.New(cfg.OutputDir)
	if err != nil {
		return err
	}
	c := crawler.New(crawler.BrowserOpener(browser.NewLauncher(cfg.Browser)), sites.All(cfg.Sites))

	log.Info("Starting server", "addr", cfg.Server.Addr, "output_dir", exports.Dir(), "headless", cfg.Browser.Headless)
	return server.New(c, exports).ListenAndServe(ctx, cfg.Server.Addr, shutdownTimeout)
}

// TargetFlags identify one site's page. Give one of url, the
// borough/block/lot triple, id or bin.
type TargetFlags struct {
	URL        string `help:"Page URL"`
	Borough    string `help:"Borough name"`
	Block      int    `help:"Tax block"`
	Lot        int    `help:"Tax lot"`
	BuildingID int    `name:"id" help:"HPD building id"`
	BIN        string `name:"bin" help:"Building identification number"`
}

func (t TargetFlags) target() *types.Target {
	target := types.Target{
		URL:        t.URL,
		Borough:    t.Borough,
		Block:      types.Number(t.Block),
		Lot:        types.Number(t.Lot),
		BuildingID: types.Number(t.BuildingID),
		BIN:        t.BIN,
	}
	if target.IsZero() {
		return nil
	}
	return &target
}

// ScrapeCmd runs one aggregated scrape from the command line
type ScrapeCmd struct {
	HPD      TargetFlags `embed:"" prefix:"hpd-"`
	BISWEB   TargetFlags `embed:"" prefix:"bisweb-"`
	Property TargetFlags `embed:"" prefix:"property-"`
	DOBNOW   TargetFlags `embed:"" prefix:"dobnow-"`

	OutputDir string `help:"Directory for CSV exports" type:"path"`
	JSON      bool   `help:"Print the record as JSON instead of a table"`
}

func (s *ScrapeCmd) request() types.ScrapeRequest {
	return types.ScrapeRequest{
		HPD:            s.HPD.target(),
		BISWEB:         s.BISWEB.target(),
		BISWEBProperty: s.Property.target(),
		DOBNOW:         s.DOBNOW.target(),
	}
}

func (s *ScrapeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if err := cfg.Override(config.Config{OutputDir: s.OutputDir}); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	shutdown, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer flush(shutdown)

	req := s.request()
	opener := crawler.BrowserOpener(browser.NewLauncher(cfg.Browser))
	adapters := sites.All(cfg.Sites)

	// validate before anything is drawn or launched
	jobs, err := crawler.New(opener, adapters).Plan(req)
	if err != nil {
		return err
	}
	labels := make(map[string]string, len(jobs))
	for _, job := range jobs {
		labels[job.Adapter.Name()] = job.Key.String()
	}

	tracker := progress.New(os.Stderr, len(jobs), labels)
	res, err := crawler.New(opener, adapters, crawler.WithObserver(tracker)).Run(ctx, req)
	if err != nil {
		return err
	}

	exports, err := writer.New(cfg.OutputDir)
	if err != nil {
		return err
	}
	artifact, err := exports.Write(res.Record)
	if err != nil {
		return err
	}

	if s.JSON {
		err = printJSON(os.Stdout, res, artifact)
	} else {
		printTable(os.Stdout, res)
	}
	if err != nil {
		return err
	}
	log.Info("Export written", "path", artifact.Path, "sources", res.Sources, "failed", len(res.Failures))
	return nil
}

func printJSON(w io.Writer, res *crawler.Result, artifact writer.Artifact) error {
	failed := make(map[string]string, len(res.Failures))
	for site, err := range res.Failures {
		failed[site] = err.Error()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"data":           res.Record,
		"file":           artifact.Path,
		"failed_sources": failed,
	})
}

func printTable(w io.Writer, res *crawler.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, key := range res.Record.Keys() {
		t.AppendRow(table.Row{key, res.Record.Format(key)})
	}

	if len(res.Failures) > 0 {
		failed := make([]string, 0, len(res.Failures))
		for site := range res.Failures {
			failed = append(failed, site)
		}
		sort.Strings(failed)
		t.AppendSeparator()
		for _, site := range failed {
			t.AppendRow(table.Row{site + " (failed)", res.Failures[site].Error()})
		}
	}
	t.Render()
}

func flush(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn("Failed to flush traces", "error", err)
	}
}
