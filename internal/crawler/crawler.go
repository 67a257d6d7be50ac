package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/sites"
	"lotscrape/internal/types"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("lotscrape/internal/crawler")

// Session is an open browser tab
type Session interface {
	browser.Page
	Close() error
}

// Opener starts a browser session for one adapter run
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// BrowserOpener opens real Chrome sessions through l
func BrowserOpener(l *browser.Launcher) Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) {
		s, err := l.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Scrape runs one adapter against one key: open a session, resolve the
// target, wait for the page, snapshot it and extract the fields. The session
// is closed on every path; a failed close is logged and does not change the
// result.
func Scrape(ctx context.Context, opener Opener, adapter sites.Adapter, key types.Key) (rec types.Record, err error) {
	ctx, span := tracer.Start(ctx, "scrape "+adapter.Name(), trace.WithAttributes(
		attribute.String("site", adapter.Name()),
		attribute.String("target.kind", key.Kind.String()),
		attribute.String("target", key.String()),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := log.With("site", adapter.Name())
	start := time.Now()

	session, err := opener.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: open browser: %w", adapter.Name(), err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Warn("Failed to close browser", "error", cerr)
		}
	}()

	stages := []struct {
		name string
		run  func() error
	}{
		{"resolve target", func() error { return adapter.ResolveTarget(session, key) }},
		{"wait for page", func() error { return adapter.WaitReady(session, key) }},
	}
	for _, st := range stages {
		_, stageSpan := tracer.Start(ctx, st.name)
		err := st.run()
		stageSpan.End()
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", adapter.Name(), st.name, err)
		}
	}

	page, err := session.HTML()
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot: %w", adapter.Name(), err)
	}
	doc, err := dom.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%s: snapshot: %w", adapter.Name(), err)
	}

	rec, err = adapter.ExtractFields(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: extract: %w", adapter.Name(), err)
	}

	logger.Info("Scraped", "target", key, "fields", len(rec), "took", time.Since(start).Round(time.Millisecond))
	return rec, nil
}

// Observer is told when each site starts and finishes
type Observer interface {
	SiteStarted(site string)
	SiteFinished(site string, err error)
}

// Option configures a Crawler
type Option func(*Crawler)

// WithObserver reports per-site progress to o
func WithObserver(o Observer) Option {
	return func(c *Crawler) { c.observers = append(c.observers, o) }
}

// Crawler runs the adapters a request names, one after another, and merges
// their records
type Crawler struct {
	opener    Opener
	adapters  map[string]sites.Adapter
	order     []string
	observers []Observer
}

// New creates a Crawler. Adapters run in the order given.
func New(opener Opener, adapters []sites.Adapter, opts ...Option) *Crawler {
	c := &Crawler{
		opener:   opener,
		adapters: make(map[string]sites.Adapter, len(adapters)),
	}
	for _, a := range adapters {
		c.adapters[a.Name()] = a
		c.order = append(c.order, a.Name())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Job is one validated adapter run
type Job struct {
	Adapter sites.Adapter
	Key     types.Key
}

// Result is the merged output of a request
type Result struct {
	Record types.Record
	// Sources lists the sites that succeeded, in run order
	Sources []string
	// Failures holds the error of every site that failed
	Failures map[string]error
}

// Plan validates req and returns the jobs to run in adapter order. No
// browser work happens here.
func (c *Crawler) Plan(req types.ScrapeRequest) ([]Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	requested := make(map[string]types.Target)
	for _, src := range req.Sources() {
		requested[src.Site] = src.Target
	}
	if len(requested) == 0 {
		return nil, types.ErrNoSources
	}

	var jobs []Job
	for _, name := range c.order {
		target, ok := requested[name]
		if !ok {
			continue
		}
		delete(requested, name)

		key, err := target.Key()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		adapter := c.adapters[name]
		if err := adapter.Check(key); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		jobs = append(jobs, Job{Adapter: adapter, Key: key})
	}

	if len(requested) > 0 {
		names := make([]string, 0, len(requested))
		for name := range requested {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, types.Invalid(names[0], "site is not enabled")
	}
	return jobs, nil
}

// Run scrapes every site req names. With a single site its error is
// returned as is. With several, failed sites are recorded in
// Result.Failures and the run fails only when no site succeeded.
func (c *Crawler) Run(ctx context.Context, req types.ScrapeRequest) (*Result, error) {
	jobs, err := c.Plan(req)
	if err != nil {
		return nil, err
	}

	res := &Result{Record: types.Record{}, Failures: map[string]error{}}
	var errs []error

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := job.Adapter.Name()
		c.started(name)

		rec, err := Scrape(ctx, c.opener, job.Adapter, job.Key)
		if err == nil {
			err = res.Record.Merge(rec.Prefixed(job.Adapter.Tag()))
		}
		c.finished(name, err)

		if err != nil {
			if len(jobs) == 1 {
				return nil, err
			}
			log.Error("Source failed, continuing", "site", name, "error", err)
			res.Failures[name] = err
			errs = append(errs, err)
			continue
		}
		res.Sources = append(res.Sources, name)
	}

	if len(res.Sources) == 0 {
		return nil, errors.Join(errs...)
	}
	return res, nil
}

func (c *Crawler) started(site string) {
	for _, o := range c.observers {
		o.SiteStarted(site)
	}
}

func (c *Crawler) finished(site string, err error) {
	for _, o := range c.observers {
		o.SiteFinished(site, err)
	}
}
