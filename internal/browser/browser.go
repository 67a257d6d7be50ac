// Package browser drives a headless Chrome tab through chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lotscrape/internal/dom"

	"github.com/charmbracelet/log"
	"github.com/chromedp/chromedp"
)

// ErrClose is wrapped by failures to shut a session down
var ErrClose = errors.New("failed to close browser")

// Page is the set of tab operations site adapters use
type Page interface {
	Navigate(url string) error
	WaitFor(cond Condition, timeout time.Duration) error
	Click(q dom.Query) error
	Fill(q dom.Query, text string) error
	Pause(d time.Duration) error
	HTML() (string, error)
}

// Launcher starts browser sessions
type Launcher struct {
	cfg Config
}

// NewLauncher creates a launcher for cfg
func NewLauncher(cfg Config) *Launcher {
	return &Launcher{cfg: cfg}
}

// Session is one Chrome process with a single tab
type Session struct {
	ctx         context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc
	waitTimeout time.Duration
	closed      bool
	startedAt   time.Time
}

// Open launches Chrome and waits for the first tab to attach. Cancelling
// ctx tears the browser down.
func (l *Launcher) Open(ctx context.Context) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, l.cfg.AllocatorOptions()...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(log.Debugf))

	s := &Session{
		ctx:         tabCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
		waitTimeout: l.cfg.WaitTimeout,
		startedAt:   time.Now(),
	}
	if s.waitTimeout <= 0 {
		s.waitTimeout = DefaultConfig().WaitTimeout
	}

	// The first Run starts the browser. A deadline on its context would
	// also bound the browser's lifetime, so the startup limit is enforced
	// from the outside.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(tabCtx) }()

	var timeout <-chan time.Time
	if l.cfg.StartupTimeout > 0 {
		timer := time.NewTimer(l.cfg.StartupTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-started:
		if err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-timeout:
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: timed out after %s", l.cfg.StartupTimeout)
	}

	log.Debug("Browser started", "headless", l.cfg.Headless, "took", time.Since(s.startedAt).Round(time.Millisecond))
	return s, nil
}

// Navigate loads url in the tab
func (s *Session) Navigate(url string) error {
	log.Debug("Navigating", "url", url)
	ctx, cancel := context.WithTimeout(s.ctx, 3*s.waitTimeout)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// WaitFor blocks until cond holds or timeout passes. A zero timeout uses
// the configured wait timeout.
func (s *Session) WaitFor(cond Condition, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.waitTimeout
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	if err := chromedp.Run(ctx, cond.actions(timeout)...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %s waiting for %s", timeout, cond)
		}
		return fmt.Errorf("waiting for %s: %w", cond, err)
	}
	return nil
}

// Click waits for the element to be clickable and clicks it
func (s *Session) Click(q dom.Query) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.waitTimeout)
	defer cancel()

	opt := queryOption(q)
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(q.Expr, opt),
		chromedp.WaitEnabled(q.Expr, opt),
		chromedp.Click(q.Expr, opt, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", q, err)
	}
	return nil
}

// Fill clears an input and types text into it
func (s *Session) Fill(q dom.Query, text string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.waitTimeout)
	defer cancel()

	opt := queryOption(q)
	err := chromedp.Run(ctx,
		chromedp.WaitVisible(q.Expr, opt),
		chromedp.Clear(q.Expr, opt),
		chromedp.SendKeys(q.Expr, text, opt),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", q, err)
	}
	return nil
}

// Pause sleeps inside the tab context so a cancelled request stops early
func (s *Session) Pause(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return chromedp.Run(s.ctx, chromedp.Sleep(d))
}

// HTML returns the current serialized document
func (s *Session) HTML() (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, s.waitTimeout)
	defer cancel()

	var out string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return out, nil
}

// Close shuts the tab and the browser process. It is safe to call twice.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := chromedp.Cancel(s.ctx)
	s.cancelTab()
	s.cancelAlloc()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrClose, err)
	}
	log.Debug("Browser closed", "open_for", time.Since(s.startedAt).Round(time.Millisecond))
	return nil
}

func queryOption(q dom.Query) chromedp.QueryOption {
	if q.Kind == dom.KindXPath {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
