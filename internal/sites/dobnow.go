package sites

import (
	"fmt"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/types"

	"github.com/charmbracelet/log"
)

const floodLabel = "Special Flood Hazard Area Check"

// Flood hazard value, from the exact grid layout down to any bound div
// after the label.
var floodStrategies = []dom.Strategy{
	dom.XPathf("//div[contains(@class, 'col-xs-8') and contains(@class, 'col-sm-6') and contains(@class, 'col-md-4') and contains(@class, 'col-lg-4') and contains(@class, 'top-pad-5')]"+
		"//strong[contains(text(), '%s')]/ancestor::div[contains(@class, 'col-xs-8')]"+
		"/following-sibling::div[contains(@class, 'col-xs-4') and contains(@class, 'col-sm-6') and contains(@class, 'col-md-8') and contains(@class, 'col-lg-8') and contains(@class, 'top-pad-5') and contains(@class, 'ng-binding')]", floodLabel),
	dom.XPathf("//strong[contains(text(), '%s')]/ancestor::div[contains(@class, 'row') or contains(@class, 'col-')]//div[contains(@class, 'ng-binding') and contains(@class, 'top-pad-5')]", floodLabel),
	dom.XPathf("//strong[contains(text(), '%s')]/ancestor::div[1]/following-sibling::div[contains(@class, 'ng-binding')]", floodLabel),
}

// DOBNOW reads the flood hazard check from a DOB NOW property page
type DOBNOW struct {
	binURL  string
	timeout time.Duration
	settle  time.Duration
}

// NewDOBNOW returns the DOB NOW adapter. binURL is the {bin} template for
// BIN targets; without it only URLs are accepted.
func NewDOBNOW(binURL string) *DOBNOW {
	return &DOBNOW{binURL: binURL, timeout: 20 * time.Second, settle: time.Second}
}

func (d *DOBNOW) Name() string { return types.SiteDOBNOW }
func (d *DOBNOW) Tag() string  { return "DOBNOW_" }

func (d *DOBNOW) Check(key types.Key) error {
	switch key.Kind {
	case types.KeyURL:
		return nil
	case types.KeyBIN:
		if d.binURL == "" {
			return fmt.Errorf("%w: %w: set sites.dobnow.bin_url to scrape DOB NOW by BIN", types.ErrInvalidRequest, ErrNoTemplate)
		}
		return nil
	}
	return unsupported(d.Name(), key)
}

func (d *DOBNOW) ResolveTarget(page browser.Page, key types.Key) error {
	if err := d.Check(key); err != nil {
		return err
	}
	if key.Kind == types.KeyBIN {
		return page.Navigate(expand(d.binURL, key))
	}
	return page.Navigate(key.URL)
}

// WaitReady waits for the Angular app to bind its data
func (d *DOBNOW) WaitReady(page browser.Page, _ types.Key) error {
	if err := page.WaitFor(browser.Present(dom.CSS("body")), d.timeout); err != nil {
		return err
	}
	if err := page.Pause(3 * d.settle); err != nil {
		return err
	}
	if err := page.WaitFor(browser.Present(dom.CSS(".ng-binding, [ng-binding]")), d.timeout); err != nil {
		log.Warn("No bound content yet, continuing", "site", d.Name(), "error", err)
	}
	return page.Pause(2 * d.settle)
}

func (d *DOBNOW) ExtractFields(doc *dom.Document) (types.Record, error) {
	rec, errs := dom.Extract(doc, []dom.Field{{
		Name:       floodLabel,
		Strategies: floodStrategies,
		OmitEmpty:  true,
	}})
	logFieldErrors(d.Name(), errs)
	return rec, nil
}
