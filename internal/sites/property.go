package sites

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/types"

	"github.com/charmbracelet/log"
	"golang.org/x/net/html"
)

const propertyServlet = "https://a810-bisweb.nyc.gov/bisweb/PropertyProfileOverviewServlet"

// Property reads the BIS property profile overview
type Property struct {
	settle time.Duration
}

// NewProperty returns the BIS property profile adapter
func NewProperty() *Property {
	return &Property{settle: 2 * time.Second}
}

func (p *Property) Name() string { return types.SiteBISWEBProperty }
func (p *Property) Tag() string  { return "BISWEB_PROPERTY_" }

func (p *Property) Check(key types.Key) error {
	switch key.Kind {
	case types.KeyURL, types.KeyBBL, types.KeyBIN:
		return nil
	}
	return unsupported(p.Name(), key)
}

// ProfileURL returns the servlet address for a BIN or BBL key
func ProfileURL(key types.Key) (string, error) {
	q := url.Values{}
	switch key.Kind {
	case types.KeyBIN:
		q.Set("bin", key.BIN)
	case types.KeyBBL:
		q.Set("boro", strconv.Itoa(key.BBL.Borough.Code()))
		q.Set("block", strconv.Itoa(key.BBL.Block))
		q.Set("lot", strconv.Itoa(key.BBL.Lot))
	default:
		return "", unsupported(types.SiteBISWEBProperty, key)
	}
	return propertyServlet + "?" + q.Encode(), nil
}

func (p *Property) ResolveTarget(page browser.Page, key types.Key) error {
	if key.Kind == types.KeyURL {
		return page.Navigate(key.URL)
	}
	u, err := ProfileURL(key)
	if err != nil {
		return err
	}
	return page.Navigate(u)
}

func (p *Property) WaitReady(page browser.Page, _ types.Key) error {
	if err := page.WaitFor(browser.DocumentComplete(), 10*time.Second); err != nil {
		return err
	}
	if err := page.Pause(p.settle); err != nil {
		return err
	}
	if err := page.WaitFor(browser.Present(propertyRow("Landmark Status:")), 0); err != nil {
		log.Warn("Landmark row did not appear, reading page anyway", "site", p.Name(), "error", err)
	}
	return nil
}

func (p *Property) ExtractFields(doc *dom.Document) (types.Record, error) {
	fields := []dom.Field{
		{
			Name:       "Landmark Status",
			Strategies: []dom.Strategy{propertyCell("Landmark Status:")},
			OmitEmpty:  true,
		},
		{
			Name:       "Additional BINs",
			Strategies: []dom.Strategy{propertyCell("Additional BINs for Building:")},
			Parse:      parseBINs,
		},
	}

	rec, errs := dom.Extract(doc, fields)
	logFieldErrors(p.Name(), errs)
	return rec, nil
}

func propertyRow(label string) dom.Query {
	return dom.XPathf("//tr[td[@class='content' and contains(., '%s')]]", label)
}

// propertyCell finds the value cell, the second td.content of the label's row
func propertyCell(label string) dom.Strategy {
	return dom.StrategyFunc(func(doc *dom.Document) (*html.Node, bool) {
		for _, row := range propertyRow(label).FindAll(doc) {
			cells := dom.CSS("td.content").FindIn(row)
			if len(cells) > 1 {
				return cells[1], true
			}
		}
		return nil, false
	})
}

func parseBINs(s string) (any, error) {
	s = dom.Collapse(s)
	if s == "" || strings.EqualFold(s, "NONE") {
		return "NONE", nil
	}
	return s, nil
}
