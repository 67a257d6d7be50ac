package sites

import (
	"fmt"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/types"
)

const (
	hpdHomeURL     = "https://hpdonline.nyc.gov/hpdonline/"
	hpdBuildingURL = "https://hpdonline.nyc.gov/hpdonline/building/%d/overview"
)

var (
	hpdBBLTab       = dom.XPath("//span[contains(text(), 'Borough / Block / Lot')]")
	hpdBoroDropdown = dom.CSS("#dashboardBuildingBoroDesk")
	hpdBlockInput   = dom.XPath("//input[@aria-label='Enter Block #']")
	hpdLotInput     = dom.XPath("//input[@aria-label='Enter Lot #']")
	hpdSearchButton = dom.CSS("#dashboardBuildingBBLSearchDesk")
	hpdReady        = dom.CSS("div.p-card-content")
)

// HPD reads violation counts and building details from HPD Online
type HPD struct {
	step time.Duration
}

// NewHPD returns the HPD Online adapter
func NewHPD() *HPD {
	return &HPD{step: time.Second}
}

func (h *HPD) Name() string { return types.SiteHPD }
func (h *HPD) Tag() string  { return "HPD_" }

func (h *HPD) Check(key types.Key) error {
	switch key.Kind {
	case types.KeyURL, types.KeyBBL, types.KeyBuildingID:
		return nil
	}
	return unsupported(h.Name(), key)
}

func (h *HPD) ResolveTarget(page browser.Page, key types.Key) error {
	switch key.Kind {
	case types.KeyURL:
		return page.Navigate(key.URL)
	case types.KeyBuildingID:
		return page.Navigate(fmt.Sprintf(hpdBuildingURL, key.BuildingID))
	case types.KeyBBL:
		return h.searchBBL(page, key.BBL)
	}
	return unsupported(h.Name(), key)
}

// searchBBL fills the dashboard's Borough / Block / Lot search form
func (h *HPD) searchBBL(page browser.Page, bbl types.BBL) error {
	option := dom.XPathf("//li[@role='option' and @aria-label='%s']", bbl.Borough)

	steps := []struct {
		name  string
		run   func() error
		pause time.Duration
	}{
		{"open home page", func() error { return page.Navigate(hpdHomeURL) }, 0},
		{"select search tab", func() error { return page.Click(hpdBBLTab) }, 2 * h.step},
		{"open borough list", func() error { return page.Click(hpdBoroDropdown) }, h.step},
		{"select borough", func() error { return page.Click(option) }, h.step},
		{"enter block", func() error { return page.Fill(hpdBlockInput, fmt.Sprint(bbl.Block)) }, h.step},
		{"enter lot", func() error { return page.Fill(hpdLotInput, fmt.Sprint(bbl.Lot)) }, h.step},
		{"submit search", func() error { return page.Click(hpdSearchButton) }, 0},
	}

	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := page.Pause(s.pause); err != nil {
			return err
		}
	}
	return nil
}

// WaitReady waits for the overview cards. Results reached through the
// search form take longer to fill in.
func (h *HPD) WaitReady(page browser.Page, key types.Key) error {
	if err := page.WaitFor(browser.Present(hpdReady), 10*time.Second); err != nil {
		return err
	}
	settle := 2 * h.step
	if key.Kind == types.KeyBBL {
		settle = 3 * h.step
	}
	return page.Pause(settle)
}

func (h *HPD) ExtractFields(doc *dom.Document) (types.Record, error) {
	rec, errs := dom.Extract(doc, hpdFields())
	logFieldErrors(h.Name(), errs)
	return rec, nil
}

func hpdFields() []dom.Field {
	var fields []dom.Field
	for _, class := range []string{"A", "B", "C", "I"} {
		fields = append(fields, dom.Field{
			Name: class + " Violations",
			Strategies: []dom.Strategy{
				dom.XPathf("//span[contains(normalize-space(.),'%s Class')]/span[@class='fw-bold']", class),
			},
			Parse:   dom.Count,
			Default: 0,
		})
	}

	card := func(name, label string) dom.Field {
		return dom.Field{
			Name: name,
			Strategies: []dom.Strategy{
				dom.XPathf("//div[normalize-space(text())='%s']/following-sibling::div[contains(@class,'card-content-botttom')]", label),
				dom.XPathf("//div[contains(@class,'card-content')][.//div[text()='%s']]//div[contains(@class,'card-content-botttom')]", label),
			},
		}
	}
	program := func(name, label string) dom.Field {
		return dom.Field{
			Name: name,
			Strategies: []dom.Strategy{
				dom.XPathf("//span[text()='%s']/../../../../div[contains(@class,'content-right')]//span", label),
			},
		}
	}

	return append(fields,
		card("Stories", "STOREYS"),
		card("A Units", "A UNITS"),
		card("B Units", "B UNITS"),
		dom.Field{
			Name:       "Litigation",
			Strategies: []dom.Strategy{dom.CSS("span.fs-base > span.fw-bold")},
		},
		program("AEP Status", "Alternate Enforcement Program (AEP)"),
		program("CONH Status", "Certification of No Harassment Pilot Program"),
	)
}
