package sites

import (
	"errors"
	"fmt"
	"time"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/types"

	"github.com/PuerkitoBio/goquery"
)

const (
	biswebCard      = ".sc-bbSZdi.kNzzmL.card"
	biswebRow       = ".sc-gFAWRd.evnkkT"
	biswebItem      = ".sc-kdBSHD.gjouCV"
	biswebValue     = "p.sc-hRJfrW.jVlUZz"
	biswebLabel     = "p.sc-cfxfcM.eyvGek"
	biswebValuesRow = "thead.table-primary"

	// biswebMandatory is rendered for every lot with a building
	biswebMandatory = "Residential Units"
	biswebTaxClass  = "Tax Class"
)

// BISWEB reads the building summary card and assessed values from the
// parcel lookup portal
type BISWEB struct {
	lookupURL string
	settle    time.Duration
}

// NewBISWEB returns the buildings information adapter. lookupURL is the
// template used to turn a BBL into a page.
func NewBISWEB(lookupURL string) *BISWEB {
	if lookupURL == "" {
		lookupURL = DefaultBISWEBLookupURL
	}
	return &BISWEB{lookupURL: lookupURL, settle: 3 * time.Second}
}

func (b *BISWEB) Name() string { return types.SiteBISWEB }
func (b *BISWEB) Tag() string  { return "BISWEB_" }

func (b *BISWEB) Check(key types.Key) error {
	switch key.Kind {
	case types.KeyURL, types.KeyBBL:
		return nil
	}
	return unsupported(b.Name(), key)
}

func (b *BISWEB) ResolveTarget(page browser.Page, key types.Key) error {
	switch key.Kind {
	case types.KeyURL:
		return page.Navigate(key.URL)
	case types.KeyBBL:
		return page.Navigate(expand(b.lookupURL, key))
	}
	return unsupported(b.Name(), key)
}

func (b *BISWEB) WaitReady(page browser.Page, _ types.Key) error {
	if err := page.Pause(b.settle); err != nil {
		return err
	}
	return page.WaitFor(browser.Present(dom.CSS(biswebCard)), 0)
}

func (b *BISWEB) ExtractFields(doc *dom.Document) (types.Record, error) {
	rec := types.Record{}

	doc.Find(biswebCard).First().Find(biswebRow).Each(func(_ int, row *goquery.Selection) {
		row.Find(biswebItem).Each(func(_ int, item *goquery.Selection) {
			value := dom.SelectionText(item.Find(biswebValue))
			label := dom.SelectionText(item.Find(biswebLabel))
			if label != "" && value != "" {
				rec[label] = value
			}
		})
	})

	if _, ok := rec[biswebMandatory]; !ok {
		return nil, fmt.Errorf("%w: %q not found on page", ErrMissingField, biswebMandatory)
	}

	headers, cells, err := assessment(doc)
	if err != nil {
		logFieldErrors(b.Name(), []error{err})
	} else if cells.Length() < 8 {
		logFieldErrors(b.Name(), []error{&dom.FieldError{
			Field: "Total Value",
			Err:   fmt.Errorf("expected at least 8 columns, found %d", cells.Length()),
		}})
	} else {
		rec["Total Value"] = dom.SelectionText(cells.Eq(5))
		rec["Taxable Billable AV"] = dom.SelectionText(cells.Eq(7))
	}

	if _, ok := rec[biswebTaxClass]; !ok {
		if v := taxClass(doc, headers, cells); v != "" {
			rec[biswebTaxClass] = v
		}
	}

	return rec, nil
}

// assessment returns the column headers and first data row cells of the
// assessment table
func assessment(doc *dom.Document) ([]string, *goquery.Selection, error) {
	table := doc.Find(biswebValuesRow).First().Parent()
	if table.Length() == 0 {
		return nil, nil, &dom.FieldError{Field: "Total Value", Err: dom.ErrNoMatch}
	}

	var headers []string
	table.Find(biswebValuesRow).First().Find("th, td").Each(func(_ int, cell *goquery.Selection) {
		headers = append(headers, dom.SelectionText(cell))
	})

	row := table.Find("tbody tr").First()
	if row.Length() == 0 {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return nil, nil, &dom.FieldError{Field: "Total Value", Err: errors.New("no data rows in assessment table")}
		}
		row = rows.Eq(1)
	}
	return headers, row.Find("td, th"), nil
}

// taxClass finds a value labelled Tax Class outside the summary rows, then
// falls back to the assessment table's Tax Class column
func taxClass(doc *dom.Document, headers []string, cells *goquery.Selection) string {
	var value string
	doc.Find(biswebItem).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if dom.SelectionText(item.Find(biswebLabel)) == biswebTaxClass {
			value = dom.SelectionText(item.Find(biswebValue))
		}
		return value == ""
	})
	if value != "" || cells == nil {
		return value
	}

	for i, h := range headers {
		if h == biswebTaxClass && i < cells.Length() {
			return dom.SelectionText(cells.Eq(i))
		}
	}
	return ""
}
