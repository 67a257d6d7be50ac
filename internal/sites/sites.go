// Package sites holds one adapter per city portal. An adapter knows how to
// reach a lot's page, when that page is ready and which fields to read from
// it. Session handling lives in the crawler.
package sites

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lotscrape/internal/browser"
	"lotscrape/internal/dom"
	"lotscrape/internal/types"

	"github.com/charmbracelet/log"
)

var (
	// ErrMissingField is returned when a page lacks a field the site
	// always renders for a real lot
	ErrMissingField = errors.New("mandatory field missing")

	// ErrUnsupportedTarget is returned for identifier kinds a site cannot use
	ErrUnsupportedTarget = errors.New("unsupported target")

	// ErrNoTemplate is returned when an identifier needs a URL template
	// that is not configured
	ErrNoTemplate = errors.New("no url template configured")
)

// Adapter is the per-site part of a scrape
type Adapter interface {
	// Name is the request and log name, e.g. "hpd"
	Name() string
	// Tag prefixes every output field, e.g. "HPD_"
	Tag() string
	// Check rejects keys the adapter cannot resolve, before any browser work
	Check(key types.Key) error
	ResolveTarget(page browser.Page, key types.Key) error
	// WaitReady is given the key ResolveTarget used
	WaitReady(page browser.Page, key types.Key) error
	ExtractFields(doc *dom.Document) (types.Record, error)
}

// Config carries the URL templates for identifiers that need one. Templates
// may use {bbl}, {boro}, {block}, {lot} and {bin}.
type Config struct {
	BISWEB struct {
		LookupURL string `yaml:"lookup_url"`
	} `yaml:"bisweb"`
	DOBNOW struct {
		BinURL string `yaml:"bin_url"`
	} `yaml:"dobnow"`
}

// DefaultBISWEBLookupURL is the Property Information Portal parcel page
const DefaultBISWEBLookupURL = "https://propertyinformationportal.nyc.gov/parcels/parcel/{bbl}"

// DefaultConfig returns the built-in templates
func DefaultConfig() Config {
	var cfg Config
	cfg.BISWEB.LookupURL = DefaultBISWEBLookupURL
	return cfg
}

// All returns every adapter in scrape order
func All(cfg Config) []Adapter {
	return []Adapter{
		NewHPD(),
		NewBISWEB(cfg.BISWEB.LookupURL),
		NewProperty(),
		NewDOBNOW(cfg.DOBNOW.BinURL),
	}
}

// expand fills a URL template from key
func expand(tmpl string, key types.Key) string {
	var pairs []string
	if key.Kind == types.KeyBBL {
		pairs = append(pairs,
			"{bbl}", key.BBL.String(),
			"{boro}", strconv.Itoa(key.BBL.Borough.Code()),
			"{block}", strconv.Itoa(key.BBL.Block),
			"{lot}", strconv.Itoa(key.BBL.Lot),
		)
	}
	if key.Kind == types.KeyBIN {
		pairs = append(pairs, "{bin}", key.BIN)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func unsupported(site string, key types.Key) error {
	return fmt.Errorf("%w: %w: %s does not accept a %s", types.ErrInvalidRequest, ErrUnsupportedTarget, site, key.Kind)
}

// logFieldErrors reports fields that fell back to a default or were left out
func logFieldErrors(site string, errs []error) {
	logger := log.With("site", site)
	for _, err := range errs {
		var fe *dom.FieldError
		if errors.As(err, &fe) {
			logger.Warn("Field not read", "field", fe.Field, "error", fe.Err)
			continue
		}
		logger.Warn("Field not read", "error", err)
	}
}
