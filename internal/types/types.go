package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Site names used in requests and logs
const (
	SiteHPD            = "hpd"
	SiteBISWEB         = "bisweb"
	SiteBISWEBProperty = "bisweb_property"
	SiteDOBNOW         = "dobnow"
)

// ErrInvalidRequest is wrapped by every validation failure
var ErrInvalidRequest = errors.New("invalid request")

// ErrNoSources is returned when a request names no site at all
var ErrNoSources = fmt.Errorf("%w: at least one source must be specified", ErrInvalidRequest)

// ValidationError reports a request field that was missing or malformed
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// Invalid builds a ValidationError for the given field
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Borough is a NYC borough spelled the way the city portals spell it
type Borough string

const (
	Manhattan    Borough = "Manhattan"
	Bronx        Borough = "Bronx"
	Brooklyn     Borough = "Brooklyn"
	Queens       Borough = "Queens"
	StatenIsland Borough = "Staten Island"
)

// Boroughs lists the boroughs in BBL code order
var Boroughs = []Borough{Manhattan, Bronx, Brooklyn, Queens, StatenIsland}

// Code returns the borough digit used in BBL and BIN identifiers
func (b Borough) Code() int {
	for i, candidate := range Boroughs {
		if candidate == b {
			return i + 1
		}
	}
	return 0
}

// ParseBorough matches a borough name case-insensitively
func ParseBorough(name string) (Borough, error) {
	name = strings.Join(strings.Fields(name), " ")
	for _, b := range Boroughs {
		if strings.EqualFold(string(b), name) {
			return b, nil
		}
	}

	names := make([]string, len(Boroughs))
	for i, b := range Boroughs {
		names[i] = string(b)
	}
	return "", Invalid("borough", "invalid borough %q, must be one of: %s", name, strings.Join(names, ", "))
}

// BBL identifies a tax lot by borough, block and lot
type BBL struct {
	Borough Borough
	Block   int
	Lot     int
}

// String returns the 10-digit BBL, e.g. 1001230045
func (b BBL) String() string {
	return fmt.Sprintf("%d%05d%04d", b.Borough.Code(), b.Block, b.Lot)
}

// Validate checks the block and lot ranges used by the Department of Finance
func (b BBL) Validate() error {
	if b.Borough.Code() == 0 {
		return Invalid("borough", "unknown borough %q", b.Borough)
	}
	if b.Block < 1 || b.Block > 99999 {
		return Invalid("block", "must be between 1 and 99999, got %d", b.Block)
	}
	if b.Lot < 1 || b.Lot > 9999 {
		return Invalid("lot", "must be between 1 and 9999, got %d", b.Lot)
	}
	return nil
}

// Number is an integer field that clients send either as a JSON number or
// as a numeric string. Zero means absent.
type Number int

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*n = 0
			return nil
		}
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return Invalid("", "block and lot must be valid numbers, got %s", string(data))
	}
	*n = Number(v)
	return nil
}

// KeyKind tells which identifier form a Key carries
type KeyKind int

const (
	KeyURL KeyKind = iota + 1
	KeyBBL
	KeyBuildingID
	KeyBIN
)

func (k KeyKind) String() string {
	switch k {
	case KeyURL:
		return "url"
	case KeyBBL:
		return "bbl"
	case KeyBuildingID:
		return "building_id"
	case KeyBIN:
		return "bin"
	}
	return "unknown"
}

// Key is a validated site identifier: exactly one of URL, BBL, building id
// or BIN, depending on Kind.
type Key struct {
	Kind       KeyKind
	URL        string
	BBL        BBL
	BuildingID int
	BIN        string
}

func (k Key) String() string {
	switch k.Kind {
	case KeyURL:
		return k.URL
	case KeyBBL:
		return fmt.Sprintf("%s block %d lot %d", k.BBL.Borough, k.BBL.Block, k.BBL.Lot)
	case KeyBuildingID:
		return "building " + strconv.Itoa(k.BuildingID)
	case KeyBIN:
		return "BIN " + k.BIN
	}
	return "<empty>"
}

// Target is the wire form of a site identifier
type Target struct {
	URL        string `json:"url,omitempty"`
	Borough    string `json:"borough,omitempty"`
	Block      Number `json:"block,omitempty"`
	Lot        Number `json:"lot,omitempty"`
	BuildingID Number `json:"building_id,omitempty"`
	BIN        string `json:"bin,omitempty"`
}

func (t Target) hasBBL() bool {
	return strings.TrimSpace(t.Borough) != "" || t.Block != 0 || t.Lot != 0
}

// IsZero reports whether no identifier was given
func (t Target) IsZero() bool {
	return strings.TrimSpace(t.URL) == "" && !t.hasBBL() && t.BuildingID == 0 && strings.TrimSpace(t.BIN) == ""
}

// Key validates the target and returns its single identifier
func (t Target) Key() (Key, error) {
	forms := 0
	if strings.TrimSpace(t.URL) != "" {
		forms++
	}
	if t.hasBBL() {
		forms++
	}
	if t.BuildingID != 0 {
		forms++
	}
	if strings.TrimSpace(t.BIN) != "" {
		forms++
	}

	switch {
	case forms == 0:
		return Key{}, Invalid("", "one of url, borough/block/lot, building_id or bin is required")
	case forms > 1:
		return Key{}, Invalid("", "only one of url, borough/block/lot, building_id or bin may be given")
	}

	switch {
	case strings.TrimSpace(t.URL) != "":
		return parseURLKey(t.URL)
	case t.hasBBL():
		return parseBBLKey(t)
	case t.BuildingID != 0:
		if t.BuildingID < 0 {
			return Key{}, Invalid("building_id", "must be positive, got %d", t.BuildingID)
		}
		return Key{Kind: KeyBuildingID, BuildingID: int(t.BuildingID)}, nil
	default:
		return parseBINKey(t.BIN)
	}
}

func parseURLKey(raw string) (Key, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return Key{}, Invalid("url", "invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Key{}, Invalid("url", "must use http or https scheme")
	}
	if u.Host == "" {
		return Key{}, Invalid("url", "missing host")
	}
	return Key{Kind: KeyURL, URL: u.String()}, nil
}

func parseBBLKey(t Target) (Key, error) {
	if strings.TrimSpace(t.Borough) == "" || t.Block == 0 || t.Lot == 0 {
		return Key{}, Invalid("", "borough, block, and lot are required")
	}

	borough, err := ParseBorough(t.Borough)
	if err != nil {
		return Key{}, err
	}

	bbl := BBL{Borough: borough, Block: int(t.Block), Lot: int(t.Lot)}
	if err := bbl.Validate(); err != nil {
		return Key{}, err
	}
	return Key{Kind: KeyBBL, BBL: bbl}, nil
}

func parseBINKey(raw string) (Key, error) {
	bin := strings.TrimSpace(raw)
	if len(bin) != 7 {
		return Key{}, Invalid("bin", "must be 7 digits, got %q", raw)
	}
	for _, r := range bin {
		if r < '0' || r > '9' {
			return Key{}, Invalid("bin", "must be 7 digits, got %q", raw)
		}
	}
	if bin[0] < '1' || bin[0] > '5' {
		return Key{}, Invalid("bin", "must start with a borough digit 1-5, got %q", raw)
	}
	return Key{Kind: KeyBIN, BIN: bin}, nil
}

// ScrapeRequest names the sites to scrape for one lot. The top-level
// borough/block/lot fields are the legacy single-site request shape and
// target the HPD site.
type ScrapeRequest struct {
	HPD            *Target `json:"hpd,omitempty"`
	BISWEB         *Target `json:"bisweb,omitempty"`
	BISWEBProperty *Target `json:"bisweb_property,omitempty"`
	DOBNOW         *Target `json:"dobnow,omitempty"`

	Borough string `json:"borough,omitempty"`
	Block   Number `json:"block,omitempty"`
	Lot     Number `json:"lot,omitempty"`
}

// Source pairs a site name with the identifier requested for it
type Source struct {
	Site   string
	Target Target
}

// Validate rejects requests that give the HPD site both an explicit target
// and the legacy top-level borough/block/lot
func (r ScrapeRequest) Validate() error {
	legacy := Target{Borough: r.Borough, Block: r.Block, Lot: r.Lot}
	if r.HPD != nil && !r.HPD.IsZero() && !legacy.IsZero() {
		return Invalid("", "only one of hpd or top-level borough/block/lot may be given")
	}
	return nil
}

// Sources returns the requested sites in scrape order
func (r ScrapeRequest) Sources() []Source {
	hpd := r.HPD
	legacy := Target{Borough: r.Borough, Block: r.Block, Lot: r.Lot}
	if (hpd == nil || hpd.IsZero()) && !legacy.IsZero() {
		hpd = &legacy
	}

	var sources []Source
	for _, s := range []struct {
		site   string
		target *Target
	}{
		{SiteHPD, hpd},
		{SiteBISWEB, r.BISWEB},
		{SiteBISWEBProperty, r.BISWEBProperty},
		{SiteDOBNOW, r.DOBNOW},
	} {
		if s.target == nil || s.target.IsZero() {
			continue
		}
		sources = append(sources, Source{Site: s.site, Target: *s.target})
	}
	return sources
}
