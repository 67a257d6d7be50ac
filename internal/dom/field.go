package dom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lotscrape/internal/types"

	"golang.org/x/net/html"
)

// ErrNoMatch is reported when none of a field's strategies matched
var ErrNoMatch = errors.New("no element matched")

// Field describes how to read one named value from a page
type Field struct {
	Name       string
	Strategies []Strategy
	// Parse converts matched text. Nil keeps the text as a string.
	Parse func(string) (any, error)
	// Default is stored when nothing matched or Parse failed. Nil omits
	// the field.
	Default any
	// OmitEmpty moves on to the next strategy when a match has no text.
	OmitEmpty bool
}

// FieldError records why a field fell back to its default
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Extract reads every field from doc. A field that cannot be read gets its
// Default, or is left out when Default is nil. The returned errors list
// those fields.
func Extract(doc *Document, fields []Field) (types.Record, []error) {
	rec := make(types.Record, len(fields))
	var errs []error

	for _, f := range fields {
		v, err := f.extract(doc)
		if err != nil {
			errs = append(errs, &FieldError{Field: f.Name, Err: err})
			if f.Default != nil {
				rec[f.Name] = f.Default
			}
			continue
		}
		rec[f.Name] = v
	}
	return rec, errs
}

func (f Field) extract(doc *Document) (any, error) {
	var node *html.Node
	var text string
	for _, s := range f.Strategies {
		n, ok := s.Find(doc)
		if !ok {
			continue
		}
		t := Text(n)
		if t == "" && f.OmitEmpty {
			continue
		}
		node, text = n, t
		break
	}
	if node == nil {
		return nil, ErrNoMatch
	}

	if f.Parse == nil {
		return text, nil
	}
	v, err := f.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", text, err)
	}
	return v, nil
}

// Count parses a comma-grouped integer and fails on anything else
func Count(s string) (any, error) {
	s = strings.ReplaceAll(Collapse(s), ",", "")
	if s == "" {
		return nil, errors.New("empty count")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return n, nil
}
