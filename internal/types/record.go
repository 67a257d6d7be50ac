package types

import (
	"fmt"
	"sort"
)

// Record maps field names to scraped values. Values are strings or ints.
type Record map[string]any

// Keys returns the field names in sorted order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Prefixed returns a copy of r with every key prefixed by tag
func (r Record) Prefixed(tag string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[tag+k] = v
	}
	return out
}

// Merge copies other into r. A key present in both is an error and leaves
// r unchanged.
func (r Record) Merge(other Record) error {
	for k := range other {
		if _, exists := r[k]; exists {
			return fmt.Errorf("duplicate field %q", k)
		}
	}
	for k, v := range other {
		r[k] = v
	}
	return nil
}

// Format renders a value the way it appears in exports
func (r Record) Format(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
