package content

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// AllValue marks a facet or range selection as inactive.
const AllValue = "all"

// Facet is an exact-match filter over a categorical attribute.
type Facet struct {
	Name      string    `json:"name" yaml:"name"`
	Attribute Attribute `json:"attribute" yaml:"attribute"`
}

// Bucket is a named numeric interval. Min is inclusive; Max is exclusive
// unless MaxInclusive is set. A nil bound is open.
type Bucket struct {
	Name         string   `json:"name" yaml:"name"`
	Min          *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max          *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	MaxInclusive bool     `json:"max_inclusive,omitempty" yaml:"max_inclusive,omitempty"`
}

// Contains reports whether v falls inside the bucket.
func (b Bucket) Contains(v float64) bool {
	if b.Min != nil && v < *b.Min {
		return false
	}
	if b.Max != nil {
		if b.MaxInclusive {
			return v <= *b.Max
		}
		return v < *b.Max
	}
	return true
}

// RangeFilter selects items whose numeric attribute falls inside one of its
// buckets.
type RangeFilter struct {
	Name      string    `json:"name" yaml:"name"`
	Attribute Attribute `json:"attribute" yaml:"attribute"`
	Buckets   []Bucket  `json:"buckets" yaml:"buckets"`
}

// Bucket looks up a bucket by name.
func (r RangeFilter) Bucket(name string) (Bucket, bool) {
	return lo.Find(r.Buckets, func(b Bucket) bool { return b.Name == name })
}

// FilterConfig declares which attributes a page searches and which facet and
// range filters it offers.
type FilterConfig struct {
	SearchFields []Attribute   `json:"search_fields" yaml:"search_fields"`
	Facets       []Facet       `json:"facets" yaml:"facets"`
	Ranges       []RangeFilter `json:"ranges" yaml:"ranges"`
}

// Facet looks up a facet by name.
func (c FilterConfig) Facet(name string) (Facet, bool) {
	return lo.Find(c.Facets, func(f Facet) bool { return f.Name == name })
}

// Range looks up a range filter by name.
func (c FilterConfig) Range(name string) (RangeFilter, bool) {
	return lo.Find(c.Ranges, func(r RangeFilter) bool { return r.Name == name })
}

// FilterState is the user-controlled filter input of one view.
type FilterState struct {
	SearchTerm string            `json:"search"`
	Facets     map[string]string `json:"facets,omitempty"`
	Ranges     map[string]string `json:"ranges,omitempty"`
}

// EmptyFilterState returns the state every view starts from and returns to on
// "Clear Filters".
func EmptyFilterState() FilterState {
	return FilterState{
		Facets: map[string]string{},
		Ranges: map[string]string{},
	}
}

// Clone returns a deep copy of s.
func (s FilterState) Clone() FilterState {
	out := FilterState{
		SearchTerm: s.SearchTerm,
		Facets:     make(map[string]string, len(s.Facets)),
		Ranges:     make(map[string]string, len(s.Ranges)),
	}
	for k, v := range s.Facets {
		out.Facets[k] = v
	}
	for k, v := range s.Ranges {
		out.Ranges[k] = v
	}
	return out
}

// IsEmpty reports whether no predicate is active.
func (s FilterState) IsEmpty() bool {
	if strings.TrimSpace(s.SearchTerm) != "" {
		return false
	}
	for _, v := range s.Facets {
		if active(v) {
			return false
		}
	}
	for _, v := range s.Ranges {
		if active(v) {
			return false
		}
	}
	return true
}

func active(selected string) bool {
	return selected != "" && selected != AllValue
}

// ApplyFilters reduces items to those passing every active predicate in state:
// the free-text search, each configured facet and each configured range. The
// relative order of items is preserved. Facets or ranges named in state but
// absent from cfg are ignored; a range selecting an unknown bucket matches
// nothing. Missing or malformed fields make an item fail the predicate that
// reads them.
func ApplyFilters(items []Item, state FilterState, mapping FieldMapping, cfg FilterConfig) []Item {
	preds := compile(state, mapping, cfg)
	if len(preds) == 0 {
		out := make([]Item, len(items))
		copy(out, items)
		return out
	}
	return lo.Filter(items, func(it Item, _ int) bool {
		for _, p := range preds {
			if !p(it) {
				return false
			}
		}
		return true
	})
}

type predicate func(Item) bool

func compile(state FilterState, mapping FieldMapping, cfg FilterConfig) []predicate {
	var preds []predicate

	if term := strings.ToLower(strings.TrimSpace(state.SearchTerm)); term != "" {
		fields := cfg.SearchFields
		if len(fields) == 0 {
			fields = []Attribute{AttrTitle}
		}
		preds = append(preds, func(it Item) bool {
			for _, attr := range fields {
				if strings.Contains(strings.ToLower(mapping.String(it, attr)), term) {
					return true
				}
			}
			return false
		})
	}

	for _, f := range cfg.Facets {
		selected := state.Facets[f.Name]
		if !active(selected) {
			continue
		}
		attr := f.Attribute
		preds = append(preds, func(it Item) bool {
			return mapping.String(it, attr) == selected
		})
	}

	for _, r := range cfg.Ranges {
		selected := state.Ranges[r.Name]
		if !active(selected) {
			continue
		}
		bucket, ok := r.Bucket(selected)
		if !ok {
			preds = append(preds, func(Item) bool { return false })
			continue
		}
		attr := r.Attribute
		preds = append(preds, func(it Item) bool {
			v, ok := NumericValue(mapping.Value(it, attr))
			return ok && bucket.Contains(v)
		})
	}

	return preds
}

// NumericValue extracts a number from a decoded JSON value. Strings go through
// ParseNumber.
func NumericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		return ParseNumber(t)
	default:
		return 0, false
	}
}

// ParseNumber strips every character except digits, '.' and a leading '-'
// and parses the remainder, so "$1,299.00" yields 1299. Strings with no digits
// or several decimal points are unparsable.
func ParseNumber(s string) (float64, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if strings.Trim(cleaned, "-.") == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DistinctValues returns the sorted, distinct, non-empty values of attr across
// items, used to populate facet dropdowns.
func DistinctValues(items []Item, mapping FieldMapping, attr Attribute) []string {
	values := lo.Uniq(lo.FilterMap(items, func(it Item, _ int) (string, bool) {
		s := mapping.String(it, attr)
		return s, s != ""
	}))
	sort.Strings(values)
	return values
}
