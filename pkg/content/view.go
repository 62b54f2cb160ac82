package content

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned when a view is asked to select something it does not offer.
var (
	ErrUnknownFacet  = errors.New("unknown facet")
	ErrUnknownRange  = errors.New("unknown range filter")
	ErrUnknownBucket = errors.New("unknown range bucket")
)

// ViewConfig is everything a content page declares about one list.
type ViewConfig struct {
	Mapping FieldMapping
	Filters FilterConfig
	PerPage int
	Layout  Layout
}

// Snapshot is the rendered state of a view.
type Snapshot struct {
	Total    int         `json:"total"`
	Filtered int         `json:"filtered"`
	Filters  FilterState `json:"filters"`
	Page     Page[Card]  `json:"page"`
	Window   Window      `json:"window"`
	Empty    bool        `json:"empty"`
}

// View combines a list, its filter state and a page cursor. Every mutation
// recomputes the filtered set and re-clamps the cursor, so the current page is
// always inside the filtered range. A View is not safe for concurrent use.
type View struct {
	cfg      ViewConfig
	items    []Item
	filtered []Item
	state    FilterState
	pager    Pager
}

// NewView returns an empty view.
func NewView(cfg ViewConfig) *View {
	if cfg.PerPage < 1 {
		cfg.PerPage = 1
	}
	v := &View{
		cfg:   cfg,
		state: EmptyFilterState(),
		pager: Pager{PerPage: cfg.PerPage},
	}
	v.refilter()
	return v
}

// Config returns the view configuration.
func (v *View) Config() ViewConfig { return v.cfg }

// SetItems replaces the list wholesale. Filters are kept; the cursor is
// re-clamped.
func (v *View) SetItems(items []Item) {
	v.items = items
	v.refilter()
}

// Items returns the unfiltered list.
func (v *View) Items() []Item { return v.items }

// Filtered returns the current filtered list.
func (v *View) Filtered() []Item { return v.filtered }

// Filters returns a copy of the current filter state.
func (v *View) Filters() FilterState { return v.state.Clone() }

// SetSearch sets the free-text search term.
func (v *View) SetSearch(term string) {
	v.state.SearchTerm = term
	v.refilter()
}

// SetFacet selects value for the named facet. "all" or "" deactivates it.
func (v *View) SetFacet(name, value string) error {
	if _, ok := v.cfg.Filters.Facet(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFacet, name)
	}
	v.state.Facets[name] = strings.TrimSpace(value)
	v.refilter()
	return nil
}

// SetRange selects the named bucket of a range filter. "all" or ""
// deactivates it.
func (v *View) SetRange(name, bucket string) error {
	rf, ok := v.cfg.Filters.Range(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRange, name)
	}
	bucket = strings.TrimSpace(bucket)
	if active(bucket) {
		if _, ok := rf.Bucket(bucket); !ok {
			return fmt.Errorf("%w: %q in %q", ErrUnknownBucket, bucket, name)
		}
	}
	v.state.Ranges[name] = bucket
	v.refilter()
	return nil
}

// Apply replaces the whole filter state after validating it.
func (v *View) Apply(state FilterState) error {
	next := NewView(v.cfg)
	next.SetSearch(state.SearchTerm)
	for name, value := range state.Facets {
		if err := next.SetFacet(name, value); err != nil {
			return err
		}
	}
	for name, bucket := range state.Ranges {
		if err := next.SetRange(name, bucket); err != nil {
			return err
		}
	}
	v.state = next.state
	v.refilter()
	return nil
}

// ClearFilters restores the initial filter state and returns to the first
// page.
func (v *View) ClearFilters() {
	v.state = EmptyFilterState()
	v.pager.Index = 0
	v.refilter()
}

// Next moves to the next page and reports whether it moved.
func (v *View) Next() bool { return v.pager.Next(len(v.filtered)) }

// Prev moves to the previous page and reports whether it moved.
func (v *View) Prev() bool { return v.pager.Prev() }

// SetIndex jumps to a page, clamped into range.
func (v *View) SetIndex(index int) {
	v.pager.Index = index
	v.pager.Clamp(len(v.filtered))
}

// Index returns the current page index.
func (v *View) Index() int { return v.pager.Index }

// Snapshot renders the current page.
func (v *View) Snapshot() Snapshot {
	page := Paginate(v.filtered, v.cfg.PerPage, v.pager.Index)
	cards := Page[Card]{
		Items:      v.cfg.Mapping.Cards(page.Items),
		Index:      page.Index,
		TotalPages: page.TotalPages,
		PerPage:    page.PerPage,
		HasPrev:    page.HasPrev,
		HasNext:    page.HasNext,
	}
	return Snapshot{
		Total:    len(v.items),
		Filtered: len(v.filtered),
		Filters:  v.state.Clone(),
		Page:     cards,
		Window:   v.cfg.Layout.Window(len(v.filtered), v.cfg.PerPage, page.Index),
		Empty:    len(v.filtered) == 0,
	}
}

func (v *View) refilter() {
	v.filtered = ApplyFilters(v.items, v.state, v.cfg.Mapping, v.cfg.Filters)
	v.pager.Clamp(len(v.filtered))
}
