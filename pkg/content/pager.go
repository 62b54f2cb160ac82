package content

// Page is one window over a list.
type Page[T any] struct {
	Items      []T  `json:"items"`
	Index      int  `json:"index"`
	TotalPages int  `json:"total_pages"`
	PerPage    int  `json:"per_page"`
	HasPrev    bool `json:"has_prev"`
	HasNext    bool `json:"has_next"`
}

// TotalPages returns max(1, ceil(count/perPage)).
func TotalPages(count, perPage int) int {
	if perPage < 1 {
		perPage = 1
	}
	pages := (count + perPage - 1) / perPage
	if pages < 1 {
		return 1
	}
	return pages
}

// ClampIndex bounds index to [0, TotalPages(count, perPage)-1].
func ClampIndex(index, count, perPage int) int {
	last := TotalPages(count, perPage) - 1
	if index > last {
		index = last
	}
	if index < 0 {
		index = 0
	}
	return index
}

// Paginate returns the page of items at index, clamping the index into range.
// An empty list yields one empty page.
func Paginate[T any](items []T, perPage, index int) Page[T] {
	if perPage < 1 {
		perPage = 1
	}
	total := TotalPages(len(items), perPage)
	index = ClampIndex(index, len(items), perPage)

	start := index * perPage
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	visible := make([]T, 0, end-start)
	if start < end {
		visible = append(visible, items[start:end]...)
	}

	return Page[T]{
		Items:      visible,
		Index:      index,
		TotalPages: total,
		PerPage:    perPage,
		HasPrev:    index > 0,
		HasNext:    index < total-1,
	}
}

// Pager is the mutable page cursor of a view.
type Pager struct {
	Index   int
	PerPage int
}

// Next advances one page if another page exists and reports whether it moved.
func (p *Pager) Next(count int) bool {
	if p.Index >= TotalPages(count, p.PerPage)-1 {
		return false
	}
	p.Index++
	return true
}

// Prev steps back one page unless already on the first.
func (p *Pager) Prev() bool {
	if p.Index <= 0 {
		return false
	}
	p.Index--
	return true
}

// Clamp re-bounds the cursor after the list size changed.
func (p *Pager) Clamp(count int) {
	p.Index = ClampIndex(p.Index, count, p.PerPage)
}

// Strategy selects how a page window is presented.
type Strategy string

const (
	// StrategySlice renders only the visible slice.
	StrategySlice Strategy = "slice"
	// StrategyTransform lays every item into a fixed-row grid and slides it
	// horizontally by a pixel offset.
	StrategyTransform Strategy = "transform"
)

// Layout describes the carousel geometry of a page.
type Layout struct {
	Strategy      Strategy `json:"strategy" yaml:"strategy"`
	Rows          int      `json:"rows" yaml:"rows"`
	ColumnWidthPx int      `json:"column_width_px" yaml:"column_width_px"`
}

// Window is the geometry of the current page under a Layout.
type Window struct {
	Strategy       Strategy `json:"strategy"`
	Rows           int      `json:"rows"`
	GridColumns    int      `json:"grid_columns"`
	ColumnsPerPage int      `json:"columns_per_page"`
	OffsetPx       int      `json:"offset_px"`
}

// Window computes grid columns and the translateX offset for the page at
// index. The slice strategy has no offset; the visible slice is the window.
func (l Layout) Window(count, perPage, index int) Window {
	if perPage < 1 {
		perPage = 1
	}
	rows := l.Rows
	if rows < 1 {
		rows = 1
	}
	index = ClampIndex(index, count, perPage)
	perPageCols := ceilDiv(perPage, rows)

	if l.Strategy != StrategyTransform {
		return Window{
			Strategy:       StrategySlice,
			Rows:           rows,
			GridColumns:    perPageCols,
			ColumnsPerPage: perPageCols,
		}
	}
	return Window{
		Strategy:       StrategyTransform,
		Rows:           rows,
		GridColumns:    ceilDiv(count, rows),
		ColumnsPerPage: perPageCols,
		OffsetPx:       index * perPageCols * l.ColumnWidthPx,
	}
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
