package content

import (
	"slices"
	"testing"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPaginate_Empty(t *testing.T) {
	for _, idx := range []int{-5, 0, 1, 99} {
		p := Paginate([]int{}, 12, idx)
		if p.TotalPages != 1 {
			t.Errorf("index %d: TotalPages = %d, want 1", idx, p.TotalPages)
		}
		if p.Index != 0 {
			t.Errorf("index %d: Index = %d, want 0", idx, p.Index)
		}
		if p.Items == nil || len(p.Items) != 0 {
			t.Errorf("index %d: Items = %v, want empty non-nil", idx, p.Items)
		}
		if p.HasPrev || p.HasNext {
			t.Errorf("index %d: navigation should be disabled", idx)
		}
	}
}

func TestPaginate_ThirtySevenMovies(t *testing.T) {
	items := seq(37)

	p := Paginate(items, 12, 0)
	if p.TotalPages != 4 || len(p.Items) != 12 {
		t.Errorf("first page: TotalPages = %d, len = %d, want 4 and 12", p.TotalPages, len(p.Items))
	}
	if p.HasPrev || !p.HasNext {
		t.Errorf("first page: HasPrev = %v, HasNext = %v", p.HasPrev, p.HasNext)
	}

	last := Paginate(items, 12, 3)
	if !slices.Equal(last.Items, []int{36}) {
		t.Errorf("last page items = %v, want [36]", last.Items)
	}
	if last.HasNext || !last.HasPrev {
		t.Errorf("last page: HasPrev = %v, HasNext = %v", last.HasPrev, last.HasNext)
	}

	for idx := 0; idx < 3; idx++ {
		if !Paginate(items, 12, idx).HasNext {
			t.Errorf("HasNext = false at index %d", idx)
		}
	}
}

func TestPaginate_ClampsIndex(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		perPage int
		index   int
		want    int
	}{
		{"negative", 30, 10, -1, 0},
		{"past end", 30, 10, 7, 2},
		{"in range", 30, 10, 1, 1},
		{"zero per page treated as one", 3, 0, 10, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(seq(tt.count), tt.perPage, tt.index)
			if p.Index != tt.want {
				t.Errorf("Index = %d, want %d", p.Index, tt.want)
			}
			if p.Index < 0 || p.Index > p.TotalPages-1 {
				t.Errorf("Index %d outside [0,%d]", p.Index, p.TotalPages-1)
			}
		})
	}
}

func TestPaginate_PagesCoverList(t *testing.T) {
	for _, count := range []int{0, 1, 5, 6, 7, 12, 37, 100} {
		for _, perPage := range []int{1, 6, 12} {
			items := seq(count)
			pages := TotalPages(count, perPage)
			var seen []int
			for i := 0; i < pages; i++ {
				seen = append(seen, Paginate(items, perPage, i).Items...)
			}
			if len(seen) != count {
				t.Fatalf("count=%d perPage=%d: pages hold %d items", count, perPage, len(seen))
			}
			for i, v := range seen {
				if v != i {
					t.Fatalf("count=%d perPage=%d: item %d = %d", count, perPage, i, v)
				}
			}
		}
	}
}

func TestPager_NextPrevBoundaries(t *testing.T) {
	p := Pager{PerPage: 12}

	if p.Prev() {
		t.Error("Prev() moved before the first page")
	}
	for i := 0; i < 3; i++ {
		if !p.Next(37) {
			t.Fatalf("Next() = false at index %d", p.Index)
		}
	}
	if p.Next(37) {
		t.Error("Next() moved past the last page")
	}
	if p.Index != 3 {
		t.Errorf("Index = %d, want 3", p.Index)
	}

	p.Clamp(5)
	if p.Index != 0 {
		t.Errorf("Index after Clamp(5) = %d, want 0", p.Index)
	}
	if p.Next(0) {
		t.Error("Next(0) moved on an empty list")
	}
}

func TestLayoutWindow(t *testing.T) {
	grid := Layout{Strategy: StrategyTransform, Rows: 2, ColumnWidthPx: 220}

	tests := []struct {
		name string
		got  Window
		want Window
	}{
		{
			name: "transform",
			got:  grid.Window(37, 12, 2),
			want: Window{Strategy: StrategyTransform, GridColumns: 19, ColumnsPerPage: 6, OffsetPx: 2 * 6 * 220},
		},
		{
			name: "transform clamped",
			got:  grid.Window(37, 12, 99),
			want: Window{Strategy: StrategyTransform, GridColumns: 19, ColumnsPerPage: 6, OffsetPx: 3 * 6 * 220},
		},
		{
			name: "transform empty",
			got:  grid.Window(0, 12, 4),
			want: Window{Strategy: StrategyTransform, ColumnsPerPage: 6},
		},
		{
			name: "slice",
			got:  Layout{Strategy: StrategySlice, Rows: 1}.Window(37, 6, 2),
			want: Window{Strategy: StrategySlice, GridColumns: 6, ColumnsPerPage: 6},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Strategy != tt.want.Strategy {
				t.Errorf("Strategy = %v, want %v", tt.got.Strategy, tt.want.Strategy)
			}
			if tt.got.GridColumns != tt.want.GridColumns {
				t.Errorf("GridColumns = %d, want %d", tt.got.GridColumns, tt.want.GridColumns)
			}
			if tt.want.ColumnsPerPage != 0 && tt.got.ColumnsPerPage != tt.want.ColumnsPerPage {
				t.Errorf("ColumnsPerPage = %d, want %d", tt.got.ColumnsPerPage, tt.want.ColumnsPerPage)
			}
			if tt.got.OffsetPx != tt.want.OffsetPx {
				t.Errorf("OffsetPx = %d, want %d", tt.got.OffsetPx, tt.want.OffsetPx)
			}
		})
	}

	zero := Layout{}.Window(10, 5, 1)
	if zero.Strategy != StrategySlice || zero.Rows != 1 {
		t.Errorf("zero layout = %+v, want slice strategy with 1 row", zero)
	}
}
