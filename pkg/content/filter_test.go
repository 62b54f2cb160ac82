package content

import (
	"fmt"
	"reflect"
	"slices"
	"testing"
)

var toolMapping = FieldMapping{
	AttrTitle:       {"title", "name", "Toolname", "Name", "Title"},
	AttrDescription: {"purpose", "Purpose", "description"},
	AttrCategory:    {"category", "Category"},
	"pricing":       {"pricing", "Pricing"},
}

var toolFilters = FilterConfig{
	SearchFields: []Attribute{AttrTitle, AttrDescription, AttrCategory},
	Facets: []Facet{
		{Name: "category", Attribute: AttrCategory},
		{Name: "pricing", Attribute: "pricing"},
	},
}

// aiTools returns 25 tools: three with "chat" in the title and one more
// mentioning it only in its purpose.
func aiTools() []Item {
	items := []Item{
		{"Toolname": "ChatGPT", "purpose": "General assistant", "category": "Assistant", "pricing": "Freemium"},
		{"Toolname": "HuggingChat", "purpose": "Open models", "category": "Assistant", "pricing": "Free"},
		{"name": "Chatsonic", "Purpose": "Writing", "category": "Writing", "pricing": "Paid"},
		{"Toolname": "Intercom Fin", "purpose": "Customer chat support", "category": "Support", "pricing": "Paid"},
	}
	for i := len(items); i < 25; i++ {
		items = append(items, Item{
			"Toolname": fmt.Sprintf("Tool %02d", i),
			"purpose":  "Image generation",
			"category": "Design",
			"pricing":  "Free",
		})
	}
	return items
}

func TestApplyFilters_SearchScenario(t *testing.T) {
	items := aiTools()
	if len(items) != 25 {
		t.Fatalf("aiTools len = %d, want 25", len(items))
	}

	if got := ApplyFilters(items, FilterState{SearchTerm: "  CHAT "}, toolMapping, toolFilters); len(got) != 4 {
		t.Errorf("search %q matched %d items, want 4", "chat", len(got))
	}
	if got := ApplyFilters(items, EmptyFilterState(), toolMapping, toolFilters); len(got) != 25 {
		t.Errorf("cleared search matched %d items, want 25", len(got))
	}
}

func TestApplyFilters_IdentityPreservesOrder(t *testing.T) {
	items := aiTools()
	got := ApplyFilters(items, EmptyFilterState(), toolMapping, toolFilters)
	if !reflect.DeepEqual(items, got) {
		t.Fatal("empty state did not return the input unchanged")
	}

	// The result is a copy; mutating it leaves the input alone.
	got[0] = Item{}
	if items[0]["Toolname"] != "ChatGPT" {
		t.Errorf("input mutated: items[0] = %v", items[0])
	}
}

func TestApplyFilters_FacetsCompose(t *testing.T) {
	state := FilterState{
		Facets: map[string]string{"category": "Assistant", "pricing": "Free"},
	}
	got := ApplyFilters(aiTools(), state, toolMapping, toolFilters)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0]["Toolname"] != "HuggingChat" {
		t.Errorf("got %v, want HuggingChat", got[0]["Toolname"])
	}
}

func TestApplyFilters_InactiveFacets(t *testing.T) {
	tests := []struct {
		name   string
		facets map[string]string
	}{
		{"all and empty", map[string]string{"category": AllValue, "pricing": ""}},
		{"unconfigured facet", map[string]string{"vendor": "nobody"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyFilters(aiTools(), FilterState{Facets: tt.facets}, toolMapping, toolFilters)
			if len(got) != 25 {
				t.Errorf("len = %d, want 25", len(got))
			}
		})
	}
}

func TestApplyFilters_SubsetAndPredicates(t *testing.T) {
	items := aiTools()
	state := FilterState{SearchTerm: "a", Facets: map[string]string{"pricing": "Paid"}}
	got := ApplyFilters(items, state, toolMapping, toolFilters)
	if len(got) == 0 {
		t.Fatal("expected matches")
	}

	prev := -1
	for _, it := range got {
		idx := indexOf(items, it)
		if idx < 0 {
			t.Fatalf("item %v not from input", it)
		}
		if idx <= prev {
			t.Errorf("order not preserved: index %d after %d", idx, prev)
		}
		prev = idx
		if p := toolMapping.String(it, "pricing"); p != "Paid" {
			t.Errorf("pricing = %q, want Paid", p)
		}
	}
}

func indexOf(items []Item, target Item) int {
	for i := range items {
		if fmt.Sprint(items[i]) == fmt.Sprint(target) {
			return i
		}
	}
	return -1
}

func ptr(f float64) *float64 { return &f }

var gadgetFilters = FilterConfig{
	Ranges: []RangeFilter{{
		Name:      "price",
		Attribute: "price",
		Buckets: []Bucket{
			{Name: "budget", Max: ptr(100)},
			{Name: "mid-range", Min: ptr(100), Max: ptr(500)},
			{Name: "premium", Min: ptr(500)},
		},
	}},
}

func TestApplyFilters_PriceBuckets(t *testing.T) {
	mapping := FieldMapping{"price": {"price", "Price"}}
	items := []Item{
		{"name": "Earbuds", "price": "$89.99"},
		{"name": "Tablet", "price": "$450"},
		{"name": "Prototype", "price": "N/A"},
		{"name": "Laptop", "Price": "$1,299.00"},
		{"name": "Cable", "price": 9.0},
		{"name": "Missing"},
	}

	tests := []struct {
		bucket string
		want   []string
	}{
		{"budget", []string{"Earbuds", "Cable"}},
		{"mid-range", []string{"Tablet"}},
		{"premium", []string{"Laptop"}},
		{"luxury", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.bucket, func(t *testing.T) {
			got := ApplyFilters(items, FilterState{Ranges: map[string]string{"price": tt.bucket}}, mapping, gadgetFilters)
			if got == nil {
				t.Fatal("ApplyFilters returned nil")
			}
			if n := names(got); !slices.Equal(n, tt.want) {
				t.Errorf("names = %v, want %v", n, tt.want)
			}
		})
	}
}

func names(items []Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, Stringify(it["name"]))
	}
	return out
}

func TestBucketContains(t *testing.T) {
	b := Bucket{Min: ptr(100), Max: ptr(500)}
	tests := []struct {
		bucket Bucket
		v      float64
		want   bool
	}{
		{b, 100, true},
		{b, 500, false},
		{b, 99.99, false},
		{Bucket{Min: ptr(100), Max: ptr(500), MaxInclusive: true}, 500, true},
		{Bucket{}, -42, true},
	}
	for _, tt := range tests {
		if got := tt.bucket.Contains(tt.v); got != tt.want {
			t.Errorf("Contains(%v) with MaxInclusive=%v = %v, want %v", tt.v, tt.bucket.MaxInclusive, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"$89.99", 89.99, true},
		{"$450", 450, true},
		{"1,299", 1299, true},
		{"4.5/5", 4.55, true},
		{"-3", -3, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"1.2.3", 0, false},
		{"$", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ParseNumber(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFilterStateIsEmptyAndClone(t *testing.T) {
	s := EmptyFilterState()
	if !s.IsEmpty() {
		t.Error("EmptyFilterState().IsEmpty() = false")
	}

	s.Facets["category"] = AllValue
	if !s.IsEmpty() {
		t.Error("state with only \"all\" facets should be empty")
	}

	s.SearchTerm = "x"
	if s.IsEmpty() {
		t.Error("state with a search term should not be empty")
	}

	c := s.Clone()
	c.Facets["category"] = "Design"
	if s.Facets["category"] != AllValue {
		t.Errorf("Clone shares facets: original = %q", s.Facets["category"])
	}
}

func TestDistinctValues(t *testing.T) {
	got := DistinctValues(aiTools(), toolMapping, AttrCategory)
	want := []string{"Assistant", "Design", "Support", "Writing"}
	if !slices.Equal(got, want) {
		t.Errorf("DistinctValues = %v, want %v", got, want)
	}
	if got := DistinctValues(nil, toolMapping, AttrCategory); len(got) != 0 {
		t.Errorf("DistinctValues(nil) = %v, want empty", got)
	}
}
