// Package pages turns the generic list engine into the site's content pages.
// Each page is a plugin: it loads its tabs' datasets, refreshes them on a
// schedule and serves stateless queries plus per-viewer sessions.
package pages

import (
	"github.com/HerbHall/curio/pkg/content"
)

// Kind selects where a page's data comes from.
type Kind string

const (
	// KindRemote pages fetch one JSON list per tab.
	KindRemote Kind = "remote"
	// KindNews pages read the news repository.
	KindNews Kind = "news"
	// KindGadgets pages read the gadget repository.
	KindGadgets Kind = "gadgets"
)

// TabDefinition declares one tab of a page.
type TabDefinition struct {
	ID    string
	Label string
	// ItemsKey is the default wrapper key of the tab's remote list.
	ItemsKey string
}

// Definition is everything a content page declares. The engine does the rest.
type Definition struct {
	Name        string
	Title       string
	Description string
	Kind        Kind
	DefaultTab  string
	Tabs        []TabDefinition
	Mapping     content.FieldMapping
	Filters     content.FilterConfig
	PerPage     int
	Layout      content.Layout
	// Fallback names an embedded catalog list prepended to live results.
	Fallback string
}

// ViewConfig returns the engine configuration shared by every tab.
func (d Definition) ViewConfig() content.ViewConfig {
	return content.ViewConfig{
		Mapping: d.Mapping,
		Filters: d.Filters,
		PerPage: d.PerPage,
		Layout:  d.Layout,
	}
}

// TabSpecs returns one engine tab per declared tab.
func (d Definition) TabSpecs() []content.TabSpec {
	specs := make([]content.TabSpec, 0, len(d.Tabs))
	for _, t := range d.Tabs {
		specs = append(specs, content.TabSpec{ID: t.ID, Label: t.Label, View: d.ViewConfig()})
	}
	return specs
}

// HasTab reports whether id is a declared tab.
func (d Definition) HasTab(id string) bool {
	for _, t := range d.Tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}

var titleCandidates = []string{"title", "name", "Toolname", "Name", "Title"}

func fptr(f float64) *float64 { return &f }

// Movies lists movies and TV with four parallel datasets.
func Movies() Definition {
	return Definition{
		Name:        "movies",
		Title:       "Movies & TV",
		Description: "Curated movies, TV shows, the ultimate list and what is trending",
		Kind:        KindRemote,
		DefaultTab:  "movies",
		Tabs: []TabDefinition{
			{ID: "movies", Label: "Movies"},
			{ID: "tv", Label: "TV Shows"},
			{ID: "ultimate", Label: "Ultimate List"},
			{ID: "trending", Label: "Trending"},
		},
		Mapping: content.FieldMapping{
			content.AttrTitle:       titleCandidates,
			content.AttrDescription: {"description", "Description", "Plot", "plot", "Summary", "overview"},
			content.AttrCategory:    {"genre", "Genre", "category", "Category", "Type"},
			content.AttrLink:        {"link", "Link", "IMDB Link", "url", "URL"},
			content.AttrRating:      {"rating", "Rating", "IMDB Rating", "imdbRating", "vote_average"},
			content.AttrImage:       {"poster", "Poster", "image", "Image", "poster_path"},
			content.AttrPlatform:    {"platform", "Platform", "Streaming", "Network"},
		},
		Filters: content.FilterConfig{
			SearchFields: []content.Attribute{content.AttrTitle, content.AttrDescription, content.AttrCategory},
			Facets: []content.Facet{
				{Name: "genre", Attribute: content.AttrCategory},
				{Name: "platform", Attribute: content.AttrPlatform},
			},
			Ranges: []content.RangeFilter{{
				Name:      "rating",
				Attribute: content.AttrRating,
				Buckets: []content.Bucket{
					{Name: "great", Min: fptr(8)},
					{Name: "good", Min: fptr(6.5), Max: fptr(8)},
					{Name: "mixed", Max: fptr(6.5)},
				},
			}},
		},
		PerPage: 12,
		Layout:  content.Layout{Strategy: content.StrategyTransform, Rows: 2, ColumnWidthPx: 220},
	}
}

// AITools lists AI tools with category, platform and pricing facets.
func AITools() Definition {
	return Definition{
		Name:        "aitools",
		Title:       "AI Tools",
		Description: "A directory of AI tools",
		Kind:        KindRemote,
		DefaultTab:  "tools",
		Tabs:        []TabDefinition{{ID: "tools", Label: "All Tools"}},
		Mapping: content.FieldMapping{
			content.AttrTitle:       titleCandidates,
			content.AttrDescription: {"description", "Description", "Purpose", "purpose"},
			content.AttrCategory:    {"category", "Category"},
			content.AttrLink:        {"link", "Link", "url", "URL", "Website"},
			content.AttrRating:      {"rating", "Rating"},
			content.AttrImage:       {"logo", "Logo", "image", "Image"},
			content.AttrPlatform:    {"platform", "Platform"},
			content.AttrPricing:     {"pricing", "Pricing", "Price Model", "Cost"},
		},
		Filters: content.FilterConfig{
			SearchFields: []content.Attribute{content.AttrTitle, content.AttrDescription, content.AttrCategory},
			Facets: []content.Facet{
				{Name: "category", Attribute: content.AttrCategory},
				{Name: "platform", Attribute: content.AttrPlatform},
				{Name: "pricing", Attribute: content.AttrPricing},
			},
		},
		PerPage: 12,
		Layout:  content.Layout{Strategy: content.StrategySlice, Rows: 2},
	}
}

// YouTube lists channels, merging the embedded fallback list with live ones.
func YouTube() Definition {
	return Definition{
		Name:        "youtube",
		Title:       "YouTube Channels",
		Description: "Recommended tech YouTube channels",
		Kind:        KindRemote,
		DefaultTab:  "channels",
		Tabs:        []TabDefinition{{ID: "channels", Label: "Channels", ItemsKey: "channels"}},
		Mapping: content.FieldMapping{
			content.AttrTitle:       titleCandidates,
			content.AttrDescription: {"description", "Description", "About"},
			content.AttrCategory:    {"category", "Category", "Topic"},
			content.AttrLink:        {"link", "Link", "url", "Channel URL"},
			content.AttrRating:      {"subscribers", "Subscribers"},
			content.AttrImage:       {"thumbnail", "Thumbnail", "image", "avatar"},
		},
		Filters: content.FilterConfig{
			SearchFields: []content.Attribute{content.AttrTitle, content.AttrDescription, content.AttrCategory},
			Facets:       []content.Facet{{Name: "category", Attribute: content.AttrCategory}},
		},
		PerPage:  6,
		Layout:   content.Layout{Strategy: content.StrategySlice, Rows: 1},
		Fallback: "youtube",
	}
}

// TechNews lists stored articles, newest first.
func TechNews() Definition {
	return Definition{
		Name:        "technews",
		Title:       "Tech News",
		Description: "Latest technology headlines from RSS feeds",
		Kind:        KindNews,
		DefaultTab:  "latest",
		Tabs:        []TabDefinition{{ID: "latest", Label: "Latest"}},
		Mapping: content.FieldMapping{
			content.AttrTitle:       {"title"},
			content.AttrDescription: {"description"},
			content.AttrCategory:    {"category"},
			content.AttrLink:        {"link"},
			content.AttrImage:       {"image"},
			content.AttrSource:      {"source"},
			content.AttrPublishedAt: {"published_at"},
		},
		Filters: content.FilterConfig{
			SearchFields: []content.Attribute{content.AttrTitle, content.AttrDescription, content.AttrSource},
			Facets: []content.Facet{
				{Name: "source", Attribute: content.AttrSource},
				{Name: "category", Attribute: content.AttrCategory},
			},
		},
		PerPage: 12,
		Layout:  content.Layout{Strategy: content.StrategySlice, Rows: 3},
	}
}

// SmartTech lists stored gadgets with price buckets.
func SmartTech() Definition {
	return Definition{
		Name:        "smarttech",
		Title:       "Smart Tech",
		Description: "Gadgets and smart-home devices",
		Kind:        KindGadgets,
		DefaultTab:  "gadgets",
		Tabs:        []TabDefinition{{ID: "gadgets", Label: "Gadgets"}},
		Mapping: content.FieldMapping{
			content.AttrTitle:       {"name"},
			content.AttrDescription: {"description"},
			content.AttrCategory:    {"category"},
			content.AttrLink:        {"link"},
			content.AttrRating:      {"rating"},
			content.AttrImage:       {"image"},
			content.AttrBrand:       {"brand"},
			content.AttrPrice:       {"price"},
		},
		Filters: content.FilterConfig{
			SearchFields: []content.Attribute{content.AttrTitle, content.AttrDescription, content.AttrBrand},
			Facets: []content.Facet{
				{Name: "category", Attribute: content.AttrCategory},
				{Name: "brand", Attribute: content.AttrBrand},
			},
			Ranges: []content.RangeFilter{{
				Name:      "price",
				Attribute: content.AttrPrice,
				Buckets: []content.Bucket{
					{Name: "budget", Max: fptr(100)},
					{Name: "mid-range", Min: fptr(100), Max: fptr(500)},
					{Name: "premium", Min: fptr(500)},
				},
			}},
		},
		PerPage: 12,
		Layout:  content.Layout{Strategy: content.StrategySlice, Rows: 2},
	}
}

// All returns every built-in page definition.
func All() []Definition {
	return []Definition{Movies(), AITools(), YouTube(), TechNews(), SmartTech()}
}
