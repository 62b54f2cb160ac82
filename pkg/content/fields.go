// Package content implements the generic list engine shared by every content
// page: field resolution over loosely typed records, filtering, pagination with
// windowed-carousel geometry, and per-tab state.
package content

import (
	"strconv"
	"strings"
)

// Item is a loosely typed record as decoded from a remote JSON list. Field
// names vary per endpoint, so attributes are always read through a FieldMapping.
type Item map[string]any

// Attribute names a logical attribute resolved from an Item.
type Attribute string

// Logical attributes shared across content types.
const (
	AttrTitle       Attribute = "title"
	AttrDescription Attribute = "description"
	AttrCategory    Attribute = "category"
	AttrLink        Attribute = "link"
	AttrRating      Attribute = "rating"
	AttrImage       Attribute = "image"
)

// Page-specific attributes.
const (
	AttrPlatform    Attribute = "platform"
	AttrPricing     Attribute = "pricing"
	AttrPrice       Attribute = "price"
	AttrBrand       Attribute = "brand"
	AttrSource      Attribute = "source"
	AttrPublishedAt Attribute = "published_at"
)

// Placeholder values used when none of an attribute's candidates are present.
const (
	DefaultTitle = "Untitled"
	DefaultLink  = "#"
)

// Resolve returns the value of the first key in candidates that exists in item
// and is neither nil nor a blank string. If no candidate matches, def is
// returned.
func Resolve(item Item, candidates []string, def any) any {
	for _, key := range candidates {
		v, ok := item[key]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v
	}
	return def
}

// FieldMapping lists, per logical attribute, the raw field names to probe in
// order.
type FieldMapping map[Attribute][]string

// Default returns the placeholder for attr.
func (m FieldMapping) Default(attr Attribute) string {
	switch attr {
	case AttrTitle:
		return DefaultTitle
	case AttrLink:
		return DefaultLink
	default:
		return ""
	}
}

// Value resolves attr on item, falling back to the attribute default.
func (m FieldMapping) Value(item Item, attr Attribute) any {
	candidates, ok := m[attr]
	if !ok {
		candidates = []string{string(attr)}
	}
	return Resolve(item, candidates, m.Default(attr))
}

// String resolves attr on item and renders it as a string.
func (m FieldMapping) String(item Item, attr Attribute) string {
	return Stringify(m.Value(item, attr))
}

// Card is the canonical projection of an Item handed to the presentation layer.
type Card struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Link        string `json:"link"`
	Rating      string `json:"rating,omitempty"`
	Image       string `json:"image,omitempty"`
	Raw         Item   `json:"raw"`
}

// Canonical projects item into a Card.
func (m FieldMapping) Canonical(item Item) Card {
	return Card{
		Title:       m.String(item, AttrTitle),
		Description: m.String(item, AttrDescription),
		Category:    m.String(item, AttrCategory),
		Link:        m.String(item, AttrLink),
		Rating:      m.String(item, AttrRating),
		Image:       m.String(item, AttrImage),
		Raw:         item,
	}
}

// Cards projects every item in order.
func (m FieldMapping) Cards(items []Item) []Card {
	out := make([]Card, 0, len(items))
	for _, it := range items {
		out = append(out, m.Canonical(it))
	}
	return out
}

// Stringify renders a decoded JSON value. Numbers drop trailing zeros, so a
// rating decoded as 8.0 renders as "8".
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := Stringify(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}
