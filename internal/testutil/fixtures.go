package testutil

import (
	"fmt"

	"github.com/HerbHall/curio/pkg/content"
)

// NewItem returns a record with the given fields applied in order.
func NewItem(opts ...func(content.Item)) content.Item {
	item := content.Item{}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// WithField sets one raw field.
func WithField(key string, value any) func(content.Item) {
	return func(i content.Item) { i[key] = value }
}

// Movies returns n movie records shaped like the spreadsheet endpoint
// (Title, Genre, IMDB Rating). Genres cycle through Drama, Comedy, Sci-Fi.
func Movies(n int) []content.Item {
	genres := []string{"Drama", "Comedy", "Sci-Fi"}
	out := make([]content.Item, n)
	for i := range out {
		out[i] = NewItem(
			WithField("Title", fmt.Sprintf("Movie %02d", i+1)),
			WithField("Genre", genres[i%len(genres)]),
			WithField("IMDB Rating", 6.0+float64(i%4)),
			WithField("Description", fmt.Sprintf("Plot of movie %d", i+1)),
		)
	}
	return out
}

// Gadgets returns the three reference gadgets used by the price bucket tests:
// $89.99, $450 and $1,299.00.
func Gadgets() []content.Item {
	return []content.Item{
		{"name": "Smart Plug", "brand": "Kasa", "category": "Home", "price": "$89.99"},
		{"name": "Robot Vacuum", "brand": "Roborock", "category": "Home", "price": "$450"},
		{"name": "OLED TV", "brand": "LG", "category": "Entertainment", "price": "$1,299.00"},
	}
}
