package pages

import (
	"context"
	"fmt"

	"github.com/HerbHall/curio/internal/fetch"
	"github.com/HerbHall/curio/internal/services"
	"github.com/HerbHall/curio/pkg/content"
)

// Loader produces a page's datasets keyed by tab id.
type Loader interface {
	Load(ctx context.Context) (map[string][]content.Item, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (map[string][]content.Item, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context) (map[string][]content.Item, error) { return f(ctx) }

// RemoteLoader fetches one list per tab. Tabs without a source load empty.
// A failed source degrades to an empty tab without affecting the others.
type RemoteLoader struct {
	Client   *fetch.Client
	Sources  map[string]fetch.Source
	Tabs     []string
	Fallback map[string][]content.Item
}

// Load fans out over every configured source.
func (l *RemoteLoader) Load(ctx context.Context) (map[string][]content.Item, error) {
	sources := make([]fetch.Source, 0, len(l.Sources))
	for _, tab := range l.Tabs {
		if src, ok := l.Sources[tab]; ok {
			sources = append(sources, src)
		}
	}

	fetched := l.Client.FetchAll(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(map[string][]content.Item, len(l.Tabs))
	for _, tab := range l.Tabs {
		var live []content.Item
		if src, ok := l.Sources[tab]; ok {
			live = fetched[src.Name]
		}
		out[tab] = fetch.WithFallback(l.Fallback[tab], live)
	}
	return out, nil
}

// NewsLoader reads the newest articles into a single tab.
type NewsLoader struct {
	Repo services.NewsRepository
	Tab  string
}

// Load queries up to services.MaxLimit articles.
func (l *NewsLoader) Load(ctx context.Context) (map[string][]content.Item, error) {
	res, err := l.Repo.Query(ctx, services.Query{Limit: services.MaxLimit})
	if err != nil {
		return nil, fmt.Errorf("load news: %w", err)
	}
	items := make([]content.Item, 0, len(res.Items))
	for _, a := range res.Items {
		items = append(items, a.Item())
	}
	return map[string][]content.Item{l.Tab: items}, nil
}

// GadgetLoader reads every gadget into a single tab.
type GadgetLoader struct {
	Repo services.GadgetRepository
	Tab  string
}

// Load queries up to services.MaxLimit gadgets.
func (l *GadgetLoader) Load(ctx context.Context) (map[string][]content.Item, error) {
	res, err := l.Repo.Query(ctx, services.Query{Limit: services.MaxLimit})
	if err != nil {
		return nil, fmt.Errorf("load gadgets: %w", err)
	}
	items := make([]content.Item, 0, len(res.Items))
	for _, g := range res.Items {
		items = append(items, g.Item())
	}
	return map[string][]content.Item{l.Tab: items}, nil
}
