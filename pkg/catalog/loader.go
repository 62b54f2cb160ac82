// Package catalog provides the embedded fallback lists that some pages merge
// with their live results.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/HerbHall/curio/pkg/content"
)

//go:embed fallback.yaml
var fallbackRawData []byte

// ErrUnknownList is returned for a list name absent from the embedded data.
var ErrUnknownList = errors.New("unknown fallback list")

// catalogFile is the top-level structure of the embedded YAML.
type catalogFile struct {
	Lists map[string][]map[string]any `yaml:"lists"`
}

// Catalog provides lazy-loaded access to the embedded fallback lists.
type Catalog struct {
	raw   []byte
	once  sync.Once
	lists map[string][]content.Item
	err   error
}

// NewCatalog creates a Catalog that parses the embedded YAML on first access.
func NewCatalog() *Catalog {
	return &Catalog{raw: fallbackRawData}
}

// NewCatalogFromYAML creates a Catalog over caller-supplied YAML.
func NewCatalogFromYAML(data []byte) *Catalog {
	return &Catalog{raw: data}
}

// List returns a copy of the named list.
func (c *Catalog) List(name string) ([]content.Item, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	items, ok := c.lists[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, name)
	}
	cp := make([]content.Item, len(items))
	for i, it := range items {
		dup := make(content.Item, len(it))
		for k, v := range it {
			dup[k] = v
		}
		cp[i] = dup
	}
	return cp, nil
}

// Names returns the sorted names of all lists.
func (c *Catalog) Names() ([]string, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	names := make([]string, 0, len(c.lists))
	for n := range c.lists {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// load parses the YAML catalog data.
func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(c.raw, &f); err != nil {
		c.err = fmt.Errorf("catalog: parse yaml: %w", err)
		return
	}
	c.lists = make(map[string][]content.Item, len(f.Lists))
	for name, records := range f.Lists {
		items := make([]content.Item, 0, len(records))
		for _, r := range records {
			items = append(items, normalize(r))
		}
		c.lists[name] = items
	}
}

// normalize converts YAML scalars to the shapes encoding/json produces, so
// fallback records behave exactly like fetched ones.
func normalize(r map[string]any) content.Item {
	it := make(content.Item, len(r))
	for k, v := range r {
		switch t := v.(type) {
		case int:
			it[k] = float64(t)
		case int64:
			it[k] = float64(t)
		default:
			it[k] = t
		}
	}
	return it
}
