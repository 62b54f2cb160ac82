package content

import (
	"errors"
	"fmt"
)

// ErrUnknownTab is returned when selecting a tab that was never declared.
var ErrUnknownTab = errors.New("unknown tab")

// TabSpec declares one tab and the configuration of its view.
type TabSpec struct {
	ID    string
	Label string
	View  ViewConfig
}

// Tabs selects which of several parallel views is active. Each tab owns its
// own View, so switching tabs never touches another tab's filters or cursor.
type Tabs struct {
	order  []string
	labels map[string]string
	views  map[string]*View
	active string
}

// NewTabs builds a controller with defaultTab active. It fails if no tabs are
// declared, an id repeats, or defaultTab is not among them.
func NewTabs(defaultTab string, specs ...TabSpec) (*Tabs, error) {
	if len(specs) == 0 {
		return nil, errors.New("tabs: no tabs declared")
	}
	t := &Tabs{
		labels: make(map[string]string, len(specs)),
		views:  make(map[string]*View, len(specs)),
	}
	for _, s := range specs {
		if _, dup := t.views[s.ID]; dup {
			return nil, fmt.Errorf("tabs: duplicate tab %q", s.ID)
		}
		t.order = append(t.order, s.ID)
		t.labels[s.ID] = s.Label
		t.views[s.ID] = NewView(s.View)
	}
	if _, ok := t.views[defaultTab]; !ok {
		return nil, fmt.Errorf("tabs: default %w %q", ErrUnknownTab, defaultTab)
	}
	t.active = defaultTab
	return t, nil
}

// SetActive switches to tab id.
func (t *Tabs) SetActive(id string) error {
	if _, ok := t.views[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTab, id)
	}
	t.active = id
	return nil
}

// ActiveID returns the active tab id.
func (t *Tabs) ActiveID() string { return t.active }

// Active returns the active tab's view.
func (t *Tabs) Active() *View { return t.views[t.active] }

// View returns the view of tab id.
func (t *Tabs) View(id string) (*View, bool) {
	v, ok := t.views[id]
	return v, ok
}

// IDs returns tab ids in declaration order.
func (t *Tabs) IDs() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Label returns the display label of tab id.
func (t *Tabs) Label(id string) string { return t.labels[id] }
