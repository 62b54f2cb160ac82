package pages

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/config"
	"github.com/HerbHall/curio/internal/event"
	"github.com/HerbHall/curio/internal/fetch"
	"github.com/HerbHall/curio/internal/plugin"
	"github.com/HerbHall/curio/internal/scheduler"
	"github.com/HerbHall/curio/internal/services"
	"github.com/HerbHall/curio/pkg/catalog"
	"github.com/HerbHall/curio/pkg/content"
)

const (
	pageVersion        = "1.0.0"
	defaultRefreshCron = "0 * * * *"
	defaultSweepCron   = "*/5 * * * *"
)

// Backends are the shared collaborators a page may load from.
type Backends struct {
	Fetch   *fetch.Client
	Catalog *catalog.Catalog
	News    services.NewsRepository
	Gadgets services.GadgetRepository

	SessionTTL time.Duration
	SweepCron  string
	Now        func() time.Time

	// Loader replaces the loader derived from the page kind.
	Loader Loader
}

// dataset is one committed load. Item slices are never mutated after commit.
type dataset struct {
	tabs     map[string][]content.Item
	version  uint64
	loadedAt time.Time
}

// Page is a content page plugin.
type Page struct {
	def      Definition
	backends Backends

	logger      *zap.Logger
	bus         *event.Bus
	sched       plugin.Scheduler
	loader      Loader
	refreshCron string
	sessions    *sessionStore

	mu        sync.RWMutex
	data      dataset
	committed uint64 // load generation of data
	lifetime  context.Context
	cancel    context.CancelFunc

	loads       atomic.Uint64
	wg          sync.WaitGroup
	unsubscribe func()
}

// Compile-time interface guard.
var _ plugin.Plugin = (*Page)(nil)

// New creates a page from its definition.
func New(def Definition, b Backends) *Page {
	return &Page{
		def:      def,
		backends: b,
		logger:   zap.NewNop(),
		sessions: newSessionStore(b.SessionTTL, b.Now),
		data:     dataset{tabs: map[string][]content.Item{}},
	}
}

func (p *Page) Name() string        { return p.def.Name }
func (p *Page) Version() string     { return pageVersion }
func (p *Page) Description() string { return p.def.Description }

// Definition returns the effective definition after configuration.
func (p *Page) Definition() Definition { return p.def }

// Init reads the page's configuration subtree and builds its loader.
func (p *Page) Init(_ context.Context, deps plugin.Dependencies) error {
	if deps.Logger != nil {
		p.logger = deps.Logger
	}
	p.bus = deps.Bus
	p.sched = deps.Scheduler

	cfg := deps.Config
	if n := cfg.GetInt("per_page"); n > 0 {
		p.def.PerPage = n
	}
	p.refreshCron = cfg.GetString("refresh_cron")
	if p.refreshCron == "" {
		p.refreshCron = defaultRefreshCron
	}

	loader, err := p.buildLoader(cfg)
	if err != nil {
		return err
	}
	p.loader = loader

	p.logger.Info("page initialized",
		zap.String("kind", string(p.def.Kind)),
		zap.Int("tabs", len(p.def.Tabs)),
		zap.Int("per_page", p.def.PerPage),
	)
	return nil
}

func (p *Page) buildLoader(cfg *config.Config) (Loader, error) {
	if p.backends.Loader != nil {
		return p.backends.Loader, nil
	}

	switch p.def.Kind {
	case KindNews:
		if p.backends.News == nil {
			return nil, fmt.Errorf("page %q: news repository not configured", p.def.Name)
		}
		return &NewsLoader{Repo: p.backends.News, Tab: p.def.DefaultTab}, nil

	case KindGadgets:
		if p.backends.Gadgets == nil {
			return nil, fmt.Errorf("page %q: gadget repository not configured", p.def.Name)
		}
		return &GadgetLoader{Repo: p.backends.Gadgets, Tab: p.def.DefaultTab}, nil

	case KindRemote:
		if p.backends.Fetch == nil {
			return nil, fmt.Errorf("page %q: fetch client not configured", p.def.Name)
		}
		itemsKey := cfg.GetString("items_key")
		sources := make(map[string]fetch.Source)
		for tab, url := range cfg.GetStringMapString("sources") {
			if !p.def.HasTab(tab) {
				return nil, fmt.Errorf("page %q: source for %w %q", p.def.Name, content.ErrUnknownTab, tab)
			}
			src := fetch.Source{Name: p.def.Name + "/" + tab, URL: url, ItemsKey: itemsKey}
			if src.ItemsKey == "" {
				src.ItemsKey = p.tabItemsKey(tab)
			}
			sources[tab] = src
		}

		fallback := map[string][]content.Item{}
		if p.def.Fallback != "" && p.backends.Catalog != nil {
			items, err := p.backends.Catalog.List(p.def.Fallback)
			if err != nil {
				return nil, fmt.Errorf("page %q: %w", p.def.Name, err)
			}
			fallback[p.def.DefaultTab] = items
		}

		tabs := make([]string, 0, len(p.def.Tabs))
		for _, t := range p.def.Tabs {
			tabs = append(tabs, t.ID)
		}
		if len(sources) == 0 {
			p.logger.Warn("no sources configured, tabs will only show fallback data")
		}
		return &RemoteLoader{Client: p.backends.Fetch, Sources: sources, Tabs: tabs, Fallback: fallback}, nil

	default:
		return nil, fmt.Errorf("page %q: unknown kind %q", p.def.Name, p.def.Kind)
	}
}

func (p *Page) tabItemsKey(tab string) string {
	for _, t := range p.def.Tabs {
		if t.ID == tab {
			return t.ItemsKey
		}
	}
	return ""
}

// Start runs the first load in the background and schedules refreshes and
// session sweeps.
func (p *Page) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.lifetime, p.cancel = ctx, cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Error("initial load failed", zap.Error(err))
		}
	}()

	if p.bus != nil && p.def.Kind != KindRemote {
		p.unsubscribe = p.bus.Subscribe(event.TopicIngestCompleted, p.onIngest)
	}

	if p.sched == nil {
		return nil
	}
	if err := p.sched.RegisterTask(scheduler.TaskConfig{
		ID:          "pages." + p.def.Name + ".refresh",
		Name:        p.def.Title + " refresh",
		Description: "Reloads every tab of the " + p.def.Name + " page",
		Cron:        p.refreshCron,
		Func:        p.Refresh,
	}); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}

	sweepCron := p.backends.SweepCron
	if sweepCron == "" {
		sweepCron = defaultSweepCron
	}
	if err := p.sched.RegisterTask(scheduler.TaskConfig{
		ID:          "pages." + p.def.Name + ".sessions",
		Name:        p.def.Title + " session sweep",
		Description: "Expires idle " + p.def.Name + " sessions",
		Cron:        sweepCron,
		Func: func(context.Context) error {
			if n := p.sessions.sweep(); n > 0 {
				p.logger.Debug("expired sessions", zap.Int("removed", n))
			}
			return nil
		},
	}); err != nil {
		return fmt.Errorf("register session sweep task: %w", err)
	}
	return nil
}

// Stop cancels in-flight loads; their results are discarded.
func (p *Page) Stop(_ context.Context) error {
	p.mu.RLock()
	cancel := p.cancel
	p.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
	p.wg.Wait()
	return nil
}

// onIngest reloads a store-backed page after its ingester stored new rows.
func (p *Page) onIngest(ctx context.Context, e event.Event) {
	payload, ok := e.Payload.(event.IngestPayload)
	if !ok || payload.Kind != string(p.def.Kind) || payload.Stored == 0 {
		return
	}
	if err := p.Refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Warn("refresh after ingest failed", zap.Error(err))
	}
}

// Refresh loads every tab and commits the result as one snapshot. A load that
// is cancelled, or that finishes after a newer load committed, is discarded.
func (p *Page) Refresh(ctx context.Context) error {
	if p.loader == nil {
		return fmt.Errorf("page %q: not initialized", p.def.Name)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.mu.RLock()
	lifetime := p.lifetime
	p.mu.RUnlock()
	if lifetime != nil {
		if err := lifetime.Err(); err != nil {
			return err
		}
		stop := context.AfterFunc(lifetime, cancel)
		defer stop()
	}

	gen := p.loads.Add(1)
	start := time.Now()

	data, err := p.loader.Load(ctx)
	if ctx.Err() != nil {
		p.logger.Debug("load cancelled, discarding result")
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("refresh %s: %w", p.def.Name, err)
	}

	counts, ok := p.commit(gen, data)
	if !ok {
		p.logger.Debug("newer load already committed, discarding result", zap.Uint64("generation", gen))
		return nil
	}

	p.logger.Info("page refreshed",
		zap.Any("counts", counts),
		zap.Duration("duration", time.Since(start)),
	)
	if p.bus != nil {
		_ = p.bus.Publish(ctx, event.Event{
			Topic:   event.TopicContentRefreshed,
			Source:  p.def.Name,
			Payload: event.RefreshedPayload{Page: p.def.Name, Counts: counts},
		})
	}
	return nil
}

func (p *Page) commit(gen uint64, loaded map[string][]content.Item) (map[string]int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if gen <= p.committed {
		return nil, false
	}

	tabs := make(map[string][]content.Item, len(p.def.Tabs))
	counts := make(map[string]int, len(p.def.Tabs))
	for _, t := range p.def.Tabs {
		items := loaded[t.ID]
		if items == nil {
			items = []content.Item{}
		}
		tabs[t.ID] = items
		counts[t.ID] = len(items)
	}

	p.data = dataset{tabs: tabs, version: p.data.version + 1, loadedAt: p.now()}
	p.committed = gen
	return counts, true
}

func (p *Page) snapshot() dataset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.data
}

// Counts returns the number of loaded items per tab.
func (p *Page) Counts() map[string]int {
	d := p.snapshot()
	out := make(map[string]int, len(d.tabs))
	for tab, items := range d.tabs {
		out[tab] = len(items)
	}
	return out
}

func (p *Page) now() time.Time {
	if p.backends.Now != nil {
		return p.backends.Now()
	}
	return time.Now()
}

// newTabs builds a tab controller over the current dataset.
func (p *Page) newTabs(d dataset) (*content.Tabs, error) {
	tabs, err := content.NewTabs(p.def.DefaultTab, p.def.TabSpecs()...)
	if err != nil {
		return nil, err
	}
	for _, id := range tabs.IDs() {
		v, _ := tabs.View(id)
		v.SetItems(d.tabs[id])
	}
	return tabs, nil
}

// syncSession moves a session onto the latest dataset. Filters and cursors
// are kept; cursors are re-clamped.
func (p *Page) syncSession(s *Session) {
	d := p.snapshot()
	if s.version == d.version {
		return
	}
	for _, id := range s.tabs.IDs() {
		v, _ := s.tabs.View(id)
		v.SetItems(d.tabs[id])
	}
	s.version = d.version
}
