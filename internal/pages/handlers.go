package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/plugin"
	"github.com/HerbHall/curio/internal/server"
	"github.com/HerbHall/curio/internal/services"
	"github.com/HerbHall/curio/pkg/content"
)

const maxBodyBytes = 64 << 10

// Parameters of GET /items that are not filter names.
var reservedItemParams = map[string]bool{"tab": true, "q": true, "page": true}

// ItemsResponse is the result of a stateless query.
type ItemsResponse struct {
	Name     string           `json:"name"`
	Tab      string           `json:"tab"`
	LoadedAt *time.Time       `json:"loaded_at,omitempty"`
	View     content.Snapshot `json:"view"`
}

// TabInfo describes one tab and its raw item count.
type TabInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TabsResponse lists a page's tabs.
type TabsResponse struct {
	Name       string     `json:"name"`
	Title      string     `json:"title"`
	DefaultTab string     `json:"default_tab"`
	Tabs       []TabInfo  `json:"tabs"`
	Version    uint64     `json:"version"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
}

// FacetsResponse lists the selectable values of one tab.
type FacetsResponse struct {
	Tab    string              `json:"tab"`
	Facets map[string][]string `json:"facets"`
	Ranges map[string][]string `json:"ranges"`
}

// SessionResponse is the full state of a viewer session.
type SessionResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	ActiveTab string           `json:"active_tab"`
	Tabs      []string         `json:"tabs"`
	View      content.Snapshot `json:"view"`
}

type tabRequest struct {
	Tab string `json:"tab"`
}

type searchRequest struct {
	Query string `json:"q"`
}

type facetRequest struct {
	Value string `json:"value"`
}

type rangeRequest struct {
	Bucket string `json:"bucket"`
}

// Routes returns the page's HTTP routes.
func (p *Page) Routes() []plugin.Route {
	routes := []plugin.Route{
		{Method: "GET", Path: "/items", Handler: p.handleItems},
		{Method: "GET", Path: "/tabs", Handler: p.handleTabs},
		{Method: "GET", Path: "/facets", Handler: p.handleFacets},
		{Method: "POST", Path: "/refresh", Handler: p.handleRefresh},
		{Method: "POST", Path: "/sessions", Handler: p.handleCreateSession},
		{Method: "GET", Path: "/sessions/{id}", Handler: p.handleGetSession},
		{Method: "DELETE", Path: "/sessions/{id}", Handler: p.handleDeleteSession},
		{Method: "PUT", Path: "/sessions/{id}/tab", Handler: p.handleSessionTab},
		{Method: "PUT", Path: "/sessions/{id}/search", Handler: p.handleSessionSearch},
		{Method: "PUT", Path: "/sessions/{id}/facets/{facet}", Handler: p.handleSessionFacet},
		{Method: "PUT", Path: "/sessions/{id}/ranges/{range}", Handler: p.handleSessionRange},
		{Method: "POST", Path: "/sessions/{id}/clear", Handler: p.handleSessionClear},
		{Method: "POST", Path: "/sessions/{id}/next", Handler: p.handleSessionNext},
		{Method: "POST", Path: "/sessions/{id}/prev", Handler: p.handleSessionPrev},
	}
	if p.def.Kind == KindNews || p.def.Kind == KindGadgets {
		routes = append(routes, plugin.Route{Method: "GET", Path: "/records", Handler: p.handleRecords})
	}
	return routes
}

// handleItems runs a stateless query against a fresh view.
func (p *Page) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tab := q.Get("tab")
	if tab == "" {
		tab = p.def.DefaultTab
	}
	if !p.def.HasTab(tab) {
		server.BadRequest(w, fmt.Sprintf("%s %q", content.ErrUnknownTab, tab), r.URL.Path)
		return
	}

	state, index, err := p.parseItemsQuery(q)
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	d := p.snapshot()
	view := content.NewView(p.def.ViewConfig())
	view.SetItems(d.tabs[tab])
	if err := view.Apply(state); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	view.SetIndex(index)

	server.WriteJSON(w, http.StatusOK, ItemsResponse{
		Name:     p.def.Name,
		Tab:      tab,
		LoadedAt: loadedAt(d),
		View:     view.Snapshot(),
	})
}

// parseItemsQuery maps query parameters onto a filter state. Any parameter
// that is not reserved must name a facet or range filter.
func (p *Page) parseItemsQuery(q url.Values) (content.FilterState, int, error) {
	state := content.EmptyFilterState()
	state.SearchTerm = q.Get("q")

	for key, values := range q {
		if reservedItemParams[key] || len(values) == 0 {
			continue
		}
		switch {
		case hasFacet(p.def.Filters, key):
			state.Facets[key] = values[0]
		case hasRange(p.def.Filters, key):
			state.Ranges[key] = values[0]
		default:
			return state, 0, fmt.Errorf("%w: %q", content.ErrUnknownFacet, key)
		}
	}

	index := 0
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return state, 0, fmt.Errorf("invalid page %q", raw)
		}
		index = n
	}
	return state, index, nil
}

func hasFacet(cfg content.FilterConfig, name string) bool {
	_, ok := cfg.Facet(name)
	return ok
}

func hasRange(cfg content.FilterConfig, name string) bool {
	_, ok := cfg.Range(name)
	return ok
}

// handleTabs lists tab ids with their raw counts.
func (p *Page) handleTabs(w http.ResponseWriter, _ *http.Request) {
	server.WriteJSON(w, http.StatusOK, p.tabsResponse())
}

func (p *Page) tabsResponse() TabsResponse {
	d := p.snapshot()
	tabs := make([]TabInfo, 0, len(p.def.Tabs))
	for _, t := range p.def.Tabs {
		tabs = append(tabs, TabInfo{ID: t.ID, Label: t.Label, Count: len(d.tabs[t.ID])})
	}
	return TabsResponse{
		Name:       p.def.Name,
		Title:      p.def.Title,
		DefaultTab: p.def.DefaultTab,
		Tabs:       tabs,
		Version:    d.version,
		LoadedAt:   loadedAt(d),
	}
}

func (p *Page) handleFacets(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		tab = p.def.DefaultTab
	}
	if !p.def.HasTab(tab) {
		server.BadRequest(w, fmt.Sprintf("%s %q", content.ErrUnknownTab, tab), r.URL.Path)
		return
	}

	items := p.snapshot().tabs[tab]
	resp := FacetsResponse{
		Tab:    tab,
		Facets: make(map[string][]string, len(p.def.Filters.Facets)),
		Ranges: make(map[string][]string, len(p.def.Filters.Ranges)),
	}
	for _, f := range p.def.Filters.Facets {
		resp.Facets[f.Name] = content.DistinctValues(items, p.def.Mapping, f.Attribute)
	}
	for _, rf := range p.def.Filters.Ranges {
		names := make([]string, 0, len(rf.Buckets))
		for _, b := range rf.Buckets {
			names = append(names, b.Name)
		}
		resp.Ranges[rf.Name] = names
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

// handleRefresh reloads the page synchronously.
func (p *Page) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := p.Refresh(r.Context()); err != nil {
		p.logger.Warn("refresh failed", zap.Error(err))
		server.Unavailable(w, "refresh failed", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, p.tabsResponse())
}

// handleRecords passes a column query through to the backing repository.
func (p *Page) handleRecords(w http.ResponseWriter, r *http.Request) {
	query, err := services.ParseQuery(r.URL.Query())
	if err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	var result any
	switch {
	case p.def.Kind == KindNews && p.backends.News != nil:
		result, err = p.backends.News.Query(r.Context(), query)
	case p.def.Kind == KindGadgets && p.backends.Gadgets != nil:
		result, err = p.backends.Gadgets.Query(r.Context(), query)
	default:
		server.Unavailable(w, "no repository configured", r.URL.Path)
		return
	}
	if err != nil {
		if errors.Is(err, services.ErrInvalidColumn) || errors.Is(err, services.ErrInvalidQuery) {
			server.BadRequest(w, err.Error(), r.URL.Path)
			return
		}
		p.logger.Error("records query failed", zap.Error(err))
		server.InternalError(w, "failed to query records", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, result)
}

func (p *Page) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}

	d := p.snapshot()
	tabs, err := p.newTabs(d)
	if err != nil {
		p.logger.Error("build session tabs", zap.Error(err))
		server.InternalError(w, "failed to create session", r.URL.Path)
		return
	}
	if req.Tab != "" {
		if err := tabs.SetActive(req.Tab); err != nil {
			server.BadRequest(w, err.Error(), r.URL.Path)
			return
		}
	}

	s := p.sessions.create(tabs, d.version)
	s.mu.Lock()
	resp := p.sessionResponse(s)
	s.mu.Unlock()
	server.WriteJSON(w, http.StatusCreated, resp)
}

func (p *Page) handleGetSession(w http.ResponseWriter, r *http.Request) {
	p.withSession(w, r, func(*Session) error { return nil })
}

func (p *Page) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !p.sessions.delete(r.PathValue("id")) {
		server.NotFound(w, ErrSessionNotFound.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (p *Page) handleSessionTab(w http.ResponseWriter, r *http.Request) {
	var req tabRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	p.withSession(w, r, func(s *Session) error {
		return s.tabs.SetActive(req.Tab)
	})
}

func (p *Page) handleSessionSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	p.withSession(w, r, func(s *Session) error {
		s.tabs.Active().SetSearch(req.Query)
		return nil
	})
}

func (p *Page) handleSessionFacet(w http.ResponseWriter, r *http.Request) {
	var req facetRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	facet := r.PathValue("facet")
	p.withSession(w, r, func(s *Session) error {
		return s.tabs.Active().SetFacet(facet, req.Value)
	})
}

func (p *Page) handleSessionRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := decodeBody(r, &req); err != nil {
		server.BadRequest(w, err.Error(), r.URL.Path)
		return
	}
	name := r.PathValue("range")
	p.withSession(w, r, func(s *Session) error {
		return s.tabs.Active().SetRange(name, req.Bucket)
	})
}

func (p *Page) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	p.withSession(w, r, func(s *Session) error {
		s.tabs.Active().ClearFilters()
		return nil
	})
}

func (p *Page) handleSessionNext(w http.ResponseWriter, r *http.Request) {
	p.withSession(w, r, func(s *Session) error {
		s.tabs.Active().Next()
		return nil
	})
}

func (p *Page) handleSessionPrev(w http.ResponseWriter, r *http.Request) {
	p.withSession(w, r, func(s *Session) error {
		s.tabs.Active().Prev()
		return nil
	})
}

// withSession resolves the session in the path, moves it onto the latest
// dataset, applies fn and writes the resulting state.
func (p *Page) withSession(w http.ResponseWriter, r *http.Request, fn func(*Session) error) {
	s, err := p.sessions.get(r.PathValue("id"))
	if err != nil {
		server.NotFound(w, err.Error(), r.URL.Path)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.syncSession(s)
	if err := fn(s); err != nil {
		if isSelectionError(err) {
			server.BadRequest(w, err.Error(), r.URL.Path)
			return
		}
		p.logger.Error("session update failed", zap.String("session", s.id), zap.Error(err))
		server.InternalError(w, "failed to update session", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, p.sessionResponse(s))
}

// sessionResponse renders s. The caller holds s.mu.
func (p *Page) sessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		ID:        s.id,
		Name:      p.def.Name,
		ActiveTab: s.tabs.ActiveID(),
		Tabs:      s.tabs.IDs(),
		View:      s.tabs.Active().Snapshot(),
	}
}

func isSelectionError(err error) bool {
	return errors.Is(err, content.ErrUnknownTab) ||
		errors.Is(err, content.ErrUnknownFacet) ||
		errors.Is(err, content.ErrUnknownRange) ||
		errors.Is(err, content.ErrUnknownBucket)
}

// decodeBody decodes an optional JSON body into dst. An empty body is not an
// error.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func loadedAt(d dataset) *time.Time {
	if d.loadedAt.IsZero() {
		return nil
	}
	t := d.loadedAt
	return &t
}
