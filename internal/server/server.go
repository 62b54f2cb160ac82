package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/plugin"
	"github.com/HerbHall/curio/internal/version"
)

// Config holds the listener and rate limit settings.
type Config struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server is the main Curio HTTP server.
type Server struct {
	httpServer *http.Server
	registry   *plugin.Registry
	logger     *zap.Logger
	mux        *http.ServeMux
	gatherer   prometheus.Gatherer
	registerer prometheus.Registerer
	limiter    *ClientLimiter
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsRegistry serves and records metrics on reg instead of the
// default registry.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.registerer = reg
	}
}

// New creates a server and mounts core and plugin routes.
func New(cfg Config, reg *plugin.Registry, logger *zap.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		registry:   reg,
		logger:     logger,
		mux:        mux,
		gatherer:   prometheus.DefaultGatherer,
		registerer: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.RateLimitRPS > 0 {
		s.limiter = NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 0)
	}

	s.httpServer = &http.Server{
		Addr: cfg.Addr,
		Handler: Chain(mux,
			RequestLogger(logger),
			Metrics(NewHTTPMetrics(s.registerer)),
			RateLimit(s.limiter),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.registerCoreRoutes()
	s.mountPluginRoutes()

	return s
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/plugins", s.handlePlugins)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// mountPluginRoutes registers all plugin routes under /api/v1/{plugin}/.
func (s *Server) mountPluginRoutes() {
	allRoutes := s.registry.AllRoutes()
	for pluginName, routes := range allRoutes {
		for _, route := range routes {
			pattern := fmt.Sprintf("%s /api/v1/%s%s", route.Method, pluginName, route.Path)
			s.mux.HandleFunc(pattern, route.Handler)
			s.logger.Debug("mounted route",
				zap.String("plugin", pluginName),
				zap.String("pattern", pattern),
			)
		}
	}
}

// Handle mounts an extra handler, such as the live event stream.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("X-Curio-Version", version.Short())
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "curio",
		"version": version.Map(),
	})
}

// PluginInfo describes an enabled plugin.
type PluginInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// handlePlugins returns the enabled plugins.
func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	plugins := s.registry.Enabled()
	info := make([]PluginInfo, 0, len(plugins))
	for _, p := range plugins {
		info = append(info, PluginInfo{
			Name:        p.Name(),
			Version:     p.Version(),
			Description: p.Description(),
		})
	}
	w.Header().Set("X-Curio-Version", version.Short())
	WriteJSON(w, http.StatusOK, info)
}
