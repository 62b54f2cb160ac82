// Package plugin defines the lifecycle contract of Curio modules. Every content
// page is a plugin mounted under /api/v1/{name}.
package plugin

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/HerbHall/curio/internal/config"
	"github.com/HerbHall/curio/internal/event"
	"github.com/HerbHall/curio/internal/scheduler"
)

// Route represents an HTTP route exposed by a plugin.
type Route struct {
	Method  string
	Path    string
	Handler http.HandlerFunc
}

// Scheduler registers periodic tasks.
type Scheduler interface {
	RegisterTask(cfg scheduler.TaskConfig) error
}

// Dependencies are handed to a plugin at Init.
type Dependencies struct {
	Config    *config.Config // the plugin's own "plugins.<name>" subtree
	Logger    *zap.Logger
	Bus       *event.Bus
	Scheduler Scheduler
}

// Plugin is implemented by every Curio module.
type Plugin interface {
	// Name returns the plugin's unique identifier (e.g., "movies").
	Name() string

	// Version returns the plugin's semantic version.
	Version() string

	// Description is a one-line summary for the plugin listing.
	Description() string

	// Init wires dependencies and reads configuration.
	Init(ctx context.Context, deps Dependencies) error

	// Start begins background work.
	Start(ctx context.Context) error

	// Stop ends background work; in-flight loads are abandoned.
	Stop(ctx context.Context) error

	// Routes returns the HTTP routes this plugin exposes.
	Routes() []Route
}
