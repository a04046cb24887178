// internal/component/registry.go
//
// Component registry (cycle-free).
//
// Each concrete component lives under components/<name> and calls
// component.Register() in an init() function.  At boot, Mount runs each
// component's migrations (when a database is configured), calls Init with
// the shared Deps, and lets the component add its routes to the router.

package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/yanizio/signin/internal/audit"
	"github.com/yanizio/signin/internal/config"
	"github.com/yanizio/signin/internal/database"
	"github.com/yanizio/signin/internal/form"
	"github.com/yanizio/signin/internal/requestinfo"
	"github.com/yanizio/signin/internal/session"
	"github.com/yanizio/signin/internal/view"
)

// Deps exposes process-wide resources to Components during Init.
// DB and Audit are nil when database.dsn is unset.
type Deps struct {
	Config   *config.Config
	Log      *zap.SugaredLogger
	Views    *view.Engine
	Sessions *session.Store
	CSRF     *form.Signer
	Info     *requestinfo.Enricher
	DB       *sqlx.DB
	Audit    audit.Recorder
}

// Initializer is optional.  If a Component implements it, Mount calls
// Init(deps) once before Routes.
type Initializer interface {
	Init(Deps) error
}

// Component contract.
//
// Migrations() may return nil if the component has no schema.
// Routes() adds BOTH page and API endpoints, e.g:
//
//	r.Get("/signin", getSignin)
//	r.Route("/api", func(api chi.Router) { ... })
type Component interface {
	Name() string
	Routes(r chi.Router)
	Migrations() []string
}

var (
	mu       sync.RWMutex
	registry = map[string]Component{}
)

// Register is invoked from component init() functions.
func Register(c Component) {
	mu.Lock()
	registry[c.Name()] = c
	mu.Unlock()
}

// All returns every registered component sorted by name.
func All() []Component {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Component, 0, len(registry))
	for _, c := range registry {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Mount migrates, initialises, and routes every registered component.
func Mount(ctx context.Context, r chi.Router, deps Deps) error {
	for _, c := range All() {
		if deps.DB != nil {
			if err := database.Migrate(ctx, deps.DB, c.Migrations()); err != nil {
				return fmt.Errorf("component %s: %w", c.Name(), err)
			}
		}
		if in, ok := c.(Initializer); ok {
			if err := in.Init(deps); err != nil {
				return fmt.Errorf("component %s init: %w", c.Name(), err)
			}
		}
		c.Routes(r)
		if deps.Log != nil {
			deps.Log.Infow("component mounted", "component", c.Name())
		}
	}
	return nil
}
