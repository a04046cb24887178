package component

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stub struct {
	name    string
	initErr error
	inited  bool
}

func (s *stub) Name() string         { return s.name }
func (s *stub) Migrations() []string { return []string{"CREATE TABLE IF NOT EXISTS x (id INT)"} }
func (s *stub) Init(Deps) error      { s.inited = true; return s.initErr }
func (s *stub) Routes(r chi.Router) {
	r.Get("/"+s.name, func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
}

func reset(t *testing.T) {
	t.Helper()
	mu.Lock()
	saved := registry
	registry = map[string]Component{}
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		registry = saved
		mu.Unlock()
	})
}

func TestAll_SortedByName(t *testing.T) {
	reset(t)
	Register(&stub{name: "zeta"})
	Register(&stub{name: "alpha"})

	all := All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name())
	assert.Equal(t, "zeta", all[1].Name())
}

func TestMount_InitsAndRoutes(t *testing.T) {
	reset(t)
	s := &stub{name: "demo"}
	Register(s)

	r := chi.NewRouter()
	require.NoError(t, Mount(context.Background(), r, Deps{})) // no DB: migrations skipped
	assert.True(t, s.inited)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/demo", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMount_InitErrorStops(t *testing.T) {
	reset(t)
	Register(&stub{name: "bad", initErr: errors.New("boom")})
	err := Mount(context.Background(), chi.NewRouter(), Deps{})
	require.ErrorContains(t, err, "component bad init")
}
