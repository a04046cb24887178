// internal/session/session.go
//
// Session-bound sign-in forms.
//
// Context
//   Every browser that opens the sign-in page gets its own
//   signin.Controller, keyed by a random ID carried in the “signin_sid”
//   cookie.  The cookie holds nothing but that ID; credentials stay in the
//   controller, in memory.
//
//   Controllers live in an LRU bounded by session.max_entries.  A
//   background evictor started with Run closes controllers idle longer
//   than session.idle_ttl.  Closing is how a form is unmounted: its
//   credentials are wiped, and a reply still in flight is dropped when it
//   lands.
//
// Workflow
//   •  store.Acquire(w, r)  → existing controller, or a new one plus cookie.
//   •  store.Run(ctx, every) → sweep loop; returns when ctx is done and
//      closes every remaining controller.
//
//------------------------------------------------------------------------------

package session

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yanizio/signin/internal/cache"
	"github.com/yanizio/signin/internal/metrics"
	"github.com/yanizio/signin/internal/signin"
)

// CookieName is the session cookie carrying the form ID.
const CookieName = "signin_sid"

// Factory builds a fresh controller for a new session.
type Factory func() *signin.Controller

// Options bound the store.
type Options struct {
	IdleTTL      time.Duration
	MaxEntries   int
	SecureCookie bool // set Secure even when the request arrived over plain HTTP
}

type entry struct {
	ctrl     *signin.Controller
	lastSeen atomic.Int64 // unix nanos
}

// Store maps session IDs to controllers.  Safe for concurrent use.
type Store struct {
	opts    Options
	factory Factory
	now     func() time.Time
	forms   *cache.LRU[string, *entry]
}

// New returns an empty Store.  MaxEntries < 1 is treated as 1.
func New(opts Options, factory Factory) *Store {
	if opts.MaxEntries < 1 {
		opts.MaxEntries = 1
	}
	s := &Store{opts: opts, factory: factory, now: time.Now}
	s.forms = cache.NewWithEvict(opts.MaxEntries, s.evicted)
	return s
}

// Acquire returns the caller's controller, creating one (and setting the
// cookie) when the request carries no known session.
func (s *Store) Acquire(w http.ResponseWriter, r *http.Request) (string, *signin.Controller) {
	if c, err := r.Cookie(CookieName); err == nil {
		if ctrl, ok := s.Lookup(c.Value); ok {
			return c.Value, ctrl
		}
	}

	id := uuid.NewString()
	e := &entry{ctrl: s.factory()}
	e.lastSeen.Store(s.now().UnixNano())
	s.forms.Add(id, e)
	metrics.ActiveSessions.Set(float64(s.forms.Len()))

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookie || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	zap.S().Debugw("sign-in session created", "sid", id)
	return id, e.ctrl
}

// Lookup returns the live controller for id and marks it as recently used.
func (s *Store) Lookup(id string) (*signin.Controller, bool) {
	e, ok := s.forms.Get(id)
	if !ok || e.ctrl.Closed() {
		return nil, false
	}
	e.lastSeen.Store(s.now().UnixNano())
	return e.ctrl, true
}

// Remove unmounts the form for id, if present.
func (s *Store) Remove(id string) bool { return s.forms.Remove(id) }

// Len reports the number of live forms.
func (s *Store) Len() int { return s.forms.Len() }

// Sweep closes forms idle longer than IdleTTL and returns how many it
// closed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.opts.IdleTTL).UnixNano()
	return s.forms.Prune(func(_ string, e *entry) bool {
		return e.lastSeen.Load() < cutoff
	})
}

// Run sweeps every interval until ctx is done, then closes every remaining
// form.  It always returns nil so it can sit in an errgroup.
func (s *Store) Run(ctx context.Context, every time.Duration) error {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			n := s.forms.Len()
			s.forms.Purge()
			zap.S().Infow("session evictor stopped", "closed", n)
			return nil
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				zap.S().Debugw("idle sign-in sessions evicted", "count", n)
			}
		}
	}
}

// evicted is the LRU callback for every departing form.
func (s *Store) evicted(id string, e *entry) {
	e.ctrl.Close()
	metrics.SessionEvictTotal.Inc()
	metrics.ActiveSessions.Set(float64(s.forms.Len()))
	zap.S().Debugw("sign-in session closed", "sid", id)
}
