// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadHeaderTimeout – abort slow-loris headers (5 s)
//   • ReadTimeout       – cap body upload time (10 s)
//   • WriteTimeout      – cap total response time
//   • IdleTimeout       – close keep-alives on idle clients (60 s)
//
// A sign-in POST waits on the remote auth endpoint, so WriteTimeout must
// outlast auth.timeout.  New adds a margin on top of upstream.
//

package server

import (
	"net/http"
	"time"
)

// writeMargin is the time left for rendering after the upstream call.
const writeMargin = 5 * time.Second

// New constructs an *http.Server with sensible defaults.  upstream is the
// longest outbound call a handler makes (auth.timeout); zero means 10 s.
func New(addr string, handler http.Handler, upstream time.Duration) *http.Server {
	if upstream <= 0 {
		upstream = 10 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      upstream + writeMargin,
		IdleTimeout:       60 * time.Second,
	}
}
