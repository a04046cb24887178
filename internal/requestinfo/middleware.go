// internal/requestinfo/middleware.go
//
// HTTP middleware that enriches each request with *RequestInfo.
//
/*
Context
--------
This handler sits high in the chain, immediately after request logging
and before the sign-in component.  For every request it:

  1. Parses the User-Agent header and Accept-Language list.
  2. Extracts the client IP.  X-Forwarded-For and X-Real-IP are honoured
     only when the Enricher trusts its proxy.
  3. Performs a GeoLite2 lookup when a database is configured.
  4. Stores a `*RequestInfo` value in `request.Context` so handlers and
     the audit store can read it without reparsing.

Instrumentation
---------------
At debug level each invocation logs client IP, country, browser, device,
bot flag, and path.
*/
package requestinfo

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Enricher builds RequestInfo values.  Zero value is usable (no geo, no
// proxy trust).
type Enricher struct {
	geo        cityReader
	closer     func() error
	trustProxy bool
}

// Option tweaks an Enricher.
type Option func(*Enricher)

// WithTrustedProxy makes the middleware read forwarding headers.
func WithTrustedProxy() Option { return func(e *Enricher) { e.trustProxy = true } }

// NewEnricher opens the GeoLite2-City database at geoPath when non-empty.
func NewEnricher(geoPath string, opts ...Option) (*Enricher, error) {
	e := &Enricher{}
	for _, o := range opts {
		o(e)
	}
	if geoPath == "" {
		return e, nil
	}
	rdr, err := geoip2.Open(geoPath)
	if err != nil {
		return nil, fmt.Errorf("requestinfo: open GeoLite2 DB: %w", err)
	}
	e.geo = rdr
	e.closer = rdr.Close
	return e, nil
}

// Close releases the GeoIP database, if any.
func (e *Enricher) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// Info builds the RequestInfo for r without touching the context.
func (e *Enricher) Info(r *http.Request) *RequestInfo {
	return &RequestInfo{
		UA:        ParseUA(r.UserAgent(), r.Header.Get("Accept-Language")),
		Geo:       lookupGeo(e.geo, e.clientIP(r)),
		Path:      r.URL.Path,
		Timestamp: time.Now().UTC(),
	}
}

/*──────────────────────────── middleware ───────────────────────────────────*/

// Middleware wraps an http.Handler, attaches *RequestInfo, and forwards.
func (e *Enricher) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := e.Info(r)

		zap.S().Debugw("request info",
			"ip", info.Geo.IP,
			"country", info.Geo.CountryISO,
			"browser", info.UA.Browser,
			"device", info.UA.Device,
			"bot", info.UA.IsBot,
			"path", info.Path,
		)

		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

/*──────────────────────────── client IP helper ─────────────────────────────*/

// clientIP extracts the left-most valid address from X-Forwarded-For or
// X-Real-IP when trusted, falling back to r.RemoteAddr ("ip:port").
func (e *Enricher) clientIP(r *http.Request) net.IP {
	if e.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, part := range strings.Split(xff, ",") {
				if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
					return ip
				}
			}
		}
		if xrip := r.Header.Get("X-Real-Ip"); xrip != "" {
			if ip := net.ParseIP(strings.TrimSpace(xrip)); ip != nil {
				return ip
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return net.ParseIP(host)
	}
	return net.ParseIP(r.RemoteAddr)
}
