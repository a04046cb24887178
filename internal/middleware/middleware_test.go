package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestForceHTTPS(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		trust    bool
		host     string
		proto    string
		tls      bool
		wantCode int
	}{
		{name: "disabled", enabled: false, host: "example.com", wantCode: http.StatusOK},
		{name: "plain http", enabled: true, host: "example.com", wantCode: http.StatusPermanentRedirect},
		{name: "tls", enabled: true, host: "example.com", tls: true, wantCode: http.StatusOK},
		{name: "trusted proxy https", enabled: true, trust: true, host: "example.com", proto: "HTTPS", wantCode: http.StatusOK},
		{name: "untrusted proxy header", enabled: true, host: "example.com", proto: "https", wantCode: http.StatusPermanentRedirect},
		{name: "localhost", enabled: true, host: "localhost:8080", wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/signin?x=1", nil)
			req.Host = tt.host
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()
			ForceHTTPS(tt.enabled, tt.trust)(ok).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusPermanentRedirect {
				assert.Equal(t, "https://example.com/signin?x=1", rec.Header().Get("Location"))
			}
		})
	}
}

func TestSecurity_HeadersReachClient(t *testing.T) {
	rec := httptest.NewRecorder()
	Security(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "form-action 'self'")
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
