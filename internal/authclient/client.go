// internal/authclient/client.go
//
// Remote auth endpoint client.
//
// Context
//   The sign-in form never checks credentials itself.  It POSTs them as JSON
//   to an external service and only interprets the reply:
//
//      POST <endpoint>/login
//      Content-Type: application/json
//      {"email": "...", "password": "..."}
//
//   •  2xx      – body is decoded and returned as the success payload.
//   •  non-2xx  – body is decoded, its "message" becomes the rejection reason.
//   •  anything else (dial, TLS, timeout, bad JSON) is a TransportError.
//
//   The client never retries.  Callers decide what to do with each outcome.
//
//------------------------------------------------------------------------------

package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

// LoginPath is joined onto the configured endpoint.
const LoginPath = "/login"

// maxBody caps how much of a reply we read.
const maxBody = 1 << 20

// LoginRequest is the JSON body sent to the endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Result is a successful (2xx) reply.
type Result struct {
	Status  int
	Payload any // decoded JSON, no schema imposed
}

// RejectedError reports a non-2xx reply.  Message is the body's "message"
// field and may be empty when the service omitted it.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("auth endpoint rejected request: status %d: %s", e.Status, e.Message)
}

// TransportError reports that the exchange could not complete.
type TransportError struct {
	Op  string // "encode", "request", "read", or "decode"
	Err error
}

func (e *TransportError) Error() string { return "auth endpoint " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// Client talks to one auth endpoint.  Safe for concurrent use.
type Client struct {
	loginURL string
	http     *http.Client
}

// Option tweaks a Client at construction.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each exchange.  Zero leaves the client unbounded.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New builds a Client for endpoint, an absolute base URL such as
// "https://auth.example.com/api".
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse auth endpoint %q: %w", endpoint, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("auth endpoint %q must be an absolute URL", endpoint)
	}

	c := &Client{
		loginURL: u.JoinPath(LoginPath).String(),
		http:     cleanhttp.DefaultPooledClient(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// LoginURL returns the fully-qualified URL Login posts to.
func (c *Client) LoginURL() string { return c.loginURL }

// Login posts req and interprets the reply.  The error, when non-nil, is
// either *RejectedError or *TransportError.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &TransportError{Op: "encode", Err: err}
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(hreq)
	if err != nil {
		return nil, &TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var fail struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &fail); err != nil {
			return nil, &TransportError{Op: "decode", Err: fmt.Errorf("status %d: %w", resp.StatusCode, err)}
		}
		return nil, &RejectedError{Status: resp.StatusCode, Message: fail.Message}
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &TransportError{Op: "decode", Err: err}
	}
	return &Result{Status: resp.StatusCode, Payload: payload}, nil
}
