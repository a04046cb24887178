package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/signin/internal/audit"
	"github.com/yanizio/signin/internal/authclient"
	"github.com/yanizio/signin/internal/component"
	"github.com/yanizio/signin/internal/config"
	"github.com/yanizio/signin/internal/form"
	"github.com/yanizio/signin/internal/session"
	"github.com/yanizio/signin/internal/signin"
	"github.com/yanizio/signin/internal/view"
)

// ---- harness ----

type memAudit struct {
	mu   sync.Mutex
	rows []audit.Attempt
}

func (m *memAudit) Record(_ context.Context, a audit.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAudit) all() []audit.Attempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]audit.Attempt(nil), m.rows...)
}

type harness struct {
	srv   *httptest.Server
	comp  *Component
	audit *memAudit
	hits  *atomic.Int32
}

// newHarness wires the component against a fake auth endpoint that replies
// with status and body.
func newHarness(t *testing.T, status int, body, redirect string) *harness {
	t.Helper()

	hits := &atomic.Int32{}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(upstream.Close)

	cli, err := authclient.New(upstream.URL)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Auth.Endpoint = upstream.URL
	cfg.Auth.SuccessRedirect = redirect
	cfg.Auth.ForgotPasswordURL = "/forgot-password"
	cfg.Auth.SignupURL = "/signup"

	signer, err := form.NewSigner([]byte(strings.Repeat("k", 32)))
	require.NoError(t, err)

	mem := &memAudit{}
	c := &Component{}
	require.NoError(t, c.Init(component.Deps{
		Config:   cfg,
		Views:    view.New(""),
		Sessions: session.New(session.Options{IdleTTL: time.Minute, MaxEntries: 100}, func() *signin.Controller { return signin.NewController(cli, nil) }),
		CSRF:     signer,
		Audit:    mem,
	}))

	r := chi.NewRouter()
	c.Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &harness{srv: srv, comp: c, audit: mem, hits: hits}
}

var tokenRE = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

// client returns a cookie-keeping client that never follows redirects.
func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// open loads the page and returns the CSRF token.
func (h *harness) open(t *testing.T, cl *http.Client) string {
	t.Helper()
	resp, err := cl.Get(h.srv.URL + "/signin")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := tokenRE.FindSubmatch(body)
	require.NotNil(t, m, "csrf token in page")
	return string(m[1])
}

func (h *harness) post(t *testing.T, cl *http.Client, vals url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := cl.PostForm(h.srv.URL+"/signin", vals)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

// ---- page ----

func TestGET_RendersPage(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)

	resp, err := cl.Get(h.srv.URL + "/signin")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	body := string(raw)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, "<title>Sign in</title>")
	assert.Contains(t, body, `<meta name="robots" content="noindex, nofollow">`)
	assert.Contains(t, body, "welcome back")
	assert.Contains(t, body, "Enter your credentials to access your account")
	assert.Contains(t, body, `placeholder="Enter your email"`)
	assert.Contains(t, body, `placeholder="Enter your password"`)
	assert.Contains(t, body, `type="password"`)
	assert.Contains(t, body, `href="/forgot-password"`)
	assert.Contains(t, body, "Sign Up")
	assert.Contains(t, body, "or continue with")
	assert.Contains(t, body, `<button type="button" disabled>Sign in with Google</button>`)

	u, _ := url.Parse(h.srv.URL)
	require.NotEmpty(t, cl.Jar.Cookies(u), "session cookie set")
}

func TestPOST_InvalidShowsInlineErrors(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, body := h.post(t, cl, url.Values{"csrf_token": {tok}, "email": {"not-an-email"}, "password": {"short"}})

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, signin.MsgInvalidEmail)
	assert.Contains(t, body, signin.MsgShortPassword)
	assert.Contains(t, body, `value="not-an-email"`)
	assert.Zero(t, h.hits.Load(), "no request for invalid input")

	rows := h.audit.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "invalid", rows[0].Outcome)
}

func TestPOST_RejectedShowsFormError(t *testing.T) {
	h := newHarness(t, http.StatusUnauthorized, `{"message":"bad credentials"}`, "")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, body := h.post(t, cl, url.Values{"csrf_token": {tok}, "email": {"a@b.co"}, "password": {"password123"}})

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "Check your email and password")
	assert.Equal(t, int32(1), h.hits.Load())

	rows := h.audit.all()
	require.Len(t, rows, 1)
	assert.Equal(t, "rejected", rows[0].Outcome)
	assert.Equal(t, 401, rows[0].Status)
	assert.Equal(t, "a@b.co", rows[0].Email)
}

func TestPOST_SuccessRedirects(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{"token":"abc"}`, "/home")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, _ := h.post(t, cl, url.Values{"csrf_token": {tok}, "email": {"a@b.co"}, "password": {"password123"}})

	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/home", resp.Header.Get("Location"))
}

func TestPOST_SuccessWithoutRedirect(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{"token":"abc"}`, "")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, body := h.post(t, cl, url.Values{"csrf_token": {tok}, "email": {"a@b.co"}, "password": {"password123"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Signed in.")
	assert.NotContains(t, body, "abc", "token never rendered")
}

func TestPOST_TransportFailure(t *testing.T) {
	h := newHarness(t, http.StatusOK, `not json`, "")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, body := h.post(t, cl, url.Values{"csrf_token": {tok}, "email": {"a@b.co"}, "password": {"password123"}})

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "could not be reached")
}

func TestPOST_ToggleVisibility(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)
	tok := h.open(t, cl)

	resp, body := h.post(t, cl, url.Values{"csrf_token": {tok}, "action": {"toggle"}, "email": {"a@b.co"}, "password": {"hunter22"}})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `name="password" type="text"`)
	assert.Contains(t, body, `value="hunter22"`)
	assert.Contains(t, body, "Hide password")
	assert.Zero(t, h.hits.Load())
	assert.Empty(t, h.audit.all())
}

func TestPOST_BadCSRF(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)
	h.open(t, cl)

	resp, _ := h.post(t, cl, url.Values{"csrf_token": {"forged"}, "email": {"a@b.co"}, "password": {"password123"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, h.hits.Load())
}

func TestPOST_TokenFromOtherSession(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	tok := h.open(t, h.client(t))

	other := h.client(t)
	h.open(t, other)
	resp, _ := h.post(t, other, url.Values{"csrf_token": {tok}, "email": {"a@b.co"}, "password": {"password123"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

// ---- API ----

func apiPost(t *testing.T, cl *http.Client, u, ctype, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := cl.Post(u, ctype, strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestAPI_Invalid(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	resp, out := apiPost(t, h.client(t), h.srv.URL+"/api/signin", "application/json", `{"email":"","password":""}`)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "invalid", out["outcome"])
	assert.Equal(t, "invalid", out["state"])
	fe, ok := out["fieldErrors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, signin.MsgInvalidEmail, fe["email"])
	assert.Equal(t, signin.MsgShortPassword, fe["password"])
}

func TestAPI_SuccessReturnsPayload(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{"token":"abc"}`, "")
	resp, out := apiPost(t, h.client(t), h.srv.URL+"/api/signin", "application/json; charset=utf-8", `{"email":"a@b.co","password":"password123"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "succeeded", out["outcome"])
	assert.Equal(t, map[string]any{"token": "abc"}, out["payload"])
	assert.NotContains(t, out, "formError")
}

func TestAPI_RejectsNonJSON(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	resp, _ := apiPost(t, h.client(t), h.srv.URL+"/api/signin", "application/x-www-form-urlencoded", "email=a")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp, _ = apiPost(t, h.client(t), h.srv.URL+"/api/signin", "application/json", "{")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_Visibility(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)

	_, out := apiPost(t, cl, h.srv.URL+"/api/signin/visibility", "application/json", "")
	assert.Equal(t, true, out["showPassword"])
	_, out = apiPost(t, cl, h.srv.URL+"/api/signin/visibility", "application/json", "")
	assert.Equal(t, false, out["showPassword"], "same session toggles back")
}

func TestAPI_VisibilityRequiresJSON(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")
	cl := h.client(t)

	resp, _ := apiPost(t, cl, h.srv.URL+"/api/signin/visibility", "application/x-www-form-urlencoded", "")
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	_, out := apiPost(t, cl, h.srv.URL+"/api/signin/visibility", "application/json", "")
	assert.Equal(t, true, out["showPassword"], "rejected request did not flip the flag")
}

func TestSubmitPage_ClosedFormSendsNothing(t *testing.T) {
	h := newHarness(t, http.StatusOK, `{}`, "")

	ctrl := signin.NewController(nil, nil)
	ctrl.UpdateField(signin.FieldEmail, "a@b.com")
	ctrl.UpdateField(signin.FieldPassword, "longenough1")
	ctrl.Close()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/signin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "evicted"})
	h.comp.submitPage(rec, req, "evicted", ctrl)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, int32(0), h.hits.Load())
	assert.Empty(t, h.audit.all())

	var fresh *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.CookieName {
			fresh = ck
		}
	}
	require.NotNil(t, fresh, "page re-issued on a new session")
	assert.NotEqual(t, "evicted", fresh.Value)
	assert.Regexp(t, tokenRE, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(signin.OutcomeBusy))
	assert.Equal(t, http.StatusConflict, statusFor(signin.OutcomeClosed))
	assert.Equal(t, http.StatusOK, statusFor(signin.OutcomeSucceeded))
}
