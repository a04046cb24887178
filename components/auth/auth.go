// components/auth/auth.go
//
// Sign-in component: the HTML page.
//
// Context
//   Each browser session owns one signin.Controller (internal/session).  The
//   page is a plain HTML form, so every interaction is a POST:
//
//     • action=toggle  – flip password visibility and re-render.
//     • anything else  – store both fields, then Submit.
//
//   Submit runs under context.WithoutCancel(r.Context()): the browser going
//   away does not cancel the upstream call.  If the session is evicted while
//   the call is in flight, the controller drops the reply.  If it is evicted
//   before Submit, nothing is sent and the page is re-issued on a fresh
//   session with a 409.
//
// Status codes
//   Invalid 422, Rejected 401, TransportFailed 502, Busy and Closed 409,
//   CSRF 403.
//   Success redirects (303) to auth.success_redirect, or renders a 200
//   “Signed in.” page when none is configured.
//
//------------------------------------------------------------------------------

package auth

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/yanizio/signin/internal/audit"
	"github.com/yanizio/signin/internal/component"
	"github.com/yanizio/signin/internal/config"
	"github.com/yanizio/signin/internal/form"
	"github.com/yanizio/signin/internal/head"
	"github.com/yanizio/signin/internal/logger"
	"github.com/yanizio/signin/internal/middleware"
	"github.com/yanizio/signin/internal/requestinfo"
	"github.com/yanizio/signin/internal/session"
	"github.com/yanizio/signin/internal/signin"
	"github.com/yanizio/signin/internal/view"
)

// FormID names the embedded login form definition.
const FormID = "auth/login"

const auditTimeout = 5 * time.Second

//go:embed forms/*.yaml
var formsFS embed.FS

//go:embed templates/*.html
var templatesFS embed.FS

// Compile-time assertions.
var (
	_ component.Component   = (*Component)(nil)
	_ component.Initializer = (*Component)(nil)
)

// Component serves the sign-in page and its JSON API.
type Component struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	views    *view.Engine
	sessions *session.Store
	csrf     *form.Signer
	audit    audit.Recorder
}

/*────────────────── component.Component methods ───────────────────────────*/

// Name returns the canonical component key.
func (c *Component) Name() string { return "auth" }

// Migrations returns the attempt audit schema.
func (c *Component) Migrations() []string { return audit.Migrations }

// Init loads the form definition and templates and keeps the shared deps.
func (c *Component) Init(d component.Deps) error {
	if d.Config == nil || d.Views == nil || d.Sessions == nil || d.CSRF == nil {
		return fmt.Errorf("auth: config, views, sessions, and csrf are required")
	}
	if err := form.RegisterFS(formsFS, "forms"); err != nil {
		return err
	}
	if err := form.RegisterDir(d.Config.Paths.Forms); err != nil {
		return err
	}
	tpls, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return err
	}
	d.Views.Register(c.Name(), tpls)

	c.cfg = d.Config
	c.log = d.Log
	if c.log == nil {
		c.log = zap.S()
	}
	c.views = d.Views
	c.sessions = d.Sessions
	c.csrf = d.CSRF
	c.audit = d.Audit
	return nil
}

// Routes adds the page and API endpoints.
func (c *Component) Routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Get("/signin", c.handleSigninGET)
		r.Post("/signin", c.handleSigninPOST)
		r.Route("/api/signin", func(api chi.Router) {
			api.Post("/", c.handleAPISubmit)
			api.Post("/visibility", c.handleAPIVisibility)
		})
	})
}

// Register component at program start.
func init() { component.Register(&Component{}) }

/*──────────────────────────── Handlers ─────────────────────────────────────*/

func (c *Component) handleSigninGET(w http.ResponseWriter, r *http.Request) {
	sid, ctrl := c.sessions.Acquire(w, r)
	c.renderPage(w, r, http.StatusOK, sid, ctrl.View())
}

func (c *Component) handleSigninPOST(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sid, ctrl := c.sessions.Acquire(w, r)
	if !c.csrf.Verify(r.PostFormValue("csrf_token"), sid) {
		log.Warnw("sign-in csrf check failed", "sid", sid)
		http.Error(w, "Your session expired.  Reload the page and try again.", http.StatusForbidden)
		return
	}

	ctrl.UpdateField(signin.FieldEmail, r.PostFormValue("email"))
	ctrl.UpdateField(signin.FieldPassword, r.PostFormValue("password"))

	if r.PostFormValue("action") == "toggle" {
		ctrl.ToggleVisibility()
		if ctrl.Closed() {
			sid, ctrl = c.sessions.Acquire(w, r)
		}
		c.renderPage(w, r, http.StatusOK, sid, ctrl.View())
		return
	}

	c.submitPage(w, r, sid, ctrl)
}

// submitPage submits the stored credentials and writes the resulting page.
func (c *Component) submitPage(w http.ResponseWriter, r *http.Request, sid string, ctrl *signin.Controller) {
	snap := ctrl.Snapshot()
	out := ctrl.Submit(context.WithoutCancel(r.Context()), snap)
	c.record(r, snap.Email, out)

	if out.Kind == signin.OutcomeSucceeded {
		c.sessions.Remove(sid)
		if c.cfg.Auth.SuccessRedirect != "" {
			http.Redirect(w, r, c.cfg.Auth.SuccessRedirect, http.StatusSeeOther)
			return
		}
		c.render(w, r, http.StatusOK, "signed_in", pageData{
			Head: pageHead("Signed in"),
			Info: requestinfo.FromContext(r.Context()),
		})
		return
	}

	if out.Kind == signin.OutcomeClosed {
		sid, ctrl = c.sessions.Acquire(w, r)
	}
	c.renderPage(w, r, statusFor(out.Kind), sid, ctrl.View())
}

/*──────────────────────────── Rendering ────────────────────────────────────*/

type pageData struct {
	Head      *head.Builder
	Heading   string
	Form      template.HTML
	ForgotURL string
	SignupURL string
	Info      *requestinfo.RequestInfo
}

func (c *Component) renderPage(w http.ResponseWriter, r *http.Request, status int, sid string, vs signin.ViewState) {
	tok, err := c.csrf.Generate(sid)
	if err != nil {
		c.fail(w, r, "csrf token", err)
		return
	}

	formHTML, err := form.RenderForm(FormID, form.RenderOptions{
		Prefill: map[string]string{
			string(signin.FieldEmail):    vs.Email,
			string(signin.FieldPassword): vs.Password,
		},
		Errors:    vs.FieldErrors.Strings(),
		FormError: vs.FormError,
		Reveal:    map[string]bool{string(signin.FieldPassword): vs.ShowPassword},
		CSRFToken: tok,
		Disabled:  vs.Submitting,
	})
	if err != nil {
		c.fail(w, r, "render form", err)
		return
	}

	heading := "welcome back"
	if fd, ok := form.GetFormDef(FormID); ok && fd.Title != "" {
		heading = fd.Title
	}

	c.render(w, r, status, "signin", pageData{
		Head:      pageHead("Sign in"),
		Heading:   heading,
		Form:      formHTML,
		ForgotURL: c.cfg.Auth.ForgotPasswordURL,
		SignupURL: c.cfg.Auth.SignupURL,
		Info:      requestinfo.FromContext(r.Context()),
	})
}

// pageHead keeps credential pages out of search indexes and referrers.
func pageHead(title string) *head.Builder {
	h := head.New()
	h.SetTitle(title)
	h.Meta("robots", "noindex, nofollow")
	h.Meta("referrer", "no-referrer")
	return h
}

func (c *Component) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	if err := c.views.Render(w, status, c.Name(), name, data, view.CacheDefault); err != nil {
		c.fail(w, r, "render "+name, err)
	}
}

func (c *Component) fail(w http.ResponseWriter, r *http.Request, what string, err error) {
	logger.FromContext(r.Context()).Errorw("sign-in page failed", "step", what, "err", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

/*──────────────────────────── Helpers ──────────────────────────────────────*/

// statusFor maps a non-success outcome to its HTTP status.
func statusFor(k signin.OutcomeKind) int {
	switch k {
	case signin.OutcomeSucceeded:
		return http.StatusOK
	case signin.OutcomeInvalid:
		return http.StatusUnprocessableEntity
	case signin.OutcomeRejected:
		return http.StatusUnauthorized
	case signin.OutcomeTransportFailed:
		return http.StatusBadGateway
	case signin.OutcomeBusy, signin.OutcomeClosed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// record writes the audit row.  Busy and Closed outcomes never reached
// validation and are not recorded.  Failures are logged, never surfaced to
// the user.
func (c *Component) record(r *http.Request, email string, out signin.Outcome) {
	if c.audit == nil || out.Kind == signin.OutcomeBusy || out.Kind == signin.OutcomeClosed {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), auditTimeout)
	defer cancel()

	a := audit.FromOutcome(email, out, requestinfo.FromContext(r.Context()))
	if err := c.audit.Record(ctx, a); err != nil {
		logger.FromContext(r.Context()).Warnw("sign-in audit failed", "err", err)
	}
}
