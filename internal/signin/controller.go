// internal/signin/controller.go
//
// Sign-in form – controller.
//
// Context
//   A Controller mediates between user input, the validation engine, and the
//   remote auth endpoint.  One Controller backs one mounted form: a browser
//   session on the web surface or one run of the terminal flow.
//
// Workflow
//   •  UpdateField replaces a stored value.  Nothing is validated here.
//   •  ToggleVisibility flips the "show password" flag.
//   •  Submit validates a snapshot and, when it is clean, posts it to the
//      endpoint.  Every failure mode is handled inside Submit and summarized
//      in the returned Outcome; nothing propagates to the caller.
//   •  Close marks the form unmounted.  Replies that resolve afterwards are
//      logged and dropped without touching state.
//
// State machine (per attempt)
//
//      Idle → Validating → Invalid                     (→ Idle on next edit)
//                        → Submitting → Succeeded | Failed → Idle
//
//   A second Submit while one is in flight returns OutcomeBusy.  After Close,
//   input is ignored and Submit returns OutcomeClosed without a request.
//
//------------------------------------------------------------------------------

package signin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/signin/internal/authclient"
	"github.com/yanizio/signin/internal/metrics"
)

// Generic form-level messages.  Endpoint detail goes to the log only.
const (
	MsgRejected        = "Sign-in failed.  Check your email and password and try again."
	MsgTransportFailed = "Sign-in failed.  The service could not be reached, please try again."
)

// State is the controller's position in the submission state machine.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateInvalid
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateInvalid:
		return "invalid"
	case StateSubmitting:
		return "submitting"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies how a Submit call ended.
type OutcomeKind int

const (
	OutcomeInvalid OutcomeKind = iota
	OutcomeSucceeded
	OutcomeRejected
	OutcomeTransportFailed
	OutcomeBusy
	OutcomeClosed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportFailed:
		return "transport_failed"
	case OutcomeBusy:
		return "busy"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome summarizes one Submit call.
type Outcome struct {
	Kind        OutcomeKind
	FieldErrors FieldErrors // set for OutcomeInvalid
	Payload     any         // endpoint body for OutcomeSucceeded
	Status      int         // HTTP status when the endpoint replied
	Reason      string      // rejection message or transport error text
}

// Authenticator is the remote auth endpoint as seen by the controller.
// *authclient.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, req authclient.LoginRequest) (*authclient.Result, error)
}

// ViewState is a read-only copy of everything a renderer needs.
type ViewState struct {
	Email        string
	Password     string
	ShowPassword bool
	FieldErrors  FieldErrors
	FormError    string
	State        State
	Submitting   bool
}

// Controller owns one form's state.  Safe for concurrent use; the network
// call runs without holding the lock.
type Controller struct {
	auth Authenticator
	log  *zap.SugaredLogger

	mu           sync.Mutex
	creds        Credentials
	showPassword bool
	fieldErrs    FieldErrors
	formErr      string
	state        State
	inFlight     bool
	closed       bool
	last         *Outcome
}

// NewController binds a form to auth.  A nil log falls back to zap.S().
func NewController(auth Authenticator, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.S()
	}
	return &Controller{
		auth:      auth,
		log:       log,
		fieldErrs: FieldErrors{},
	}
}

//
// input
//

// UpdateField replaces the stored value for f.  Unknown fields are ignored,
// as is every edit after Close.  An edit after a failed validation returns
// the form to Idle; the displayed field errors stay until the next Submit.
func (c *Controller) UpdateField(f Field, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch f {
	case FieldEmail:
		c.creds.Email = value
	case FieldPassword:
		c.creds.Password = value
	default:
		return
	}
	if c.state == StateInvalid {
		c.state = StateIdle
	}
}

// ToggleVisibility inverts the show-password flag and returns the new value.
// A closed form keeps its flag.
func (c *Controller) ToggleVisibility() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.showPassword
	}
	c.showPassword = !c.showPassword
	return c.showPassword
}

//
// read-only accessors
//

// Snapshot returns a copy of the current credentials.
func (c *Controller) Snapshot() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creds
}

// FieldErrors returns a copy of the current inline errors.
func (c *Controller) FieldErrors() FieldErrors {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fieldErrs.Clone()
}

// FormError returns the generic form-level message, or "".
func (c *Controller) FormError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.formErr
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ShowPassword reports the visibility flag.
func (c *Controller) ShowPassword() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showPassword
}

// LastOutcome returns the most recent completed Outcome, if any.
func (c *Controller) LastOutcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// View returns everything a renderer needs in one consistent copy.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ViewState{
		Email:        c.creds.Email,
		Password:     c.creds.Password,
		ShowPassword: c.showPassword,
		FieldErrors:  c.fieldErrs.Clone(),
		FormError:    c.formErr,
		State:        c.state,
		Submitting:   c.inFlight,
	}
}

//
// submission
//

// Submit validates snap and, if clean, sends it to the auth endpoint.  It
// never panics on endpoint behavior and never returns an error; the Outcome
// says what happened.
func (c *Controller) Submit(ctx context.Context, snap Credentials) Outcome {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		metrics.SubmitTotal.WithLabelValues(OutcomeClosed.String()).Inc()
		c.log.Debugw("sign-in submit ignored, form closed")
		return Outcome{Kind: OutcomeClosed}
	}
	if c.inFlight {
		c.mu.Unlock()
		metrics.SubmitTotal.WithLabelValues(OutcomeBusy.String()).Inc()
		c.log.Debugw("sign-in submit ignored, request in flight")
		return Outcome{Kind: OutcomeBusy}
	}

	// A fresh run replaces the whole error set.
	c.fieldErrs = FieldErrors{}
	c.formErr = ""
	c.state = StateValidating

	payload, issues := Validate(snap)
	if len(issues) > 0 {
		fe := FieldErrorsFrom(issues)
		c.fieldErrs = fe
		c.state = StateInvalid
		out := Outcome{Kind: OutcomeInvalid, FieldErrors: fe.Clone()}
		c.last = &out
		c.mu.Unlock()

		metrics.SubmitTotal.WithLabelValues(out.Kind.String()).Inc()
		c.log.Debugw("sign-in validation failed", "fields", len(fe))
		return out
	}

	c.inFlight = true
	c.state = StateSubmitting
	c.mu.Unlock()

	start := time.Now()
	res, err := c.auth.Login(ctx, authclient.LoginRequest{
		Email:    payload.Email,
		Password: payload.Password,
	})
	metrics.EndpointDuration.Observe(time.Since(start).Seconds())

	out := c.interpret(res, err)
	c.report(payload.Email, out)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight = false
	if c.closed {
		metrics.LateResultsTotal.Inc()
		c.log.Debugw("sign-in result arrived after close, ignored", "outcome", out.Kind.String())
		return out
	}
	c.state = StateIdle
	switch out.Kind {
	case OutcomeRejected:
		c.formErr = MsgRejected
	case OutcomeTransportFailed:
		c.formErr = MsgTransportFailed
	}
	c.last = &out
	return out
}

// interpret folds the endpoint reply into an Outcome.
func (c *Controller) interpret(res *authclient.Result, err error) Outcome {
	if err == nil {
		if res == nil {
			return Outcome{Kind: OutcomeTransportFailed, Reason: "empty result"}
		}
		return Outcome{Kind: OutcomeSucceeded, Status: res.Status, Payload: res.Payload}
	}

	var rej *authclient.RejectedError
	if errors.As(err, &rej) {
		return Outcome{Kind: OutcomeRejected, Status: rej.Status, Reason: rej.Message}
	}
	return Outcome{Kind: OutcomeTransportFailed, Reason: err.Error()}
}

// report writes the outcome to the diagnostic channel.
func (c *Controller) report(email string, out Outcome) {
	metrics.SubmitTotal.WithLabelValues(out.Kind.String()).Inc()

	switch out.Kind {
	case OutcomeSucceeded:
		c.log.Infow("sign-in succeeded", "email", email, "status", out.Status, "result_keys", payloadKeys(out.Payload))
	case OutcomeRejected:
		c.log.Warnw("sign-in rejected", "email", email, "status", out.Status, "reason", out.Reason)
	case OutcomeTransportFailed:
		c.log.Errorw("sign-in unexpected error", "email", email, "error", out.Reason)
	}
}

// payloadKeys lists top-level keys so tokens never reach the log.
func payloadKeys(p any) []string {
	m, ok := p.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

//
// lifecycle
//

// Close unmounts the form.  Credentials are wiped and any in-flight reply is
// ignored when it lands.  Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.creds = Credentials{}
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
