// components/auth/api.go
//
// Sign-in component: JSON API for script-driven front-ends.
//
// The API shares the session cookie and controller with the HTML page.
// Every endpoint requires application/json; a cross-site HTML form cannot
// send that content type, which is the API's CSRF defence.

package auth

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"

	"github.com/yanizio/signin/internal/logger"
	"github.com/yanizio/signin/internal/signin"
)

const maxAPIBody = 64 << 10

type apiCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type apiResponse struct {
	State        string            `json:"state"`
	Outcome      string            `json:"outcome"`
	FieldErrors  map[string]string `json:"fieldErrors,omitempty"`
	FormError    string            `json:"formError,omitempty"`
	ShowPassword bool              `json:"showPassword"`
	Payload      any               `json:"payload,omitempty"`
}

func (c *Component) handleAPISubmit(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "content type must be application/json"})
		return
	}

	var in apiCredentials
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAPIBody))
	if err := dec.Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}

	sid, ctrl := c.sessions.Acquire(w, r)
	ctrl.UpdateField(signin.FieldEmail, in.Email)
	ctrl.UpdateField(signin.FieldPassword, in.Password)

	snap := ctrl.Snapshot()
	out := ctrl.Submit(context.WithoutCancel(r.Context()), snap)
	c.record(r, snap.Email, out)

	vs := ctrl.View()
	resp := apiResponse{
		State:        vs.State.String(),
		Outcome:      out.Kind.String(),
		FieldErrors:  vs.FieldErrors.Strings(),
		FormError:    vs.FormError,
		ShowPassword: vs.ShowPassword,
	}
	if out.Kind == signin.OutcomeSucceeded {
		resp.Payload = out.Payload
		c.sessions.Remove(sid)
	}

	logger.FromContext(r.Context()).Debugw("sign-in api submit", "outcome", resp.Outcome)
	writeJSON(w, statusFor(out.Kind), resp)
}

func (c *Component) handleAPIVisibility(w http.ResponseWriter, r *http.Request) {
	if !isJSON(r) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "content type must be application/json"})
		return
	}
	_, ctrl := c.sessions.Acquire(w, r)
	writeJSON(w, http.StatusOK, map[string]bool{"showPassword": ctrl.ToggleVisibility()})
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
