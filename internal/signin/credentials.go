// internal/signin/credentials.go
//
// Sign-in form – data model.
//
// Context
//   Credentials live only inside a Controller for as long as the form is
//   mounted.  FieldErrors is rebuilt from scratch on every submission so a
//   stale message never survives a fresh validation run.
//
//------------------------------------------------------------------------------

package signin

// Field identifies one input on the sign-in form.
type Field string

const (
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
)

// Credentials is the email/password pair typed by the user.  The struct tags
// drive both the JSON request body and the validation rules.
type Credentials struct {
	Email    string `json:"email"    validate:"email"`
	Password string `json:"password" validate:"min=8"`
}

// FieldErrors maps a failing field to its user-facing message.  Keys are
// present only for fields that failed the last validation run.
type FieldErrors map[Field]string

// Clone returns an independent copy.  A nil receiver yields an empty map.
func (fe FieldErrors) Clone() FieldErrors {
	out := make(FieldErrors, len(fe))
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// Strings converts the map to plain string keys for templates and JSON.
func (fe FieldErrors) Strings() map[string]string {
	out := make(map[string]string, len(fe))
	for k, v := range fe {
		out[string(k)] = v
	}
	return out
}
