// internal/signin/validate.go
//
// Sign-in form – validation engine.
//
// Context
//   Validate is a pure function: it takes a Credentials snapshot and returns
//   either the validated payload or a list of issues.  Each Issue carries the
//   path of the offending field (its JSON name) and a message, so callers map
//   issues to inline errors without knowing which rule fired.
//
// Rules
//   •  email     – must parse as an email address.
//   •  password  – at least MinPasswordLength characters.
//
//------------------------------------------------------------------------------

package signin

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MinPasswordLength is the shortest accepted password, counted in runes.
	MinPasswordLength = 8

	MsgInvalidEmail  = "Invalid email address"
	MsgShortPassword = "Password must be at least 8 characters"
)

// Issue is one validation failure.  Path[0] is the JSON name of the field.
type Issue struct {
	Path    []string
	Message string
}

// messages maps "field/tag" to the user-facing text.
var messages = map[string]string{
	"email/email":  MsgInvalidEmail,
	"password/min": MsgShortPassword,
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names ("email") instead of Go names ("Email").
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return val
}

// Validate checks c against the sign-in rules.  A nil issue slice means c is
// valid and is returned unchanged as the payload.
func Validate(c Credentials) (Credentials, []Issue) {
	err := v.Struct(c)
	if err == nil {
		return c, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError only happens on programmer error.
		return Credentials{}, []Issue{{Path: []string{""}, Message: err.Error()}}
	}

	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"/"+fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		issues = append(issues, Issue{Path: []string{fe.Field()}, Message: msg})
	}
	return Credentials{}, issues
}

// FieldErrorsFrom maps issues onto the email and password slots.  Issues for
// any other path are ignored.  The first message per field wins.
func FieldErrorsFrom(issues []Issue) FieldErrors {
	fe := make(FieldErrors)
	for _, is := range issues {
		if len(is.Path) == 0 {
			continue
		}
		f := Field(is.Path[0])
		if f != FieldEmail && f != FieldPassword {
			continue
		}
		if _, seen := fe[f]; !seen {
			fe[f] = is.Message
		}
	}
	return fe
}
