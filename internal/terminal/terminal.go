// internal/terminal/terminal.go
//
// Terminal front-end for the sign-in form.
//
// Context
//   `signin login` drives the same signin.Controller as the web page, but
//   from a prompt.  The password is read without echo (golang.org/x/term)
//   unless visibility is on, which is the terminal's version of the eye
//   toggle.  Typing “:show” or “:hide” at the password prompt flips it.
//
// Flow
//   1. Prompt for email (Enter keeps the previous value) and password.
//   2. Submit.
//        • Invalid          → print each field message, prompt again.
//        • Rejected/Failure → print the form error, offer another attempt.
//        • Succeeded        → print the endpoint's JSON reply and stop.
//   3. Stop after MaxAttempts submissions or on EOF.
//
//------------------------------------------------------------------------------

package terminal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/yanizio/signin/internal/signin"
)

// DefaultMaxAttempts bounds submissions per Run.
const DefaultMaxAttempts = 3

// ErrGaveUp is returned when the user declines another attempt or the
// attempt budget runs out.
var ErrGaveUp = errors.New("sign-in abandoned")

// SecretReader reads one line without echo.
type SecretReader func() (string, error)

// Prompter talks to one user.
type Prompter struct {
	in          *bufio.Reader
	out         io.Writer
	secret      SecretReader
	maxAttempts int
}

// Option tweaks a Prompter.
type Option func(*Prompter)

// WithSecretReader replaces the no-echo reader (tests, non-tty input).
func WithSecretReader(r SecretReader) Option { return func(p *Prompter) { p.secret = r } }

// WithMaxAttempts sets the submission budget; n < 1 is ignored.
func WithMaxAttempts(n int) Option {
	return func(p *Prompter) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// New returns a Prompter.  When in is a terminal, passwords are read with
// echo disabled; otherwise they are read as plain lines.
func New(in io.Reader, out io.Writer, opts ...Option) *Prompter {
	p := &Prompter{
		in:          bufio.NewReader(in),
		out:         out,
		maxAttempts: DefaultMaxAttempts,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		p.secret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(p.out)
			return string(b), err
		}
	}
	for _, o := range opts {
		o(p)
	}
	if p.secret == nil {
		p.secret = p.readLine
	}
	return p
}

// Run loops until success, refusal, EOF, or the attempt budget is spent.
func (p *Prompter) Run(ctx context.Context, ctrl *signin.Controller) (signin.Outcome, error) {
	fmt.Fprintln(p.out, "welcome back")
	fmt.Fprintln(p.out, "Enter your credentials to access your account")

	var last signin.Outcome
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.collect(ctrl); err != nil {
			return last, err
		}

		last = ctrl.Submit(ctx, ctrl.Snapshot())
		switch last.Kind {
		case signin.OutcomeSucceeded:
			fmt.Fprintln(p.out, "Signed in.")
			if last.Payload != nil {
				enc := json.NewEncoder(p.out)
				enc.SetIndent("", "  ")
				_ = enc.Encode(last.Payload)
			}
			return last, nil

		case signin.OutcomeInvalid:
			for _, f := range []signin.Field{signin.FieldEmail, signin.FieldPassword} {
				if msg, ok := last.FieldErrors[f]; ok {
					fmt.Fprintf(p.out, "  %s: %s\n", f, msg)
				}
			}

		case signin.OutcomeRejected, signin.OutcomeTransportFailed:
			fmt.Fprintln(p.out, ctrl.FormError())
			if attempt < p.maxAttempts {
				again, err := p.confirm("Try again? [y/N] ")
				if err != nil {
					return last, err
				}
				if !again {
					return last, ErrGaveUp
				}
			}

		case signin.OutcomeBusy:
			// Not reachable from a single prompt; count it and move on.

		case signin.OutcomeClosed:
			return last, ErrGaveUp
		}
	}
	return last, ErrGaveUp
}

// collect prompts for both fields and stores them in ctrl.
func (p *Prompter) collect(ctrl *signin.Controller) error {
	prev := ctrl.Snapshot().Email
	label := "Email: "
	if prev != "" {
		label = fmt.Sprintf("Email [%s]: ", prev)
	}
	fmt.Fprint(p.out, label)
	email, err := p.readLine()
	if err != nil {
		return err
	}
	if email == "" {
		email = prev
	}
	ctrl.UpdateField(signin.FieldEmail, email)

	for {
		fmt.Fprint(p.out, "Password (:show / :hide): ")
		var pw string
		if ctrl.ShowPassword() {
			pw, err = p.readLine()
		} else {
			pw, err = p.secret()
		}
		if err != nil {
			return err
		}
		switch pw {
		case ":show", ":hide":
			if (pw == ":show") != ctrl.ShowPassword() {
				ctrl.ToggleVisibility()
			}
			continue
		}
		ctrl.UpdateField(signin.FieldPassword, pw)
		return nil
	}
}

func (p *Prompter) confirm(q string) (bool, error) {
	fmt.Fprint(p.out, q)
	ans, err := p.readLine()
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

// readLine returns one line without its terminator.  A final line without a
// newline is returned; EOF with nothing read is io.EOF.
func (p *Prompter) readLine() (string, error) {
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}
