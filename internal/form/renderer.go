// internal/form/renderer.go
//
// Forms subsystem: HTML renderer.
//
// Context
//   Given a parsed FormDef this file converts the definition into safe,
//   accessible HTML markup.  It applies HTML5 hint attributes, writes the
//   caller's CSRF token as a hidden input, honours pre-fill data, and places
//   any server-side error message directly under its input.
//
// Workflow
//   •  RenderForm looks up the FormDef by ID and writes each field via
//      writeField, followed by the form-level error and the submit row.
//   •  A revealable password field is written as type="text" when
//      RenderOptions.Reveal names it, and gets a toggle button that posts
//      action=toggle so the page works without JavaScript.
//   •  The caller receives template.HTML so the surrounding template does not
//      double-escape the markup.
//
// Style
//   Output HTML is plain.  Each input gets id="fld-{name}" and is wrapped in
//   <div class="form-field">; the error span is id="err-{name}" and is linked
//   through aria-describedby.
//
//------------------------------------------------------------------------------

package form

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strconv"
)

// RenderOptions bundles optional parameters influencing HTML output.
type RenderOptions struct {
	Prefill   map[string]string // initial values keyed by field name
	Errors    map[string]string // inline messages keyed by field name
	FormError string            // message shown above the submit row
	Reveal    map[string]bool   // revealable fields currently shown as text
	CSRFToken string            // hidden csrf_token value, omitted when empty
	Disabled  bool              // true while a submission is in flight
}

// RenderForm returns the HTML markup for the specified form ID.
func RenderForm(formID string, opts RenderOptions) (template.HTML, error) {
	fd, ok := GetFormDef(formID)
	if !ok {
		return "", fmt.Errorf("RenderForm: unknown form %q", formID)
	}

	var buf bytes.Buffer
	buf.WriteString(`<div class="signin-form" data-form="` + html.EscapeString(fd.ID) + `">` + "\n")

	for i := range fd.Fields {
		writeField(&buf, &fd.Fields[i], opts)
	}

	if opts.CSRFToken != "" {
		buf.WriteString(`<input type="hidden" name="csrf_token" value="` + html.EscapeString(opts.CSRFToken) + `">` + "\n")
	}

	if opts.FormError != "" {
		buf.WriteString(`<p class="form-error" role="alert">` + html.EscapeString(opts.FormError) + `</p>` + "\n")
	}

	buf.WriteString(`<button type="submit" name="action" value="submit"`)
	if opts.Disabled {
		buf.WriteString(` disabled`)
	}
	buf.WriteString(`>` + html.EscapeString(fd.Submit) + `</button>` + "\n")

	buf.WriteString(`</div>`)
	return template.HTML(buf.String()), nil
}

// writeField emits HTML for an individual field into buf.  Definitions are
// validated on load, so every field here is a single-line input.
func writeField(buf *bytes.Buffer, f *FieldDef, opts RenderOptions) {
	val := lookup(opts.Prefill, f.Name)
	msg := lookup(opts.Errors, f.Name)
	name := html.EscapeString(f.Name)

	buf.WriteString(`<div class="form-field">` + "\n")
	buf.WriteString(`<label for="fld-` + name + `">` + html.EscapeString(f.Label) + `</label>` + "\n")

	typ := f.Type
	if f.Type == "password" && f.Revealable && opts.Reveal[f.Name] {
		typ = "text"
	}
	buf.WriteString(`<input id="fld-` + name + `" name="` + name + `" type="` + typ + `"`)
	writeConstraints(buf, f)
	if val != "" {
		buf.WriteString(` value="` + html.EscapeString(val) + `"`)
	}
	writeErrorAttrs(buf, name, msg)
	if opts.Disabled {
		buf.WriteString(` disabled`)
	}
	buf.WriteString(`>` + "\n")
	if f.Revealable {
		writeRevealToggle(buf, opts.Reveal[f.Name])
	}

	buf.WriteString(`<span class="error" id="err-` + name + `" aria-live="polite">` + html.EscapeString(msg) + `</span>` + "\n")
	buf.WriteString(`</div>` + "\n")
}

func writeConstraints(buf *bytes.Buffer, f *FieldDef) {
	if f.Placeholder != "" {
		buf.WriteString(` placeholder="` + html.EscapeString(f.Placeholder) + `"`)
	}
	if f.Autocomplete != "" {
		buf.WriteString(` autocomplete="` + html.EscapeString(f.Autocomplete) + `"`)
	}
	if f.Required {
		buf.WriteString(` required`)
	}
	if f.MinLength > 0 {
		buf.WriteString(` minlength="` + strconv.Itoa(f.MinLength) + `"`)
	}
}

func writeErrorAttrs(buf *bytes.Buffer, name, msg string) {
	buf.WriteString(` aria-describedby="err-` + name + `"`)
	if msg != "" {
		buf.WriteString(` aria-invalid="true"`)
	}
}

// writeRevealToggle posts action=toggle; the label names the next state.
func writeRevealToggle(buf *bytes.Buffer, shown bool) {
	label := "Show password"
	if shown {
		label = "Hide password"
	}
	buf.WriteString(`<button type="submit" name="action" value="toggle" class="reveal" formnovalidate aria-pressed="` +
		strconv.FormatBool(shown) + `">` + label + `</button>` + "\n")
}

func lookup(m map[string]string, k string) string {
	if m == nil {
		return ""
	}
	return m[k]
}
