// internal/view/render.go
//
// Central view engine: template lookup, override chain, func-map injection,
// and an LRU of parsed *template.Template* sets.
//
// Public helpers
// --------------
//   - Render         – buffer the page, then write status and body.
//   - RenderToString – return template.HTML (fragments, tests).
//
// Lookup precedence (last parsed wins):
//   1. <paths.templates>/<comp>/*.html   (on-disk operator overrides)
//   2. the component's embedded templates (registered via Register)
//
// All templates of a component are parsed as one set so sub-templates
// ({{ template "field" . }}) work out-of-the-box.  An override file with the
// same base name replaces the embedded one.
//
// execName() chooses the template to execute:
//   – If the set contains "<name>.html", we run that (file has no define).
//   – Else we fall back to "<name>" (root template defined via {{ define }}).

package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanizio/signin/internal/cache"
	"go.uber.org/zap"
)

//
// cache definitions
//

// CachePolicy hints how the caller wants this template cached.
type CachePolicy int

const (
	CacheDefault CachePolicy = iota // reuse the parsed set
	CacheSkip                       // always reparse (template development)
)

// DefaultCapacity bounds parsed template sets; tweak when perf-testing.
const DefaultCapacity = 256

//
// engine
//

// Engine renders component templates.  Safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	sources  map[string]fs.FS // component → embedded templates
	override string

	sets  *cache.LRU[string, *template.Template]
	funcs template.FuncMap
}

// New returns an Engine that consults overrideDir (may be empty) before
// the registered component templates.
func New(overrideDir string) *Engine {
	return &Engine{
		sources:  make(map[string]fs.FS),
		override: overrideDir,
		sets:     cache.New[string, *template.Template](DefaultCapacity),
		funcs:    buildFuncMap(),
	}
}

// Register makes fsys (a directory holding *.html) the template source for
// comp.  Re-registering drops any cached set for comp.
func (e *Engine) Register(comp string, fsys fs.FS) {
	e.mu.Lock()
	e.sources[comp] = fsys
	e.mu.Unlock()
	e.sets.Purge()
}

//
// public helpers
//

// Render executes the template into a buffer and, on success, writes status
// and the body.  On failure nothing is written, so the caller can still send
// an error page.
func (e *Engine) Render(w http.ResponseWriter, status int, comp, name string, data any, policy CachePolicy) error {
	var buf bytes.Buffer
	if err := e.execute(&buf, comp, name, data, policy); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderToString executes and returns HTML.
func (e *Engine) RenderToString(comp, name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := e.execute(&buf, comp, name, data, CacheDefault); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func (e *Engine) execute(buf *bytes.Buffer, comp, name string, data any, policy CachePolicy) error {
	t, err := e.load(comp, name, policy)
	if err != nil {
		return err
	}
	if err := t.ExecuteTemplate(buf, execName(t, name), data); err != nil {
		zap.S().Errorw("template execute failed", "comp", comp, "name", name, "err", err)
		return err
	}
	return nil
}

//
// internal: load
//

// load returns the parsed set for comp, obeying the cache policy.
func (e *Engine) load(comp, name string, policy CachePolicy) (*template.Template, error) {
	key := comp + "::" + name

	if policy != CacheSkip {
		if t, ok := e.sets.Get(key); ok {
			return t, nil
		}
	}

	e.mu.RLock()
	base, ok := e.sources[comp]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("view: no templates registered for %q", comp)
	}

	t := template.New(name).Funcs(e.funcs)
	if err := parseAll(t, base); err != nil {
		return nil, fmt.Errorf("view: parse %s: %w", comp, err)
	}

	if e.override != "" {
		dir := filepath.Join(e.override, comp)
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			if err := parseAll(t, os.DirFS(dir)); err != nil {
				return nil, fmt.Errorf("view: parse override %s: %w", dir, err)
			}
			zap.S().Debugw("template overrides applied", "comp", comp, "dir", dir)
		}
	}

	if t.Lookup(name+".html") == nil && t.Lookup(name) == nil {
		return nil, fmt.Errorf("view: template %q not found in %s: %w", name, comp, os.ErrNotExist)
	}

	if policy != CacheSkip {
		e.sets.Add(key, t)
	}
	return t, nil
}

// parseAll adds every *.html in fsys to t.  An empty directory is not an
// error; ParseFS would reject it.
func parseAll(t *template.Template, fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*.html")
	if err != nil || len(files) == 0 {
		return err
	}
	_, err = t.ParseFS(fsys, files...)
	return err
}

//
// helpers
//

// execName picks the template name to execute.
//
// Priority:
//  1. If the set has "<name>.html" (file-based template), run that.
//  2. Otherwise, fall back to "<name>" (root template defined in code).
func execName(t *template.Template, name string) string {
	if tmpl := t.Lookup(name + ".html"); tmpl != nil {
		return name + ".html"
	}
	return name
}
