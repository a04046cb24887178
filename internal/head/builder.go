// internal/head/builder.go
//
// Builder collects the tags a page emits inside <head>.  It is scoped to a
// single render: handlers fill one in, the layout template calls HTML.
//
// Features
// --------
//   - SetTitle     – single <title> tag (last call wins).
//   - Meta, Link   – attribute-escaped tags, deduplicated by name or rel+href.
//   - HTML         – the title followed by metas then links.
package head

import (
	"html/template"
	"strings"
	"sync"
)

// Builder is safe for concurrent use, though one goroutine per render is
// the normal case.
type Builder struct {
	mu    sync.Mutex
	title string
	metas []string
	links []string
	seen  map[string]struct{}
}

func New() *Builder {
	return &Builder{seen: make(map[string]struct{})}
}

// SetTitle overrides the page <title>.
func (b *Builder) SetTitle(t string) {
	b.mu.Lock()
	b.title = t
	b.mu.Unlock()
}

// Meta adds <meta name=… content=…>.  A second call for the same name is
// ignored.
func (b *Builder) Meta(name, content string) {
	tag := `<meta name="` + esc(name) + `" content="` + esc(content) + `">`
	b.add("meta:"+name, &b.metas, tag)
}

// Link adds <link rel=… href=…>.
func (b *Builder) Link(rel, href string) {
	tag := `<link rel="` + esc(rel) + `" href="` + esc(href) + `">`
	b.add("link:"+rel+" "+href, &b.links, tag)
}

func (b *Builder) add(key string, tgt *[]string, tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.seen[key]; dup {
		return
	}
	b.seen[key] = struct{}{}
	*tgt = append(*tgt, tag)
}

// HTML renders every collected tag.  A nil Builder renders nothing.
func (b *Builder) HTML() template.HTML {
	if b == nil {
		return ""
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	if b.title != "" {
		sb.WriteString("<title>" + template.HTMLEscapeString(b.title) + "</title>")
	}
	for _, s := range b.metas {
		sb.WriteString(s)
	}
	for _, s := range b.links {
		sb.WriteString(s)
	}
	return template.HTML(sb.String())
}

func esc(s string) string { return template.HTMLEscapeString(s) }
