package view

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yanizio/signin/internal/requestinfo"
)

func embedded() fstest.MapFS {
	return fstest.MapFS{
		"page.html":   {Data: []byte(`<h1>{{ .Title }}</h1>{{ template "footer.html" . }}`)},
		"footer.html": {Data: []byte(`<footer>default</footer>`)},
		"named.html":  {Data: []byte(`{{ define "named" }}{{ with dict "a" 1 }}{{ .a }}{{ end }}{{ end }}`)},
		"ua.html":     {Data: []byte(`{{ browser .Info }}|{{ isBot .Info }}`)},
	}
}

func TestRender_WritesStatusAndBody(t *testing.T) {
	e := New("")
	e.Register("auth", embedded())

	rec := httptest.NewRecorder()
	require.NoError(t, e.Render(rec, http.StatusUnprocessableEntity, "auth", "page", map[string]string{"Title": "Hi"}, CacheDefault))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>Hi</h1><footer>default</footer>", rec.Body.String())
}

func TestRender_DefineStyleTemplate(t *testing.T) {
	e := New("")
	e.Register("auth", embedded())
	out, err := e.RenderToString("auth", "named", nil)
	require.NoError(t, err)
	assert.Equal(t, "1", string(out))
}

func TestRender_OverrideDirWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "auth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "auth", "footer.html"), []byte(`<footer>custom</footer>`), 0o644))

	e := New(dir)
	e.Register("auth", embedded())
	out, err := e.RenderToString("auth", "page", map[string]string{"Title": "X"})
	require.NoError(t, err)
	assert.Equal(t, "<h1>X</h1><footer>custom</footer>", string(out))
}

func TestRender_UAHelpersNilSafe(t *testing.T) {
	e := New("")
	e.Register("auth", embedded())

	out, err := e.RenderToString("auth", "ua", map[string]any{"Info": (*requestinfo.RequestInfo)(nil)})
	require.NoError(t, err)
	assert.Equal(t, "|false", string(out))

	info := &requestinfo.RequestInfo{UA: requestinfo.UA{Browser: "Firefox", IsBot: true}}
	out, err = e.RenderToString("auth", "ua", map[string]any{"Info": info})
	require.NoError(t, err)
	assert.Equal(t, "Firefox|true", string(out))
}

func TestRender_Errors(t *testing.T) {
	e := New("")
	_, err := e.RenderToString("nope", "page", nil)
	require.Error(t, err)

	e.Register("auth", embedded())
	_, err = e.RenderToString("auth", "missing", nil)
	require.ErrorIs(t, err, os.ErrNotExist)

	rec := httptest.NewRecorder()
	require.Error(t, e.Render(rec, http.StatusOK, "auth", "missing", nil, CacheSkip))
	assert.Zero(t, rec.Body.Len(), "nothing written on failure")
}

func TestRender_CachesParsedSet(t *testing.T) {
	e := New("")
	e.Register("auth", embedded())
	_, err := e.RenderToString("auth", "page", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, 1, e.sets.Len())

	e.Register("auth", embedded())
	assert.Equal(t, 0, e.sets.Len(), "re-register drops cached sets")
}
