package head

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuilder_HTML(t *testing.T) {
	b := New()
	b.SetTitle("first")
	b.SetTitle("Sign in <now>")
	b.Meta("robots", "noindex")
	b.Meta("robots", "index")
	b.Link("canonical", `/signin?a="b"`)

	assert.Equal(t,
		`<title>Sign in &lt;now&gt;</title>`+
			`<meta name="robots" content="noindex">`+
			`<link rel="canonical" href="/signin?a=&#34;b&#34;">`,
		string(b.HTML()))
}

func TestBuilder_NilAndEmpty(t *testing.T) {
	var b *Builder
	assert.Empty(t, b.HTML())
	assert.Empty(t, New().HTML())
}
