package vault

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReference(t *testing.T) {
	tests := []struct {
		ref      string
		wantPath string
		wantKey  string
		wantErr  bool
	}{
		{ref: "vault:secret/signin#csrf_key", wantPath: "secret/signin", wantKey: "csrf_key"},
		{ref: "vault:kv/apps/signin/db#dsn", wantPath: "kv/apps/signin/db", wantKey: "dsn"},
		{ref: "vault:secret/signin", wantErr: true},
		{ref: "vault:secret/signin#", wantErr: true},
		{ref: "vault:#key", wantErr: true},
		{ref: "vault:secret#key", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			p, k, err := ParseReference(tt.ref)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrBadReference), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, p)
			assert.Equal(t, tt.wantKey, k)
		})
	}
}

func TestSplitMount(t *testing.T) {
	m, r := splitMount("secret/signin/prod")
	assert.Equal(t, "secret", m)
	assert.Equal(t, "signin/prod", r)

	m, r = splitMount("")
	assert.Empty(t, m)
	assert.Empty(t, r)
}

func TestResolve_PlainValuePassesThrough(t *testing.T) {
	c := &Client{cache: map[string]cached{}}
	v, err := c.Resolve(context.Background(), "plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", v)
}

func TestResolve_ServedFromCache(t *testing.T) {
	// api is nil: a cache miss would panic, so a hit proves the cache path.
	c := &Client{
		ttl: time.Minute,
		cache: map[string]cached{
			"secret/signin#csrf_key": {val: "s3cret", exp: time.Now().Add(time.Minute)},
		},
	}
	v, err := c.Resolve(context.Background(), "vault:secret/signin#csrf_key")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)
}

func TestEnabled(t *testing.T) {
	t.Setenv("VAULT_ADDR", "")
	assert.False(t, Enabled())
	t.Setenv("VAULT_ADDR", "http://127.0.0.1:8200")
	assert.True(t, Enabled())
}
