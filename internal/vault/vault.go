// internal/vault/vault.go
//
// Vault client wrapper for secret references in configuration.
//
// Context
// -------
//   - Configuration values may be written as `vault:<mount>/<path>#<key>`,
//     e.g. `vault:secret/signin#csrf_key`.  The config loader hands such
//     values to Resolve, which reads the key from a KV-v2 secret.
//   - Provides a concurrency-safe wrapper around the HashiCorp Vault Go SDK
//     with a small per-key cache so repeated reloads do not hammer Vault.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New()                       // during boot.
//  2. val, err := cli.Resolve(ctx, "vault:secret/signin#csrf_key")
//
// Environment expectations
// ------------------------
// • VAULT_ADDR   – scheme and host of the Vault server.
// • VAULT_TOKEN  – token used for reads.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// Prefix marks a config value as a Vault reference.
const Prefix = "vault:"

// DefaultTTL is how long a resolved value is reused.
const DefaultTTL = 5 * time.Minute

// ErrBadReference is returned for values that do not parse as
// `vault:<mount>/<path>#<key>`.
var ErrBadReference = errors.New("vault: malformed secret reference")

//
// SECTION 1.  Public façade
//

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api *vault.Client
	ttl time.Duration

	cacheMu sync.RWMutex
	cache   map[string]cached // canonical path#key → value + expiry.
}

type cached struct {
	val string
	exp time.Time
}

// Enabled reports whether the environment points at a Vault server.
func Enabled() bool { return os.Getenv("VAULT_ADDR") != "" }

// New constructs a Vault client from the standard VAULT_* environment.
func New() (*Client, error) {
	cfg := vault.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}

	apiCli, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	if tok := os.Getenv("VAULT_TOKEN"); tok != "" {
		apiCli.SetToken(tok)
	}

	return &Client{
		api:   apiCli,
		ttl:   DefaultTTL,
		cache: make(map[string]cached),
	}, nil
}

// IsReference reports whether s should be resolved through Vault.
func IsReference(s string) bool { return strings.HasPrefix(s, Prefix) }

// Resolve returns the secret value ref points to.  Values without the
// `vault:` prefix are returned unchanged.
func (c *Client) Resolve(ctx context.Context, ref string) (string, error) {
	if !IsReference(ref) {
		return ref, nil
	}
	path, key, err := ParseReference(ref)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, path, key, c.ttl)
}

// GetKV fetches a single key from a KV-v2 secret.  If ttl > 0 the result is
// cached for that duration.
func (c *Client) GetKV(ctx context.Context, secretPath, key string, ttl time.Duration) (string, error) {
	if secretPath == "" || key == "" {
		return "", errors.New("secret path and key must be non-empty")
	}

	canonical := secretPath + "#" + key

	if ttl > 0 {
		c.cacheMu.RLock()
		if cv, ok := c.cache[canonical]; ok && time.Now().Before(cv.exp) {
			c.cacheMu.RUnlock()
			return cv.val, nil
		}
		c.cacheMu.RUnlock()
	}

	mount, rel := splitMount(secretPath)
	sec, err := c.api.KVv2(mount).Get(ctx, rel)
	if err != nil {
		return "", fmt.Errorf("vault get %s: %w", secretPath, err)
	}

	raw, ok := sec.Data[key]
	if !ok {
		return "", fmt.Errorf("key %q not found in secret %q", key, secretPath)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s#%s is not a string", secretPath, key)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[canonical] = cached{val: sval, exp: time.Now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	return sval, nil
}

//
// SECTION 2.  Helpers
//

// ParseReference splits `vault:<mount>/<path>#<key>` into path and key.
func ParseReference(ref string) (path, key string, err error) {
	body := strings.TrimPrefix(ref, Prefix)
	i := strings.LastIndexByte(body, '#')
	if i <= 0 || i == len(body)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrBadReference, ref)
	}
	path, key = body[:i], body[i+1:]
	if mount, rel := splitMount(path); mount == "" || rel == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadReference, ref)
	}
	return path, key, nil
}

func splitMount(p string) (mount, rel string) {
	if p == "" {
		return "", ""
	}
	parts := strings.SplitN(strings.Trim(p, "/"), "/", 2)
	mount = parts[0]
	if len(parts) == 2 {
		rel = parts[1]
	}
	return
}
