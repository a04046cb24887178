// internal/form/csrf.go
//
// Forms subsystem: stateless CSRF token utilities.
//
// Context
//   Pages embed a hidden `csrf_token` input generated at render time.  The
//   server verifies it on POST to ensure the request originated from a form
//   it rendered.  The token is stateless:
//
//      base64url( nonce | unixMicro | HMAC_SHA256(key, nonce+unixMicro+binding) )
//
//   •  nonce – 16 random bytes.
//   •  unixMicro – microseconds since Unix epoch, 8 bytes, big-endian.
//   •  binding – caller-chosen string (the session ID) mixed into the MAC
//      only, so a token minted for one browser fails for another.
//
// Workflow
//   •  NewSigner(key)          → one per process, key from csrf.key.
//   •  s.Generate(binding)     → token string for the renderer.
//   •  s.Verify(tok, binding)  → constant-time verify; false on any failure.
//
//------------------------------------------------------------------------------

package form

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	nonceBytes = 16
	tokenBytes = nonceBytes + 8 + sha256.Size // nonce + ts + sig

	// DefaultMaxAge is the token validity window.
	DefaultMaxAge = 2 * time.Hour
)

// Signer mints and verifies CSRF tokens.  Safe for concurrent use.
type Signer struct {
	key    []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer keyed by key.  A nil or empty key generates an
// ephemeral random key, which invalidates tokens on restart.
func NewSigner(key []byte) (*Signer, error) {
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("csrf: generate key: %w", err)
		}
		zap.S().Warnw("csrf.key not set; using ephemeral key")
	}
	return &Signer{key: key, maxAge: DefaultMaxAge, now: time.Now}, nil
}

// Generate creates a new token bound to binding.  Call once per render.
func (s *Signer) Generate(binding string) (string, error) {
	nonce := make([]byte, nonceBytes)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ts := make([]byte, 8)
	binary.BigEndian.PutUint64(ts, uint64(s.now().UnixMicro()))

	buf := make([]byte, 0, tokenBytes)
	buf = append(buf, nonce...)
	buf = append(buf, ts...)
	buf = append(buf, s.sign(nonce, ts, binding)...)

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Verify returns true if tok passes HMAC and age checks for binding.
func (s *Signer) Verify(tok, binding string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != tokenBytes {
		return false
	}

	nonce := raw[:nonceBytes]
	tsBytes := raw[nonceBytes : nonceBytes+8]
	sig := raw[nonceBytes+8:]

	issued := time.UnixMicro(int64(binary.BigEndian.Uint64(tsBytes)))
	now := s.now()
	if now.Sub(issued) > s.maxAge || issued.Sub(now) > time.Minute {
		// Older than maxAge, or from the future (clock skew).
		return false
	}

	return hmac.Equal(sig, s.sign(nonce, tsBytes, binding))
}

func (s *Signer) sign(nonce, ts []byte, binding string) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(nonce)
	mac.Write(ts)
	mac.Write([]byte(binding))
	return mac.Sum(nil)
}
