// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `Load` calls `validateStruct` immediately after it unmarshals the merged
// Koanf tree, fills defaults, and resolves Vault references.  Any tag
// mismatch aborts startup, so the binary never runs with a missing endpoint
// or a malformed listen address.
//
// Custom rule
// -----------
//   • `csrf.key`, when set, must decode as base64url to at least 32 bytes.

package config

import (
	"encoding/base64"
	"fmt"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = validator.New(validator.WithRequiredStructEnabled())

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	if err := v.Struct(c); err != nil {
		return err
	}
	if c.CSRF.Key != "" {
		if _, err := DecodeCSRFKey(c.CSRF.Key); err != nil {
			return err
		}
	}
	return nil
}

// DecodeCSRFKey decodes a base64url key and enforces the 32-byte minimum.
func DecodeCSRFKey(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("csrf.key: not base64url: %w", err)
	}
	if len(b) < 32 {
		return nil, fmt.Errorf("csrf.key: need at least 32 bytes, got %d", len(b))
	}
	return b, nil
}
