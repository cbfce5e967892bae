// Package secrets resolves secret references in configuration values.
// A reference is either a literal, "env:VAR_NAME", "file:/path", or
// "enc:<envelope>" for values sealed with the encryption engine.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"unifi-report/internal/encryption"
)

var (
	// ErrSecretNotFound is returned when a referenced secret does not exist.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrNoPassphrase is returned for enc: references when no encryption
	// engine was configured.
	ErrNoPassphrase = errors.New("encrypted secret but no passphrase configured")
)

// Resolver resolves secret references. The zero value resolves literals,
// env and file references; enc references additionally need an engine.
type Resolver struct {
	engine *encryption.Engine
}

// NewResolver creates a resolver. engine may be nil when no encrypted
// values are expected.
func NewResolver(engine *encryption.Engine) *Resolver {
	return &Resolver{engine: engine}
}

// Resolve turns a reference into its secret value.
func (r *Resolver) Resolve(ref string) (string, error) {
	scheme, rest, ok := strings.Cut(ref, ":")
	if !ok {
		return ref, nil
	}

	switch scheme {
	case "env":
		value, exists := os.LookupEnv(rest)
		if !exists {
			return "", fmt.Errorf("%w: environment variable %s is not set", ErrSecretNotFound, rest)
		}
		return value, nil

	case "file":
		data, err := os.ReadFile(rest)
		if err != nil {
			if os.IsNotExist(err) {
				return "", fmt.Errorf("%w: %s", ErrSecretNotFound, rest)
			}
			return "", fmt.Errorf("failed to read secret file %s: %w", rest, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil

	case "enc":
		if r.engine == nil {
			return "", ErrNoPassphrase
		}
		value, err := r.engine.DecryptString(rest)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt secret: %w", err)
		}
		return value, nil
	}

	// Unknown scheme, treat the whole string as a literal. Passwords
	// containing a colon stay usable this way.
	return ref, nil
}

// ResolveAll resolves each reference in place, reporting the first failure.
func (r *Resolver) ResolveAll(refs ...*string) error {
	for _, ref := range refs {
		if ref == nil || *ref == "" {
			continue
		}
		value, err := r.Resolve(*ref)
		if err != nil {
			return err
		}
		*ref = value
	}
	return nil
}
