// Package secrets resolves the API keys the agents need from a key file,
// an inline value or a list of provider environment variables.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotConfigured is returned when a source holds no usable secret.
var ErrNotConfigured = errors.New("secret is not configured")

// Source describes where a credential comes from. The first non-empty
// place wins, in this order: File, Value, Env.
type Source struct {
	// Name identifies the secret in error messages.
	Name string
	// File points to a file holding the value.
	File string
	// Value is an inline value from configuration.
	Value string
	// Env lists environment variables consulted when File and Value are empty.
	Env []string
}

// Load resolves the secret of src. Surrounding whitespace and a pair of
// matching quotes, as left by .env files, are removed.
func Load(src Source) (string, error) {
	name := strings.TrimSpace(src.Name)
	if name == "" {
		name = "secret"
	}

	if file := strings.TrimSpace(src.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading %s from file %q: %w", name, file, err)
		}
		if secret := clean(string(data)); secret != "" {
			return secret, nil
		}
		return "", fmt.Errorf("%s file %q is empty: %w", name, file, ErrNotConfigured)
	}

	if secret := clean(src.Value); secret != "" {
		return secret, nil
	}

	for _, env := range src.Env {
		if secret := clean(os.Getenv(env)); secret != "" {
			return secret, nil
		}
	}

	if len(src.Env) > 0 {
		return "", fmt.Errorf("%s (%s): %w", name, strings.Join(src.Env, " or "), ErrNotConfigured)
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotConfigured)
}

func clean(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}
