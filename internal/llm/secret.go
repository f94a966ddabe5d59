// Package llm — secret.go provides API key resolution for the hosted model
// backends. Keys come from an environment variable, a Kubernetes Secret, or
// both; resolution happens per call so rotated credentials take effect
// without a restart.
package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// SecretReader reads a value from a Kubernetes Secret by namespace, name, and
// key. In production this is backed by the Kubernetes API; in tests a stub is
// injected.
type SecretReader interface {
	ReadSecret(ctx context.Context, namespace, name, key string) (string, error)
}

// SecretRef identifies a Kubernetes Secret and key within it.
type SecretRef struct {
	Namespace string
	Name      string
	Key       string
}

// Validate checks that the SecretRef has all required fields populated.
func (s SecretRef) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("secret name must not be empty")
	}
	if s.Key == "" {
		return fmt.Errorf("secret key must not be empty")
	}
	return nil
}

// keyResolver resolves an API key from an environment variable and/or a
// Kubernetes Secret. When both are configured, a set and non-empty
// environment variable wins; otherwise the Secret is read.
type keyResolver struct {
	env     string
	ref     SecretRef
	secrets SecretReader
}

func newKeyResolver(env string, ref SecretRef, secrets SecretReader) (keyResolver, error) {
	if env == "" && ref == (SecretRef{}) {
		return keyResolver{}, fmt.Errorf("an apiKeyEnv or apiKeyRef is required")
	}
	if ref != (SecretRef{}) {
		if err := ref.Validate(); err != nil {
			return keyResolver{}, fmt.Errorf("apiKeyRef: %w", err)
		}
		if secrets == nil {
			return keyResolver{}, fmt.Errorf("secretReader must not be nil")
		}
	}
	return keyResolver{env: env, ref: ref, secrets: secrets}, nil
}

// resolve returns the API key for the current call.
func (r keyResolver) resolve(ctx context.Context) (string, error) {
	if r.env != "" {
		if v := strings.TrimSpace(os.Getenv(r.env)); v != "" {
			return v, nil
		}
		if r.ref == (SecretRef{}) {
			return "", fmt.Errorf("environment variable %s is empty", r.env)
		}
	}
	return r.secrets.ReadSecret(ctx, r.ref.Namespace, r.ref.Name, r.ref.Key)
}
