package ports

import "context"

// SecretManager resolves named secrets from a backing store. Backends are
// selected at startup; the env-based backend is the default.
type SecretManager interface {
	// GetSecret returns the secret value for name
	GetSecret(ctx context.Context, name string) (string, error)

	// Close releases any backend resources
	Close() error
}
