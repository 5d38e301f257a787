package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// EnvSecretManager resolves secrets from environment variables. It is the
// default backend for development deployments.
type EnvSecretManager struct {
	logger *zap.Logger
}

// NewEnvSecretManager creates an environment backed secret source
func NewEnvSecretManager(logger *zap.Logger) *EnvSecretManager {
	logger.Warn("using environment secret manager; prefer AWS or Vault in production")
	return &EnvSecretManager{logger: logger}
}

// GetSecret maps name to an environment variable: dashes and slashes become
// underscores and the result is upper-cased.
func (m *EnvSecretManager) GetSecret(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "_", "/", "_").Replace(name))
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("secret %q not set in environment (%s)", name, key)
	}
	return value, nil
}

// Close releases backend resources
func (m *EnvSecretManager) Close() error { return nil }
