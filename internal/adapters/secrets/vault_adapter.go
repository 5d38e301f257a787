package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

// VaultAdapter resolves secrets from a HashiCorp Vault KV v2 mount.
type VaultAdapter struct {
	client *vault.Client
	mount  string
	logger *zap.Logger
}

// NewVaultAdapter creates a Vault backed secret source. Address and token
// come from the standard VAULT_ADDR / VAULT_TOKEN environment variables.
func NewVaultAdapter(mount string, logger *zap.Logger) (*VaultAdapter, error) {
	cfg := vault.DefaultConfig()

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}

	if mount == "" {
		mount = "secret"
	}

	logger.Info("Vault secret manager initialized",
		zap.String("address", cfg.Address),
		zap.String("mount", mount),
	)

	return &VaultAdapter{
		client: client,
		mount:  mount,
		logger: logger,
	}, nil
}

// GetSecret returns the "value" field of the KV v2 secret at name
func (v *VaultAdapter) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := v.client.KVv2(v.mount).Get(ctx, name)
	if err != nil {
		return "", fmt.Errorf("read vault secret %q: %w", name, err)
	}

	value, ok := secret.Data["value"].(string)
	if !ok {
		return "", fmt.Errorf("vault secret %q has no string field %q", name, "value")
	}
	return value, nil
}

// Close releases backend resources
func (v *VaultAdapter) Close() error {
	return nil
}
