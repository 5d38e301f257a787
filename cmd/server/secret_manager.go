package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	adapterports "github.com/portalclube/payment-reconciler/internal/adapters/ports"
	"github.com/portalclube/payment-reconciler/internal/adapters/secrets"
	"github.com/portalclube/payment-reconciler/internal/config"
)

// initSecretManager initializes the appropriate secret manager based on environment
// Supports:
//   - AWS Secrets Manager (production): Set SECRET_MANAGER=aws and AWS_REGION
//   - HashiCorp Vault: Set SECRET_MANAGER=vault, VAULT_ADDR and VAULT_TOKEN
//   - Environment variables (development): Default when SECRET_MANAGER is not set
func initSecretManager(ctx context.Context, logger *zap.Logger) adapterports.SecretManager {
	secretManagerType := getEnv("SECRET_MANAGER", "env")

	switch secretManagerType {
	case "aws":
		return initAWSSecretManager(ctx, logger)
	case "vault":
		return initVaultSecretManager(logger)
	case "env":
		return initEnvSecretManager(logger)
	default:
		logger.Warn("Unknown SECRET_MANAGER type, falling back to env",
			zap.String("secret_manager", secretManagerType),
		)
		return initEnvSecretManager(logger)
	}
}

func initAWSSecretManager(ctx context.Context, logger *zap.Logger) adapterports.SecretManager {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		logger.Fatal("AWS_REGION environment variable is required when SECRET_MANAGER=aws")
	}

	cacheTTL := 5 * time.Minute
	if minutes := getEnvInt("SECRET_CACHE_TTL_MINUTES", 0); minutes > 0 {
		cacheTTL = time.Duration(minutes) * time.Minute
	}

	sm, err := secrets.NewAWSSecretsManager(ctx, region, cacheTTL, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", region),
		)
	}

	logger.Info("AWS Secrets Manager initialized",
		zap.String("region", region),
		zap.Duration("cache_ttl", cacheTTL),
	)
	return sm
}

func initVaultSecretManager(logger *zap.Logger) adapterports.SecretManager {
	mount := getEnv("VAULT_MOUNT", "secret")
	sm, err := secrets.NewVaultAdapter(mount, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault secret manager", zap.Error(err))
	}
	logger.Info("Vault secret manager initialized", zap.String("mount", mount))
	return sm
}

func initEnvSecretManager(logger *zap.Logger) adapterports.SecretManager {
	logger.Warn("Using environment-variable secret manager - NOT for production use!")
	return secrets.NewEnvSecretManager(logger)
}

// resolveSecrets overrides config values with secret-manager entries when
// present. Absence is tolerated so local development keeps working on plain
// environment variables.
func resolveSecrets(ctx context.Context, sm adapterports.SecretManager, cfg *config.Config, logger *zap.Logger) {
	if value, err := sm.GetSecret(ctx, "asaas-api-key"); err == nil && value != "" {
		cfg.Asaas.APIKey = value
		logger.Info("Asaas API key loaded from secret manager")
	}
	if value, err := sm.GetSecret(ctx, "db-password"); err == nil && value != "" {
		cfg.Database.Password = value
		logger.Info("Database password loaded from secret manager")
	}

	if cfg.Asaas.APIKey == "" {
		logger.Fatal("Asaas API key is not configured; set ASAAS_API_KEY or provision the asaas-api-key secret")
	}
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
