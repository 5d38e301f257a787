package secrets

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"
)

// AWSSecretsManager resolves secrets from AWS Secrets Manager with a small
// in-process TTL cache so hot secrets are not re-fetched on every call.
type AWSSecretsManager struct {
	client   *secretsmanager.Client
	cacheTTL time.Duration
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	fetchedAt time.Time
}

// NewAWSSecretsManager creates a Secrets Manager backed secret source
func NewAWSSecretsManager(ctx context.Context, region string, cacheTTL time.Duration, logger *zap.Logger) (*AWSSecretsManager, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}

	logger.Info("AWS Secrets Manager initialized",
		zap.String("region", cfg.Region),
		zap.Duration("cache_ttl", cacheTTL),
	)

	return &AWSSecretsManager{
		client:   secretsmanager.NewFromConfig(cfg),
		cacheTTL: cacheTTL,
		logger:   logger,
		cache:    make(map[string]cachedSecret),
	}, nil
}

// GetSecret returns the secret value for name
func (m *AWSSecretsManager) GetSecret(ctx context.Context, name string) (string, error) {
	m.mu.RLock()
	if cached, ok := m.cache[name]; ok && time.Since(cached.fetchedAt) < m.cacheTTL {
		m.mu.RUnlock()
		return cached.value, nil
	}
	m.mu.RUnlock()

	out, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		return "", fmt.Errorf("get secret %q: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %q has no string value", name)
	}

	m.mu.Lock()
	m.cache[name] = cachedSecret{value: *out.SecretString, fetchedAt: time.Now()}
	m.mu.Unlock()

	return *out.SecretString, nil
}

// Close releases backend resources
func (m *AWSSecretsManager) Close() error {
	m.mu.Lock()
	m.cache = make(map[string]cachedSecret)
	m.mu.Unlock()
	return nil
}
