// Package secrets resolves credentials from the environment or AWS Secrets
// Manager before the server wires its stores.
package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/eventhub/eventchat/internal/config"
	"github.com/eventhub/eventchat/internal/slogging"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidConfig  = errors.New("invalid secrets provider configuration")
)

// Provider defines the interface for secrets providers
type Provider interface {
	// GetSecret returns ErrSecretNotFound if the key does not exist
	GetSecret(ctx context.Context, key string) (string, error)
	Name() string
	Close() error
}

// ProviderType represents the type of secrets provider
type ProviderType string

const (
	ProviderTypeEnv ProviderType = "env"
	ProviderTypeAWS ProviderType = "aws"
)

// SecretKeys are the names looked up in every provider
var SecretKeys = struct {
	JWTSecret         string
	InternalHookToken string
	DatabasePassword  string
	RedisPassword     string
}{
	JWTSecret:         "jwt_secret",
	InternalHookToken: "internal_hook_token",
	DatabasePassword:  "database_password",
	RedisPassword:     "redis_password",
}

// NewProvider creates a provider from configuration. An empty provider name
// selects the environment provider.
func NewProvider(ctx context.Context, cfg config.SecretsConfig) (Provider, error) {
	logger := slogging.Get()

	switch ProviderType(cfg.Provider) {
	case "", ProviderTypeEnv:
		logger.Debug("Using environment secrets provider")
		return NewEnvProvider(), nil

	case ProviderTypeAWS:
		if cfg.AWSRegion == "" || cfg.AWSSecretName == "" {
			return nil, fmt.Errorf("%w: aws provider requires region and secret name", ErrInvalidConfig)
		}
		return NewAWSProvider(ctx, cfg.AWSRegion, cfg.AWSSecretName)

	default:
		return nil, fmt.Errorf("%w: unknown provider type: %s", ErrInvalidConfig, cfg.Provider)
	}
}

// Apply fills credential fields that the config file and env left empty.
// Values already set are never overwritten.
func Apply(ctx context.Context, p Provider, cfg *config.Config) error {
	targets := []struct {
		key   string
		field *string
	}{
		{SecretKeys.JWTSecret, &cfg.Auth.JWT.Secret},
		{SecretKeys.InternalHookToken, &cfg.Chat.InternalHookToken},
		{SecretKeys.DatabasePassword, &cfg.Database.Postgres.Password},
		{SecretKeys.RedisPassword, &cfg.Database.Redis.Password},
	}

	resolved := 0
	for _, t := range targets {
		if *t.field != "" {
			continue
		}
		value, err := p.GetSecret(ctx, t.key)
		if errors.Is(err, ErrSecretNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to resolve %s from %s: %w", t.key, p.Name(), err)
		}
		*t.field = value
		resolved++
	}

	slogging.Get().Info("Resolved %d secrets from %s provider", resolved, p.Name())
	return nil
}
