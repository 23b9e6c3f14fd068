package secrets

import (
	"context"
	"os"
	"strings"
)

// EnvProvider maps secret keys to EVENTCHAT_SECRET_<KEY> variables
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a new environment variable secrets provider
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: "EVENTCHAT_SECRET_"}
}

// GetSecret reads the variable for key; "jwt_secret" maps to EVENTCHAT_SECRET_JWT_SECRET
func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	value := os.Getenv(p.prefix + strings.ToUpper(key))
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *EnvProvider) Name() string {
	return string(ProviderTypeEnv)
}

// Close is a no-op for the environment provider
func (p *EnvProvider) Close() error {
	return nil
}
