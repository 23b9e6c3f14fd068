package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/eventhub/eventchat/internal/slogging"
)

// secretValueGetter is the one Secrets Manager call the provider makes
type secretValueGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSProvider reads one Secrets Manager secret holding a JSON object of
// key/value pairs. The object is fetched once and cached.
type AWSProvider struct {
	client     secretValueGetter
	secretName string

	mu     sync.RWMutex
	cache  map[string]string
	loaded bool
}

// NewAWSProvider creates a provider using the default AWS credential chain
func NewAWSProvider(ctx context.Context, region, secretName string) (*AWSProvider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	slogging.Get().Info("AWS Secrets Manager provider initialized for secret %s in %s", secretName, region)
	return newAWSProviderWithClient(secretsmanager.NewFromConfig(cfg), secretName), nil
}

func newAWSProviderWithClient(client secretValueGetter, secretName string) *AWSProvider {
	return &AWSProvider{
		client:     client,
		secretName: secretName,
		cache:      make(map[string]string),
	}
}

// GetSecret returns one key of the cached secret object
func (p *AWSProvider) GetSecret(ctx context.Context, key string) (string, error) {
	if err := p.load(ctx); err != nil {
		return "", err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.cache[key]
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// Name returns the provider name
func (p *AWSProvider) Name() string {
	return string(ProviderTypeAWS)
}

// Close is a no-op; the SDK client holds no resources that need releasing
func (p *AWSProvider) Close() error {
	return nil
}

// InvalidateCache forces a reload on next access
func (p *AWSProvider) InvalidateCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache = make(map[string]string)
	p.loaded = false
}

func (p *AWSProvider) load(ctx context.Context) error {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return nil
	}

	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(p.secretName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w: AWS secret '%s' not found", ErrInvalidConfig, p.secretName)
		}
		return fmt.Errorf("failed to retrieve AWS secret: %w", err)
	}
	if result.SecretString == nil {
		return fmt.Errorf("AWS secret '%s' has no string value", p.secretName)
	}

	var values map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &values); err != nil {
		return fmt.Errorf("failed to parse AWS secret as JSON: %w", err)
	}

	p.mu.Lock()
	p.cache = values
	p.loaded = true
	p.mu.Unlock()

	slogging.Get().Info("Loaded %d keys from AWS secret %s", len(values), p.secretName)
	return nil
}
