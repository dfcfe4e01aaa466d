package local

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	openaiprovider "github.com/noteflux/ai-router/internal/providers/openai"
	"github.com/noteflux/ai-router/internal/types"
)

// Config holds the local runtime configuration. The runtime is any
// OpenAI-compatible inference server on the local machine (Ollama,
// llama.cpp, LM Studio); no API key leaves the host.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Provider is the local backend.
type Provider struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// New creates the local provider.
func New(config *Config, logger *logrus.Logger) *Provider {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434/v1"
	}
	if config.Model == "" {
		config.Model = "llama3.2"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	clientConfig := openai.DefaultConfig("local")
	clientConfig.BaseURL = config.BaseURL
	client := openai.NewClientWithConfig(clientConfig)

	return &Provider{
		client: client,
		config: config,
		logger: logger,
	}
}

// ID returns the provider identity.
func (p *Provider) ID() types.ProviderID {
	return types.ProviderLocal
}

// Invoke performs one generation call against the local runtime.
func (p *Provider) Invoke(ctx context.Context, task types.TaskType, text string) (*types.ProviderResult, error) {
	return openaiprovider.Invoke(ctx, p.client, p.ID(), p.config.Model, p.config.MaxTokens, task, text, p.logger)
}

// HealthCheck verifies the local runtime is up.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("local runtime health check failed (%s): %w", p.config.BaseURL, err)
	}
	return nil
}
