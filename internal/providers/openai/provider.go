package openai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/types"
)

// Config holds the cloud-secondary provider configuration.
type Config struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Provider is the cloud-secondary backend, served by the OpenAI API.
type Provider struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// New creates the cloud-secondary provider.
func New(config *Config, logger *logrus.Logger) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &Provider{
		client: client,
		config: config,
		logger: logger,
	}
}

// ID returns the provider identity.
func (p *Provider) ID() types.ProviderID {
	return types.ProviderCloudSecondary
}

// Invoke performs one generation call against the chat completions API.
func (p *Provider) Invoke(ctx context.Context, task types.TaskType, text string) (*types.ProviderResult, error) {
	return Invoke(ctx, p.client, p.ID(), p.config.Model, p.config.MaxTokens, task, text, p.logger)
}

// HealthCheck verifies the API is reachable and credentialed.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai health check failed: %w", err)
	}
	return nil
}

// Invoke runs one chat completion against any OpenAI-compatible endpoint and
// maps failures onto the tagged taxonomy. Shared with the local provider,
// which speaks the same wire protocol.
func Invoke(ctx context.Context, client *openai.Client, id types.ProviderID, model string, maxTokens int, task types.TaskType, text string, logger *logrus.Logger) (*types.ProviderResult, error) {
	start := time.Now()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: providers.InstructionFor(task)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		logger.WithError(err).WithFields(logrus.Fields{
			"provider": id,
			"task":     task,
		}).Error("Chat completion call failed")
		return nil, ClassifyError(id, err)
	}

	if len(resp.Choices) == 0 {
		return nil, &types.ProviderError{
			Kind:     types.KindTransientServer,
			Provider: id,
			Message:  "response contained no choices",
		}
	}

	result := &types.ProviderResult{
		Text:       resp.Choices[0].Message.Content,
		TokensUsed: resp.Usage.TotalTokens,
		Provider:   id,
		Duration:   time.Since(start),
	}

	logger.WithFields(logrus.Fields{
		"provider":    id,
		"task":        task,
		"tokens":      result.TokensUsed,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("Chat completion call completed")

	return result, nil
}

// ClassifyError maps go-openai failures onto the tagged taxonomy.
func ClassifyError(id types.ProviderID, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return &types.ProviderError{
				Kind:       types.KindRateLimited,
				Provider:   id,
				RetryAfter: retryAfterFrom(apiErr),
				Err:        err,
			}
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &types.ProviderError{Kind: types.KindAuth, Provider: id, Err: err}
		case apiErr.HTTPStatusCode >= 500:
			return &types.ProviderError{Kind: types.KindTransientServer, Provider: id, Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &types.ProviderError{Kind: types.KindNetwork, Provider: id, Err: err}
}

var retryAfterPattern = regexp.MustCompile(`try again in (\d+(?:\.\d+)?(?:ms|s|m))`)

// retryAfterFrom reads the server-suggested delay. The SDK drops response
// headers when it decodes an error body, but the API repeats the delay in
// the 429 message text.
func retryAfterFrom(apiErr *openai.APIError) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(apiErr.Message)
	if len(match) < 2 {
		return 0
	}
	delay, err := time.ParseDuration(match[1])
	if err != nil || delay < 0 {
		return 0
	}
	return delay
}
