package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/types"
)

// Config holds the cloud-primary provider configuration.
type Config struct {
	APIKey    string        `yaml:"api_key"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int64         `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Provider is the cloud-primary backend, served by the Anthropic API.
type Provider struct {
	client *anthropic.Client
	config *Config
	logger *logrus.Logger
}

// New creates the cloud-primary provider.
func New(config *Config, logger *logrus.Logger) *Provider {
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &Provider{
		client: &client,
		config: config,
		logger: logger,
	}
}

// ID returns the provider identity.
func (p *Provider) ID() types.ProviderID {
	return types.ProviderCloudPrimary
}

// Invoke performs one generation call against the Anthropic messages API.
func (p *Provider) Invoke(ctx context.Context, task types.TaskType, text string) (*types.ProviderResult, error) {
	start := time.Now()

	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: p.config.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: providers.InstructionFor(task), Type: "text"},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		p.logger.WithError(err).WithField("task", task).Error("Anthropic API call failed")
		return nil, p.classifyError(err)
	}

	var output strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			output.WriteString(block.Text)
		}
	}

	result := &types.ProviderResult{
		Text:       output.String(),
		TokensUsed: int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		Provider:   p.ID(),
		Duration:   time.Since(start),
	}

	p.logger.WithFields(logrus.Fields{
		"task":        task,
		"tokens":      result.TokensUsed,
		"duration_ms": result.Duration.Milliseconds(),
	}).Debug("Anthropic call completed")

	return result, nil
}

// HealthCheck verifies the API is reachable and credentialed with a minimal
// request.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(p.config.Model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

// classifyError maps SDK failures onto the tagged taxonomy the retry
// controller branches on.
func (p *Provider) classifyError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return &types.ProviderError{
				Kind:       types.KindRateLimited,
				Provider:   p.ID(),
				RetryAfter: retryAfterFrom(apierr),
				Err:        err,
			}
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return &types.ProviderError{Kind: types.KindAuth, Provider: p.ID(), Err: err}
		case apierr.StatusCode >= 500:
			return &types.ProviderError{Kind: types.KindTransientServer, Provider: p.ID(), Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &types.ProviderError{Kind: types.KindNetwork, Provider: p.ID(), Err: err}
}

// retryAfterFrom reads the server-suggested delay, when present.
func retryAfterFrom(apierr *anthropic.Error) time.Duration {
	if apierr.Response == nil {
		return 0
	}
	header := apierr.Response.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
