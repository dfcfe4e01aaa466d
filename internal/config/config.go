package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/noteflux/ai-router/internal/middleware"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/providers/anthropic"
	"github.com/noteflux/ai-router/internal/providers/local"
	"github.com/noteflux/ai-router/internal/providers/openai"
	"github.com/noteflux/ai-router/internal/ratelimit"
	"github.com/noteflux/ai-router/internal/routing"
	"github.com/noteflux/ai-router/internal/security"
	"github.com/noteflux/ai-router/internal/types"
)

// Config is the complete application configuration.
type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Policy    PolicyConfig          `yaml:"policy"`
	RateLimit ratelimit.Config      `yaml:"rate_limit"`
	Retry     ratelimit.RetryConfig `yaml:"retry"`
	Providers ProvidersConfig       `yaml:"providers"`
	Probe     providers.ProbeConfig `yaml:"probe"`
	Logging   LoggingConfig         `yaml:"logging"`
	Security  SecurityConfig        `yaml:"security"`

	// SettingsPath is where operator ProcessingModeSettings persist.
	SettingsPath string `yaml:"settings_path"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// PolicyConfig holds the decision-engine policy table.
type PolicyConfig struct {
	Weights routing.PolicyWeights `yaml:"weights"`
}

// ProvidersConfig holds configuration for the three backends. A nil cloud
// entry disables that provider.
type ProvidersConfig struct {
	CloudPrimary   *anthropic.Config `yaml:"cloud_primary"`
	CloudSecondary *openai.Config    `yaml:"cloud_secondary"`
	Local          *local.Config     `yaml:"local"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds security configuration for the HTTP surface.
type SecurityConfig struct {
	APIKeys    []string                    `yaml:"api_keys"`
	JWTSecret  string                      `yaml:"jwt_secret"`
	Validation middleware.ValidationConfig `yaml:"validation"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// setDefaults sets default configuration values.
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	c.Policy = PolicyConfig{
		Weights: routing.DefaultPolicyWeights(),
	}

	c.RateLimit = *ratelimit.DefaultConfig()
	c.Retry = *ratelimit.DefaultRetryConfig()

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Providers = ProvidersConfig{
		CloudPrimary: &anthropic.Config{
			Model:     "claude-3-5-haiku-20241022",
			MaxTokens: 1024,
			Timeout:   120 * time.Second,
		},
		CloudSecondary: &openai.Config{
			Model:     "gpt-4o-mini",
			MaxTokens: 1024,
			Timeout:   120 * time.Second,
		},
		Local: &local.Config{
			BaseURL:   "http://localhost:11434/v1",
			Model:     "llama3.2",
			MaxTokens: 1024,
			Timeout:   300 * time.Second,
		},
	}

	c.SettingsPath = "settings.yaml"
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}

// loadFromEnv overrides configuration from environment variables.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("AI_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.Providers.CloudPrimary != nil {
		c.Providers.CloudPrimary.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.Providers.CloudSecondary != nil {
		c.Providers.CloudSecondary.APIKey = key
	}
	if url := os.Getenv("AI_ROUTER_LOCAL_URL"); url != "" && c.Providers.Local != nil {
		c.Providers.Local.BaseURL = url
	}

	if level := os.Getenv("AI_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("AI_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if path := os.Getenv("AI_ROUTER_SETTINGS_PATH"); path != "" {
		c.SettingsPath = path
	}
}

// validate checks the configuration.
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	// The local provider is the compliance anchor: a build without it would
	// leave sensitive content with no compliant target.
	if c.Providers.Local == nil {
		return fmt.Errorf("local provider must be configured")
	}

	return nil
}

// Credentials reports, per provider, whether a usable credential or endpoint
// is configured. Consumed by the availability probe.
func (c *Config) Credentials() map[types.ProviderID]bool {
	creds := map[types.ProviderID]bool{}
	creds[types.ProviderCloudPrimary] = c.Providers.CloudPrimary != nil && c.Providers.CloudPrimary.APIKey != ""
	creds[types.ProviderCloudSecondary] = c.Providers.CloudSecondary != nil && c.Providers.CloudSecondary.APIKey != ""
	creds[types.ProviderLocal] = c.Providers.Local != nil && c.Providers.Local.BaseURL != ""
	return creds
}

// ToSecurityConfig converts to the middleware stack configuration.
func (c *Config) ToSecurityConfig() *middleware.SecurityConfig {
	return &middleware.SecurityConfig{
		Auth: &security.Config{
			APIKeys:     c.Security.APIKeys,
			JWTSecret:   c.Security.JWTSecret,
			RequireAuth: len(c.Security.APIKeys) > 0 || c.Security.JWTSecret != "",
		},
		Validation: &c.Security.Validation,
	}
}

// SaveToFile writes the configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
