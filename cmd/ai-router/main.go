package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/classify"
	"github.com/noteflux/ai-router/internal/config"
	"github.com/noteflux/ai-router/internal/metrics"
	"github.com/noteflux/ai-router/internal/notify"
	"github.com/noteflux/ai-router/internal/providers"
	"github.com/noteflux/ai-router/internal/providers/anthropic"
	"github.com/noteflux/ai-router/internal/providers/local"
	"github.com/noteflux/ai-router/internal/providers/openai"
	"github.com/noteflux/ai-router/internal/ratelimit"
	"github.com/noteflux/ai-router/internal/routing"
	"github.com/noteflux/ai-router/internal/server"
	"github.com/noteflux/ai-router/internal/types"
)

// Application wires the pipeline together.
type Application struct {
	config *config.Config
	server *server.Server
	logger *logrus.Logger
}

// NewApplication creates a new application instance.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	settings, err := config.NewSettingsStore(cfg.SettingsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	backends, err := registerProviders(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	probe := providers.NewDefaultProbe(&cfg.Probe, cfg.Credentials(), logger)
	limiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)
	executor := ratelimit.NewExecutor(limiter, &cfg.Retry, logger)
	aggregator := metrics.NewAggregator(logger)
	hub := notify.NewHub(func() bool { return settings.Get().NotificationsEnabled }, logger)

	engine := routing.NewEngine(cfg.Policy.Weights, probe, aggregator.Snapshot, logger)
	processor := routing.NewProcessor(
		classify.NewClassifier(logger),
		engine,
		executor,
		backends,
		aggregator,
		hub,
		settings.Get,
		settings.Rules,
		logger,
	)

	serverInstance, err := server.NewServer(server.Deps{
		Processor:  processor,
		Backends:   backends,
		Probe:      probe,
		Aggregator: aggregator,
		Hub:        hub,
		Settings:   settings,
	}, &server.Config{
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		Security:       cfg.ToSecurityConfig(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config: cfg,
		server: serverInstance,
		logger: logger,
	}, nil
}

// Run starts the application and blocks until shutdown.
func (app *Application) Run() error {
	app.logger.Info("Starting AI router")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// setupLogger configures the logger based on configuration.
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProviders builds the backend map from configuration. The local
// backend is mandatory; cloud backends are registered only when credentialed.
func registerProviders(cfg *config.Config, logger *logrus.Logger) (map[types.ProviderID]providers.Provider, error) {
	backends := map[types.ProviderID]providers.Provider{}

	localProvider := local.New(cfg.Providers.Local, logger)
	backends[localProvider.ID()] = localProvider
	logger.WithFields(logrus.Fields{
		"provider": localProvider.ID(),
		"base_url": cfg.Providers.Local.BaseURL,
	}).Info("Local provider registered")

	if cfg.Providers.CloudPrimary != nil && cfg.Providers.CloudPrimary.APIKey != "" {
		p := anthropic.New(cfg.Providers.CloudPrimary, logger)
		backends[p.ID()] = p
		logger.WithFields(logrus.Fields{
			"provider": p.ID(),
			"model":    cfg.Providers.CloudPrimary.Model,
		}).Info("Cloud primary provider registered")
	}

	if cfg.Providers.CloudSecondary != nil && cfg.Providers.CloudSecondary.APIKey != "" {
		p := openai.New(cfg.Providers.CloudSecondary, logger)
		backends[p.ID()] = p
		logger.WithFields(logrus.Fields{
			"provider": p.ID(),
			"model":    cfg.Providers.CloudSecondary.Model,
		}).Info("Cloud secondary provider registered")
	}

	logger.WithField("count", len(backends)).Info("Provider registration completed")
	return backends, nil
}

// printUsage prints application usage information.
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY        Cloud primary API key\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY           Cloud secondary API key\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOCAL_URL      Local backend base URL (default: http://localhost:11434/v1)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_PORT           Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_LEVEL      Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_FORMAT     Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_SETTINGS_PATH  Processing mode settings file\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY=sk-ant-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *version {
		fmt.Printf("AI Router v1.0.0\n")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
