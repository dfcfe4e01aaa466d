package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/noteflux/ai-router/internal/routing"
	"github.com/noteflux/ai-router/internal/types"
)

// SettingsStore persists operator processing-mode settings across restarts.
// Reads are served from memory; writes go through to disk before the new
// value becomes visible. The compiled content rule set is kept alongside the
// settings so the pipeline never recompiles patterns per request.
type SettingsStore struct {
	path   string
	logger *logrus.Logger

	mu      sync.RWMutex
	current types.ProcessingModeSettings
	rules   *routing.RuleSet
}

// NewSettingsStore loads settings from path, falling back to defaults when
// the file does not exist yet.
func NewSettingsStore(path string, logger *logrus.Logger) (*SettingsStore, error) {
	store := &SettingsStore{
		path:    path,
		logger:  logger,
		current: types.DefaultProcessingModeSettings(),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.WithField("path", path).Info("No settings file found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	default:
		var loaded types.ProcessingModeSettings
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return nil, fmt.Errorf("invalid persisted settings: %w", err)
		}
		store.current = loaded
		logger.WithFields(logrus.Fields{
			"path":           path,
			"preferred_mode": loaded.PreferredMode,
		}).Info("Loaded processing mode settings")
	}

	rules, err := routing.NewRuleSet(store.current.ContentRules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile content rules: %w", err)
	}
	store.rules = rules
	return store, nil
}

// Get returns the current settings.
func (s *SettingsStore) Get() types.ProcessingModeSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Rules returns the compiled content rules for the current settings.
func (s *SettingsStore) Rules() *routing.RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Update validates, persists, and applies new settings atomically.
func (s *SettingsStore) Update(settings types.ProcessingModeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	rules, err := routing.NewRuleSet(settings.ContentRules)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	s.current = settings
	s.rules = rules

	s.logger.WithFields(logrus.Fields{
		"preferred_mode": settings.PreferredMode,
		"auto_switch":    settings.AutoSwitchEnabled,
	}).Info("Processing mode settings updated")
	return nil
}
