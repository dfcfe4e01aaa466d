package providers

import (
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/types"
)

// AvailabilityProbe reports whether providers are currently usable: network
// reachability for cloud backends plus credential presence per provider.
type AvailabilityProbe interface {
	IsOnline() bool
	HasCredential(provider types.ProviderID) bool
	IsAvailable(provider types.ProviderID) bool
}

// ProbeConfig configures the default probe.
type ProbeConfig struct {
	// ProbeAddress is the TCP endpoint dialed to confirm connectivity.
	ProbeAddress string        `yaml:"probe_address"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	// CacheInterval bounds how often the dial actually happens.
	CacheInterval time.Duration `yaml:"cache_interval"`
}

// DefaultProbe implements AvailabilityProbe with a cached TCP dial and a
// static credential table built at construction time.
type DefaultProbe struct {
	config      *ProbeConfig
	logger      *logrus.Logger
	credentials map[types.ProviderID]bool

	mu          sync.Mutex
	lastCheck   time.Time
	lastOnline  bool
	everChecked bool
}

// NewDefaultProbe creates a probe. The credentials map records, per
// provider, whether a usable credential (or local endpoint) is configured.
func NewDefaultProbe(config *ProbeConfig, credentials map[types.ProviderID]bool, logger *logrus.Logger) *DefaultProbe {
	if config == nil {
		config = &ProbeConfig{}
	}
	if config.ProbeAddress == "" {
		config.ProbeAddress = "1.1.1.1:443"
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 2 * time.Second
	}
	if config.CacheInterval == 0 {
		config.CacheInterval = 30 * time.Second
	}

	creds := make(map[types.ProviderID]bool, len(credentials))
	for p, ok := range credentials {
		creds[p] = ok
	}

	return &DefaultProbe{
		config:      config,
		logger:      logger,
		credentials: creds,
	}
}

// IsOnline reports network reachability, re-dialing at most once per cache
// interval.
func (p *DefaultProbe) IsOnline() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.everChecked && time.Since(p.lastCheck) < p.config.CacheInterval {
		return p.lastOnline
	}

	conn, err := net.DialTimeout("tcp", p.config.ProbeAddress, p.config.DialTimeout)
	online := err == nil
	if conn != nil {
		conn.Close()
	}

	p.lastCheck = time.Now()
	p.lastOnline = online
	p.everChecked = true

	if !online {
		p.logger.WithError(err).Warn("Network probe failed, treating cloud providers as offline")
	}
	return online
}

// HasCredential reports whether the provider has a configured credential.
func (p *DefaultProbe) HasCredential(provider types.ProviderID) bool {
	return p.credentials[provider]
}

// IsAvailable combines the two checks. The local provider never needs the
// network.
func (p *DefaultProbe) IsAvailable(provider types.ProviderID) bool {
	if !p.HasCredential(provider) {
		return false
	}
	if provider.IsCloud() {
		return p.IsOnline()
	}
	return true
}

// StaticProbe is a fixed-answer probe for wiring and tests.
type StaticProbe struct {
	Online      bool
	Credentials map[types.ProviderID]bool
}

func (s *StaticProbe) IsOnline() bool { return s.Online }

func (s *StaticProbe) HasCredential(provider types.ProviderID) bool {
	return s.Credentials[provider]
}

func (s *StaticProbe) IsAvailable(provider types.ProviderID) bool {
	if !s.Credentials[provider] {
		return false
	}
	if provider.IsCloud() {
		return s.Online
	}
	return true
}
