package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/noteflux/ai-router/internal/security"
)

// SecurityConfig holds the middleware stack configuration for the HTTP
// surface.
type SecurityConfig struct {
	Auth       *security.Config  `yaml:"auth"`
	Validation *ValidationConfig `yaml:"validation"`
}

// SecurityMiddleware composes authentication and OpenAPI validation into a
// single chain. Outbound provider throttling is not handled here; that is
// the rate limiter's job inside the pipeline.
type SecurityMiddleware struct {
	authenticator *security.Authenticator
	validator     *ValidationMiddleware
	logger        *logrus.Logger
}

// NewSecurityMiddleware builds the middleware stack.
func NewSecurityMiddleware(config *SecurityConfig, logger *logrus.Logger) (*SecurityMiddleware, error) {
	sm := &SecurityMiddleware{logger: logger}

	if config.Auth != nil {
		sm.authenticator = security.NewAuthenticator(config.Auth, logger)
	}

	if config.Validation != nil {
		validator, err := NewValidationMiddleware(config.Validation, logger)
		if err != nil {
			return nil, err
		}
		sm.validator = validator
	}

	return sm, nil
}

// Handler returns the composed middleware chain, auth outermost.
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		handler := next

		if s.validator != nil {
			handler = s.validator.Middleware(handler)
		}
		if s.authenticator != nil {
			handler = s.authenticator.Middleware()(handler)
		}

		return securityHeaders(handler)
	}
}

// securityHeaders adds standard response headers.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
