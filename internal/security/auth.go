package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

// contextKey keeps request-context values collision-free.
type contextKey string

const authInfoKey contextKey = "auth_info"

// AuthInfo describes the authenticated caller.
type AuthInfo struct {
	UserID      string            `json:"user_id"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// JWTClaims are the token claims issued and accepted by this service.
type JWTClaims struct {
	UserID      string            `json:"user_id"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration for the admin/processing HTTP
// surface.
type Config struct {
	APIKeys     []string      `yaml:"api_keys"`
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
	RequireAuth bool          `yaml:"require_auth"`
}

// Authenticator validates API keys and JWT bearer tokens.
type Authenticator struct {
	config *Config
	logger *logrus.Logger
}

// NewAuthenticator creates an authenticator.
func NewAuthenticator(config *Config, logger *logrus.Logger) *Authenticator {
	if config.JWTExpiry == 0 {
		config.JWTExpiry = 24 * time.Hour
	}
	return &Authenticator{
		config: config,
		logger: logger,
	}
}

// Authenticate accepts either a configured API key or a valid JWT.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*AuthInfo, error) {
	if info, err := a.ValidateAPIKey(token); err == nil {
		return info, nil
	}
	if claims, err := a.ValidateJWT(token); err == nil {
		return &AuthInfo{
			UserID:      claims.UserID,
			Permissions: claims.Permissions,
			Metadata:    claims.Metadata,
			ExpiresAt:   &claims.ExpiresAt.Time,
		}, nil
	}
	return nil, errors.New("invalid authentication token")
}

// ValidateAPIKey checks the key against the configured set with
// constant-time comparison.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*AuthInfo, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}
	for _, validKey := range a.config.APIKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			return &AuthInfo{
				UserID:      userIDFromKey(apiKey),
				Permissions: []string{"api:access"},
				Metadata:    map[string]string{"auth_type": "api_key"},
			}, nil
		}
	}
	a.logger.WithField("api_key_prefix", maskKey(apiKey)).Warn("Invalid API key attempted")
	return nil, errors.New("invalid API key")
}

// GenerateJWT issues a signed token for a user.
func (a *Authenticator) GenerateJWT(userID string, permissions []string) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:      userID,
		Permissions: permissions,
		Metadata:    map[string]string{"auth_type": "jwt"},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "ai-router",
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.config.JWTExpiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.config.JWTSecret))
}

// ValidateJWT parses and verifies a token, rejecting non-HMAC signatures.
func (a *Authenticator) ValidateJWT(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.config.JWTSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid JWT token")
}

// Middleware enforces authentication on every route except health and docs.
func (a *Authenticator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.config.RequireAuth ||
				strings.HasPrefix(r.URL.Path, "/health") ||
				strings.HasPrefix(r.URL.Path, "/docs") {
				next.ServeHTTP(w, r)
				return
			}

			token := extractToken(r)
			if token == "" {
				a.writeUnauthorized(w, "Missing authentication token")
				return
			}

			info, err := a.Authenticate(r.Context(), token)
			if err != nil {
				a.logger.WithFields(logrus.Fields{
					"path":   r.URL.Path,
					"method": r.Method,
				}).Warn("Authentication failed")
				a.writeUnauthorized(w, "Invalid authentication token")
				return
			}

			ctx := context.WithValue(r.Context(), authInfoKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAuthInfo extracts the authenticated caller from a request context.
func GetAuthInfo(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authInfoKey).(*AuthInfo)
	return info, ok
}

func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if apiKey := r.Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}
	return ""
}

func userIDFromKey(apiKey string) string {
	if len(apiKey) >= 8 {
		return "user_" + apiKey[:8]
	}
	return "user_" + apiKey
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****"
}

func (a *Authenticator) writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"authentication_error","code":401},"timestamp":%d}`,
		message, time.Now().Unix())
}
