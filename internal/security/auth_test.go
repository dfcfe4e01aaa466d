package security

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthenticator(config *Config) *Authenticator {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return NewAuthenticator(config, logger)
}

func TestAuthenticator_ValidateAPIKey(t *testing.T) {
	auth := newTestAuthenticator(&Config{
		APIKeys: []string{"valid-key-1", "valid-key-2"},
	})

	tests := []struct {
		name    string
		apiKey  string
		wantErr bool
	}{
		{name: "valid key 1", apiKey: "valid-key-1", wantErr: false},
		{name: "valid key 2", apiKey: "valid-key-2", wantErr: false},
		{name: "invalid key", apiKey: "wrong-key", wantErr: true},
		{name: "empty key", apiKey: "", wantErr: true},
		{name: "prefix of a valid key", apiKey: "valid-key", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := auth.ValidateAPIKey(tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, info)
			} else {
				require.NoError(t, err)
				assert.NotEmpty(t, info.UserID)
				assert.Equal(t, "api_key", info.Metadata["auth_type"])
			}
		})
	}
}

func TestAuthenticator_JWTRoundTrip(t *testing.T) {
	auth := newTestAuthenticator(&Config{
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})

	token, err := auth.GenerateJWT("user-42", []string{"api:access"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := auth.ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.UserID)
	assert.Equal(t, []string{"api:access"}, claims.Permissions)
	assert.Equal(t, "ai-router", claims.Issuer)
}

func TestAuthenticator_JWTWrongSecret(t *testing.T) {
	issuer := newTestAuthenticator(&Config{JWTSecret: "secret-a", JWTExpiry: time.Hour})
	verifier := newTestAuthenticator(&Config{JWTSecret: "secret-b", JWTExpiry: time.Hour})

	token, err := issuer.GenerateJWT("user-42", nil)
	require.NoError(t, err)

	_, err = verifier.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticator_JWTExpired(t *testing.T) {
	auth := newTestAuthenticator(&Config{JWTSecret: "test-secret", JWTExpiry: -time.Minute})

	token, err := auth.GenerateJWT("user-42", nil)
	require.NoError(t, err)

	_, err = auth.ValidateJWT(token)
	assert.Error(t, err)
}

func TestAuthenticator_AuthenticateAcceptsBothSchemes(t *testing.T) {
	auth := newTestAuthenticator(&Config{
		APIKeys:   []string{"an-api-key"},
		JWTSecret: "test-secret",
		JWTExpiry: time.Hour,
	})
	ctx := context.Background()

	info, err := auth.Authenticate(ctx, "an-api-key")
	require.NoError(t, err)
	assert.Equal(t, "api_key", info.Metadata["auth_type"])

	token, err := auth.GenerateJWT("user-7", []string{"api:access"})
	require.NoError(t, err)

	info, err = auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", info.UserID)

	_, err = auth.Authenticate(ctx, "garbage")
	assert.Error(t, err)
}

func TestAuthenticator_Middleware(t *testing.T) {
	auth := newTestAuthenticator(&Config{
		APIKeys:     []string{"an-api-key"},
		RequireAuth: true,
	})

	var gotInfo *AuthInfo
	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotInfo, _ = GetAuthInfo(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/metrics", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/metrics", nil)
		req.Header.Set("X-API-Key", "wrong")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("api key header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/metrics", nil)
		req.Header.Set("X-API-Key", "an-api-key")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, gotInfo)
		assert.Contains(t, gotInfo.Permissions, "api:access")
	})

	t.Run("bearer header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/v1/metrics", nil)
		req.Header.Set("Authorization", "Bearer an-api-key")
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("health is exempt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("docs are exempt", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/docs", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthenticator_MiddlewareAuthDisabled(t *testing.T) {
	auth := newTestAuthenticator(&Config{RequireAuth: false})

	handler := auth.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
