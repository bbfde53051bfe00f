package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/api/shared"
	"github.com/phrazzld/scry-vocab/internal/config"
	"github.com/phrazzld/scry-vocab/internal/platform/clock"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/service/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validatorFunc func(ctx context.Context, token string) (*auth.Claims, error)

func (f validatorFunc) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	return f(ctx, token)
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()

	tests := []struct {
		name           string
		authHeader     string
		validateErr    error
		expectedStatus int
	}{
		{"valid token", "Bearer valid-token", nil, http.StatusOK},
		{"lowercase scheme", "bearer valid-token", nil, http.StatusOK},
		{"missing auth header", "", nil, http.StatusUnauthorized},
		{"invalid auth format", "InvalidFormat", nil, http.StatusUnauthorized},
		{"empty bearer token", "Bearer ", nil, http.StatusUnauthorized},
		{"expired token", "Bearer expired-token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"invalid token", "Bearer invalid-token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"refresh token", "Bearer refresh-token", auth.ErrWrongTokenType, http.StatusUnauthorized},
		{"unexpected failure", "Bearer valid-token", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mw := NewAuthMiddleware(validatorFunc(func(_ context.Context, token string) (*auth.Claims, error) {
				if tt.validateErr != nil {
					return nil, tt.validateErr
				}
				assert.Equal(t, "valid-token", token)
				return &auth.Claims{OwnerID: ownerID, TokenType: "access"}, nil
			}))

			var captured uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured, _ = GetOwnerID(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/v1/reviews", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			mw.Authenticate(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, ownerID, captured)
			} else {
				assert.Equal(t, uuid.Nil, captured)
			}
		})
	}
}

func TestAuthMiddlewareWithJWTService(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	svc, err := auth.NewJWTServiceWithClock(config.AuthConfig{
		JWTSecret:        "test-secret-that-is-long-enough-for-testing",
		ClockSkewSeconds: 30,
	}, clock.NewManual(now))
	require.NoError(t, err)

	ownerID := uuid.New()
	token, err := svc.GenerateToken(context.Background(), ownerID, time.Hour)
	require.NoError(t, err)

	var captured uuid.UUID
	handler := NewAuthMiddleware(svc).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = shared.OwnerIDFromContext(r.Context())
		assert.NotNil(t, logger.FromContext(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/reviews", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ownerID, captured)
}

func TestNewAuthMiddlewarePanicsOnNil(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewAuthMiddleware(nil) })
}
