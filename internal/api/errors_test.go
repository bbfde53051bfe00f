package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-vocab/internal/api"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/service/auth"
	"github.com/phrazzld/scry-vocab/internal/service/review"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"wrong token type", auth.ErrWrongTokenType, http.StatusUnauthorized},
		{"item not found", review.NewServiceError("grade", "missing", review.ErrItemNotFound), http.StatusNotFound},
		{"concurrency conflict", fmt.Errorf("grade: %w", review.ErrConcurrencyConflict), http.StatusConflict},
		{"invalid grade", review.ErrInvalidGrade, http.StatusBadRequest},
		{"domain validation", domain.ErrVocabularyTargetEmpty, http.StatusBadRequest},
		{"store unavailable", review.NewServiceError("stats", "down", review.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"raw store error", store.ErrUnavailable, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, api.MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessageNeverLeaksDetails(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "An unexpected error occurred"},
		{"expired", auth.ErrExpiredToken, "Token expired"},
		{"invalid token", auth.ErrInvalidToken, "Invalid token"},
		{"not found", review.ErrItemNotFound, "Review item not found"},
		{"days", review.ErrInvalidDays, "Days must be at least 1"},
		{"generic validation", fmt.Errorf("%w: limit must be positive", domain.ErrValidation), "Validation error"},
		{
			"internal detail",
			errors.New("pq: connection to postgres://scry:pw@db failed"),
			"An unexpected error occurred",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, api.GetSafeErrorMessage(tc.err))
		})
	}
}

func TestSanitizeValidationError(t *testing.T) {
	t.Parallel()

	v := validator.New()
	type request struct {
		Grade string `validate:"required,oneof=again hard good easy"`
	}

	assert.Equal(t, "Invalid grade: required field", api.SanitizeValidationError(v.Struct(request{})))
	assert.Equal(t, "Invalid grade: invalid value", api.SanitizeValidationError(v.Struct(request{Grade: "meh"})))
	assert.Equal(t, "Validation error", api.SanitizeValidationError(errors.New("plain")))
}
