package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationNegativeCount, http.StatusBadRequest},
		{ErrCodeValidationMalformedPeriod, http.StatusBadRequest},
		{ErrCodeBulkPartialFailure, http.StatusBadRequest},
		{ErrCodeInsufficientData, http.StatusUnprocessableEntity},
		{ErrCodeEmptyTable, http.StatusUnprocessableEntity},
		{ErrCodeNotFoundNeighborhood, http.StatusNotFound},
		{ErrCodeNotFoundResult, http.StatusNotFound},
		{ErrCodeConflictConcurrent, http.StatusConflict},
		{ErrCodeUpstreamSource, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.code.HTTPStatus(), "code %s", tt.code)
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := fmt.Errorf("row scan failed")
	err := NewAppError(ErrCodeInternalDB, "query failed", cause)

	assert.Equal(t, "internal_database_error: query failed", err.Error())
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("repo: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, ErrCodeInternalDB, appErr.Code)
}

func TestAppErrorWithDetails(t *testing.T) {
	base := NewAppErrorWithDetails(ErrCodeValidationNegativeCount, "bad count", nil,
		map[string]any{"neighborhood_id": "centro"})

	extended := base.WithDetails(map[string]any{"period": "2026-01"})
	assert.Equal(t, "centro", extended.Details["neighborhood_id"])
	assert.Equal(t, "2026-01", extended.Details["period"])
	// The original is not mutated.
	assert.NotContains(t, base.Details, "period")
}

func TestAppErrorDetail(t *testing.T) {
	err := NewAppError(ErrCodeInsufficientData, "too few points", nil)
	detail := err.Detail()
	assert.Equal(t, ErrCodeInsufficientData, detail.Code)
	assert.Equal(t, "too few points", detail.Message)
}
