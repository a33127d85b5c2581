package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("Error returns message", func(t *testing.T) {
		err := &AppError{Code: "TEST_ERROR", Message: "test error message"}
		assert.Equal(t, "test error message", err.Error())
	})

	t.Run("Error includes wrapped error", func(t *testing.T) {
		err := &AppError{Code: "TEST_ERROR", Message: "test error message", Err: errors.New("wrapped error")}
		assert.Contains(t, err.Error(), "test error message")
		assert.Contains(t, err.Error(), "wrapped error")
	})

	t.Run("Unwrap returns wrapped error", func(t *testing.T) {
		wrapped := errors.New("wrapped error")
		err := &AppError{Code: "TEST_ERROR", Message: "test message", Err: wrapped}
		assert.Equal(t, wrapped, err.Unwrap())
	})
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		code   string
		status int
	}{
		{"not found", NotFound("video"), "NOT_FOUND", http.StatusNotFound},
		{"bad request", BadRequest("bad"), "BAD_REQUEST", http.StatusBadRequest},
		{"validation", ValidationError("prompt is required"), "VALIDATION_ERROR", http.StatusUnprocessableEntity},
		{"configuration", ConfigurationError("api key missing"), "CONFIGURATION_ERROR", http.StatusServiceUnavailable},
		{"conflict default code", Conflict("", "busy"), "CONFLICT", http.StatusConflict},
		{"conflict custom code", Conflict("GENERATION_IN_PROGRESS", "busy"), "GENERATION_IN_PROGRESS", http.StatusConflict},
		{"upstream", Upstream("failed", errors.New("boom")), "UPSTREAM_ERROR", http.StatusBadGateway},
		{"internal", Internal("failed", nil), "INTERNAL_ERROR", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.StatusCode)
		})
	}

	assert.Equal(t, "video not found", NotFound("video").Message)
}

func TestUpstream_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("remote call failed", cause)

	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, cause)
}

func TestToResponse(t *testing.T) {
	resp := ValidationError("prompt is required").ToResponse()
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "prompt is required", resp.Error.Message)
}
