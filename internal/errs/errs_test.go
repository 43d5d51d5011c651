package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, "[NOT_FOUND] experiment not found", NotFound("experiment").Error())

	cause := fmt.Errorf("connection refused")
	err := Wrap(CodeDatabase, "failed to read assignment", cause)
	assert.Equal(t, "[DATABASE_ERROR] failed to read assignment: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestAppErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NotFound("variant"))

	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))
	assert.True(t, errors.Is(Conflict("status change"), ErrConflict))
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{CodeDatabase, true},
		{CodeAssignmentFailed, true},
		{CodeRateLimited, true},
		{CodeValidation, false},
		{CodeNotFound, false},
		{CodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(New(tt.code, "x")))
			assert.Equal(t, tt.want, IsRetryable(fmt.Errorf("outer: %w", New(tt.code, "x"))))
		})
	}

	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestCodeOfAndAs(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	plain := errors.New("boom")
	ae := As(plain)
	require.NotNil(t, ae)
	assert.Equal(t, CodeInternal, ae.Code)
	assert.ErrorIs(t, ae, plain)

	orig := Conflict("taken")
	assert.Same(t, orig, As(fmt.Errorf("wrap: %w", orig)))
}

func TestWithDetails(t *testing.T) {
	base := Validation("invalid field")
	detailed := base.WithDetails(map[string]any{"field": "name"})

	assert.Nil(t, base.Details)
	assert.Equal(t, "name", detailed.Details["field"])
	assert.Equal(t, base.Code, detailed.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeValidation:       http.StatusBadRequest,
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeNotFound:         http.StatusNotFound,
		CodeConflict:         http.StatusConflict,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodeAssignmentFailed: http.StatusServiceUnavailable,
		CodeDatabase:         http.StatusInternalServerError,
		CodeInternal:         http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, HTTPStatus(code), code)
	}
}
