package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRetryability(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		retryable bool
	}{
		{"unavailable", ErrServiceUnavailable, true},
		{"timeout", ErrTimeout, true},
		{"validation", ErrValidation, false},
		{"not found", ErrNotFound, false},
		{"forced retryable", ErrValidation.AsRetryable(), true},
		{"forced fatal", ErrServiceUnavailable.AsFatal(), false},
		{"cause decides", ErrInternal.WithCause(ErrTimeout), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.err.IsRetryable())
			assert.Equal(t, !tt.retryable, tt.err.IsFatal())
		})
	}
}

func TestUnavailableWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("enqueue: %w", Unavailable(cause))

	assert.True(t, IsUnavailable(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.Nil(t, Unavailable(nil))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrNotFound.WithMessage("host h1 not found")

	assert.Contains(t, err.Error(), "host h1 not found")
	assert.NotContains(t, ErrNotFound.Error(), "h1")
	assert.True(t, IsNotFound(err))
}

func TestIsRetryablePlainError(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic: boom")
	assert.True(t, IsRetryable(err))

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, true, appErr.Details["panic"])
	assert.NotEmpty(t, appErr.Details["stack_trace"])
}
