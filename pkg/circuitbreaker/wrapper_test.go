package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "compliance/pkg/errors"
)

func TestFromSettingsDisabled(t *testing.T) {
	w := FromSettings("queue", Settings{Enabled: false})
	assert.Nil(t, w)
	assert.Equal(t, "disabled", w.State())

	called := false
	err := w.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestRunOpensAfterFailures(t *testing.T) {
	w := FromSettings("test-open", Settings{
		Enabled:      true,
		MaxRequests:  1,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	})

	boom := errors.New("redis down")
	for i := 0; i < 2; i++ {
		err := w.Run(context.Background(), func(context.Context) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())

	called := false
	err := w.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, apperrors.IsUnavailable(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestRunHonoursCancelledContext(t *testing.T) {
	w := FromSettings("test-ctx", Settings{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
