package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"compliance/pkg/logging"
)

func TestContextFieldsAreAppended(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := FromZap(zap.New(core))
	l.(*SugaredLogger).SetServiceName("inventory-consumer")

	ctx := logging.WithRequestID(context.Background(), "req-9")
	l.InfowCtx(ctx, "handled", "route", "upload")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "inventory-consumer", fields["service_name"])
	assert.Equal(t, "upload", fields["route"])
}

func TestWithKeepsServiceName(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := FromZap(zap.New(core)).(*SugaredLogger)
	base.SetServiceName("svc")

	base.With("component", "worker").WarnwCtx(context.Background(), "slow")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "worker", fields["component"])
	assert.Equal(t, "svc", fields["service_name"])
}

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		l, err := New(level, "json")
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
	_, err := New("info", "console")
	assert.NoError(t, err)
}
