package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/config"
	"compliance/internal/logger"
)

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	var order []string
	for _, name := range []string{"postgres", "redis", "kafka consumer"} {
		name := name
		b.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, []string{"kafka consumer", "redis", "postgres"}, order)
}

func TestShutdownContinuesAfterFailure(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())
	closeErr := errors.New("connection reset")

	ran := false
	b.OnShutdown("postgres", func(context.Context) error {
		ran = true
		return nil
	})
	b.OnShutdown("redis", func(context.Context) error { return closeErr })

	err := b.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, closeErr)
	assert.Contains(t, err.Error(), "redis")
	assert.True(t, ran)
}

func TestShutdownIsIdempotent(t *testing.T) {
	b := NewBase(&config.Config{}, logger.NopLogger())

	calls := 0
	b.OnShutdown("tracer", func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, b.Shutdown(context.Background()))
	require.NoError(t, b.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestInitBrokerRegistersHealthCheck(t *testing.T) {
	cfg := &config.Config{Broker: config.BrokerConfig{Kafka: config.KafkaConfig{
		Brokers: []string{"127.0.0.1:1"},
		GroupID: "compliance",
	}}}
	b := NewBase(cfg, logger.NopLogger())

	require.NoError(t, b.InitBroker())
	require.NotNil(t, b.Producer)
	require.NotNil(t, b.Consumer)

	h := b.Health.Check(context.Background())
	require.Contains(t, h.Checks, "kafka")

	assert.NoError(t, b.Shutdown(context.Background()))
}
