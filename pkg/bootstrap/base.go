// Package bootstrap assembles the process-wide pieces of the consumer:
// config, logger, Kafka clients, health checks and an ordered shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compliance/internal/broker"
	"compliance/internal/config"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/pkg/health"
)

type shutdownHook struct {
	name string
	fn   func(ctx context.Context) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
	Health   *health.CheckerRegistry

	mu    sync.Mutex
	hooks []shutdownHook
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.AppName)
	}
	return &Base{
		Config: cfg,
		Logger: log,
		Health: health.NewCheckerRegistry(),
	}
}

// InitBroker creates the Kafka clients and registers the broker health
// check. The consumer is registered last so it is closed first.
func (b *Base) InitBroker() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	b.OnShutdown("kafka producer", func(context.Context) error { return producer.Close() })

	if p, ok := producer.(pinger); ok {
		b.Health.Register(health.NewPingChecker("kafka", p.Ping))
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(constants.AppName)
	b.Consumer = consumer
	b.OnShutdown("kafka consumer", func(context.Context) error { return consumer.Close() })

	return nil
}

// OnShutdown registers fn to run during Shutdown. Hooks run in reverse
// registration order.
func (b *Base) OnShutdown(name string, fn func(ctx context.Context) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, shutdownHook{name: name, fn: fn})
}

// Shutdown runs every registered hook once, even after a failure, and
// joins their errors.
func (b *Base) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	hooks := b.hooks
	b.hooks = nil
	b.mu.Unlock()

	b.Logger.InfowCtx(ctx, "Shutting down application", "hooks", len(hooks))

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		if err := h.fn(ctx); err != nil {
			b.Logger.WarnwCtx(ctx, "Shutdown hook failed", "hook", h.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	b.Logger.InfowCtx(ctx, "Application exited successfully")
	return nil
}
