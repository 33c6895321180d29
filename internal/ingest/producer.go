package ingest

import (
	"context"
	"time"

	"compliance/internal/broker"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
)

// ResultProducer emits the validation outcome of an upload. With no topic
// configured it only logs.
type ResultProducer struct {
	producer broker.Producer
	topic    string
	source   string
	now      func() time.Time
	logger   logger.Logger
}

func NewResultProducer(producer broker.Producer, topic string, log logger.Logger) *ResultProducer {
	return &ResultProducer{
		producer: producer,
		topic:    topic,
		now:      time.Now,
		logger:   log,
	}
}

// WithSource stamps every produced message with source.
func (p *ResultProducer) WithSource(source string) *ResultProducer {
	p.source = source
	return p
}

// Produce fails only on broker errors, which the caller treats as transient.
func (p *ResultProducer) Produce(ctx context.Context, requestID, validation string) error {
	metrics.IncValidationResult(validation)

	if p.topic == "" {
		p.logger.DebugwCtx(ctx, "Validation topic not configured, result not produced", "validation", validation)
		return nil
	}

	msg := models.ValidationMessage{
		RequestID:  requestID,
		Service:    constants.ServiceName,
		Validation: validation,
		Date:       p.now().UTC().Format(time.RFC3339),
		Source:     p.source,
	}
	if err := p.producer.Publish(ctx, p.topic, requestID, msg); err != nil {
		return newError(KindTransient, err, "failed to produce validation result")
	}

	p.logger.InfowCtx(ctx, "Produced validation result", "validation", validation, "topic", p.topic)
	return nil
}
