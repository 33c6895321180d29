// Package ingest consumes inventory events: compliance report uploads are
// parsed and evaluated, host deletions are queued for cleanup.
package ingest

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"compliance/internal/broker"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/pkg/logging"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
	"compliance/pkg/tracing"
)

const (
	routeUpload  = "upload"
	routeDelete  = "delete"
	routeIgnored = "ignored"
	routeInvalid = "invalid"
)

// Dispatcher routes each inventory event to its handler and decides when it
// is committed. It keeps per-message state and is not safe for concurrent
// use; the consumer feeds it one partition batch at a time.
type Dispatcher struct {
	upload   *UploadHandler
	deletion *DeletionHandler
	logger   logger.Logger

	state cycleState
}

func NewDispatcher(upload *UploadHandler, deletion *DeletionHandler, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		upload:   upload,
		deletion: deletion,
		logger:   log,
	}
}

// HandleBatch processes messages in order and commits each one whose
// outcome is final. The first transient failure stops the batch uncommitted.
func (d *Dispatcher) HandleBatch(ctx context.Context, batch []broker.Message, commit broker.CommitFunc) error {
	for _, msg := range batch {
		if err := d.Process(ctx, msg); err != nil {
			return err
		}
		if err := commit(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Process handles one message. A nil return means the message may be
// committed; an error means it must be redelivered.
func (d *Dispatcher) Process(ctx context.Context, msg broker.Message) (err error) {
	d.state.reset()
	defer d.state.reset()

	start := time.Now()
	ctx, span := tracing.StartSpanFromKafkaMessage(ctx, "ingest.process", msg.Headers,
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer span.End()

	ev, derr := models.DecodeInboundEvent(msg.Value)
	if derr != nil {
		metrics.IncInventoryMessage(routeInvalid, "skipped")
		d.logger.WarnwCtx(ctx, "Skipping malformed inventory event",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", derr,
		)
		return nil
	}
	d.state.event = ev

	ctx = eventContext(ctx, ev)
	r := route(ev)
	span.SetAttributes(attribute.String("inventory.route", r), attribute.String("inventory.type", ev.Type))
	defer func() {
		metrics.ObserveMessageDuration(r, time.Since(start))
	}()

	switch r {
	case routeUpload:
		err = d.upload.Handle(ctx, ev, &d.state)
	case routeDelete:
		if ev.HostID() == "" {
			metrics.IncInventoryMessage(routeInvalid, "skipped")
			d.logger.WarnwCtx(ctx, "Skipping delete event without host id", "offset", msg.Offset)
			return nil
		}
		err = d.deletion.Handle(ctx, ev)
	default:
		d.logger.DebugwCtx(ctx, "Ignoring inventory event", "type", ev.Type, "service", ev.PlatformMetadata.Service)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncInventoryMessage(r, "aborted")
		d.logger.ErrorwCtx(ctx, "Inventory event aborted, awaiting redelivery",
			"route", r,
			"kind", Classify(err).String(),
			"offset", msg.Offset,
			"error", err,
		)
		return err
	}

	metrics.IncInventoryMessage(r, "handled")
	return nil
}

func route(ev *models.InboundEvent) string {
	switch {
	case ev.PlatformMetadata.Service == constants.ServiceName:
		return routeUpload
	case ev.Type == constants.EventTypeDelete:
		return routeDelete
	}
	return routeIgnored
}

func eventContext(ctx context.Context, ev *models.InboundEvent) context.Context {
	ctx = logging.WithTraceID(ctx, tracing.TraceID(ctx))
	ctx = logging.WithRequestID(ctx, ev.PlatformMetadata.RequestID)
	ctx = logging.WithOrgID(ctx, ev.OrgID())
	ctx = logging.WithHostID(ctx, ev.HostID())
	return logging.WithServiceName(ctx, constants.ServiceName)
}
