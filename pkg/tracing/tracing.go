package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"compliance/internal/config"
)

const serviceNamespace = "compliance"

// Service describes the process that emits spans. Empty fields are left
// off the resource.
type Service struct {
	Name          string
	Version       string
	ConsumerGroup string
	Topic         string
}

// TracerProvider owns the SDK provider installed by Init.
type TracerProvider struct {
	tp *sdktrace.TracerProvider
}

func (tp *TracerProvider) Tracer(name string) trace.Tracer {
	return tp.tp.Tracer(name)
}

func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil || tp.tp == nil {
		return nil
	}
	return tp.tp.Shutdown(ctx)
}

// Init installs W3C trace context propagation, which the Kafka header
// carrier relies on, and when tracing is enabled an OTLP exporter tagged
// with the consumer's resource attributes.
func Init(ctx context.Context, cfg config.TracingConfig, svc Service) (*TracerProvider, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return &TracerProvider{tp: sdktrace.NewTracerProvider()}, nil
	}

	if cfg.ServiceName != "" {
		svc.Name = cfg.ServiceName
	}

	sampler, err := newSampler(cfg.Sampler)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(resourceAttributes(svc)...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg.OTLP)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(tp)

	return &TracerProvider{tp: tp}, nil
}

func resourceAttributes(svc Service) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceNamespaceKey.String(serviceNamespace),
		semconv.MessagingSystemKafka,
	}
	if svc.Name != "" {
		attrs = append(attrs, semconv.ServiceNameKey.String(svc.Name))
	}
	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersionKey.String(svc.Version))
	}
	if svc.ConsumerGroup != "" {
		attrs = append(attrs, semconv.MessagingKafkaConsumerGroupKey.String(svc.ConsumerGroup))
	}
	if svc.Topic != "" {
		attrs = append(attrs, semconv.MessagingDestinationNameKey.String(svc.Topic))
	}
	return attrs
}

func newExporter(ctx context.Context, cfg config.OTLPConfig) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// newSampler defaults to the parent's sampling decision.
func newSampler(cfg config.SamplerConfig) (sdktrace.Sampler, error) {
	switch cfg.Type {
	case "", "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample()), nil
	case "always_on":
		return sdktrace.AlwaysSample(), nil
	case "always_off":
		return sdktrace.NeverSample(), nil
	case "traceidratio", "parentbased_traceidratio":
		if cfg.Param < 0 || cfg.Param > 1 {
			return nil, fmt.Errorf("sampler ratio %v must be between 0 and 1", cfg.Param)
		}
		if cfg.Type == "traceidratio" {
			return sdktrace.TraceIDRatioBased(cfg.Param), nil
		}
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param)), nil
	}
	return nil, fmt.Errorf("unknown sampler type %q", cfg.Type)
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
