package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"compliance/internal/config"
)

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(Service{
		Name:          "inventory-consumer",
		Version:       "1.4.0",
		ConsumerGroup: "compliance",
		Topic:         "platform.inventory.events",
	})

	got := make(map[attribute.Key]string, len(attrs))
	for _, kv := range attrs {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, map[attribute.Key]string{
		"service.namespace":              "compliance",
		"messaging.system":               "kafka",
		"service.name":                   "inventory-consumer",
		"service.version":                "1.4.0",
		"messaging.kafka.consumer.group": "compliance",
		"messaging.destination.name":     "platform.inventory.events",
	}, got)
}

func TestResourceAttributesSkipEmpty(t *testing.T) {
	assert.Len(t, resourceAttributes(Service{}), 2)
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		cfg     config.SamplerConfig
		prefix  string
		wantErr bool
	}{
		{cfg: config.SamplerConfig{}, prefix: "ParentBased"},
		{cfg: config.SamplerConfig{Type: "always_on"}, prefix: "AlwaysOnSampler"},
		{cfg: config.SamplerConfig{Type: "always_off"}, prefix: "AlwaysOffSampler"},
		{cfg: config.SamplerConfig{Type: "traceidratio", Param: 0.25}, prefix: "TraceIDRatioBased"},
		{cfg: config.SamplerConfig{Type: "parentbased_traceidratio", Param: 0.5}, prefix: "ParentBased"},
		{cfg: config.SamplerConfig{Type: "traceidratio", Param: 2}, wantErr: true},
		{cfg: config.SamplerConfig{Type: "sometimes"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			s, err := newSampler(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, s.Description(), tt.prefix)
		})
	}
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(context.Background(), config.TracingConfig{}, Service{Name: "inventory-consumer"})
	require.NoError(t, err)
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.Shutdown(context.Background()))

	var nilProvider *TracerProvider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}
