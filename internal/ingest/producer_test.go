package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compliance/internal/logger"
)

func TestResultProducerEnvelope(t *testing.T) {
	producer := &fakeProducer{}
	p := NewResultProducer(producer, resultTop, logger.NopLogger()).WithSource("compliance-backend")
	p.now = func() time.Time { return time.Date(2026, 3, 1, 14, 30, 5, 0, time.FixedZone("CET", 3600)) }

	require.NoError(t, p.Produce(context.Background(), requestID, "success"))
	require.Len(t, producer.messages, 1)

	body, err := json.Marshal(producer.messages[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"request_id": "req-1",
		"service": "compliance",
		"validation": "success",
		"date": "2026-03-01T13:30:05Z",
		"source": "compliance-backend"
	}`, string(body))
}

func TestResultProducerOmitsEmptySource(t *testing.T) {
	producer := &fakeProducer{}
	p := NewResultProducer(producer, resultTop, logger.NopLogger())

	require.NoError(t, p.Produce(context.Background(), requestID, "failed"))
	require.Len(t, producer.messages, 1)

	body, err := json.Marshal(producer.messages[0])
	require.NoError(t, err)
	assert.NotContains(t, string(body), "source")
	assert.NotEmpty(t, producer.messages[0].Date)
}
