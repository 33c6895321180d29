package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundEventUpload(t *testing.T) {
	raw := []byte(`{
		"type": "created",
		"host": {"id": "h1", "org_id": "o1", "facts": [{"namespace": "x"}]},
		"platform_metadata": {
			"service": "compliance",
			"org_id": "o1",
			"request_id": "r1",
			"b64_identity": "e30=",
			"url": "https://example.com/report"
		}
	}`)

	event, err := DecodeInboundEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "created", event.Type)
	assert.Equal(t, "h1", event.HostID())
	assert.Equal(t, "o1", event.OrgID())
	assert.Equal(t, "compliance", event.PlatformMetadata.Service)
	assert.Equal(t, "r1", event.PlatformMetadata.RequestID)
	assert.JSONEq(t, `[{"namespace": "x"}]`, string(event.Host.Facts))
}

func TestDecodeInboundEventTopLevelID(t *testing.T) {
	event, err := DecodeInboundEvent([]byte(`{"type": "delete", "id": "h2", "org_id": "o2", "platform_metadata": null}`))
	require.NoError(t, err)
	assert.Equal(t, "h2", event.HostID())
}

func TestDecodeInboundEventRejects(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"not json", `{"type":`, "payload"},
		{"missing type", `{"host": {"id": "h"}}`, "payload"},
		{"numeric host id", `{"type": "created", "host": {"id": 5}}`, "host.id"},
		{"array", `[]`, "payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeInboundEvent([]byte(tt.raw))
			require.Error(t, err)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}
