package identity

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(doc string) string {
	return base64.StdEncoding.EncodeToString([]byte(doc))
}

func TestHeaderValidator(t *testing.T) {
	v := NewHeaderValidator("")

	tests := []struct {
		name     string
		identity string
		want     bool
	}{
		{
			name:     "entitled",
			identity: encode(`{"identity":{"org_id":"1234","type":"System"},"entitlements":{"insights":{"is_entitled":true}}}`),
			want:     true,
		},
		{
			name:     "internal org id",
			identity: encode(`{"identity":{"internal":{"org_id":"1234"}},"entitlements":{"insights":{"is_entitled":true}}}`),
			want:     true,
		},
		{
			name:     "not entitled",
			identity: encode(`{"identity":{"org_id":"1234"},"entitlements":{"insights":{"is_entitled":false}}}`),
		},
		{
			name:     "missing entitlement",
			identity: encode(`{"identity":{"org_id":"1234"},"entitlements":{"smart_management":{"is_entitled":true}}}`),
		},
		{
			name:     "missing org",
			identity: encode(`{"identity":{},"entitlements":{"insights":{"is_entitled":true}}}`),
		},
		{
			name:     "not base64",
			identity: "%%%",
		},
		{
			name:     "not json",
			identity: encode("plain text"),
		},
		{
			name:     "empty",
			identity: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Entitled(context.Background(), tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeUnpadded(t *testing.T) {
	doc := `{"identity":{"account_number":"42","org_id":"7"}}`
	unpadded := base64.RawStdEncoding.EncodeToString([]byte(doc))

	id, err := Decode(unpadded)
	require.NoError(t, err)
	assert.Equal(t, "7", id.OrgID())
	assert.Equal(t, "42", id.Identity.AccountNumber)
}
