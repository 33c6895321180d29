package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogFields(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOrgID(ctx, "org-1")
	ctx = WithHostID(ctx, "")
	ctx = WithTraceID(ctx, "abc")

	assert.Equal(t, []interface{}{"trace_id", "abc", "request_id", "req-1", "org_id", "org-1"}, GetLogFields(ctx))
	assert.Equal(t, "", GetHostID(ctx))
}

func TestEmptyContext(t *testing.T) {
	assert.Empty(t, GetLogFields(context.Background()))
	assert.Equal(t, "", GetRequestID(context.Background()))
}
