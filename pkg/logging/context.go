package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	RequestIDKey   contextKey = "request_id"
	OrgIDKey       contextKey = "org_id"
	HostIDKey      contextKey = "host_id"
	ServiceNameKey contextKey = "service_name"
)

var orderedKeys = []contextKey{TraceIDKey, RequestIDKey, OrgIDKey, HostIDKey, ServiceNameKey}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return withValue(ctx, TraceIDKey, traceID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withValue(ctx, RequestIDKey, requestID)
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	return withValue(ctx, OrgIDKey, orgID)
}

func WithHostID(ctx context.Context, hostID string) context.Context {
	return withValue(ctx, HostIDKey, hostID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return withValue(ctx, ServiceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	return get(ctx, TraceIDKey)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func GetOrgID(ctx context.Context) string {
	return get(ctx, OrgIDKey)
}

func GetHostID(ctx context.Context) string {
	return get(ctx, HostIDKey)
}

func GetServiceName(ctx context.Context) string {
	return get(ctx, ServiceNameKey)
}

// GetLogFields returns the correlation fields present on ctx as zap
// key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 2*len(orderedKeys))
	for _, key := range orderedKeys {
		if v := get(ctx, key); v != "" {
			fields = append(fields, string(key), v)
		}
	}
	return fields
}

func withValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
