// Package audit writes the success/fail audit trail for handled events.
// Every entry is prefixed with the request id, or the org id when the event
// carries no request id.
package audit

import (
	"context"
	"fmt"

	"compliance/internal/logger"
	"compliance/pkg/logging"
)

const (
	LevelSuccess = "success"
	LevelFail    = "fail"
)

type Logger interface {
	Success(ctx context.Context, msg string)
	Fail(ctx context.Context, msg string)
}

type ZapAuditor struct {
	log logger.Logger
}

func New(log logger.Logger) *ZapAuditor {
	return &ZapAuditor{log: log.With("audit_log", true)}
}

func (a *ZapAuditor) Success(ctx context.Context, msg string) {
	a.log.InfowCtx(ctx, Prefix(ctx, msg), "audit", LevelSuccess)
}

func (a *ZapAuditor) Fail(ctx context.Context, msg string) {
	a.log.WarnwCtx(ctx, Prefix(ctx, msg), "audit", LevelFail)
}

// Prefix returns msg tagged with the correlation id carried by ctx.
func Prefix(ctx context.Context, msg string) string {
	if id := logging.GetRequestID(ctx); id != "" {
		return fmt.Sprintf("[%s] %s", id, msg)
	}
	if id := logging.GetOrgID(ctx); id != "" {
		return fmt.Sprintf("[%s] %s", id, msg)
	}
	return msg
}
