// Package notify delivers non-compliance, remediation and upload failure
// notices. Delivery is best effort: failures are logged and counted, never
// returned.
package notify

import (
	"context"
	"time"

	"compliance/internal/broker"
	"compliance/internal/constants"
	"compliance/internal/logger"
	"compliance/pkg/circuitbreaker"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
)

const (
	kindNonCompliant = "non_compliant"
	kindRemediation  = "remediation"
	kindUploadFailed = "upload_failed"
)

type Topics struct {
	Notifications      string
	RemediationUpdates string
}

type NonCompliance struct {
	SystemID    string
	DisplayName string
	OrgID       string
	Account     string
	RequestID   string
	PolicyID    string
	PolicyTitle string
	Threshold   float64
	Score       float64
}

type UploadFailure struct {
	HostID      string
	DisplayName string
	OrgID       string
	Account     string
	RequestID   string
	Error       string
}

type Dispatcher struct {
	producer broker.Producer
	topics   Topics
	breaker  *circuitbreaker.Wrapper
	logger   logger.Logger
}

// NewDispatcher publishes through producer. breaker may be nil.
func NewDispatcher(producer broker.Producer, topics Topics, breaker *circuitbreaker.Wrapper, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		producer: producer,
		topics:   topics,
		breaker:  breaker,
		logger:   log,
	}
}

func (d *Dispatcher) NonCompliant(ctx context.Context, n NonCompliance) {
	event := models.NewNotificationEvent(models.EventTypeNonCompliant, n.Account, n.OrgID,
		map[string]interface{}{
			"inventory_id": n.SystemID,
			"display_name": n.DisplayName,
		},
		map[string]interface{}{
			"host_id":          n.SystemID,
			"host_name":        n.DisplayName,
			"policy_id":        n.PolicyID,
			"policy_name":      n.PolicyTitle,
			"policy_threshold": n.Threshold,
			"compliance_score": n.Score,
			"request_id":       n.RequestID,
		},
	)
	d.publish(ctx, kindNonCompliant, d.topics.Notifications, n.SystemID, event)
}

// Remediation publishes the remediation issues open on a system. An empty
// list is still sent so resolved issues are cleared downstream.
func (d *Dispatcher) Remediation(ctx context.Context, systemID string, issueIDs []string) {
	if issueIDs == nil {
		issueIDs = []string{}
	}
	update := models.RemediationUpdate{
		HostID:   systemID,
		IssueIDs: issueIDs,
		Service:  constants.ServiceName,
		Date:     time.Now().UTC(),
	}
	d.publish(ctx, kindRemediation, d.topics.RemediationUpdates, systemID, update)
}

func (d *Dispatcher) UploadFailed(ctx context.Context, f UploadFailure) {
	event := models.NewNotificationEvent(models.EventTypeReportUploadFailed, f.Account, f.OrgID,
		map[string]interface{}{
			"inventory_id": f.HostID,
			"display_name": f.DisplayName,
		},
		map[string]interface{}{
			"host_id":    f.HostID,
			"request_id": f.RequestID,
			"error":      f.Error,
		},
	)
	d.publish(ctx, kindUploadFailed, d.topics.Notifications, f.HostID, event)
}

func (d *Dispatcher) publish(ctx context.Context, kind, topic, key string, payload interface{}) {
	if topic == "" {
		metrics.IncNotification(kind, "skipped")
		d.logger.DebugwCtx(ctx, "No topic configured, notification dropped", "kind", kind)
		return
	}

	err := d.breaker.Run(ctx, func(ctx context.Context) error {
		return d.producer.Publish(ctx, topic, key, payload)
	})
	if err != nil {
		metrics.IncNotification(kind, "error")
		d.logger.ErrorwCtx(ctx, "Failed to deliver notification",
			"kind", kind,
			"topic", topic,
			"error", err,
		)
		return
	}

	metrics.IncNotification(kind, "sent")
	d.logger.DebugwCtx(ctx, "Notification delivered", "kind", kind, "topic", topic)
}
