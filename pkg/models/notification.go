package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationBundle      = "rhel"
	NotificationApplication = "compliance"

	EventTypeNonCompliant       = "compliance-below-threshold"
	EventTypeReportUploadFailed = "report-upload-failed"
)

// NotificationEvent follows the platform notifications ingress format.
type NotificationEvent struct {
	ID          string                 `json:"id"`
	Version     string                 `json:"version"`
	Bundle      string                 `json:"bundle"`
	Application string                 `json:"application"`
	EventType   string                 `json:"event_type"`
	Timestamp   time.Time              `json:"timestamp"`
	AccountID   string                 `json:"account_id,omitempty"`
	OrgID       string                 `json:"org_id"`
	Context     map[string]interface{} `json:"context"`
	Events      []NotificationPayload  `json:"events"`
	Recipients  []interface{}          `json:"recipients"`
}

type NotificationPayload struct {
	Metadata map[string]interface{} `json:"metadata"`
	Payload  map[string]interface{} `json:"payload"`
}

func NewNotificationEvent(eventType, accountID, orgID string, context, payload map[string]interface{}) NotificationEvent {
	return NotificationEvent{
		ID:          uuid.NewString(),
		Version:     "v1.1.0",
		Bundle:      NotificationBundle,
		Application: NotificationApplication,
		EventType:   eventType,
		Timestamp:   time.Now().UTC(),
		AccountID:   accountID,
		OrgID:       orgID,
		Context:     context,
		Events: []NotificationPayload{{
			Metadata: map[string]interface{}{},
			Payload:  payload,
		}},
		Recipients: []interface{}{},
	}
}

// RemediationUpdate lists the remediation issues still open on a host.
type RemediationUpdate struct {
	HostID   string    `json:"host_id"`
	IssueIDs []string  `json:"issues"`
	Service  string    `json:"service"`
	Date     time.Time `json:"date"`
}
