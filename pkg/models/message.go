package models

import (
	"encoding/json"
	"time"
)

// InboundEvent is one record of the inventory events topic. Deletions may
// carry the host id at the top level instead of under host.
type InboundEvent struct {
	Type             string           `json:"type"`
	ID               string           `json:"id,omitempty"`
	Timestamp        string           `json:"timestamp,omitempty"`
	Host             Host             `json:"host"`
	PlatformMetadata PlatformMetadata `json:"platform_metadata"`
}

type Host struct {
	ID          string          `json:"id"`
	OrgID       string          `json:"org_id,omitempty"`
	Account     string          `json:"account,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Facts       json.RawMessage `json:"facts,omitempty"`
}

type PlatformMetadata struct {
	Service     string `json:"service,omitempty"`
	Account     string `json:"account,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	B64Identity string `json:"b64_identity,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (e *InboundEvent) HostID() string {
	if e.Host.ID != "" {
		return e.Host.ID
	}
	return e.ID
}

// OrgID prefers the upload metadata over the host record.
func (e *InboundEvent) OrgID() string {
	if e.PlatformMetadata.OrgID != "" {
		return e.PlatformMetadata.OrgID
	}
	return e.Host.OrgID
}

// ValidationMessage is the single result record produced per upload event.
// Date is ISO8601 UTC; Source names the deployment that produced it.
type ValidationMessage struct {
	RequestID  string `json:"request_id"`
	Service    string `json:"service"`
	Validation string `json:"validation"`
	Date       string `json:"date,omitempty"`
	Source     string `json:"source,omitempty"`
}

// DeleteHostJob is queued for every host deletion event.
type DeleteHostJob struct {
	JobID      string    `json:"job_id"`
	HostID     string    `json:"host_id"`
	OrgID      string    `json:"org_id,omitempty"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
