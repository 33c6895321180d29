package constants

import "time"

const (
	ServiceName = "compliance"
	AppName     = "inventory-consumer"
)

// Version is stamped at build time with -ldflags "-X compliance/internal/constants.Version=...".
var Version = "dev"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 30 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Inventory event types and the platform service that marks an upload for us.
const (
	EventTypeCreated = "created"
	EventTypeUpdated = "updated"
	EventTypeDelete  = "delete"
)

const (
	ValidationSuccess = "success"
	ValidationFailed  = "failed"
)

const (
	DefaultComplianceRule = "supported && score >= threshold"
)

const (
	RemediationIssuePrefix = "ssg:rhel"
)
