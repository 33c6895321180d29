package ingest

import (
	"compliance/internal/reports"
	"compliance/pkg/models"
)

// cycleState is the per-message scratch space of the long-lived consumer.
// It is cleared when a message starts and again when it finishes.
type cycleState struct {
	event   *models.InboundEvent
	bundle  reports.Bundle
	parsed  []*ParsedReport
	failed  []*Error
	outcome string
}

func (s *cycleState) reset() {
	*s = cycleState{}
}

func (s *cycleState) empty() bool {
	return s.event == nil && s.bundle == nil && s.parsed == nil && s.failed == nil && s.outcome == ""
}
