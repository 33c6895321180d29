package ingest

import (
	"context"
	"fmt"

	"compliance/internal/audit"
	"compliance/internal/jobs"
	"compliance/internal/logger"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
)

type JobQueue interface {
	Enqueue(ctx context.Context, job models.DeleteHostJob) error
}

// DeletionHandler turns a host delete event into an asynchronous cleanup job.
type DeletionHandler struct {
	queue  JobQueue
	audit  audit.Logger
	logger logger.Logger
}

func NewDeletionHandler(queue JobQueue, auditor audit.Logger, log logger.Logger) *DeletionHandler {
	return &DeletionHandler{
		queue:  queue,
		audit:  auditor,
		logger: log,
	}
}

// Handle enqueues exactly one job. Enqueue failures are audited and
// returned as transient so the event is redelivered.
func (h *DeletionHandler) Handle(ctx context.Context, ev *models.InboundEvent) error {
	hostID := ev.HostID()
	job := jobs.NewDeleteHostJob(hostID, ev.OrgID())

	if err := h.queue.Enqueue(ctx, job); err != nil {
		metrics.IncDeletionJob("enqueue", "error")
		h.audit.Fail(ctx, fmt.Sprintf("Failed to enqueue DeleteHost job for host %s: %v", hostID, err))
		return newError(KindTransient, err, "failed to enqueue deletion of host %s", hostID)
	}

	metrics.IncDeletionJob("enqueue", "success")
	h.audit.Success(ctx, fmt.Sprintf("Enqueued DeleteHost job for host %s", hostID))
	h.logger.DebugwCtx(ctx, "Enqueued host deletion", "job_id", job.JobID)
	return nil
}
