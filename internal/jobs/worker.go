package jobs

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"compliance/internal/logger"
	apperrors "compliance/pkg/errors"
	"compliance/pkg/logging"
	"compliance/pkg/metrics"
	"compliance/pkg/models"
	"compliance/pkg/retry"
)

type HostDeleter interface {
	DeleteHost(ctx context.Context, systemID string) (bool, error)
}

type WorkerConfig struct {
	PollTimeout time.Duration
	MaxAttempts int
}

// Worker drains the deletion queue. A failed job goes back on the queue
// until it has been tried MaxAttempts times.
type Worker struct {
	queue      Queue
	deleter    HostDeleter
	cfg        WorkerConfig
	logger     logger.Logger
	newBackOff func() backoff.BackOff
}

func NewWorker(queue Queue, deleter HostDeleter, cfg WorkerConfig, log logger.Logger) *Worker {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Worker{
		queue:   queue,
		deleter: deleter,
		cfg:     cfg,
		logger:  log,
		newBackOff: func() backoff.BackOff {
			return retry.ExponentialBackoff(500*time.Millisecond, 30*time.Second, 2)
		},
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Infow("Deletion worker started", "poll_timeout", w.cfg.PollTimeout, "max_attempts", w.cfg.MaxAttempts)
	bo := w.newBackOff()

	for {
		if ctx.Err() != nil {
			w.logger.Infow("Deletion worker stopped")
			return nil
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			if !apperrors.IsRetryable(err) {
				metrics.IncDeletionJob("dequeue", "dropped")
				w.logger.Errorw("Dropping undecodable deletion job", "error", err)
				continue
			}
			delay := bo.NextBackOff()
			w.logger.Warnw("Failed to poll deletion queue", "error", err, "retry_in", delay)
			sleep(ctx, delay)
			continue
		}
		bo.Reset()

		if job == nil {
			continue
		}
		w.Process(ctx, *job)
	}
}

// Process runs one job. Failures are requeued rather than returned.
func (w *Worker) Process(ctx context.Context, job models.DeleteHostJob) {
	ctx = logging.WithHostID(ctx, job.HostID)
	ctx = logging.WithOrgID(ctx, job.OrgID)
	job.Attempts++

	existed, err := w.deleter.DeleteHost(ctx, job.HostID)
	if err == nil {
		metrics.IncDeletionJob("process", "success")
		w.logger.InfowCtx(ctx, "Deleted host",
			"job_id", job.JobID,
			"existed", existed,
			"attempts", job.Attempts,
		)
		return
	}

	if job.Attempts >= w.cfg.MaxAttempts {
		metrics.IncDeletionJob("process", "dropped")
		w.logger.ErrorwCtx(ctx, "Giving up on host deletion",
			"job_id", job.JobID,
			"attempts", job.Attempts,
			"error", err,
		)
		return
	}

	// Requeue on a fresh context so a shutdown mid-delete does not lose the job.
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if qerr := w.queue.Enqueue(requeueCtx, job); qerr != nil {
		metrics.IncDeletionJob("process", "lost")
		w.logger.ErrorwCtx(ctx, "Failed to requeue host deletion",
			"job_id", job.JobID,
			"error", err,
			"requeue_error", qerr,
		)
		return
	}

	metrics.IncDeletionJob("process", "requeued")
	w.logger.WarnwCtx(ctx, "Host deletion failed, requeued",
		"job_id", job.JobID,
		"attempts", job.Attempts,
		"error", err,
	)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
