package jobs

import (
	"context"
	"time"

	"compliance/internal/config"
	"compliance/pkg/circuitbreaker"
	"compliance/pkg/models"
)

// CircuitBreakerQueue fails fast while Redis is unhealthy so the consumer
// stops committing deletions it could not enqueue.
type CircuitBreakerQueue struct {
	queue Queue
	cb    *circuitbreaker.Wrapper
}

func NewCircuitBreakerQueue(queue Queue, cfg config.CircuitBreakerConfig) *CircuitBreakerQueue {
	return &CircuitBreakerQueue{
		queue: queue,
		cb:    circuitbreaker.FromSettings("redis-jobs", circuitbreaker.Settings(cfg)),
	}
}

func (q *CircuitBreakerQueue) Enqueue(ctx context.Context, job models.DeleteHostJob) error {
	return q.cb.Run(ctx, func(ctx context.Context) error {
		return q.queue.Enqueue(ctx, job)
	})
}

func (q *CircuitBreakerQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.DeleteHostJob, error) {
	var job *models.DeleteHostJob
	err := q.cb.Run(ctx, func(ctx context.Context) error {
		var err error
		job, err = q.queue.Dequeue(ctx, timeout)
		return err
	})
	return job, err
}

func (q *CircuitBreakerQueue) Len(ctx context.Context) (int64, error) {
	var n int64
	err := q.cb.Run(ctx, func(ctx context.Context) error {
		var err error
		n, err = q.queue.Len(ctx)
		return err
	})
	return n, err
}

func (q *CircuitBreakerQueue) State() string {
	return q.cb.State()
}

func (q *CircuitBreakerQueue) IsOpen() bool {
	return q.cb.IsOpen()
}
