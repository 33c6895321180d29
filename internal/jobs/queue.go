// Package jobs queues host deletion work in Redis and drains it in the
// background.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "compliance/pkg/errors"
	"compliance/pkg/models"
)

type Queue interface {
	Enqueue(ctx context.Context, job models.DeleteHostJob) error
	// Dequeue blocks up to timeout and returns nil when no job arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (*models.DeleteHostJob, error)
	Len(ctx context.Context) (int64, error)
}

// NewDeleteHostJob stamps a fresh job for hostID.
func NewDeleteHostJob(hostID, orgID string) models.DeleteHostJob {
	return models.DeleteHostJob{
		JobID:      uuid.NewString(),
		HostID:     hostID,
		OrgID:      orgID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// RedisQueue is a FIFO list: LPUSH to enqueue, BRPOP to dequeue.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client: client,
		key:    key,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job models.DeleteHostJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.JobID, err)
	}

	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return apperrors.Unavailable(fmt.Errorf("redis LPUSH failed: %w", err))
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*models.DeleteHostJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Unavailable(fmt.Errorf("redis BRPOP failed: %w", err))
	}

	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(res))
	}

	var job models.DeleteHostJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, apperrors.ErrValidation.WithMessage("malformed deletion job").WithCause(err).AsFatal()
	}
	return &job, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, apperrors.Unavailable(fmt.Errorf("redis LLEN failed: %w", err))
	}
	return n, nil
}
