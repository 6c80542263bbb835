package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Queues exposes the stage FIFOs over a shared redis client.
type Queues struct {
	rdb *redis.Client
}

// New wraps an existing redis client. The client's lifecycle is owned by the
// caller.
func New(rdb *redis.Client) *Queues {
	return &Queues{rdb: rdb}
}

// Push appends a job id to the tail of a stage's queue.
func (q *Queues) Push(ctx context.Context, stage Stage, jobID string) error {
	if jobID == "" {
		return errors.New("job id required")
	}
	if err := q.rdb.LPush(ctx, stage.Key(), jobID).Err(); err != nil {
		return fmt.Errorf("push %s queue: %w", stage, err)
	}
	return nil
}

// Pop blocks until a job id is available on the stage's queue and returns it.
// It blocks indefinitely while the queue is empty; cancelling the context is
// the only way out.
func (q *Queues) Pop(ctx context.Context, stage Stage) (string, error) {
	res, err := q.rdb.BRPop(ctx, 0, stage.Key()).Result()
	if err != nil {
		return "", fmt.Errorf("pop %s queue: %w", stage, err)
	}
	// BRPOP yields [key, value].
	if len(res) != 2 {
		return "", fmt.Errorf("pop %s queue: unexpected reply of %d elements", stage, len(res))
	}
	return res[1], nil
}

// Len returns the number of job ids waiting on a stage's queue.
func (q *Queues) Len(ctx context.Context, stage Stage) (int64, error) {
	n, err := q.rdb.LLen(ctx, stage.Key()).Result()
	if err != nil {
		return 0, fmt.Errorf("len %s queue: %w", stage, err)
	}
	return n, nil
}
