// Package ratelimit implements the redis counter primitive behind the
// job-creation and login-attempt limiters.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter tracks occurrences per key within a sliding expiry window. The
// expiry is set only when a key is first created, so the window never slides
// forward on subsequent increments.
type Counter struct {
	rdb    *redis.Client
	prefix string
	window time.Duration
}

// NewCounter builds a counter with a key namespace and window.
func NewCounter(rdb *redis.Client, prefix string, window time.Duration) *Counter {
	return &Counter{rdb: rdb, prefix: prefix, window: window}
}

func (c *Counter) key(identity string) string {
	return c.prefix + ":" + identity
}

// Incr increments the identity's counter, starting the expiry window on the
// first increment, and returns the new count.
func (c *Counter) Incr(ctx context.Context, identity string) (int64, error) {
	key := c.key(identity)
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, c.window).Err(); err != nil {
			return count, fmt.Errorf("expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Get returns the identity's current count, zero when the key has expired.
func (c *Counter) Get(ctx context.Context, identity string) (int64, error) {
	count, err := c.rdb.Get(ctx, c.key(identity)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", c.key(identity), err)
	}
	return count, nil
}

// Reset removes the identity's counter immediately.
func (c *Counter) Reset(ctx context.Context, identity string) error {
	if err := c.rdb.Del(ctx, c.key(identity)).Err(); err != nil {
		return fmt.Errorf("reset %s: %w", c.key(identity), err)
	}
	return nil
}

// JobLimiter bounds job creation per user within a rolling window.
type JobLimiter struct {
	counter *Counter
	max     int64
}

// NewJobLimiter builds the submission limiter.
func NewJobLimiter(rdb *redis.Client, max int, window time.Duration) *JobLimiter {
	return &JobLimiter{
		counter: NewCounter(rdb, "job_limit", window),
		max:     int64(max),
	}
}

// Allow records a submission attempt and reports whether it is within the
// window's budget. The increment sticks even when the attempt is rejected;
// the window never resets early.
func (l *JobLimiter) Allow(ctx context.Context, userID string) (bool, error) {
	count, err := l.counter.Incr(ctx, userID)
	if err != nil {
		return false, err
	}
	return count <= l.max, nil
}

// LoginLimiter blocks an identity after repeated failed password checks.
type LoginLimiter struct {
	counter *Counter
	max     int64
}

// NewLoginLimiter builds the login-attempt limiter.
func NewLoginLimiter(rdb *redis.Client, maxFailures int, block time.Duration) *LoginLimiter {
	return &LoginLimiter{
		counter: NewCounter(rdb, "login_attempts", block),
		max:     int64(maxFailures),
	}
}

// Blocked reports whether the identity has exhausted its failure budget.
// A blocked identity stays blocked until the cool-down elapses, regardless of
// whether later credentials would have been correct.
func (l *LoginLimiter) Blocked(ctx context.Context, identity string) (bool, error) {
	count, err := l.counter.Get(ctx, identity)
	if err != nil {
		return false, err
	}
	return count >= l.max, nil
}

// RecordFailure counts one failed password check.
func (l *LoginLimiter) RecordFailure(ctx context.Context, identity string) error {
	_, err := l.counter.Incr(ctx, identity)
	return err
}

// Reset clears the failure count after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, identity string) error {
	return l.counter.Reset(ctx, identity)
}
