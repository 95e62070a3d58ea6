package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/GitRadiation/template-filler/internal/repository"
)

var _ repository.ProcessLock = (*redisProcessLock)(nil)

const (
	lockKeyPrefix = "filler:lock:"
	lockTTL       = 45 * time.Minute // outlives the hard render time budget
)

type redisProcessLock struct {
	client *goredis.Client
}

// NewProcessLock creates a Redis-backed per-job processing lock using SETNX.
func NewProcessLock(client *goredis.Client) repository.ProcessLock {
	return &redisProcessLock{client: client}
}

// Acquire uses Redis SETNX to atomically take the processing lock.
func (r *redisProcessLock) Acquire(ctx context.Context, jobID uuid.UUID) (bool, error) {
	key := lockKeyPrefix + jobID.String()
	ok, err := r.client.SetNX(ctx, key, time.Now().Unix(), lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire lock: %w", err)
	}
	return ok, nil
}

// Release deletes the lock key. The job's terminal state is recorded before
// Release is called, so a later failed→pending retry gets a fresh lock
// instead of being mistaken for a duplicate delivery. The TTL only covers
// crashes that never reach Release.
func (r *redisProcessLock) Release(ctx context.Context, jobID uuid.UUID) error {
	key := lockKeyPrefix + jobID.String()
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: release lock: %w", err)
	}
	return nil
}
