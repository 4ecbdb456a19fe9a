package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "moderation:lock:"

// releaseScript deletes the key only when it still holds our owner id.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a lease shared by every process using the same redis.
// The TTL bounds how long a crashed holder blocks the job.
type RedisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (r *RedisLocker) TryLock(ctx context.Context, jobID string) (func(), bool, error) {
	key := lockKeyPrefix + jobID
	owner := uuid.NewString()

	acquired, err := r.client.SetNX(ctx, key, owner, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock for job %s: %w", jobID, err)
	}
	if !acquired {
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, r.client, []string{key}, owner).Err(); err != nil {
			zap.S().Named("redis_locker").Warnw("failed to release lock", "job_id", jobID, "error", err)
		}
	}, true, nil
}
