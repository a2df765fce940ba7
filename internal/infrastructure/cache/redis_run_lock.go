package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/staffhub/backend/internal/domain/integration"
)

const defaultRunLockPrefix = "integration:run-lock:"

// unlockScript deletes the key only while it still holds the caller's token
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX, so that every process
// sharing the Redis instance sees the same per-source lock
type RedisRunLock struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisRunLock creates a lock on an existing client
func NewRedisRunLock(client redis.UniversalClient, keyPrefix string) *RedisRunLock {
	if keyPrefix == "" {
		keyPrefix = defaultRunLockPrefix
	}
	return &RedisRunLock{client: client, keyPrefix: keyPrefix}
}

// TryLock takes the lock of a source for ttl
func (l *RedisRunLock) TryLock(ctx context.Context, sourceID uuid.UUID, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+sourceID.String(), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock releases the lock if token still owns it
func (l *RedisRunLock) Unlock(ctx context.Context, sourceID uuid.UUID, token string) error {
	if err := unlockScript.Run(ctx, l.client, []string{l.keyPrefix + sourceID.String()}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Ensure RedisRunLock implements RunLock
var _ integration.RunLock = (*RedisRunLock)(nil)
