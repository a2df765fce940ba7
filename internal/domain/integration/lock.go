package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunLock is the per-source mutex behind the one-run-per-source rule.
// Implementations must be safe across processes sharing the same store.
type RunLock interface {
	// TryLock takes the lock for ttl. ok is false when someone else holds it.
	// The returned token must be passed to Unlock.
	TryLock(ctx context.Context, sourceID uuid.UUID, ttl time.Duration) (token string, ok bool, err error)

	// Unlock releases the lock if it is still held with token
	Unlock(ctx context.Context, sourceID uuid.UUID, token string) error
}
