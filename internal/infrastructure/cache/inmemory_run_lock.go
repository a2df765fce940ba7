package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// InMemoryRunLock implements RunLock inside one process.
// It is suitable for single-instance deployments and testing.
type InMemoryRunLock struct {
	mu    sync.Mutex
	locks map[uuid.UUID]lockEntry
}

// NewInMemoryRunLock creates an empty lock table
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{locks: make(map[uuid.UUID]lockEntry)}
}

// TryLock takes the lock of a source for ttl. An expired lock is taken over.
func (l *InMemoryRunLock) TryLock(_ context.Context, sourceID uuid.UUID, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if e, held := l.locks[sourceID]; held && now.Before(e.expiresAt) {
		return "", false, nil
	}

	token := uuid.NewString()
	l.locks[sourceID] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

// Unlock releases the lock if token still owns it
func (l *InMemoryRunLock) Unlock(_ context.Context, sourceID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, held := l.locks[sourceID]; held && e.token == token {
		delete(l.locks, sourceID)
	}
	return nil
}

// Held reports whether a live lock exists for the source
func (l *InMemoryRunLock) Held(sourceID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, held := l.locks[sourceID]
	return held && time.Now().Before(e.expiresAt)
}

// Ensure InMemoryRunLock implements RunLock
var _ integration.RunLock = (*InMemoryRunLock)(nil)
