package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLock_TryLock(t *testing.T) {
	lock := NewInMemoryRunLock()
	ctx := context.Background()

	t.Run("second caller is refused while held", func(t *testing.T) {
		sourceID := uuid.New()

		token, ok, err := lock.TryLock(ctx, sourceID, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotEmpty(t, token)
		assert.True(t, lock.Held(sourceID))

		_, ok, err = lock.TryLock(ctx, sourceID, time.Hour)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("different sources do not block each other", func(t *testing.T) {
		_, ok1, _ := lock.TryLock(ctx, uuid.New(), time.Hour)
		_, ok2, _ := lock.TryLock(ctx, uuid.New(), time.Hour)
		assert.True(t, ok1)
		assert.True(t, ok2)
	})

	t.Run("expired lock is taken over", func(t *testing.T) {
		sourceID := uuid.New()
		_, ok, _ := lock.TryLock(ctx, sourceID, 10*time.Millisecond)
		require.True(t, ok)

		time.Sleep(20 * time.Millisecond)
		assert.False(t, lock.Held(sourceID))

		_, ok, err := lock.TryLock(ctx, sourceID, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryRunLock_Unlock(t *testing.T) {
	lock := NewInMemoryRunLock()
	ctx := context.Background()
	sourceID := uuid.New()

	token, ok, err := lock.TryLock(ctx, sourceID, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("stale token does not release", func(t *testing.T) {
		require.NoError(t, lock.Unlock(ctx, sourceID, "someone-else"))
		assert.True(t, lock.Held(sourceID))
	})

	t.Run("owner token releases", func(t *testing.T) {
		require.NoError(t, lock.Unlock(ctx, sourceID, token))
		assert.False(t, lock.Held(sourceID))

		_, ok, err := lock.TryLock(ctx, sourceID, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestInMemoryRunLock_ConcurrentTryLock(t *testing.T) {
	lock := NewInMemoryRunLock()
	sourceID := uuid.New()

	var acquired atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := lock.TryLock(context.Background(), sourceID, time.Hour); ok {
				acquired.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), acquired.Load())
}
