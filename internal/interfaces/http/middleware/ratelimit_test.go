package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int, window time.Duration) *RateLimiter {
	t.Helper()
	limiter := NewRateLimiter(limit, window)
	t.Cleanup(limiter.Stop)
	return limiter
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows the burst then blocks", func(t *testing.T) {
		limiter := newTestLimiter(t, 3, time.Minute)

		for i := 0; i < 3; i++ {
			assert.True(t, limiter.Allow("10.0.0.1"), "request %d", i+1)
		}
		assert.False(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("clients are limited separately", func(t *testing.T) {
		limiter := newTestLimiter(t, 1, time.Minute)

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.2"))
	})

	t.Run("tokens come back over the window", func(t *testing.T) {
		limiter := newTestLimiter(t, 2, time.Minute)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))

		now = now.Add(31 * time.Second)
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("remaining", func(t *testing.T) {
		limiter := newTestLimiter(t, 5, time.Minute)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		assert.Equal(t, 5, limiter.Remaining("10.0.0.1"))
		limiter.Allow("10.0.0.1")
		limiter.Allow("10.0.0.1")
		assert.Equal(t, 3, limiter.Remaining("10.0.0.1"))
	})

	t.Run("cleanup forgets idle clients", func(t *testing.T) {
		limiter := newTestLimiter(t, 1, time.Minute)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		limiter.Allow("10.0.0.1")
		now = now.Add(3 * time.Minute)
		limiter.cleanup()

		limiter.mu.Lock()
		assert.Empty(t, limiter.clients)
		limiter.mu.Unlock()
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		limiter := NewRateLimiter(1, time.Minute)
		limiter.Stop()
		limiter.Stop()
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := newTestLimiter(t, 2, time.Minute)
	router := gin.New()
	router.Use(RequestID(), RateLimit(limiter))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}
