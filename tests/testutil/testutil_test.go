package testutil

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestContext(t *testing.T) {
	tc := NewTestContext(t)

	assert.NotNil(t, tc.Context)
	assert.NotNil(t, tc.Recorder)
	assert.NotNil(t, tc.Engine)
	assert.Equal(t, http.MethodGet, tc.Context.Request.Method)
}

func TestTestContext_SetRequestIDAndParam(t *testing.T) {
	tc := NewTestContext(t)
	tc.SetRequestID("req-1")
	tc.SetParam("id", "abc")

	id, exists := tc.Context.Get("X-Request-ID")
	assert.True(t, exists)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, "abc", tc.Context.Param("id"))
}

func TestTestContext_ResponseCode(t *testing.T) {
	tc := NewTestContext(t)
	tc.Context.Status(http.StatusAccepted)
	tc.Context.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusAccepted, tc.ResponseCode())
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("source-a"), NewTestUUID("source-a"))
	assert.NotEqual(t, NewTestUUID("source-a"), NewTestUUID("source-b"))
}

func TestContextWithTimeout(t *testing.T) {
	ctx := ContextWithTimeout(t, time.Minute)

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, time.Second)
}

func TestRequireEventually(t *testing.T) {
	var calls atomic.Int32
	RequireEventually(t, func() bool {
		return calls.Add(1) >= 3
	}, time.Second, time.Millisecond)

	assert.Equal(t, int32(3), calls.Load())
}

func TestAssertNever(t *testing.T) {
	AssertNever(t, func() bool { return false }, 20*time.Millisecond, 5*time.Millisecond)
}

func TestDoJSON_RequireData(t *testing.T) {
	engine := gin.New()
	engine.POST("/echo", func(c *gin.Context) {
		var body map[string]string
		require.NoError(t, c.ShouldBindJSON(&body))
		c.JSON(http.StatusCreated, gin.H{"success": true, "data": body})
	})

	w := DoJSON(t, engine, http.MethodPost, "/echo", map[string]string{"name": "ICU roster"})
	data := RequireData[map[string]string](t, w, http.StatusCreated)
	assert.Equal(t, "ICU roster", data["name"])
}

func TestAssertErrorResponse(t *testing.T) {
	engine := gin.New()
	engine.GET("/missing", func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "SOURCE_NOT_FOUND", "message": "integration source not found"},
		})
	})

	w := DoJSON(t, engine, http.MethodGet, "/missing", nil)
	AssertErrorResponse(t, w, http.StatusNotFound, "SOURCE_NOT_FOUND")
}
