package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okPinger() Pinger { return PingFunc(func(context.Context) error { return nil }) }

func failingPinger(msg string) Pinger {
	return PingFunc(func(context.Context) error { return errors.New(msg) })
}

type healthBody struct {
	Success bool           `json:"success"`
	Data    HealthResponse `json:"data"`
}

func serveHealth(t *testing.T, h *SystemHandler) (int, healthBody) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
	h.Health(c)

	var body healthBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("Integration Hub", "1.0.0", nil, nil)
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		code, body := serveHealth(t, NewSystemHandler("hub", "1.2.3", okPinger(), okPinger()))

		assert.Equal(t, http.StatusOK, code)
		assert.True(t, body.Success)
		assert.Equal(t, "healthy", body.Data.Status)
		assert.Equal(t, "1.2.3", body.Data.Version)
		assert.Equal(t, "healthy", body.Data.Services["database"])
		assert.Equal(t, "healthy", body.Data.Services["redis"])
	})

	t.Run("database down", func(t *testing.T) {
		code, body := serveHealth(t, NewSystemHandler("hub", "1.2.3", failingPinger("connection refused"), okPinger()))

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.False(t, body.Success)
		assert.Equal(t, "unhealthy", body.Data.Status)
		assert.Contains(t, body.Data.Services["database"], "connection refused")
	})

	t.Run("redis down only degrades", func(t *testing.T) {
		code, body := serveHealth(t, NewSystemHandler("hub", "1.2.3", okPinger(), failingPinger("no route")))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "degraded", body.Data.Status)
		assert.Equal(t, "healthy", body.Data.Services["database"])
	})

	t.Run("no redis configured", func(t *testing.T) {
		code, body := serveHealth(t, NewSystemHandler("hub", "1.2.3", okPinger(), nil))

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", body.Data.Status)
		assert.NotContains(t, body.Data.Services, "redis")
	})
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler("Integration Hub", "1.0.0", nil, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/system/info", nil)
	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool               `json:"success"`
		Data    SystemInfoResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Integration Hub", resp.Data.Name)
	assert.Equal(t, "1.0.0", resp.Data.Version)
	assert.NotEmpty(t, resp.Data.GoVersion)
	assert.NotEmpty(t, resp.Data.Uptime)
}
