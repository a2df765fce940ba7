package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// SystemHandler serves liveness and build information
type SystemHandler struct {
	BaseHandler
	name      string
	version   string
	startTime time.Time
	database  Pinger
	redis     Pinger
	timeout   time.Duration
}

// NewSystemHandler creates a new SystemHandler. redis may be nil.
func NewSystemHandler(name, version string, database, redis Pinger) *SystemHandler {
	return &SystemHandler{
		name:      name,
		version:   version,
		startTime: time.Now(),
		database:  database,
		redis:     redis,
		timeout:   2 * time.Second,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
	Services map[string]string `json:"services"`
}

// Health handles GET /health. It answers 503 when the database is unreachable;
// a failing cache only degrades the status.
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
		Services: map[string]string{},
	}
	status := http.StatusOK

	if h.database != nil {
		if err := h.database.Ping(ctx); err != nil {
			resp.Services["database"] = "unhealthy: " + err.Error()
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			resp.Services["database"] = "healthy"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			resp.Services["redis"] = "unhealthy: " + err.Error()
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		} else {
			resp.Services["redis"] = "healthy"
		}
	}

	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
}

// GetSystemInfo handles GET /api/v1/system/info
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}
