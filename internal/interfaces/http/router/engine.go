package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/staffhub/backend/internal/infrastructure/logger"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
	"github.com/staffhub/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig holds the HTTP middleware settings
type EngineConfig struct {
	TrustedProxies []string
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	// RateLimiter is optional; nil disables rate limiting
	RateLimiter *middleware.RateLimiter
	Tracing     middleware.TracingConfig
	Metrics     middleware.HTTPMetricsConfig
}

// NewEngine builds the gin engine with the middleware stack and every route.
//
// Middleware order:
//  1. RequestID - generate or propagate X-Request-ID
//  2. Recovery - turn panics into 500 responses
//  3. Tracing - server span per request, named after the route
//  4. Logger - access log with request and trace ids
//  5. Secure and CORS headers
//  6. BodyLimit, then RateLimit when configured
//  7. HTTP metrics
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	if err := middleware.SetupValidator(); err != nil {
		return nil, err
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Tracing))
	engine.Use(middleware.SpanAttributes())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	if cfg.RateLimiter != nil {
		engine.Use(middleware.RateLimit(cfg.RateLimiter))
	}
	engine.Use(middleware.HTTPMetrics(cfg.Metrics))

	// Health check stays outside API versioning for load balancers
	engine.GET("/health", h.System.Health)

	NewRouter(engine, WithAPIVersion("v1")).
		Register(SystemRoutes(h)).
		Register(IntegrationRoutes(h)).
		Setup()

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound,
			"No route for "+c.Request.Method+" "+c.Request.URL.Path,
			middleware.GetRequestID(c),
		))
	})

	return engine, nil
}
