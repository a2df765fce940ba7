package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// DashboardCache is the cache surface used by the dashboard service
type DashboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Stores are the coordination and caching backends of the hub
type Stores struct {
	RunLock   integration.RunLock
	Dashboard DashboardCache
	// Distributed is true when the stores are backed by Redis
	Distributed bool
	closers     []func() error
	ping        func(ctx context.Context) error
}

// Ping checks the Redis connection; in-memory stores are always reachable
func (s *Stores) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// Close releases the backends
func (s *Stores) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StoreFactory creates the stores based on configuration
type StoreFactory struct {
	redisConfig           RedisConfig
	redisEnabled          bool
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory stores when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory. With enabled=false Redis is never contacted.
func NewStoreFactory(cfg RedisConfig, enabled bool, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		redisEnabled:          enabled,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStores creates Redis-backed stores sharing one client
func (f *StoreFactory) CreateRedisStores() (*Stores, error) {
	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		return nil, err
	}
	return NewRedisStores(client), nil
}

// NewRedisStores creates Redis-backed stores on an existing client
func NewRedisStores(client *redis.Client) *Stores {
	return &Stores{
		RunLock:     NewRedisRunLock(client, ""),
		Dashboard:   NewRedisDashboardCache(client),
		Distributed: true,
		closers:     []func() error{client.Close},
		ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}

// CreateInMemoryStores creates process-local stores.
// WARNING: in-memory run locks do not coordinate multiple instances,
// so two instances may sync the same source concurrently.
func (f *StoreFactory) CreateInMemoryStores() *Stores {
	dashboard := NewInMemoryDashboardCache()
	return &Stores{
		RunLock:   NewInMemoryRunLock(),
		Dashboard: dashboard,
		closers:   []func() error{dashboard.Close},
	}
}

// CreateStores tries Redis first and falls back to in-memory stores when allowed
func (f *StoreFactory) CreateStores() (*Stores, error) {
	if !f.redisEnabled {
		f.logger.Info("Redis disabled, using in-memory run lock and dashboard cache")
		return f.CreateInMemoryStores(), nil
	}

	stores, err := f.CreateRedisStores()
	if err == nil {
		f.logger.Info("using Redis run lock and dashboard cache")
		return stores, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for run locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory stores. "+
		"Syncs of one source are only serialized within this instance.",
		zap.Error(err),
	)
	return f.CreateInMemoryStores(), nil
}
