package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ScheduledSyncTrigger starts incremental syncs for every active connector source
type ScheduledSyncTrigger interface {
	TriggerScheduledSyncs(ctx context.Context) (int, error)
}

// SyncCronTriggerConfig holds configuration for the sync cron trigger
type SyncCronTriggerConfig struct {
	// Schedule is a standard five-field cron expression or a descriptor such as "@every 30m"
	Schedule string
	// TickTimeout bounds one scheduling pass
	TickTimeout time.Duration
}

// DefaultSyncCronTriggerConfig returns default cron trigger configuration
func DefaultSyncCronTriggerConfig() SyncCronTriggerConfig {
	return SyncCronTriggerConfig{
		Schedule:    "@every 30m",
		TickTimeout: time.Minute,
	}
}

// Validate validates the configuration
func (c SyncCronTriggerConfig) Validate() error {
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		return fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, c.Schedule, err)
	}
	if c.TickTimeout <= 0 {
		return fmt.Errorf("%w: tick timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// SyncCronTrigger fires scheduled syncs on a cron schedule
type SyncCronTrigger struct {
	config  SyncCronTriggerConfig
	trigger ScheduledSyncTrigger
	logger  *zap.Logger

	cron      *cron.Cron
	cancel    context.CancelFunc
	mu        sync.Mutex
	isRunning bool
}

// NewSyncCronTrigger creates a new sync cron trigger
func NewSyncCronTrigger(config SyncCronTriggerConfig, trigger ScheduledSyncTrigger, logger *zap.Logger) (*SyncCronTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncCronTrigger{
		config:  config,
		trigger: trigger,
		logger:  logger,
	}, nil
}

// Start registers the schedule and starts the cron runner
func (t *SyncCronTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	runner := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := runner.AddFunc(t.config.Schedule, func() { t.RunOnce(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	runner.Start()

	t.cron = runner
	t.cancel = cancel
	t.isRunning = true

	t.logger.Info("Sync cron trigger started", zap.String("schedule", t.config.Schedule))
	return nil
}

// Stop stops the cron runner and waits for an in-flight pass
func (t *SyncCronTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	runner := t.cron
	cancel := t.cancel
	t.mu.Unlock()

	cancel()
	stopped := runner.Stop()

	select {
	case <-stopped.Done():
		t.logger.Info("Sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		t.logger.Warn("Sync cron trigger stop timed out")
		return ctx.Err()
	}
}

// RunOnce performs one scheduling pass and returns the number of runs started
func (t *SyncCronTrigger) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, t.config.TickTimeout)
	defer cancel()

	started, err := t.trigger.TriggerScheduledSyncs(ctx)
	if err != nil {
		t.logger.Error("Scheduled sync pass failed", zap.Error(err))
		return started
	}
	if started > 0 {
		t.logger.Info("Scheduled syncs triggered", zap.Int("started", started))
	}
	return started
}
