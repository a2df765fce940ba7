package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// SyncWorkerPoolConfig
// ---------------------------------------------------------------------------

// SyncWorkerPoolConfig holds configuration for the sync worker pool
type SyncWorkerPoolConfig struct {
	// Workers is the number of sync runs executed concurrently
	Workers int
	// QueueSize is the number of dispatched runs that may wait for a worker
	QueueSize int
	// JobTimeout is the maximum time a run can execute
	JobTimeout time.Duration
}

// DefaultSyncWorkerPoolConfig returns default configuration
func DefaultSyncWorkerPoolConfig() SyncWorkerPoolConfig {
	return SyncWorkerPoolConfig{
		Workers:    4,
		QueueSize:  100,
		JobTimeout: 30 * time.Minute,
	}
}

// Validate validates the configuration
func (c SyncWorkerPoolConfig) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue size must not be negative", ErrInvalidConfig)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// ---------------------------------------------------------------------------
// SyncWorkerPool
// ---------------------------------------------------------------------------

type syncJob struct {
	runID uuid.UUID
	fn    func(ctx context.Context)
}

// SyncWorkerPool runs dispatched sync runs on a fixed set of workers.
// Jobs still queued when the pool stops are executed with a cancelled context,
// so every dispatched run reaches a terminal status and releases its lock.
type SyncWorkerPool struct {
	config SyncWorkerPoolConfig
	logger *zap.Logger

	jobs      chan syncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewSyncWorkerPool creates a new sync worker pool
func NewSyncWorkerPool(config SyncWorkerPoolConfig, logger *zap.Logger) (*SyncWorkerPool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncWorkerPool{
		config: config,
		logger: logger,
	}, nil
}

// Start starts the workers
func (p *SyncWorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.jobs = make(chan syncJob, p.config.QueueSize)
	p.isRunning = true

	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, p.jobs, i)
	}

	p.logger.Info("Sync worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize),
		zap.Duration("job_timeout", p.config.JobTimeout),
	)
	return nil
}

// Stop cancels running jobs, drains the queue and waits for the workers
func (p *SyncWorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = false
	p.cancel()
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Sync worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("Sync worker pool stop timed out")
		return ctx.Err()
	}
}

// Dispatch queues a sync run. It never blocks: a full queue is reported as ErrJobQueueFull.
func (p *SyncWorkerPool) Dispatch(runID uuid.UUID, job func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.isRunning {
		return ErrSchedulerNotRunning
	}

	select {
	case p.jobs <- syncJob{runID: runID, fn: job}:
		p.logger.Debug("Sync run dispatched", zap.String("run_id", runID.String()))
		return nil
	default:
		p.logger.Warn("Sync run rejected, queue full", zap.String("run_id", runID.String()))
		return ErrJobQueueFull
	}
}

// IsRunning reports whether the pool accepts jobs
func (p *SyncWorkerPool) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

func (p *SyncWorkerPool) worker(ctx context.Context, jobs <-chan syncJob, workerID int) {
	defer p.wg.Done()

	for job := range jobs {
		p.processJob(ctx, job, workerID)
	}
	p.logger.Debug("Sync worker stopping", zap.Int("worker_id", workerID))
}

func (p *SyncWorkerPool) processJob(ctx context.Context, job syncJob, workerID int) {
	jobCtx, cancel := context.WithTimeout(ctx, p.config.JobTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Sync run panicked",
				zap.Int("worker_id", workerID),
				zap.String("run_id", job.runID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	start := time.Now()
	job.fn(jobCtx)

	p.logger.Debug("Sync run processed",
		zap.Int("worker_id", workerID),
		zap.String("run_id", job.runID.String()),
		zap.Duration("duration", time.Since(start)),
	)
}
