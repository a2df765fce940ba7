package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	applog "github.com/staffhub/backend/internal/infrastructure/logger"
	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RunDispatcher executes sync jobs off the request path
type RunDispatcher interface {
	// Dispatch queues job; an error means it will never run
	Dispatch(runID uuid.UUID, job func(ctx context.Context)) error
}

// SyncConfig holds orchestrator settings
type SyncConfig struct {
	// LockTTL bounds how long a crashed process can block a source
	LockTTL time.Duration
}

// DefaultSyncConfig returns the default orchestrator settings
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{LockTTL: time.Hour}
}

// SyncServiceOption configures a SyncService
type SyncServiceOption func(*SyncService)

// WithSyncLogger sets the logger
func WithSyncLogger(logger *zap.Logger) SyncServiceOption {
	return func(s *SyncService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSyncMetrics records run outcomes
func WithSyncMetrics(metrics *telemetry.SyncMetrics) SyncServiceOption {
	return func(s *SyncService) {
		s.metrics = metrics
	}
}

type activeRun struct {
	cancel    context.CancelFunc
	cancelled bool
}

// SyncService runs syncs of one source at a time and keeps the run history
type SyncService struct {
	sources    integration.IntegrationSourceReader
	runs       integration.SyncRunRepository
	registry   integration.AdapterRegistry
	pipeline   *recordPipeline
	guard      *runGuard
	dispatcher RunDispatcher
	metrics    *telemetry.SyncMetrics
	logger     *zap.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
}

// NewSyncService creates a new SyncService
func NewSyncService(
	sources integration.IntegrationSourceReader,
	runs integration.SyncRunRepository,
	records integration.IntegrationRecordWriter,
	engine *MappingEngine,
	registry integration.AdapterRegistry,
	lock integration.RunLock,
	dispatcher RunDispatcher,
	cfg SyncConfig,
	opts ...SyncServiceOption,
) *SyncService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultSyncConfig().LockTTL
	}

	s := &SyncService{
		sources:    sources,
		runs:       runs,
		registry:   registry,
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		active:     make(map[uuid.UUID]*activeRun),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pipeline = &recordPipeline{engine: engine, records: records, logger: s.logger}
	s.guard = &runGuard{lock: lock, runs: runs, ttl: cfg.LockTTL}
	return s
}

// ---------------------------------------------------------------------------
// Triggering
// ---------------------------------------------------------------------------

// TriggerSync starts a run on the worker pool and returns it while it is still running.
// A second trigger for a source with a running run is rejected, not queued.
func (s *SyncService) TriggerSync(ctx context.Context, sourceID uuid.UUID, syncType integration.SyncType) (*integration.SyncRun, error) {
	source, run, release, err := s.start(ctx, sourceID, syncType)
	if err != nil {
		return nil, err
	}
	view := snapshotRun(run)

	job := func(jobCtx context.Context) {
		defer release()
		defer s.forget(run.ID)

		runCtx, cancel := context.WithCancel(jobCtx)
		defer cancel()
		s.attach(run.ID, cancel)

		_ = s.execute(runCtx, source, run)
	}

	if err := s.dispatcher.Dispatch(run.ID, job); err != nil {
		s.logger.Warn("sync run rejected by worker pool",
			zap.String("run_id", run.ID.String()),
			zap.String("source_id", sourceID.String()),
			zap.Error(err))
		_ = run.Fail(fmt.Errorf("dispatch: %w", err))
		_ = s.finish(ctx, source, run)
		s.forget(run.ID)
		release()
		return nil, fmt.Errorf("%w: %v", integration.ErrSyncQueueUnavailable, err)
	}

	s.logger.Info("sync run triggered",
		zap.String("run_id", run.ID.String()),
		zap.String("source_id", sourceID.String()),
		zap.String("sync_type", string(syncType)))
	return view, nil
}

// RunSync executes a run on the calling goroutine. The returned error is the cause of a failed run.
func (s *SyncService) RunSync(ctx context.Context, sourceID uuid.UUID, syncType integration.SyncType) (*integration.SyncRun, error) {
	source, run, release, err := s.start(ctx, sourceID, syncType)
	if err != nil {
		return nil, err
	}
	defer release()
	defer s.forget(run.ID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.attach(run.ID, cancel)

	err = s.execute(runCtx, source, run)
	return run, err
}

// TriggerScheduledSyncs starts an incremental run for every active pull source.
// Sources that are already syncing are skipped.
func (s *SyncService) TriggerScheduledSyncs(ctx context.Context) (int, error) {
	sources, err := s.sources.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sources: %w", err)
	}

	triggered := 0
	for i := range sources {
		src := &sources[i]
		if !s.registry.SupportsPull(src.SystemType) {
			continue
		}
		if _, err := s.TriggerSync(ctx, src.ID, integration.SyncTypeIncremental); err != nil {
			if errors.Is(err, integration.ErrSyncAlreadyRunning) {
				s.logger.Debug("scheduled sync skipped, run in progress", zap.String("source_id", src.ID.String()))
				continue
			}
			s.logger.Warn("scheduled sync not started",
				zap.String("source_id", src.ID.String()),
				zap.Error(err))
			continue
		}
		triggered++
	}
	return triggered, nil
}

func (s *SyncService) start(ctx context.Context, sourceID uuid.UUID, syncType integration.SyncType) (*integration.IntegrationSource, *integration.SyncRun, func(), error) {
	if syncType != integration.SyncTypeFull && syncType != integration.SyncTypeIncremental {
		return nil, nil, nil, integration.ErrInvalidSyncType
	}

	source, err := s.sources.FindByID(ctx, sourceID)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := source.EnsureSyncable(); err != nil {
		return nil, nil, nil, err
	}
	if !s.registry.SupportsPull(source.SystemType) {
		return nil, nil, nil, integration.ErrSyncNotSupported
	}

	run, release, err := s.guard.begin(ctx, sourceID, syncType)
	if err != nil {
		return nil, nil, nil, err
	}

	s.mu.Lock()
	s.active[run.ID] = &activeRun{}
	s.mu.Unlock()
	return source, run, release, nil
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

func (s *SyncService) execute(ctx context.Context, source *integration.IntegrationSource, run *integration.SyncRun) error {
	ctx, span := telemetry.StartSpan(ctx, "integration.sync_run",
		telemetry.WithAttribute(telemetry.SpanAttrRunID, run.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSourceID, source.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrSystemType, string(source.SystemType)),
		telemetry.WithAttribute(telemetry.SpanAttrSyncType, string(run.SyncType)),
	)
	defer span.End()

	ctx, logger := applog.WithRun(ctx, s.logger.With(zap.String("system_type", string(source.SystemType))), source.ID, run.ID)

	adapter, err := s.registry.Adapter(source)
	if err != nil {
		cause := fmt.Errorf("resolve adapter: %w", err)
		_ = run.Fail(cause)
		telemetry.RecordError(span, cause)
		_ = s.finish(ctx, source, run)
		return cause
	}

	fetchCtx, fetchSpan := telemetry.StartSpan(ctx, "integration.adapter_fetch")
	raws, err := adapter.FetchRecords(fetchCtx, source.SinceForSync(run.SyncType))
	if err != nil {
		telemetry.RecordError(fetchSpan, err)
	} else {
		telemetry.SetAttributes(fetchSpan, telemetry.SpanAttrRecords, len(raws))
	}
	fetchSpan.End()

	if err != nil {
		if ctx.Err() != nil && s.cancelRequested(run.ID) {
			_ = run.Cancel()
			logger.Info("sync run cancelled during fetch")
			return s.finish(ctx, source, run)
		}
		if ctx.Err() != nil {
			err = interruption(ctx)
		}
		_ = run.Fail(err)
		telemetry.RecordError(span, err)
		logger.Warn("adapter fetch failed", zap.Error(err))
		if finishErr := s.finish(ctx, source, run); finishErr != nil {
			return errors.Join(err, finishErr)
		}
		return err
	}

	// Records are written even if ctx is cancelled mid-record; the checkpoint is between records.
	persistCtx := context.WithoutCancel(ctx)
	for _, raw := range raws {
		if ctx.Err() != nil {
			if s.cancelRequested(run.ID) {
				_ = run.Cancel()
				logger.Info("sync run cancelled between records",
					zap.Int("records_processed", run.RecordsProcessed))
				break
			}
			cause := interruption(ctx)
			_ = run.Fail(cause)
			telemetry.RecordError(span, cause)
			logger.Warn("sync run interrupted",
				zap.Int("records_processed", run.RecordsProcessed), zap.Error(cause))
			if finishErr := s.finish(ctx, source, run); finishErr != nil {
				return errors.Join(cause, finishErr)
			}
			return cause
		}

		outcome, err := s.pipeline.process(persistCtx, source.ID, raw)
		if err == nil {
			err = outcome.applyTo(run)
		}
		if err != nil {
			_ = run.Fail(err)
			telemetry.RecordError(span, err)
			logger.Error("sync run aborted", zap.String("external_id", raw.ExternalID), zap.Error(err))
			if finishErr := s.finish(ctx, source, run); finishErr != nil {
				return errors.Join(err, finishErr)
			}
			return err
		}
	}

	if run.IsRunning() {
		_ = run.Complete()
	}
	telemetry.SetAttributes(span, "run_status", string(run.Status))
	logger.Info("sync run finished",
		zap.String("status", string(run.Status)),
		zap.Int("records_processed", run.RecordsProcessed),
		zap.Int("records_succeeded", run.RecordsSucceeded),
		zap.Int("records_failed", run.RecordsFailed),
		zap.Duration("duration", run.Duration()))
	return s.finish(ctx, source, run)
}

// interruption describes a run context that ended without a CancelRun request
func interruption(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.New("run exceeded job timeout")
	}
	return fmt.Errorf("run interrupted: %w", ctx.Err())
}

// finish persists a terminal run. Pull runs also update the source watermark.
func (s *SyncService) finish(ctx context.Context, source *integration.IntegrationSource, run *integration.SyncRun) error {
	var summary *integration.IntegrationSource
	if run.SyncType != integration.SyncTypeManual && source != nil {
		source.RecordSyncOutcome(run)
		summary = source
	}

	if err := s.runs.FinishRun(context.WithoutCancel(ctx), run, summary); err != nil {
		s.logger.Error("failed to persist finished sync run",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}

	systemType := ""
	if source != nil {
		systemType = string(source.SystemType)
	}
	s.metrics.RecordRun(ctx, systemType, string(run.SyncType), string(run.Status),
		run.Duration(), run.RecordsSucceeded, run.RecordsFailed)
	return nil
}

// ---------------------------------------------------------------------------
// Cancellation and recovery
// ---------------------------------------------------------------------------

// CancelRun asks a run executing in this process to stop at its next checkpoint
func (s *SyncService) CancelRun(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.active[runID]
	if ok {
		entry.cancelled = true
		if entry.cancel != nil {
			entry.cancel()
		}
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info("sync run cancellation requested", zap.String("run_id", runID.String()))
		return nil
	}

	run, err := s.runs.FindByID(ctx, runID)
	if err != nil {
		return err
	}
	if !run.IsRunning() {
		return integration.ErrSyncRunNotRunning
	}
	return integration.ErrSyncRunNotCancellable
}

// RecoverStaleRuns fails runs left running by a process that died.
// Runs whose source lock is still held elsewhere are left alone.
func (s *SyncService) RecoverStaleRuns(ctx context.Context) (int, error) {
	running, err := s.runs.FindRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("find running runs: %w", err)
	}

	recovered := 0
	for i := range running {
		run := &running[i]
		if s.isActive(run.ID) {
			continue
		}

		token, ok, err := s.guard.lock.TryLock(ctx, run.SourceID, s.guard.ttl)
		if err != nil {
			return recovered, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			continue
		}

		err = s.recoverRun(ctx, run)
		_ = s.guard.lock.Unlock(context.WithoutCancel(ctx), run.SourceID, token)
		if err != nil {
			return recovered, err
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Warn("recovered interrupted sync runs", zap.Int("count", recovered))
	}
	return recovered, nil
}

func (s *SyncService) recoverRun(ctx context.Context, run *integration.SyncRun) error {
	if err := run.Fail(errors.New("interrupted")); err != nil {
		return err
	}

	var summary *integration.IntegrationSource
	if run.SyncType != integration.SyncTypeManual {
		source, err := s.sources.FindByID(ctx, run.SourceID)
		if err != nil && !errors.Is(err, integration.ErrSourceNotFound) {
			return err
		}
		if source != nil {
			source.RecordSyncOutcome(run)
			summary = source
		}
	}
	return s.runs.FinishRun(ctx, run, summary)
}

func (s *SyncService) attach(runID uuid.UUID, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.active[runID]
	if !ok {
		entry = &activeRun{}
		s.active[runID] = entry
	}
	entry.cancel = cancel
	if entry.cancelled {
		cancel()
	}
}

func (s *SyncService) forget(runID uuid.UUID) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

// cancelRequested reports whether CancelRun was called for the run
func (s *SyncService) cancelRequested(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.active[runID]
	return ok && entry.cancelled
}

func (s *SyncService) isActive(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[runID]
	return ok
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// GetRun returns one run
func (s *SyncService) GetRun(ctx context.Context, runID uuid.UUID) (*integration.SyncRun, error) {
	return s.runs.FindByID(ctx, runID)
}

// ListRuns returns the run history, newest first
func (s *SyncService) ListRuns(ctx context.Context, filter integration.SyncRunFilter) ([]integration.SyncRun, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.SourceID != nil {
		if _, err := s.sources.FindByID(ctx, *filter.SourceID); err != nil {
			return nil, 0, err
		}
	}
	return s.runs.List(ctx, filter)
}

func snapshotRun(run *integration.SyncRun) *integration.SyncRun {
	cp := *run
	cp.Failures = make([]integration.RecordFailure, len(run.Failures))
	copy(cp.Failures, run.Failures)
	return &cp
}
