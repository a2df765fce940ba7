package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// SyncMetrics records sync run outcomes of the integration hub.
// A nil *SyncMetrics is valid and records nothing.
type SyncMetrics struct {
	logger *zap.Logger

	runsTotal    *Counter
	recordsTotal *Counter
	runDuration  *Histogram
}

// SyncMetricsConfig holds configuration for sync metrics.
type SyncMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewSyncMetrics creates the sync run instruments.
func NewSyncMetrics(cfg SyncMetricsConfig) (*SyncMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{logger: logger}

	var err error
	sm.runsTotal, err = NewCounter(cfg.Meter,
		"integration_sync_runs_total",
		"Total number of finished sync runs by status",
		"{run}",
	)
	if err != nil {
		return nil, err
	}

	sm.recordsTotal, err = NewCounter(cfg.Meter,
		"integration_sync_records_total",
		"Total number of records processed by outcome",
		"{record}",
	)
	if err != nil {
		return nil, err
	}

	sm.runDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "integration_sync_run_duration_seconds",
		Description: "Wall-clock duration of sync runs",
		Unit:        "s",
		Boundaries:  SyncRunDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Sync metrics initialized")
	return sm, nil
}

// RecordRun records one finished run
func (sm *SyncMetrics) RecordRun(ctx context.Context, systemType, syncType, status string, duration time.Duration, succeeded, failed int) {
	if sm == nil {
		return
	}

	runAttrs := []attribute.KeyValue{
		AttrSystemType.String(systemType),
		AttrSyncType.String(syncType),
		AttrRunStatus.String(status),
	}
	sm.runsTotal.Inc(ctx, runAttrs...)
	sm.runDuration.RecordDuration(ctx, duration, runAttrs[:2]...)

	if succeeded > 0 {
		sm.recordsTotal.Add(ctx, int64(succeeded), AttrSystemType.String(systemType), AttrRecordOutcome.String("succeeded"))
	}
	if failed > 0 {
		sm.recordsTotal.Add(ctx, int64(failed), AttrSystemType.String(systemType), AttrRecordOutcome.String("failed"))
	}
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewSyncMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
