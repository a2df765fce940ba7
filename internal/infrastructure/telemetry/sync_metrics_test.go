package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func TestNewSyncMetrics_NilMeter(t *testing.T) {
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{Logger: zap.NewNop()})

	require.Error(t, err)
	assert.Nil(t, sm)
	assert.Equal(t, "NewSyncMetrics: meter cannot be nil", err.Error())
}

func TestSyncMetrics_NilIsNoop(t *testing.T) {
	var sm *telemetry.SyncMetrics

	// Should not panic
	sm.RecordRun(context.Background(), "jira", "full", "completed", time.Second, 3, 0)
}

func TestSyncMetrics_NoopMeter(t *testing.T) {
	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)

	sm.RecordRun(context.Background(), "asana", "incremental", "failed", 0, 0, 0)
}

func TestSyncMetrics_RecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sm, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter: provider.Meter("test"),
	})
	require.NoError(t, err)

	ctx := context.Background()
	sm.RecordRun(ctx, "servicenow", "full", "partial", 2*time.Second, 1, 1)
	sm.RecordRun(ctx, "servicenow", "incremental", "completed", time.Second, 4, 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	runs, ok := byName["integration_sync_runs_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var runTotal int64
	for _, dp := range runs.DataPoints {
		runTotal += dp.Value
	}
	assert.Equal(t, int64(2), runTotal)

	records, ok := byName["integration_sync_records_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var recordTotal int64
	for _, dp := range records.DataPoints {
		recordTotal += dp.Value
	}
	assert.Equal(t, int64(6), recordTotal)

	durations, ok := byName["integration_sync_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range durations.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(2), count)
}
