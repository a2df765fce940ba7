package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type widget struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestDetectOperationType(t *testing.T) {
	tests := []struct {
		sql  string
		want string
	}{
		{"SELECT * FROM integration_sources", "SELECT"},
		{"  insert into sync_runs (id) values (1)", "INSERT"},
		{"UPDATE integration_sources SET status = 'active'", "UPDATE"},
		{"delete from external_records", "DELETE"},
		{"WITH latest AS (SELECT 1) SELECT * FROM latest", "SELECT"},
		{"CREATE TABLE widgets (id integer)", "OTHER"},
		{"", "OTHER"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectOperationType(tt.sql), tt.sql)
	}
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := openTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: false}, nil)

	require.NoError(t, plugin.Register(db))
	assert.Empty(t, db.Config.Plugins)
}

func TestDBTracingPlugin_DefaultsThreshold(t *testing.T) {
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true}, nil)
	assert.Equal(t, 200*time.Millisecond, plugin.config.SlowQueryThresh)
}

func TestDBTracingPlugin_Annotate(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	db := openTestDB(t)
	plugin := NewDBTracingPlugin(DBTracingConfig{Enabled: true, SlowQueryThresh: 100 * time.Millisecond}, nil)

	t.Run("slow statement", func(t *testing.T) {
		ctx, span := provider.Tracer("test").Start(context.Background(), "gorm.Create")
		tx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
		tx.Statement.Table = "sync_runs"
		tx.Statement.RowsAffected = 2

		plugin.annotate(tx, "INSERT", 250*time.Millisecond)
		span.End()

		ended := recorder.Ended()
		got := ended[len(ended)-1]
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range got.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		assert.Equal(t, "sync_runs", attrs["db.sql.table"].AsString())
		assert.Equal(t, int64(2), attrs["db.rows_affected"].AsInt64())
		assert.True(t, attrs["db.slow_query"].AsBool())
		require.Len(t, got.Events(), 1)
		assert.Equal(t, "slow_query_warning", got.Events()[0].Name)
		assert.NotEqual(t, codes.Error, got.Status().Code)
	})

	t.Run("failed statement", func(t *testing.T) {
		ctx, span := provider.Tracer("test").Start(context.Background(), "gorm.Update")
		tx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
		tx.Error = errors.New("constraint failed")

		plugin.annotate(tx, "UPDATE", time.Millisecond)
		span.End()

		ended := recorder.Ended()
		got := ended[len(ended)-1]
		assert.Equal(t, codes.Error, got.Status().Code)
		assert.Equal(t, "constraint failed", got.Status().Description)
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		ctx, span := provider.Tracer("test").Start(context.Background(), "gorm.Query")
		tx := db.Session(&gorm.Session{NewDB: true, Context: ctx})
		tx.Error = gorm.ErrRecordNotFound

		plugin.annotate(tx, "SELECT", time.Millisecond)
		span.End()

		ended := recorder.Ended()
		assert.NotEqual(t, codes.Error, ended[len(ended)-1].Status().Code)
	})
}

func TestDBTracingPlugin_Register(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})

	db := openTestDB(t)
	require.NoError(t, NewDBTracingPlugin(DBTracingConfig{Enabled: true, DBName: "test"}, nil).Register(db))
	require.NoError(t, db.AutoMigrate(&widget{}))

	ctx, parent := provider.Tracer("test").Start(context.Background(), "request")
	require.NoError(t, db.WithContext(ctx).Create(&widget{Name: "a"}).Error)
	parent.End()

	var children int
	for _, s := range recorder.Ended() {
		if s.Parent().SpanID() == parent.SpanContext().SpanID() {
			children++
		}
	}
	assert.GreaterOrEqual(t, children, 1)
}

func TestRegisterDBMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	previous := otel.GetMeterProvider()
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{Enabled: true, ServiceName: "test"}, nil, WithMetricReader(reader))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		otel.SetMeterProvider(previous)
	})

	db := openTestDB(t)
	metrics, err := RegisterDBMetrics(context.Background(), db, mp, DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: time.Hour,
		PoolStatsInterval:  time.Hour,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, metrics)

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Create(&widget{Name: "a"}).Error)
	var found []widget
	require.NoError(t, db.Find(&found).Error)
	metrics.Stop()
	metrics.Stop()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byOperation := map[string]int64{}
	var poolMax bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "db_query_total":
				sum := m.Data.(metricdata.Sum[int64])
				for _, dp := range sum.DataPoints {
					op, _ := dp.Attributes.Value(AttrDBOperation)
					byOperation[op.AsString()] += dp.Value
				}
			case "db_pool_connections_max":
				poolMax = true
			case "db_slow_query_total":
				t.Errorf("no statement should exceed a one hour threshold")
			}
		}
	}
	assert.GreaterOrEqual(t, byOperation["INSERT"], int64(1))
	assert.GreaterOrEqual(t, byOperation["SELECT"], int64(1))
	assert.True(t, poolMax, "pool stats are sampled once on start")
}

func TestRegisterDBMetrics_Disabled(t *testing.T) {
	db := openTestDB(t)

	metrics, err := RegisterDBMetrics(context.Background(), db, nil, DefaultDBMetricsConfig(), nil)
	require.NoError(t, err)
	assert.Nil(t, metrics)
	metrics.Stop()
}

func TestDBMetrics_SlowQueryByTable(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := NewDBMetrics(provider.Meter("test"), DBMetricsConfig{SlowQueryThreshold: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, metrics.config.PoolStatsInterval)

	ctx := context.Background()
	metrics.RecordQuery(ctx, "select", "external_records", 50*time.Millisecond)
	metrics.RecordQuery(ctx, "", "", 50*time.Millisecond)
	metrics.RecordQuery(ctx, "select", "external_records", time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	slow := map[string]int64{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name != "db_slow_query_total" {
			continue
		}
		for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
			table, _ := dp.Attributes.Value(AttrDBTable)
			slow[table.AsString()] = dp.Value
		}
	}
	assert.Equal(t, map[string]int64{"external_records": 1, "unknown": 1}, slow)
}
