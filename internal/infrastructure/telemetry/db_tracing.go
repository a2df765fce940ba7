package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in db.statement
	SlowQueryThresh time.Duration // default: 200ms
	DBName          string
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          "staffhub",
	}
}

// DBTracingPlugin installs otelgorm and annotates its spans with row counts,
// table names and slow-query markers.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Register installs the annotation callbacks and otelgorm on db.
// It is a no-op when tracing is disabled.
func (p *DBTracingPlugin) Register(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBName)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	// Annotation hooks go first so their after callbacks run while the
	// otelgorm span is still open
	if err := registerStatementHooks(db, "otel_annotate", p.annotate); err != nil {
		return err
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
	)
	return nil
}

func (p *DBTracingPlugin) annotate(db *gorm.DB, _ string, elapsed time.Duration) {
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}
	if elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}

// =============================================================================
// Statement hooks shared by tracing and metrics
// =============================================================================

type statementStartKey struct{}

// statementHook receives the finished statement, its SQL verb and how long it took
type statementHook func(db *gorm.DB, operation string, elapsed time.Duration)

// registerStatementHooks wraps every gorm statement kind with a timing
// callback pair named "<name>:before_<kind>" and "<name>:after_<kind>".
func registerStatementHooks(db *gorm.DB, name string, hook statementHook) error {
	before := func(tx *gorm.DB) {
		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		tx.Statement.Context = context.WithValue(ctx, statementStartKey{}, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			op := operation
			if op == "" {
				op = detectOperationType(tx.Statement.SQL.String())
			}
			var elapsed time.Duration
			if tx.Statement.Context != nil {
				if start, ok := tx.Statement.Context.Value(statementStartKey{}).(time.Time); ok {
					elapsed = time.Since(start)
				}
			} else {
				tx.Statement.Context = context.Background()
			}
			hook(tx, op, elapsed)
		}
	}

	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register(name+":before_create", before),
		cb.Query().Before("gorm:query").Register(name+":before_query", before),
		cb.Update().Before("gorm:update").Register(name+":before_update", before),
		cb.Delete().Before("gorm:delete").Register(name+":before_delete", before),
		cb.Row().Before("gorm:row").Register(name+":before_row", before),
		cb.Raw().Before("gorm:raw").Register(name+":before_raw", before),

		cb.Create().After("gorm:create").Register(name+":after_create", after("INSERT")),
		cb.Query().After("gorm:query").Register(name+":after_query", after("SELECT")),
		cb.Update().After("gorm:update").Register(name+":after_update", after("UPDATE")),
		cb.Delete().After("gorm:delete").Register(name+":after_delete", after("DELETE")),
		cb.Row().After("gorm:row").Register(name+":after_row", after("")),
		cb.Raw().After("gorm:raw").Register(name+":after_raw", after("")),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// detectOperationType returns the SQL verb of a raw statement
func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, verb) {
			return verb
		}
	}
	if strings.HasPrefix(sql, "WITH") {
		return "SELECT"
	}
	return "OTHER"
}
