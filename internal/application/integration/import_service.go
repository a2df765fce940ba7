package integration

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/connector"
	csvimport "github.com/staffhub/backend/internal/infrastructure/import"
	"github.com/staffhub/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ArchiveStore keeps a copy of raw uploads
type ArchiveStore interface {
	Archive(ctx context.Context, key, contentType string, body []byte) error
}

// ImportConfig holds importer settings
type ImportConfig struct {
	LockTTL time.Duration
	// MaxErrors caps the row errors returned; the total is still counted
	MaxErrors int
}

// DefaultImportConfig returns the default importer settings
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		LockTTL:   10 * time.Minute,
		MaxErrors: 100,
	}
}

// ImportServiceOption configures an ImportService
type ImportServiceOption func(*ImportService)

// WithImportLogger sets the logger
func WithImportLogger(logger *zap.Logger) ImportServiceOption {
	return func(s *ImportService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithImportMetrics records import runs
func WithImportMetrics(metrics *telemetry.SyncMetrics) ImportServiceOption {
	return func(s *ImportService) {
		s.metrics = metrics
	}
}

// WithImportArchive archives CSV uploads to store
func WithImportArchive(store ArchiveStore) ImportServiceOption {
	return func(s *ImportService) {
		s.archive = store
	}
}

// ImportService pushes operator-supplied records through the sync pipeline.
// Every import is recorded as a manual run and holds the source's run lock.
type ImportService struct {
	sources  integration.IntegrationSourceReader
	runs     integration.SyncRunRepository
	pipeline *recordPipeline
	guard    *runGuard
	cfg      ImportConfig
	archive  ArchiveStore
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewImportService creates a new ImportService
func NewImportService(
	sources integration.IntegrationSourceReader,
	runs integration.SyncRunRepository,
	records integration.IntegrationRecordWriter,
	engine *MappingEngine,
	lock integration.RunLock,
	cfg ImportConfig,
	opts ...ImportServiceOption,
) *ImportService {
	defaults := DefaultImportConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaults.LockTTL
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = defaults.MaxErrors
	}

	s := &ImportService{
		sources: sources,
		runs:    runs,
		cfg:     cfg,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.pipeline = &recordPipeline{engine: engine, records: records, logger: s.logger}
	s.guard = &runGuard{lock: lock, runs: runs, ttl: cfg.LockTTL}
	return s
}

// ImportManual maps and stores one operator-entered record
func (s *ImportService) ImportManual(ctx context.Context, sourceID uuid.UUID, input ManualRecordInput) (*ImportResult, error) {
	source, err := s.importableSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	adapter := connector.NewManualAdapter(connector.ManualRecord{
		ExternalID:  input.ExternalID,
		EntityType:  input.EntityType,
		Title:       input.Title,
		Description: input.Description,
		Data:        input.Data,
	})
	raws, err := adapter.FetchRecords(ctx, nil)
	if err != nil {
		return nil, err
	}

	result, _, err := s.importRecords(ctx, source, raws, nil)
	return result, err
}

// ImportCSV imports every row of an upload. Row problems are reported in the
// result; only file-level and persistence problems are returned as errors.
func (s *ImportService) ImportCSV(ctx context.Context, sourceID uuid.UUID, input ImportCSVInput) (*ImportResult, error) {
	source, err := s.importableSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if input.Reader == nil {
		return nil, csvimport.ErrEmptyFile
	}

	body, err := io.ReadAll(input.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	adapter := connector.NewCSVAdapter(bytes.NewReader(body), connector.CSVOptions{
		EntityType:     input.EntityType,
		IdentityColumn: input.IdentityColumn,
	})
	raws, err := adapter.FetchRecords(ctx, nil)
	if err != nil {
		return nil, err
	}

	result, run, err := s.importRecords(ctx, source, raws, adapter.RowError)
	if err != nil {
		return nil, err
	}
	result.Encoding = adapter.Encoding()

	s.archiveUpload(ctx, source.ID, run.ID, input.FileName, body)
	return result, nil
}

func (s *ImportService) importableSource(ctx context.Context, sourceID uuid.UUID) (*integration.IntegrationSource, error) {
	source, err := s.sources.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if err := source.EnsureImportable(); err != nil {
		return nil, err
	}
	return source, nil
}

// importRecords runs raws through the pipeline as one manual run.
// rowError returns the parse-level error of a rejected row, if the adapter has one.
func (s *ImportService) importRecords(
	ctx context.Context,
	source *integration.IntegrationSource,
	raws []integration.RawExternalRecord,
	rowError func(line int) (csvimport.RowError, bool),
) (*ImportResult, *integration.SyncRun, error) {
	// The import finishes even when the caller goes away
	ctx = context.WithoutCancel(ctx)

	ctx, span := telemetry.StartSpan(ctx, "integration.import",
		telemetry.WithAttribute(telemetry.SpanAttrSourceID, source.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrRecords, len(raws)),
	)
	defer span.End()

	run, release, err := s.guard.begin(ctx, source.ID, integration.SyncTypeManual)
	if err != nil {
		return nil, nil, err
	}
	defer release()
	telemetry.SetAttributes(span, telemetry.SpanAttrRunID, run.ID.String())

	rowErrors := csvimport.NewErrorCollection(s.cfg.MaxErrors)
	for _, raw := range raws {
		outcome, err := s.pipeline.process(ctx, source.ID, raw)
		if err == nil {
			err = outcome.applyTo(run)
		}
		if err != nil {
			_ = run.Fail(err)
			telemetry.RecordError(span, err)
			s.logger.Error("import aborted",
				zap.String("run_id", run.ID.String()),
				zap.String("source_id", source.ID.String()),
				zap.Int("line", raw.Line),
				zap.Error(err))
			_ = s.finish(ctx, source, run)
			return nil, nil, err
		}

		if outcome.kind != outcomeFailed {
			continue
		}
		if rowError != nil {
			if e, ok := rowError(raw.Line); ok {
				rowErrors.Add(e)
				continue
			}
		}
		rowErrors.AddMappingError(raw.Line, raw.ExternalID, outcome.reason)
	}

	_ = run.Complete()
	if err := s.finish(ctx, source, run); err != nil {
		return nil, nil, err
	}

	s.logger.Info("import finished",
		zap.String("run_id", run.ID.String()),
		zap.String("source_id", source.ID.String()),
		zap.String("status", string(run.Status)),
		zap.Int("total_rows", len(raws)),
		zap.Int("imported_rows", run.RecordsSucceeded),
		zap.Int("failed_rows", run.RecordsFailed))

	return &ImportResult{
		RunID:        run.ID,
		Status:       run.Status,
		TotalRows:    len(raws),
		ImportedRows: run.RecordsSucceeded,
		FailedRows:   run.RecordsFailed,
		Errors:       rowErrors.Errors(),
		IsTruncated:  rowErrors.IsTruncated(),
		TotalErrors:  rowErrors.TotalCount(),
	}, run, nil
}

// finish persists the run without touching the source watermark
func (s *ImportService) finish(ctx context.Context, source *integration.IntegrationSource, run *integration.SyncRun) error {
	if err := s.runs.FinishRun(ctx, run, nil); err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	s.metrics.RecordRun(ctx, string(source.SystemType), string(run.SyncType), string(run.Status),
		run.Duration(), run.RecordsSucceeded, run.RecordsFailed)
	return nil
}

// archiveUpload stores the raw upload. Failures are logged only.
func (s *ImportService) archiveUpload(ctx context.Context, sourceID, runID uuid.UUID, fileName string, body []byte) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("imports/%s/%s.csv", sourceID, runID)
	if err := s.archive.Archive(ctx, key, "text/csv", body); err != nil {
		s.logger.Warn("failed to archive CSV upload",
			zap.String("key", key),
			zap.String("file_name", fileName),
			zap.Error(err))
		return
	}
	s.logger.Debug("CSV upload archived", zap.String("key", key), zap.String("file_name", fileName))
}
