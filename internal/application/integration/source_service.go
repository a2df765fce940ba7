package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// deleteLockTTL bounds how long a delete holds the source's run lock
const deleteLockTTL = 30 * time.Second

// SourceServiceOption configures a SourceService
type SourceServiceOption func(*SourceService)

// WithSourceRunLock makes deletes take the per-source run lock, so a sync
// cannot start while the source is being removed
func WithSourceRunLock(lock integration.RunLock) SourceServiceOption {
	return func(s *SourceService) {
		s.lock = lock
	}
}

// SourceService manages integration sources and their lifecycle
type SourceService struct {
	sources integration.IntegrationSourceRepository
	records integration.IntegrationRecordReader
	runs    integration.SyncRunRepository
	lock    integration.RunLock
	logger  *zap.Logger
}

// NewSourceService creates a new SourceService
func NewSourceService(
	sources integration.IntegrationSourceRepository,
	records integration.IntegrationRecordReader,
	runs integration.SyncRunRepository,
	logger *zap.Logger,
	opts ...SourceServiceOption,
) *SourceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SourceService{
		sources: sources,
		records: records,
		runs:    runs,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSource creates a source in draft status
func (s *SourceService) CreateSource(ctx context.Context, input CreateSourceInput) (*integration.IntegrationSource, error) {
	source, err := integration.NewIntegrationSource(input.Name, input.SystemType, input.Description, input.APIURL)
	if err != nil {
		return nil, err
	}
	if err := s.sources.Save(ctx, source); err != nil {
		return nil, err
	}

	s.logger.Info("integration source created",
		zap.String("source_id", source.ID.String()),
		zap.String("system_type", string(source.SystemType)))
	return source, nil
}

// UpdateSource changes the editable details. The system type cannot change.
func (s *SourceService) UpdateSource(ctx context.Context, id uuid.UUID, input UpdateSourceInput) (*integration.IntegrationSource, error) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := source.CheckSystemType(input.SystemType); err != nil {
		return nil, err
	}
	if err := source.Update(input.Name, input.Description, input.APIURL); err != nil {
		return nil, err
	}
	if err := s.sources.Save(ctx, source); err != nil {
		return nil, err
	}
	return source, nil
}

// GetSource returns one source
func (s *SourceService) GetSource(ctx context.Context, id uuid.UUID) (*integration.IntegrationSource, error) {
	return s.sources.FindByID(ctx, id)
}

// ListSources lists sources with filtering
func (s *SourceService) ListSources(ctx context.Context, filter integration.SourceFilter) ([]integration.IntegrationSource, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	return s.sources.List(ctx, filter)
}

// ActivateSource permits syncs against a source
func (s *SourceService) ActivateSource(ctx context.Context, id uuid.UUID) (*integration.IntegrationSource, error) {
	return s.transition(ctx, id, (*integration.IntegrationSource).Activate)
}

// DisableSource stops syncs and imports for a source
func (s *SourceService) DisableSource(ctx context.Context, id uuid.UUID) (*integration.IntegrationSource, error) {
	return s.transition(ctx, id, (*integration.IntegrationSource).Disable)
}

func (s *SourceService) transition(ctx context.Context, id uuid.UUID, apply func(*integration.IntegrationSource) error) (*integration.IntegrationSource, error) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(source); err != nil {
		return nil, err
	}
	if err := s.sources.Save(ctx, source); err != nil {
		return nil, err
	}

	s.logger.Info("integration source status changed",
		zap.String("source_id", source.ID.String()),
		zap.String("status", string(source.Status)))
	return source, nil
}

// DeleteSource removes a source. Without cascade it refuses while the source owns records or runs.
func (s *SourceService) DeleteSource(ctx context.Context, id uuid.UUID, cascade bool) error {
	if _, err := s.sources.FindByID(ctx, id); err != nil {
		return err
	}

	if s.lock != nil {
		token, ok, err := s.lock.TryLock(ctx, id, deleteLockTTL)
		if err != nil {
			return fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return integration.ErrSyncAlreadyRunning
		}
		defer func() {
			_ = s.lock.Unlock(context.WithoutCancel(ctx), id, token)
		}()
	}

	running, err := s.runs.ExistsRunning(ctx, id)
	if err != nil {
		return err
	}
	if running {
		return integration.ErrSyncAlreadyRunning
	}

	if !cascade {
		records, err := s.records.CountBySource(ctx, id)
		if err != nil {
			return err
		}
		runs, err := s.runs.CountBySource(ctx, id)
		if err != nil {
			return err
		}
		if records > 0 || runs > 0 {
			return integration.ErrSourceHasDependents
		}
	}

	if err := s.sources.DeleteCascade(ctx, id); err != nil {
		return err
	}
	s.logger.Info("integration source deleted",
		zap.String("source_id", id.String()),
		zap.Bool("cascade", cascade))
	return nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// ListRecords lists the records of one source
func (s *SourceService) ListRecords(ctx context.Context, filter integration.RecordFilter) ([]integration.IntegrationRecord, int64, error) {
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
	return s.records.List(ctx, filter)
}

// GetRecord returns one record
func (s *SourceService) GetRecord(ctx context.Context, id uuid.UUID) (*integration.IntegrationRecord, error) {
	return s.records.FindByID(ctx, id)
}
