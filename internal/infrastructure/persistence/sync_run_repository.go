package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSyncRunRepository implements SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// FindByID finds a run by its ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns one page of runs, newest first
func (r *GormSyncRunRepository) List(ctx context.Context, filter integration.SyncRunFilter) ([]integration.SyncRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var runModels []models.SyncRunModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("sync_started_at DESC").
		Find(&runModels).Error; err != nil {
		return nil, 0, err
	}
	return toRunDomains(runModels), total, nil
}

// ListRecent returns the latest runs, optionally for one source
func (r *GormSyncRunRepository) ListRecent(ctx context.Context, sourceID *uuid.UUID, limit int) ([]integration.SyncRun, error) {
	if limit <= 0 {
		limit = 10
	}
	query := r.db.WithContext(ctx).Model(&models.SyncRunModel{})
	if sourceID != nil {
		query = query.Where("source_id = ?", *sourceID)
	}

	var runModels []models.SyncRunModel
	if err := query.Order("sync_started_at DESC").Limit(limit).Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toRunDomains(runModels), nil
}

// FindRunning returns every run still marked running
func (r *GormSyncRunRepository) FindRunning(ctx context.Context) ([]integration.SyncRun, error) {
	var runModels []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", integration.SyncRunStatusRunning).
		Order("sync_started_at ASC").
		Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toRunDomains(runModels), nil
}

// ExistsRunning checks whether the source has a run in progress
func (r *GormSyncRunRepository) ExistsRunning(ctx context.Context, sourceID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("source_id = ? AND status = ?", sourceID, integration.SyncRunStatusRunning).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountBySource counts the runs of one source
func (r *GormSyncRunRepository) CountBySource(ctx context.Context, sourceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SyncRunModel{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error
	return count, err
}

// Save creates or updates a run
func (r *GormSyncRunRepository) Save(ctx context.Context, run *integration.SyncRun) error {
	return r.db.WithContext(ctx).Save(models.SyncRunModelFromDomain(run)).Error
}

// FinishRun persists a terminal run together with the source's sync summary
func (r *GormSyncRunRepository) FinishRun(ctx context.Context, run *integration.SyncRun, source *integration.IntegrationSource) error {
	if !run.Status.IsTerminal() {
		return integration.ErrSyncRunNotRunning
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(models.SyncRunModelFromDomain(run)).Error; err != nil {
			return err
		}
		if source == nil {
			return nil
		}
		result := tx.Model(&models.IntegrationSourceModel{}).
			Where("id = ?", source.ID).
			UpdateColumns(map[string]any{
				"last_sync_at":     source.LastSyncAt,
				"last_sync_status": source.LastSyncStatus,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return integration.ErrSourceNotFound
		}
		return nil
	})
}

func toRunDomains(runModels []models.SyncRunModel) []integration.SyncRun {
	runs := make([]integration.SyncRun, len(runModels))
	for i := range runModels {
		runs[i] = *runModels[i].ToDomain()
	}
	return runs
}

// Ensure GormSyncRunRepository implements SyncRunRepository
var _ integration.SyncRunRepository = (*GormSyncRunRepository)(nil)
