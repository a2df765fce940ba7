package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIntegrationRecordRepository implements IntegrationRecordRepository using GORM
type GormIntegrationRecordRepository struct {
	db *gorm.DB
}

// NewGormIntegrationRecordRepository creates a new GormIntegrationRecordRepository
func NewGormIntegrationRecordRepository(db *gorm.DB) *GormIntegrationRecordRepository {
	return &GormIntegrationRecordRepository{db: db}
}

// ---------------------------------------------------------------------------
// IntegrationRecordReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a record by its ID
func (r *GormIntegrationRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.IntegrationRecord, error) {
	var model models.IntegrationRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds a record by its identity within a source
func (r *GormIntegrationRecordRepository) FindByExternalID(ctx context.Context, sourceID uuid.UUID, externalID string) (*integration.IntegrationRecord, error) {
	var model models.IntegrationRecordModel
	if err := r.db.WithContext(ctx).
		Where("source_id = ? AND external_id = ?", sourceID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns one page of records, most recently updated first unless the filter sorts otherwise
func (r *GormIntegrationRecordRepository) List(ctx context.Context, filter integration.RecordFilter) ([]integration.IntegrationRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationRecordModel{})

	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.EntityType != "" {
		query = query.Where("external_entity = ?", filter.EntityType)
	}
	if filter.SyncStatus != nil {
		query = query.Where("sync_status = ?", *filter.SyncStatus)
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		query = query.Where("LOWER(external_id) LIKE ? ESCAPE '\\' OR LOWER(title) LIKE ? ESCAPE '\\'", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var recordModels []models.IntegrationRecordModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order(orderClause(filter.OrderBy, filter.OrderDir, IntegrationRecordSortFields, "updated_at DESC, id ASC")).
		Find(&recordModels).Error; err != nil {
		return nil, 0, err
	}

	records := make([]integration.IntegrationRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, total, nil
}

// CountByStatus counts records by sync status
func (r *GormIntegrationRecordRepository) CountByStatus(ctx context.Context, sourceID *uuid.UUID) (integration.RecordCounts, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationRecordModel{})
	if sourceID != nil {
		query = query.Where("source_id = ?", *sourceID)
	}

	var rows []struct {
		SyncStatus string
		Count      int64
	}
	if err := query.Select("sync_status, COUNT(*) AS count").Group("sync_status").Scan(&rows).Error; err != nil {
		return integration.RecordCounts{}, err
	}

	var counts integration.RecordCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch integration.RecordSyncStatus(row.SyncStatus) {
		case integration.RecordSyncCompleted:
			counts.Synced += row.Count
		case integration.RecordSyncPending:
			counts.Pending += row.Count
		case integration.RecordSyncFailed:
			counts.Failed += row.Count
		}
	}
	return counts, nil
}

// CountByEntityType counts records per external entity
func (r *GormIntegrationRecordRepository) CountByEntityType(ctx context.Context, sourceID *uuid.UUID) (map[string]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationRecordModel{})
	if sourceID != nil {
		query = query.Where("source_id = ?", *sourceID)
	}

	var rows []struct {
		ExternalEntity string
		Count          int64
	}
	if err := query.Select("external_entity, COUNT(*) AS count").Group("external_entity").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ExternalEntity] = row.Count
	}
	return counts, nil
}

// CountBySource counts the records of one source
func (r *GormIntegrationRecordRepository) CountBySource(ctx context.Context, sourceID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.IntegrationRecordModel{}).
		Where("source_id = ?", sourceID).
		Count(&count).Error
	return count, err
}

// ---------------------------------------------------------------------------
// IntegrationRecordWriter implementation
// ---------------------------------------------------------------------------

// Upsert inserts the record or updates the existing one with the same
// (source, external id). The read and the write share one transaction so
// concurrent readers never see a half-applied record.
func (r *GormIntegrationRecordRepository) Upsert(ctx context.Context, input integration.RecordUpsert) (*integration.IntegrationRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	var result *integration.IntegrationRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.IntegrationRecordModel
		err := tx.Where("source_id = ? AND external_id = ?", input.SourceID, input.ExternalID).
			First(&existing).Error

		var record *integration.IntegrationRecord
		switch {
		case err == nil:
			record = existing.ToDomain()
		case errors.Is(err, gorm.ErrRecordNotFound):
			record, err = integration.NewIntegrationRecord(input.SourceID, input.ExternalID, input.ExternalEntity)
			if err != nil {
				return err
			}
		default:
			return err
		}

		input.ApplyTo(record, time.Now())

		model, err := models.IntegrationRecordModelFromDomain(record)
		if err != nil {
			return err
		}
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		result = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Ensure GormIntegrationRecordRepository implements IntegrationRecordRepository
var _ integration.IntegrationRecordRepository = (*GormIntegrationRecordRepository)(nil)
