package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFieldMappingRepository implements FieldMappingRepository using GORM
type GormFieldMappingRepository struct {
	db *gorm.DB
}

// NewGormFieldMappingRepository creates a new GormFieldMappingRepository
func NewGormFieldMappingRepository(db *gorm.DB) *GormFieldMappingRepository {
	return &GormFieldMappingRepository{db: db}
}

// ---------------------------------------------------------------------------
// FieldMappingReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a mapping by its ID
func (r *GormFieldMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.FieldMapping, error) {
	var model models.FieldMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByScope returns the mappings of one (source, entity) scope
func (r *GormFieldMappingRepository) FindByScope(ctx context.Context, sourceID uuid.UUID, externalEntity string) ([]integration.FieldMapping, error) {
	var mappingModels []models.FieldMappingModel
	if err := r.db.WithContext(ctx).
		Where("source_id = ? AND external_entity = ?", sourceID, externalEntity).
		Where("status IN ?", []integration.MappingStatus{integration.MappingStatusPending, integration.MappingStatusValidated}).
		Order("created_at ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toMappingDomains(mappingModels), nil
}

// FindBySource lists a source's mappings, narrowed to one entity when externalEntity is set
func (r *GormFieldMappingRepository) FindBySource(ctx context.Context, sourceID uuid.UUID, externalEntity string) ([]integration.FieldMapping, error) {
	query := r.db.WithContext(ctx).Where("source_id = ?", sourceID)
	if externalEntity != "" {
		query = query.Where("external_entity = ?", externalEntity)
	}

	var mappingModels []models.FieldMappingModel
	if err := query.Order("external_entity ASC, created_at ASC").Find(&mappingModels).Error; err != nil {
		return nil, err
	}
	return toMappingDomains(mappingModels), nil
}

// ExistsByInternalField checks whether the scope already maps internalField
func (r *GormFieldMappingRepository) ExistsByInternalField(ctx context.Context, sourceID uuid.UUID, externalEntity, internalField string, excludeID *uuid.UUID) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.FieldMappingModel{}).
		Where("source_id = ? AND external_entity = ? AND internal_field = ?", sourceID, externalEntity, internalField)
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountByStatus counts mappings by validation status, for one source or all
func (r *GormFieldMappingRepository) CountByStatus(ctx context.Context, sourceID *uuid.UUID) (integration.MappingCounts, error) {
	query := r.db.WithContext(ctx).Model(&models.FieldMappingModel{})
	if sourceID != nil {
		query = query.Where("source_id = ?", *sourceID)
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return integration.MappingCounts{}, err
	}

	var counts integration.MappingCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch integration.MappingStatus(row.Status) {
		case integration.MappingStatusValidated:
			counts.Validated += row.Count
		case integration.MappingStatusPending:
			counts.Pending += row.Count
		}
	}
	return counts, nil
}

// StatsByScope returns mapping totals for every (source, entity) scope
func (r *GormFieldMappingRepository) StatsByScope(ctx context.Context) ([]integration.MappingScopeStats, error) {
	var rows []struct {
		SourceID       uuid.UUID
		ExternalEntity string
		Total          int64
		Pending        int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.FieldMappingModel{}).
		Select("source_id, external_entity, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending", integration.MappingStatusPending).
		Group("source_id, external_entity").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := make([]integration.MappingScopeStats, len(rows))
	for i, row := range rows {
		stats[i] = integration.MappingScopeStats{
			SourceID:       row.SourceID,
			ExternalEntity: row.ExternalEntity,
			Total:          row.Total,
			Pending:        row.Pending,
		}
	}
	return stats, nil
}

// ---------------------------------------------------------------------------
// FieldMappingWriter implementation
// ---------------------------------------------------------------------------

// Save creates or updates a mapping. The scope's unique index turns a
// concurrent duplicate into ErrMappingConflict.
func (r *GormFieldMappingRepository) Save(ctx context.Context, mapping *integration.FieldMapping) error {
	model := models.FieldMappingModelFromDomain(mapping)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return translateMappingError(err)
	}
	return nil
}

// SaveBatch creates or updates several mappings in one transaction
func (r *GormFieldMappingRepository) SaveBatch(ctx context.Context, mappings []*integration.FieldMapping) error {
	if len(mappings) == 0 {
		return nil
	}

	mappingModels := make([]*models.FieldMappingModel, len(mappings))
	for i, m := range mappings {
		mappingModels[i] = models.FieldMappingModelFromDomain(m)
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range mappingModels {
			if err := tx.Save(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return translateMappingError(err)
}

// Delete deletes a mapping
func (r *GormFieldMappingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.FieldMappingModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

func translateMappingError(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return integration.ErrMappingConflict
	}
	return err
}

func toMappingDomains(mappingModels []models.FieldMappingModel) []integration.FieldMapping {
	mappings := make([]integration.FieldMapping, len(mappingModels))
	for i := range mappingModels {
		mappings[i] = *mappingModels[i].ToDomain()
	}
	return mappings
}

// Ensure GormFieldMappingRepository implements FieldMappingRepository
var _ integration.FieldMappingRepository = (*GormFieldMappingRepository)(nil)
