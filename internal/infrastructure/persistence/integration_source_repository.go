package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIntegrationSourceRepository implements IntegrationSourceRepository using GORM
type GormIntegrationSourceRepository struct {
	db *gorm.DB
}

// NewGormIntegrationSourceRepository creates a new GormIntegrationSourceRepository
func NewGormIntegrationSourceRepository(db *gorm.DB) *GormIntegrationSourceRepository {
	return &GormIntegrationSourceRepository{db: db}
}

// ---------------------------------------------------------------------------
// IntegrationSourceReader implementation
// ---------------------------------------------------------------------------

// FindByID finds a source by its ID
func (r *GormIntegrationSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.IntegrationSource, error) {
	var model models.IntegrationSourceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSourceNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns one page of sources matching the filter and the total match count
func (r *GormIntegrationSourceRepository) List(ctx context.Context, filter integration.SourceFilter) ([]integration.IntegrationSource, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.IntegrationSourceModel{})

	if filter.SystemType != nil {
		query = query.Where("system_type = ?", *filter.SystemType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		query = query.Where("LOWER(name) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\'", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sourceModels []models.IntegrationSourceModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order(orderClause(filter.OrderBy, filter.OrderDir, IntegrationSourceSortFields, "created_at ASC")).
		Find(&sourceModels).Error; err != nil {
		return nil, 0, err
	}

	return toSourceDomains(sourceModels), total, nil
}

// ListActive returns every active source
func (r *GormIntegrationSourceRepository) ListActive(ctx context.Context) ([]integration.IntegrationSource, error) {
	var sourceModels []models.IntegrationSourceModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", integration.SourceStatusActive).
		Order("created_at ASC").
		Find(&sourceModels).Error; err != nil {
		return nil, err
	}
	return toSourceDomains(sourceModels), nil
}

// CountBySystemType counts total and active sources per system type
func (r *GormIntegrationSourceRepository) CountBySystemType(ctx context.Context) ([]integration.SystemTypeCount, error) {
	var rows []struct {
		SystemType string
		Total      int64
		Active     int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.IntegrationSourceModel{}).
		Select("system_type, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS active", integration.SourceStatusActive).
		Group("system_type").
		Order("system_type ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make([]integration.SystemTypeCount, len(rows))
	for i, row := range rows {
		counts[i] = integration.SystemTypeCount{
			SystemType: integration.SystemType(row.SystemType),
			Total:      row.Total,
			Active:     row.Active,
		}
	}
	return counts, nil
}

// ---------------------------------------------------------------------------
// IntegrationSourceWriter implementation
// ---------------------------------------------------------------------------

// Save creates or updates a source
func (r *GormIntegrationSourceRepository) Save(ctx context.Context, source *integration.IntegrationSource) error {
	model := models.IntegrationSourceModelFromDomain(source)
	return r.db.WithContext(ctx).Save(model).Error
}

// DeleteCascade removes the source and everything it owns in one transaction
func (r *GormIntegrationSourceRepository) DeleteCascade(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.IntegrationRecordModel{}, "source_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.SyncRunModel{}, "source_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.FieldMappingModel{}, "source_id = ?", id).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.IntegrationSourceModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return integration.ErrSourceNotFound
		}
		return nil
	})
}

func toSourceDomains(sourceModels []models.IntegrationSourceModel) []integration.IntegrationSource {
	sources := make([]integration.IntegrationSource, len(sourceModels))
	for i := range sourceModels {
		sources[i] = *sourceModels[i].ToDomain()
	}
	return sources
}

// Ensure GormIntegrationSourceRepository implements IntegrationSourceRepository
var _ integration.IntegrationSourceRepository = (*GormIntegrationSourceRepository)(nil)
