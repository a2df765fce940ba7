package integration

import (
	"context"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// MappingErrNoSampleValue marks a sample that produced no value for an optional mapping
const MappingErrNoSampleValue = "NO_SAMPLE_VALUE"

// MappingService manages the field mappings of integration sources
type MappingService struct {
	sources  integration.IntegrationSourceReader
	mappings integration.FieldMappingRepository
	logger   *zap.Logger
}

// NewMappingService creates a new MappingService
func NewMappingService(
	sources integration.IntegrationSourceReader,
	mappings integration.FieldMappingRepository,
	logger *zap.Logger,
) *MappingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingService{
		sources:  sources,
		mappings: mappings,
		logger:   logger,
	}
}

// ---------------------------------------------------------------------------
// CRUD Operations
// ---------------------------------------------------------------------------

// ListMappings lists the mappings of a source, optionally for one entity type
func (s *MappingService) ListMappings(ctx context.Context, sourceID uuid.UUID, externalEntity string) ([]integration.FieldMapping, error) {
	if _, err := s.sources.FindByID(ctx, sourceID); err != nil {
		return nil, err
	}
	return s.mappings.FindBySource(ctx, sourceID, externalEntity)
}

// GetMapping returns one mapping
func (s *MappingService) GetMapping(ctx context.Context, id uuid.UUID) (*integration.FieldMapping, error) {
	return s.mappings.FindByID(ctx, id)
}

// CreateMapping adds a pending mapping to a source
func (s *MappingService) CreateMapping(ctx context.Context, sourceID uuid.UUID, input MappingInput) (*integration.FieldMapping, error) {
	if _, err := s.sources.FindByID(ctx, sourceID); err != nil {
		return nil, err
	}

	mapping, err := integration.NewFieldMapping(sourceID, input.spec())
	if err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, mapping, nil); err != nil {
		return nil, err
	}
	if err := s.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}

	s.logger.Info("field mapping created",
		zap.String("source_id", sourceID.String()),
		zap.String("mapping_id", mapping.ID.String()),
		zap.String("external_entity", mapping.ExternalEntity),
		zap.String("internal_field", mapping.InternalField))
	return mapping, nil
}

// UpdateMapping replaces the rule of a mapping. It returns to pending.
func (s *MappingService) UpdateMapping(ctx context.Context, id uuid.UUID, input MappingInput) (*integration.FieldMapping, error) {
	mapping, err := s.mappings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mapping.Update(input.spec()); err != nil {
		return nil, err
	}
	if err := s.checkConflict(ctx, mapping, &mapping.ID); err != nil {
		return nil, err
	}
	if err := s.mappings.Save(ctx, mapping); err != nil {
		return nil, err
	}
	return mapping, nil
}

// DeleteMapping removes a mapping
func (s *MappingService) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	mapping, err := s.mappings.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.mappings.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("field mapping deleted",
		zap.String("source_id", mapping.SourceID.String()),
		zap.String("mapping_id", id.String()))
	return nil
}

func (s *MappingService) checkConflict(ctx context.Context, mapping *integration.FieldMapping, excludeID *uuid.UUID) error {
	exists, err := s.mappings.ExistsByInternalField(ctx, mapping.SourceID, mapping.ExternalEntity, mapping.InternalField, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return integration.ErrMappingConflict
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ValidateMapping runs one mapping over sample data. A mapping that produces
// its internal field without errors is marked validated.
func (s *MappingService) ValidateMapping(ctx context.Context, id uuid.UUID, sample map[string]any) (*ValidateMappingResult, error) {
	mapping, err := s.mappings.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := Apply([]integration.FieldMapping{*mapping}, sample)
	errs := result.Errors
	if _, ok := result.MappedData[mapping.InternalField]; !ok && len(errs) == 0 {
		errs = append(errs, MappingError{
			InternalField: mapping.InternalField,
			ExternalField: mapping.ExternalField,
			Code:          MappingErrNoSampleValue,
			Message:       "sample data has no value for " + mapping.ExternalField,
			Required:      mapping.Required,
		})
	}

	valid := len(errs) == 0
	if valid {
		mapping.MarkValidated()
		if err := s.mappings.Save(ctx, mapping); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("field mapping validated against sample",
		zap.String("mapping_id", id.String()),
		zap.Bool("valid", valid))

	return &ValidateMappingResult{
		Valid:   valid,
		Output:  result.MappedData,
		Errors:  errs,
		Mapping: ToMappingResponse(mapping),
	}, nil
}

// ---------------------------------------------------------------------------
// Default templates
// ---------------------------------------------------------------------------

// SeedDefaultMappings creates the template mappings of the source's system type.
// Templates whose internal field is already mapped in the scope are skipped.
func (s *MappingService) SeedDefaultMappings(ctx context.Context, sourceID uuid.UUID) (*SeedMappingsResult, error) {
	source, err := s.sources.FindByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	existing, err := s.mappings.FindBySource(ctx, sourceID, "")
	if err != nil {
		return nil, err
	}

	result := &SeedMappingsResult{Created: []MappingResponse{}}
	var created []*integration.FieldMapping
	for _, spec := range DefaultMappingTemplates(source.SystemType) {
		mapping, err := integration.NewFieldMapping(sourceID, spec)
		if err != nil {
			return nil, err
		}
		if mapping.FindConflict(existing) != nil {
			result.Skipped++
			continue
		}
		existing = append(existing, *mapping)
		created = append(created, mapping)
	}

	if len(created) > 0 {
		if err := s.mappings.SaveBatch(ctx, created); err != nil {
			return nil, err
		}
	}
	for _, m := range created {
		result.Created = append(result.Created, ToMappingResponse(m))
	}

	s.logger.Info("default field mappings seeded",
		zap.String("source_id", sourceID.String()),
		zap.String("system_type", string(source.SystemType)),
		zap.Int("created", len(created)),
		zap.Int("skipped", result.Skipped))
	return result, nil
}
