package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TransformType is how an external value becomes an internal value
type TransformType string

const (
	// TransformRename copies the external value unchanged under the internal name
	TransformRename TransformType = "rename"
	// TransformEnumTranslate maps the external value through EnumValues
	TransformEnumTranslate TransformType = "enum_translate"
	// TransformConstantDefault always writes DefaultValue
	TransformConstantDefault TransformType = "constant_default"
)

// IsValid checks if the transform type is supported
func (t TransformType) IsValid() bool {
	switch t {
	case TransformRename, TransformEnumTranslate, TransformConstantDefault:
		return true
	}
	return false
}

// MappingStatus tracks whether a mapping has been checked against sample data
type MappingStatus string

const (
	MappingStatusPending   MappingStatus = "pending"
	MappingStatusValidated MappingStatus = "validated"
)

// ---------------------------------------------------------------------------
// FieldMapping Entity
// ---------------------------------------------------------------------------

// FieldMapping maps one external field to one internal field.
// Mappings are scoped per (SourceID, ExternalEntity) and no two mappings in a
// scope may share an InternalField.
type FieldMapping struct {
	ID             uuid.UUID
	SourceID       uuid.UUID
	ExternalEntity string
	// ExternalField is a dotted path into the raw payload, e.g. "fields.summary"
	ExternalField string
	InternalField string
	TransformType TransformType
	// EnumValues maps external values to internal values for enum_translate
	EnumValues map[string]string
	// DefaultValue is written when the external field is missing
	DefaultValue *string
	// Required mappings fail the whole record when they cannot produce a value
	Required    bool
	Status      MappingStatus
	ValidatedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FieldMappingSpec holds the operator-editable parts of a mapping
type FieldMappingSpec struct {
	ExternalEntity string
	ExternalField  string
	InternalField  string
	TransformType  TransformType
	EnumValues     map[string]string
	DefaultValue   *string
	Required       bool
}

func (s *FieldMappingSpec) normalize() error {
	s.ExternalEntity = strings.TrimSpace(s.ExternalEntity)
	s.ExternalField = strings.TrimSpace(s.ExternalField)
	s.InternalField = strings.TrimSpace(s.InternalField)
	if s.TransformType == "" {
		s.TransformType = TransformRename
	}

	if s.ExternalEntity == "" {
		return ErrMappingEntityRequired
	}
	if s.InternalField == "" {
		return ErrMappingInternalFieldRequired
	}
	if !s.TransformType.IsValid() {
		return ErrMappingInvalidTransform
	}

	switch s.TransformType {
	case TransformConstantDefault:
		if s.DefaultValue == nil {
			return ErrMappingDefaultRequired
		}
	case TransformEnumTranslate:
		if len(s.EnumValues) == 0 {
			return ErrMappingEnumValuesRequired
		}
		if s.ExternalField == "" {
			return ErrMappingExternalFieldRequired
		}
	default:
		if s.ExternalField == "" {
			return ErrMappingExternalFieldRequired
		}
	}
	return nil
}

// NewFieldMapping creates a pending mapping for a source
func NewFieldMapping(sourceID uuid.UUID, spec FieldMappingSpec) (*FieldMapping, error) {
	if sourceID == uuid.Nil {
		return nil, ErrSourceIDRequired
	}
	if err := spec.normalize(); err != nil {
		return nil, err
	}

	now := time.Now()
	m := &FieldMapping{
		ID:        uuid.New(),
		SourceID:  sourceID,
		Status:    MappingStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.apply(spec)
	return m, nil
}

// Update replaces the mapping rule. An edited mapping must be validated again.
func (m *FieldMapping) Update(spec FieldMappingSpec) error {
	if err := spec.normalize(); err != nil {
		return err
	}
	m.apply(spec)
	m.Status = MappingStatusPending
	m.ValidatedAt = nil
	m.UpdatedAt = time.Now()
	return nil
}

func (m *FieldMapping) apply(spec FieldMappingSpec) {
	m.ExternalEntity = spec.ExternalEntity
	m.ExternalField = spec.ExternalField
	m.InternalField = spec.InternalField
	m.TransformType = spec.TransformType
	m.Required = spec.Required
	m.DefaultValue = spec.DefaultValue

	m.EnumValues = nil
	if len(spec.EnumValues) > 0 {
		m.EnumValues = make(map[string]string, len(spec.EnumValues))
		for k, v := range spec.EnumValues {
			m.EnumValues[k] = v
		}
	}
}

// MarkValidated records that a sample transform succeeded
func (m *FieldMapping) MarkValidated() {
	now := time.Now()
	m.Status = MappingStatusValidated
	m.ValidatedAt = &now
	m.UpdatedAt = now
}

// IsValidated returns true once a sample transform has succeeded
func (m *FieldMapping) IsValidated() bool {
	return m.Status == MappingStatusValidated
}

// ConflictsWith reports whether both mappings target the same internal field in the same scope
func (m *FieldMapping) ConflictsWith(other *FieldMapping) bool {
	return m.ID != other.ID &&
		m.SourceID == other.SourceID &&
		m.ExternalEntity == other.ExternalEntity &&
		m.InternalField == other.InternalField
}

// FindConflict returns the first mapping in the set that conflicts with m, if any
func (m *FieldMapping) FindConflict(existing []FieldMapping) *FieldMapping {
	for i := range existing {
		if m.ConflictsWith(&existing[i]) {
			return &existing[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// MappingCounts summarizes mapping completeness
type MappingCounts struct {
	Total     int64
	Validated int64
	Pending   int64
}

// MappingScopeStats are the mapping counts of one (source, entity) scope
type MappingScopeStats struct {
	SourceID       uuid.UUID
	ExternalEntity string
	Total          int64
	Pending        int64
}

// FieldMappingFinder is the read-only lookup used by the mapping engine
type FieldMappingFinder interface {
	// FindByScope returns every pending and validated mapping for the scope
	FindByScope(ctx context.Context, sourceID uuid.UUID, externalEntity string) ([]FieldMapping, error)
}

// FieldMappingReader provides read access to mappings
type FieldMappingReader interface {
	FieldMappingFinder
	FindByID(ctx context.Context, id uuid.UUID) (*FieldMapping, error)
	// FindBySource lists the mappings of a source, optionally narrowed to one entity
	FindBySource(ctx context.Context, sourceID uuid.UUID, externalEntity string) ([]FieldMapping, error)
	// ExistsByInternalField checks the scope for a mapping targeting internalField, ignoring excludeID
	ExistsByInternalField(ctx context.Context, sourceID uuid.UUID, externalEntity, internalField string, excludeID *uuid.UUID) (bool, error)
	CountByStatus(ctx context.Context, sourceID *uuid.UUID) (MappingCounts, error)
	StatsByScope(ctx context.Context) ([]MappingScopeStats, error)
}

// FieldMappingWriter provides write access to mappings
type FieldMappingWriter interface {
	// Save returns ErrMappingConflict when the scope already has a mapping for the internal field
	Save(ctx context.Context, mapping *FieldMapping) error
	SaveBatch(ctx context.Context, mappings []*FieldMapping) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FieldMappingRepository combines reader and writer
type FieldMappingRepository interface {
	FieldMappingReader
	FieldMappingWriter
}
