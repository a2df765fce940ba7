package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldMapping(t *testing.T) {
	sourceID := uuid.New()

	t.Run("Rename is the default transform", func(t *testing.T) {
		m, err := NewFieldMapping(sourceID, FieldMappingSpec{
			ExternalEntity: " incident ",
			ExternalField:  "short_description",
			InternalField:  "title",
			Required:       true,
		})
		require.NoError(t, err)
		assert.Equal(t, "incident", m.ExternalEntity)
		assert.Equal(t, TransformRename, m.TransformType)
		assert.Equal(t, MappingStatusPending, m.Status)
		assert.True(t, m.Required)
		assert.False(t, m.IsValidated())
	})

	t.Run("Constant default needs no external field", func(t *testing.T) {
		m, err := NewFieldMapping(sourceID, FieldMappingSpec{
			ExternalEntity: "incident",
			InternalField:  "origin",
			TransformType:  TransformConstantDefault,
			DefaultValue:   strPtr("servicenow"),
		})
		require.NoError(t, err)
		assert.Empty(t, m.ExternalField)
	})

	tests := []struct {
		name string
		spec FieldMappingSpec
		err  error
	}{
		{"missing entity", FieldMappingSpec{ExternalField: "a", InternalField: "b"}, ErrMappingEntityRequired},
		{"missing internal field", FieldMappingSpec{ExternalEntity: "e", ExternalField: "a"}, ErrMappingInternalFieldRequired},
		{"missing external field", FieldMappingSpec{ExternalEntity: "e", InternalField: "b"}, ErrMappingExternalFieldRequired},
		{"unknown transform", FieldMappingSpec{ExternalEntity: "e", ExternalField: "a", InternalField: "b", TransformType: "uppercase"}, ErrMappingInvalidTransform},
		{"enum without values", FieldMappingSpec{ExternalEntity: "e", ExternalField: "a", InternalField: "b", TransformType: TransformEnumTranslate}, ErrMappingEnumValuesRequired},
		{"constant without default", FieldMappingSpec{ExternalEntity: "e", InternalField: "b", TransformType: TransformConstantDefault}, ErrMappingDefaultRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFieldMapping(sourceID, tt.spec)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	t.Run("Nil source", func(t *testing.T) {
		_, err := NewFieldMapping(uuid.Nil, FieldMappingSpec{ExternalEntity: "e", ExternalField: "a", InternalField: "b"})
		assert.ErrorIs(t, err, ErrSourceIDRequired)
	})
}

func TestFieldMapping_UpdateResetsValidation(t *testing.T) {
	m, err := NewFieldMapping(uuid.New(), FieldMappingSpec{
		ExternalEntity: "incident",
		ExternalField:  "state",
		InternalField:  "status",
		TransformType:  TransformEnumTranslate,
		EnumValues:     map[string]string{"1": "open"},
	})
	require.NoError(t, err)

	m.MarkValidated()
	assert.True(t, m.IsValidated())
	assert.NotNil(t, m.ValidatedAt)

	values := map[string]string{"1": "open", "7": "closed"}
	require.NoError(t, m.Update(FieldMappingSpec{
		ExternalEntity: "incident",
		ExternalField:  "state",
		InternalField:  "status",
		TransformType:  TransformEnumTranslate,
		EnumValues:     values,
	}))
	assert.Equal(t, MappingStatusPending, m.Status)
	assert.Nil(t, m.ValidatedAt)
	assert.Len(t, m.EnumValues, 2)

	// the mapping keeps its own copy of the enum table
	values["9"] = "other"
	assert.Len(t, m.EnumValues, 2)
}

func TestFieldMapping_ConflictsWith(t *testing.T) {
	sourceID := uuid.New()
	spec := FieldMappingSpec{ExternalEntity: "incident", ExternalField: "short_description", InternalField: "title"}

	a, err := NewFieldMapping(sourceID, spec)
	require.NoError(t, err)

	b, err := NewFieldMapping(sourceID, FieldMappingSpec{ExternalEntity: "incident", ExternalField: "description", InternalField: "title"})
	require.NoError(t, err)
	assert.True(t, a.ConflictsWith(b), "same scope and internal field")
	assert.False(t, a.ConflictsWith(a), "a mapping never conflicts with itself")

	otherEntity, err := NewFieldMapping(sourceID, FieldMappingSpec{ExternalEntity: "problem", ExternalField: "short_description", InternalField: "title"})
	require.NoError(t, err)
	assert.False(t, a.ConflictsWith(otherEntity))

	otherSource, err := NewFieldMapping(uuid.New(), spec)
	require.NoError(t, err)
	assert.False(t, a.ConflictsWith(otherSource))

	found := b.FindConflict([]FieldMapping{*otherEntity, *a})
	require.NotNil(t, found)
	assert.Equal(t, a.ID, found.ID)
	assert.Nil(t, otherEntity.FindConflict([]FieldMapping{*a, *b}))
}
