package handler

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingHandler_CRUD(t *testing.T) {
	env := newHandlerEnv(t)
	src := env.source(t, "Trust ServiceNow", integration.SystemTypeServiceNow, true)
	base := "/integration/sources/" + src.ID.String() + "/mappings"

	w := env.do(http.MethodPost, base, map[string]any{
		"external_entity": "incident",
		"external_field":  "short_description",
		"internal_field":  "title",
		"transform_type":  "rename",
		"required":        true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created integrationapp.MappingResponse
	decodeData(t, w, &created)
	assert.Equal(t, src.ID, created.SourceID)
	assert.Equal(t, integration.MappingStatusPending, created.Status)

	t.Run("conflicting internal field", func(t *testing.T) {
		w := env.do(http.MethodPost, base, map[string]any{
			"external_entity": "incident",
			"external_field":  "description",
			"internal_field":  "title",
			"transform_type":  "rename",
		})
		requireError(t, w, http.StatusConflict, integration.CodeMappingConflict)
	})

	t.Run("domain validation", func(t *testing.T) {
		w := env.do(http.MethodPost, base, map[string]any{
			"external_entity": "incident",
			"external_field":  "state",
			"internal_field":  "status",
			"transform_type":  "enum_translate",
		})
		requireError(t, w, http.StatusBadRequest, dto.ErrCodeInvalidInput)
	})

	t.Run("binding validation", func(t *testing.T) {
		w := env.do(http.MethodPost, base, map[string]any{
			"external_entity": "incident",
			"internal_field":  "status",
			"transform_type":  "uppercase",
		})
		requireError(t, w, http.StatusBadRequest, dto.ErrCodeInvalidInput)
	})

	t.Run("list and filter", func(t *testing.T) {
		env.mapping(t, src.ID, integration.FieldMappingSpec{
			ExternalEntity: "change_request", ExternalField: "short_description", InternalField: "title",
		})

		w := env.do(http.MethodGet, base, nil)
		var all []integrationapp.MappingResponse
		decodeData(t, w, &all)
		assert.Len(t, all, 2)

		w = env.do(http.MethodGet, base+"?external_entity=incident", nil)
		var incidents []integrationapp.MappingResponse
		decodeData(t, w, &incidents)
		require.Len(t, incidents, 1)
		assert.Equal(t, created.ID, incidents[0].ID)
	})

	t.Run("get, update and delete", func(t *testing.T) {
		path := "/integration/mappings/" + created.ID.String()

		w := env.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.do(http.MethodPut, path, map[string]any{
			"external_entity": "incident",
			"internal_field":  "title",
			"transform_type":  "constant_default",
			"default_value":   "Unlabelled request",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var updated integrationapp.MappingResponse
		decodeData(t, w, &updated)
		assert.Equal(t, integration.TransformConstantDefault, updated.TransformType)
		require.NotNil(t, updated.DefaultValue)
		assert.Equal(t, "Unlabelled request", *updated.DefaultValue)

		w = env.do(http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = env.do(http.MethodGet, path, nil)
		requireError(t, w, http.StatusNotFound, integration.CodeMappingNotFound)
	})

	t.Run("unknown source", func(t *testing.T) {
		w := env.do(http.MethodGet, "/integration/sources/"+uuid.NewString()+"/mappings", nil)
		requireError(t, w, http.StatusNotFound, integration.CodeSourceNotFound)
	})
}

func TestMappingHandler_ValidateMapping(t *testing.T) {
	env := newHandlerEnv(t)
	src := env.source(t, "Trust ServiceNow", integration.SystemTypeServiceNow, true)
	m := env.mapping(t, src.ID, integration.FieldMappingSpec{
		ExternalEntity: "incident",
		ExternalField:  "state",
		InternalField:  "status",
		TransformType:  integration.TransformEnumTranslate,
		EnumValues:     map[string]string{"1": "new", "6": "resolved"},
	})
	path := "/integration/mappings/" + m.ID.String() + "/validate"

	w := env.do(http.MethodPost, path, map[string]any{"sample": map[string]any{"state": "9"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rejected integrationapp.ValidateMappingResult
	decodeData(t, w, &rejected)
	assert.False(t, rejected.Valid)
	assert.NotEmpty(t, rejected.Errors)
	assert.Equal(t, integration.MappingStatusPending, rejected.Mapping.Status)

	w = env.do(http.MethodPost, path, map[string]any{"sample": map[string]any{"state": "6"}})
	require.Equal(t, http.StatusOK, w.Code)
	var accepted integrationapp.ValidateMappingResult
	decodeData(t, w, &accepted)
	assert.True(t, accepted.Valid)
	assert.Equal(t, "resolved", accepted.Output["status"])
	assert.Equal(t, integration.MappingStatusValidated, accepted.Mapping.Status)

	w = env.do(http.MethodPost, path, map[string]any{})
	requireError(t, w, http.StatusBadRequest, dto.ErrCodeInvalidInput)

	w = env.do(http.MethodPost, "/integration/mappings/"+uuid.NewString()+"/validate", map[string]any{"sample": map[string]any{}})
	requireError(t, w, http.StatusNotFound, integration.CodeMappingNotFound)
}

func TestMappingHandler_SeedDefaultMappings(t *testing.T) {
	env := newHandlerEnv(t)
	src := env.source(t, "Trust ServiceNow", integration.SystemTypeServiceNow, true)
	templates := integrationapp.DefaultMappingTemplates(integration.SystemTypeServiceNow)
	require.NotEmpty(t, templates)

	path := "/integration/sources/" + src.ID.String() + "/mappings/defaults"
	w := env.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first integrationapp.SeedMappingsResult
	decodeData(t, w, &first)
	assert.Len(t, first.Created, len(templates))
	assert.Zero(t, first.Skipped)

	w = env.do(http.MethodPost, path, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var second integrationapp.SeedMappingsResult
	decodeData(t, w, &second)
	assert.Empty(t, second.Created)
	assert.Equal(t, len(templates), second.Skipped)
}
