package handler

import (
	"github.com/gin-gonic/gin"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
)

// MappingHandler serves field mappings
type MappingHandler struct {
	BaseHandler
	mappings *integrationapp.MappingService
}

// NewMappingHandler creates a new MappingHandler
func NewMappingHandler(mappings *integrationapp.MappingService) *MappingHandler {
	return &MappingHandler{mappings: mappings}
}

func mappingInput(req dto.MappingRequest) integrationapp.MappingInput {
	return integrationapp.MappingInput{
		ExternalEntity: req.ExternalEntity,
		ExternalField:  req.ExternalField,
		InternalField:  req.InternalField,
		TransformType:  integration.TransformType(req.TransformType),
		EnumValues:     req.EnumValues,
		DefaultValue:   req.DefaultValue,
		Required:       req.Required,
	}
}

// ListMappings handles GET /integration/sources/:id/mappings[?external_entity=]
func (h *MappingHandler) ListMappings(c *gin.Context) {
	sourceID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ListMappingsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	mappings, err := h.mappings.ListMappings(c.Request.Context(), sourceID, req.ExternalEntity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToMappingResponses(mappings))
}

// CreateMapping handles POST /integration/sources/:id/mappings
func (h *MappingHandler) CreateMapping(c *gin.Context) {
	sourceID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.MappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.mappings.CreateMapping(c.Request.Context(), sourceID, mappingInput(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, integrationapp.ToMappingResponse(mapping))
}

// GetMapping handles GET /integration/mappings/:id
func (h *MappingHandler) GetMapping(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	mapping, err := h.mappings.GetMapping(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToMappingResponse(mapping))
}

// UpdateMapping handles PUT /integration/mappings/:id.
// An edited mapping goes back to pending until validated again.
func (h *MappingHandler) UpdateMapping(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.MappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	mapping, err := h.mappings.UpdateMapping(c.Request.Context(), id, mappingInput(req))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToMappingResponse(mapping))
}

// DeleteMapping handles DELETE /integration/mappings/:id
func (h *MappingHandler) DeleteMapping(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.mappings.DeleteMapping(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ValidateMapping handles POST /integration/mappings/:id/validate
func (h *MappingHandler) ValidateMapping(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ValidateMappingRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.mappings.ValidateMapping(c.Request.Context(), id, req.Sample)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// SeedDefaultMappings handles POST /integration/sources/:id/mappings/defaults
func (h *MappingHandler) SeedDefaultMappings(c *gin.Context) {
	sourceID, ok := h.pathID(c)
	if !ok {
		return
	}

	result, err := h.mappings.SeedDefaultMappings(c.Request.Context(), sourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
