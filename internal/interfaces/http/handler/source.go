package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
)

// IntegrationSourceHandler serves sources, their records and the dashboard
type IntegrationSourceHandler struct {
	BaseHandler
	sources   *integrationapp.SourceService
	dashboard *integrationapp.DashboardService
}

// NewIntegrationSourceHandler creates a new IntegrationSourceHandler
func NewIntegrationSourceHandler(sources *integrationapp.SourceService, dashboard *integrationapp.DashboardService) *IntegrationSourceHandler {
	return &IntegrationSourceHandler{
		sources:   sources,
		dashboard: dashboard,
	}
}

// ListSources handles GET /integration/sources
func (h *IntegrationSourceHandler) ListSources(c *gin.Context) {
	var req dto.ListSourcesRequest
	if !h.bindQuery(c, &req) {
		return
	}

	filter := req.Filter()
	sources, total, err := h.sources.ListSources(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, integrationapp.ToSourceResponses(sources), total, filter.Page, filter.PageSize)
}

// CreateSource handles POST /integration/sources
func (h *IntegrationSourceHandler) CreateSource(c *gin.Context) {
	var req dto.CreateSourceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	source, err := h.sources.CreateSource(c.Request.Context(), integrationapp.CreateSourceInput{
		Name:        req.Name,
		SystemType:  integration.SystemType(req.SystemType),
		Description: req.Description,
		APIURL:      req.APIURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, integrationapp.ToSourceResponse(source))
}

// GetSource handles GET /integration/sources/:id
func (h *IntegrationSourceHandler) GetSource(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	source, err := h.sources.GetSource(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToSourceResponse(source))
}

// UpdateSource handles PUT /integration/sources/:id
func (h *IntegrationSourceHandler) UpdateSource(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.UpdateSourceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	source, err := h.sources.UpdateSource(c.Request.Context(), id, integrationapp.UpdateSourceInput{
		Name:        req.Name,
		SystemType:  integration.SystemType(req.SystemType),
		Description: req.Description,
		APIURL:      req.APIURL,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToSourceResponse(source))
}

// ActivateSource handles POST /integration/sources/:id/activate
func (h *IntegrationSourceHandler) ActivateSource(c *gin.Context) {
	h.transition(c, h.sources.ActivateSource)
}

// DisableSource handles POST /integration/sources/:id/disable
func (h *IntegrationSourceHandler) DisableSource(c *gin.Context) {
	h.transition(c, h.sources.DisableSource)
}

func (h *IntegrationSourceHandler) transition(
	c *gin.Context,
	apply func(ctx context.Context, id uuid.UUID) (*integration.IntegrationSource, error),
) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	source, err := apply(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToSourceResponse(source))
}

// DeleteSource handles DELETE /integration/sources/:id[?cascade=true]
func (h *IntegrationSourceHandler) DeleteSource(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.DeleteSourceRequest
	if !h.bindQuery(c, &req) {
		return
	}

	if err := h.sources.DeleteSource(c.Request.Context(), id, req.Cascade); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ListRecords handles GET /integration/sources/:id/records
func (h *IntegrationSourceHandler) ListRecords(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ListRecordsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	filter := req.Filter(id)
	records, total, err := h.sources.ListRecords(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, dto.RecordListResponse{
		Records: integrationapp.ToRecordResponses(records),
		Total:   total,
	}, total, filter.Page, filter.PageSize)
}

// GetRecord handles GET /integration/records/:id
func (h *IntegrationSourceHandler) GetRecord(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	record, err := h.sources.GetRecord(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToRecordResponse(record))
}

// GetDashboard handles GET /integration/dashboard[?source_id=]
func (h *IntegrationSourceHandler) GetDashboard(c *gin.Context) {
	var req dto.DashboardRequest
	if !h.bindQuery(c, &req) {
		return
	}

	var sourceID *uuid.UUID
	if req.SourceID != "" {
		id, err := uuid.Parse(req.SourceID)
		if err != nil {
			h.BadRequest(c, "Invalid source_id format")
			return
		}
		sourceID = &id
	}

	dashboard, err := h.dashboard.GetDashboard(c.Request.Context(), sourceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dashboard)
}
