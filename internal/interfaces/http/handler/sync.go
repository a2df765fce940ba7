package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
)

// SyncHandler triggers sync runs and exposes their history
type SyncHandler struct {
	BaseHandler
	syncs *integrationapp.SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(syncs *integrationapp.SyncService) *SyncHandler {
	return &SyncHandler{syncs: syncs}
}

// TriggerSync handles POST /integration/sources/:id/sync.
// The run executes on the worker pool; clients poll GET /integration/runs/:id.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req dto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.ValidationError(c, err)
		return
	}

	run, err := h.syncs.TriggerSync(c.Request.Context(), id, req.Type())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, dto.TriggerSyncResponse{RunID: run.ID, Status: run.Status})
}

// ListRuns handles GET /integration/sources/:id/runs
func (h *SyncHandler) ListRuns(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ListRunsRequest
	if !h.bindQuery(c, &req) {
		return
	}

	filter := req.Filter(id)
	runs, total, err := h.syncs.ListRuns(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, integrationapp.ToSyncRunResponses(runs), total, filter.Page, filter.PageSize)
}

// GetRun handles GET /integration/runs/:id
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	run, err := h.syncs.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToSyncRunResponse(run))
}

// CancelRun handles POST /integration/runs/:id/cancel.
// The run stops at its next record checkpoint and ends as partial.
func (h *SyncHandler) CancelRun(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.syncs.CancelRun(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, gin.H{"run_id": id, "cancel_requested": true})
}
