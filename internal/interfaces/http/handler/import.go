package handler

import (
	"github.com/gin-gonic/gin"
	integrationapp "github.com/staffhub/backend/internal/application/integration"
	"github.com/staffhub/backend/internal/interfaces/http/dto"
)

// ImportHandler accepts operator-entered records and CSV uploads
type ImportHandler struct {
	BaseHandler
	imports *integrationapp.ImportService
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(imports *integrationapp.ImportService) *ImportHandler {
	return &ImportHandler{imports: imports}
}

// ImportManual handles POST /integration/sources/:id/records/manual
func (h *ImportHandler) ImportManual(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ManualRecordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.imports.ImportManual(c.Request.Context(), id, integrationapp.ManualRecordInput{
		ExternalID:  req.ExternalID,
		EntityType:  req.EntityType,
		Title:       req.Title,
		Description: req.Description,
		Data:        req.Data,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}

// ImportCSV handles POST /integration/sources/:id/records/import (multipart).
// Row problems are reported in the result; the request itself succeeds.
func (h *ImportHandler) ImportCSV(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dto.ImportCSVRequest
	if err := c.ShouldBind(&req); err != nil {
		h.ValidationError(c, err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.BadRequest(c, "A CSV file is required in the 'file' field")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.BadRequest(c, "Uploaded file could not be read")
		return
	}
	defer file.Close()

	result, err := h.imports.ImportCSV(c.Request.Context(), id, integrationapp.ImportCSVInput{
		EntityType:     req.EntityType,
		IdentityColumn: req.IdentityColumn,
		FileName:       fileHeader.Filename,
		Reader:         file,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
