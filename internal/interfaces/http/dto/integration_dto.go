package dto

import (
	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
)

// CreateSourceRequest is the body of POST /integration/sources
type CreateSourceRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	SystemType  string  `json:"system_type" binding:"required,systemtype"`
	Description string  `json:"description" binding:"max=2000"`
	APIURL      *string `json:"api_url" binding:"omitempty,url"`
}

// UpdateSourceRequest is the body of PUT /integration/sources/:id.
// SystemType may be omitted; a different value is rejected as immutable.
type UpdateSourceRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	SystemType  string  `json:"system_type" binding:"omitempty,systemtype"`
	Description string  `json:"description" binding:"max=2000"`
	APIURL      *string `json:"api_url" binding:"omitempty,url"`
}

// ListSourcesRequest holds the query of GET /integration/sources
type ListSourcesRequest struct {
	SystemType string `form:"system_type" binding:"omitempty,systemtype"`
	Status     string `form:"status" binding:"omitempty,oneof=draft active disabled"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search     string `form:"search" binding:"max=200"`
}

// Filter converts the query into a repository filter
func (r ListSourcesRequest) Filter() integration.SourceFilter {
	list := ListRequest{Page: r.Page, PageSize: r.PageSize}
	list.Normalize()

	filter := integration.SourceFilter{
		Search:   r.Search,
		OrderBy:  r.OrderBy,
		OrderDir: r.OrderDir,
		Page:     list.Page,
		PageSize: list.PageSize,
	}
	if r.SystemType != "" {
		st := integration.SystemType(r.SystemType)
		filter.SystemType = &st
	}
	if r.Status != "" {
		status := integration.SourceStatus(r.Status)
		filter.Status = &status
	}
	return filter
}

// DeleteSourceRequest holds the query of DELETE /integration/sources/:id
type DeleteSourceRequest struct {
	Cascade bool `form:"cascade"`
}

// DashboardRequest holds the query of GET /integration/dashboard
type DashboardRequest struct {
	SourceID string `form:"source_id" binding:"omitempty,uuid"`
}

// ListRecordsRequest holds the query of GET /integration/sources/:id/records
type ListRecordsRequest struct {
	EntityType string `form:"entity_type" binding:"max=100"`
	SyncStatus string `form:"sync_status" binding:"omitempty,oneof=pending completed failed"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir" binding:"omitempty,oneof=asc desc ASC DESC"`
	Search     string `form:"search" binding:"max=200"`
}

// Filter converts the query into a repository filter scoped to sourceID
func (r ListRecordsRequest) Filter(sourceID uuid.UUID) integration.RecordFilter {
	list := ListRequest{Page: r.Page, PageSize: r.PageSize}
	list.Normalize()

	filter := integration.RecordFilter{
		SourceID:   &sourceID,
		EntityType: r.EntityType,
		Search:     r.Search,
		OrderBy:    r.OrderBy,
		OrderDir:   r.OrderDir,
		Page:       list.Page,
		PageSize:   list.PageSize,
	}
	if r.SyncStatus != "" {
		status := integration.RecordSyncStatus(r.SyncStatus)
		filter.SyncStatus = &status
	}
	return filter
}

// RecordListResponse is the data of a record list
type RecordListResponse struct {
	Records any   `json:"records"`
	Total   int64 `json:"total"`
}

// TriggerSyncRequest is the body of POST /integration/sources/:id/sync.
// An omitted sync type means incremental.
type TriggerSyncRequest struct {
	SyncType string `json:"sync_type" binding:"omitempty,max=20"`
}

// Type returns the requested sync type with the default applied
func (r TriggerSyncRequest) Type() integration.SyncType {
	if r.SyncType == "" {
		return integration.SyncTypeIncremental
	}
	return integration.SyncType(r.SyncType)
}

// TriggerSyncResponse is returned with 202 Accepted
type TriggerSyncResponse struct {
	RunID  uuid.UUID                 `json:"run_id"`
	Status integration.SyncRunStatus `json:"status"`
}

// ListRunsRequest holds the query of GET /integration/sources/:id/runs
type ListRunsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=running completed failed partial"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Filter converts the query into a repository filter scoped to sourceID
func (r ListRunsRequest) Filter(sourceID uuid.UUID) integration.SyncRunFilter {
	list := ListRequest{Page: r.Page, PageSize: r.PageSize}
	list.Normalize()

	filter := integration.SyncRunFilter{
		SourceID: &sourceID,
		Page:     list.Page,
		PageSize: list.PageSize,
	}
	if r.Status != "" {
		status := integration.SyncRunStatus(r.Status)
		filter.Status = &status
	}
	return filter
}

// ManualRecordRequest is the body of POST /integration/sources/:id/records/manual
type ManualRecordRequest struct {
	ExternalID  string         `json:"external_id" binding:"max=200"`
	EntityType  string         `json:"entity_type" binding:"max=100"`
	Title       string         `json:"title" binding:"max=500"`
	Description string         `json:"description" binding:"max=5000"`
	Data        map[string]any `json:"data"`
}

// ImportCSVRequest holds the form fields next to the uploaded file
type ImportCSVRequest struct {
	EntityType     string `form:"entity_type" binding:"max=100"`
	IdentityColumn string `form:"identity_column" binding:"max=100"`
}

// ListMappingsRequest holds the query of GET /integration/sources/:id/mappings
type ListMappingsRequest struct {
	ExternalEntity string `form:"external_entity" binding:"max=100"`
}

// MappingRequest is the body of mapping create and update
type MappingRequest struct {
	ExternalEntity string            `json:"external_entity" binding:"required,max=100"`
	ExternalField  string            `json:"external_field" binding:"max=200"`
	InternalField  string            `json:"internal_field" binding:"required,max=100"`
	TransformType  string            `json:"transform_type" binding:"required,oneof=rename enum_translate constant_default"`
	EnumValues     map[string]string `json:"enum_values"`
	DefaultValue   *string           `json:"default_value"`
	Required       bool              `json:"required"`
}

// ValidateMappingRequest is the body of POST /integration/mappings/:id/validate
type ValidateMappingRequest struct {
	Sample map[string]any `json:"sample" binding:"required"`
}
