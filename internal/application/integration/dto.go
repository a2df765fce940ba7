package integration

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	csvimport "github.com/staffhub/backend/internal/infrastructure/import"
)

// ---------------------------------------------------------------------------
// Source DTOs
// ---------------------------------------------------------------------------

// CreateSourceInput holds the fields of a new source
type CreateSourceInput struct {
	Name        string
	SystemType  integration.SystemType
	Description string
	APIURL      *string
}

// UpdateSourceInput holds the editable fields of a source.
// SystemType may be empty; any other value must equal the stored one.
type UpdateSourceInput struct {
	Name        string
	SystemType  integration.SystemType
	Description string
	APIURL      *string
}

// SourceResponse represents an integration source in API responses
type SourceResponse struct {
	ID                uuid.UUID                  `json:"id"`
	Name              string                     `json:"name"`
	Description       string                     `json:"description,omitempty"`
	SystemType        integration.SystemType     `json:"system_type"`
	SystemDisplayName string                     `json:"system_display_name"`
	Status            integration.SourceStatus   `json:"status"`
	APIURL            *string                    `json:"api_url,omitempty"`
	LastSyncAt        *time.Time                 `json:"last_sync_at,omitempty"`
	LastSyncStatus    integration.LastSyncStatus `json:"last_sync_status"`
	CreatedAt         time.Time                  `json:"created_at"`
	UpdatedAt         time.Time                  `json:"updated_at"`
}

// ToSourceResponse converts a domain source to a response DTO
func ToSourceResponse(s *integration.IntegrationSource) SourceResponse {
	return SourceResponse{
		ID:                s.ID,
		Name:              s.Name,
		Description:       s.Description,
		SystemType:        s.SystemType,
		SystemDisplayName: s.SystemType.DisplayName(),
		Status:            s.Status,
		APIURL:            s.APIURL,
		LastSyncAt:        s.LastSyncAt,
		LastSyncStatus:    s.LastSyncStatus,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// ToSourceResponses converts a slice of sources
func ToSourceResponses(sources []integration.IntegrationSource) []SourceResponse {
	out := make([]SourceResponse, len(sources))
	for i := range sources {
		out[i] = ToSourceResponse(&sources[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Mapping DTOs
// ---------------------------------------------------------------------------

// MappingInput holds the fields of a created or edited mapping
type MappingInput struct {
	ExternalEntity string
	ExternalField  string
	InternalField  string
	TransformType  integration.TransformType
	EnumValues     map[string]string
	DefaultValue   *string
	Required       bool
}

func (in MappingInput) spec() integration.FieldMappingSpec {
	return integration.FieldMappingSpec{
		ExternalEntity: in.ExternalEntity,
		ExternalField:  in.ExternalField,
		InternalField:  in.InternalField,
		TransformType:  in.TransformType,
		EnumValues:     in.EnumValues,
		DefaultValue:   in.DefaultValue,
		Required:       in.Required,
	}
}

// MappingResponse represents a field mapping in API responses
type MappingResponse struct {
	ID             uuid.UUID                 `json:"id"`
	SourceID       uuid.UUID                 `json:"source_id"`
	ExternalEntity string                    `json:"external_entity"`
	ExternalField  string                    `json:"external_field,omitempty"`
	InternalField  string                    `json:"internal_field"`
	TransformType  integration.TransformType `json:"transform_type"`
	EnumValues     map[string]string         `json:"enum_values,omitempty"`
	DefaultValue   *string                   `json:"default_value,omitempty"`
	Required       bool                      `json:"required"`
	Status         integration.MappingStatus `json:"status"`
	ValidatedAt    *time.Time                `json:"validated_at,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
}

// ToMappingResponse converts a domain mapping to a response DTO
func ToMappingResponse(m *integration.FieldMapping) MappingResponse {
	return MappingResponse{
		ID:             m.ID,
		SourceID:       m.SourceID,
		ExternalEntity: m.ExternalEntity,
		ExternalField:  m.ExternalField,
		InternalField:  m.InternalField,
		TransformType:  m.TransformType,
		EnumValues:     m.EnumValues,
		DefaultValue:   m.DefaultValue,
		Required:       m.Required,
		Status:         m.Status,
		ValidatedAt:    m.ValidatedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// ToMappingResponses converts a slice of mappings
func ToMappingResponses(mappings []integration.FieldMapping) []MappingResponse {
	out := make([]MappingResponse, len(mappings))
	for i := range mappings {
		out[i] = ToMappingResponse(&mappings[i])
	}
	return out
}

// ValidateMappingResult is the outcome of running one mapping over sample data
type ValidateMappingResult struct {
	Valid   bool            `json:"valid"`
	Output  map[string]any  `json:"output"`
	Errors  []MappingError  `json:"errors,omitempty"`
	Mapping MappingResponse `json:"mapping"`
}

// SeedMappingsResult reports what SeedDefaultMappings created
type SeedMappingsResult struct {
	Created []MappingResponse `json:"created"`
	// Skipped counts templates whose internal field was already mapped
	Skipped int `json:"skipped"`
}

// ---------------------------------------------------------------------------
// Record DTOs
// ---------------------------------------------------------------------------

// RecordResponse represents an integration record in API responses
type RecordResponse struct {
	ID             uuid.UUID                    `json:"id"`
	SourceID       uuid.UUID                    `json:"source_id"`
	ExternalID     string                       `json:"external_id"`
	ExternalEntity string                       `json:"external_entity"`
	Title          string                       `json:"title,omitempty"`
	ExternalData   map[string]any               `json:"external_data"`
	MappedData     map[string]any               `json:"mapped_data"`
	SyncStatus     integration.RecordSyncStatus `json:"sync_status"`
	SyncError      string                       `json:"sync_error,omitempty"`
	SyncedAt       *time.Time                   `json:"synced_at,omitempty"`
	CreatedAt      time.Time                    `json:"created_at"`
	UpdatedAt      time.Time                    `json:"updated_at"`
}

// ToRecordResponse converts a domain record to a response DTO
func ToRecordResponse(r *integration.IntegrationRecord) RecordResponse {
	return RecordResponse{
		ID:             r.ID,
		SourceID:       r.SourceID,
		ExternalID:     r.ExternalID,
		ExternalEntity: r.ExternalEntity,
		Title:          r.Title(),
		ExternalData:   r.ExternalData,
		MappedData:     r.MappedData,
		SyncStatus:     r.SyncStatus,
		SyncError:      r.SyncError,
		SyncedAt:       r.SyncedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ToRecordResponses converts a slice of records
func ToRecordResponses(records []integration.IntegrationRecord) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i := range records {
		out[i] = ToRecordResponse(&records[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Sync run DTOs
// ---------------------------------------------------------------------------

// SyncRunResponse represents a sync run in API responses
type SyncRunResponse struct {
	ID               uuid.UUID                   `json:"id"`
	SourceID         uuid.UUID                   `json:"source_id"`
	SyncType         integration.SyncType        `json:"sync_type"`
	Status           integration.SyncRunStatus   `json:"status"`
	RecordsProcessed int                         `json:"records_processed"`
	RecordsSucceeded int                         `json:"records_succeeded"`
	RecordsFailed    int                         `json:"records_failed"`
	ErrorMessage     string                      `json:"error_message,omitempty"`
	Failures         []integration.RecordFailure `json:"failures,omitempty"`
	Cancelled        bool                        `json:"cancelled,omitempty"`
	SyncStartedAt    time.Time                   `json:"sync_started_at"`
	SyncCompletedAt  *time.Time                  `json:"sync_completed_at,omitempty"`
	DurationMs       int64                       `json:"duration_ms"`
}

// ToSyncRunResponse converts a domain run to a response DTO
func ToSyncRunResponse(r *integration.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:               r.ID,
		SourceID:         r.SourceID,
		SyncType:         r.SyncType,
		Status:           r.Status,
		RecordsProcessed: r.RecordsProcessed,
		RecordsSucceeded: r.RecordsSucceeded,
		RecordsFailed:    r.RecordsFailed,
		ErrorMessage:     r.ErrorMessage,
		Failures:         r.Failures,
		Cancelled:        r.Cancelled,
		SyncStartedAt:    r.SyncStartedAt,
		SyncCompletedAt:  r.SyncCompletedAt,
		DurationMs:       r.Duration().Milliseconds(),
	}
}

// ToSyncRunResponses converts a slice of runs
func ToSyncRunResponses(runs []integration.SyncRun) []SyncRunResponse {
	out := make([]SyncRunResponse, len(runs))
	for i := range runs {
		out[i] = ToSyncRunResponse(&runs[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Import DTOs
// ---------------------------------------------------------------------------

// ManualRecordInput is one operator-entered record
type ManualRecordInput struct {
	// ExternalID is generated when empty
	ExternalID  string
	EntityType  string
	Title       string
	Description string
	Data        map[string]any
}

// ImportCSVInput describes one CSV upload
type ImportCSVInput struct {
	// EntityType defaults to csv_row
	EntityType string
	// IdentityColumn defaults to external_id
	IdentityColumn string
	FileName       string
	Reader         io.Reader
}

// ImportResult summarizes a manual or CSV import
type ImportResult struct {
	RunID        uuid.UUID                 `json:"run_id"`
	Status       integration.SyncRunStatus `json:"status"`
	Encoding     string                    `json:"encoding,omitempty"`
	TotalRows    int                       `json:"total_rows"`
	ImportedRows int                       `json:"imported_rows"`
	FailedRows   int                       `json:"failed_rows"`
	Errors       []csvimport.RowError      `json:"errors,omitempty"`
	IsTruncated  bool                      `json:"is_truncated"`
	TotalErrors  int                       `json:"total_errors"`
}

// ---------------------------------------------------------------------------
// Dashboard DTOs
// ---------------------------------------------------------------------------

// Dashboard is the operator overview of all sources or one source
type Dashboard struct {
	Systems     []SystemSummary   `json:"systems"`
	Records     RecordSummary     `json:"records"`
	Mappings    MappingSummary    `json:"mappings"`
	Freshness   FreshnessSummary  `json:"freshness"`
	RecentRuns  []SyncRunResponse `json:"recent_runs"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// SystemSummary counts the sources of one system type
type SystemSummary struct {
	SystemType  integration.SystemType `json:"system_type"`
	DisplayName string                 `json:"display_name"`
	Total       int64                  `json:"total"`
	Active      int64                  `json:"active"`
}

// RecordSummary counts records by status and entity type
type RecordSummary struct {
	Total        int64            `json:"total"`
	Synced       int64            `json:"synced"`
	Pending      int64            `json:"pending"`
	Failed       int64            `json:"failed"`
	ByEntityType map[string]int64 `json:"by_entity_type"`
}

// MappingSummary counts mappings and lists active sources missing some
type MappingSummary struct {
	Total              int64              `json:"total"`
	Validated          int64              `json:"validated"`
	Pending            int64              `json:"pending"`
	UnderMappedSources []UnderMappedEntry `json:"under_mapped_sources"`
}

// UnderMappedEntry is an active source with unmapped entity types or pending mappings
type UnderMappedEntry struct {
	SourceID         uuid.UUID `json:"source_id"`
	Name             string    `json:"name"`
	UnmappedEntities []string  `json:"unmapped_entities,omitempty"`
	PendingMappings  int64     `json:"pending_mappings"`
}

// FreshnessSummary reports how stale the active sources are
type FreshnessSummary struct {
	// AverageHoursSinceSync is nil when no active source has synced yet
	AverageHoursSinceSync *float64      `json:"average_hours_since_sync"`
	NeverSynced           []SourceBrief `json:"never_synced"`
	// PushOnly lists active manual and CSV sources, which have no sync watermark
	PushOnly []SourceBrief `json:"push_only"`
}

// SourceBrief identifies a source in dashboard lists
type SourceBrief struct {
	ID         uuid.UUID              `json:"id"`
	Name       string                 `json:"name"`
	SystemType integration.SystemType `json:"system_type"`
}
