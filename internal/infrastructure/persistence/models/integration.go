package models

import (
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// IntegrationSource
// ---------------------------------------------------------------------------

// IntegrationSourceModel is the persistence model for the IntegrationSource entity.
type IntegrationSourceModel struct {
	ID             uuid.UUID                  `gorm:"type:uuid;primary_key"`
	Name           string                     `gorm:"type:varchar(200);not null"`
	Description    string                     `gorm:"type:text"`
	SystemType     integration.SystemType     `gorm:"type:varchar(20);not null;index:idx_integration_source_system_type"`
	Status         integration.SourceStatus   `gorm:"type:varchar(20);not null;index:idx_integration_source_status"`
	APIURL         *string                    `gorm:"type:varchar(500);column:api_url"`
	LastSyncAt     *time.Time                 `gorm:"column:last_sync_at"`
	LastSyncStatus integration.LastSyncStatus `gorm:"type:varchar(20);not null"`
	CreatedAt      time.Time                  `gorm:"not null"`
	UpdatedAt      time.Time                  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationSourceModel) TableName() string {
	return "integration_sources"
}

// ToDomain converts the persistence model to a domain entity
func (m *IntegrationSourceModel) ToDomain() *integration.IntegrationSource {
	return &integration.IntegrationSource{
		ID:             m.ID,
		Name:           m.Name,
		Description:    m.Description,
		SystemType:     m.SystemType,
		Status:         m.Status,
		APIURL:         m.APIURL,
		LastSyncAt:     m.LastSyncAt,
		LastSyncStatus: m.LastSyncStatus,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// IntegrationSourceModelFromDomain creates a persistence model from a domain entity
func IntegrationSourceModelFromDomain(s *integration.IntegrationSource) *IntegrationSourceModel {
	return &IntegrationSourceModel{
		ID:             s.ID,
		Name:           s.Name,
		Description:    s.Description,
		SystemType:     s.SystemType,
		Status:         s.Status,
		APIURL:         s.APIURL,
		LastSyncAt:     s.LastSyncAt,
		LastSyncStatus: s.LastSyncStatus,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// ---------------------------------------------------------------------------
// FieldMapping
// ---------------------------------------------------------------------------

// FieldMappingModel is the persistence model for the FieldMapping entity.
// The unique index enforces one mapping per internal field within a (source, entity) scope.
type FieldMappingModel struct {
	ID             uuid.UUID                 `gorm:"type:uuid;primary_key"`
	SourceID       uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_field_mapping_scope_field,priority:1"`
	ExternalEntity string                    `gorm:"type:varchar(100);not null;uniqueIndex:idx_field_mapping_scope_field,priority:2"`
	InternalField  string                    `gorm:"type:varchar(100);not null;uniqueIndex:idx_field_mapping_scope_field,priority:3"`
	ExternalField  string                    `gorm:"type:varchar(255)"`
	TransformType  integration.TransformType `gorm:"type:varchar(20);not null"`
	EnumValuesJSON string                    `gorm:"type:jsonb;column:enum_values"`
	DefaultValue   *string                   `gorm:"type:text"`
	Required       bool                      `gorm:"not null"`
	Status         integration.MappingStatus `gorm:"type:varchar(20);not null;index:idx_field_mapping_status"`
	ValidatedAt    *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FieldMappingModel) TableName() string {
	return "field_mappings"
}

// ToDomain converts the persistence model to a domain entity
func (m *FieldMappingModel) ToDomain() *integration.FieldMapping {
	mapping := &integration.FieldMapping{
		ID:             m.ID,
		SourceID:       m.SourceID,
		ExternalEntity: m.ExternalEntity,
		ExternalField:  m.ExternalField,
		InternalField:  m.InternalField,
		TransformType:  m.TransformType,
		DefaultValue:   m.DefaultValue,
		Required:       m.Required,
		Status:         m.Status,
		ValidatedAt:    m.ValidatedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.EnumValuesJSON != "" && m.EnumValuesJSON != "null" {
		var values map[string]string
		if err := json.Unmarshal([]byte(m.EnumValuesJSON), &values); err == nil {
			mapping.EnumValues = values
		}
	}
	return mapping
}

// FieldMappingModelFromDomain creates a persistence model from a domain entity
func FieldMappingModelFromDomain(f *integration.FieldMapping) *FieldMappingModel {
	m := &FieldMappingModel{
		ID:             f.ID,
		SourceID:       f.SourceID,
		ExternalEntity: f.ExternalEntity,
		ExternalField:  f.ExternalField,
		InternalField:  f.InternalField,
		TransformType:  f.TransformType,
		EnumValuesJSON: "{}",
		DefaultValue:   f.DefaultValue,
		Required:       f.Required,
		Status:         f.Status,
		ValidatedAt:    f.ValidatedAt,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
	if len(f.EnumValues) > 0 {
		if data, err := json.Marshal(f.EnumValues); err == nil {
			m.EnumValuesJSON = string(data)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// IntegrationRecord
// ---------------------------------------------------------------------------

// IntegrationRecordModel is the persistence model for the IntegrationRecord entity.
// Title is a copy of mapped_data.title kept as a column so search works on every dialect.
type IntegrationRecordModel struct {
	ID               uuid.UUID                      `gorm:"type:uuid;primary_key"`
	SourceID         uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_integration_record_identity,priority:1"`
	ExternalID       string                         `gorm:"type:varchar(255);not null;uniqueIndex:idx_integration_record_identity,priority:2"`
	ExternalEntity   string                         `gorm:"type:varchar(100);not null;index:idx_integration_record_entity"`
	ExternalDataJSON string                         `gorm:"type:jsonb;column:external_data;not null"`
	MappedDataJSON   string                         `gorm:"type:jsonb;column:mapped_data;not null"`
	Title            string                         `gorm:"type:varchar(500)"`
	SyncStatus       integration.RecordSyncStatus   `gorm:"type:varchar(20);not null;index:idx_integration_record_status"`
	SyncError        string                         `gorm:"type:text"`
	SyncedAt         *time.Time
	CreatedAt        time.Time `gorm:"not null"`
	UpdatedAt        time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (IntegrationRecordModel) TableName() string {
	return "integration_records"
}

// ToDomain converts the persistence model to a domain entity
func (m *IntegrationRecordModel) ToDomain() *integration.IntegrationRecord {
	return &integration.IntegrationRecord{
		ID:             m.ID,
		SourceID:       m.SourceID,
		ExternalID:     m.ExternalID,
		ExternalEntity: m.ExternalEntity,
		ExternalData:   decodeObject(m.ExternalDataJSON),
		MappedData:     decodeObject(m.MappedDataJSON),
		SyncStatus:     m.SyncStatus,
		SyncError:      m.SyncError,
		SyncedAt:       m.SyncedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// MaxRecordTitleLength is the width of the title column in characters
const MaxRecordTitleLength = 500

// truncateRunes cuts s to at most n characters without splitting a multi-byte character
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// IntegrationRecordModelFromDomain creates a persistence model from a domain entity
func IntegrationRecordModelFromDomain(r *integration.IntegrationRecord) (*IntegrationRecordModel, error) {
	externalData, err := encodeObject(r.ExternalData)
	if err != nil {
		return nil, err
	}
	mappedData, err := encodeObject(r.MappedData)
	if err != nil {
		return nil, err
	}

	title := truncateRunes(r.Title(), MaxRecordTitleLength)

	return &IntegrationRecordModel{
		ID:               r.ID,
		SourceID:         r.SourceID,
		ExternalID:       r.ExternalID,
		ExternalEntity:   r.ExternalEntity,
		ExternalDataJSON: externalData,
		MappedDataJSON:   mappedData,
		Title:            title,
		SyncStatus:       r.SyncStatus,
		SyncError:        r.SyncError,
		SyncedAt:         r.SyncedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}, nil
}

// ---------------------------------------------------------------------------
// SyncRun
// ---------------------------------------------------------------------------

// SyncRunModel is the persistence model for the SyncRun entity.
type SyncRunModel struct {
	ID               uuid.UUID                 `gorm:"type:uuid;primary_key"`
	SourceID         uuid.UUID                 `gorm:"type:uuid;not null;index:idx_sync_run_source_started,priority:1"`
	SyncType         integration.SyncType      `gorm:"type:varchar(20);not null"`
	Status           integration.SyncRunStatus `gorm:"type:varchar(20);not null;index:idx_sync_run_status"`
	RecordsProcessed int                       `gorm:"not null"`
	RecordsSucceeded int                       `gorm:"not null"`
	RecordsFailed    int                       `gorm:"not null"`
	ErrorMessage     string                    `gorm:"type:text"`
	FailuresJSON     string                    `gorm:"type:jsonb;column:failures"`
	Cancelled        bool                      `gorm:"not null"`
	SyncStartedAt    time.Time                 `gorm:"not null;index:idx_sync_run_source_started,priority:2"`
	SyncCompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "sync_runs"
}

// ToDomain converts the persistence model to a domain entity
func (m *SyncRunModel) ToDomain() *integration.SyncRun {
	run := &integration.SyncRun{
		ID:               m.ID,
		SourceID:         m.SourceID,
		SyncType:         m.SyncType,
		Status:           m.Status,
		RecordsProcessed: m.RecordsProcessed,
		RecordsSucceeded: m.RecordsSucceeded,
		RecordsFailed:    m.RecordsFailed,
		ErrorMessage:     m.ErrorMessage,
		Failures:         make([]integration.RecordFailure, 0),
		Cancelled:        m.Cancelled,
		SyncStartedAt:    m.SyncStartedAt,
		SyncCompletedAt:  m.SyncCompletedAt,
	}
	if m.FailuresJSON != "" {
		var failures []integration.RecordFailure
		if err := json.Unmarshal([]byte(m.FailuresJSON), &failures); err == nil && failures != nil {
			run.Failures = failures
		}
	}
	return run
}

// SyncRunModelFromDomain creates a persistence model from a domain entity
func SyncRunModelFromDomain(r *integration.SyncRun) *SyncRunModel {
	m := &SyncRunModel{
		ID:               r.ID,
		SourceID:         r.SourceID,
		SyncType:         r.SyncType,
		Status:           r.Status,
		RecordsProcessed: r.RecordsProcessed,
		RecordsSucceeded: r.RecordsSucceeded,
		RecordsFailed:    r.RecordsFailed,
		ErrorMessage:     r.ErrorMessage,
		FailuresJSON:     "[]",
		Cancelled:        r.Cancelled,
		SyncStartedAt:    r.SyncStartedAt,
		SyncCompletedAt:  r.SyncCompletedAt,
	}
	if len(r.Failures) > 0 {
		if data, err := json.Marshal(r.Failures); err == nil {
			m.FailuresJSON = string(data)
		}
	}
	return m
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func encodeObject(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeObject(s string) map[string]any {
	out := map[string]any{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	if out == nil {
		out = map[string]any{}
	}
	return out
}
