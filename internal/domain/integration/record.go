package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RecordSyncStatus is the sync state of one record
type RecordSyncStatus string

const (
	RecordSyncPending   RecordSyncStatus = "pending"
	RecordSyncCompleted RecordSyncStatus = "completed"
	RecordSyncFailed    RecordSyncStatus = "failed"
)

// IsValid checks if the status is valid
func (s RecordSyncStatus) IsValid() bool {
	switch s {
	case RecordSyncPending, RecordSyncCompleted, RecordSyncFailed:
		return true
	}
	return false
}

// TitleField is the internal field shown as a record's human-readable title
const TitleField = "title"

// ---------------------------------------------------------------------------
// IntegrationRecord Entity
// ---------------------------------------------------------------------------

// IntegrationRecord is the internal representation of one external entity.
// (SourceID, ExternalID) identifies it; a re-sync updates it in place.
type IntegrationRecord struct {
	ID             uuid.UUID
	SourceID       uuid.UUID
	ExternalID     string
	ExternalEntity string
	// ExternalData is the raw payload as received
	ExternalData map[string]any
	// MappedData is the output of the mapping engine from the last successful sync
	MappedData map[string]any
	SyncStatus RecordSyncStatus
	SyncError  string
	// SyncedAt is the time of the last successful sync
	SyncedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIntegrationRecord creates a pending record for an external entity
func NewIntegrationRecord(sourceID uuid.UUID, externalID, externalEntity string) (*IntegrationRecord, error) {
	if sourceID == uuid.Nil {
		return nil, ErrSourceIDRequired
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, ErrRecordExternalIDRequired
	}
	if strings.TrimSpace(externalEntity) == "" {
		return nil, ErrRecordEntityRequired
	}

	now := time.Now()
	return &IntegrationRecord{
		ID:             uuid.New(),
		SourceID:       sourceID,
		ExternalID:     externalID,
		ExternalEntity: strings.TrimSpace(externalEntity),
		ExternalData:   map[string]any{},
		MappedData:     map[string]any{},
		SyncStatus:     RecordSyncPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ApplySuccess stores a cleanly mapped payload
func (r *IntegrationRecord) ApplySuccess(entity string, externalData, mappedData map[string]any, at time.Time) {
	if entity != "" {
		r.ExternalEntity = entity
	}
	r.ExternalData = nonNil(externalData)
	r.MappedData = nonNil(mappedData)
	r.SyncStatus = RecordSyncCompleted
	r.SyncError = ""
	r.SyncedAt = &at
	r.UpdatedAt = at
}

// ApplyFailure stores the latest raw payload and the failure reason.
// MappedData and SyncedAt keep their last-known-good values.
func (r *IntegrationRecord) ApplyFailure(entity string, externalData map[string]any, reason string) {
	if entity != "" {
		r.ExternalEntity = entity
	}
	r.ExternalData = nonNil(externalData)
	r.SyncStatus = RecordSyncFailed
	r.SyncError = reason
	r.UpdatedAt = time.Now()
}

// Title returns the mapped title, if any
func (r *IntegrationRecord) Title() string {
	if v, ok := r.MappedData[TitleField].(string); ok {
		return v
	}
	return ""
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// ---------------------------------------------------------------------------
// Upsert input
// ---------------------------------------------------------------------------

// RecordUpsert is one insert-or-update keyed by (SourceID, ExternalID)
type RecordUpsert struct {
	SourceID       uuid.UUID
	ExternalID     string
	ExternalEntity string
	ExternalData   map[string]any
	MappedData     map[string]any
	// Status is completed or failed
	Status RecordSyncStatus
	// Error is the failure reason when Status is failed
	Error string
}

// Validate checks the upsert before it reaches the store
func (u RecordUpsert) Validate() error {
	if u.SourceID == uuid.Nil {
		return ErrSourceIDRequired
	}
	if strings.TrimSpace(u.ExternalID) == "" {
		return ErrRecordExternalIDRequired
	}
	if strings.TrimSpace(u.ExternalEntity) == "" {
		return ErrRecordEntityRequired
	}
	if u.Status != RecordSyncCompleted && u.Status != RecordSyncFailed {
		return ErrInvalidRecordSyncStatus
	}
	return nil
}

// ApplyTo folds the upsert into an existing or freshly created record
func (u RecordUpsert) ApplyTo(r *IntegrationRecord, at time.Time) {
	if u.Status == RecordSyncFailed {
		r.ApplyFailure(u.ExternalEntity, u.ExternalData, u.Error)
		return
	}
	r.ApplySuccess(u.ExternalEntity, u.ExternalData, u.MappedData, at)
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// RecordFilter contains criteria for listing records
type RecordFilter struct {
	SourceID   *uuid.UUID
	EntityType string
	SyncStatus *RecordSyncStatus
	// Search matches external id or mapped title, case-insensitive
	Search   string
	OrderBy  string
	OrderDir string
	Page     int
	PageSize int
}

// RecordCounts are record totals by sync status
type RecordCounts struct {
	Total   int64
	Synced  int64
	Pending int64
	Failed  int64
}

// IntegrationRecordReader provides read access to records
type IntegrationRecordReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*IntegrationRecord, error)
	FindByExternalID(ctx context.Context, sourceID uuid.UUID, externalID string) (*IntegrationRecord, error)
	List(ctx context.Context, filter RecordFilter) ([]IntegrationRecord, int64, error)
	// CountByStatus counts across all sources when sourceID is nil
	CountByStatus(ctx context.Context, sourceID *uuid.UUID) (RecordCounts, error)
	CountByEntityType(ctx context.Context, sourceID *uuid.UUID) (map[string]int64, error)
	CountBySource(ctx context.Context, sourceID uuid.UUID) (int64, error)
}

// IntegrationRecordWriter provides write access to records
type IntegrationRecordWriter interface {
	// Upsert inserts or updates the record atomically
	Upsert(ctx context.Context, input RecordUpsert) (*IntegrationRecord, error)
}

// IntegrationRecordRepository combines reader and writer
type IntegrationRecordRepository interface {
	IntegrationRecordReader
	IntegrationRecordWriter
}
