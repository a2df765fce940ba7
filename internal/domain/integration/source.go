package integration

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// SystemType
// ---------------------------------------------------------------------------

// SystemType identifies the kind of external system a source connects to
type SystemType string

const (
	SystemTypeServiceNow SystemType = "servicenow"
	SystemTypeAsana      SystemType = "asana"
	SystemTypeSAP        SystemType = "sap"
	SystemTypeJira       SystemType = "jira"
	// SystemTypeManual sources only receive operator-entered records
	SystemTypeManual SystemType = "manual"
	// SystemTypeCSV sources only receive records from CSV uploads
	SystemTypeCSV SystemType = "csv"
)

// AllSystemTypes returns every supported system type
func AllSystemTypes() []SystemType {
	return []SystemType{
		SystemTypeServiceNow,
		SystemTypeAsana,
		SystemTypeSAP,
		SystemTypeJira,
		SystemTypeManual,
		SystemTypeCSV,
	}
}

// IsValid checks if the system type is supported
func (t SystemType) IsValid() bool {
	switch t {
	case SystemTypeServiceNow, SystemTypeAsana, SystemTypeSAP, SystemTypeJira,
		SystemTypeManual, SystemTypeCSV:
		return true
	}
	return false
}

// String returns the string representation
func (t SystemType) String() string {
	return string(t)
}

// DisplayName returns a human-readable name
func (t SystemType) DisplayName() string {
	switch t {
	case SystemTypeServiceNow:
		return "ServiceNow"
	case SystemTypeAsana:
		return "Asana"
	case SystemTypeSAP:
		return "SAP"
	case SystemTypeJira:
		return "Jira"
	case SystemTypeManual:
		return "Manual Entry"
	case SystemTypeCSV:
		return "CSV Import"
	default:
		return string(t)
	}
}

// IsConnector reports whether records are pulled over the network from the external system.
// Connector-backed sources need an API URL and can be synced; the others are push-only.
func (t SystemType) IsConnector() bool {
	switch t {
	case SystemTypeServiceNow, SystemTypeAsana, SystemTypeSAP, SystemTypeJira:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Source status
// ---------------------------------------------------------------------------

// SourceStatus is the lifecycle status of a source
type SourceStatus string

const (
	SourceStatusDraft    SourceStatus = "draft"
	SourceStatusActive   SourceStatus = "active"
	SourceStatusDisabled SourceStatus = "disabled"
)

// IsValid checks if the status is valid
func (s SourceStatus) IsValid() bool {
	switch s {
	case SourceStatusDraft, SourceStatusActive, SourceStatusDisabled:
		return true
	}
	return false
}

// LastSyncStatus summarizes the outcome of the most recent sync of a source
type LastSyncStatus string

const (
	LastSyncCompleted LastSyncStatus = "completed"
	LastSyncFailed    LastSyncStatus = "failed"
	LastSyncPartial   LastSyncStatus = "partial"
	LastSyncNever     LastSyncStatus = "never"
)

// ---------------------------------------------------------------------------
// IntegrationSource Entity
// ---------------------------------------------------------------------------

// IntegrationSource is one configured connection to an external system.
// It owns its records and sync runs.
type IntegrationSource struct {
	ID          uuid.UUID
	Name        string
	Description string
	// SystemType is fixed at creation
	SystemType SystemType
	Status     SourceStatus
	// APIURL is nil for systems that use a different auth model
	APIURL *string
	// LastSyncAt is the start time of the last run that was not failed.
	// Incremental syncs use it as their watermark.
	LastSyncAt     *time.Time
	LastSyncStatus LastSyncStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewIntegrationSource creates a source in draft status
func NewIntegrationSource(name string, systemType SystemType, description string, apiURL *string) (*IntegrationSource, error) {
	if !systemType.IsValid() {
		return nil, ErrInvalidSystemType
	}

	src := &IntegrationSource{
		ID:             uuid.New(),
		SystemType:     systemType,
		Status:         SourceStatusDraft,
		LastSyncStatus: LastSyncNever,
	}
	if err := src.applyDetails(name, description, apiURL); err != nil {
		return nil, err
	}

	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now
	return src, nil
}

// Update changes the editable details of the source
func (s *IntegrationSource) Update(name, description string, apiURL *string) error {
	if err := s.applyDetails(name, description, apiURL); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	return nil
}

// CheckSystemType rejects any attempt to retarget the source at another system
func (s *IntegrationSource) CheckSystemType(t SystemType) error {
	if t != "" && t != s.SystemType {
		return ErrSystemTypeImmutable
	}
	return nil
}

func (s *IntegrationSource) applyDetails(name, description string, apiURL *string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrSourceNameRequired
	}
	if len(name) > 200 {
		return ErrSourceNameTooLong
	}

	var normalized *string
	if apiURL != nil && strings.TrimSpace(*apiURL) != "" {
		u, err := url.Parse(strings.TrimSpace(*apiURL))
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return ErrInvalidSourceAPIURL
		}
		v := strings.TrimRight(u.String(), "/")
		normalized = &v
	}

	s.Name = name
	s.Description = strings.TrimSpace(description)
	s.APIURL = normalized
	return nil
}

// Activate permits syncs against the source
func (s *IntegrationSource) Activate() error {
	if s.Status == SourceStatusActive {
		return ErrSourceAlreadyActive
	}
	if s.SystemType.IsConnector() && s.APIURL == nil {
		return ErrSourceAPIURLRequired
	}
	s.Status = SourceStatusActive
	s.UpdatedAt = time.Now()
	return nil
}

// Disable stops scheduled and triggered syncs and imports
func (s *IntegrationSource) Disable() error {
	if s.Status == SourceStatusDisabled {
		return ErrSourceAlreadyOff
	}
	s.Status = SourceStatusDisabled
	s.UpdatedAt = time.Now()
	return nil
}

// IsActive returns true if the source may be synced
func (s *IntegrationSource) IsActive() bool {
	return s.Status == SourceStatusActive
}

// EnsureSyncable returns ErrSourceNotActive unless the source is active
func (s *IntegrationSource) EnsureSyncable() error {
	if !s.IsActive() {
		return ErrSourceNotActive
	}
	return nil
}

// EnsureImportable rejects imports into disabled sources
func (s *IntegrationSource) EnsureImportable() error {
	if s.Status == SourceStatusDisabled {
		return ErrSourceDisabled
	}
	return nil
}

// SinceForSync returns the fetch watermark for a sync of the given type
func (s *IntegrationSource) SinceForSync(syncType SyncType) *time.Time {
	if syncType != SyncTypeIncremental || s.LastSyncAt == nil {
		return nil
	}
	since := *s.LastSyncAt
	return &since
}

// RecordSyncOutcome stores the result of a finished pull run.
// A failed run leaves the watermark where it was.
func (s *IntegrationSource) RecordSyncOutcome(run *SyncRun) {
	switch run.Status {
	case SyncRunStatusFailed:
		s.LastSyncStatus = LastSyncFailed
	case SyncRunStatusPartial:
		s.LastSyncStatus = LastSyncPartial
		if run.Cancelled {
			// the fetched window was not fully processed
			break
		}
		started := run.SyncStartedAt
		s.LastSyncAt = &started
	case SyncRunStatusCompleted:
		started := run.SyncStartedAt
		s.LastSyncAt = &started
		s.LastSyncStatus = LastSyncCompleted
	default:
		return
	}
	s.UpdatedAt = time.Now()
}

// HoursSinceSync returns the hours elapsed since the last sync, or false if never synced
func (s *IntegrationSource) HoursSinceSync(now time.Time) (float64, bool) {
	if s.LastSyncAt == nil {
		return 0, false
	}
	return now.Sub(*s.LastSyncAt).Hours(), true
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// SourceFilter contains criteria for listing sources
type SourceFilter struct {
	SystemType *SystemType
	Status     *SourceStatus
	Search     string
	OrderBy    string
	OrderDir   string
	Page       int
	PageSize   int
}

// SystemTypeCount is the number of sources for one system type
type SystemTypeCount struct {
	SystemType SystemType
	Total      int64
	Active     int64
}

// IntegrationSourceReader provides read access to sources
type IntegrationSourceReader interface {
	// FindByID returns ErrSourceNotFound if the source does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*IntegrationSource, error)
	List(ctx context.Context, filter SourceFilter) ([]IntegrationSource, int64, error)
	ListActive(ctx context.Context) ([]IntegrationSource, error)
	CountBySystemType(ctx context.Context) ([]SystemTypeCount, error)
}

// IntegrationSourceWriter provides write access to sources
type IntegrationSourceWriter interface {
	Save(ctx context.Context, source *IntegrationSource) error
	// DeleteCascade removes the source together with its records, runs and mappings
	DeleteCascade(ctx context.Context, id uuid.UUID) error
}

// IntegrationSourceRepository combines reader and writer
type IntegrationSourceRepository interface {
	IntegrationSourceReader
	IntegrationSourceWriter
}
