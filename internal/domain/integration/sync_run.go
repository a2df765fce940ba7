package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncType is the kind of sync run
type SyncType string

const (
	SyncTypeFull        SyncType = "full"
	SyncTypeIncremental SyncType = "incremental"
	// SyncTypeManual covers manual entry and CSV imports
	SyncTypeManual SyncType = "manual"
)

// IsValid checks if the sync type is valid
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeFull, SyncTypeIncremental, SyncTypeManual:
		return true
	}
	return false
}

// SyncRunStatus is the state of a sync run.
// running moves to exactly one of completed, partial or failed.
type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
	SyncRunStatusPartial   SyncRunStatus = "partial"
)

// IsTerminal returns true for completed, partial and failed
func (s SyncRunStatus) IsTerminal() bool {
	return s == SyncRunStatusCompleted || s == SyncRunStatusFailed || s == SyncRunStatusPartial
}

// MaxRunFailures caps the failure details kept on a run
const MaxRunFailures = 100

// RecordFailure describes one record that could not be synced
type RecordFailure struct {
	ExternalID string `json:"external_id,omitempty"`
	// Line is the source line for CSV rows
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

// ---------------------------------------------------------------------------
// SyncRun Entity
// ---------------------------------------------------------------------------

// SyncRun is one execution of the orchestrator against one source.
// RecordsSucceeded + RecordsFailed never exceeds RecordsProcessed.
type SyncRun struct {
	ID               uuid.UUID
	SourceID         uuid.UUID
	SyncType         SyncType
	Status           SyncRunStatus
	RecordsProcessed int
	RecordsSucceeded int
	RecordsFailed    int
	// ErrorMessage holds the adapter or persistence cause of a failed run
	ErrorMessage    string
	Failures        []RecordFailure
	Cancelled       bool
	SyncStartedAt   time.Time
	SyncCompletedAt *time.Time
}

// NewSyncRun creates a running sync run
func NewSyncRun(sourceID uuid.UUID, syncType SyncType) (*SyncRun, error) {
	if sourceID == uuid.Nil {
		return nil, ErrSourceIDRequired
	}
	if !syncType.IsValid() {
		return nil, ErrInvalidSyncType
	}
	return &SyncRun{
		ID:            uuid.New(),
		SourceID:      sourceID,
		SyncType:      syncType,
		Status:        SyncRunStatusRunning,
		Failures:      make([]RecordFailure, 0),
		SyncStartedAt: time.Now(),
	}, nil
}

// IsRunning returns true while the run has not reached a terminal state
func (r *SyncRun) IsRunning() bool {
	return r.Status == SyncRunStatusRunning
}

// RecordSucceeded counts one record that was upserted cleanly
func (r *SyncRun) RecordSucceeded() error {
	if !r.IsRunning() {
		return ErrSyncRunNotRunning
	}
	r.RecordsProcessed++
	r.RecordsSucceeded++
	return nil
}

// RecordFailed counts one record that failed and keeps its reason
func (r *SyncRun) RecordFailed(f RecordFailure) error {
	if !r.IsRunning() {
		return ErrSyncRunNotRunning
	}
	r.RecordsProcessed++
	r.RecordsFailed++
	if len(r.Failures) < MaxRunFailures {
		r.Failures = append(r.Failures, f)
	}
	return nil
}

// Complete finishes the run with a status derived from its counters
func (r *SyncRun) Complete() error {
	if !r.IsRunning() {
		return ErrSyncRunNotRunning
	}
	r.Status = DeriveRunStatus(r.RecordsProcessed, r.RecordsSucceeded, r.RecordsFailed)
	r.finish()
	return nil
}

// Cancel finishes a run that was stopped between records.
// Whatever was processed is kept and the run is reported as partial.
func (r *SyncRun) Cancel() error {
	if !r.IsRunning() {
		return ErrSyncRunNotRunning
	}
	r.Status = SyncRunStatusPartial
	r.Cancelled = true
	r.finish()
	return nil
}

// Fail finishes the run as failed with the given cause
func (r *SyncRun) Fail(cause error) error {
	if !r.IsRunning() {
		return ErrSyncRunNotRunning
	}
	r.Status = SyncRunStatusFailed
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	r.finish()
	return nil
}

func (r *SyncRun) finish() {
	now := time.Now()
	r.SyncCompletedAt = &now
}

// Duration returns how long the run took, or has taken so far
func (r *SyncRun) Duration() time.Duration {
	if r.SyncCompletedAt == nil {
		return time.Since(r.SyncStartedAt)
	}
	return r.SyncCompletedAt.Sub(r.SyncStartedAt)
}

// CheckCounters verifies the counter invariant
func (r *SyncRun) CheckCounters() error {
	if r.RecordsSucceeded < 0 || r.RecordsFailed < 0 ||
		r.RecordsSucceeded+r.RecordsFailed > r.RecordsProcessed {
		return fmt.Errorf("integration: run %s counters out of range (processed=%d succeeded=%d failed=%d)",
			r.ID, r.RecordsProcessed, r.RecordsSucceeded, r.RecordsFailed)
	}
	return nil
}

// DeriveRunStatus computes the terminal status of a run that reached the end of its input.
// No failures is completed, some failures is partial, all failed is failed.
func DeriveRunStatus(processed, succeeded, failed int) SyncRunStatus {
	switch {
	case failed == 0:
		return SyncRunStatusCompleted
	case failed < processed:
		return SyncRunStatusPartial
	default:
		return SyncRunStatusFailed
	}
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// SyncRunFilter contains criteria for listing runs
type SyncRunFilter struct {
	SourceID *uuid.UUID
	Status   *SyncRunStatus
	Page     int
	PageSize int
}

// SyncRunRepository persists sync runs
type SyncRunRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	List(ctx context.Context, filter SyncRunFilter) ([]SyncRun, int64, error)
	ListRecent(ctx context.Context, sourceID *uuid.UUID, limit int) ([]SyncRun, error)
	// FindRunning returns every run still in running status
	FindRunning(ctx context.Context) ([]SyncRun, error)
	ExistsRunning(ctx context.Context, sourceID uuid.UUID) (bool, error)
	CountBySource(ctx context.Context, sourceID uuid.UUID) (int64, error)
	Save(ctx context.Context, run *SyncRun) error
	// FinishRun saves a terminal run and, in the same transaction, the source's
	// LastSyncAt and LastSyncStatus. No other source column is written.
	FinishRun(ctx context.Context, run *SyncRun, source *IntegrationSource) error
}
