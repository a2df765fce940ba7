package integration

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Raw external records
// ---------------------------------------------------------------------------

// RawExternalRecord is one record as yielded by an adapter, in the external system's schema
type RawExternalRecord struct {
	// ExternalID is the identity within the source. Empty means the record cannot be stored.
	ExternalID string
	// EntityType is the classification made by the adapter, e.g. "incident" or "story"
	EntityType string
	Data       map[string]any
	// Line is the 1-based input line for file-based adapters
	Line int
	// RejectReason is set when the adapter already knows the record is unusable.
	// Rejected records are counted as failed without reaching the mapping engine.
	RejectReason string
}

// IsRejected returns true if the adapter rejected the record
func (r RawExternalRecord) IsRejected() bool {
	return r.RejectReason != ""
}

// ---------------------------------------------------------------------------
// SystemAdapter Port
// ---------------------------------------------------------------------------

// SystemAdapter knows how to talk to one external system's API shape.
// One instance serves one source.
type SystemAdapter interface {
	// SystemType returns the system this adapter talks to
	SystemType() SystemType

	// EntityTypes returns the entity types this adapter can classify records into
	EntityTypes() []string

	// FetchRecords returns the records changed since the watermark, or all records when since is nil.
	// Records are returned in the order the external system yields them.
	// Page or batch failures are returned as *AdapterError.
	FetchRecords(ctx context.Context, since *time.Time) ([]RawExternalRecord, error)
}

// AdapterRegistry selects the adapter for a source by its system type
type AdapterRegistry interface {
	// Adapter builds the adapter for a source; ErrAdapterNotRegistered if none exists
	Adapter(source *IntegrationSource) (SystemAdapter, error)

	// EntityTypes returns the entity types of a system type without building an adapter
	EntityTypes(systemType SystemType) []string

	// SupportsPull reports whether sources of this type can be synced over the network
	SupportsPull(systemType SystemType) bool
}

// ---------------------------------------------------------------------------
// AdapterError
// ---------------------------------------------------------------------------

// AdapterError is the typed failure returned by adapters. It aborts the whole run.
type AdapterError struct {
	SystemType SystemType
	// Operation names the request that failed, e.g. "fetch incident"
	Operation string
	// Page is the 1-based page that failed, 0 if not paged
	Page       int
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *AdapterError) Error() string {
	msg := fmt.Sprintf("%s adapter: %s", e.SystemType, e.Operation)
	if e.Page > 0 {
		msg += fmt.Sprintf(" (page %d)", e.Page)
	}
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapterError wraps err as an adapter failure
func NewAdapterError(systemType SystemType, operation string, page, statusCode int, err error) *AdapterError {
	return &AdapterError{
		SystemType: systemType,
		Operation:  operation,
		Page:       page,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsAdapterError reports whether err is or wraps an *AdapterError
func IsAdapterError(err error) bool {
	var ae *AdapterError
	return errors.As(err, &ae)
}
