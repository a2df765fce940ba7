package integration

import (
	"errors"

	"github.com/staffhub/backend/internal/domain/shared"
)

// Domain error codes. The HTTP layer maps each of them onto a status code.
const (
	CodeSourceNotFound      = "SOURCE_NOT_FOUND"
	CodeMappingNotFound     = "MAPPING_NOT_FOUND"
	CodeRecordNotFound      = "RECORD_NOT_FOUND"
	CodeSyncRunNotFound     = "SYNC_RUN_NOT_FOUND"
	CodeSourceNotActive     = "SOURCE_NOT_ACTIVE"
	CodeSourceDisabled      = "SOURCE_DISABLED"
	CodeSystemTypeImmutable = "SYSTEM_TYPE_IMMUTABLE"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeMappingConflict     = "MAPPING_CONFLICT"
	CodeSyncAlreadyRunning  = "SYNC_ALREADY_RUNNING"
	CodeSyncRunNotRunning   = "SYNC_RUN_NOT_RUNNING"
	CodeSyncNotSupported    = "SYNC_NOT_SUPPORTED"
	CodeSourceHasDependents = "SOURCE_HAS_DEPENDENTS"
	CodeRunNotCancellable   = "SYNC_RUN_NOT_CANCELLABLE"
	CodeSyncQueueFull       = "SYNC_QUEUE_UNAVAILABLE"
)

// Source errors
var (
	ErrSourceNotFound       = shared.NewDomainError(CodeSourceNotFound, "integration source not found")
	ErrSourceNotActive      = shared.NewDomainError(CodeSourceNotActive, "integration source is not active")
	ErrSourceDisabled       = shared.NewDomainError(CodeSourceDisabled, "integration source is disabled")
	ErrSystemTypeImmutable  = shared.NewDomainError(CodeSystemTypeImmutable, "system type cannot be changed after creation, create a new source instead")
	ErrSourceAlreadyActive  = shared.NewDomainError(CodeInvalidTransition, "integration source is already active")
	ErrSourceAlreadyOff     = shared.NewDomainError(CodeInvalidTransition, "integration source is already disabled")
	ErrSourceAPIURLRequired = shared.NewDomainError(CodeInvalidTransition, "an API URL is required before this source can be activated")
	ErrSourceHasDependents  = shared.NewDomainError(CodeSourceHasDependents, "integration source still owns records or sync runs, delete with cascade to remove them")

	ErrSourceNameRequired  = errors.New("integration: source name is required")
	ErrSourceNameTooLong   = errors.New("integration: source name must be at most 200 characters")
	ErrInvalidSystemType   = errors.New("integration: invalid system type")
	ErrInvalidSourceStatus = errors.New("integration: invalid source status")
	ErrInvalidSourceAPIURL = errors.New("integration: API URL must be an absolute http(s) URL")
	ErrSourceIDRequired    = errors.New("integration: source id is required")
)

// Mapping errors
var (
	ErrMappingNotFound = shared.NewDomainError(CodeMappingNotFound, "field mapping not found")
	ErrMappingConflict = shared.NewDomainError(CodeMappingConflict, "another mapping already targets this internal field for the same source and entity")

	ErrMappingEntityRequired        = errors.New("integration: external entity is required")
	ErrMappingExternalFieldRequired = errors.New("integration: external field is required")
	ErrMappingInternalFieldRequired = errors.New("integration: internal field is required")
	ErrMappingInvalidTransform      = errors.New("integration: invalid transform type")
	ErrMappingEnumValuesRequired    = errors.New("integration: enum_translate requires at least one enum value")
	ErrMappingDefaultRequired       = errors.New("integration: constant_default requires a default value")
	ErrMappingValidationFailed      = errors.New("integration: sample transform failed")
)

// Record errors
var (
	ErrRecordNotFound = shared.NewDomainError(CodeRecordNotFound, "integration record not found")

	ErrRecordExternalIDRequired = errors.New("integration: external id is required")
	ErrRecordEntityRequired     = errors.New("integration: external entity is required")
	ErrInvalidRecordSyncStatus  = errors.New("integration: invalid record sync status")
)

// Sync run errors
var (
	ErrSyncRunNotFound    = shared.NewDomainError(CodeSyncRunNotFound, "sync run not found")
	ErrSyncAlreadyRunning = shared.NewDomainError(CodeSyncAlreadyRunning, "a sync run is already running for this source")
	ErrSyncRunNotRunning  = shared.NewDomainError(CodeSyncRunNotRunning, "sync run is not running")
	ErrSyncNotSupported   = shared.NewDomainError(CodeSyncNotSupported, "this system type does not support pull sync, use manual or CSV import")
	// ErrSyncRunNotCancellable is returned for a running run owned by another process
	ErrSyncRunNotCancellable = shared.NewDomainError(CodeRunNotCancellable, "sync run is not executing in this process and cannot be cancelled here")
	ErrSyncQueueUnavailable  = shared.NewDomainError(CodeSyncQueueFull, "sync workers are busy or stopped, try again later")

	ErrInvalidSyncType = errors.New("integration: invalid sync type")
)

// Adapter errors
var (
	// ErrAdapterUnavailable indicates the external system could not be reached
	ErrAdapterUnavailable = errors.New("integration: external system unavailable")
	// ErrAdapterRequestFailed indicates the external system answered with an error status
	ErrAdapterRequestFailed = errors.New("integration: external system request failed")
	// ErrAdapterInvalidResponse indicates the response body could not be decoded
	ErrAdapterInvalidResponse = errors.New("integration: invalid response from external system")
	// ErrAdapterNotRegistered indicates no adapter factory exists for a system type
	ErrAdapterNotRegistered = errors.New("integration: no adapter registered for system type")
)

var validationErrors = []error{
	ErrSourceNameRequired,
	ErrSourceNameTooLong,
	ErrInvalidSystemType,
	ErrInvalidSourceStatus,
	ErrInvalidSourceAPIURL,
	ErrSourceIDRequired,
	ErrMappingEntityRequired,
	ErrMappingExternalFieldRequired,
	ErrMappingInternalFieldRequired,
	ErrMappingInvalidTransform,
	ErrMappingEnumValuesRequired,
	ErrMappingDefaultRequired,
	ErrMappingValidationFailed,
	ErrRecordExternalIDRequired,
	ErrRecordEntityRequired,
	ErrInvalidRecordSyncStatus,
	ErrInvalidSyncType,
}

// IsValidationError reports whether err wraps one of the input validation sentinels
func IsValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
