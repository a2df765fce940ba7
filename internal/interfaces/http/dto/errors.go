package dto

import (
	"net/http"

	"github.com/staffhub/backend/internal/domain/integration"
)

// Generic codes, shared with shared.DomainError
const (
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// Transport codes, produced by handlers and middleware
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeRequestTooLarge    = "REQUEST_TOO_LARGE"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeRouteNotFound      = "ROUTE_NOT_FOUND"
)

// ErrorCodeHTTPStatus maps generic and transport codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodeAlreadyExists:    http.StatusConflict,
	ErrCodeConflict:         http.StatusConflict,
	ErrCodeInvalidState:     http.StatusUnprocessableEntity,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusBadRequest,

	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeRateLimited:        http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:    http.StatusRequestEntityTooLarge,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeRouteNotFound:      http.StatusNotFound,
}

// ErrorCodeCategory classifies the specific integration codes onto the generic ones
var ErrorCodeCategory = map[string]string{
	integration.CodeSourceNotFound:  ErrCodeNotFound,
	integration.CodeMappingNotFound: ErrCodeNotFound,
	integration.CodeRecordNotFound:  ErrCodeNotFound,
	integration.CodeSyncRunNotFound: ErrCodeNotFound,

	integration.CodeMappingConflict: ErrCodeAlreadyExists,

	integration.CodeSyncAlreadyRunning:  ErrCodeConflict,
	integration.CodeSourceHasDependents: ErrCodeConflict,
	integration.CodeRunNotCancellable:   ErrCodeConflict,

	integration.CodeSystemTypeImmutable: ErrCodeInvalidState,
	integration.CodeInvalidTransition:   ErrCodeInvalidState,
	integration.CodeSourceNotActive:     ErrCodeInvalidState,
	integration.CodeSourceDisabled:      ErrCodeInvalidState,
	integration.CodeSyncRunNotRunning:   ErrCodeInvalidState,
	integration.CodeSyncNotSupported:    ErrCodeInvalidState,

	integration.CodeSyncQueueFull: ErrCodeServiceUnavailable,
}

// Category returns the generic code a specific code belongs to.
// Generic and unknown codes are returned as-is.
func Category(code string) string {
	if category, ok := ErrorCodeCategory[code]; ok {
		return category
	}
	return code
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[Category(code)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
