package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	if strings.ToUpper(strings.TrimSpace(orderDir)) == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// orderClause builds an ORDER BY from caller input, falling back to fallback when
// orderBy is empty or not whitelisted. id breaks ties so pages are stable.
func orderClause(orderBy, orderDir string, allowed map[string]bool, fallback string) string {
	field := ValidateSortField(orderBy, allowed, "")
	if field == "" {
		return fallback
	}
	return field + " " + ValidateSortOrder(orderDir) + ", id ASC"
}

// IntegrationSourceSortFields contains allowed sort fields for sources
var IntegrationSourceSortFields = map[string]bool{
	"created_at":   true,
	"updated_at":   true,
	"name":         true,
	"system_type":  true,
	"status":       true,
	"last_sync_at": true,
}

// IntegrationRecordSortFields contains allowed sort fields for records
var IntegrationRecordSortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"synced_at":       true,
	"external_id":     true,
	"external_entity": true,
	"sync_status":     true,
	"title":           true,
}
