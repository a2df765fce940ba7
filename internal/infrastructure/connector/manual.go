package connector

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
)

// Default entity types of the push-only adapters
const (
	ManualEntityType = "manual_entry"
	CSVEntityType    = "csv_row"
)

// ManualRecord is one operator-entered record
type ManualRecord struct {
	// ExternalID is generated when empty
	ExternalID  string
	EntityType  string
	Title       string
	Description string
	Data        map[string]any
}

// ManualAdapter yields a single operator-entered record
type ManualAdapter struct {
	record ManualRecord
}

// NewManualAdapter wraps one record
func NewManualAdapter(record ManualRecord) *ManualAdapter {
	return &ManualAdapter{record: record}
}

// SystemType returns manual
func (a *ManualAdapter) SystemType() integration.SystemType {
	return integration.SystemTypeManual
}

// EntityTypes returns manual_entry
func (a *ManualAdapter) EntityTypes() []string {
	return []string{ManualEntityType}
}

// FetchRecords returns the wrapped record. Title and Description override
// the same keys in Data.
func (a *ManualAdapter) FetchRecords(_ context.Context, _ *time.Time) ([]integration.RawExternalRecord, error) {
	r := a.record

	data := make(map[string]any, len(r.Data)+2)
	for k, v := range r.Data {
		data[k] = v
	}
	if t := strings.TrimSpace(r.Title); t != "" {
		data["title"] = t
	}
	if d := strings.TrimSpace(r.Description); d != "" {
		data["description"] = d
	}

	id := strings.TrimSpace(r.ExternalID)
	if id == "" {
		id = "manual-" + uuid.NewString()
	}
	entity := strings.TrimSpace(r.EntityType)
	if entity == "" {
		entity = ManualEntityType
	}

	return []integration.RawExternalRecord{{
		ExternalID: id,
		EntityType: entity,
		Data:       data,
		Line:       1,
	}}, nil
}
