package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/staffhub/backend/internal/domain/integration"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Mapping error codes
const (
	MappingErrRequiredMissing  = "REQUIRED_FIELD_MISSING"
	MappingErrEnumNoMatch      = "ENUM_NO_MATCH"
	MappingErrUnknownTransform = "UNKNOWN_TRANSFORM"
)

// MappingError describes one mapping that could not produce a value
type MappingError struct {
	InternalField string `json:"internal_field"`
	ExternalField string `json:"external_field,omitempty"`
	Code          string `json:"code"`
	Message       string `json:"message"`
	Required      bool   `json:"required"`
}

// MappingResult is the output of applying a scope's mappings to one payload
type MappingResult struct {
	MappedData map[string]any
	Errors     []MappingError
}

// HasRequiredErrors returns true if a required mapping failed
func (r MappingResult) HasRequiredErrors() bool {
	for _, e := range r.Errors {
		if e.Required {
			return true
		}
	}
	return false
}

// FailureReason joins the messages of the required mapping errors
func (r MappingResult) FailureReason() string {
	var parts []string
	for _, e := range r.Errors {
		if e.Required {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// MappingEngine turns external payloads into internal fields
type MappingEngine struct {
	finder integration.FieldMappingFinder
	logger *zap.Logger
}

// NewMappingEngine creates a new MappingEngine
func NewMappingEngine(finder integration.FieldMappingFinder, logger *zap.Logger) *MappingEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MappingEngine{finder: finder, logger: logger}
}

// Transform loads the mappings of (sourceID, entityType) and applies them.
// A lookup failure is returned as an error; per-field problems end up in the result.
func (e *MappingEngine) Transform(ctx context.Context, sourceID uuid.UUID, entityType string, externalData map[string]any) (MappingResult, error) {
	mappings, err := e.finder.FindByScope(ctx, sourceID, entityType)
	if err != nil {
		return MappingResult{}, fmt.Errorf("load mappings for %s/%s: %w", sourceID, entityType, err)
	}
	return Apply(mappings, externalData), nil
}

// Apply runs the mappings over externalData. It never fails as a whole:
// a mapping that cannot produce a value is reported and its field is left out.
func Apply(mappings []integration.FieldMapping, externalData map[string]any) MappingResult {
	result := MappingResult{MappedData: make(map[string]any, len(mappings))}

	doc := []byte("{}")
	if len(externalData) > 0 {
		if data, err := json.Marshal(externalData); err == nil {
			doc = data
		}
	}

	for i := range mappings {
		m := &mappings[i]
		value, mErr := applyOne(m, externalData, doc)
		if mErr != nil {
			result.Errors = append(result.Errors, *mErr)
			continue
		}
		if value != nil {
			result.MappedData[m.InternalField] = value
		}
	}
	return result
}

func applyOne(m *integration.FieldMapping, externalData map[string]any, doc []byte) (any, *MappingError) {
	if m.TransformType == integration.TransformConstantDefault {
		if m.DefaultValue == nil {
			return nil, nil
		}
		return *m.DefaultValue, nil
	}

	raw, found := lookupField(externalData, doc, m.ExternalField)
	if !found {
		if m.DefaultValue != nil {
			return *m.DefaultValue, nil
		}
		if m.Required {
			return nil, &MappingError{
				InternalField: m.InternalField,
				ExternalField: m.ExternalField,
				Code:          MappingErrRequiredMissing,
				Message:       fmt.Sprintf("%s: required field %q is missing", m.InternalField, m.ExternalField),
				Required:      true,
			}
		}
		return nil, nil
	}

	switch m.TransformType {
	case integration.TransformRename, "":
		return raw.Value(), nil
	case integration.TransformEnumTranslate:
		if v, ok := translateEnum(m.EnumValues, raw.String()); ok {
			return v, nil
		}
		return nil, &MappingError{
			InternalField: m.InternalField,
			ExternalField: m.ExternalField,
			Code:          MappingErrEnumNoMatch,
			Message:       fmt.Sprintf("%s: no translation for %q", m.InternalField, raw.String()),
			Required:      m.Required,
		}
	default:
		return nil, &MappingError{
			InternalField: m.InternalField,
			ExternalField: m.ExternalField,
			Code:          MappingErrUnknownTransform,
			Message:       fmt.Sprintf("%s: unknown transform %q", m.InternalField, m.TransformType),
			Required:      m.Required,
		}
	}
}

// lookupField resolves an exact top-level key first, then a gjson path.
// null and blank strings count as missing.
func lookupField(externalData map[string]any, doc []byte, path string) (gjson.Result, bool) {
	if path == "" {
		return gjson.Result{}, false
	}

	var res gjson.Result
	if _, ok := externalData[path]; ok {
		res = gjson.GetBytes(doc, gjson.Escape(path))
	} else {
		res = gjson.GetBytes(doc, path)
	}

	if !res.Exists() || res.Type == gjson.Null {
		return gjson.Result{}, false
	}
	if res.Type == gjson.String && strings.TrimSpace(res.Str) == "" {
		return gjson.Result{}, false
	}
	return res, true
}

// translateEnum matches exactly, then case-insensitively
func translateEnum(values map[string]string, external string) (string, bool) {
	if v, ok := values[external]; ok {
		return v, true
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, external) {
			return values[k], true
		}
	}
	return "", false
}
