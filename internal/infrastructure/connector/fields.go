package connector

import (
	"encoding/json"
	"strconv"
	"strings"
)

// stringField returns data[key] as a trimmed string. Numbers are formatted without exponent.
func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
