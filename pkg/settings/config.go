package settings

import (
	"encoding/json"
	"strings"
)

// ParseConfig accepts a workflow or form config as a JSON object, either
// already decoded or as text. The inner shape is not interpreted.
func ParseConfig(v any) (map[string]any, error) {
	switch c := v.(type) {
	case nil:
		return nil, &InvalidConfigError{Field: "config", Reason: "config is required"}
	case map[string]any:
		return c, nil
	case string:
		text := strings.TrimSpace(c)
		if text == "" {
			return nil, &InvalidConfigError{Field: "config", Reason: "config is required"}
		}
		var decoded any
		if err := json.Unmarshal([]byte(text), &decoded); err != nil {
			return nil, &InvalidConfigError{Field: "config", Reason: "not valid JSON"}
		}
		obj, ok := decoded.(map[string]any)
		if !ok {
			return nil, &InvalidConfigError{Field: "config", Reason: "must be a JSON object"}
		}
		return obj, nil
	default:
		return nil, &InvalidConfigError{Field: "config", Reason: "must be a JSON object"}
	}
}
