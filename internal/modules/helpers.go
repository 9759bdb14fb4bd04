package modules

import (
	"encoding/json"
	"fmt"
)

// ToJSON marshals any value to a JSON string.
// Used by module handlers to serialize shaped responses.
func ToJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return string(b), nil
}

// StringParam returns params[key] when it is a string, "" otherwise.
func StringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}
