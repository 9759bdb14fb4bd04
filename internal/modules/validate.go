package modules

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// ValidateParams checks params against InputSchema.
// - Required fields: returns error if missing
// - Type check: verifies value matches declared property type
// - Enum check: string values must be one of the declared enum values
// Returns validated params (shallow copy, defaults applied) or error.
func ValidateParams(schema InputSchema, params map[string]any) (map[string]any, error) {
	validated := make(map[string]any, len(params))
	for k, v := range params {
		validated[k] = v
	}

	// Check required fields
	var missing []string
	for _, key := range schema.Required {
		val, exists := validated[key]
		if !exists || val == nil {
			missing = append(missing, key)
			continue
		}
		// Check for zero-value strings on required fields
		if s, ok := val.(string); ok && s == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required parameter(s): %s", strings.Join(missing, ", "))
	}

	for key, prop := range schema.Properties {
		val, exists := validated[key]
		if !exists || val == nil {
			if prop.Default != nil {
				validated[key] = prop.Default
			}
			continue
		}
		if err := checkType(key, val, prop.Type); err != nil {
			return nil, err
		}
		if s, ok := val.(string); ok && len(prop.Enum) > 0 && !slices.Contains(prop.Enum, s) {
			return nil, fmt.Errorf("parameter %q: %q is not one of %s", key, s, strings.Join(prop.Enum, ", "))
		}
	}

	// Extra params not in schema are passed through (lenient)
	return validated, nil
}

// checkType verifies that val matches the expected JSON Schema type.
func checkType(key string, val any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := val.(string); !ok {
			return fmt.Errorf("parameter %q: expected string, got %T", key, val)
		}
	case "number":
		// JSON numbers arrive as float64
		if _, ok := val.(float64); !ok {
			return fmt.Errorf("parameter %q: expected number, got %T", key, val)
		}
	case "integer":
		if f, ok := val.(float64); !ok || f != math.Trunc(f) {
			return fmt.Errorf("parameter %q: expected integer, got %v", key, val)
		}
	case "boolean":
		if _, ok := val.(bool); !ok {
			return fmt.Errorf("parameter %q: expected boolean, got %T", key, val)
		}
	case "array":
		if _, ok := val.([]any); !ok {
			return fmt.Errorf("parameter %q: expected array, got %T", key, val)
		}
	case "object":
		if _, ok := val.(map[string]any); !ok {
			return fmt.Errorf("parameter %q: expected object, got %T", key, val)
		}
	// "" or unknown types: skip check (lenient)
	}
	return nil
}
