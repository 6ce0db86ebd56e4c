package dispatch

import (
	"fmt"
	"strings"
)

// GetBoolParam safely extracts a bool parameter from the params map.
// Accepts YAML booleans and the strings true/false (case-insensitive).
func GetBoolParam(params map[string]any, key string, defaultValue bool) bool {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case bool:
			return v
		case string:
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "true":
				return true
			case "false":
				return false
			}
		}
	}
	return defaultValue
}

// ValidateKnownParams rejects parameters a handler does not understand.
func ValidateKnownParams(params map[string]any, known []string) error {
	allowed := make(map[string]bool, len(known))
	for _, key := range known {
		allowed[key] = true
	}
	for key := range params {
		if !allowed[key] {
			return fmt.Errorf("unknown parameter: %s", key)
		}
	}
	return nil
}
