// Package masking redacts credential material before it reaches the audit
// store.
package masking

import "strings"

const maskToken = "****"

// Keys whose values are always redacted, matched as substrings of the
// lower-cased key.
var sensitiveKeyMarkers = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
	"api_key",
	"apikey",
}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskDetail returns a copy of the detail map with sensitive values
// redacted. Nested maps and slices are walked; non-sensitive values pass
// through untouched.
func MaskDetail(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if sensitiveKey(trimmedKey) {
			masked[trimmedKey] = maskAny(value)
			continue
		}
		masked[trimmedKey] = walkValue(value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func sensitiveKey(key string) bool {
	lowered := strings.ToLower(key)
	for _, marker := range sensitiveKeyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

func maskAny(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	default:
		return maskToken
	}
}

func walkValue(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskDetail(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, walkValue(item))
		}
		return out
	default:
		return value
	}
}
