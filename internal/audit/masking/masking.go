// Package masking redacts secret material before it lands in audit
// metadata. Values keep their scheme prefix and a four-character tail so
// an operator can still correlate a redacted token with the original.
package masking

import "strings"

const maskToken = "****"

// MaskSecret redacts a secret, keeping the prefix up to the last
// underscore and the final four characters.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, secret := splitSchemePrefix(trimmed)
	if len(secret) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + secret[len(secret)-4:]
}

// MaskJSON deep-copies the input with every string value masked. Empty
// keys are dropped; a fully empty result comes back as nil.
func MaskJSON(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		masked[key] = maskValue(value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch typed := value.(type) {
	case string:
		return MaskSecret(typed)
	case map[string]any:
		return MaskJSON(typed)
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}

func splitSchemePrefix(value string) (prefix, secret string) {
	idx := strings.LastIndex(value, "_")
	if idx == -1 || idx == len(value)-1 {
		return "", value
	}
	return value[:idx+1], value[idx+1:]
}
