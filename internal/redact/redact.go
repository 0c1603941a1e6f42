// Package redact implements the secret-redaction concern shared by the
// checkpoint store, the audit log, and provider error sanitization. It
// is deliberately a pure function plus a deep-walk variant over
// arbitrary JSON-shaped values, applied at every outbound boundary
// rather than duplicated per component.
package redact

import (
	"encoding/json"
	"regexp"
)

const mask = "[REDACTED]"

// patterns matches common secret shapes: bearer tokens, API keys,
// Anthropic-style keys, private key blocks, and key=value assignments
// for password/secret/token, plus DB connection strings with embedded
// credentials.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._\-]{10,}`),
	regexp.MustCompile(`(?i)sk-[a-z0-9\-]{10,}`),
	regexp.MustCompile(`(?i)sk-ant-[a-z0-9\-_]{10,}`),
	regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)(password|secret|token|api[_-]?key)\s*[:=]\s*["']?[^"'\s,}]{4,}["']?`),
	regexp.MustCompile(`(?i)\b\w+://[^:\s]+:[^@\s]+@[^\s"']+`),
}

// String scans s for secret-shaped substrings and replaces each match
// with a fixed mask. Redacting an already-redacted string is a no-op
// (idempotent), since the mask itself never matches a pattern.
func String(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, mask)
	}
	return s
}

// JSON deep-walks an arbitrary JSON-shaped value (the result of
// json.Unmarshal into any), redacting every string leaf. Maps and
// slices are copied; other values pass through unchanged.
func JSON(v any) any {
	switch val := v.(type) {
	case string:
		return String(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v2 := range val {
			out[k] = JSON(v2)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, v2 := range val {
			out[i] = JSON(v2)
		}
		return out
	default:
		return val
	}
}

// Value round-trips an arbitrary struct through JSON, redacts every
// string leaf, and unmarshals back into a generic map. Used by the
// checkpoint store and audit log, whose snapshots are plain structs
// with nested string fields that may carry secrets.
func Value(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	red := JSON(m)
	return red.(map[string]any), nil
}
