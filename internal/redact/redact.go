// Package redact masks key material and credentials before values reach
// logs, audit trails or the history store.
package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// Masked replaces every value that must not be persisted.
const Masked = "[REDACTED]"

// secretKeys are parameter and metadata names whose values are keys or
// credentials. Matching ignores case.
var secretKeys = map[string]struct{}{
	"key":           {},
	"keyword":       {},
	"d":             {},
	"p":             {},
	"q":             {},
	"phi":           {},
	"secret":        {},
	"jwt_secret":    {},
	"token":         {},
	"static_token":  {},
	"password":      {},
	"authorization": {},
}

var (
	kvSecretRe = regexp.MustCompile(`(?i)((?:token|secret|password|authorization)\s*[:=]\s*)(['\"]?)([^\s'\"]{4,})(['\"]?)`)
	bearerRe   = regexp.MustCompile(`(?i)\b(bearer)\s+([A-Za-z0-9._\-]{10,})`)
	jwtRe      = regexp.MustCompile(`\beyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]*`)
)

// IsSecretKey reports whether values stored under name are masked.
func IsSecretKey(name string) bool {
	_, ok := secretKeys[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// String masks bearer tokens, JWTs and key=value credentials inside free text.
func String(in string) string {
	if strings.TrimSpace(in) == "" {
		return in
	}
	masked := jwtRe.ReplaceAllString(in, Masked)
	masked = bearerRe.ReplaceAllString(masked, `$1 `+Masked)
	masked = kvSecretRe.ReplaceAllString(masked, `$1$2`+Masked+`$4`)
	return masked
}

// Interface redacts recognised sensitive values within nested structures.
func Interface(value any) any {
	switch v := value.(type) {
	case string:
		return String(v)
	case fmt.Stringer:
		return String(v.String())
	case []string:
		return Slice(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = Interface(elem)
		}
		return out
	case map[string]string:
		return MapString(v)
	case map[string]any:
		return Map(v)
	default:
		return value
	}
}

// Map returns a copy of in with secret keys masked and string values
// scrubbed. Nil and empty maps yield nil.
func Map(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if IsSecretKey(k) {
			out[k] = Masked
			continue
		}
		out[k] = Interface(v)
	}
	return out
}

// MapString is Map for string maps.
func MapString(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if IsSecretKey(k) {
			out[k] = Masked
			continue
		}
		out[k] = String(v)
	}
	return out
}

// Slice redacts sensitive values within a slice of strings.
func Slice(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = String(v)
	}
	return out
}
