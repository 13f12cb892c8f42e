package cipher

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/RowanDark/cipherlab/internal/cipherr"
)

// Parameter values arrive from JSON bodies (float64, json.Number), YAML
// recipes (int) and CLI flags (string). The helpers below accept all three.

func stringParam(op string, params map[string]interface{}, name string) (string, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return "", cipherr.Validationf(op, "missing parameter %q", name)
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case int, int64, float64:
		return strings.TrimSpace(strconv.FormatFloat(toFloat(v), 'f', -1, 64)), nil
	default:
		return "", cipherr.Validationf(op, "parameter %q must be a string, got %T", name, raw)
	}
}

func optionalStringParam(op string, params map[string]interface{}, name, fallback string) (string, error) {
	if _, ok := params[name]; !ok {
		return fallback, nil
	}
	return stringParam(op, params, name)
}

func intParam(op string, params map[string]interface{}, name string) (int64, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return 0, cipherr.Validationf(op, "missing parameter %q", name)
	}
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) || math.Abs(v) > 1<<53 {
			return 0, cipherr.Validationf(op, "parameter %q must be an integer, got %v", name, v)
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, cipherr.Validationf(op, "parameter %q must be an integer, got %q", name, v.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, cipherr.Validationf(op, "parameter %q must be an integer, got %q", name, v)
		}
		return n, nil
	default:
		return 0, cipherr.Validationf(op, "parameter %q must be an integer, got %T", name, raw)
	}
}

func boolParam(op string, params map[string]interface{}, name string, fallback bool) (bool, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, cipherr.Validationf(op, "parameter %q must be a boolean, got %q", name, v)
		}
		return b, nil
	default:
		return false, cipherr.Validationf(op, "parameter %q must be a boolean, got %T", name, raw)
	}
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
