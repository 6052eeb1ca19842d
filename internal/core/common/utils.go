package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseJSON cleans and unmarshals a JSON object embedded in s into a type T.
// It tolerates surrounding markdown or prose, as LLM answers often carry.
func ParseJSON[T any](s string) (T, error) {
	var zero T

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 {
		return zero, fmt.Errorf("no JSON object found in response (missing '{')")
	}
	if end < start {
		return zero, fmt.Errorf("no JSON object found in response (missing '}')")
	}
	jsonStr := s[start : end+1]

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, jsonStr)
	}
	return result, nil
}

// ExtractScalar returns the bare string form of a backend scalar.
//
// Backends emit the same field either bare ("52", 52, true) or wrapped in a
// SPARQL-binding object ({"value": "52", "type": "literal"}). Both shapes yield
// the same string. ok is false for nil, for a wrapper without "value", and for
// composite values that are not scalars.
func ExtractScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]any:
		inner, ok := t["value"]
		if !ok {
			return "", false
		}
		return ExtractScalar(inner)
	case map[string]string:
		inner, ok := t["value"]
		return inner, ok
	default:
		return "", false
	}
}

// ExtractFields flattens a record into bare strings, dropping null and
// non-scalar values so that the resulting keys are exactly the applicable ones.
func ExtractFields(record map[string]any) map[string]string {
	out := make(map[string]string, len(record))
	for k, v := range record {
		if s, ok := ExtractScalar(v); ok {
			out[k] = s
		}
	}
	return out
}

// ParseFloat reads a scalar as a number, accepting both wire shapes.
func ParseFloat(v any) (float64, bool) {
	s, ok := ExtractScalar(v)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
