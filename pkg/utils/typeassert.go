// Package utils provides helpers for type assertions, identifiers, and the
// loosely-typed data bags that travel inside agent messages.
package utils

import "fmt"

// SafeAssert safely performs type assertion and returns the value and success status.
func SafeAssert[T any](value any) (T, bool) {
	if v, ok := value.(T); ok {
		return v, true
	}
	var zero T
	return zero, false
}

// GetMapField safely gets a field from a map[string]any and asserts its type.
func GetMapField[T any](m map[string]any, key string) (T, error) {
	var zero T
	value, exists := m[key]
	if !exists {
		return zero, fmt.Errorf("field '%s' not found in map", key)
	}

	if typedValue, ok := value.(T); ok {
		return typedValue, nil
	}

	return zero, fmt.Errorf("field '%s' expected type %T, got %T", key, zero, value)
}

// GetMapFieldOr safely gets a field from a map[string]any with a default value.
func GetMapFieldOr[T any](m map[string]any, key string, defaultValue T) T {
	if value, err := GetMapField[T](m, key); err == nil {
		return value
	}
	return defaultValue
}

// GetStringField returns a non-empty string field from a data bag.
func GetStringField(m map[string]any, key string) (string, error) {
	s, err := GetMapField[string](m, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("field '%s' is empty", key)
	}
	return s, nil
}

// GetNumberField returns a numeric field from a data bag. JSON decoding
// yields float64, but callers that built the bag in Go may have stored an
// int, so both are accepted.
func GetNumberField(m map[string]any, key string) (float64, error) {
	value, exists := m[key]
	if !exists {
		return 0, fmt.Errorf("field '%s' not found in map", key)
	}
	switch n := value.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field '%s' expected number, got %T", key, value)
	}
}

// GetStringMapField returns a nested map field, or an empty map when the
// key is absent.
func GetStringMapField(m map[string]any, key string) (map[string]any, error) {
	value, exists := m[key]
	if !exists || value == nil {
		return map[string]any{}, nil
	}
	if nested, ok := value.(map[string]any); ok {
		return nested, nil
	}
	return nil, fmt.Errorf("field '%s' expected map[string]any, got %T", key, value)
}
