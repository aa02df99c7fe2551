package backend

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cast"
)

// section is one backend table of the grading document.
type section struct {
	backend string
	values  map[string]any
}

func (s section) fieldError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Backend: s.backend, Field: field, Message: fmt.Sprintf(format, args...)}
}

func (s section) requireString(key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", s.fieldError(key, "is missing")
	}
	str, ok := v.(string)
	if !ok {
		return "", s.fieldError(key, "should be a string")
	}
	if str == "" {
		return "", s.fieldError(key, "must not be empty")
	}
	return str, nil
}

func (s section) optionalString(key, fallback string) (string, error) {
	if _, ok := s.values[key]; !ok {
		return fallback, nil
	}
	return s.requireString(key)
}

// maxTimeoutSeconds is the largest timeout a time.Duration can hold.
const maxTimeoutSeconds = float64(math.MaxInt64) / float64(time.Second)

// timeout accepts a number of seconds, true (default) or false (unbounded).
func (s section) timeout() (time.Duration, bool, error) {
	v, ok := s.values["timeout"]
	if !ok {
		return DefaultTimeout, true, nil
	}
	switch t := v.(type) {
	case bool:
		if t {
			return DefaultTimeout, true, nil
		}
		return 0, false, nil
	case string, []any, map[string]any, nil:
		return 0, false, s.fieldError("timeout", "should be a number of seconds or a boolean")
	}
	secs, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, false, s.fieldError("timeout", "should be a number of seconds or a boolean")
	}
	if math.IsNaN(secs) || math.IsInf(secs, 0) || secs <= 0 {
		return 0, false, s.fieldError("timeout", "must be a positive number of seconds")
	}
	if secs >= maxTimeoutSeconds {
		return 0, false, s.fieldError("timeout", "must be less than %.0f seconds", maxTimeoutSeconds)
	}
	return time.Duration(secs * float64(time.Second)), true, nil
}

func (s section) args() ([]string, error) {
	v, ok := s.values["args"]
	if !ok {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, s.fieldError("args", "should be an array")
	}
	out := make([]string, 0, len(list))
	for i, item := range list {
		str, err := scalarString(item)
		if err != nil {
			return nil, s.fieldError("args", "element %d: %v", i, err)
		}
		out = append(out, str)
	}
	return out, nil
}

func (s section) stringMap(key string) (map[string]string, error) {
	v, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	table, ok := v.(map[string]any)
	if !ok {
		return nil, s.fieldError(key, "should be a table")
	}
	out := make(map[string]string, len(table))
	for k, item := range table {
		str, err := scalarString(item)
		if err != nil {
			return nil, s.fieldError(key, "entry %q: %v", k, err)
		}
		out[k] = str
	}
	return out, nil
}

// scalarString renders a flat document value as text. Nested structures are rejected.
func scalarString(v any) (string, error) {
	switch t := v.(type) {
	case []any, map[string]any, map[any]any:
		return "", fmt.Errorf("may not contain nested structures")
	case nil:
		return "", fmt.Errorf("may not be null")
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	}
	return cast.ToStringE(v)
}
