package util

import (
	"strconv"
)

// ParseInt parses a string to an integer, returning defaultValue if parsing fails
func ParseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}

// ParseIntParam parses a string to an integer, returning an error if parsing fails
func ParseIntParam(s string) (int, error) {
	return strconv.Atoi(s)
}

// ParseOptionalUint parses s as a positive ID. Empty input yields nil.
func ParseOptionalUint(s string) (*uint, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	id := uint(v)
	return &id, nil
}

// ClampLimit bounds a page size to [1, max], falling back to def when unset
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
