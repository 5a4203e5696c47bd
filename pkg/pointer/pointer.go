// Package pointer builds pointers to literal values, for optional fields such
// as ledger.Overrides.
package pointer

// To returns a pointer to a copy of value.
func To[T any](value T) *T {
	return &value
}

// Uint64 returns a pointer to the provided uint64 value
func Uint64(value uint64) *uint64 {
	return &value
}

// Float64 returns a pointer to the provided float64 value
func Float64(value float64) *float64 {
	return &value
}

// Bool returns a pointer to the provided bool value
func Bool(value bool) *bool {
	return &value
}

// ValueOrDefault returns the pointed to value if value is not nil, otherwise
// the default value
func ValueOrDefault[T any](value *T, defaultValue T) T {
	if value != nil {
		return *value
	}
	return defaultValue
}
