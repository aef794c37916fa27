package validation

import "reflect"

// Result maps field names to typed values.
type Result map[string]any

// Set is a deduplicated collection kept in first-occurrence order.
type Set []any

// Contains reports whether v is an element of s.
func (s Set) Contains(v any) bool {
	for _, item := range s {
		if equal(item, v) {
			return true
		}
	}
	return false
}

func newSet(items []any) Set {
	out := make(Set, 0, len(items))
	for _, item := range items {
		if !out.Contains(item) {
			out = append(out, item)
		}
	}
	return out
}

// Tuple is an ordered, fixed collection.
type Tuple []any

// equal compares numbers by value regardless of their Go type and everything
// else structurally.
func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// number returns v as float64 when v is an integer or float. Booleans are not
// numbers.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
