// Package tally holds the pure input rules of the counting domain: userId
// normalization, amount coercion and key derivation.
package tally

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DefaultAmount is applied whenever an amount is missing or unusable.
const DefaultAmount int64 = 1

// NormalizeUserID trims and lower-cases a client supplied identifier so the
// same person never fragments into several leaderboard entries.
func NormalizeUserID(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ParseUserID validates a decoded JSON value as a userId. Only non-empty
// strings are accepted; the result is normalized.
func ParseUserID(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", ErrInvalidArgument
	}
	id := NormalizeUserID(s)
	if id == "" {
		return "", ErrInvalidArgument
	}
	return id, nil
}

// CoerceAmount converts a decoded JSON value into a counter delta.
//
// Missing, non-numeric, zero and non-finite values become DefaultAmount.
// Fractions are truncated toward zero, and a truncation to zero also becomes
// DefaultAmount. Negative values pass through unchanged.
func CoerceAmount(v any) int64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return DefaultAmount
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return DefaultAmount
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return DefaultAmount
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return DefaultAmount
		}
		f = parsed
	default:
		return DefaultAmount
	}
	return fromFloat(f)
}

func fromFloat(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return DefaultAmount
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t <= math.MinInt64 {
		return DefaultAmount
	}
	n := int64(t)
	if n == 0 {
		return DefaultAmount
	}
	return n
}

// UserKey derives the counter key of a normalized userId from a format such
// as "user:%s:bananas".
func UserKey(format, userID string) string {
	return strings.Replace(format, "%s", userID, 1)
}
