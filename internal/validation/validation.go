// Package validation collects field violations at the edit boundary.
package validation

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Violations maps a field name to a machine readable code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Err returns nil when there is nothing to report, an *Error otherwise.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &Error{Fields: v}
}

// Error is returned by services before any write when input is invalid.
type Error struct {
	Fields Violations
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func RequiredID(field string, id uint, v Violations) {
	if id == 0 {
		v[field] = "required"
	}
}

func PositiveFloat(field string, val float64, v Violations) {
	if val <= 0 {
		v[field] = "must_be_positive"
	}
}

func NonNegative(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v[field] = "must_not_be_negative"
	}
}

func RangeDecimal(field string, val, minVal, maxVal decimal.Decimal, v Violations) {
	if val.LessThan(minVal) || val.GreaterThan(maxVal) {
		v[field] = "out_of_range"
	}
}

// Currency accepts three upper-case letters (ISO 4217 style).
func Currency(field, value string, v Violations) {
	if len(value) != 3 {
		v[field] = "invalid_currency"
		return
	}
	for _, r := range value {
		if r < 'A' || r > 'Z' {
			v[field] = "invalid_currency"
			return
		}
	}
}

func MinLength(field, value string, n int, v Violations) {
	if len([]rune(value)) < n {
		v[field] = "too_short"
	}
}
