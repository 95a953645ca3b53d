package validation

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ValidationError represents a single validation error for a field or key.
type ValidationError struct {
	Field   string         // Field name (for UI mapping)
	Rule    string         // Rule that was violated (e.g., "Required", "Digits")
	Message string         // Human-readable message
	Params  map[string]any // Rule parameters (e.g., {"count": 9})
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsZero reports whether e is the empty (passing) result.
func (e ValidationError) IsZero() bool {
	return e.Field == "" && e.Rule == "" && e.Message == ""
}

// Check is a deferred validator. A zero ValidationError means it passed.
type Check func() ValidationError

// FirstFailure runs checks in order and stops at the first one that fails.
func FirstFailure(checks ...Check) (ValidationError, bool) {
	for _, check := range checks {
		if err := check(); !err.IsZero() {
			return err, true
		}
	}
	return ValidationError{}, false
}

// --- Predicate functions ---

var nineDigits = regexp.MustCompile(`^\d{9}$`)

func digitsPattern(n int) *regexp.Regexp {
	if n == 9 {
		return nineDigits
	}
	return regexp.MustCompile(fmt.Sprintf(`^\d{%d}$`, n))
}

// IsRequired checks if a string is not empty after trimming.
func IsRequired(value string) bool {
	return strings.TrimSpace(value) != ""
}

// HasExactDigits checks that value is exactly n ASCII decimal digits, untrimmed.
func HasExactDigits(value string, n int) bool {
	return digitsPattern(n).MatchString(value)
}

// IsPositiveNumber checks that value parses as a finite number greater than zero.
// Surrounding whitespace is ignored.
func IsPositiveNumber(value string) bool {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f > 0
}

// --- Validator functions ---

// RequiredString validates that a string field is not empty.
func RequiredString(field, value string) ValidationError {
	if !IsRequired(value) {
		return ValidationError{Field: field, Rule: "Required", Message: "is required"}
	}
	return ValidationError{}
}

// ExactDigits validates that a field is non-empty and holds exactly n digits.
func ExactDigits(field, value string, n int) ValidationError {
	if !IsRequired(value) || !HasExactDigits(value, n) {
		return ValidationError{
			Field:   field,
			Rule:    "Digits",
			Message: fmt.Sprintf("must be exactly %d digits", n),
			Params:  map[string]any{"count": n},
		}
	}
	return ValidationError{}
}

// PositiveNumber validates that a field is non-empty and numerically above zero.
func PositiveNumber(field, value string) ValidationError {
	if !IsRequired(value) || !IsPositiveNumber(value) {
		return ValidationError{Field: field, Rule: "Positive", Message: "must be a number greater than zero"}
	}
	return ValidationError{}
}
