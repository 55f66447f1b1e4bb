// Package validate runs small ordered chains of field rules.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/and161185/whosfree/internal/errs"
)

// Rule checks one condition and returns a human-readable problem, or "" when satisfied.
type Rule func() string

// Chain evaluates rules in order and stops at the first failure.
// The failure is wrapped with errs.ErrValidation.
func Chain(rules ...Rule) error {
	for _, r := range rules {
		if msg := r(); msg != "" {
			return fmt.Errorf("%w: %s", errs.ErrValidation, msg)
		}
	}
	return nil
}

// Required fails when s is blank.
func Required(field, s string) Rule {
	return func() string {
		if strings.TrimSpace(s) == "" {
			return field + " is required"
		}
		return ""
	}
}

// MaxLen fails when s has more than n runes.
func MaxLen(field, s string, n int) Rule {
	return func() string {
		if utf8.RuneCountInString(s) > n {
			return fmt.Sprintf("%s must be at most %d characters", field, n)
		}
		return ""
	}
}

// MinLen fails when s has fewer than n runes.
func MinLen(field, s string, n int) Rule {
	return func() string {
		if utf8.RuneCountInString(s) < n {
			return fmt.Sprintf("%s must be at least %d characters", field, n)
		}
		return ""
	}
}

// Email fails when s is not a bare address.
func Email(field, s string) Rule {
	return func() string {
		a, err := mail.ParseAddress(s)
		if err != nil || a.Address != s {
			return field + " is not a valid email address"
		}
		return ""
	}
}

// After fails unless end is strictly after start.
func After(field string, start, end time.Time) Rule {
	return func() string {
		if start.IsZero() || end.IsZero() {
			return "start and end are required"
		}
		if !end.After(start) {
			return field + " must be after start"
		}
		return ""
	}
}

// Check fails with msg when ok is false.
func Check(ok bool, msg string) Rule {
	return func() string {
		if !ok {
			return msg
		}
		return ""
	}
}
