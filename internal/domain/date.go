package domain

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a local calendar date in ISO form (YYYY-MM-DD). The textual form
// sorts chronologically, which the store relies on for range queries.
type Date string

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return "", fmt.Errorf("%w: expected YYYY-MM-DD, got %q", ErrInvalidTime, s)
	}
	return Date(s), nil
}

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(dateLayout))
}

// Before reports whether d sorts before other.
func (d Date) Before(other Date) bool { return d < other }

func (d Date) String() string { return string(d) }
