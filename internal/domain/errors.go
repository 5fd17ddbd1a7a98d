package domain

import "errors"

var (
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrInvalidTime     = errors.New("invalid time of day")
	ErrNotActive       = errors.New("participant not active")
	ErrDuplicateReport = errors.New("sleep time already reported for this date")
)
