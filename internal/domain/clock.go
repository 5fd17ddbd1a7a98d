package domain

import (
	"fmt"
	"time"
)

// NextOccurrence returns the next absolute instant at or after now at which
// tod occurs on the wall clock of the given IANA timezone.
//
// DST handling: if tod does not exist on a given local day (spring-forward
// gap), the occurrence shifts forward past the gap to the nearest following
// valid instant; if it occurs twice (fall-back overlap), the first occurrence
// is used. The result is fully derived from (tz, tod, now), so it can be
// recomputed at any time, including after a restart.
func NextOccurrence(tz string, tod TimeOfDay, now time.Time) (time.Time, error) {
	if !tod.Valid() {
		return time.Time{}, fmt.Errorf("%w: %d minutes", ErrInvalidTime, int(tod))
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTimezone, tz)
	}

	localNow := now.In(loc)
	cand := atTimeOfDay(localNow, tod)
	if cand.Before(now) {
		// Today's occurrence already passed; take tomorrow's. Rebuilding from
		// the date keeps the wall-clock time stable across DST day-length changes.
		cand = atTimeOfDay(localNow.AddDate(0, 0, 1), tod)
	}
	return cand, nil
}

// atTimeOfDay constructs the instant at tod on the calendar day of base,
// in base's location.
func atTimeOfDay(base time.Time, tod TimeOfDay) time.Time {
	t := time.Date(base.Year(), base.Month(), base.Day(), tod.Hour(), tod.Minute(), 0, 0, base.Location())
	// When tod falls inside a spring-forward gap, time.Date lands on one side
	// of the transition and may pick the instant before it (02:30 on a US gap
	// day comes back as 01:30). Shift forward by the missing interval so the
	// occurrence never precedes the requested wall-clock time.
	if got := t.Hour()*60 + t.Minute(); got != int(tod) {
		if delta := int(tod) - got; delta > 0 {
			t = t.Add(time.Duration(delta) * time.Minute)
		}
	}
	return t
}

// LocalDate returns the calendar date of the instant t in the given timezone.
func LocalDate(t time.Time, tz string) (Date, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidTimezone, tz)
	}
	return DateOf(t.In(loc)), nil
}

// LocalizeTime formats t in the given timezone as HH:MM.
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidTimezone, tz)
	}
	return t.In(loc).Format("15:04"), nil
}
