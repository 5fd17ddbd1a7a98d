package domain

// MaxPoints is awarded for going to sleep at or before the target bedtime.
const MaxPoints = 6

// Score maps a reported bedtime against the target bedtime to points.
//
// On time or earlier earns MaxPoints. Every started hour of delay subtracts
// one point, with no lower bound: long delays go negative. A reported time
// that wraps past midnight (target 23:00, reported 01:30) counts as delay
// continuing into the next calendar day; when both readings of the interval
// are possible, the shorter forward delay wins, so a forward gap of more than
// twelve hours is treated as an early bedtime.
func Score(target, reported TimeOfDay) (int, error) {
	if !target.Valid() || !reported.Valid() {
		return 0, ErrInvalidTime
	}
	delay := int(reported) - int(target)
	if delay < 0 {
		delay += minutesPerDay
	}
	if delay == 0 || delay > minutesPerDay/2 {
		return MaxPoints, nil
	}
	hours := (delay + 59) / 60 // any started hour counts in full
	return MaxPoints - hours, nil
}
