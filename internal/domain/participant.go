package domain

import "time"

// Participant is a registered member of the sleep challenge.
type Participant struct {
	ID         int64  // telegram chat/user id
	Username   string // display name for leaderboard output
	TZ         string // IANA timezone identifier, stored as given
	Target     TimeOfDay
	Active     bool
	JoinedAt   time.Time  // UTC
	LeftAt     *time.Time // UTC, nil while active
	LastPrompt Date       // last local date a prompt was sent for; empty if never
}

// SleepRecord is one scored night. Reported is nil for the missed-report
// sentinel written when a participant never answered a prompt.
type SleepRecord struct {
	ParticipantID int64
	Date          Date
	Reported      *TimeOfDay
	Points        int
	CreatedAt     time.Time // UTC
}

// Missed reports whether the record is the missed-report sentinel.
func (r SleepRecord) Missed() bool { return r.Reported == nil }

// LeaderboardEntry is a read-side projection: one ranked row of totals.
type LeaderboardEntry struct {
	Rank          int
	ParticipantID int64
	Username      string
	Total         int
	Nights        int // recorded nights inside the window
}

// Window selects the aggregation period for a leaderboard query.
// Days == 0 means all-time.
type Window struct {
	Days int
}

// AllTime covers the whole record history.
func AllTime() Window { return Window{} }

// LastDays covers the n most recent local days including today.
func LastDays(n int) Window { return Window{Days: n} }

// AllTime reports whether the window is unbounded.
func (w Window) AllTime() bool { return w.Days <= 0 }
