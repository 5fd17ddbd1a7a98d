package leaderboard

import (
	"context"
	"sort"
	"time"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

// Aggregator computes ranked point totals over the record store. It is a pure
// read-side projection: no state of its own, nothing is mutated.
type Aggregator struct {
	repo        store.Repo
	includeZero bool // rank active participants with no records in the window
}

// New creates an Aggregator. includeZero controls whether active participants
// without any record in the window appear with a total of 0 instead of being
// dropped.
func New(repo store.Repo, includeZero bool) *Aggregator {
	return &Aggregator{repo: repo, includeZero: includeZero}
}

// Rank returns leaderboard entries for the window, ordered by total points
// descending with ties broken by participant id ascending. Only active
// participants are ranked; records of former participants are retained in the
// store but not shown. now anchors the "last N days" window.
func (a *Aggregator) Rank(ctx context.Context, w domain.Window, now time.Time) ([]domain.LeaderboardEntry, error) {
	participants, err := a.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var from domain.Date
	if !w.AllTime() {
		// The window is anchored to the UTC calendar date so every participant
		// sees the same cutoff regardless of their own timezone.
		from = domain.DateOf(now.UTC()).AddDays(-(w.Days - 1))
	}
	records, err := a.repo.QueryRange(ctx, 0, from, "")
	if err != nil {
		return nil, err
	}

	totals := make(map[int64]int)
	nights := make(map[int64]int)
	for _, r := range records {
		totals[r.ParticipantID] += r.Points
		nights[r.ParticipantID]++
	}

	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		n, has := nights[p.ID]
		if !has && !a.includeZero {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			ParticipantID: p.ID,
			Username:      p.Username,
			Total:         totals[p.ID],
			Nights:        n,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Total != entries[j].Total {
			return entries[i].Total > entries[j].Total
		}
		return entries[i].ParticipantID < entries[j].ParticipantID
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}
