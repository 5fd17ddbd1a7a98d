package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/leaderboard"
	"github.com/all-mute/tg-sleepwatch/internal/registry"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

// Effects are outbound notifications the engine emits for the transport to
// deliver. Implementations must tolerate being called concurrently for
// different participants.
type Effects interface {
	// PromptDue asks the participant what time they fell asleep; date is the
	// local calendar date the report will be recorded under.
	PromptDue(ctx context.Context, p domain.Participant, date domain.Date)
	// ScoreComputed announces a freshly scored report.
	ScoreComputed(ctx context.Context, p domain.Participant, rec domain.SleepRecord)
}

// DuplicatePolicy decides what happens when a report arrives for a date that
// already has a record.
type DuplicatePolicy string

const (
	// DuplicateOverwrite replaces the existing record (the default).
	DuplicateOverwrite DuplicatePolicy = "overwrite"
	// DuplicateReject refuses the report with ErrDuplicateReport.
	DuplicateReject DuplicatePolicy = "reject"
)

// ParseDuplicatePolicy validates a policy string from configuration.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case DuplicateOverwrite, DuplicateReject:
		return DuplicatePolicy(s), nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q", s)
	}
}

// Service is the daily challenge engine facade: it consumes fired triggers,
// turns reports into scored records, and answers leaderboard and history
// queries. The registry remains the single source of truth for who is active;
// an in-flight prompt for a participant that left is discarded at dispatch.
type Service struct {
	registry     *registry.Registry
	repo         store.Repo
	agg          *leaderboard.Aggregator
	log          *zap.Logger
	dupPolicy    DuplicatePolicy
	missedPoints int

	effects Effects
}

// New creates the engine. missedPoints is the fixed value recorded for a
// prompted night that was never answered by the cutoff (the next day's
// prompt).
func New(reg *registry.Registry, repo store.Repo, agg *leaderboard.Aggregator, dupPolicy DuplicatePolicy, missedPoints int, log *zap.Logger) *Service {
	return &Service{
		registry:     reg,
		repo:         repo,
		agg:          agg,
		log:          log,
		dupPolicy:    dupPolicy,
		missedPoints: missedPoints,
	}
}

// SetEffects attaches the transport. Called once during wiring; the transport
// also calls into the Service, so this cannot happen in New.
func (s *Service) SetEffects(e Effects) { s.effects = e }

// TriggerFired implements scheduler.Dispatcher. It closes out the previously
// prompted night if it went unanswered, then emits the prompt for date.
func (s *Service) TriggerFired(ctx context.Context, id int64, date domain.Date) {
	p, err := s.registry.Get(ctx, id)
	if err != nil || !p.Active {
		// Unjoin raced with the firing; the registry wins and the prompt is dropped.
		s.log.Debug("prompt suppressed", zap.Int64("id", id), zap.String("date", date.String()))
		return
	}

	if prev := p.LastPrompt; prev != "" && prev.Before(date) {
		if err := s.closeOutMissed(ctx, p.ID, prev); err != nil {
			s.log.Error("missed closeout failed", zap.Int64("id", id), zap.Error(err))
		}
	}

	if err := s.repo.SetLastPrompt(ctx, id, date); err != nil {
		s.log.Error("record prompt date failed", zap.Int64("id", id), zap.Error(err))
		return
	}

	s.log.Info("prompt due", zap.Int64("id", id), zap.String("date", date.String()))
	if s.effects != nil {
		s.effects.PromptDue(ctx, *p, date)
	}
}

// closeOutMissed writes the missed sentinel for a prompted date that has no
// record, so leaderboard totals stay meaningful across all active days.
func (s *Service) closeOutMissed(ctx context.Context, id int64, date domain.Date) error {
	_, err := s.repo.GetRecord(ctx, id, date)
	if err == nil {
		return nil // answered in time
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.log.Info("report missed", zap.Int64("id", id), zap.String("date", date.String()), zap.Int("points", s.missedPoints))
	return s.repo.UpsertRecord(ctx, &domain.SleepRecord{
		ParticipantID: id,
		Date:          date,
		Reported:      nil,
		Points:        s.missedPoints,
		CreatedAt:     time.Now().UTC(),
	})
}

// Report scores a reported bedtime and stores it. An empty date means "the
// night I was last asked about", falling back to the current local date for
// participants who report before their first prompt. A real report always
// replaces a missed sentinel regardless of the duplicate policy.
func (s *Service) Report(ctx context.Context, id int64, date domain.Date, reported domain.TimeOfDay) (*domain.SleepRecord, error) {
	p, err := s.registry.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotActive
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrNotActive
	}

	if date == "" {
		date = p.LastPrompt
	}
	if date == "" {
		date, err = domain.LocalDate(time.Now(), p.TZ)
		if err != nil {
			return nil, err
		}
	}

	points, err := domain.Score(p.Target, reported)
	if err != nil {
		return nil, err
	}

	if s.dupPolicy == DuplicateReject {
		existing, err := s.repo.GetRecord(ctx, id, date)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		if err == nil && !existing.Missed() {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateReport, date)
		}
	}

	rec := &domain.SleepRecord{
		ParticipantID: id,
		Date:          date,
		Reported:      &reported,
		Points:        points,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.UpsertRecord(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("sleep time recorded",
		zap.Int64("id", id), zap.String("date", date.String()),
		zap.String("reported", reported.String()), zap.Int("points", points))
	if s.effects != nil {
		s.effects.ScoreComputed(ctx, *p, *rec)
	}
	return rec, nil
}

// Leaderboard ranks active participants over the window.
func (s *Service) Leaderboard(ctx context.Context, w domain.Window) ([]domain.LeaderboardEntry, error) {
	return s.agg.Rank(ctx, w, time.Now())
}

// History returns a participant's records for the last `days` days (0 for the
// full history), oldest first.
func (s *Service) History(ctx context.Context, id int64, days int) ([]domain.SleepRecord, error) {
	p, err := s.registry.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotActive
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrNotActive
	}

	var from domain.Date
	if days > 0 {
		// Anchored to the UTC calendar date, matching the leaderboard window.
		from = domain.DateOf(time.Now().UTC()).AddDays(-(days - 1))
	}
	return s.repo.QueryRange(ctx, id, from, "")
}
