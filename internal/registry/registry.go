package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

// Notifier receives trigger maintenance signals after registry mutations.
// The scheduler implements it.
type Notifier interface {
	Reschedule(id int64)
	Cancel(id int64)
}

// Registry owns the participant set. It is the single source of truth for
// scheduling: the scheduler's trigger set is derived from it and can be
// rebuilt at any time. Mutations are serialized under one mutex, which
// trivially satisfies per-participant ordering.
type Registry struct {
	repo store.Repo
	log  *zap.Logger

	mu       sync.Mutex
	notifier Notifier
}

// New creates a Registry over the given store.
func New(repo store.Repo, log *zap.Logger) *Registry {
	return &Registry{repo: repo, log: log}
}

// SetNotifier attaches the scheduler. Called once during wiring; the registry
// and the scheduler reference each other, so this cannot happen in New.
func (g *Registry) SetNotifier(n Notifier) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.notifier = n
}

// Join creates a participant or reactivates an inactive one. Validation
// happens before any write, so a failed Join leaves no partial state.
func (g *Registry) Join(ctx context.Context, id int64, username, tz string, target domain.TimeOfDay) (*domain.Participant, error) {
	canonTZ, err := domain.ValidateTZ(tz)
	if err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, fmt.Errorf("%w: target bedtime out of range", domain.ErrInvalidTime)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	p, err := g.repo.GetParticipant(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &domain.Participant{
			ID:       id,
			Username: username,
			TZ:       canonTZ,
			Target:   target,
			Active:   true,
			JoinedAt: now,
		}
	case err != nil:
		return nil, err
	default:
		// Rejoin reactivates the existing row; history stays intact.
		p.Username = username
		p.TZ = canonTZ
		p.Target = target
		p.Active = true
		p.LeftAt = nil
	}

	if err := g.repo.UpsertParticipant(ctx, p); err != nil {
		return nil, err
	}
	g.log.Info("participant joined",
		zap.Int64("id", id), zap.String("tz", canonTZ), zap.String("target", target.String()))
	if g.notifier != nil {
		g.notifier.Reschedule(id)
	}
	return p, nil
}

// Unjoin marks a participant inactive and cancels its pending trigger.
// Records are retained for leaderboard history.
func (g *Registry) Unjoin(ctx context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.repo.GetParticipant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotActive
	}
	if err != nil {
		return err
	}
	if !p.Active {
		return domain.ErrNotActive
	}

	if err := g.repo.SetActive(ctx, id, false, time.Now().UTC()); err != nil {
		return err
	}
	g.log.Info("participant left", zap.Int64("id", id))
	if g.notifier != nil {
		g.notifier.Cancel(id)
	}
	return nil
}

// UpdateConfig changes timezone and/or target bedtime. Nil arguments keep the
// current value. An active participant gets its trigger recomputed.
func (g *Registry) UpdateConfig(ctx context.Context, id int64, tz *string, target *domain.TimeOfDay) (*domain.Participant, error) {
	var canonTZ string
	if tz != nil {
		var err error
		canonTZ, err = domain.ValidateTZ(*tz)
		if err != nil {
			return nil, err
		}
	}
	if target != nil && !target.Valid() {
		return nil, fmt.Errorf("%w: target bedtime out of range", domain.ErrInvalidTime)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.repo.GetParticipant(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotActive
	}
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, domain.ErrNotActive
	}

	if tz != nil {
		p.TZ = canonTZ
	}
	if target != nil {
		p.Target = *target
	}
	if err := g.repo.UpsertParticipant(ctx, p); err != nil {
		return nil, err
	}
	g.log.Info("participant config updated",
		zap.Int64("id", id), zap.String("tz", p.TZ), zap.String("target", p.Target.String()))
	if g.notifier != nil {
		g.notifier.Reschedule(id)
	}
	return p, nil
}

// Get returns a participant by id, active or not.
func (g *Registry) Get(ctx context.Context, id int64) (*domain.Participant, error) {
	return g.repo.GetParticipant(ctx, id)
}

// ListActive returns all active participants.
func (g *Registry) ListActive(ctx context.Context) ([]domain.Participant, error) {
	return g.repo.ListActive(ctx)
}
