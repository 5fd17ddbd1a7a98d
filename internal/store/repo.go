package store

import (
	"context"
	"errors"
	"time"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repo defines storage operations for participants and sleep records.
//
// Sleep records are keyed by (participant id, date): UpsertRecord is
// idempotent and last-write-wins for that key, so a repeated report can never
// create a second row for the same night.
type Repo interface {
	UpsertParticipant(ctx context.Context, p *domain.Participant) error
	GetParticipant(ctx context.Context, id int64) (*domain.Participant, error)
	ListActive(ctx context.Context) ([]domain.Participant, error)
	SetActive(ctx context.Context, id int64, active bool, at time.Time) error
	SetLastPrompt(ctx context.Context, id int64, date domain.Date) error

	UpsertRecord(ctx context.Context, rec *domain.SleepRecord) error
	GetRecord(ctx context.Context, id int64, date domain.Date) (*domain.SleepRecord, error)
	// QueryRange returns records with from <= date <= to, ordered by date then
	// participant id. participantID == 0 selects all participants; empty from/to
	// leave that bound open.
	QueryRange(ctx context.Context, participantID int64, from, to domain.Date) ([]domain.SleepRecord, error)

	Close() error
}
