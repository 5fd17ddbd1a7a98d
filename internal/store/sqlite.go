package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertParticipant inserts or updates a participant's full row by id.
func (r *SQLiteRepo) UpsertParticipant(ctx context.Context, p *domain.Participant) error {
	if p == nil {
		return errors.New("nil participant")
	}

	joined := p.JoinedAt.UTC().Unix()
	if p.JoinedAt.IsZero() {
		joined = time.Now().UTC().Unix()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO participants (
			id, username, tz, target_m, active, joined_at, left_at, last_prompt_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username         = excluded.username,
			tz               = excluded.tz,
			target_m         = excluded.target_m,
			active           = excluded.active,
			left_at          = excluded.left_at,
			last_prompt_date = excluded.last_prompt_date`,
		p.ID, p.Username, p.TZ, int(p.Target), boolToInt(p.Active),
		joined, toNullUnix(p.LeftAt), nullDate(p.LastPrompt),
	)
	return err
}

// GetParticipant returns a participant by id or ErrNotFound.
func (r *SQLiteRepo) GetParticipant(ctx context.Context, id int64) (*domain.Participant, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, tz, target_m, active, joined_at, left_at, last_prompt_date
		FROM participants
		WHERE id = ?`,
		id,
	)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ListActive returns all active participants ordered by id.
func (r *SQLiteRepo) ListActive(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, tz, target_m, active, joined_at, left_at, last_prompt_date
		FROM participants
		WHERE active = 1
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *p)
	}
	return res, rows.Err()
}

// SetActive flips the active flag; left_at is set on deactivation and cleared
// on reactivation.
func (r *SQLiteRepo) SetActive(ctx context.Context, id int64, active bool, at time.Time) error {
	var left sql.NullInt64
	if !active {
		left = sql.NullInt64{Int64: at.UTC().Unix(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET active = ?, left_at = ?
		WHERE id = ?`,
		boolToInt(active), left, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetLastPrompt records the last local date a prompt was dispatched for.
func (r *SQLiteRepo) SetLastPrompt(ctx context.Context, id int64, date domain.Date) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE participants
		SET last_prompt_date = ?
		WHERE id = ?`,
		string(date), id,
	)
	return err
}

// UpsertRecord inserts or overwrites the record for (participant, date).
func (r *SQLiteRepo) UpsertRecord(ctx context.Context, rec *domain.SleepRecord) error {
	if rec == nil {
		return errors.New("nil record")
	}
	created := rec.CreatedAt.UTC().Unix()
	if rec.CreatedAt.IsZero() {
		created = time.Now().UTC().Unix()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sleep_records (participant_id, date, reported_m, points, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(participant_id, date) DO UPDATE SET
			reported_m = excluded.reported_m,
			points     = excluded.points,
			created_at = excluded.created_at`,
		rec.ParticipantID, string(rec.Date), toNullMinutes(rec.Reported), rec.Points, created,
	)
	return err
}

// GetRecord returns the record for (participant, date) or ErrNotFound.
func (r *SQLiteRepo) GetRecord(ctx context.Context, id int64, date domain.Date) (*domain.SleepRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT participant_id, date, reported_m, points, created_at
		FROM sleep_records
		WHERE participant_id = ? AND date = ?`,
		id, string(date),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// QueryRange returns records in [from, to] ordered by date, then participant id.
func (r *SQLiteRepo) QueryRange(ctx context.Context, participantID int64, from, to domain.Date) ([]domain.SleepRecord, error) {
	q := `
		SELECT participant_id, date, reported_m, points, created_at
		FROM sleep_records
		WHERE 1=1`
	var args []any
	if participantID != 0 {
		q += " AND participant_id = ?"
		args = append(args, participantID)
	}
	if from != "" {
		q += " AND date >= ?"
		args = append(args, string(from))
	}
	if to != "" {
		q += " AND date <= ?"
		args = append(args, string(to))
	}
	q += " ORDER BY date ASC, participant_id ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.SleepRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (*domain.Participant, error) {
	var (
		id        int64
		username  string
		tz        string
		targetM   int
		activeInt int
		joinedAt  int64
		leftNS    sql.NullInt64
		promptNS  sql.NullString
	)
	if err := row.Scan(&id, &username, &tz, &targetM, &activeInt, &joinedAt, &leftNS, &promptNS); err != nil {
		return nil, err
	}
	p := &domain.Participant{
		ID:       id,
		Username: username,
		TZ:       tz,
		Target:   domain.TimeOfDay(targetM),
		Active:   activeInt != 0,
		JoinedAt: time.Unix(joinedAt, 0).UTC(),
		LeftAt:   fromNullUnix(leftNS),
	}
	if promptNS.Valid {
		p.LastPrompt = domain.Date(promptNS.String)
	}
	return p, nil
}

func scanRecord(row rowScanner) (*domain.SleepRecord, error) {
	var (
		id        int64
		date      string
		reportedN sql.NullInt64
		points    int
		createdAt int64
	)
	if err := row.Scan(&id, &date, &reportedN, &points, &createdAt); err != nil {
		return nil, err
	}
	return &domain.SleepRecord{
		ParticipantID: id,
		Date:          domain.Date(date),
		Reported:      fromNullMinutes(reportedN),
		Points:        points,
		CreatedAt:     time.Unix(createdAt, 0).UTC(),
	}, nil
}

func nullDate(d domain.Date) sql.NullString {
	if d == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(d), Valid: true}
}
