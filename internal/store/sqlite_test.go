package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func testParticipant(id int64) *domain.Participant {
	return &domain.Participant{
		ID:       id,
		Username: "tester",
		TZ:       "UTC",
		Target:   23 * 60,
		Active:   true,
		JoinedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestParticipantRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	p := testParticipant(42)
	if err := repo.UpsertParticipant(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := repo.GetParticipant(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TZ != "UTC" || got.Target != 23*60 || !got.Active || got.Username != "tester" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.LeftAt != nil || got.LastPrompt != "" {
		t.Fatalf("unexpected nullable fields: %+v", got)
	}
}

func TestGetParticipant_NotFound(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.GetParticipant(context.Background(), 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSetActive(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertParticipant(ctx, testParticipant(1)); err != nil {
		t.Fatal(err)
	}
	left := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	if err := repo.SetActive(ctx, 1, false, left); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	got, err := repo.GetParticipant(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active {
		t.Fatal("still active after SetActive(false)")
	}
	if got.LeftAt == nil || !got.LeftAt.Equal(left) {
		t.Fatalf("left_at = %v, want %v", got.LeftAt, left)
	}

	// Reactivation clears left_at.
	if err := repo.SetActive(ctx, 1, true, time.Now()); err != nil {
		t.Fatal(err)
	}
	got, _ = repo.GetParticipant(ctx, 1)
	if !got.Active || got.LeftAt != nil {
		t.Fatalf("reactivation: %+v", got)
	}

	if err := repo.SetActive(ctx, 99, false, left); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id: want ErrNotFound, got %v", err)
	}
}

func TestListActive(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, id := range []int64{3, 1, 2} {
		if err := repo.UpsertParticipant(ctx, testParticipant(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := repo.SetActive(ctx, 2, false, time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("ListActive = %+v", got)
	}
}

func TestUpsertRecord_LastWriteWins(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertParticipant(ctx, testParticipant(1)); err != nil {
		t.Fatal(err)
	}

	first := domain.TimeOfDay(23*60 + 45)
	rec := &domain.SleepRecord{ParticipantID: 1, Date: "2025-05-05", Reported: &first, Points: 5}
	if err := repo.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	second := domain.TimeOfDay(23 * 60)
	rec = &domain.SleepRecord{ParticipantID: 1, Date: "2025-05-05", Reported: &second, Points: 6}
	if err := repo.UpsertRecord(ctx, rec); err != nil {
		t.Fatal(err)
	}

	all, err := repo.QueryRange(ctx, 1, "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("duplicate upsert created %d rows", len(all))
	}
	if all[0].Points != 6 || all[0].Reported == nil || *all[0].Reported != second {
		t.Fatalf("last write lost: %+v", all[0])
	}
}

func TestRecordMissedSentinel(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertParticipant(ctx, testParticipant(1)); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertRecord(ctx, &domain.SleepRecord{ParticipantID: 1, Date: "2025-05-05", Points: 0}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetRecord(ctx, 1, "2025-05-05")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Missed() {
		t.Fatalf("sentinel not preserved: %+v", got)
	}
}

func TestQueryRange(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		if err := repo.UpsertParticipant(ctx, testParticipant(id)); err != nil {
			t.Fatal(err)
		}
	}
	tod := domain.TimeOfDay(23 * 60)
	recs := []domain.SleepRecord{
		{ParticipantID: 1, Date: "2025-05-03", Reported: &tod, Points: 6},
		{ParticipantID: 2, Date: "2025-05-03", Reported: &tod, Points: 4},
		{ParticipantID: 1, Date: "2025-05-04", Reported: &tod, Points: 5},
		{ParticipantID: 1, Date: "2025-05-06", Reported: &tod, Points: 2},
	}
	for i := range recs {
		if err := repo.UpsertRecord(ctx, &recs[i]); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.QueryRange(ctx, 0, "2025-05-03", "2025-05-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 records, got %d", len(got))
	}
	// date asc, then participant id asc
	if got[0].ParticipantID != 1 || got[1].ParticipantID != 2 || got[2].Date != "2025-05-04" {
		t.Fatalf("ordering: %+v", got)
	}

	only1, err := repo.QueryRange(ctx, 1, "2025-05-04", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(only1) != 2 {
		t.Fatalf("participant filter: %+v", only1)
	}
}

func TestSetLastPrompt(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if err := repo.UpsertParticipant(ctx, testParticipant(1)); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetLastPrompt(ctx, 1, "2025-05-05"); err != nil {
		t.Fatal(err)
	}
	got, err := repo.GetParticipant(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastPrompt != "2025-05-05" {
		t.Fatalf("last prompt = %q", got.LastPrompt)
	}
}
