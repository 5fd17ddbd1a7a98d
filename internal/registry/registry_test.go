package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

type notifierSpy struct {
	rescheduled []int64
	canceled    []int64
}

func (n *notifierSpy) Reschedule(id int64) { n.rescheduled = append(n.rescheduled, id) }
func (n *notifierSpy) Cancel(id int64)     { n.canceled = append(n.canceled, id) }

func newTestRegistry(t *testing.T) (*Registry, *notifierSpy) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	spy := &notifierSpy{}
	reg := New(repo, zap.NewNop())
	reg.SetNotifier(spy)
	return reg, spy
}

func TestJoin_InvalidTimezoneLeavesNoState(t *testing.T) {
	reg, spy := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Join(ctx, 1, "b", "Invalid/Zone", 23*60)
	if !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Fatalf("want ErrInvalidTimezone, got %v", err)
	}
	if _, err := reg.Get(ctx, 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("failed join left partial state")
	}
	if len(spy.rescheduled) != 0 {
		t.Fatal("failed join signaled scheduler")
	}
}

func TestJoin_InvalidTarget(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Join(context.Background(), 1, "b", "UTC", domain.TimeOfDay(24*60))
	if !errors.Is(err, domain.ErrInvalidTime) {
		t.Fatalf("want ErrInvalidTime, got %v", err)
	}
}

func TestJoinUnjoinRejoin(t *testing.T) {
	reg, spy := newTestRegistry(t)
	ctx := context.Background()

	p, err := reg.Join(ctx, 1, "alice", "UTC", 23*60)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Active || p.TZ != "UTC" {
		t.Fatalf("join: %+v", p)
	}
	if len(spy.rescheduled) != 1 || spy.rescheduled[0] != 1 {
		t.Fatalf("scheduler not signaled on join: %v", spy.rescheduled)
	}

	if err := reg.Unjoin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if len(spy.canceled) != 1 {
		t.Fatalf("scheduler not signaled on unjoin: %v", spy.canceled)
	}
	got, err := reg.Get(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active || got.LeftAt == nil {
		t.Fatalf("unjoin kept participant active: %+v", got)
	}

	// Rejoin reactivates the same row with new settings.
	p, err = reg.Join(ctx, 1, "alice", "Asia/Tokyo", 22*60)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Active || p.TZ != "Asia/Tokyo" || p.Target != 22*60 || p.LeftAt != nil {
		t.Fatalf("rejoin: %+v", p)
	}
}

func TestUnjoin_NotActive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	if err := reg.Unjoin(ctx, 7); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("unknown id: want ErrNotActive, got %v", err)
	}

	if _, err := reg.Join(ctx, 1, "a", "UTC", 23*60); err != nil {
		t.Fatal(err)
	}
	if err := reg.Unjoin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := reg.Unjoin(ctx, 1); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("double unjoin: want ErrNotActive, got %v", err)
	}
}

func TestUpdateConfig(t *testing.T) {
	reg, spy := newTestRegistry(t)
	ctx := context.Background()

	if _, err := reg.Join(ctx, 1, "a", "UTC", 23*60); err != nil {
		t.Fatal(err)
	}

	tz := "Europe/London"
	target := domain.TimeOfDay(22 * 60)
	p, err := reg.UpdateConfig(ctx, 1, &tz, &target)
	if err != nil {
		t.Fatal(err)
	}
	if p.TZ != "Europe/London" || p.Target != 22*60 {
		t.Fatalf("update: %+v", p)
	}
	if len(spy.rescheduled) != 2 {
		t.Fatalf("update did not signal reschedule: %v", spy.rescheduled)
	}

	// Partial update keeps the other field.
	only := domain.TimeOfDay(21 * 60)
	p, err = reg.UpdateConfig(ctx, 1, nil, &only)
	if err != nil {
		t.Fatal(err)
	}
	if p.TZ != "Europe/London" || p.Target != 21*60 {
		t.Fatalf("partial update: %+v", p)
	}

	bad := "Not/AZone"
	if _, err := reg.UpdateConfig(ctx, 1, &bad, nil); !errors.Is(err, domain.ErrInvalidTimezone) {
		t.Fatalf("want ErrInvalidTimezone, got %v", err)
	}

	if err := reg.Unjoin(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.UpdateConfig(ctx, 1, &tz, nil); !errors.Is(err, domain.ErrNotActive) {
		t.Fatalf("inactive update: want ErrNotActive, got %v", err)
	}
}
