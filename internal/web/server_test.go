package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/challenge"
	"github.com/all-mute/tg-sleepwatch/internal/domain"
	"github.com/all-mute/tg-sleepwatch/internal/leaderboard"
	"github.com/all-mute/tg-sleepwatch/internal/registry"
	"github.com/all-mute/tg-sleepwatch/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, *challenge.Service) {
	t.Helper()
	repo, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	log := zap.NewNop()
	reg := registry.New(repo, log)
	agg := leaderboard.New(repo, true)
	svc := challenge.New(reg, repo, agg, challenge.DuplicateOverwrite, 0, log)

	srv := httptest.NewServer(NewRouter(svc, 30, log))
	t.Cleanup(srv.Close)
	return srv, reg, svc
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	srv, reg, svc := newTestServer(t)
	ctx := context.Background()

	target, _ := domain.ParseTimeOfDay("23:00")
	if _, err := reg.Join(ctx, 1, "alice", "UTC", target); err != nil {
		t.Fatal(err)
	}
	reported, _ := domain.ParseTimeOfDay("23:30")
	if _, err := svc.Report(ctx, 1, "2025-05-01", reported); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/leaderboard?days=all")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body struct {
		Window  string `json:"window"`
		Entries []struct {
			ParticipantID int64 `json:"participant_id"`
			Total         int   `json:"total_points"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Window != "all-time" || len(body.Entries) != 1 || body.Entries[0].Total != 5 {
		t.Fatalf("body: %+v", body)
	}
}

func TestLeaderboardEndpoint_BadDays(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/leaderboard?days=-3")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	srv, reg, svc := newTestServer(t)
	ctx := context.Background()

	target, _ := domain.ParseTimeOfDay("23:00")
	if _, err := reg.Join(ctx, 7, "bob", "UTC", target); err != nil {
		t.Fatal(err)
	}
	reported, _ := domain.ParseTimeOfDay("01:30")
	if _, err := svc.Report(ctx, 7, "2025-05-02", reported); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/history/7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var body struct {
		Records []struct {
			Date   string `json:"date"`
			Points int    `json:"points"`
			Missed bool   `json:"missed"`
		} `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Records) != 1 || body.Records[0].Date != "2025-05-02" || body.Records[0].Points != 3 || body.Records[0].Missed {
		t.Fatalf("records: %+v", body.Records)
	}

	// Unknown participant is a 404.
	resp2, err := http.Get(srv.URL + "/api/history/99")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp2.StatusCode)
	}
}
