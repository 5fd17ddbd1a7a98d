package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/all-mute/tg-sleepwatch/internal/challenge"
	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

// NewRouter builds the read-only HTTP API: a health probe plus JSON views of
// the leaderboard and per-participant history.
func NewRouter(svc *challenge.Service, defaultDays int, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/api/leaderboard", func(c *gin.Context) {
		w := domain.LastDays(defaultDays)
		switch days := c.Query("days"); {
		case days == "all":
			w = domain.AllTime()
		case days != "":
			n, err := strconv.Atoi(days)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer or 'all'"})
				return
			}
			w = domain.LastDays(n)
		}

		entries, err := svc.Leaderboard(c.Request.Context(), w)
		if err != nil {
			log.Error("leaderboard query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toLeaderboardResponse(entries, w))
	})

	r.GET("/api/history/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}

		records, err := svc.History(c.Request.Context(), id, 0)
		if errors.Is(err, domain.ErrNotActive) {
			c.JSON(http.StatusNotFound, gin.H{"error": "participant not active"})
			return
		}
		if err != nil {
			log.Error("history query failed", zap.Int64("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, toHistoryResponse(id, records))
	})

	return r
}

type leaderboardEntry struct {
	Rank          int    `json:"rank"`
	ParticipantID int64  `json:"participant_id"`
	Username      string `json:"username"`
	Total         int    `json:"total_points"`
	Nights        int    `json:"nights"`
}

type leaderboardResponse struct {
	Window  string             `json:"window"`
	Entries []leaderboardEntry `json:"entries"`
}

func toLeaderboardResponse(entries []domain.LeaderboardEntry, w domain.Window) leaderboardResponse {
	window := "all-time"
	if !w.AllTime() {
		window = "last-" + strconv.Itoa(w.Days) + "-days"
	}
	out := leaderboardResponse{Window: window, Entries: make([]leaderboardEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, leaderboardEntry{
			Rank:          e.Rank,
			ParticipantID: e.ParticipantID,
			Username:      e.Username,
			Total:         e.Total,
			Nights:        e.Nights,
		})
	}
	return out
}

type historyRecord struct {
	Date     string  `json:"date"`
	Reported *string `json:"reported,omitempty"`
	Points   int     `json:"points"`
	Missed   bool    `json:"missed"`
}

type historyResponse struct {
	ParticipantID int64           `json:"participant_id"`
	Records       []historyRecord `json:"records"`
}

func toHistoryResponse(id int64, records []domain.SleepRecord) historyResponse {
	out := historyResponse{ParticipantID: id, Records: make([]historyRecord, 0, len(records))}
	for _, r := range records {
		hr := historyRecord{Date: r.Date.String(), Points: r.Points, Missed: r.Missed()}
		if r.Reported != nil {
			s := r.Reported.String()
			hr.Reported = &s
		}
		out.Records = append(out.Records, hr)
	}
	return out
}
