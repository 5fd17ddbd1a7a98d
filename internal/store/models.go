package store

import (
	"database/sql"
	"time"

	"github.com/all-mute/tg-sleepwatch/internal/domain"
)

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UTC().Unix(), Valid: true}
}

func fromNullUnix(ns sql.NullInt64) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := time.Unix(ns.Int64, 0).UTC()
	return &t
}

func toNullMinutes(t *domain.TimeOfDay) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*t), Valid: true}
}

func fromNullMinutes(ns sql.NullInt64) *domain.TimeOfDay {
	if !ns.Valid {
		return nil
	}
	tod := domain.TimeOfDay(ns.Int64)
	return &tod
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
