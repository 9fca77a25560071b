package store

import (
	"database/sql"
	"time"
)

func offsetToNull(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(d.Seconds()), Valid: true}
}

func offsetFromNull(ns sql.NullInt64) *time.Duration {
	if !ns.Valid {
		return nil
	}
	d := time.Duration(ns.Int64) * time.Second
	return &d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
