package aggregate

import (
	"fmt"
	"time"
)

// PeriodKind identifies a leaderboard time window.
type PeriodKind string

const (
	PeriodDay   PeriodKind = "day"
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
	PeriodYear  PeriodKind = "year"
)

// PeriodKinds lists every leaderboard window an order contributes to.
var PeriodKinds = []PeriodKind{PeriodDay, PeriodWeek, PeriodMonth, PeriodYear}

// ParsePeriodKind converts a string into a PeriodKind, for the read API.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch PeriodKind(s) {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return PeriodKind(s), nil
	}
	return "", fmt.Errorf("unknown period kind %q", s)
}

// BucketKey derives the bucket identifier for a period kind from a timestamp.
// Derivation is always in UTC so every worker agrees on bucket boundaries.
// Week buckets use the ISO week-numbering year, which can differ from the
// calendar year at year boundaries.
func BucketKey(kind PeriodKind, t time.Time) string {
	u := t.UTC()
	switch kind {
	case PeriodDay:
		return u.Format("2006-01-02")
	case PeriodWeek:
		year, week := u.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return u.Format("2006-01")
	case PeriodYear:
		return u.Format("2006")
	default:
		return ""
	}
}

// Redis key scheme for the aggregate read model.

const GlobalStatsKey = "global:stats"

func UserKey(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// RankKey is the sorted set holding user total spend for one bucket.
func RankKey(kind PeriodKind, bucket string) string {
	return fmt.Sprintf("rank:%s:%s", kind, bucket)
}

// RankOrdersKey is the companion hash holding per-user order counts for the
// same bucket.
func RankOrdersKey(kind PeriodKind, bucket string) string {
	return fmt.Sprintf("rank:%s:%s:orders", kind, bucket)
}
