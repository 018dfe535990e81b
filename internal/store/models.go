package store

import (
	"time"
)

// UserStats is the per-user read model.
type UserStats struct {
	UserID     string  `json:"user_id"`
	OrderCount int64   `json:"order_count"`
	TotalSpend float64 `json:"total_spend"`
}

// GlobalStats aggregates over all users.
type GlobalStats struct {
	OrderCount int64   `json:"order_count"`
	TotalSpend float64 `json:"total_spend"`
}

// LeaderboardEntry is one row of a period leaderboard: a user's accumulated
// spend and order count within one bucket.
type LeaderboardEntry struct {
	UserID     string  `json:"user_id"`
	TotalSpend float64 `json:"total_spend"`
	OrderCount int64   `json:"order_count"`
}

// DLQRecord is a message stored in the dead letter queue.
type DLQRecord struct {
	OrderID   string    `json:"order_id"`
	Topic     string    `json:"topic"`
	Partition int       `json:"partition"`
	Offset    int64     `json:"offset"`
	Payload   string    `json:"payload"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}
