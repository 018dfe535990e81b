package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/aggregate"
)

// RedisStore is the aggregate store client. Every mutation goes through
// ApplyDelta, which issues the store's native atomic increments inside one
// MULTI/EXEC transaction; there is no read-modify-write path.
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisStore(addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		logger: logger,
	}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// ApplyDelta applies every increment of one order's delta as a single
// transaction, so a concurrent reader never observes a partially applied
// order.
func (s *RedisStore) ApplyDelta(ctx context.Context, d *aggregate.Delta) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, c := range d.Counts {
			pipe.HIncrBy(ctx, c.Key, c.Field, c.By)
		}
		for _, f := range d.Spends {
			pipe.HIncrByFloat(ctx, f.Key, f.Field, f.By)
		}
		for _, z := range d.Scores {
			pipe.ZIncrBy(ctx, z.Key, z.By, z.Member)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to apply delta for order %s: %w", d.OrderID, err)
	}
	return nil
}

// UserStats returns the accumulated stats for a user. A user with no orders
// yields zero stats, not an error.
func (s *RedisStore) UserStats(ctx context.Context, userID string) (*UserStats, error) {
	fields, err := s.client.HGetAll(ctx, aggregate.UserKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return &UserStats{
		UserID:     userID,
		OrderCount: parseInt(fields["order_count"]),
		TotalSpend: parseFloat(fields["total_spend"]),
	}, nil
}

// GlobalStats returns the stats aggregated over all users.
func (s *RedisStore) GlobalStats(ctx context.Context) (*GlobalStats, error) {
	fields, err := s.client.HGetAll(ctx, aggregate.GlobalStatsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get global stats: %w", err)
	}

	return &GlobalStats{
		OrderCount: parseInt(fields["order_count"]),
		TotalSpend: parseFloat(fields["total_spend"]),
	}, nil
}

// TopUsers returns up to n leaderboard entries for one bucket, sorted by
// descending spend with equal spends ordered by user_id ascending. Redis
// breaks score ties by reverse member order, both inside ZREVRANGE output
// and at its cutoff, so every member tied with the boundary score is
// fetched before sorting and trimming; otherwise the tie-break would decide
// ordering but not inclusion.
func (s *RedisStore) TopUsers(ctx context.Context, kind aggregate.PeriodKind, bucket string, n int64) ([]LeaderboardEntry, error) {
	if n <= 0 {
		return nil, nil
	}

	rankKey := aggregate.RankKey(kind, bucket)
	members, err := s.client.ZRevRangeWithScores(ctx, rankKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard %s/%s: %w", kind, bucket, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	if int64(len(members)) == n {
		boundary := strconv.FormatFloat(members[len(members)-1].Score, 'f', -1, 64)
		ties, err := s.client.ZRangeByScoreWithScores(ctx, rankKey, &redis.ZRangeBy{
			Min: boundary,
			Max: boundary,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read leaderboard ties %s/%s: %w", kind, bucket, err)
		}

		seen := make(map[string]bool, len(members))
		for _, m := range members {
			seen[fmt.Sprint(m.Member)] = true
		}
		for _, m := range ties {
			if !seen[fmt.Sprint(m.Member)] {
				members = append(members, m)
			}
		}
	}

	userIDs := make([]string, 0, len(members))
	for _, m := range members {
		userIDs = append(userIDs, fmt.Sprint(m.Member))
	}

	counts, err := s.client.HMGet(ctx, aggregate.RankOrdersKey(kind, bucket), userIDs...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read bucket order counts %s/%s: %w", kind, bucket, err)
	}

	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		var count int64
		if i < len(counts) {
			if str, ok := counts[i].(string); ok {
				count = parseInt(str)
			}
		}
		entries = append(entries, LeaderboardEntry{
			UserID:     userIDs[i],
			TotalSpend: m.Score,
			OrderCount: count,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalSpend != entries[j].TotalSpend {
			return entries[i].TotalSpend > entries[j].TotalSpend
		}
		return entries[i].UserID < entries[j].UserID
	})

	if int64(len(entries)) > n {
		entries = entries[:n]
	}

	return entries, nil
}

func parseInt(value string) int64 {
	n, _ := strconv.ParseInt(value, 10, 64)
	return n
}

func parseFloat(value string) float64 {
	f, _ := strconv.ParseFloat(value, 64)
	return f
}
