package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"order-stats-pipeline/internal/aggregate"
	"order-stats-pipeline/internal/order"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(mr.Addr(), "", 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func applyOrder(t *testing.T, s *RedisStore, orderID, userID string, ts time.Time, value float64) {
	t.Helper()
	o := &order.Order{
		ID:        orderID,
		UserID:    userID,
		Timestamp: ts,
		Value:     decimal.NewFromFloat(value),
	}
	require.NoError(t, s.ApplyDelta(context.Background(), aggregate.Plan(o)))
}

var day1 = time.Date(2025, 9, 25, 10, 0, 0, 0, time.UTC)

func TestApplyDeltaSingleOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U1", day1, 10.00)

	user, err := s.UserStats(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.OrderCount)
	assert.InDelta(t, 10.00, user.TotalSpend, 1e-9)

	global, err := s.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), global.OrderCount)
	assert.InDelta(t, 10.00, global.TotalSpend, 1e-9)

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "U1", top[0].UserID)
	assert.InDelta(t, 10.00, top[0].TotalSpend, 1e-9)
	assert.Equal(t, int64(1), top[0].OrderCount)
}

// Re-applying the same order's delta doubles the totals. There is no
// deduplication by order_id: under at-least-once delivery a redelivered
// message is counted again, and this test pins that contract.
func TestApplyDeltaTwiceDoubles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U1", day1, 10.00)
	applyOrder(t, s, "ORD1", "U1", day1, 10.00)

	user, err := s.UserStats(ctx, "U1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), user.OrderCount)
	assert.InDelta(t, 20.00, user.TotalSpend, 1e-9)

	global, err := s.GlobalStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), global.OrderCount)
	assert.InDelta(t, 20.00, global.TotalSpend, 1e-9)
}

func TestSameDayOrdersAccumulateOneBucket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	values := []float64{10.00, 20.50, 5.25}
	for i, v := range values {
		applyOrder(t, s, "ORD"+string(rune('1'+i)), "U1", day1.Add(time.Duration(i)*time.Hour), v)
	}

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.InDelta(t, 35.75, top[0].TotalSpend, 1e-9)
	assert.Equal(t, int64(3), top[0].OrderCount)
}

func TestOrdersAcrossDaysSplitBuckets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	day2 := day1.AddDate(0, 0, 1)
	applyOrder(t, s, "ORD1", "U1", day1, 10.00)
	applyOrder(t, s, "ORD2", "U1", day1, 15.00)
	applyOrder(t, s, "ORD3", "U1", day2, 7.00)

	first, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 10)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.InDelta(t, 25.00, first[0].TotalSpend, 1e-9)
	assert.Equal(t, int64(2), first[0].OrderCount)

	second, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-26", 10)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.InDelta(t, 7.00, second[0].TotalSpend, 1e-9)
	assert.Equal(t, int64(1), second[0].OrderCount)

	// Both days fall in the same week, month and year buckets.
	week, err := s.TopUsers(ctx, aggregate.PeriodWeek, "2025-W39", 10)
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.InDelta(t, 32.00, week[0].TotalSpend, 1e-9)
	assert.Equal(t, int64(3), week[0].OrderCount)
}

func TestTopUsersSortedWithDeterministicTies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U3", day1, 30.00)
	applyOrder(t, s, "ORD2", "U1", day1, 30.00)
	applyOrder(t, s, "ORD3", "U2", day1, 50.00)

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)

	assert.Equal(t, "U2", top[0].UserID)
	// U1 and U3 tie on spend; user_id ascending breaks the tie.
	assert.Equal(t, "U1", top[1].UserID)
	assert.Equal(t, "U3", top[2].UserID)
}

// The ascending user_id tie-break decides inclusion at the cutoff, not just
// ordering inside the result.
func TestTopUsersTieAtCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U3", day1, 30.00)
	applyOrder(t, s, "ORD2", "U1", day1, 30.00)
	applyOrder(t, s, "ORD3", "U2", day1, 50.00)

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "U2", top[0].UserID)
	assert.Equal(t, "U1", top[1].UserID)

	top, err = s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "U2", top[0].UserID)
}

func TestTopUsersAllTiedAtCutoff(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U3", day1, 30.00)
	applyOrder(t, s, "ORD2", "U1", day1, 30.00)

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "U1", top[0].UserID)
}

func TestTopUsersLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	applyOrder(t, s, "ORD1", "U1", day1, 10.00)
	applyOrder(t, s, "ORD2", "U2", day1, 20.00)
	applyOrder(t, s, "ORD3", "U3", day1, 30.00)

	top, err := s.TopUsers(ctx, aggregate.PeriodDay, "2025-09-25", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "U3", top[0].UserID)
	assert.Equal(t, "U2", top[1].UserID)
}

func TestUnknownUserHasZeroStats(t *testing.T) {
	s := newTestStore(t)

	user, err := s.UserStats(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.OrderCount)
	assert.Zero(t, user.TotalSpend)
}

func TestEmptyLeaderboard(t *testing.T) {
	s := newTestStore(t)

	top, err := s.TopUsers(context.Background(), aggregate.PeriodDay, "1970-01-01", 10)
	require.NoError(t, err)
	assert.Empty(t, top)
}
