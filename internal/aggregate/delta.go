package aggregate

import (
	"context"

	"order-stats-pipeline/internal/order"
)

// FieldIncr is an integer hash-field increment.
type FieldIncr struct {
	Key   string
	Field string
	By    int64
}

// FloatIncr is a float hash-field increment.
type FloatIncr struct {
	Key   string
	Field string
	By    float64
}

// ScoreIncr is a sorted-set score increment.
type ScoreIncr struct {
	Key    string
	Member string
	By     float64
}

// Delta is the full set of increments one accepted order must apply to the
// aggregate store. The store applies a Delta as a single atomic unit.
type Delta struct {
	OrderID string
	Counts  []FieldIncr
	Spends  []FloatIncr
	Scores  []ScoreIncr
}

// Store is the narrow aggregate-store contract the Aggregator depends on.
type Store interface {
	ApplyDelta(ctx context.Context, d *Delta) error
}

const (
	fieldOrderCount = "order_count"
	fieldTotalSpend = "total_spend"
)

// Plan computes the delta for a validated order. It is pure: the same order
// always yields the same increments, and nothing is written here.
func Plan(o *order.Order) *Delta {
	value := o.Value.InexactFloat64()
	userKey := UserKey(o.UserID)

	d := &Delta{
		OrderID: o.ID,
		Counts: []FieldIncr{
			{Key: userKey, Field: fieldOrderCount, By: 1},
			{Key: GlobalStatsKey, Field: fieldOrderCount, By: 1},
		},
		Spends: []FloatIncr{
			{Key: userKey, Field: fieldTotalSpend, By: value},
			{Key: GlobalStatsKey, Field: fieldTotalSpend, By: value},
		},
	}

	for _, kind := range PeriodKinds {
		bucket := BucketKey(kind, o.Timestamp)
		d.Scores = append(d.Scores, ScoreIncr{
			Key:    RankKey(kind, bucket),
			Member: o.UserID,
			By:     value,
		})
		d.Counts = append(d.Counts, FieldIncr{
			Key:   RankOrdersKey(kind, bucket),
			Field: o.UserID,
			By:    1,
		})
	}

	return d
}

// Aggregator plans and applies aggregate deltas for validated orders.
type Aggregator struct {
	store Store
}

func New(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Process applies the order's delta to the store as one atomic unit.
func (a *Aggregator) Process(ctx context.Context, o *order.Order) error {
	return a.store.ApplyDelta(ctx, Plan(o))
}
