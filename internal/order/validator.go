package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Reason classifies why an order was rejected.
type Reason string

const (
	ReasonMissingField     Reason = "MissingField"
	ReasonInvalidTimestamp Reason = "InvalidTimestamp"
	ReasonInvalidItems     Reason = "InvalidItems"
)

type ValidationError struct {
	Reason Reason
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// valueEpsilon is the tolerance between the stated order_value and the value
// computed from items before the mismatch counts as a correction.
var valueEpsilon = decimal.NewFromFloat(0.01)

// Validate checks a raw order and returns its canonical form. The returned
// Order's Value is always the item sum rounded to 2 decimal places; corrected
// reports whether the stated value disagreed by more than the epsilon.
// Validation failures return a *ValidationError and never a partial Order.
func Validate(raw *RawOrder) (*Order, bool, error) {
	required := []struct {
		name  string
		value string
	}{
		{"order_id", raw.OrderID},
		{"user_id", raw.UserID},
		{"shipping_address", raw.ShippingAddress},
		{"payment_method", raw.PaymentMethod},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, false, &ValidationError{
				Reason: ReasonMissingField,
				Detail: fmt.Sprintf("missing required field %q", f.name),
			}
		}
	}

	ts, err := time.Parse(time.RFC3339, raw.OrderTimestamp)
	if err != nil {
		return nil, false, &ValidationError{
			Reason: ReasonInvalidTimestamp,
			Detail: fmt.Sprintf("cannot parse order_timestamp %q", raw.OrderTimestamp),
		}
	}

	if len(raw.Items) == 0 {
		return nil, false, &ValidationError{
			Reason: ReasonInvalidItems,
			Detail: "order has no items",
		}
	}

	expected := decimal.Zero
	for i, item := range raw.Items {
		if item.ProductID == "" {
			return nil, false, &ValidationError{
				Reason: ReasonInvalidItems,
				Detail: fmt.Sprintf("item %d has empty product_id", i),
			}
		}
		if item.Quantity <= 0 {
			return nil, false, &ValidationError{
				Reason: ReasonInvalidItems,
				Detail: fmt.Sprintf("item %d has non-positive quantity %d", i, item.Quantity),
			}
		}
		if item.PricePerUnit.IsNegative() {
			return nil, false, &ValidationError{
				Reason: ReasonInvalidItems,
				Detail: fmt.Sprintf("item %d has negative price_per_unit %s", i, item.PricePerUnit),
			}
		}
		expected = expected.Add(decimal.NewFromInt(item.Quantity).Mul(item.PricePerUnit))
	}
	expected = expected.Round(2)

	corrected := raw.OrderValue.Sub(expected).Abs().GreaterThan(valueEpsilon)

	return &Order{
		ID:              raw.OrderID,
		UserID:          raw.UserID,
		Timestamp:       ts.UTC(),
		Value:           expected,
		Items:           raw.Items,
		ShippingAddress: raw.ShippingAddress,
		PaymentMethod:   raw.PaymentMethod,
	}, corrected, nil
}
