package order

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RawOrder is the wire format received from the orders topic. Fields may be
// missing or inconsistent; Validate produces the canonical Order.
type RawOrder struct {
	OrderID         string          `json:"order_id"`
	UserID          string          `json:"user_id"`
	OrderTimestamp  string          `json:"order_timestamp"`
	OrderValue      decimal.Decimal `json:"order_value"`
	Items           []Item          `json:"items"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentMethod   string          `json:"payment_method"`
}

type Item struct {
	ProductID    string          `json:"product_id"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

// Order is the canonical form after validation. Value always equals the sum
// of quantity times price over Items, rounded to 2 decimal places.
type Order struct {
	ID              string
	UserID          string
	Timestamp       time.Time
	Value           decimal.Decimal
	Items           []Item
	ShippingAddress string
	PaymentMethod   string
}

// Decode unmarshals a raw order payload.
func Decode(data []byte) (*RawOrder, error) {
	var raw RawOrder
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &raw, nil
}
