package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the immutable-identity, mutable-fill-counter record that
// rests on a book. Price and Quantity are scaled fixed-point integers;
// see PriceMultiplier/QuantityMultiplier.
type Order struct {
	OrderID          string
	Symbol           Symbol
	Side             Side
	OrderType        OrderType
	Price            int32 // 0 for market orders
	Quantity         uint64
	FilledQuantity   uint64
	UserID           int64
	PrivyID          string
	OutcomeName      string
	CreatedAt        time.Time
	ExchangeReceived time.Time
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() uint64 {
	return o.Quantity - o.FilledQuantity
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.FilledQuantity >= o.Quantity
}

// Fill applies qty to the order's filled counter. Callers must ensure
// qty does not exceed Remaining().
func (o *Order) Fill(qty uint64) {
	o.FilledQuantity += qty
}

// PriceDecimal converts a scaled price to its decimal value.
func PriceDecimal(price int32) decimal.Decimal {
	return decimal.New(int64(price), -4)
}

// QuantityDecimal converts a scaled quantity to its decimal value.
func QuantityDecimal(qty uint64) decimal.Decimal {
	return decimal.New(int64(qty), -2)
}

// FormatPrice renders a scaled price as a decimal string, e.g. 6000 -> "0.6".
func FormatPrice(price int32) string {
	return PriceDecimal(price).String()
}

// FormatQuantity renders a scaled quantity as a decimal string.
func FormatQuantity(qty uint64) string {
	return QuantityDecimal(qty).String()
}

// USDCAmount returns the decimal-string USDC equivalent of qty units
// traded at the given scaled price.
func USDCAmount(price int32, qty uint64) string {
	return PriceDecimal(price).Mul(QuantityDecimal(qty)).String()
}

// ParsePrice scales a decimal price string (e.g. "0.6") into its
// fixed-point int32 form — the inverse of FormatPrice, used to decode
// order_input_stream entries.
func ParsePrice(s string) (int32, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	return int32(d.Mul(decimal.New(PriceMultiplier, 0)).IntPart()), nil
}

// ParseQuantity scales a decimal quantity string into its fixed-point
// uint64 form — the inverse of FormatQuantity.
func ParseQuantity(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse quantity %q: %w", s, err)
	}
	return uint64(d.Mul(decimal.New(QuantityMultiplier, 0)).IntPart()), nil
}
