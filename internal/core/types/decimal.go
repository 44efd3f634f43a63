// Package types provides the exact numeric types used for stock and money.
package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value with full precision.
type Money = decimal.Decimal

// Quantity is a stock quantity. Fractional units are allowed (weighed goods).
type Quantity = decimal.Decimal

const (
	// QuantityScale is the maximum number of fractional digits accepted for quantities.
	QuantityScale int32 = 4

	// PriceScale is the maximum number of fractional digits for sale prices and lot costs.
	PriceScale int32 = 6

	// UnitCostScale is the rounding scale of derived per-unit costs (total / qty).
	UnitCostScale int32 = 6

	// MaxIntegerDigits is the integer part of the NUMERIC(28,10) columns.
	MaxIntegerDigits int32 = 18
)

var maxMagnitude = decimal.New(1, MaxIntegerDigits)

// FitsStorage reports whether d has at most MaxIntegerDigits integer digits.
func FitsStorage(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxMagnitude)
}

// NewMoneyFromString creates a Money value from a string.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MustQuantity is MustMoney for quantities.
func MustQuantity(s string) Quantity {
	return MustMoney(s)
}

// Zero returns the zero value.
func Zero() decimal.Decimal {
	return decimal.Zero
}

// Scale returns the number of fractional digits carried by d, ignoring trailing zeros.
func Scale(d decimal.Decimal) int32 {
	if d.Exponent() >= 0 {
		return 0
	}
	// String() trims trailing zeros, so 1.5000 renders as "1.5".
	s := d.String()
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return 0
	}
	return int32(len(s) - dot - 1)
}

// ValidateQuantity checks that q is strictly positive and fits QuantityScale.
func ValidateQuantity(q Quantity) error {
	if !q.IsPositive() {
		return fmt.Errorf("quantity must be greater than zero, got %s", q)
	}
	if Scale(q) > QuantityScale {
		return fmt.Errorf("quantity %s has more than %d fractional digits", q, QuantityScale)
	}
	if !FitsStorage(q) {
		return fmt.Errorf("quantity %s has more than %d integer digits", q, MaxIntegerDigits)
	}
	return nil
}

// ValidatePrice checks that p is non-negative and fits PriceScale.
func ValidatePrice(p Money) error {
	if p.IsNegative() {
		return fmt.Errorf("amount must not be negative, got %s", p)
	}
	if Scale(p) > PriceScale {
		return fmt.Errorf("amount %s has more than %d fractional digits", p, PriceScale)
	}
	if !FitsStorage(p) {
		return fmt.Errorf("amount %s has more than %d integer digits", p, MaxIntegerDigits)
	}
	return nil
}

// UnitCost divides a total cost by a quantity, rounded to UnitCostScale.
// Returns zero when the quantity is zero.
func UnitCost(total Money, qty Quantity) Money {
	if qty.IsZero() {
		return decimal.Zero
	}
	return total.DivRound(qty, UnitCostScale)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
