package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount of currency in integer minor units (cents).
// All ledger arithmetic happens in minor units; decimal representations
// exist only at the serialization boundary.
type Money int64

func (m Money) Add(other Money) Money {
	return m + other
}

func (m Money) Sub(other Money) Money {
	return m - other
}

// MulQuantity computes a line cost: unit price times item count.
func (m Money) MulQuantity(quantity int) Money {
	return m * Money(quantity)
}

func (m Money) NonNegative() bool {
	return m >= 0
}

// Decimal converts to a major-unit decimal (1250 -> 12.50) for responses.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MoneyFromDecimal converts a major-unit decimal from a request body into
// minor units. Amounts finer than one cent are rejected rather than rounded.
func MoneyFromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Mul(decimal.New(100, 0))
	if !cents.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-cent precision", d)
	}
	return Money(cents.IntPart()), nil
}
