package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LedgerPlaces is the number of decimal places kept for prices, average
// costs and cash balances.
const LedgerPlaces int32 = 2

// RoundPrice rounds d to ledger precision, half away from zero. Average
// costs and prices are never negative, so this is round-half-up for them.
func RoundPrice(d decimal.Decimal) decimal.Decimal {
	return d.Round(LedgerPlaces)
}

// ParseAmount parses a decimal string and rejects values carrying more
// precision than the ledger keeps. Trailing zeros are fine ("1.500").
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", s)
	}
	if !d.Equal(d.Round(LedgerPlaces)) {
		return decimal.Zero, fmt.Errorf("monetary values must have at most %d decimal places", LedgerPlaces)
	}
	return d, nil
}

// Notional returns quantity × price.
func Notional(qty int64, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(qty))
}
