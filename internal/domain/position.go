package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Position is an account's holding in one symbol. Quantity is signed:
// positive long, negative short, zero flat. AverageCost is meaningful only
// while Quantity != 0 and is reset to zero when the position goes flat.
type Position struct {
	AccountID   string
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
	RealizedPnL decimal.Decimal
	UpdatedAt   time.Time
}

// Clone returns a copy of p.
func (p *Position) Clone() *Position {
	c := *p
	return &c
}

// Apply folds a fill of signed quantity q (positive buys, negative sells)
// at price into the position and returns the PnL realized by this fill.
//
// Growing or opening keeps a weighted average cost rounded half-up to
// ledger precision. Reducing realizes (price - cost) on the closed part
// and leaves the cost alone; a fill that crosses zero opens the residual
// at price. A fill whose quantity would overflow the position returns an
// ErrInvariantViolation and leaves p unchanged.
func (p *Position) Apply(q int64, price decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if q == 0 {
		p.UpdatedAt = now
		return decimal.Zero, nil
	}

	cur := p.Quantity
	next, ok := AddQuantity(cur, q)
	if !ok {
		return decimal.Zero, Invariantf("position %s/%s: %d%+d overflows", p.AccountID, p.Symbol, cur, q)
	}
	p.UpdatedAt = now

	if cur == 0 || sign(cur) == sign(q) {
		total := p.AverageCost.Mul(decimal.NewFromInt(cur)).Add(Notional(q, price))
		p.AverageCost = total.DivRound(decimal.NewFromInt(next), LedgerPlaces)
		p.Quantity = next
		return decimal.Zero, nil
	}

	closed := min(abs(q), abs(cur))
	realized := price.Sub(p.AverageCost).Mul(decimal.NewFromInt(closed * sign(cur)))
	p.RealizedPnL = p.RealizedPnL.Add(realized)
	p.Quantity = next

	switch {
	case next == 0:
		p.AverageCost = decimal.Zero
	case sign(next) != sign(cur):
		p.AverageCost = price
	}
	return realized, nil
}

// AddQuantity returns a+b and whether the sum fits in an int64 without
// reaching math.MinInt64, whose magnitude has no int64 representation.
func AddQuantity(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) || sum == math.MinInt64 {
		return 0, false
	}
	return sum, true
}

// UnrealizedPnL values the open quantity at mark. Flat positions are zero.
func (p *Position) UnrealizedPnL(mark decimal.Decimal) decimal.Decimal {
	if p.Quantity == 0 {
		return decimal.Zero
	}
	return mark.Sub(p.AverageCost).Mul(decimal.NewFromInt(p.Quantity))
}

func sign(v int64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
