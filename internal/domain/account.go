package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskLimits bounds an account's exposure. A zero value disables the
// corresponding check.
type RiskLimits struct {
	MaxOrderQuantity    int64
	MaxNotional         decimal.Decimal
	MaxPositionQuantity int64
}

// LimitsUpdate carries a partial limits change; nil fields keep the prior value.
type LimitsUpdate struct {
	MaxOrderQuantity    *int64
	MaxNotional         *decimal.Decimal
	MaxPositionQuantity *int64
}

// Merge returns l with every non-nil field of u applied.
func (l RiskLimits) Merge(u LimitsUpdate) RiskLimits {
	if u.MaxOrderQuantity != nil {
		l.MaxOrderQuantity = *u.MaxOrderQuantity
	}
	if u.MaxNotional != nil {
		l.MaxNotional = *u.MaxNotional
	}
	if u.MaxPositionQuantity != nil {
		l.MaxPositionQuantity = *u.MaxPositionQuantity
	}
	return l
}

// Account is a trading participant: risk limits plus a cash balance that
// only moves by signed deltas settled together with a fill.
type Account struct {
	AccountID   string
	Name        string
	Limits      RiskLimits
	CashBalance decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Clone returns a copy of a. Decimals are immutable values, so a shallow
// copy is enough.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
