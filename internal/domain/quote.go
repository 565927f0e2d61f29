package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is an OHLCV snapshot for a symbol. Close is the last traded price
// and the reference for execution and marking.
type Quote struct {
	Symbol    string
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    int64
	Timestamp time.Time
}

// Price returns the quote's reference price.
func (q Quote) Price() decimal.Decimal {
	return q.Close
}
