package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType selects the execution strategy.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeTWAP   OrderType = "TWAP"
)

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Sign returns +1 for BUY and -1 for SELL.
func (s OrderSide) Sign() int64 {
	if s == OrderSideSell {
		return -1
	}
	return 1
}

// TimeInForce is recorded with the order. Execution semantics come from
// the order type; the value is a client hint only.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "DAY"
	TimeInForceGTC TimeInForce = "GTC"
	TimeInForceIOC TimeInForce = "IOC"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusWorking         OrderStatus = "WORKING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are possible.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Order is an instruction submitted by an account. FilledNotional is the
// exact sum of price × quantity over the order's fills, so the average
// fill price is always derivable without drift.
type Order struct {
	OrderID        string
	AccountID      string
	ClientOrderID  string
	Symbol         string
	Side           OrderSide
	Type           OrderType
	Quantity       int64
	LimitPrice     *decimal.Decimal // nil unless LIMIT
	TimeInForce    TimeInForce
	TWAPSlices     int           // TWAP only
	TWAPWindow     time.Duration // TWAP only
	Status         OrderStatus
	FilledQuantity int64
	FilledNotional decimal.Decimal
	RejectReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CancelledAt    *time.Time
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	if o.LimitPrice != nil {
		p := *o.LimitPrice
		c.LimitPrice = &p
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// RemainingQuantity is the unfilled part of the order.
func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// AveragePrice returns the quantity-weighted mean fill price rounded to
// ledger precision, or (zero, false) before the first fill.
func (o *Order) AveragePrice() (decimal.Decimal, bool) {
	if o.FilledQuantity == 0 {
		return decimal.Zero, false
	}
	return o.FilledNotional.DivRound(decimal.NewFromInt(o.FilledQuantity), LedgerPlaces), true
}

// MarkWorking moves a NEW order to WORKING. Any other status is left alone.
func (o *Order) MarkWorking(now time.Time) {
	if o.Status == OrderStatusNew {
		o.Status = OrderStatusWorking
		o.UpdatedAt = now
	}
}

// Reject moves a NEW order to REJECTED with the given reason.
func (o *Order) Reject(reason string, now time.Time) error {
	if o.Status != OrderStatusNew {
		return fmt.Errorf("%w: cannot reject order in status %s", ErrInvalidState, o.Status)
	}
	o.Status = OrderStatusRejected
	o.RejectReason = reason
	o.UpdatedAt = now
	return nil
}

// ApplyFill folds a fill into the order's aggregates and advances its
// status. A fill against a terminal order returns ErrInvalidState; a fill
// that would overfill the order is an invariant violation.
func (o *Order) ApplyFill(f *Fill) error {
	if o.Status.IsTerminal() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidState, o.OrderID, o.Status)
	}
	if f.OrderID != o.OrderID {
		return Invariantf("fill %s belongs to order %s, not %s", f.FillID, f.OrderID, o.OrderID)
	}
	if f.Quantity <= 0 {
		return Invariantf("fill %s has non-positive quantity %d", f.FillID, f.Quantity)
	}
	if o.FilledQuantity+f.Quantity > o.Quantity {
		return Invariantf("order %s would fill %d of %d", o.OrderID, o.FilledQuantity+f.Quantity, o.Quantity)
	}

	o.FilledQuantity += f.Quantity
	o.FilledNotional = o.FilledNotional.Add(Notional(f.Quantity, f.Price))
	if o.FilledQuantity == o.Quantity {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
	o.UpdatedAt = f.ExecutedAt
	return nil
}

// Cancel moves a non-terminal order to CANCELLED and reports whether it
// did. Filled quantity is kept.
func (o *Order) Cancel(now time.Time) bool {
	if o.Status.IsTerminal() {
		return false
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &now
	o.UpdatedAt = now
	return true
}

// Fill is an immutable execution record.
type Fill struct {
	FillID     string
	OrderID    string
	Quantity   int64
	Price      decimal.Decimal
	ExecutedAt time.Time
}
