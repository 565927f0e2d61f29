// Package store persists accounts, orders, fills and positions. Every
// backend applies a Settlement as one atomic unit: the fill, the order
// aggregates, the position and the cash delta become visible together or
// not at all.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

// Settlement groups everything a single fill changes.
type Settlement struct {
	Fill      *domain.Fill
	Order     *domain.Order    // order after the fill was applied
	Position  *domain.Position // position after the fill was applied
	CashDelta decimal.Decimal  // signed; negative for buys
}

// Store is the persistence collaborator used by the engine and services.
// Reads return copies; callers own what they get back.
type Store interface {
	// CreateAccount inserts a new account. Returns
	// domain.ErrAccountAlreadyExists for a duplicate ID.
	CreateAccount(ctx context.Context, a *domain.Account) error

	// GetAccount returns domain.ErrAccountNotFound for unknown IDs.
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// UpdateAccountLimits replaces the account's risk limits.
	UpdateAccountLimits(ctx context.Context, id string, limits domain.RiskLimits, now time.Time) (*domain.Account, error)

	// CreateOrder inserts a new order.
	CreateOrder(ctx context.Context, o *domain.Order) error

	// GetOrder returns domain.ErrOrderNotFound for unknown IDs.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// UpdateOrder persists status and aggregate changes that carry no fill
	// (working, rejected, cancelled).
	UpdateOrder(ctx context.Context, o *domain.Order) error

	// ListOrders returns an account's orders newest first, optionally
	// filtered by status, with 1-based pagination, and the total number
	// of matching orders.
	ListOrders(ctx context.Context, accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error)

	// ListOpenOrders returns every non-terminal order across all accounts,
	// oldest first.
	ListOpenOrders(ctx context.Context) ([]*domain.Order, error)

	// ListFills returns an order's fills in the order they were settled.
	ListFills(ctx context.Context, orderID string) ([]*domain.Fill, error)

	// GetPosition returns the position for (account, symbol), or a flat
	// zero position if none was ever created.
	GetPosition(ctx context.Context, accountID, symbol string) (*domain.Position, error)

	// ListPositions returns every position of an account ordered by symbol,
	// flat ones included.
	ListPositions(ctx context.Context, accountID string) ([]*domain.Position, error)

	// Settle atomically appends the fill, writes the order and position
	// and applies the cash delta.
	Settle(ctx context.Context, s Settlement) error

	Close() error
}

func pageBounds(total, page, limit int) (int, int) {
	start := (page - 1) * limit
	if start >= total || start < 0 {
		return total, total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}
