package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

// PositionPnL values one position at its mark price. Mark is zero for
// flat positions, which are never marked.
type PositionPnL struct {
	Position   *domain.Position
	Mark       decimal.Decimal
	Unrealized decimal.Decimal
}

// PnLReport is an account's PnL across all its positions.
type PnLReport struct {
	AccountID  string
	Positions  []PositionPnL
	Unrealized decimal.Decimal
	Realized   decimal.Decimal
}

// PnL marks every open position of the account at the latest quote close.
// An account with no positions reports zero. An open position whose
// symbol has no quote fails the whole report with domain.ErrQuoteNotFound.
func (e *Engine) PnL(ctx context.Context, accountID string) (*PnLReport, error) {
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	positions, err := e.store.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	report := &PnLReport{
		AccountID:  accountID,
		Positions:  make([]PositionPnL, 0, len(positions)),
		Unrealized: decimal.Zero,
		Realized:   decimal.Zero,
	}
	for _, p := range positions {
		line := PositionPnL{Position: p, Mark: decimal.Zero, Unrealized: decimal.Zero}
		if p.Quantity != 0 {
			q, err := e.quotes.Quote(ctx, p.Symbol)
			if err != nil {
				return nil, fmt.Errorf("mark %s: %w", p.Symbol, err)
			}
			line.Mark = q.Price()
			line.Unrealized = p.UnrealizedPnL(line.Mark)
		}
		report.Positions = append(report.Positions, line)
		report.Unrealized = report.Unrealized.Add(line.Unrealized)
		report.Realized = report.Realized.Add(p.RealizedPnL)
	}
	return report, nil
}

// UnrealizedPnL is the sum over the account's positions of
// (mark - average cost) × quantity.
func (e *Engine) UnrealizedPnL(ctx context.Context, accountID string) (decimal.Decimal, error) {
	r, err := e.PnL(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return r.Unrealized, nil
}
