package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/tradecore/internal/config"
	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/service"
)

// applySeed creates the seed accounts and publishes the seed quotes.
// Accounts that already exist are left as they are, so restarting with
// the same seed over a SQLite ledger is safe.
func applySeed(ctx context.Context, seed *config.Seed, accounts *service.AccountService, quotes *service.QuoteService) error {
	created := 0
	for _, a := range seed.Accounts {
		_, err := accounts.Create(ctx, service.CreateAccountRequest{
			AccountID:   a.ID,
			Name:        a.Name,
			InitialCash: a.Cash,
			Limits: service.LimitsInput{
				MaxOrderQuantity:    a.Limits.MaxOrderQuantity,
				MaxNotional:         a.Limits.MaxNotional,
				MaxPositionQuantity: a.Limits.MaxPositionQuantity,
			},
		})
		if errors.Is(err, domain.ErrAccountAlreadyExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed account %q: %w", a.ID, err)
		}
		created++
	}

	for _, q := range seed.Quotes {
		_, _, err := quotes.SetQuote(ctx, service.SetQuoteRequest{
			Symbol: q.Symbol,
			Open:   q.Open,
			High:   q.High,
			Low:    q.Low,
			Close:  q.Close,
			Volume: q.Volume,
		})
		if err != nil {
			return fmt.Errorf("seed quote %q: %w", q.Symbol, err)
		}
	}

	slog.Info("seed applied",
		slog.Int("accounts_created", created),
		slog.Int("quotes", len(seed.Quotes)),
	)
	return nil
}
