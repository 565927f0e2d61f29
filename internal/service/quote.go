package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/quote"
)

// SetQuoteRequest is a manually published OHLCV snapshot. Prices arrive as
// decimal strings.
type SetQuoteRequest struct {
	Symbol    string
	Open      string
	High      string
	Low       string
	Close     string
	Volume    int64
	Timestamp *time.Time // defaults to now
}

// QuoteService publishes quotes and re-evaluates resting orders against
// them.
type QuoteService struct {
	cache  *quote.Cache
	engine *engine.Engine
	now    func() time.Time
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(cache *quote.Cache, eng *engine.Engine) *QuoteService {
	return &QuoteService{cache: cache, engine: eng, now: time.Now}
}

// SetQuote validates and stores the quote, then fills any resting LIMIT
// orders on the symbol that became marketable. It returns the stored quote
// and the number of resting orders filled.
func (s *QuoteService) SetQuote(ctx context.Context, req SetQuoteRequest) (domain.Quote, int, error) {
	symbol := quote.Normalize(req.Symbol)
	if !orderSymbolRegex.MatchString(symbol) {
		return domain.Quote{}, 0, &domain.ValidationError{Message: "symbol must match ^[A-Z][A-Z0-9.]{0,9}$"}
	}
	if req.Volume < 0 {
		return domain.Quote{}, 0, &domain.ValidationError{Message: "volume must be >= 0"}
	}

	var ohlc [4]decimal.Decimal
	for i, f := range []struct{ name, value string }{
		{"open", req.Open},
		{"high", req.High},
		{"low", req.Low},
		{"close", req.Close},
	} {
		d, err := domain.ParseAmount(f.value)
		if err != nil {
			return domain.Quote{}, 0, &domain.ValidationError{Message: f.name + ": " + err.Error()}
		}
		if !d.IsPositive() {
			return domain.Quote{}, 0, &domain.ValidationError{Message: f.name + " must be greater than 0"}
		}
		ohlc[i] = d
	}

	ts := s.now()
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	q := s.cache.Set(domain.Quote{
		Symbol:    symbol,
		Open:      ohlc[0],
		High:      ohlc[1],
		Low:       ohlc[2],
		Close:     ohlc[3],
		Volume:    req.Volume,
		Timestamp: ts,
	})

	filled, err := s.engine.Reevaluate(ctx, q.Symbol)
	return q, filled, err
}

// GetQuote returns the latest cached quote for symbol.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (domain.Quote, error) {
	return s.cache.Quote(ctx, symbol)
}

// Refresh pulls the latest quote from the upstream source, then
// re-evaluates resting orders on the symbol.
func (s *QuoteService) Refresh(ctx context.Context, symbol string) (domain.Quote, int, error) {
	symbol = quote.Normalize(symbol)
	if !orderSymbolRegex.MatchString(symbol) {
		return domain.Quote{}, 0, &domain.ValidationError{Message: "symbol must match ^[A-Z][A-Z0-9.]{0,9}$"}
	}
	q, err := s.cache.Refresh(ctx, symbol)
	if err != nil {
		return domain.Quote{}, 0, fmt.Errorf("refresh %s: %w", symbol, err)
	}
	filled, err := s.engine.Reevaluate(ctx, q.Symbol)
	return q, filled, err
}

// RefreshAll refreshes every cached symbol. Failures are logged and do not
// stop the remaining symbols.
func (s *QuoteService) RefreshAll(ctx context.Context) int {
	refreshed := 0
	for _, symbol := range s.cache.Symbols() {
		if _, _, err := s.Refresh(ctx, symbol); err != nil {
			slog.Warn("quote refresh failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		refreshed++
	}
	return refreshed
}

// RunRefresher refreshes every cached symbol on each tick until ctx is
// cancelled.
func (s *QuoteService) RunRefresher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := s.RefreshAll(ctx)
			slog.Debug("quotes refreshed", slog.Int("count", n))
		}
	}
}
