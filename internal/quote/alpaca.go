package quote

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

var _ Source = (*AlpacaSource)(nil)

// latestBarClient is the slice of *marketdata.Client used here.
type latestBarClient interface {
	GetLatestBar(symbol string, req marketdata.GetLatestBarRequest) (*marketdata.Bar, error)
}

// AlpacaSource reads the latest minute bar for a symbol from the Alpaca
// market-data API.
type AlpacaSource struct {
	client latestBarClient
	feed   string
}

// NewAlpacaSource creates an AlpacaSource. dataURL overrides the default
// market-data endpoint when non-empty.
func NewAlpacaSource(apiKey, apiSecret, dataURL, feed string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts), feed: feed}
}

func (s *AlpacaSource) Latest(ctx context.Context, symbol string) (domain.Quote, error) {
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, err
	}

	bar, err := s.client.GetLatestBar(symbol, marketdata.GetLatestBarRequest{Feed: s.feed})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("GetLatestBar %s: %w", symbol, err)
	}
	if bar == nil {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}

	return domain.Quote{
		Symbol:    symbol,
		Open:      domain.RoundPrice(decimal.NewFromFloat(bar.Open)),
		High:      domain.RoundPrice(decimal.NewFromFloat(bar.High)),
		Low:       domain.RoundPrice(decimal.NewFromFloat(bar.Low)),
		Close:     domain.RoundPrice(decimal.NewFromFloat(bar.Close)),
		Volume:    int64(bar.Volume),
		Timestamp: bar.Timestamp,
	}, nil
}
