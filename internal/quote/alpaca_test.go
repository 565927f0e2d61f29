package quote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

type stubBarClient struct {
	bar *marketdata.Bar
	err error
	req marketdata.GetLatestBarRequest
}

func (s *stubBarClient) GetLatestBar(_ string, req marketdata.GetLatestBarRequest) (*marketdata.Bar, error) {
	s.req = req
	return s.bar, s.err
}

func TestAlpacaSource_Latest(t *testing.T) {
	ts := time.Date(2025, 3, 3, 15, 59, 0, 0, time.UTC)
	stub := &stubBarClient{bar: &marketdata.Bar{
		Timestamp: ts,
		Open:      189.5,
		High:      191.257,
		Low:       188.994,
		Close:     190.125,
		Volume:    12345,
	}}
	src := &AlpacaSource{client: stub, feed: "iex"}

	q, err := src.Latest(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if stub.req.Feed != "iex" {
		t.Fatalf("expected feed iex, got %q", stub.req.Feed)
	}
	if !q.High.Equal(decimal.RequireFromString("191.26")) {
		t.Fatalf("expected high 191.26, got %s", q.High)
	}
	if !q.Low.Equal(decimal.RequireFromString("188.99")) {
		t.Fatalf("expected low 188.99, got %s", q.Low)
	}
	if q.Volume != 12345 || !q.Timestamp.Equal(ts) || q.Symbol != "AAPL" {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestAlpacaSource_Latest_Errors(t *testing.T) {
	src := &AlpacaSource{client: &stubBarClient{}}
	if _, err := src.Latest(context.Background(), "AAPL"); !errors.Is(err, domain.ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound for nil bar, got %v", err)
	}

	boom := errors.New("boom")
	src = &AlpacaSource{client: &stubBarClient{err: boom}}
	if _, err := src.Latest(context.Background(), "AAPL"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped upstream error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Latest(ctx, "AAPL"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
