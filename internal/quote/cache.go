// Package quote holds the latest OHLCV snapshot per symbol and refreshes
// it from an upstream market-data source.
package quote

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/efreitasn/tradecore/internal/domain"
)

// Provider returns the latest quote for a symbol. Unknown symbols return
// domain.ErrQuoteNotFound.
type Provider interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

// Source fetches a fresh quote from outside the process.
type Source interface {
	Latest(ctx context.Context, symbol string) (domain.Quote, error)
}

var _ Provider = (*Cache)(nil)

// Cache is a thread-safe in-memory Provider. Symbols are case-insensitive
// and stored upper-cased.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
	source Source // optional
}

// NewCache creates an empty Cache. source may be nil, in which case
// Refresh always fails.
func NewCache(source Source) *Cache {
	return &Cache{
		quotes: make(map[string]domain.Quote),
		source: source,
	}
}

// Set stores q as the latest quote for its symbol.
func (c *Cache) Set(q domain.Quote) domain.Quote {
	q.Symbol = Normalize(q.Symbol)
	c.mu.Lock()
	c.quotes[q.Symbol] = q
	c.mu.Unlock()
	return q
}

func (c *Cache) Quote(_ context.Context, symbol string) (domain.Quote, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[Normalize(symbol)]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	return q, nil
}

// Symbols returns every cached symbol.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.quotes))
	for s := range c.quotes {
		out = append(out, s)
	}
	return out
}

// Refresh pulls the latest quote for symbol from the source and caches it.
func (c *Cache) Refresh(ctx context.Context, symbol string) (domain.Quote, error) {
	if c.source == nil {
		return domain.Quote{}, fmt.Errorf("refresh %s: no market-data source configured", symbol)
	}
	q, err := c.source.Latest(ctx, Normalize(symbol))
	if err != nil {
		return domain.Quote{}, err
	}
	return c.Set(q), nil
}

// Normalize returns the canonical form of a ticker symbol.
func Normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
