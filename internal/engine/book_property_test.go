package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/tradecore/internal/domain"
)

// genRestingEntry generates a random RestingEntry with constrained values.
func genRestingEntry(id int, side domain.OrderSide) *rapid.Generator[RestingEntry] {
	return rapid.Custom(func(t *rapid.T) RestingEntry {
		cents := rapid.Int64Range(1, 10000).Draw(t, "cents")
		// A small range of seconds encourages timestamp collisions and exercises tiebreaking.
		secOffset := rapid.IntRange(0, 20).Draw(t, "secOffset")
		return RestingEntry{
			LimitPrice: decimal.New(cents, -2),
			CreatedAt:  time.Date(2025, 1, 1, 0, 0, secOffset, 0, time.UTC),
			OrderID:    fmt.Sprintf("order-%03d", id),
			Side:       side,
		}
	})
}

func TestProperty_BuySideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewRestingBook("TEST")
		for i := 0; i < n; i++ {
			book.Insert(genRestingEntry(i, domain.OrderSideBuy).Draw(t, fmt.Sprintf("buy-%d", i)))
		}

		var prev *RestingEntry
		book.buys.Ascend(func(e RestingEntry) bool {
			if prev != nil && buyLess(e, *prev) {
				t.Fatalf("buy side out of order: %s@%v/%s after %s@%v/%s",
					e.LimitPrice, e.CreatedAt, e.OrderID, prev.LimitPrice, prev.CreatedAt, prev.OrderID)
			}
			if prev != nil && e.LimitPrice.GreaterThan(prev.LimitPrice) {
				t.Fatalf("buy side: price should be descending, got %s after %s", e.LimitPrice, prev.LimitPrice)
			}
			cur := e
			prev = &cur
			return true
		})
	})
}

func TestProperty_SellSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewRestingBook("TEST")
		for i := 0; i < n; i++ {
			book.Insert(genRestingEntry(i, domain.OrderSideSell).Draw(t, fmt.Sprintf("sell-%d", i)))
		}

		var prev *RestingEntry
		book.sells.Ascend(func(e RestingEntry) bool {
			if prev != nil && e.LimitPrice.LessThan(prev.LimitPrice) {
				t.Fatalf("sell side: price should be ascending, got %s after %s", e.LimitPrice, prev.LimitPrice)
			}
			if prev != nil && e.LimitPrice.Equal(prev.LimitPrice) && e.CreatedAt.Before(prev.CreatedAt) {
				t.Fatalf("sell side: same price %s, created_at should be ascending", e.LimitPrice)
			}
			cur := e
			prev = &cur
			return true
		})
	})
}

// Marketable returns exactly the entries that would execute at the price.
func TestProperty_MarketableMatchesBruteForce(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 40).Draw(t, "numEntries")
		book := NewRestingBook("TEST")
		var all []RestingEntry
		for i := 0; i < n; i++ {
			side := rapid.SampledFrom([]domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}).Draw(t, "side")
			e := genRestingEntry(i, side).Draw(t, fmt.Sprintf("entry-%d", i))
			book.Insert(e)
			all = append(all, e)
		}
		price := decimal.New(rapid.Int64Range(1, 10000).Draw(t, "price"), -2)

		want := make(map[string]bool)
		for _, e := range all {
			if (e.Side == domain.OrderSideBuy && e.LimitPrice.GreaterThanOrEqual(price)) ||
				(e.Side == domain.OrderSideSell && e.LimitPrice.LessThanOrEqual(price)) {
				want[e.OrderID] = true
			}
		}

		got := book.Marketable(price)
		if len(got) != len(want) {
			t.Fatalf("marketable returned %d ids, want %d", len(got), len(want))
		}
		for _, id := range got {
			if !want[id] {
				t.Fatalf("order %s is not marketable at %s", id, price)
			}
		}
	})
}
