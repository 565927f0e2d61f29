package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/quote"
	"github.com/efreitasn/tradecore/internal/store"
)

// Across any sequence of orders, every fill is reflected exactly once in
// the order, the position and the cash balance.
func TestProperty_FillsReconcileWithLedger(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		st := store.NewMemoryStore()
		quotes := quote.NewCache(nil)
		sched := newManualScheduler()
		eng := New(st, quotes, WithScheduler(sched), WithLogger(discardLogger()))

		initial := decimal.RequireFromString("1000000.00")
		st.CreateAccount(ctx, &domain.Account{AccountID: "acc-1", CashBalance: initial})

		var orderIDs []string
		n := rapid.IntRange(1, 30).Draw(t, "orders")
		for i := 0; i < n; i++ {
			cents := rapid.Int64Range(100, 50_000).Draw(t, "cents")
			volume := rapid.SampledFrom([]int64{0, 1_000_000}).Draw(t, "volume")
			quotes.Set(domain.Quote{Symbol: "TEST", Close: decimal.New(cents, -2), Volume: volume})

			o := &domain.Order{
				AccountID: "acc-1",
				Symbol:    "TEST",
				Side:      rapid.SampledFrom([]domain.OrderSide{domain.OrderSideBuy, domain.OrderSideSell}).Draw(t, "side"),
				Quantity:  rapid.Int64Range(1, 100).Draw(t, "qty"),
			}
			switch rapid.IntRange(0, 2).Draw(t, "type") {
			case 0:
				o.Type = domain.OrderTypeMarket
			case 1:
				o.Type = domain.OrderTypeLimit
				lp := decimal.New(rapid.Int64Range(100, 50_000).Draw(t, "limit"), -2)
				o.LimitPrice = &lp
			case 2:
				o.Type = domain.OrderTypeTWAP
				o.TWAPSlices = int(rapid.Int64Range(1, o.Quantity).Draw(t, "slices"))
				o.TWAPWindow = 1
			}

			got, err := eng.Submit(ctx, o)
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			orderIDs = append(orderIDs, got.OrderID)

			if rapid.Bool().Draw(t, "fireSlice") {
				sched.fire(got.OrderID)
			}
			if rapid.Bool().Draw(t, "reevaluate") {
				eng.Reevaluate(ctx, "TEST")
			}
			if rapid.IntRange(0, 4).Draw(t, "cancel") == 0 {
				eng.Cancel(ctx, got.OrderID)
			}
		}

		var position int64
		cash := initial
		for _, id := range orderIDs {
			o, _ := eng.GetOrder(ctx, id)
			fills, _ := eng.GetFills(ctx, id)

			var sum int64
			for _, f := range fills {
				sum += f.Quantity
				signed := o.Side.Sign() * f.Quantity
				position += signed
				cash = cash.Sub(domain.Notional(signed, f.Price))
			}
			if sum != o.FilledQuantity {
				t.Fatalf("order %s: fills sum to %d, filled %d", id, sum, o.FilledQuantity)
			}
			if o.FilledQuantity > o.Quantity {
				t.Fatalf("order %s overfilled: %d > %d", id, o.FilledQuantity, o.Quantity)
			}
			if o.Status == domain.OrderStatusFilled && o.FilledQuantity != o.Quantity {
				t.Fatalf("order %s FILLED with %d of %d", id, o.FilledQuantity, o.Quantity)
			}
		}

		p, _ := st.GetPosition(ctx, "acc-1", "TEST")
		if p.Quantity != position {
			t.Fatalf("position %d, fills imply %d", p.Quantity, position)
		}
		a, _ := st.GetAccount(ctx, "acc-1")
		if !a.CashBalance.Equal(cash) {
			t.Fatalf("cash %s, fills imply %s", a.CashBalance, cash)
		}
	})
}
