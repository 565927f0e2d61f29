package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a := newTestAccount("acc-1")
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	a.Name = "mutated after create"

	got, _ := s.GetAccount(ctx, "acc-1")
	if got.Name != "Desk acc-1" {
		t.Fatalf("store kept caller's pointer: name %q", got.Name)
	}

	o := newTestOrder("ord-1", "acc-1", base)
	limit := decimal.NewFromInt(10)
	o.LimitPrice = &limit
	s.CreateOrder(ctx, o)

	read, _ := s.GetOrder(ctx, "ord-1")
	read.Status = domain.OrderStatusFilled
	*read.LimitPrice = decimal.NewFromInt(99)

	again, _ := s.GetOrder(ctx, "ord-1")
	if again.Status != domain.OrderStatusNew {
		t.Fatalf("expected NEW, got %s", again.Status)
	}
	if !again.LimitPrice.Equal(limit) {
		t.Fatalf("limit price leaked through copy: %s", again.LimitPrice)
	}
}

func TestMemoryStore_ConcurrentSettle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.CreateAccount(ctx, newTestAccount("acc-1"))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		o := newTestOrder(fmt.Sprintf("ord-%d", i), "acc-1", base)
		o.Quantity = 1
		s.CreateOrder(ctx, o)

		wg.Add(1)
		go func(o *domain.Order, i int) {
			defer wg.Done()
			f := &domain.Fill{FillID: fmt.Sprintf("f-%d", i), OrderID: o.OrderID, Quantity: 1, Price: decimal.NewFromInt(1), ExecutedAt: base}
			o.ApplyFill(f)
			p := &domain.Position{AccountID: "acc-1", Symbol: fmt.Sprintf("S%d", i)}
			p.Apply(1, f.Price, base)
			if err := s.Settle(ctx, Settlement{Fill: f, Order: o, Position: p, CashDelta: decimal.NewFromInt(-1)}); err != nil {
				t.Errorf("settle: %v", err)
			}
		}(o, i)
	}
	wg.Wait()

	acct, _ := s.GetAccount(ctx, "acc-1")
	want := decimal.NewFromInt(10000 - n)
	if !acct.CashBalance.Equal(want) {
		t.Fatalf("expected cash %s, got %s", want, acct.CashBalance)
	}
	positions, _ := s.ListPositions(ctx, "acc-1")
	if len(positions) != n {
		t.Fatalf("expected %d positions, got %d", n, len(positions))
	}
}

func TestPageBounds(t *testing.T) {
	tests := []struct {
		total, page, limit int
		start, end         int
	}{
		{10, 1, 3, 0, 3},
		{10, 4, 3, 9, 10},
		{10, 5, 3, 10, 10},
		{0, 1, 20, 0, 0},
		{5, 0, 20, 5, 5},
	}
	for _, tt := range tests {
		start, end := pageBounds(tt.total, tt.page, tt.limit)
		if start != tt.start || end != tt.end {
			t.Errorf("pageBounds(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tt.total, tt.page, tt.limit, start, end, tt.start, tt.end)
		}
	}
}
