package engine

import (
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

// RestingEntry is a WORKING limit order waiting for a marketable quote.
type RestingEntry struct {
	LimitPrice decimal.Decimal
	CreatedAt  time.Time
	OrderID    string
	Side       domain.OrderSide
}

// buyLess orders the buy side by limit price descending, then created_at
// ascending, then order_id ascending. Min() is the most aggressive buy.
func buyLess(a, b RestingEntry) bool {
	if c := a.LimitPrice.Cmp(b.LimitPrice); c != 0 {
		return c > 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// sellLess orders the sell side by limit price ascending, then created_at
// ascending, then order_id ascending. Min() is the most aggressive sell.
func sellLess(a, b RestingEntry) bool {
	if c := a.LimitPrice.Cmp(b.LimitPrice); c != 0 {
		return c < 0
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// RestingBook holds the resting limit orders of a single symbol in two
// B-trees with a secondary index for O(log n) removal by order ID.
type RestingBook struct {
	symbol string
	mu     sync.RWMutex
	buys   *btree.BTreeG[RestingEntry]
	sells  *btree.BTreeG[RestingEntry]
	index  map[string]RestingEntry // order_id → entry
}

// NewRestingBook creates an empty book for the given symbol.
func NewRestingBook(symbol string) *RestingBook {
	const degree = 32
	return &RestingBook{
		symbol: symbol,
		buys:   btree.NewG[RestingEntry](degree, buyLess),
		sells:  btree.NewG[RestingEntry](degree, sellLess),
		index:  make(map[string]RestingEntry),
	}
}

// Insert adds an entry to the side it belongs to.
func (b *RestingBook) Insert(entry RestingEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry.Side == domain.OrderSideBuy {
		b.buys.ReplaceOrInsert(entry)
	} else {
		b.sells.ReplaceOrInsert(entry)
	}
	b.index[entry.OrderID] = entry
}

// Remove deletes an order by ID and reports whether it was resting.
func (b *RestingBook) Remove(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.index[orderID]
	if !ok {
		return false
	}
	delete(b.index, orderID)
	if entry.Side == domain.OrderSideBuy {
		b.buys.Delete(entry)
	} else {
		b.sells.Delete(entry)
	}
	return true
}

// Marketable returns, in priority order, the IDs of every resting order
// that would execute at price: buys limited at or above it and sells
// limited at or below it.
func (b *RestingBook) Marketable(price decimal.Decimal) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var ids []string
	b.buys.Ascend(func(e RestingEntry) bool {
		if e.LimitPrice.LessThan(price) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	b.sells.Ascend(func(e RestingEntry) bool {
		if e.LimitPrice.GreaterThan(price) {
			return false
		}
		ids = append(ids, e.OrderID)
		return true
	})
	return ids
}

// Len returns the number of resting orders on both sides.
func (b *RestingBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// BookManager is a thread-safe map of symbol → RestingBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*RestingBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*RestingBook),
	}
}

// GetOrCreate returns the book for the given symbol, creating one if it
// doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *RestingBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewRestingBook(symbol)
	bm.books[symbol] = book
	return book
}
