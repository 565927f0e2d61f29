package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
)

var _ Store = (*MemoryStore)(nil)

type positionKey struct {
	accountID string
	symbol    string
}

// MemoryStore is a thread-safe in-memory Store. A single RWMutex guards
// all tables so a settlement is observed all at once.
type MemoryStore struct {
	mu            sync.RWMutex
	accounts      map[string]*domain.Account
	orders        map[string]*domain.Order
	accountOrders map[string][]string        // account_id → order ids (append-only)
	fills         map[string][]*domain.Fill  // order_id → fills (append-only)
	positions     map[positionKey]*domain.Position
	accountSyms   map[string]map[string]bool // account_id → symbols with a position
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:      make(map[string]*domain.Account),
		orders:        make(map[string]*domain.Order),
		accountOrders: make(map[string][]string),
		fills:         make(map[string][]*domain.Fill),
		positions:     make(map[positionKey]*domain.Position),
		accountSyms:   make(map[string]map[string]bool),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, a *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[a.AccountID]; exists {
		return domain.ErrAccountAlreadyExists
	}
	s.accounts[a.AccountID] = a.Clone()
	return nil
}

func (s *MemoryStore) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryStore) UpdateAccountLimits(_ context.Context, id string, limits domain.RiskLimits, now time.Time) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	a.Limits = limits
	a.UpdatedAt = now
	return a.Clone(), nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[o.AccountID]; !ok {
		return domain.ErrAccountNotFound
	}
	s.orders[o.OrderID] = o.Clone()
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o.OrderID)
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) UpdateOrder(_ context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[o.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	s.orders[o.OrderID] = o.Clone()
	return nil
}

func (s *MemoryStore) ListOrders(_ context.Context, accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.accountOrders[accountID]

	// Newest first.
	filtered := make([]*domain.Order, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		o := s.orders[ids[i]]
		if status != nil && o.Status != *status {
			continue
		}
		filtered = append(filtered, o)
	}

	total := len(filtered)
	start, end := pageBounds(total, page, limit)
	out := make([]*domain.Order, 0, end-start)
	for _, o := range filtered[start:end] {
		out = append(out, o.Clone())
	}
	return out, total, nil
}

func (s *MemoryStore) ListOpenOrders(_ context.Context) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Order, 0)
	for _, o := range s.orders {
		if !o.Status.IsTerminal() {
			out = append(out, o.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out, nil
}

func (s *MemoryStore) ListFills(_ context.Context, orderID string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.orders[orderID]; !ok {
		return nil, domain.ErrOrderNotFound
	}
	fills := s.fills[orderID]
	out := make([]*domain.Fill, len(fills))
	for i, f := range fills {
		c := *f
		out[i] = &c
	}
	return out, nil
}

func (s *MemoryStore) GetPosition(_ context.Context, accountID, symbol string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.positions[positionKey{accountID, symbol}]; ok {
		return p.Clone(), nil
	}
	return &domain.Position{AccountID: accountID, Symbol: symbol}, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, accountID string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	syms := make([]string, 0, len(s.accountSyms[accountID]))
	for sym := range s.accountSyms[accountID] {
		syms = append(syms, sym)
	}
	sort.Strings(syms)

	out := make([]*domain.Position, len(syms))
	for i, sym := range syms {
		out[i] = s.positions[positionKey{accountID, sym}].Clone()
	}
	return out, nil
}

func (s *MemoryStore) Settle(_ context.Context, st Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before touching any table.
	account, ok := s.accounts[st.Order.AccountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if _, ok := s.orders[st.Order.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}

	fill := *st.Fill
	s.fills[fill.OrderID] = append(s.fills[fill.OrderID], &fill)
	s.orders[st.Order.OrderID] = st.Order.Clone()

	key := positionKey{st.Position.AccountID, st.Position.Symbol}
	s.positions[key] = st.Position.Clone()
	if s.accountSyms[key.accountID] == nil {
		s.accountSyms[key.accountID] = make(map[string]bool)
	}
	s.accountSyms[key.accountID][key.symbol] = true

	account.CashBalance = account.CashBalance.Add(st.CashDelta)
	account.UpdatedAt = fill.ExecutedAt
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
