package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/store"
)

var accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// LimitsInput carries risk limits as received from a client. Nil fields
// are omitted; decimal amounts arrive as strings.
type LimitsInput struct {
	MaxOrderQuantity    *int64
	MaxNotional         *string
	MaxPositionQuantity *int64
}

// CreateAccountRequest represents the input for account creation.
type CreateAccountRequest struct {
	AccountID   string // generated when empty
	Name        string
	InitialCash string
	Limits      LimitsInput
}

// PositionView is a position plus the figures derived from it.
type PositionView struct {
	Symbol      string
	Quantity    int64
	AverageCost decimal.Decimal
	RealizedPnL decimal.Decimal
	UpdatedAt   time.Time
}

// AccountService handles account creation, limits and ledger views.
type AccountService struct {
	store  store.Store
	engine *engine.Engine
	now    func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(st store.Store, eng *engine.Engine) *AccountService {
	return &AccountService{store: st, engine: eng, now: time.Now}
}

// Create validates the request and creates the account.
func (s *AccountService) Create(ctx context.Context, req CreateAccountRequest) (*domain.Account, error) {
	if req.AccountID == "" {
		req.AccountID = uuid.New().String()
	}
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if req.Name == "" {
		return nil, &domain.ValidationError{Message: "name is required"}
	}

	cash := decimal.Zero
	if req.InitialCash != "" {
		var err error
		cash, err = domain.ParseAmount(req.InitialCash)
		if err != nil {
			return nil, &domain.ValidationError{Message: "initial_cash: " + err.Error()}
		}
		if cash.IsNegative() {
			return nil, &domain.ValidationError{Message: "initial_cash must be >= 0"}
		}
	}

	update, err := parseLimits(req.Limits)
	if err != nil {
		return nil, err
	}

	now := s.now()
	a := &domain.Account{
		AccountID:   req.AccountID,
		Name:        req.Name,
		Limits:      domain.RiskLimits{MaxNotional: decimal.Zero}.Merge(update),
		CashBalance: cash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the account's current balance and limits.
func (s *AccountService) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// UpdateLimits changes the fields present in in and keeps the rest.
func (s *AccountService) UpdateLimits(ctx context.Context, accountID string, in LimitsInput) (*domain.Account, error) {
	update, err := parseLimits(in)
	if err != nil {
		return nil, err
	}
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.store.UpdateAccountLimits(ctx, accountID, a.Limits.Merge(update), s.now())
}

// Positions lists the account's positions ordered by symbol.
func (s *AccountService) Positions(ctx context.Context, accountID string) ([]PositionView, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	positions, err := s.store.ListPositions(ctx, accountID)
	if err != nil {
		return nil, err
	}

	out := make([]PositionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, PositionView{
			Symbol:      p.Symbol,
			Quantity:    p.Quantity,
			AverageCost: p.AverageCost,
			RealizedPnL: p.RealizedPnL,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	return out, nil
}

// PnL marks the account's open positions at the latest quotes.
func (s *AccountService) PnL(ctx context.Context, accountID string) (*engine.PnLReport, error) {
	return s.engine.PnL(ctx, accountID)
}

func parseLimits(in LimitsInput) (domain.LimitsUpdate, error) {
	var u domain.LimitsUpdate

	if in.MaxOrderQuantity != nil {
		if *in.MaxOrderQuantity < 0 {
			return u, &domain.ValidationError{Message: "max_order_quantity must be >= 0"}
		}
		u.MaxOrderQuantity = in.MaxOrderQuantity
	}
	if in.MaxPositionQuantity != nil {
		if *in.MaxPositionQuantity < 0 {
			return u, &domain.ValidationError{Message: "max_position_quantity must be >= 0"}
		}
		u.MaxPositionQuantity = in.MaxPositionQuantity
	}
	if in.MaxNotional != nil {
		d, err := domain.ParseAmount(*in.MaxNotional)
		if err != nil {
			return u, &domain.ValidationError{Message: fmt.Sprintf("max_notional: %v", err)}
		}
		if d.IsNegative() {
			return u, &domain.ValidationError{Message: "max_notional must be >= 0"}
		}
		u.MaxNotional = &d
	}
	return u, nil
}
