package service

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/quote"
	"github.com/efreitasn/tradecore/internal/store"
)

var orderSymbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,9}$`)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusNew:             true,
	domain.OrderStatusWorking:         true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCancelled:       true,
	domain.OrderStatusRejected:        true,
}

var validTimeInForce = map[domain.TimeInForce]bool{
	domain.TimeInForceDay: true,
	domain.TimeInForceGTC: true,
	domain.TimeInForceIOC: true,
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	AccountID     string
	ClientOrderID string
	Symbol        string
	Side          domain.OrderSide
	Type          domain.OrderType
	Quantity      int64
	LimitPrice    *string // required for LIMIT, must be nil otherwise
	TimeInForce   domain.TimeInForce
	TWAPSlices    *int           // TWAP only; defaults to the service setting
	TWAPWindow    *time.Duration // TWAP only; defaults to the service setting
}

// OrderService handles order submission, retrieval, cancellation, and listing.
type OrderService struct {
	engine     *engine.Engine
	store      store.Store
	twapSlices int
	twapWindow time.Duration
}

// NewOrderService creates a new OrderService. twapSlices and twapWindow
// apply to TWAP requests that leave them out.
func NewOrderService(eng *engine.Engine, st store.Store, twapSlices int, twapWindow time.Duration) *OrderService {
	return &OrderService{
		engine:     eng,
		store:      st,
		twapSlices: twapSlices,
		twapWindow: twapWindow,
	}
}

// SubmitOrder validates the request and hands the order to the engine.
// A rejected order is returned along with the rejection error so callers
// can report both.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*domain.Order, error) {
	if req.Type != domain.OrderTypeMarket && req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeTWAP {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: MARKET, LIMIT, TWAP", req.Type),
		}
	}
	if req.AccountID == "" {
		return nil, &domain.ValidationError{Message: "account_id is required"}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{Message: "side must be 'BUY' or 'SELL'"}
	}
	symbol := quote.Normalize(req.Symbol)
	if !orderSymbolRegex.MatchString(symbol) {
		return nil, &domain.ValidationError{Message: "symbol must match ^[A-Z][A-Z0-9.]{0,9}$"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = domain.TimeInForceDay
	}
	if !validTimeInForce[tif] {
		return nil, &domain.ValidationError{Message: "time_in_force must be one of: DAY, GTC, IOC"}
	}

	order := &domain.Order{
		AccountID:     req.AccountID,
		ClientOrderID: req.ClientOrderID,
		Symbol:        symbol,
		Side:          req.Side,
		Type:          req.Type,
		Quantity:      req.Quantity,
		TimeInForce:   tif,
	}

	if req.Type == domain.OrderTypeLimit {
		if req.LimitPrice == nil {
			return nil, &domain.ValidationError{Message: "limit_price is required for LIMIT orders"}
		}
		price, err := domain.ParseAmount(*req.LimitPrice)
		if err != nil {
			return nil, &domain.ValidationError{Message: "limit_price: " + err.Error()}
		}
		if !price.GreaterThan(decimal.Zero) {
			return nil, &domain.ValidationError{Message: "limit_price must be greater than 0"}
		}
		order.LimitPrice = &price
	} else if req.LimitPrice != nil {
		return nil, &domain.ValidationError{Message: "limit_price is only allowed on LIMIT orders"}
	}

	if req.Type == domain.OrderTypeTWAP {
		order.TWAPSlices = s.twapSlices
		if req.TWAPSlices != nil {
			order.TWAPSlices = *req.TWAPSlices
		}
		order.TWAPWindow = s.twapWindow
		if req.TWAPWindow != nil {
			order.TWAPWindow = *req.TWAPWindow
		}
		if order.TWAPSlices < 1 {
			return nil, &domain.ValidationError{Message: "twap_slices must be >= 1"}
		}
		if int64(order.TWAPSlices) > order.Quantity {
			return nil, &domain.ValidationError{Message: "twap_slices must not exceed quantity"}
		}
		if order.TWAPWindow <= 0 {
			return nil, &domain.ValidationError{Message: "twap_window must be positive"}
		}
	} else if req.TWAPSlices != nil || req.TWAPWindow != nil {
		return nil, &domain.ValidationError{Message: "twap_slices and twap_window are only allowed on TWAP orders"}
	}

	return s.engine.Submit(ctx, order)
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.engine.GetOrder(ctx, orderID)
}

// GetFills returns the fills of an order in execution order.
func (s *OrderService) GetFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	return s.engine.GetFills(ctx, orderID)
}

// CancelOrder cancels a non-terminal order. Terminal orders come back
// unchanged.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.engine.Cancel(ctx, orderID)
}

// ListOrders returns a paginated list of an account's orders with optional
// status filtering.
func (s *OrderService) ListOrders(ctx context.Context, accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if _, err := s.store.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}

	if status != nil && !ValidOrderStatuses[*status] {
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: NEW, WORKING, PARTIALLY_FILLED, FILLED, CANCELLED, REJECTED", *status),
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	return s.store.ListOrders(ctx, accountID, status, page, limit)
}
