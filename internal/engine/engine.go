// Package engine validates orders against risk limits and executes them
// against the latest quote, settling every fill into the order, the
// position and the account cash in one atomic store write.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/quote"
	"github.com/efreitasn/tradecore/internal/store"
)

// Engine is the order lifecycle driver. Locks are always taken in the
// order: order, then (account, symbol) position. No goroutine ever holds
// two order locks.
type Engine struct {
	store     store.Store
	quotes    quote.Provider
	books     *BookManager
	scheduler Scheduler
	locks     *KeyedMutex
	risk      Validator
	liquidity LiquidityFunc
	now       func() time.Time
	log       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the TWAP scheduler. Defaults to a TimerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.scheduler = s }
}

// WithLiquidity sets the counter-liquidity predicate. Defaults to AnyVolume.
func WithLiquidity(fn LiquidityFunc) Option {
	return func(e *Engine) { e.liquidity = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine over the given store and quote provider.
func New(st store.Store, quotes quote.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		quotes:    quotes,
		books:     NewBookManager(),
		locks:     NewKeyedMutex(),
		liquidity: AnyVolume,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.scheduler == nil {
		e.scheduler = NewTimerScheduler(context.Background())
	}
	return e
}

// Submit validates and executes a new order. The engine assigns the order
// ID, status and timestamps; the caller fills in the request fields.
//
// A missing account returns domain.ErrAccountNotFound and persists
// nothing. A missing quote or a failed risk check persists the order as
// REJECTED and returns it together with the error. Otherwise the returned
// order reflects the outcome of immediate execution: FILLED, CANCELLED
// (MARKET without liquidity) or WORKING (resting LIMIT, running TWAP).
func (e *Engine) Submit(ctx context.Context, o *domain.Order) (*domain.Order, error) {
	if err := validateOrder(o); err != nil {
		return nil, err
	}

	account, err := e.store.GetAccount(ctx, o.AccountID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	o.OrderID = uuid.New().String()
	o.Status = domain.OrderStatusNew
	o.FilledQuantity = 0
	o.FilledNotional = decimal.Zero
	o.RejectReason = ""
	o.CreatedAt = now
	o.UpdatedAt = now
	o.CancelledAt = nil

	defer e.locks.Lock(orderKey(o.OrderID))()
	defer e.locks.Lock(positionKey(o.AccountID, o.Symbol))()

	q, err := e.quotes.Quote(ctx, o.Symbol)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return e.reject(ctx, o, "no quote for "+o.Symbol, fmt.Errorf("quote %s: %w", o.Symbol, err))
		}
		return nil, err
	}

	pos, err := e.store.GetPosition(ctx, o.AccountID, o.Symbol)
	if err != nil {
		return nil, err
	}
	if err := e.risk.Check(RiskInput{
		Order:           o,
		Quote:           q,
		Limits:          account.Limits,
		CurrentPosition: pos.Quantity,
	}); err != nil {
		var rv *domain.RiskViolation
		if errors.As(err, &rv) {
			return e.reject(ctx, o, rv.Reason, err)
		}
		return nil, err
	}

	o.MarkWorking(now)
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	e.log.Info("order accepted",
		slog.String("order_id", o.OrderID),
		slog.String("account_id", o.AccountID),
		slog.String("symbol", o.Symbol),
		slog.String("side", string(o.Side)),
		slog.String("type", string(o.Type)),
		slog.Int64("quantity", o.Quantity),
	)

	switch o.Type {
	case domain.OrderTypeMarket:
		err = e.executeMarket(ctx, o, q)
	case domain.OrderTypeLimit:
		err = e.executeLimit(ctx, o, q)
	case domain.OrderTypeTWAP:
		e.startTWAP(o)
	}
	if err != nil {
		e.abandon(ctx, o, err)
		return o.Clone(), err
	}
	return o.Clone(), nil
}

// Cancel moves a non-terminal order to CANCELLED and suppresses any
// pending TWAP slices or resting LIMIT entry. Cancelling a terminal order
// is a no-op that returns the order unchanged.
func (e *Engine) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	defer e.locks.Lock(orderKey(orderID))()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Cancel(e.now()) {
		return o, nil
	}
	if err := e.store.UpdateOrder(ctx, o); err != nil {
		return nil, err
	}

	switch o.Type {
	case domain.OrderTypeTWAP:
		e.scheduler.Cancel(o.OrderID)
	case domain.OrderTypeLimit:
		e.books.GetOrCreate(o.Symbol).Remove(o.OrderID)
	}

	e.log.Info("order cancelled",
		slog.String("order_id", o.OrderID),
		slog.Int64("filled_quantity", o.FilledQuantity),
	)
	return o, nil
}

// GetOrder returns the current state of an order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return e.store.GetOrder(ctx, orderID)
}

// GetFills returns an order's fills in execution order.
func (e *Engine) GetFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	return e.store.ListFills(ctx, orderID)
}

// Reevaluate executes every resting LIMIT order on symbol that the
// current quote makes marketable, most aggressive first, and returns how
// many were filled. Callers invoke it after refreshing a quote.
func (e *Engine) Reevaluate(ctx context.Context, symbol string) (int, error) {
	q, err := e.quotes.Quote(ctx, symbol)
	if err != nil {
		return 0, err
	}

	book := e.books.GetOrCreate(q.Symbol)
	filled := 0
	for _, id := range book.Marketable(q.Price()) {
		ok, err := e.fillResting(ctx, book, id, q)
		if err != nil {
			return filled, err
		}
		if ok {
			filled++
		}
	}
	if filled > 0 {
		e.log.Info("resting orders filled",
			slog.String("symbol", q.Symbol),
			slog.String("price", q.Price().String()),
			slog.Int("count", filled),
		)
	}
	return filled, nil
}

// Restore puts the open orders found in the store back under engine
// control after a restart. WORKING LIMIT orders rest on the book again.
// MARKET orders interrupted mid-execution and TWAP orders whose schedule
// died with the previous process are cancelled keeping what they filled.
func (e *Engine) Restore(ctx context.Context) error {
	open, err := e.store.ListOpenOrders(ctx)
	if err != nil {
		return err
	}

	for _, o := range open {
		switch o.Type {
		case domain.OrderTypeLimit:
			e.rest(o)
		case domain.OrderTypeMarket, domain.OrderTypeTWAP:
			if _, err := e.Cancel(ctx, o.OrderID); err != nil {
				return fmt.Errorf("cancel orphaned order %s: %w", o.OrderID, err)
			}
		}
	}
	e.log.Info("open orders restored", slog.Int("count", len(open)))
	return nil
}

func (e *Engine) reject(ctx context.Context, o *domain.Order, reason string, cause error) (*domain.Order, error) {
	if err := o.Reject(reason, e.now()); err != nil {
		return nil, err
	}
	if err := e.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	e.log.Info("order rejected",
		slog.String("order_id", o.OrderID),
		slog.String("account_id", o.AccountID),
		slog.String("reason", reason),
	)
	return o.Clone(), cause
}

// executeMarket is immediate-or-cancel: one fill for the whole quantity at
// the quote price, or CANCELLED with nothing filled.
func (e *Engine) executeMarket(ctx context.Context, o *domain.Order, q domain.Quote) error {
	if !e.liquidity(q, o.RemainingQuantity()) {
		o.Cancel(e.now())
		if err := e.store.UpdateOrder(ctx, o); err != nil {
			return err
		}
		e.log.Info("market order cancelled without liquidity",
			slog.String("order_id", o.OrderID),
			slog.Int64("volume", q.Volume),
		)
		return nil
	}
	return e.fill(ctx, o, o.RemainingQuantity(), q.Price())
}

func (e *Engine) executeLimit(ctx context.Context, o *domain.Order, q domain.Quote) error {
	if marketable(o, q.Price()) {
		return e.fill(ctx, o, o.RemainingQuantity(), q.Price())
	}
	e.rest(o)
	e.log.Info("limit order resting",
		slog.String("order_id", o.OrderID),
		slog.String("limit_price", o.LimitPrice.String()),
		slog.String("quote_price", q.Price().String()),
	)
	return nil
}

// abandon cancels an order whose execution failed, keeping its filled
// quantity. o is replaced with the stored state.
func (e *Engine) abandon(ctx context.Context, o *domain.Order, cause error) {
	stored, err := e.store.GetOrder(ctx, o.OrderID)
	if err != nil {
		e.log.Error("abandon order: load",
			slog.String("order_id", o.OrderID),
			slog.String("error", err.Error()),
		)
		return
	}
	if stored.Cancel(e.now()) {
		if err := e.store.UpdateOrder(ctx, stored); err != nil {
			e.log.Error("abandon order: store",
				slog.String("order_id", o.OrderID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
	*o = *stored
	e.log.Warn("order cancelled after failed execution",
		slog.String("order_id", o.OrderID),
		slog.Int64("filled_quantity", o.FilledQuantity),
		slog.String("cause", cause.Error()),
	)
}

func (e *Engine) rest(o *domain.Order) {
	e.books.GetOrCreate(o.Symbol).Insert(RestingEntry{
		LimitPrice: *o.LimitPrice,
		CreatedAt:  o.CreatedAt,
		OrderID:    o.OrderID,
		Side:       o.Side,
	})
}

func (e *Engine) startTWAP(o *domain.Order) {
	interval := o.TWAPWindow / time.Duration(o.TWAPSlices)
	e.scheduler.Schedule(o.OrderID, o.TWAPSlices, interval, e.runSlice)
	e.log.Info("twap scheduled",
		slog.String("order_id", o.OrderID),
		slog.Int("slices", o.TWAPSlices),
		slog.Duration("interval", interval),
	)
}

// runSlice is the SliceFunc for TWAP orders. It re-reads the order under
// its lock, so a cancel that won the lock suppresses the slice.
func (e *Engine) runSlice(ctx context.Context, orderID string, slice int) bool {
	defer e.locks.Lock(orderKey(orderID))()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		e.log.Error("twap slice: load order",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if o.Status.IsTerminal() {
		return false
	}

	qty := min(SliceQuantity(o.Quantity, o.TWAPSlices, slice), o.RemainingQuantity())
	if qty > 0 {
		if err := e.executeSlice(ctx, o, slice, qty); err != nil {
			e.log.Error("twap slice failed",
				slog.String("order_id", orderID),
				slog.Int("slice", slice),
				slog.String("error", err.Error()),
			)
			e.abandon(ctx, o, err)
			return false
		}
	}

	last := slice >= o.TWAPSlices-1
	if last && o.Cancel(e.now()) {
		if err := e.store.UpdateOrder(ctx, o); err != nil {
			e.log.Error("twap finish",
				slog.String("order_id", orderID),
				slog.String("error", err.Error()),
			)
			return false
		}
		e.log.Info("twap finished unfilled",
			slog.String("order_id", orderID),
			slog.Int64("filled_quantity", o.FilledQuantity),
			slog.Int64("quantity", o.Quantity),
		)
	}
	return !last && !o.Status.IsTerminal()
}

func (e *Engine) executeSlice(ctx context.Context, o *domain.Order, slice int, qty int64) error {
	q, err := e.quotes.Quote(ctx, o.Symbol)
	if errors.Is(err, domain.ErrNotFound) {
		e.log.Warn("twap slice skipped: no quote",
			slog.String("order_id", o.OrderID),
			slog.Int("slice", slice),
		)
		return nil
	}
	if err != nil {
		return err
	}
	if !e.liquidity(q, qty) {
		e.log.Warn("twap slice skipped: no liquidity",
			slog.String("order_id", o.OrderID),
			slog.Int("slice", slice),
		)
		return nil
	}

	defer e.locks.Lock(positionKey(o.AccountID, o.Symbol))()
	return e.fill(ctx, o, qty, q.Price())
}

// fillResting executes one resting LIMIT order if it is still WORKING.
func (e *Engine) fillResting(ctx context.Context, book *RestingBook, orderID string, q domain.Quote) (bool, error) {
	defer e.locks.Lock(orderKey(orderID))()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status.IsTerminal() {
		book.Remove(orderID)
		return false, nil
	}
	if !marketable(o, q.Price()) {
		return false, nil
	}

	defer e.locks.Lock(positionKey(o.AccountID, o.Symbol))()
	if err := e.fill(ctx, o, o.RemainingQuantity(), q.Price()); err != nil {
		return false, err
	}
	book.Remove(orderID)
	return true, nil
}

// fill settles qty at price against o. The caller holds the order lock and
// the position lock. o is only updated once the settlement is stored.
func (e *Engine) fill(ctx context.Context, o *domain.Order, qty int64, price decimal.Decimal) error {
	now := e.now()
	f := &domain.Fill{
		FillID:     uuid.New().String(),
		OrderID:    o.OrderID,
		Quantity:   qty,
		Price:      price,
		ExecutedAt: now,
	}

	next := o.Clone()
	if err := next.ApplyFill(f); err != nil {
		if errors.Is(err, domain.ErrInvariantViolation) {
			e.log.Error("invariant violation",
				slog.String("order_id", o.OrderID),
				slog.String("error", err.Error()),
			)
		}
		return err
	}

	pos, err := e.store.GetPosition(ctx, o.AccountID, o.Symbol)
	if err != nil {
		return err
	}
	signed := o.Side.Sign() * qty
	realized, err := pos.Apply(signed, price, now)
	if err != nil {
		e.log.Error("invariant violation",
			slog.String("order_id", o.OrderID),
			slog.String("error", err.Error()),
		)
		return err
	}

	if err := e.store.Settle(ctx, store.Settlement{
		Fill:      f,
		Order:     next,
		Position:  pos,
		CashDelta: domain.Notional(signed, price).Neg(),
	}); err != nil {
		return fmt.Errorf("settle fill for order %s: %w", o.OrderID, err)
	}
	*o = *next

	e.log.Info("order filled",
		slog.String("order_id", o.OrderID),
		slog.String("fill_id", f.FillID),
		slog.Int64("quantity", qty),
		slog.String("price", price.String()),
		slog.String("status", string(o.Status)),
		slog.String("realized_pnl", realized.String()),
	)
	return nil
}

// marketable reports whether o would execute at price.
func marketable(o *domain.Order, price decimal.Decimal) bool {
	if o.LimitPrice == nil {
		return false
	}
	if o.Side == domain.OrderSideBuy {
		return price.LessThanOrEqual(*o.LimitPrice)
	}
	return price.GreaterThanOrEqual(*o.LimitPrice)
}

func validateOrder(o *domain.Order) error {
	if o.Quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be greater than zero"}
	}
	if o.Side != domain.OrderSideBuy && o.Side != domain.OrderSideSell {
		return &domain.ValidationError{Message: fmt.Sprintf("invalid side %q", o.Side)}
	}
	switch o.Type {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit:
		if o.LimitPrice == nil || !o.LimitPrice.IsPositive() {
			return &domain.ValidationError{Message: "limit orders require a positive limit price"}
		}
	case domain.OrderTypeTWAP:
		if o.TWAPSlices <= 0 || int64(o.TWAPSlices) > o.Quantity {
			return &domain.ValidationError{Message: "twap slices must be between 1 and the order quantity"}
		}
		if o.TWAPWindow <= 0 {
			return &domain.ValidationError{Message: "twap window must be positive"}
		}
	default:
		return &domain.ValidationError{Message: fmt.Sprintf("invalid order type %q", o.Type)}
	}
	return nil
}
