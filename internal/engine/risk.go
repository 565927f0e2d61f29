package engine

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"
)

// RiskInput is everything the validator looks at for one order.
type RiskInput struct {
	Order           *domain.Order
	Quote           domain.Quote
	Limits          domain.RiskLimits
	CurrentPosition int64 // signed quantity held before this order
}

// ReferencePrice is the price used to value an order before it executes:
// the limit price for LIMIT orders and the quote close otherwise.
func ReferencePrice(o *domain.Order, q domain.Quote) decimal.Decimal {
	if o.Type == domain.OrderTypeLimit && o.LimitPrice != nil {
		return *o.LimitPrice
	}
	return q.Price()
}

// Validator runs the pre-trade checks. It holds no state; the zero value
// is ready to use.
type Validator struct{}

// Check returns nil when every check passes, or a *domain.RiskViolation
// naming the first limit that failed. Limits configured as zero are
// skipped. Check never mutates its input.
func (Validator) Check(in RiskInput) error {
	o, lim := in.Order, in.Limits

	if lim.MaxOrderQuantity > 0 && o.Quantity > lim.MaxOrderQuantity {
		return domain.NewRiskViolation("order quantity %d exceeds max order quantity %d",
			o.Quantity, lim.MaxOrderQuantity)
	}

	if lim.MaxNotional.IsPositive() {
		ref := ReferencePrice(o, in.Quote)
		notional := domain.Notional(o.Quantity, ref)
		if notional.GreaterThan(lim.MaxNotional) {
			return domain.NewRiskViolation("order notional %s exceeds max notional %s",
				notional.StringFixed(domain.LedgerPlaces), lim.MaxNotional.StringFixed(domain.LedgerPlaces))
		}
	}

	if lim.MaxPositionQuantity > 0 {
		next, ok := domain.AddQuantity(in.CurrentPosition, o.Side.Sign()*o.Quantity)
		if !ok {
			return domain.NewRiskViolation("resulting position overflows max position quantity %d",
				lim.MaxPositionQuantity)
		}
		if next > lim.MaxPositionQuantity || next < -lim.MaxPositionQuantity {
			return domain.NewRiskViolation("resulting position %d exceeds max position quantity %d",
				next, lim.MaxPositionQuantity)
		}
	}

	// A zero-volume snapshot reports no liquidity at all; execution decides
	// what that means for the order.
	if in.Quote.Volume > 0 && o.Quantity > in.Quote.Volume {
		return domain.NewRiskViolation("order quantity %d exceeds %s quote volume %d",
			o.Quantity, in.Quote.Symbol, in.Quote.Volume)
	}

	return nil
}
