package engine

import "github.com/efreitasn/tradecore/internal/domain"

// LiquidityFunc reports whether quote shows enough counter-liquidity for
// an immediate fill of qty. MARKET orders that fail it are cancelled; TWAP
// slices that fail it are skipped.
type LiquidityFunc func(q domain.Quote, qty int64) bool

// AnyVolume treats any traded volume in the snapshot as liquidity.
func AnyVolume(q domain.Quote, _ int64) bool {
	return q.Volume > 0
}

// CoveringVolume requires the snapshot's volume to cover the whole
// quantity.
func CoveringVolume(q domain.Quote, qty int64) bool {
	return q.Volume >= qty && q.Volume > 0
}
