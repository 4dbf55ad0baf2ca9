// Package ledger holds position state and the PnL arithmetic over it.
package ledger

// OpenPnl is the unrealized gain or loss on a position at the given last
// price. Qty is signed, so the result is correct for both long and short
// positions without branching.
func OpenPnl(qty, avgPrice, last float64) float64 {
	return (last - avgPrice) * qty
}

// PnlPct expresses a PnL figure as a percentage of the position basis
// (avgPrice * qty). A zero basis yields 0. The basis is signed: for a short
// position it is negative, which flips the sign of the percentage relative
// to the dollar PnL. That mirrored convention is deliberate and must not be
// "corrected".
func PnlPct(pnl, avgPrice, qty float64) float64 {
	basis := avgPrice * qty
	if basis == 0 {
		return 0
	}
	return pnl / basis * 100
}
