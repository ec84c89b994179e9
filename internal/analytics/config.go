// Package analytics implements the Analytics Recorder of spec §4.4: a
// pure consumer of the engine's event stream (internal/events) that
// maintains per-instrument and per-participant metrics and hands back
// copied snapshots, never the underlying event list or live state.
package analytics

// Config is the Recorder's fee schedule and windowing configuration.
type Config struct {
	// MakerRebateBps credits a maker's realized P&L per trade, in basis
	// points of notional (e.g. 2 = 0.02%). Zero disables the rebate.
	MakerRebateBps int64
	// TakerFeeBps debits a taker's realized P&L per trade, in basis points
	// of notional.
	TakerFeeBps int64
	// VolatilityWindow bounds the realized-volatility return window (spec
	// §4.4: "O(n) over the returns window" — n is this value). Defaults to
	// 100 if left zero.
	VolatilityWindow int
}

const defaultVolatilityWindow = 100

func (c Config) window() int {
	if c.VolatilityWindow <= 0 {
		return defaultVolatilityWindow
	}
	return c.VolatilityWindow
}
