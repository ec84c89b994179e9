// Package matching implements the Matching Core of spec §4.2: price-time
// priority crossing, iceberg/hidden/stop/peg order handling, self-trade
// prevention, and stop-order activation. It generalizes the teacher's
// engine.OrderBook.Match()/handleLimit/handleMarket sweep
// (internal/engine/orderbook.go) from a bare limit/market pair to the
// full order-type table, operating on internal/book.OrderBook instead of
// the teacher's float64-keyed price levels.
//
// The Matching Core does not decide whether an order is currently
// admissible — that is the Exchange Phase Machine's job (internal/phase).
// Engine.Submit always matches as if the instrument were in Continuous
// trading; phase.Machine calls Park instead during Pre-open/auction
// phases and rejects orders outright per its own acceptance table.
package matching

import "github.com/vantage-exchange/vantage/internal/common"

// Config is the per-instrument matching configuration of spec §6. It
// wraps common.InstrumentConfig, which already carries tick/lot size,
// self-trade prevention policy and the stop iteration cap.
type Config struct {
	common.InstrumentConfig
}

// Validate delegates to common.InstrumentConfig.Validate, which enforces
// spec §9's Open Question decision: self_trade_prevention has no ambient
// default and must be set explicitly. Pointer receiver so the default it
// fills into StopTriggerIterationCap reaches the caller's Config value.
func (c *Config) Validate() error {
	return c.InstrumentConfig.Validate()
}
