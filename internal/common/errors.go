package common

import "errors"

// Validation / configuration errors (spec §7's "Validation" category).
var (
	ErrSelfTradePreventionUnset = errors.New("self_trade_prevention must be set explicitly, no ambient default")
	ErrInvalidTickSize          = errors.New("tick_size must be positive")
	ErrInvalidLotSize           = errors.New("lot_size must be positive")
	ErrBadTick                  = errors.New("price is not a multiple of tick_size")
	ErrBadLot                   = errors.New("quantity is not a multiple of lot_size")
	ErrMissingPrice             = errors.New("limit order requires a price")
	ErrMissingStopPrice         = errors.New("stop order requires a stop_trigger price")
	ErrInvalidDisplayQty        = errors.New("iceberg display_quantity must be in (0, original_quantity]")
	ErrPegNoReference           = errors.New("peg order has no reference price: anchor side of book is empty")
	ErrFOKUnfillable            = errors.New("fill-or-kill order cannot be filled in full")
	ErrNoLiquidity              = errors.New("no opposing liquidity available")
)

// Not-found errors (spec §7's "Not found" category).
var (
	ErrOrderNotFound = errors.New("order not found")
)

// Phase-violation errors (spec §7's "Phase violation" category).
var (
	ErrPhaseRejected = errors.New("order type not accepted in current phase")
)

// Policy-breach errors (spec §7's "Policy breach" category).
var (
	ErrPriceBandBreach = errors.New("trade would print outside the circuit breaker band")
	ErrHalted          = errors.New("instrument is halted")
)

// Fatal errors (spec §7's "Fatal" category): never silent, always paired
// with an instrument halt and an operator alert.
var (
	ErrStopIterationCapExceeded = errors.New("stop trigger activation exceeded iteration cap")
	ErrInvariantViolation       = errors.New("internal invariant violation")
)
