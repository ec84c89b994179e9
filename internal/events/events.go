// Package events defines the engine's chronological event stream (spec
// §4.4/§6). The Matching Core and Exchange Phase Machine are the only
// producers; the Analytics Recorder is the reference consumer, but any
// component can receive the stream through the Sink passed to
// matching.NewEngine or phase.NewMachine.
package events

import "github.com/vantage-exchange/vantage/internal/common"

// Kind tags which variant an Event carries.
type Kind int

const (
	KindOrderAccepted Kind = iota
	KindOrderRejected
	KindOrderCancelled
	KindTradeExecuted
	KindAuctionResult
	KindCircuitBreakerTriggered
	KindPhaseChanged
	KindInstrumentHalted
)

func (k Kind) String() string {
	switch k {
	case KindOrderAccepted:
		return "order_accepted"
	case KindOrderRejected:
		return "order_rejected"
	case KindOrderCancelled:
		return "order_cancelled"
	case KindTradeExecuted:
		return "trade_executed"
	case KindAuctionResult:
		return "auction_result"
	case KindCircuitBreakerTriggered:
		return "circuit_breaker_triggered"
	case KindPhaseChanged:
		return "phase_changed"
	case KindInstrumentHalted:
		return "instrument_halted"
	default:
		return "unknown"
	}
}

// Event is the single envelope type flowing out of the engine. Exactly one
// of the payload fields is populated, selected by Kind. A single struct
// (rather than an interface with type variants) keeps the stream cheap to
// copy and lets the Analytics Recorder switch on Kind without a type
// assertion per event, following the teacher's flat Report struct
// (internal/net/messages.go) rather than introducing a sum-type
// hierarchy.
type Event struct {
	Kind       Kind
	Instrument common.InstrumentId
	Sequence   int64 // strict per-instrument acceptance order (spec §5)
	Timestamp  common.Nanos

	Order              *common.Order
	RejectReason       error
	CancelledOrderId   common.OrderId
	CancelReason       string
	Trade              *common.Trade
	AuctionResult      *AuctionResult
	CircuitBreaker     *CircuitBreakerTriggered
	PhaseChange        *PhaseChanged
	InstrumentHalted   *InstrumentHalted
}

// AuctionResult is the payload of a KindAuctionResult event (spec §4.3/§6).
type AuctionResult struct {
	ClearingPrice  int64
	MatchedQty     int64
	ImbalanceSide  common.ImbalanceSide
	ImbalanceQty   int64
}

// CircuitBreakerTriggered is the payload of a KindCircuitBreakerTriggered
// event (spec §4.3/§6).
type CircuitBreakerTriggered struct {
	HaltDurationNs int64
}

// PhaseChanged is the payload of a KindPhaseChanged event (spec §6).
type PhaseChanged struct {
	From common.PhaseState
	To   common.PhaseState
}

// InstrumentHalted is the payload of a KindInstrumentHalted event (spec
// §7's Fatal category): an internal failure distinct from a
// CircuitBreakerTriggered policy breach — Reason names the invariant or
// bound that forced the halt (e.g. "stop_trigger_iteration_cap_exceeded"),
// never silent.
type InstrumentHalted struct {
	Reason string
}

// Sink is the interface the Matching Core and Phase Machine publish
// through. A Recorder implements Sink; tests may install a slice-backed
// Sink to assert on the exact emitted sequence (spec §8's round-trip
// property).
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Recording is a simple in-memory Sink used by tests to capture and
// replay the event stream (spec §8: "a replay of the full event stream
// reconstructs the end-of-session book identically").
type Recording struct {
	Events []Event
}

func (r *Recording) Publish(e Event) {
	r.Events = append(r.Events, e)
}
