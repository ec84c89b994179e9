package matching

import (
	"github.com/rs/zerolog/log"

	"github.com/vantage-exchange/vantage/internal/book"
	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
)

// SubmitResult is the outcome of Engine.Submit: the (possibly mutated)
// order and every trade it produced, including trades produced by any
// stop orders it activated.
type SubmitResult struct {
	Order    *common.Order
	Trades   []common.Trade
	Rejected bool
	Reason   error
}

// Engine is the per-instrument Matching Core of spec §4.2. One Engine
// owns exactly one book.OrderBook; cross-instrument operations use
// separate Engine values, consistent with spec §5's single-writer-per-
// instrument model.
type Engine struct {
	cfg   Config
	clock common.Clock
	ids   *common.IdSequence
	sink  events.Sink
	book  *book.OrderBook
	stops *pendingStops
	seq   int64
}

// NewEngine constructs a Matching Core for one instrument. sink receives
// every OrderAccepted/OrderRejected/OrderCancelled/TradeExecuted event in
// strict acceptance order (spec §5).
func NewEngine(cfg Config, clock common.Clock, ids *common.IdSequence, sink events.Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:   cfg,
		clock: clock,
		ids:   ids,
		sink:  sink,
		book:  book.New(cfg.Instrument),
		stops: newPendingStops(),
	}, nil
}

// Book exposes the underlying order book for read-only depth/quote
// queries and for the phase machine's auction uncross, which mutates the
// book directly for parked orders.
func (e *Engine) Book() *book.OrderBook { return e.book }

// Config returns the engine's instrument configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) nextSeq() int64 {
	e.seq++
	return e.seq
}

// Publish lets a caller outside the Matching Core (the Exchange Phase
// Machine, for PhaseChanged/AuctionResult/CircuitBreakerTriggered) append
// to this instrument's event stream through the same sequence counter
// the engine itself uses, preserving spec §5's strict per-instrument
// acceptance ordering across both subsystems.
func (e *Engine) Publish(ev events.Event) { e.publish(ev) }

func (e *Engine) publish(ev events.Event) {
	ev.Instrument = e.cfg.Instrument
	ev.Sequence = e.nextSeq()
	if e.sink != nil {
		e.sink.Publish(ev)
	}
}

// Submit is the continuous-trading entry point for a new order (spec
// §4.2). It assumes the caller (normally phase.Machine) has already
// decided the order is admissible in the current phase. Stop-order
// activation is driven by a bounded work queue rather than recursion
// (spec §9), fed by every trade this submission (and its activations)
// produce.
func (e *Engine) Submit(o *common.Order) (SubmitResult, error) {
	now := e.clock.Now()
	o.AcceptTime = now
	o.LastUpdate = now
	if o.Id == 0 {
		o.Id = e.ids.NextOrderId()
	}

	result, err := e.doSubmit(o)
	allTrades := append([]common.Trade(nil), result.Trades...)

	iterations := 0
	for err == nil && len(result.Trades) > 0 {
		triggered := e.stops.drainTriggered(e.book.LastTradePrice)
		if len(triggered) == 0 {
			break
		}
		iterations++
		if iterations > e.cfg.StopTriggerIterationCap {
			log.Error().Int64("instrument", int64(e.cfg.Instrument)).Int("cap", e.cfg.StopTriggerIterationCap).
				Msg("stop trigger activation exceeded iteration cap, halting instrument")
			e.publish(events.Event{
				Kind:             events.KindInstrumentHalted,
				Timestamp:        e.clock.Now(),
				InstrumentHalted: &events.InstrumentHalted{Reason: "stop_trigger_iteration_cap_exceeded"},
			})
			return SubmitResult{Order: o, Trades: allTrades}, common.ErrStopIterationCapExceeded
		}

		var roundTrades []common.Trade
		for _, stopOrder := range triggered {
			activated := activateStop(stopOrder)
			r2, _ := e.doSubmit(activated)
			roundTrades = append(roundTrades, r2.Trades...)
		}
		allTrades = append(allTrades, roundTrades...)
		result.Trades = roundTrades
	}

	return SubmitResult{Order: o, Trades: allTrades, Rejected: result.Rejected, Reason: result.Reason}, err
}

// Park inserts an order into the book without attempting to match it
// (spec §4.3's Pre-open/auction phases: orders rest but the book does
// not cross). Stop and stop-limit orders are parked into the pending
// trigger sets instead of the book, exactly as in continuous trading.
func (e *Engine) Park(o *common.Order) (SubmitResult, error) {
	now := e.clock.Now()
	o.AcceptTime = now
	o.LastUpdate = now
	if o.Id == 0 {
		o.Id = e.ids.NextOrderId()
	}
	if err := validateOrder(e.cfg, o); err != nil {
		o.Status = common.StatusRejected
		e.publish(events.Event{Kind: events.KindOrderRejected, Order: o, RejectReason: err, Timestamp: now})
		return SubmitResult{Order: o, Rejected: true, Reason: err}, nil
	}

	switch o.Type {
	case common.StopOrder, common.StopLimitOrder:
		e.stops.add(o)
	default:
		if o.Type == common.IcebergOrder {
			o.CurrentDisplay = minI64(o.DisplayQty, o.RemainingQty)
		} else if !o.Hidden {
			o.CurrentDisplay = o.RemainingQty
		}
		o.Status = common.StatusNew
		e.book.Insert(o)
	}
	e.publish(events.Event{Kind: events.KindOrderAccepted, Order: o, Timestamp: now})
	return SubmitResult{Order: o}, nil
}

// Cancel removes a resting order or a pending stop order. An unknown id
// is a reported error, never fatal (spec §4.2's failure semantics).
func (e *Engine) Cancel(id common.OrderId, reason string) (*common.Order, error) {
	if o, ok := e.book.Cancel(id); ok {
		e.publish(events.Event{
			Kind:             events.KindOrderCancelled,
			CancelledOrderId: id,
			CancelReason:     reason,
			Timestamp:        e.clock.Now(),
			Order:            o,
		})
		return o, nil
	}
	if o, ok := e.stops.remove(id); ok {
		o.Status = common.StatusCancelled
		e.publish(events.Event{
			Kind:             events.KindOrderCancelled,
			CancelledOrderId: id,
			CancelReason:     reason,
			Timestamp:        e.clock.Now(),
			Order:            o,
		})
		return o, nil
	}
	return nil, common.ErrOrderNotFound
}

// ExpireDayOrders cancels every resting Day-TIF order, for the Post-close
// transition (spec §3: orders are "destroyed when filled, cancelled, or
// expired at session end").
func (e *Engine) ExpireDayOrders() []common.Order {
	var expired []common.Order
	for id, o := range e.book.Orders() {
		if o.TimeInForce == common.Day {
			if cancelled, ok := e.book.Cancel(id); ok {
				expired = append(expired, *cancelled)
				e.publish(events.Event{
					Kind:             events.KindOrderCancelled,
					CancelledOrderId: id,
					CancelReason:     "session_expired",
					Timestamp:        e.clock.Now(),
					Order:            cancelled,
				})
			}
		}
	}
	return expired
}

func minI64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
