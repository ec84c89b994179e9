// Package phase implements the Exchange Phase Machine of spec §4.3: the
// state machine governing which order types an instrument accepts at any
// moment, the opening/closing auction uncross, and the circuit breaker.
// It wraps one matching.Engine per instrument the way the teacher's
// net.Server wraps one engine.Engine — composition over inheritance, no
// adapter polymorphism beyond the plain Go interfaces matching.Engine
// already exposes.
package phase

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
	"github.com/vantage-exchange/vantage/internal/matching"
)

// Machine owns the phase state for one instrument and gates every order
// submission through the entry-acceptance table of spec §4.3.
type Machine struct {
	mu sync.Mutex

	cfg    common.InstrumentConfig
	engine *matching.Engine
	clock  common.Clock
	ids    *common.IdSequence
	sink   events.Sink

	state         common.PhaseState
	referencePrice int64 // previous session's closing auction price, or 0
	haltUntil      common.Nanos
	resumeState    common.PhaseState // phase to resume once a halt expires
	cbCount        int
	haltEvents     []haltRecord
}

type haltRecord struct {
	start common.Nanos
	end   common.Nanos
}

// NewMachine constructs a phase machine in Pre-open for one instrument.
// sink should be the same events.Sink the engine publishes to, so the
// combined stream stays in strict per-instrument order (Engine.Publish
// routes through the engine's own sequence counter).
func NewMachine(cfg common.InstrumentConfig, clock common.Clock, ids *common.IdSequence, sink events.Sink) (*Machine, error) {
	eng, err := matching.NewEngine(matching.Config{InstrumentConfig: cfg}, clock, ids, sink)
	if err != nil {
		return nil, err
	}
	return &Machine{
		cfg:    cfg,
		engine: eng,
		clock:  clock,
		ids:    ids,
		sink:   sink,
		state:  common.PreOpen,
	}, nil
}

// State returns the current phase.
func (m *Machine) State() common.PhaseState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Engine exposes the wrapped Matching Core for read-only queries (quotes,
// depth) and for wiring into internal/wire's order-entry server.
func (m *Machine) Engine() *matching.Engine { return m.engine }

// Submit routes an order through spec §4.3's entry-acceptance table:
// Pre-open and the auction phases park orders without matching; Continuous
// forwards to the Matching Core after a circuit-breaker pre-check; Halted
// only accepts stop/stop-limit orders (parked) and cancels; Post-close
// rejects everything but cancels.
func (m *Machine) Submit(o *common.Order) (matching.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case common.PreOpen:
		if o.Type == common.MarketOrder {
			return m.reject(o, common.ErrPhaseRejected)
		}
		return m.engine.Park(o)

	case common.OpeningAuction, common.ClosingAuction:
		if o.Type == common.MarketOrder || o.Type == common.StopOrder || o.Type == common.StopLimitOrder {
			return m.reject(o, common.ErrPhaseRejected)
		}
		return m.engine.Park(o)

	case common.Continuous:
		if breach, price := m.wouldBreachBand(o); breach {
			m.triggerHalt(price)
			return m.reject(o, common.ErrPriceBandBreach)
		}
		return m.engine.Submit(o)

	case common.Halted:
		if o.Type == common.StopOrder || o.Type == common.StopLimitOrder {
			return m.engine.Park(o)
		}
		return m.reject(o, common.ErrHalted)

	case common.PostClose:
		return m.reject(o, common.ErrPhaseRejected)

	default:
		return m.reject(o, common.ErrPhaseRejected)
	}
}

func (m *Machine) reject(o *common.Order, reason error) (matching.SubmitResult, error) {
	if o.Id == 0 {
		o.Id = m.ids.NextOrderId()
	}
	o.AcceptTime = m.clock.Now()
	o.Status = common.StatusRejected
	m.engine.Publish(events.Event{Kind: events.KindOrderRejected, Order: o, RejectReason: reason, Timestamp: o.AcceptTime})
	return matching.SubmitResult{Order: o, Rejected: true, Reason: reason}, nil
}

// Cancel is accepted in every phase, including Halted and Post-close
// (spec §4.3's entry-acceptance table: cancel is always "accept").
func (m *Machine) Cancel(id common.OrderId, reason string) (*common.Order, error) {
	return m.engine.Cancel(id, reason)
}

// wouldBreachBand predicts whether o, if forwarded to the Matching Core
// right now, would print its first fill outside the circuit-breaker band
// around referencePrice. Only the first (best-opposing) fill price is
// checked — a documented simplification for multi-level sweeps; see
// DESIGN.md.
func (m *Machine) wouldBreachBand(o *common.Order) (bool, int64) {
	if m.cfg.PriceBandPct <= 0 {
		return false, 0
	}
	book := m.engine.Book()
	switch o.Side {
	case common.Buy:
		ask, ok := book.BestAsk()
		if !ok {
			return false, 0
		}
		if o.Type == common.MarketOrder || o.Price >= ask {
			return !withinBand(ask, m.referencePrice, m.cfg.PriceBandPct), ask
		}
	case common.Sell:
		bid, ok := book.BestBid()
		if !ok {
			return false, 0
		}
		if o.Type == common.MarketOrder || o.Price <= bid {
			return !withinBand(bid, m.referencePrice, m.cfg.PriceBandPct), bid
		}
	}
	return false, 0
}

// triggerHalt transitions into Halted for cfg.HaltDurationMs, recording a
// circuit-breaker event. The machine resumes Continuous once the halt
// expires (driven by Scheduler's tick loop, spec §4.3's "(added)"
// scheduler).
func (m *Machine) triggerHalt(price int64) {
	now := m.clock.Now()
	durationNs := m.cfg.HaltDurationMs * int64(1_000_000)
	m.resumeState = common.Continuous
	m.haltUntil = now + common.Nanos(durationNs)
	m.cbCount++
	from := m.state
	m.state = common.Halted
	m.haltEvents = append(m.haltEvents, haltRecord{start: now})

	m.engine.Publish(events.Event{
		Kind:           events.KindCircuitBreakerTriggered,
		Timestamp:      now,
		CircuitBreaker: &events.CircuitBreakerTriggered{HaltDurationNs: durationNs},
	})
	m.engine.Publish(events.Event{
		Kind:        events.KindPhaseChanged,
		Timestamp:   now,
		PhaseChange: &events.PhaseChanged{From: from, To: common.Halted},
	})
	log.Warn().Int64("price", price).Int64("reference", m.referencePrice).Msg("circuit breaker triggered, instrument halted")
}

// transitionTo moves the machine to a new phase, publishing a
// PhaseChanged event and running the opening/closing auction uncross when
// entering Continuous/Post-close from an auction phase.
func (m *Machine) transitionTo(to common.PhaseState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsafeTransitionTo(to)
}

func (m *Machine) unsafeTransitionTo(to common.PhaseState) {
	from := m.state
	if from == to {
		return
	}
	now := m.clock.Now()

	if (from == common.OpeningAuction || from == common.ClosingAuction) && to != from {
		res := runUncross(m.engine.Book(), m.ids, m.cfg.Instrument, m.referencePrice, now)
		if res.MatchedQty > 0 {
			m.referencePrice = res.ClearingPrice
			for _, t := range res.Trades {
				t := t
				m.engine.Publish(events.Event{Kind: events.KindTradeExecuted, Trade: &t, Timestamp: now})
			}
			m.engine.Publish(events.Event{
				Kind:      events.KindAuctionResult,
				Timestamp: now,
				AuctionResult: &events.AuctionResult{
					ClearingPrice: res.ClearingPrice,
					MatchedQty:    res.MatchedQty,
					ImbalanceSide: res.ImbalanceSide,
					ImbalanceQty:  res.ImbalanceQty,
				},
			})
		}
	}

	if to == common.PostClose {
		m.engine.ExpireDayOrders()
	}

	if from == common.Halted && len(m.haltEvents) > 0 {
		m.haltEvents[len(m.haltEvents)-1].end = now
	}

	m.state = to
	m.engine.Publish(events.Event{
		Kind:        events.KindPhaseChanged,
		Timestamp:   now,
		PhaseChange: &events.PhaseChanged{From: from, To: to},
	})
}

// TransitionTo forces a phase transition, running the auction uncross or
// day-order expiry side effects transitionTo always applies. Used by the
// scheduler for time-driven transitions and by operators for manual
// session control (e.g. an early halt lift).
func (m *Machine) TransitionTo(to common.PhaseState) {
	m.transitionTo(to)
}

// SeedReferencePrice sets the circuit breaker's reference price without
// running an auction — for resuming a session mid-day from a recorded
// previous close, or for tests that exercise Continuous-phase circuit
// breaker behavior directly.
func (m *Machine) SeedReferencePrice(p int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referencePrice = p
}

// HaltStats returns the circuit-breaker trip count and cumulative halted
// duration so far, for the Analytics Recorder.
func (m *Machine) HaltStats() (count int, totalHaltedNs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, h := range m.haltEvents {
		end := h.end
		if end == 0 {
			end = m.clock.Now()
		}
		total += int64(end - h.start)
	}
	return m.cbCount, total
}
