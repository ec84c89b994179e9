package analytics

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
)

// Recorder is the Analytics Recorder of spec §4.4: an events.Sink that
// derives per-instrument and per-participant metrics from the engine's
// event stream. It holds no reference to the book or the engine — every
// number it reports is either carried on an Event or fed in via
// RecordQuote, which the cmd wiring calls on a periodic sampling loop
// (quotes are not part of the event stream itself; see DESIGN.md).
type Recorder struct {
	mu sync.Mutex

	cfg Config

	instruments  map[common.InstrumentId]*instrumentState
	participants map[participantKey]*participantState
}

// NewRecorder constructs an empty Recorder.
func NewRecorder(cfg Config) *Recorder {
	return &Recorder{
		cfg:          cfg,
		instruments:  make(map[common.InstrumentId]*instrumentState),
		participants: make(map[participantKey]*participantState),
	}
}

func (r *Recorder) instrument(id common.InstrumentId) *instrumentState {
	s, ok := r.instruments[id]
	if !ok {
		s = newInstrumentState()
		r.instruments[id] = s
	}
	return s
}

func (r *Recorder) participant(key participantKey) *participantState {
	s, ok := r.participants[key]
	if !ok {
		s = newParticipantState()
		r.participants[key] = s
	}
	return s
}

// Publish implements events.Sink (spec §4.4's consumer contract).
func (r *Recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case events.KindOrderAccepted:
		if ev.Order != nil {
			r.participant(participantKey{ev.Order.Participant, ev.Order.Instrument}).orderCount++
		}
	case events.KindOrderCancelled:
		if ev.Order != nil {
			r.participant(participantKey{ev.Order.Participant, ev.Order.Instrument}).cancelCount++
		}
	case events.KindTradeExecuted:
		if ev.Trade != nil {
			r.onTrade(ev.Instrument, ev.Trade)
		}
	case events.KindAuctionResult:
		if ev.AuctionResult != nil {
			r.instrument(ev.Instrument).pendingAuctionQty = ev.AuctionResult.MatchedQty
		}
	case events.KindCircuitBreakerTriggered:
		if ev.CircuitBreaker != nil {
			inst := r.instrument(ev.Instrument)
			inst.circuitBreakerCount++
			inst.haltDurationNs += ev.CircuitBreaker.HaltDurationNs
		}
	case events.KindPhaseChanged:
		if ev.PhaseChange != nil {
			r.onPhaseChanged(ev.Instrument, ev.PhaseChange)
		}
	}
}

func (r *Recorder) onTrade(instrumentId common.InstrumentId, t *common.Trade) {
	inst := r.instrument(instrumentId)
	inst.recordTrade(t.Price, t.Quantity, r.cfg.window())

	notional := decimal.NewFromInt(t.Price).Mul(decimal.NewFromInt(t.Quantity))
	takerFee := notional.Mul(decimal.NewFromInt(r.cfg.TakerFeeBps)).Div(decimal.NewFromInt(10_000))
	makerRebate := notional.Mul(decimal.NewFromInt(r.cfg.MakerRebateBps)).Div(decimal.NewFromInt(10_000))

	makerKey := participantKey{t.MakerParticipant, instrumentId}
	takerKey := participantKey{t.TakerParticipant, instrumentId}

	maker := r.participant(makerKey)
	maker.tradeCount++
	maker.makerFillQty += t.Quantity
	maker.makerRebate = maker.makerRebate.Add(makerRebate)
	maker.applyFill(t.AggressorSide.Opposite(), t.Price, t.Quantity)
	maker.realizedPnL = maker.realizedPnL.Add(makerRebate)

	taker := r.participant(takerKey)
	taker.tradeCount++
	taker.takerFillQty += t.Quantity
	taker.takerFee = taker.takerFee.Add(takerFee)
	taker.applyFill(t.AggressorSide, t.Price, t.Quantity)
	taker.realizedPnL = taker.realizedPnL.Sub(takerFee)
}

func (r *Recorder) onPhaseChanged(instrumentId common.InstrumentId, change *events.PhaseChanged) {
	inst := r.instrument(instrumentId)
	inst.phase = change.To
	if inst.pendingAuctionQty == 0 {
		return
	}
	switch change.From {
	case common.OpeningAuction:
		inst.auctionVolumeOpening += inst.pendingAuctionQty
	case common.ClosingAuction:
		inst.auctionVolumeClosing += inst.pendingAuctionQty
	}
	inst.pendingAuctionQty = 0
}

// RecordQuote feeds a top-of-book sample into an instrument's spread and
// depth metrics. Called periodically by the cmd wiring (e.g. on every
// book mutation or a fixed sampling interval) rather than per event,
// since the event stream does not itself carry quote snapshots.
func (r *Recorder) RecordQuote(instrument common.InstrumentId, bidPrice, bidSize, askPrice, askSize int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instrument(instrument).recordQuote(bidPrice, bidSize, askPrice, askSize, r.cfg.window())
}

// InstrumentSnapshot returns a copy of one instrument's metrics.
func (r *Recorder) InstrumentSnapshot(instrument common.InstrumentId) InstrumentSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instrument(instrument).snapshot(instrument)
}

// ParticipantSnapshot returns a copy of one participant's metrics for one
// instrument. markPrice (typically the instrument's last trade price) is
// used only to compute UnrealizedPnL; pass 0 to omit it.
func (r *Recorder) ParticipantSnapshot(participant common.ParticipantId, instrument common.InstrumentId, markPrice int64) ParticipantSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participant(participantKey{participant, instrument}).snapshot(participantKey{participant, instrument}, markPrice)
}

// AllInstrumentSnapshots returns a copy of every tracked instrument's
// metrics, for dashboards/export.
func (r *Recorder) AllInstrumentSnapshots() []InstrumentSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]InstrumentSnapshot, 0, len(r.instruments))
	for id, s := range r.instruments {
		out = append(out, s.snapshot(id))
	}
	return out
}
