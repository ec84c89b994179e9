package analytics

import (
	"math"

	"github.com/vantage-exchange/vantage/internal/common"
)

// instrumentState is the live, mutable per-instrument accumulator. Every
// field update here is O(1) except realizedVolatility, which recomputes
// over the bounded returns window (spec §4.4's documented exception).
type instrumentState struct {
	spreadMin, spreadMax, spreadSum float64
	spreadSamples                   int64

	bboDepthSum     int64
	bboDepthSamples int64

	vwapNumerator float64
	volume        int64

	lastTradePrice int64
	logReturns     []float64 // ring buffer, capped at Config.window()

	circuitBreakerCount int
	haltDurationNs      int64

	auctionVolumeOpening int64
	auctionVolumeClosing int64
	pendingAuctionQty    int64

	phase common.PhaseState
}

// InstrumentSnapshot is a copied, point-in-time view of one instrument's
// metrics (spec §4.4: "Snapshot() returns copied value structs").
type InstrumentSnapshot struct {
	Instrument common.InstrumentId

	SpreadMin float64
	SpreadMax float64
	SpreadAvg float64

	BBODepthAvg float64

	VWAP   float64
	Volume int64

	RealizedVolatility float64

	CircuitBreakerCount int
	HaltDurationNs      int64

	AuctionVolumeOpening int64
	AuctionVolumeClosing int64

	Phase common.PhaseState
}

func newInstrumentState() *instrumentState {
	return &instrumentState{spreadMin: math.MaxFloat64}
}

func (s *instrumentState) recordQuote(bidPrice, bidSize, askPrice, askSize int64, window int) {
	if bidPrice <= 0 || askPrice <= 0 {
		return
	}
	spread := float64(askPrice - bidPrice)
	if spread < s.spreadMin {
		s.spreadMin = spread
	}
	if spread > s.spreadMax {
		s.spreadMax = spread
	}
	s.spreadSum += spread
	s.spreadSamples++

	s.bboDepthSum += (bidSize + askSize) / 2
	s.bboDepthSamples++
}

func (s *instrumentState) recordTrade(price, qty int64, window int) {
	s.vwapNumerator += float64(price) * float64(qty)
	s.volume += qty

	if s.lastTradePrice > 0 && price > 0 {
		r := math.Log(float64(price) / float64(s.lastTradePrice))
		s.logReturns = append(s.logReturns, r)
		if len(s.logReturns) > window {
			s.logReturns = s.logReturns[len(s.logReturns)-window:]
		}
	}
	s.lastTradePrice = price
}

// realizedVolatility is the sample standard deviation of the log-return
// window — recomputed on read, not maintained incrementally, per spec
// §4.4's carved-out exception to the O(1) budget.
func (s *instrumentState) realizedVolatility() float64 {
	n := len(s.logReturns)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, r := range s.logReturns {
		mean += r
	}
	mean /= float64(n)

	var variance float64
	for _, r := range s.logReturns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(n - 1)
	return math.Sqrt(variance)
}

func (s *instrumentState) snapshot(instrument common.InstrumentId) InstrumentSnapshot {
	snap := InstrumentSnapshot{
		Instrument:           instrument,
		VWAP:                 0,
		Volume:               s.volume,
		RealizedVolatility:   s.realizedVolatility(),
		CircuitBreakerCount:  s.circuitBreakerCount,
		HaltDurationNs:       s.haltDurationNs,
		AuctionVolumeOpening: s.auctionVolumeOpening,
		AuctionVolumeClosing: s.auctionVolumeClosing,
		Phase:                s.phase,
	}
	if s.volume > 0 {
		snap.VWAP = s.vwapNumerator / float64(s.volume)
	}
	if s.spreadSamples > 0 {
		snap.SpreadMin = s.spreadMin
		snap.SpreadMax = s.spreadMax
		snap.SpreadAvg = s.spreadSum / float64(s.spreadSamples)
	}
	if s.bboDepthSamples > 0 {
		snap.BBODepthAvg = float64(s.bboDepthSum) / float64(s.bboDepthSamples)
	}
	return snap
}
