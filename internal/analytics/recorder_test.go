package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
)

func trade(id int64, maker, taker common.ParticipantId, side common.Side, price, qty int64) *common.Trade {
	return &common.Trade{
		Id:               id,
		Instrument:       1,
		AggressorSide:    side,
		MakerOrderId:     common.OrderId(id * 10),
		TakerOrderId:     common.OrderId(id*10 + 1),
		MakerParticipant: maker,
		TakerParticipant: taker,
		Price:            price,
		Quantity:         qty,
	}
}

func TestRecorder_VWAPAndVolume(t *testing.T) {
	r := NewRecorder(Config{})
	r.Publish(events.Event{Kind: events.KindTradeExecuted, Instrument: 1, Trade: trade(1, 1, 2, common.Buy, 100, 10)})
	r.Publish(events.Event{Kind: events.KindTradeExecuted, Instrument: 1, Trade: trade(2, 1, 2, common.Buy, 110, 10)})

	snap := r.InstrumentSnapshot(1)
	assert.Equal(t, int64(20), snap.Volume)
	assert.InDelta(t, 105.0, snap.VWAP, 0.001)
}

func TestRecorder_SpreadFromQuotes(t *testing.T) {
	r := NewRecorder(Config{})
	r.RecordQuote(1, 99, 10, 101, 20)
	r.RecordQuote(1, 98, 5, 103, 5)

	snap := r.InstrumentSnapshot(1)
	assert.Equal(t, float64(2), snap.SpreadMin)
	assert.Equal(t, float64(5), snap.SpreadMax)
	assert.InDelta(t, 3.5, snap.SpreadAvg, 0.001)
}

// A taker buying then fully selling back at a higher price realizes a
// simple long P&L, net of maker rebate / taker fee.
func TestRecorder_ParticipantPnLRoundTrip(t *testing.T) {
	r := NewRecorder(Config{MakerRebateBps: 2, TakerFeeBps: 5})

	// Participant 2 buys 10 @ 100 from participant 1 (maker).
	r.Publish(events.Event{Kind: events.KindTradeExecuted, Instrument: 1, Trade: trade(1, 1, 2, common.Buy, 100, 10)})
	// Participant 2 sells 10 @ 110, closing the position, against maker 3.
	r.Publish(events.Event{Kind: events.KindTradeExecuted, Instrument: 1, Trade: trade(2, 3, 2, common.Sell, 110, 10)})

	snap := r.ParticipantSnapshot(2, 1, 0)
	assert.Equal(t, int64(0), snap.Position)
	// Gross P&L = (110-100)*10 = 100, minus taker fees on both legs
	// (5bps of 1000 + 5bps of 1100 = 0.5+0.55=1.05).
	gross := 100.0
	fees := 0.5 + 0.55
	assert.InDelta(t, gross-fees, snap.RealizedPnL.InexactFloat64(), 0.01)

	maker1 := r.ParticipantSnapshot(1, 1, 0)
	assert.InDelta(t, 0.2, maker1.RealizedPnL.InexactFloat64(), 0.01) // 2bps of 1000
}

func TestRecorder_AuctionVolumeAttribution(t *testing.T) {
	r := NewRecorder(Config{})
	r.Publish(events.Event{Kind: events.KindAuctionResult, Instrument: 1, AuctionResult: &events.AuctionResult{ClearingPrice: 100, MatchedQty: 15}})
	r.Publish(events.Event{Kind: events.KindPhaseChanged, Instrument: 1, PhaseChange: &events.PhaseChanged{From: common.OpeningAuction, To: common.Continuous}})

	snap := r.InstrumentSnapshot(1)
	assert.Equal(t, int64(15), snap.AuctionVolumeOpening)
	assert.Equal(t, int64(0), snap.AuctionVolumeClosing)
}

func TestRecorder_CircuitBreakerCount(t *testing.T) {
	r := NewRecorder(Config{})
	r.Publish(events.Event{Kind: events.KindCircuitBreakerTriggered, Instrument: 1, CircuitBreaker: &events.CircuitBreakerTriggered{HaltDurationNs: 60_000_000_000}})

	snap := r.InstrumentSnapshot(1)
	assert.Equal(t, 1, snap.CircuitBreakerCount)
	assert.Equal(t, int64(60_000_000_000), snap.HaltDurationNs)
}

func TestRecorder_OrderAndCancelCounts(t *testing.T) {
	r := NewRecorder(Config{})
	o := &common.Order{Id: 1, Instrument: 1, Participant: 7}
	r.Publish(events.Event{Kind: events.KindOrderAccepted, Instrument: 1, Order: o})
	r.Publish(events.Event{Kind: events.KindOrderCancelled, Instrument: 1, Order: o, CancelledOrderId: 1})

	snap := r.ParticipantSnapshot(7, 1, 0)
	require.Equal(t, int64(1), snap.OrderCount)
	assert.Equal(t, int64(1), snap.CancelCount)
}
