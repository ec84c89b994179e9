package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/events"
)

func newTestMachine(t *testing.T, bandPct float64) (*Machine, *common.IdSequence) {
	t.Helper()
	cfg := common.InstrumentConfig{
		Instrument:              1,
		TickSize:                1,
		LotSize:                 1,
		PriceBandPct:            bandPct,
		HaltDurationMs:          60_000,
		SelfTradePrevention:     common.STPNone,
		StopTriggerIterationCap: common.DefaultStopTriggerIterationCap,
	}
	ids := common.NewIdSequence()
	rec := &events.Recording{}
	m, err := NewMachine(cfg, common.NewMonotonicClock(), ids, rec)
	require.NoError(t, err)
	return m, ids
}

func limitOrder(participant common.ParticipantId, side common.Side, price, qty int64) *common.Order {
	return &common.Order{
		Instrument:   1,
		Participant:  participant,
		Side:         side,
		Type:         common.LimitOrder,
		Price:        price,
		OriginalQty:  qty,
		RemainingQty: qty,
		TimeInForce:  common.Day,
	}
}

// Pre-open parks limit orders without matching and rejects market orders.
func TestMachine_PreOpenParksWithoutMatching(t *testing.T) {
	m, _ := newTestMachine(t, 0)
	require.Equal(t, common.PreOpen, m.State())

	_, err := m.Submit(limitOrder(1, common.Sell, 100, 10))
	require.NoError(t, err)
	_, err = m.Submit(limitOrder(2, common.Buy, 101, 10))
	require.NoError(t, err)

	// Both rest; crossing prices never match before the opening auction.
	_, hasBid := m.Engine().Book().BestBid()
	_, hasAsk := m.Engine().Book().BestAsk()
	assert.True(t, hasBid)
	assert.True(t, hasAsk)

	result, err := m.Submit(&common.Order{Instrument: 1, Participant: 3, Side: common.Buy, Type: common.MarketOrder, OriginalQty: 1, RemainingQty: 1})
	require.NoError(t, err)
	assert.True(t, result.Rejected)
}

// S5 (auction uncross): a crossed opening book clears at the price
// maximizing executable volume and prints one trade per matched pair.
func TestMachine_S5AuctionUncross(t *testing.T) {
	m, _ := newTestMachine(t, 0)

	_, err := m.Submit(limitOrder(1, common.Sell, 99, 10))
	require.NoError(t, err)
	_, err = m.Submit(limitOrder(2, common.Buy, 101, 10))
	require.NoError(t, err)

	m.TransitionTo(common.OpeningAuction)
	m.TransitionTo(common.Continuous)

	assert.Equal(t, common.Continuous, m.State())
	_, hasBid := m.Engine().Book().BestBid()
	_, hasAsk := m.Engine().Book().BestAsk()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)
	assert.Equal(t, int64(10), m.Engine().Book().Volume)
}

// Auction uncross at an imbalance: the heavier side's marginal level is
// pro-rated; the lighter side fully clears.
func TestMachine_S5AuctionUncrossImbalance(t *testing.T) {
	m, _ := newTestMachine(t, 0)

	_, err := m.Submit(limitOrder(1, common.Sell, 100, 10))
	require.NoError(t, err)
	_, err = m.Submit(limitOrder(2, common.Buy, 100, 6))
	require.NoError(t, err)
	_, err = m.Submit(limitOrder(3, common.Buy, 100, 6))
	require.NoError(t, err)

	m.TransitionTo(common.OpeningAuction)
	m.TransitionTo(common.Continuous)

	// 10 units matched against 12 bid units; 2 units of buy imbalance rests.
	assert.Equal(t, int64(10), m.Engine().Book().Volume)
	bid, hasBid := m.Engine().Book().BestBid()
	require.True(t, hasBid)
	assert.Equal(t, int64(100), bid)
}

// S4 (circuit breaker): a trade that would print outside the reference
// band is rejected and the instrument halts instead of matching.
func TestMachine_S4CircuitBreakerHalts(t *testing.T) {
	m, _ := newTestMachine(t, 0.05) // +-5%
	m.SeedReferencePrice(100)
	m.TransitionTo(common.Continuous)

	_, err := m.Submit(limitOrder(1, common.Sell, 110, 5))
	require.NoError(t, err)

	result, err := m.Submit(&common.Order{
		Instrument: 1, Participant: 2, Side: common.Buy, Type: common.MarketOrder,
		OriginalQty: 5, RemainingQty: 5,
	})
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Equal(t, common.ErrPriceBandBreach, result.Reason)
	assert.Equal(t, common.Halted, m.State())

	count, _ := m.HaltStats()
	assert.Equal(t, 1, count)

	// No trade printed: the resting sell is untouched.
	resting, ok := m.Engine().Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(5), resting.RemainingQty)
}

// A trade inside the band matches normally and never halts.
func TestMachine_S4CircuitBreakerAllowsInBandTrade(t *testing.T) {
	m, _ := newTestMachine(t, 0.05)
	m.SeedReferencePrice(100)
	m.TransitionTo(common.Continuous)

	_, err := m.Submit(limitOrder(1, common.Sell, 102, 5))
	require.NoError(t, err)

	result, err := m.Submit(&common.Order{
		Instrument: 1, Participant: 2, Side: common.Buy, Type: common.MarketOrder,
		OriginalQty: 5, RemainingQty: 5,
	})
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, common.Continuous, m.State())
}

// Halted accepts stop orders (parked) and cancels, rejects everything else.
func TestMachine_HaltedAcceptsOnlyStopsAndCancels(t *testing.T) {
	m, _ := newTestMachine(t, 0)
	m.TransitionTo(common.Continuous)
	m.triggerHalt(0)
	require.Equal(t, common.Halted, m.State())

	result, err := m.Submit(limitOrder(1, common.Buy, 100, 1))
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Equal(t, common.ErrHalted, result.Reason)

	stop := &common.Order{Instrument: 1, Participant: 2, Side: common.Sell, Type: common.StopOrder, StopPrice: 90, OriginalQty: 1, RemainingQty: 1}
	result, err = m.Submit(stop)
	require.NoError(t, err)
	assert.False(t, result.Rejected)
}

// Post-close rejects new orders but still accepts cancels and expires
// resting Day orders.
func TestMachine_PostCloseExpiresResting(t *testing.T) {
	m, _ := newTestMachine(t, 0)
	m.TransitionTo(common.Continuous)

	_, err := m.Submit(limitOrder(1, common.Sell, 100, 5))
	require.NoError(t, err)

	m.TransitionTo(common.ClosingAuction)
	m.TransitionTo(common.PostClose)

	_, ok := m.Engine().Book().Get(1)
	assert.False(t, ok, "resting Day order should expire on Post-close")

	result, err := m.Submit(limitOrder(2, common.Buy, 100, 1))
	require.NoError(t, err)
	assert.True(t, result.Rejected)
}
