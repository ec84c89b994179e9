package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
)

func newTestEngine(t *testing.T, stp common.SelfTradePrevention) (*Engine, *common.IdSequence) {
	t.Helper()
	cfg := Config{common.InstrumentConfig{
		Instrument:              1,
		TickSize:                1,
		LotSize:                 1,
		PriceBandPct:            0.10,
		SelfTradePrevention:     stp,
		StopTriggerIterationCap: common.DefaultStopTriggerIterationCap,
	}}
	ids := common.NewIdSequence()
	eng, err := NewEngine(cfg, common.NewMonotonicClock(), ids, nil)
	require.NoError(t, err)
	return eng, ids
}

func limitOrder(id common.OrderId, participant common.ParticipantId, side common.Side, price, qty int64) *common.Order {
	return &common.Order{
		Id:           id,
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

// S1 (continuous match): resting sell limit crossed by an aggressive buy.
func TestSubmit_S1ContinuousMatch(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	_, err := eng.Submit(limitOrder(0, 100, common.Sell, 100, 10))
	require.NoError(t, err)

	buy := limitOrder(0, 200, common.Buy, 101, 4)
	result, err := eng.Submit(buy)
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, int64(100), result.Trades[0].Price)
	assert.Equal(t, int64(4), result.Trades[0].Quantity)

	resting, ok := eng.Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(6), resting.RemainingQty)

	_, hasBid := eng.Book().BestBid()
	assert.False(t, hasBid)
	ask, hasAsk := eng.Book().BestAsk()
	require.True(t, hasAsk)
	assert.Equal(t, int64(100), ask)
}

// S2 (time priority): two sell orders at the same price fill oldest first.
func TestSubmit_S2TimePriority(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	_, err := eng.Submit(limitOrder(0, 100, common.Sell, 100, 5))
	require.NoError(t, err)
	_, err = eng.Submit(limitOrder(0, 101, common.Sell, 100, 5))
	require.NoError(t, err)

	marketBuy := &common.Order{
		Instrument:   1,
		Participant:  300,
		Side:         common.Buy,
		Type:         common.MarketOrder,
		OriginalQty:  7,
		RemainingQty: 7,
		TimeInForce:  common.Day,
	}
	result, err := eng.Submit(marketBuy)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)
	assert.Equal(t, common.OrderId(1), result.Trades[0].MakerOrderId)
	assert.Equal(t, int64(5), result.Trades[0].Quantity)
	assert.Equal(t, common.OrderId(2), result.Trades[1].MakerOrderId)
	assert.Equal(t, int64(2), result.Trades[1].Quantity)

	_, stillResting := eng.Book().Get(1)
	assert.False(t, stillResting)
	second, ok := eng.Book().Get(2)
	require.True(t, ok)
	assert.Equal(t, int64(3), second.RemainingQty)
}

// S3 (iceberg reload): display reloads from the hidden reserve and keeps FIFO priority.
func TestSubmit_S3IcebergReload(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	iceberg := &common.Order{
		Instrument:   1,
		Participant:  100,
		Side:         common.Sell,
		Type:         common.IcebergOrder,
		Price:        100,
		OriginalQty:  100,
		RemainingQty: 100,
		DisplayQty:   10,
		TimeInForce:  common.Day,
	}
	_, err := eng.Submit(iceberg)
	require.NoError(t, err)

	depth := eng.Book().Depth(common.Sell, 1)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(10), depth[0].VisibleQty)

	buy := &common.Order{
		Instrument:   1,
		Participant:  200,
		Side:         common.Buy,
		Type:         common.MarketOrder,
		OriginalQty:  12,
		RemainingQty: 12,
		TimeInForce:  common.Day,
	}
	result, err := eng.Submit(buy)
	require.NoError(t, err)
	require.Len(t, result.Trades, 2)

	depth = eng.Book().Depth(common.Sell, 1)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(10), depth[0].VisibleQty)

	resting, ok := eng.Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(88), resting.RemainingQty)
}

// Market order against an empty book never rests and is cancelled with
// no_liquidity, per spec §8's boundary behavior.
func TestSubmit_MarketNoLiquidity(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	order := &common.Order{
		Instrument:   1,
		Participant:  1,
		Side:         common.Buy,
		Type:         common.MarketOrder,
		OriginalQty:  5,
		RemainingQty: 5,
	}
	result, err := eng.Submit(order)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)
	assert.Equal(t, common.StatusCancelled, order.Status)
	_, resting := eng.Book().Get(order.Id)
	assert.False(t, resting)
}

// FOK with insufficient liquidity rejects the whole order without fills.
func TestSubmit_FOKInsufficientLiquidity(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	_, err := eng.Submit(limitOrder(0, 1, common.Sell, 100, 5))
	require.NoError(t, err)

	order := &common.Order{
		Instrument:   1,
		Participant:  2,
		Side:         common.Buy,
		Type:         common.LimitOrder,
		Price:        100,
		OriginalQty:  10,
		RemainingQty: 10,
		TimeInForce:  common.FOK,
	}
	result, err := eng.Submit(order)
	require.NoError(t, err)
	assert.True(t, result.Rejected)
	assert.Empty(t, result.Trades)
	assert.Equal(t, common.StatusRejected, order.Status)

	resting, ok := eng.Book().Get(common.OrderId(1))
	require.True(t, ok)
	assert.Equal(t, int64(5), resting.RemainingQty)
}

// IOC with a partial fill emits the fill and cancels the remainder in
// the same tick, never resting.
func TestSubmit_IOCPartialFill(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	_, err := eng.Submit(limitOrder(0, 1, common.Sell, 100, 4))
	require.NoError(t, err)

	order := &common.Order{
		Instrument:   1,
		Participant:  2,
		Side:         common.Buy,
		Type:         common.LimitOrder,
		Price:        100,
		OriginalQty:  10,
		RemainingQty: 10,
		TimeInForce:  common.IOC,
	}
	result, err := eng.Submit(order)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, int64(4), result.Trades[0].Quantity)
	assert.Equal(t, common.StatusCancelled, order.Status)

	_, stillResting := eng.Book().Get(order.Id)
	assert.False(t, stillResting)
}

// Self-trade prevention, CancelNewest policy: the incoming order is
// blocked from matching its own resting order, so no trade prints and the
// resting order keeps its full quantity.
func TestSubmit_SelfTradePreventionCancelNewest(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPCancelNewest)

	_, err := eng.Submit(limitOrder(0, 42, common.Sell, 100, 10))
	require.NoError(t, err)

	buy := limitOrder(0, 42, common.Buy, 101, 5)
	result, err := eng.Submit(buy)
	require.NoError(t, err)
	assert.Empty(t, result.Trades)

	resting, ok := eng.Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, int64(10), resting.RemainingQty)
}

// Hidden order at the BBO never shows in L2 but still matches.
func TestSubmit_HiddenOrderInvisibleButMatches(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	hidden := &common.Order{
		Instrument:   1,
		Participant:  1,
		Side:         common.Sell,
		Type:         common.HiddenOrder,
		Hidden:       true,
		Price:        100,
		OriginalQty:  10,
		RemainingQty: 10,
		TimeInForce:  common.Day,
	}
	_, err := eng.Submit(hidden)
	require.NoError(t, err)

	depth := eng.Book().Depth(common.Sell, 5)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(0), depth[0].VisibleQty, "hidden size must never be exposed in depth")

	buy := limitOrder(0, 2, common.Buy, 100, 3)
	result, err := eng.Submit(buy)
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, int64(3), result.Trades[0].Quantity)
}

// Stop order activation: a resting sell stop activates to a market order
// once the last trade price touches its trigger.
func TestSubmit_StopActivation(t *testing.T) {
	eng, _ := newTestEngine(t, common.STPNone)

	stop := &common.Order{
		Instrument:   1,
		Participant:  1,
		Side:         common.Sell,
		Type:         common.StopOrder,
		StopPrice:    95,
		OriginalQty:  5,
		RemainingQty: 5,
		TimeInForce:  common.Day,
	}
	_, err := eng.Submit(stop)
	require.NoError(t, err)

	// A small resting sell absorbs part of the incoming buy; the buy's
	// remainder rests and becomes the counterparty for the activated stop.
	_, err = eng.Submit(limitOrder(0, 2, common.Sell, 95, 5))
	require.NoError(t, err)

	buy := limitOrder(0, 3, common.Buy, 95, 10)
	result, err := eng.Submit(buy)
	require.NoError(t, err)

	var sawStopTrade bool
	for _, tr := range result.Trades {
		if tr.TakerOrderId == stop.Id {
			sawStopTrade = true
		}
	}
	assert.True(t, sawStopTrade, "activated stop order should have traded: %+v", result.Trades)
}
