package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
)

func restingOrder(id common.OrderId, side common.Side, price, qty int64) *common.Order {
	return &common.Order{
		Id:             id,
		Instrument:     1,
		Side:           side,
		Type:           common.LimitOrder,
		Price:          price,
		OriginalQty:    qty,
		RemainingQty:   qty,
		CurrentDisplay: qty,
		Status:         common.StatusNew,
	}
}

func TestInsert_UpdatesBBO(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(100), ask)

	_, ok = b.BestBid()
	assert.False(t, ok)

	b.Insert(restingOrder(2, common.Buy, 99, 5))
	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)
}

func TestCancel_RoundTrip(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))

	depthBefore := b.Depth(common.Sell, 5)
	bidBefore, bidOkBefore := b.BestBid()

	o, ok := b.Cancel(1)
	require.True(t, ok)
	assert.Equal(t, common.StatusCancelled, o.Status)

	_, ok = b.Get(1)
	assert.False(t, ok)
	_, askOk := b.BestAsk()
	assert.False(t, askOk, "level should be deleted once its only order is cancelled")

	b.Insert(restingOrder(1, common.Sell, 100, 10))
	depthAfter := b.Depth(common.Sell, 5)
	bidAfter, bidOkAfter := b.BestBid()
	assert.Equal(t, depthBefore, depthAfter)
	assert.Equal(t, bidOkBefore, bidOkAfter)
	assert.Equal(t, bidBefore, bidAfter)
}

func TestCancel_UnknownId(t *testing.T) {
	b := New(1)
	_, ok := b.Cancel(999)
	assert.False(t, ok)
}

func TestReduce_RemovesOnFullFill(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))

	filled := b.Reduce(1, 10, 0)
	assert.True(t, filled)

	_, ok := b.Get(1)
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)
}

func TestReduce_IcebergReloadsWithoutLosingQueuePosition(t *testing.T) {
	b := New(1)
	iceberg := &common.Order{
		Id:             1,
		Instrument:     1,
		Side:           common.Sell,
		Type:           common.IcebergOrder,
		Price:          100,
		OriginalQty:    100,
		RemainingQty:   100,
		DisplayQty:     10,
		CurrentDisplay: 10,
		Status:         common.StatusNew,
	}
	b.Insert(iceberg)

	level, ok := b.LevelAt(common.Sell, 100)
	require.True(t, ok)
	assert.Equal(t, int64(10), level.VisibleQuantity)
	assert.Equal(t, []common.OrderId{1}, level.Displayed)

	// Drain the full visible tranche in one fill: current_display hits
	// zero and the book reloads it from the hidden reserve (spec §8 S3),
	// and the order stays at the tail of the same FIFO slot it already
	// held.
	b.Reduce(1, 10, 0)

	assert.Equal(t, int64(10), iceberg.CurrentDisplay)
	assert.Equal(t, int64(90), iceberg.RemainingQty)
	level, ok = b.LevelAt(common.Sell, 100)
	require.True(t, ok)
	assert.Equal(t, int64(10), level.VisibleQuantity)
	assert.Equal(t, []common.OrderId{1}, level.Displayed, "reload must not dequeue/re-enqueue the order")
}

func TestDepth_NeverExposesHiddenSize(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))
	hidden := &common.Order{
		Id:           2,
		Instrument:   1,
		Side:         common.Sell,
		Type:         common.HiddenOrder,
		Price:        100,
		OriginalQty:  40,
		RemainingQty: 40,
		Hidden:       true,
		Status:       common.StatusNew,
	}
	b.Insert(hidden)

	depth := b.Depth(common.Sell, 5)
	require.Len(t, depth, 1)
	assert.Equal(t, int64(10), depth[0].VisibleQty, "hidden quantity must never surface in depth")
	assert.Equal(t, 2, depth[0].OrderCount)

	level, ok := b.LevelAt(common.Sell, 100)
	require.True(t, ok)
	assert.Equal(t, int64(50), level.TotalQuantity)
	assert.Equal(t, []common.OrderId{2}, level.Hidden)
}

func TestAvailableLiquidity_SumsOpposingSideAtOrBetter(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))
	b.Insert(restingOrder(2, common.Sell, 101, 5))
	b.Insert(restingOrder(3, common.Sell, 102, 7))

	assert.Equal(t, int64(15), b.AvailableLiquidity(common.Buy, 101))
	assert.Equal(t, int64(22), b.AvailableLiquidity(common.Buy, 102))
	assert.Equal(t, int64(0), b.AvailableLiquidity(common.Buy, 99))
}

func TestL1_ReportsCachedSessionStats(t *testing.T) {
	b := New(1)
	b.Insert(restingOrder(1, common.Sell, 100, 10))
	b.Insert(restingOrder(2, common.Buy, 98, 6))
	b.RecordTrade(99, 3)

	q := b.L1(0)
	assert.Equal(t, int64(98), q.BidPrice)
	assert.Equal(t, int64(100), q.AskPrice)
	assert.Equal(t, int64(99), q.LastPrice)
	assert.Equal(t, int64(3), q.Volume)
	assert.InDelta(t, 99.0, q.VWAP, 0.0001)
}
