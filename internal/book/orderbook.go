package book

import (
	"math"

	"github.com/tidwall/btree"
	"github.com/vantage-exchange/vantage/internal/common"
)

// Levels is the sorted price->level mapping for one side of the book,
// generalizing the teacher's engine.PriceLevels (internal/engine/orderbook.go).
type Levels = btree.BTreeG[*PriceLevel]

// OrderBook is the per-instrument book of spec §3/§4.1: two sorted
// mappings plus a fast OrderId index and a market-data cache.
type OrderBook struct {
	Instrument common.InstrumentId

	bids *Levels // higher price better; comparator sorts descending
	asks *Levels // lower price better; comparator sorts ascending

	orders map[common.OrderId]*common.Order

	bestBid *int64
	bestAsk *int64

	LastTradePrice int64
	LastTradeQty   int64
	Volume         int64
	TradeCount     int64
	vwapNumerator  float64
	OpenPrice      int64
	HighPrice      int64
	LowPrice       int64
}

// New creates an empty order book for the given instrument, following the
// teacher's engine.NewOrderBook constructor but keyed on the full
// PriceLevel type instead of a float64 priceLevel scalar.
func New(instrument common.InstrumentId) *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price
	})
	return &OrderBook{
		Instrument: instrument,
		bids:       bids,
		asks:       asks,
		orders:     make(map[common.OrderId]*common.Order),
		LowPrice:   math.MaxInt64,
	}
}

func (b *OrderBook) sideLevels(side common.Side) *Levels {
	if side == common.Buy {
		return b.bids
	}
	return b.asks
}

// Insert places a resting order at the tail of its price level's FIFO,
// creating the level if absent, then refreshes the BBO cache. Matching
// (crossing) is the Matching Core's job, not the book's (spec §4.1).
func (b *OrderBook) Insert(o *common.Order) {
	levels := b.sideLevels(o.Side)
	level, ok := levels.GetMut(&PriceLevel{Price: o.Price})
	if !ok {
		level = newPriceLevel(o.Price)
		levels.Set(level)
	}
	level.addOrder(o.Id, o.RemainingQty, o.VisibleQty(), o.Hidden)
	b.orders[o.Id] = o
	b.updateBBO()
}

// Cancel removes an order from the book. Returns (nil, false) if the id
// is unknown — an unknown-id cancel is a reported error, not fatal
// (spec §4.2's failure semantics), so the caller decides how to surface
// it.
func (b *OrderBook) Cancel(id common.OrderId) (*common.Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	delete(b.orders, id)

	levels := b.sideLevels(o.Side)
	if level, ok := levels.GetMut(&PriceLevel{Price: o.Price}); ok {
		level.removeOrder(id, o.RemainingQty, o.VisibleQty())
		if level.isEmpty() {
			levels.Delete(level)
		}
	}
	o.Status = common.StatusCancelled
	b.updateBBO()
	return o, true
}

// Reduce subtracts fillQty from an order's remaining quantity. If the
// order is fully filled it is removed from the book. If it is an iceberg
// whose current display has been exhausted but quantity remains, the
// display is reloaded from the hidden reserve in place: the order keeps
// its FIFO position (spec §4.1's chosen "retain priority on reload"
// semantics — it is never dequeued and re-enqueued).
func (b *OrderBook) Reduce(id common.OrderId, fillQty int64, ts common.Nanos) bool {
	o, ok := b.orders[id]
	if !ok {
		return false
	}

	oldVisible := o.VisibleQty()
	o.RemainingQty -= fillQty
	o.LastUpdate = ts

	levels := b.sideLevels(o.Side)
	level, levelOk := levels.GetMut(&PriceLevel{Price: o.Price})

	if o.RemainingQty <= 0 {
		o.RemainingQty = 0
		o.Status = common.StatusFilled
		delete(b.orders, id)
		if levelOk {
			level.removeOrder(id, level.totalQtyFor(o, oldVisible, fillQty), oldVisible)
			if level.isEmpty() {
				levels.Delete(level)
			}
		}
		b.updateBBO()
		return true
	}

	o.Status = common.StatusPartiallyFilled
	newVisible := oldVisible
	if o.Type == common.IcebergOrder && !o.Hidden {
		remainingDisplay := oldVisible - fillQty
		if remainingDisplay <= 0 {
			reload := o.DisplayQty
			if o.RemainingQty < reload {
				reload = o.RemainingQty
			}
			o.CurrentDisplay = reload
			newVisible = reload
		} else {
			o.CurrentDisplay = remainingDisplay
			newVisible = remainingDisplay
		}
	} else {
		newVisible = o.VisibleQty()
	}

	if levelOk {
		level.TotalQuantity -= fillQty
		level.VisibleQuantity += newVisible - oldVisible
	}
	b.updateBBO()
	return true
}

// totalQtyFor returns the quantity to subtract from a level's
// total_quantity when an order is fully removed: its remaining quantity
// immediately before this fill, i.e. oldVisible's total counterpart. We
// track total separately from visible, so recompute from the order's
// pre-fill remaining (remaining_before = remaining_after + fillQty).
func (l *PriceLevel) totalQtyFor(o *common.Order, oldVisible, fillQty int64) int64 {
	_ = oldVisible
	return o.RemainingQty + fillQty
}

func (b *OrderBook) updateBBO() {
	if items := b.bids.Items(); len(items) > 0 {
		p := items[0].Price
		b.bestBid = &p
	} else {
		b.bestBid = nil
	}
	if items := b.asks.Items(); len(items) > 0 {
		p := items[0].Price
		b.bestAsk = &p
	} else {
		b.bestAsk = nil
	}
}

// BestBid / BestAsk return the top of book, or (0, false) if that side is
// empty.
func (b *OrderBook) BestBid() (int64, bool) {
	if b.bestBid == nil {
		return 0, false
	}
	return *b.bestBid, true
}

func (b *OrderBook) BestAsk() (int64, bool) {
	if b.bestAsk == nil {
		return 0, false
	}
	return *b.bestAsk, true
}

// DepthLevel is one row of a depth query: price, visible quantity,
// order count. Hidden size is never exposed (spec §4.1).
type DepthLevel struct {
	Price      int64
	VisibleQty int64
	OrderCount int
}

// Depth returns the top-n (price, visible_qty, order_count) tuples for a
// side.
func (b *OrderBook) Depth(side common.Side, n int) []DepthLevel {
	items := b.sideLevels(side).Items()
	if n > len(items) {
		n = len(items)
	}
	out := make([]DepthLevel, 0, n)
	for _, l := range items[:n] {
		out = append(out, DepthLevel{Price: l.Price, VisibleQty: l.VisibleQuantity, OrderCount: l.OrderCount})
	}
	return out
}

// L1Quote is the top-of-book snapshot of spec §4.1.
type L1Quote struct {
	Instrument common.InstrumentId
	BidPrice   int64
	BidSize    int64
	AskPrice   int64
	AskSize    int64
	LastPrice  int64
	LastSize   int64
	Volume     int64
	VWAP       float64
	Open       int64
	High       int64
	Low        int64
	Timestamp  common.Nanos
}

func (b *OrderBook) L1(ts common.Nanos) L1Quote {
	q := L1Quote{
		Instrument: b.Instrument,
		LastPrice:  b.LastTradePrice,
		LastSize:   b.LastTradeQty,
		Volume:     b.Volume,
		VWAP:       b.VWAP(),
		Open:       b.OpenPrice,
		High:       b.HighPrice,
		Low:        b.lowOrZero(),
		Timestamp:  ts,
	}
	if items := b.bids.Items(); len(items) > 0 {
		q.BidPrice, q.BidSize = items[0].Price, items[0].VisibleQuantity
	}
	if items := b.asks.Items(); len(items) > 0 {
		q.AskPrice, q.AskSize = items[0].Price, items[0].VisibleQuantity
	}
	return q
}

// L2Snapshot is the multi-level depth snapshot of spec §4.1.
type L2Snapshot struct {
	Instrument common.InstrumentId
	Bids       []DepthLevel
	Asks       []DepthLevel
	Timestamp  common.Nanos
}

func (b *OrderBook) L2(depth int, ts common.Nanos) L2Snapshot {
	return L2Snapshot{
		Instrument: b.Instrument,
		Bids:       b.Depth(common.Buy, depth),
		Asks:       b.Depth(common.Sell, depth),
		Timestamp:  ts,
	}
}

func (b *OrderBook) lowOrZero() int64 {
	if b.LowPrice == math.MaxInt64 {
		return 0
	}
	return b.LowPrice
}

// VWAP is the cumulative volume-weighted average price for the session.
func (b *OrderBook) VWAP() float64 {
	if b.Volume == 0 {
		return 0
	}
	return b.vwapNumerator / float64(b.Volume)
}

// RecordTrade updates the market-data cache after a trade prints. This
// mirrors the teacher's lack of market-data bookkeeping (the teacher
// never tracked OHLCV) by following the original source's
// market_sim::OrderBook::record_trade instead.
func (b *OrderBook) RecordTrade(price, qty int64) {
	if b.OpenPrice == 0 {
		b.OpenPrice = price
	}
	if price > b.HighPrice {
		b.HighPrice = price
	}
	if price < b.LowPrice {
		b.LowPrice = price
	}
	b.LastTradePrice = price
	b.LastTradeQty = qty
	b.Volume += qty
	b.TradeCount++
	b.vwapNumerator += float64(price) * float64(qty)
}

// AvailableLiquidity sums total-quantity of all levels at or better than
// price_limit on the opposing side of `side` (spec §4.1, used by market
// order sweepers to sanity-check depth before sweeping).
func (b *OrderBook) AvailableLiquidity(side common.Side, priceLimit int64) int64 {
	var total int64
	if side == common.Buy {
		for _, l := range b.asks.Items() {
			if l.Price > priceLimit {
				break
			}
			total += l.TotalQuantity
		}
	} else {
		for _, l := range b.bids.Items() {
			if l.Price < priceLimit {
				break
			}
			total += l.TotalQuantity
		}
	}
	return total
}

// Get returns the resting order for id, if any.
func (b *OrderBook) Get(id common.OrderId) (*common.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

// OrderCount is the total number of resting orders in the book.
func (b *OrderBook) OrderCount() int {
	return len(b.orders)
}

// BidLevels / AskLevels expose the underlying sorted sides, best-first,
// for the matching core's sweep and the phase machine's auction uncross.
func (b *OrderBook) BidLevels() []*PriceLevel { return b.bids.Items() }
func (b *OrderBook) AskLevels() []*PriceLevel { return b.asks.Items() }

// LevelAt returns the resting level at a price on a side, if any.
func (b *OrderBook) LevelAt(side common.Side, price int64) (*PriceLevel, bool) {
	return b.sideLevels(side).GetMut(&PriceLevel{Price: price})
}

// DeleteLevelIfEmpty removes a level once its FIFOs are drained. Exposed
// for the matching core's sweep loop, which mutates levels returned by
// BidLevels/AskLevels directly for performance and then asks the book to
// reconcile the index afterward.
func (b *OrderBook) DeleteLevelIfEmpty(side common.Side, level *PriceLevel) {
	if level.isEmpty() {
		b.sideLevels(side).Delete(level)
	}
}

// Orders returns every resting order, for replay/invariant-checking.
func (b *OrderBook) Orders() map[common.OrderId]*common.Order {
	return b.orders
}

// RemoveIndexOnly drops an order from the fast index without touching
// the level FIFO (the matching core calls this only after it has already
// spliced the order out of the level's FIFO itself, during a sweep).
func (b *OrderBook) RemoveIndexOnly(id common.OrderId) {
	delete(b.orders, id)
}

// RefreshBBO recomputes the cached best bid/ask from the sorted sides.
// Exposed for the matching core, which mutates levels in bulk during a
// sweep and refreshes the cache once at the end rather than after every
// order.
func (b *OrderBook) RefreshBBO() {
	b.updateBBO()
}
