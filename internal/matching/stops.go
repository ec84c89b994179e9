package matching

import (
	"sort"

	"github.com/vantage-exchange/vantage/internal/common"
)

// pendingStops holds Stop and Stop-Limit orders off-book, keyed by
// trigger price, per spec §4.2: "pending buy stops (keyed ascending on
// trigger) and pending sell stops (descending)". A plain sorted-bucket
// map is sufficient here — the teacher's btree.BTreeG is reserved for the
// book's hot path (internal/book.OrderBook); the pending-stops set is
// touched only once per trade, not once per sweep step.
type pendingStops struct {
	buy  map[int64][]*common.Order // trigger -> FIFO of buy stops
	sell map[int64][]*common.Order // trigger -> FIFO of sell stops
	byId map[common.OrderId]common.Side
}

func newPendingStops() *pendingStops {
	return &pendingStops{
		buy:  make(map[int64][]*common.Order),
		sell: make(map[int64][]*common.Order),
		byId: make(map[common.OrderId]common.Side),
	}
}

func (p *pendingStops) add(o *common.Order) {
	o.Status = common.StatusNew
	if o.Side == common.Buy {
		p.buy[o.StopPrice] = append(p.buy[o.StopPrice], o)
	} else {
		p.sell[o.StopPrice] = append(p.sell[o.StopPrice], o)
	}
	p.byId[o.Id] = o.Side
}

// remove drops a pending stop order by id, for explicit cancellation.
func (p *pendingStops) remove(id common.OrderId) (*common.Order, bool) {
	side, ok := p.byId[id]
	if !ok {
		return nil, false
	}
	bucket := p.buy
	if side == common.Sell {
		bucket = p.sell
	}
	for price, orders := range bucket {
		for i, o := range orders {
			if o.Id == id {
				bucket[price] = append(orders[:i], orders[i+1:]...)
				if len(bucket[price]) == 0 {
					delete(bucket, price)
				}
				delete(p.byId, id)
				return o, true
			}
		}
	}
	return nil, false
}

// drainTriggered removes and returns every pending stop whose trigger is
// satisfied by lastTradePrice: buy stops with trigger <= lastTradePrice
// (buy stop activates when last >= stop), sell stops with trigger >=
// lastTradePrice (sell stop activates when last <= stop). Orders within
// a bucket are returned in FIFO (accept-time) order; buckets are drained
// in the order spec §4.2 keys the pending sets — buy stops ascending on
// trigger, sell stops descending — which a bare `range` over the
// underlying map cannot give, since Go's map iteration order is
// unspecified. Without this sort, a trade that satisfies more than one
// trigger bucket would activate them (and mint trade ids) in a random
// order from one run to the next, breaking the byte-for-byte replay
// property spec §8 requires.
func (p *pendingStops) drainTriggered(lastTradePrice int64) []*common.Order {
	var out []*common.Order

	buyPrices := make([]int64, 0, len(p.buy))
	for price := range p.buy {
		if price <= lastTradePrice {
			buyPrices = append(buyPrices, price)
		}
	}
	sort.Slice(buyPrices, func(i, j int) bool { return buyPrices[i] < buyPrices[j] })
	for _, price := range buyPrices {
		orders := p.buy[price]
		out = append(out, orders...)
		delete(p.buy, price)
		for _, o := range orders {
			delete(p.byId, o.Id)
		}
	}

	sellPrices := make([]int64, 0, len(p.sell))
	for price := range p.sell {
		if price >= lastTradePrice {
			sellPrices = append(sellPrices, price)
		}
	}
	sort.Slice(sellPrices, func(i, j int) bool { return sellPrices[i] > sellPrices[j] })
	for _, price := range sellPrices {
		orders := p.sell[price]
		out = append(out, orders...)
		delete(p.sell, price)
		for _, o := range orders {
			delete(p.byId, o.Id)
		}
	}

	return out
}

// activateStop converts a triggered Stop order to Market and a
// Stop-Limit order to Limit, per spec §4.2, so it can re-enter doSubmit
// through the ordinary order-type dispatch.
func activateStop(o *common.Order) *common.Order {
	if o.Type == common.StopOrder {
		o.Type = common.MarketOrder
	} else {
		o.Type = common.LimitOrder
	}
	return o
}
