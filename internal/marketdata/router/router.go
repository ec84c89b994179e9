// Package router implements the Message Router of spec §4.7: a
// stateless fan-out from the Connection Manager's normalized message
// stream to any number of interested consumers, each with its own
// bounded channel so one slow consumer never backs up another.
package router

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// Interest is a consumer's subscription predicate: it returns true
// for any MarketMessage the consumer wants delivered.
type Interest func(types.MarketMessage) bool

// ByProviderAndSymbol returns an Interest matching one provider/symbol
// pair exactly (symbol match only applies to kinds that carry one).
func ByProviderAndSymbol(provider, symbol string) Interest {
	return func(msg types.MarketMessage) bool {
		var p, s string
		switch msg.Kind {
		case types.KindTicker:
			if msg.Ticker == nil {
				return false
			}
			p, s = msg.Ticker.Provider, msg.Ticker.Symbol
		case types.KindOrderBookSnapshot, types.KindOrderBookDelta:
			if msg.OrderBook == nil {
				return false
			}
			p, s = msg.OrderBook.Provider, msg.OrderBook.Symbol
		case types.KindTrade:
			if msg.Trade == nil {
				return false
			}
			p, s = msg.Trade.Provider, msg.Trade.Symbol
		case types.KindCandle:
			if msg.Candle == nil {
				return false
			}
			p, s = msg.Candle.Provider, msg.Candle.Symbol
		default:
			return false
		}
		return p == provider && s == symbol
	}
}

// ByKind returns an Interest matching any message of the given kind,
// regardless of provider or symbol.
func ByKind(kind types.Kind) Interest {
	return func(msg types.MarketMessage) bool { return msg.Kind == kind }
}

type consumer struct {
	id       int64
	interest Interest
	ch       chan types.MarketMessage
	dropped  int64
	mu       sync.Mutex
}

// Router dispatches every Ingest call to each registered consumer whose
// Interest matches, never blocking the producer: a full consumer channel
// drops its oldest queued message to make room, same back-pressure
// policy as the teacher's broadcast fan-out in internal/net.
type Router struct {
	mu       sync.RWMutex
	nextId   int64
	consumers map[int64]*consumer
}

func NewRouter() *Router {
	return &Router{consumers: make(map[int64]*consumer)}
}

// Subscribe registers a new consumer with a bounded inbox of capacity
// bufSize and returns its receive channel plus an unsubscribe func.
func (r *Router) Subscribe(interest Interest, bufSize int) (<-chan types.MarketMessage, func()) {
	r.mu.Lock()
	id := r.nextId
	r.nextId++
	c := &consumer{id: id, interest: interest, ch: make(chan types.MarketMessage, bufSize)}
	r.consumers[id] = c
	r.mu.Unlock()

	unsubscribe := func() {
		r.mu.Lock()
		delete(r.consumers, id)
		r.mu.Unlock()
		close(c.ch)
	}
	return c.ch, unsubscribe
}

// Ingest is the Connection Manager's onMessage callback target: it
// dispatches msg to every matching consumer.
func (r *Router) Ingest(msg types.MarketMessage) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.consumers {
		if !c.interest(msg) {
			continue
		}
		c.deliver(msg)
	}
}

func (c *consumer) deliver(msg types.MarketMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case c.ch <- msg:
	default:
		// Inbox full: drop the oldest queued message to make room, then
		// retry once. A consumer that's still full after that is falling
		// behind badly enough that dropping this message too is the
		// right call.
		select {
		case <-c.ch:
			c.dropped++
		default:
		}
		select {
		case c.ch <- msg:
		default:
			c.dropped++
			log.Warn().Int64("consumer_id", c.id).Int64("dropped_total", c.dropped).Msg("market data consumer dropped a message")
		}
	}
}

// ConsumerStats returns each live consumer's dropped-message count,
// keyed by its internal subscriber id.
func (r *Router) ConsumerStats() map[int64]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int64]int64, len(r.consumers))
	for id, c := range r.consumers {
		c.mu.Lock()
		out[id] = c.dropped
		c.mu.Unlock()
	}
	return out
}
