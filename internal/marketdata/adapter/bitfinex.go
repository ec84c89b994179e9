package adapter

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// BitfinexAdapter speaks Bitfinex's v2 public WebSocket API
// (wss://api-pub.bitfinex.com/ws/2). Bitfinex assigns each subscription
// an integer channel id in its "subscribed" ack and every subsequent
// update frame is a bare [chanId, payload] array with no channel name —
// the adapter must remember the chanId->(channel,symbol) mapping from
// the ack, same as bitfinex.rs's connect().
type BitfinexAdapter struct {
	*baseAdapter

	mu       sync.Mutex
	channels map[int64]bitfinexChannel
}

type bitfinexChannel struct {
	Channel string
	Symbol  string
}

const bitfinexBaseURL = "wss://api-pub.bitfinex.com/ws/2"

func NewBitfinexAdapter() *BitfinexAdapter {
	a := &BitfinexAdapter{
		baseAdapter: newBaseAdapter("bitfinex", bitfinexBaseURL),
		channels:    make(map[int64]bitfinexChannel),
	}
	a.handleRaw = a.onMessage
	return a
}

func (a *BitfinexAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *BitfinexAdapter) Disconnect() error                 { return a.disconnect() }

func bitfinexNormalizeSymbol(symbol string) string {
	return "t" + strings.ToUpper(strings.ReplaceAll(symbol, "-", ""))
}

func bitfinexChannelName(channel string) string {
	switch channel {
	case "ticker":
		return "ticker"
	case "trades":
		return "trades"
	case "depth":
		return "book"
	default:
		return channel
	}
}

func (a *BitfinexAdapter) Subscribe(symbol string, channels []string) error {
	for _, ch := range channels {
		if err := a.writeJSON(map[string]interface{}{
			"event":   "subscribe",
			"channel": bitfinexChannelName(ch),
			"symbol":  bitfinexNormalizeSymbol(symbol),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *BitfinexAdapter) Unsubscribe(symbol string, channels []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, ch := range a.channels {
		if ch.Symbol == bitfinexNormalizeSymbol(symbol) {
			delete(a.channels, id)
			_ = a.writeJSON(map[string]interface{}{"event": "unsubscribe", "chanId": id})
		}
	}
	return nil
}

type bitfinexAckMsg struct {
	Event   string `json:"event"`
	Channel string `json:"channel"`
	ChanId  int64  `json:"chanId"`
	Symbol  string `json:"symbol"`
}

func (a *BitfinexAdapter) onMessage(raw []byte) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		var ack bitfinexAckMsg
		if err := json.Unmarshal(raw, &ack); err == nil && ack.Event == "subscribed" {
			a.mu.Lock()
			a.channels[ack.ChanId] = bitfinexChannel{Channel: ack.Channel, Symbol: ack.Symbol}
			a.mu.Unlock()
		}
		return
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(raw, &frame); err != nil || len(frame) < 2 {
		return
	}
	var chanId int64
	if err := json.Unmarshal(frame[0], &chanId); err != nil {
		return
	}
	a.mu.Lock()
	ch, ok := a.channels[chanId]
	a.mu.Unlock()
	if !ok {
		return
	}

	// A heartbeat payload is the bare string "hb"; skip it. Trade updates
	// arrive as [chanId, "te"|"tu", [ID, MTS, AMOUNT, PRICE]], so a string
	// tag with a third element carries its payload there.
	payload := frame[1]
	var maybeStr string
	if json.Unmarshal(frame[1], &maybeStr) == nil {
		if maybeStr == "hb" || len(frame) < 3 {
			return
		}
		payload = frame[2]
	}

	symbol := canonicalizeSymbol(ch.Symbol)
	switch ch.Channel {
	case "ticker":
		a.emitTicker(symbol, payload)
	case "trades":
		a.emitTrades(symbol, payload)
	case "book":
		a.emitBook(symbol, payload)
	}
}

// emitTicker parses Bitfinex's fixed-position ticker array:
// [BID, BID_SIZE, ASK, ASK_SIZE, DAILY_CHANGE, DAILY_CHANGE_PCT,
//  LAST_PRICE, VOLUME, HIGH, LOW].
func (a *BitfinexAdapter) emitTicker(symbol string, raw json.RawMessage) {
	var row []float64
	if err := json.Unmarshal(raw, &row); err != nil || len(row) < 10 {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindTicker,
		Ticker: &types.Ticker{
			Provider:      a.ProviderName(),
			Symbol:        symbol,
			Bid:           row[0],
			BidSize:       row[1],
			Ask:           row[2],
			AskSize:       row[3],
			ChangePercent: row[5] * 100,
			Price:         row[6],
			Volume:        row[7],
			High:          row[8],
			Low:           row[9],
		},
	})
}

// emitTrades handles both the initial snapshot (array of trades) and a
// subsequent single-trade update (a 4-element [ID, MTS, AMOUNT, PRICE]
// row, whose "te"/"tu" tag onMessage strips by frame length).
func (a *BitfinexAdapter) emitTrades(symbol string, raw json.RawMessage) {
	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		var single []float64
		if err := json.Unmarshal(raw, &single); err != nil || len(single) < 4 {
			return
		}
		rows = [][]float64{single}
	}
	for _, t := range rows {
		if len(t) < 4 {
			continue
		}
		side := types.TradeSideBuy
		amount := t[2]
		if amount < 0 {
			side = types.TradeSideSell
			amount = -amount
		}
		a.emit(types.MarketMessage{
			Kind: types.KindTrade,
			Trade: &types.Trade{
				Provider:    a.ProviderName(),
				Symbol:      symbol,
				Price:       t[3],
				Quantity:    amount,
				Side:        side,
				TimestampMs: int64(t[1]),
			},
		})
	}
}

func (a *BitfinexAdapter) emitBook(symbol string, raw json.RawMessage) {
	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err != nil {
		var single []float64
		if err := json.Unmarshal(raw, &single); err != nil || len(single) < 3 {
			return
		}
		rows = [][]float64{single}
	}
	var bids, asks []types.OrderBookLevel
	for _, r := range rows {
		if len(r) < 3 {
			continue
		}
		price, count, amount := r[0], r[1], r[2]
		qty := amount
		if qty < 0 {
			qty = -qty
		}
		lvl := types.OrderBookLevel{Price: price, Quantity: qty}
		if count == 0 {
			lvl.Quantity = 0 // deletion
		}
		if amount > 0 {
			bids = append(bids, lvl)
		} else {
			asks = append(asks, lvl)
		}
	}
	a.emit(types.MarketMessage{
		Kind: types.KindOrderBookDelta,
		OrderBook: &types.OrderBook{
			Provider:   a.ProviderName(),
			Symbol:     symbol,
			Bids:       bids,
			Asks:       asks,
			IsSnapshot: len(rows) > 1,
		},
	})
}
