package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// KrakenAdapter speaks Kraken's v2 public WebSocket API
// (wss://ws.kraken.com/v2), whose frames are keyed by a top-level
// "channel" field and carry an array of objects in "data" rather than
// Binance's one-message-per-update shape.
type KrakenAdapter struct {
	*baseAdapter
}

const krakenBaseURL = "wss://ws.kraken.com/v2"

func NewKrakenAdapter() *KrakenAdapter {
	a := &KrakenAdapter{baseAdapter: newBaseAdapter("kraken", krakenBaseURL)}
	a.handleRaw = a.onMessage
	return a
}

func (a *KrakenAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *KrakenAdapter) Disconnect() error                 { return a.disconnect() }

func krakenNormalizeSymbol(symbol string) string {
	s := strings.ToUpper(symbol)
	if !strings.Contains(s, "/") && len(s) > 3 {
		return s[:len(s)-3] + "/" + s[len(s)-3:]
	}
	return s
}

func (a *KrakenAdapter) Subscribe(symbol string, channels []string) error {
	return a.writeJSON(map[string]interface{}{
		"method": "subscribe",
		"params": map[string]interface{}{
			"channel": krakenChannelName(channels),
			"symbol":  []string{krakenNormalizeSymbol(symbol)},
		},
	})
}

func (a *KrakenAdapter) Unsubscribe(symbol string, channels []string) error {
	return a.writeJSON(map[string]interface{}{
		"method": "unsubscribe",
		"params": map[string]interface{}{
			"channel": krakenChannelName(channels),
			"symbol":  []string{krakenNormalizeSymbol(symbol)},
		},
	})
}

func krakenChannelName(channels []string) string {
	if len(channels) == 0 {
		return "ticker"
	}
	switch channels[0] {
	case "trades":
		return "trade"
	case "depth":
		return "book"
	case "candles_1m":
		return "ohlc"
	default:
		return channels[0]
	}
}

type krakenEnvelope struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

func (a *KrakenAdapter) onMessage(raw []byte) {
	var env krakenEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Channel == "" {
		return
	}
	switch env.Channel {
	case "ticker":
		a.emitTicker(env.Data)
	case "trade":
		a.emitTrades(env.Data)
	case "book":
		a.emitBook(env.Data, env.Type == "snapshot")
	case "ohlc":
		a.emitCandles(env.Data)
	}
}

type krakenTicker struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	BidQty    float64 `json:"bid_qty"`
	Ask       float64 `json:"ask"`
	AskQty    float64 `json:"ask_qty"`
	Last      float64 `json:"last"`
	Volume    float64 `json:"volume"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Change    float64 `json:"change_pct"`
}

func (a *KrakenAdapter) emitTicker(data json.RawMessage) {
	var rows []krakenTicker
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, t := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindTicker,
			Ticker: &types.Ticker{
				Provider:      a.ProviderName(),
				Symbol:        canonicalizeSymbol(t.Symbol),
				Price:         t.Last,
				Bid:           t.Bid,
				Ask:           t.Ask,
				BidSize:       t.BidQty,
				AskSize:       t.AskQty,
				Volume:        t.Volume,
				High:          t.High,
				Low:           t.Low,
				ChangePercent: t.Change,
			},
		})
	}
}

type krakenTrade struct {
	Symbol    string  `json:"symbol"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Qty       float64 `json:"qty"`
	TradeId   int64   `json:"trade_id"`
}

func (a *KrakenAdapter) emitTrades(data json.RawMessage) {
	var rows []krakenTrade
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, t := range rows {
		side := types.TradeSideBuy
		if t.Side == "sell" {
			side = types.TradeSideSell
		}
		a.emit(types.MarketMessage{
			Kind: types.KindTrade,
			Trade: &types.Trade{
				Provider: a.ProviderName(),
				Symbol:   canonicalizeSymbol(t.Symbol),
				Price:    t.Price,
				Quantity: t.Qty,
				Side:     side,
			},
		})
	}
}

type krakenBookRow struct {
	Symbol string              `json:"symbol"`
	Bids   []krakenBookLevel   `json:"bids"`
	Asks   []krakenBookLevel   `json:"asks"`
}

type krakenBookLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

func (a *KrakenAdapter) emitBook(data json.RawMessage, snapshot bool) {
	var rows []krakenBookRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, row := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindOrderBookDelta,
			OrderBook: &types.OrderBook{
				Provider:   a.ProviderName(),
				Symbol:     canonicalizeSymbol(row.Symbol),
				Bids:       krakenLevels(row.Bids),
				Asks:       krakenLevels(row.Asks),
				IsSnapshot: snapshot,
			},
		})
	}
}

func krakenLevels(rows []krakenBookLevel) []types.OrderBookLevel {
	out := make([]types.OrderBookLevel, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.OrderBookLevel{Price: r.Price, Quantity: r.Qty})
	}
	return out
}

type krakenCandle struct {
	Symbol   string  `json:"symbol"`
	Interval int     `json:"interval"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

func (a *KrakenAdapter) emitCandles(data json.RawMessage) {
	var rows []krakenCandle
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, c := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindCandle,
			Candle: &types.Candle{
				Provider: a.ProviderName(),
				Symbol:   canonicalizeSymbol(c.Symbol),
				Open:     c.Open,
				High:     c.High,
				Low:      c.Low,
				Close:    c.Close,
				Volume:   c.Volume,
			},
		})
	}
}
