package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// simpleAdapter is a parametrized template for venues whose public feeds
// differ from Binance/Kraken/OKX/Bitfinex/Huobi only in URL, symbol
// casing, and topic naming, not in envelope shape: a topic-tagged
// {"topic": "...", "data": [...]} push, subscribed with
// {"op": "subscribe", "args": ["topic1", ...]}. Bybit v5, Bitget v2,
// Gate.io's spot WS, KuCoin, and MEXC all fit this template closely
// enough that a bespoke file per venue would be near-duplicate
// boilerplate (see DESIGN.md).
type simpleAdapter struct {
	*baseAdapter
	spec simpleVenueSpec
}

type simpleVenueSpec struct {
	name          string
	url           string
	normalizeSym  func(string) string
	topic         func(symbol, channel string) string
	tickerField   string // top-level field a ticker push's data row is nested under, "" if flat
}

func newSimpleAdapter(spec simpleVenueSpec) *simpleAdapter {
	a := &simpleAdapter{baseAdapter: newBaseAdapter(spec.name, spec.url), spec: spec}
	a.handleRaw = a.onMessage
	return a
}

func (a *simpleAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *simpleAdapter) Disconnect() error                 { return a.disconnect() }

func (a *simpleAdapter) Subscribe(symbol string, channels []string) error {
	sym := a.spec.normalizeSym(symbol)
	args := make([]string, 0, len(channels))
	for _, ch := range channels {
		args = append(args, a.spec.topic(sym, ch))
	}
	return a.writeJSON(map[string]interface{}{"op": "subscribe", "args": args})
}

func (a *simpleAdapter) Unsubscribe(symbol string, channels []string) error {
	sym := a.spec.normalizeSym(symbol)
	args := make([]string, 0, len(channels))
	for _, ch := range channels {
		args = append(args, a.spec.topic(sym, ch))
	}
	return a.writeJSON(map[string]interface{}{"op": "unsubscribe", "args": args})
}

type simpleEnvelope struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type simplePingMsg struct {
	Op   string `json:"op"`
	Ping int64  `json:"ping"`
}

func (a *simpleAdapter) onMessage(raw []byte) {
	var ping simplePingMsg
	if json.Unmarshal(raw, &ping) == nil && (ping.Op == "ping" || ping.Ping != 0) {
		_ = a.writeJSON(map[string]interface{}{"op": "pong"})
		return
	}

	var env simpleEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Topic == "" {
		return
	}
	switch {
	case strings.HasPrefix(env.Topic, "tickers"):
		a.emitTicker(env.Data)
	case strings.HasPrefix(env.Topic, "trade"):
		a.emitTrades(env.Data)
	case strings.HasPrefix(env.Topic, "orderbook") || strings.HasPrefix(env.Topic, "depth"):
		a.emitBook(env.Data)
	case strings.HasPrefix(env.Topic, "kline") || strings.HasPrefix(env.Topic, "candle"):
		a.emitCandle(env.Data)
	}
}

type simpleTickerRow struct {
	Symbol   string  `json:"symbol"`
	LastPr   string  `json:"lastPrice"`
	BidPr    string  `json:"bid1Price"`
	BidSz    string  `json:"bid1Size"`
	AskPr    string  `json:"ask1Price"`
	AskSz    string  `json:"ask1Size"`
	Volume   string  `json:"volume24h"`
	High     string  `json:"highPrice24h"`
	Low      string  `json:"lowPrice24h"`
	ChangePc string  `json:"price24hPcnt"`
}

func (a *simpleAdapter) emitTicker(data json.RawMessage) {
	var row simpleTickerRow
	if err := json.Unmarshal(data, &row); err != nil {
		var rows []simpleTickerRow
		if err := json.Unmarshal(data, &rows); err != nil || len(rows) == 0 {
			return
		}
		row = rows[0]
	}
	a.emit(types.MarketMessage{
		Kind: types.KindTicker,
		Ticker: &types.Ticker{
			Provider:      a.ProviderName(),
			Symbol:        canonicalizeSymbol(row.Symbol),
			Price:         parseFloat(row.LastPr),
			Bid:           parseFloat(row.BidPr),
			Ask:           parseFloat(row.AskPr),
			BidSize:       parseFloat(row.BidSz),
			AskSize:       parseFloat(row.AskSz),
			Volume:        parseFloat(row.Volume),
			High:          parseFloat(row.High),
			Low:           parseFloat(row.Low),
			ChangePercent: parseFloat(row.ChangePc) * 100,
		},
	})
}

type simpleTradeRow struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Size   string `json:"size"`
	Side   string `json:"side"`
	TradeId string `json:"tradeId"`
	Ts     int64  `json:"ts"`
}

func (a *simpleAdapter) emitTrades(data json.RawMessage) {
	var rows []simpleTradeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, t := range rows {
		side := types.TradeSideBuy
		if strings.EqualFold(t.Side, "sell") || strings.EqualFold(t.Side, "Sell") {
			side = types.TradeSideSell
		}
		a.emit(types.MarketMessage{
			Kind: types.KindTrade,
			Trade: &types.Trade{
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(t.Symbol),
				TradeId:     t.TradeId,
				Price:       parseFloat(t.Price),
				Quantity:    parseFloat(t.Size),
				Side:        side,
				TimestampMs: t.Ts,
			},
		})
	}
}

type simpleBookRow struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

func (a *simpleAdapter) emitBook(data json.RawMessage) {
	var row simpleBookRow
	if err := json.Unmarshal(data, &row); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindOrderBookDelta,
		OrderBook: &types.OrderBook{
			Provider: a.ProviderName(),
			Symbol:   canonicalizeSymbol(row.Symbol),
			Bids:     binanceLevels(row.Bids),
			Asks:     binanceLevels(row.Asks),
		},
	})
}

type simpleCandleRow struct {
	Symbol string  `json:"symbol"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Ts     int64   `json:"ts"`
}

func (a *simpleAdapter) emitCandle(data json.RawMessage) {
	var rows []simpleCandleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, c := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindCandle,
			Candle: &types.Candle{
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(c.Symbol),
				Interval:    "1m",
				Open:        c.Open,
				High:        c.High,
				Low:         c.Low,
				Close:       c.Close,
				Volume:      c.Volume,
				TimestampMs: c.Ts,
			},
		})
	}
}

func simpleTopic(symbol, channel string) string {
	switch channel {
	case "ticker":
		return "tickers." + symbol
	case "trades":
		return "trade." + symbol
	case "depth":
		return "orderbook.50." + symbol
	case "candles_1m":
		return "kline.1." + symbol
	default:
		return channel + "." + symbol
	}
}

// NewBybitAdapter constructs a Bybit v5-public-style adapter.
func NewBybitAdapter() Adapter {
	return newSimpleAdapter(simpleVenueSpec{
		name:         "bybit",
		url:          "wss://stream.bybit.com/v5/public/spot",
		normalizeSym: func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "-", "")) },
		topic:        simpleTopic,
	})
}

// NewBitgetAdapter constructs a Bitget public-channel-style adapter.
func NewBitgetAdapter() Adapter {
	return newSimpleAdapter(simpleVenueSpec{
		name:         "bitget",
		url:          "wss://ws.bitget.com/v2/ws/public",
		normalizeSym: func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "-", "")) },
		topic:        simpleTopic,
	})
}

// NewGateIOAdapter constructs a Gate.io spot-WS-style adapter.
func NewGateIOAdapter() Adapter {
	return newSimpleAdapter(simpleVenueSpec{
		name:         "gateio",
		url:          "wss://api.gateio.ws/ws/v4/",
		normalizeSym: func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "/", "_")) },
		topic:        simpleTopic,
	})
}

// NewKuCoinAdapter constructs a KuCoin public-topic-style adapter. Real
// KuCoin connections require a bullet-token endpoint fetched over REST
// first; SetEndpoint lets the cmd wiring inject that negotiated URL
// before Connect.
func NewKuCoinAdapter() *simpleAdapter {
	return newSimpleAdapter(simpleVenueSpec{
		name:         "kucoin",
		url:          "wss://ws-api-spot.kucoin.com/",
		normalizeSym: func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "/", "-")) },
		topic:        simpleTopic,
	})
}

// SetEndpoint overrides the dial URL, used for KuCoin's negotiated
// bullet-token endpoint.
func (a *simpleAdapter) SetEndpoint(url string) { a.url = url }

// NewMEXCAdapter constructs an MEXC public-topic-style adapter.
func NewMEXCAdapter() Adapter {
	return newSimpleAdapter(simpleVenueSpec{
		name:         "mexc",
		url:          "wss://wbs.mexc.com/ws",
		normalizeSym: func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "-", "")) },
		topic:        simpleTopic,
	})
}
