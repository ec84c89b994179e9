package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// BinanceAdapter speaks Binance's combined-stream WebSocket API
// (wss://stream.binance.com:9443/stream?streams=...). Channel dispatch is
// keyed by the inner payload's "e" event-type field, mirroring the
// original source's binance.rs connect() match on event type.
type BinanceAdapter struct {
	*baseAdapter

	mu   sync.Mutex
	subs map[string][]string // symbol -> channels, for Subscribe/Unsubscribe bookkeeping
}

const binanceBaseURL = "wss://stream.binance.com:9443/stream"

func NewBinanceAdapter() *BinanceAdapter {
	a := &BinanceAdapter{
		baseAdapter: newBaseAdapter("binance", binanceBaseURL),
		subs:        make(map[string][]string),
	}
	a.handleRaw = a.onMessage
	return a
}

func (a *BinanceAdapter) Connect(ctx context.Context) error {
	return a.connect(ctx)
}

func (a *BinanceAdapter) Disconnect() error {
	return a.disconnect()
}

// Subscribe issues Binance's SUBSCRIBE control frame for
// "<symbol>@<channel>" streams, normalizing the symbol to lowercase the
// way binance.rs's normalize_symbol does.
func (a *BinanceAdapter) Subscribe(symbol string, channels []string) error {
	norm := binanceNormalizeSymbol(symbol)
	params := make([]string, 0, len(channels))
	for _, ch := range channels {
		params = append(params, fmt.Sprintf("%s@%s", norm, binanceStreamName(ch)))
	}
	a.mu.Lock()
	a.subs[norm] = append(a.subs[norm], channels...)
	a.mu.Unlock()
	return a.writeJSON(map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	})
}

func (a *BinanceAdapter) Unsubscribe(symbol string, channels []string) error {
	norm := binanceNormalizeSymbol(symbol)
	params := make([]string, 0, len(channels))
	for _, ch := range channels {
		params = append(params, fmt.Sprintf("%s@%s", norm, binanceStreamName(ch)))
	}
	a.mu.Lock()
	delete(a.subs, norm)
	a.mu.Unlock()
	return a.writeJSON(map[string]interface{}{
		"method": "UNSUBSCRIBE",
		"params": params,
		"id":     2,
	})
}

func binanceNormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.ReplaceAll(symbol, "-", ""))
}

func binanceStreamName(channel string) string {
	switch channel {
	case "ticker":
		return "ticker"
	case "book_ticker":
		return "bookTicker"
	case "trades":
		return "trade"
	case "depth":
		return "depth20@100ms"
	case "candles_1m":
		return "kline_1m"
	default:
		return channel
	}
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type binanceEventType struct {
	EventType string `json:"e"`
}

func (a *BinanceAdapter) onMessage(raw []byte) {
	var env binanceEnvelope
	payload := raw
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 {
		payload = env.Data
	}

	var et binanceEventType
	if err := json.Unmarshal(payload, &et); err != nil {
		return
	}

	switch et.EventType {
	case "24hrTicker":
		a.emitTicker(payload)
	case "bookTicker":
		a.emitBookTicker(payload)
	case "trade":
		a.emitTrade(payload)
	case "depthUpdate":
		a.emitDepth(payload)
	case "kline":
		a.emitKline(payload)
	}
}

type binanceTickerMsg struct {
	Symbol       string `json:"s"`
	LastPrice    string `json:"c"`
	BidPrice     string `json:"b"`
	BidQty       string `json:"B"`
	AskPrice     string `json:"a"`
	AskQty       string `json:"A"`
	Volume       string `json:"v"`
	High         string `json:"h"`
	Low          string `json:"l"`
	Open         string `json:"o"`
	ChangePct    string `json:"P"`
	EventTimeMs  int64  `json:"E"`
}

func (a *BinanceAdapter) emitTicker(payload []byte) {
	var m binanceTickerMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindTicker,
		Ticker: &types.Ticker{
			Provider:      a.ProviderName(),
			Symbol:        canonicalizeSymbol(m.Symbol),
			Price:         parseFloat(m.LastPrice),
			Bid:           parseFloat(m.BidPrice),
			Ask:           parseFloat(m.AskPrice),
			BidSize:       parseFloat(m.BidQty),
			AskSize:       parseFloat(m.AskQty),
			Volume:        parseFloat(m.Volume),
			High:          parseFloat(m.High),
			Low:           parseFloat(m.Low),
			Open:          parseFloat(m.Open),
			ChangePercent: parseFloat(m.ChangePct),
			TimestampMs:   m.EventTimeMs,
		},
	})
}

type binanceBookTickerMsg struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// emitBookTicker fills a Ticker with only bid/ask populated, matching
// binance.rs's parse_book_ticker — Binance's bookTicker stream carries no
// last-trade price or 24h stats.
func (a *BinanceAdapter) emitBookTicker(payload []byte) {
	var m binanceBookTickerMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindTicker,
		Ticker: &types.Ticker{
			Provider: a.ProviderName(),
			Symbol:   canonicalizeSymbol(m.Symbol),
			Bid:      parseFloat(m.BidPrice),
			Ask:      parseFloat(m.AskPrice),
			BidSize:  parseFloat(m.BidQty),
			AskSize:  parseFloat(m.AskQty),
		},
	})
}

type binanceTradeMsg struct {
	Symbol      string `json:"s"`
	TradeId     int64  `json:"t"`
	Price       string `json:"p"`
	Qty         string `json:"q"`
	BuyerMaker  bool   `json:"m"`
	EventTimeMs int64  `json:"E"`
}

func (a *BinanceAdapter) emitTrade(payload []byte) {
	var m binanceTradeMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	side := types.TradeSideBuy
	if m.BuyerMaker {
		side = types.TradeSideSell
	}
	a.emit(types.MarketMessage{
		Kind: types.KindTrade,
		Trade: &types.Trade{
			Provider:    a.ProviderName(),
			Symbol:      canonicalizeSymbol(m.Symbol),
			TradeId:     strconv.FormatInt(m.TradeId, 10),
			Price:       parseFloat(m.Price),
			Quantity:    parseFloat(m.Qty),
			Side:        side,
			TimestampMs: m.EventTimeMs,
		},
	})
}

type binanceDepthMsg struct {
	Symbol      string     `json:"s"`
	Bids        [][]string `json:"b"`
	Asks        [][]string `json:"a"`
	EventTimeMs int64      `json:"E"`
}

func (a *BinanceAdapter) emitDepth(payload []byte) {
	var m binanceDepthMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindOrderBookDelta,
		OrderBook: &types.OrderBook{
			Provider:    a.ProviderName(),
			Symbol:      canonicalizeSymbol(m.Symbol),
			Bids:        binanceLevels(m.Bids),
			Asks:        binanceLevels(m.Asks),
			IsSnapshot:  false,
			TimestampMs: m.EventTimeMs,
		},
	})
}

func binanceLevels(raw [][]string) []types.OrderBookLevel {
	out := make([]types.OrderBookLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		out = append(out, types.OrderBookLevel{Price: parseFloat(lvl[0]), Quantity: parseFloat(lvl[1])})
	}
	return out
}

type binanceKlineMsg struct {
	Symbol string `json:"s"`
	Kline  struct {
		Interval  string `json:"i"`
		Open      string `json:"o"`
		High      string `json:"h"`
		Low       string `json:"l"`
		Close     string `json:"c"`
		Volume    string `json:"v"`
		CloseTime int64  `json:"T"`
	} `json:"k"`
}

func (a *BinanceAdapter) emitKline(payload []byte) {
	var m binanceKlineMsg
	if err := json.Unmarshal(payload, &m); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindCandle,
		Candle: &types.Candle{
			Provider:    a.ProviderName(),
			Symbol:      canonicalizeSymbol(m.Symbol),
			Interval:    m.Kline.Interval,
			Open:        parseFloat(m.Kline.Open),
			High:        parseFloat(m.Kline.High),
			Low:         parseFloat(m.Kline.Low),
			Close:       parseFloat(m.Kline.Close),
			Volume:      parseFloat(m.Kline.Volume),
			TimestampMs: m.Kline.CloseTime,
		},
	})
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
