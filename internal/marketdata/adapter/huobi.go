package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// HuobiAdapter speaks Huobi's public WebSocket API
// (wss://api.huobi.pro/ws), which gzip-compresses every frame — both
// pushed data and the ping/pong keepalive — the way huobi.rs decodes
// with flate2::read::GzDecoder before touching JSON.
type HuobiAdapter struct {
	*baseAdapter
}

const huobiBaseURL = "wss://api.huobi.pro/ws"

func NewHuobiAdapter() *HuobiAdapter {
	a := &HuobiAdapter{baseAdapter: newBaseAdapter("huobi", huobiBaseURL)}
	a.handleRaw = a.onMessage
	return a
}

func (a *HuobiAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *HuobiAdapter) Disconnect() error                 { return a.disconnect() }

// huobiNormalizeSymbol lowercases the symbol and removes hyphens; the
// quote asset stays attached, so "BTC-USDT" becomes "btcusdt".
func huobiNormalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.ReplaceAll(symbol, "-", ""))
	for _, suffix := range []string{"usdt", "usdc", "husd", "usd", "btc", "eth"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return s
		}
	}
	return s
}

func huobiTopic(symbol, channel string) string {
	norm := huobiNormalizeSymbol(symbol)
	switch channel {
	case "ticker":
		return "market." + norm + ".detail"
	case "trades":
		return "market." + norm + ".trade.detail"
	case "depth":
		return "market." + norm + ".depth.step0"
	case "candles_1m":
		return "market." + norm + ".kline.1min"
	default:
		return "market." + norm + "." + channel
	}
}

func (a *HuobiAdapter) Subscribe(symbol string, channels []string) error {
	for _, ch := range channels {
		if err := a.writeJSON(map[string]interface{}{"sub": huobiTopic(symbol, ch), "id": "sub1"}); err != nil {
			return err
		}
	}
	return nil
}

func (a *HuobiAdapter) Unsubscribe(symbol string, channels []string) error {
	for _, ch := range channels {
		if err := a.writeJSON(map[string]interface{}{"unsub": huobiTopic(symbol, ch), "id": "unsub1"}); err != nil {
			return err
		}
	}
	return nil
}

func huobiGunzip(raw []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

type huobiPingMsg struct {
	Ping int64 `json:"ping"`
}

type huobiEnvelope struct {
	Ch   string          `json:"ch"`
	Tick json.RawMessage `json:"tick"`
	Ts   int64           `json:"ts"`
}

func (a *HuobiAdapter) onMessage(raw []byte) {
	plain, err := huobiGunzip(raw)
	if err != nil {
		return
	}

	var ping huobiPingMsg
	if json.Unmarshal(plain, &ping) == nil && ping.Ping != 0 {
		_ = a.writeJSON(map[string]int64{"pong": ping.Ping})
		return
	}

	var env huobiEnvelope
	if err := json.Unmarshal(plain, &env); err != nil || env.Ch == "" {
		return
	}

	parts := strings.Split(env.Ch, ".")
	if len(parts) < 3 {
		return
	}
	symbol := canonicalizeSymbol(parts[1])

	switch {
	case strings.Contains(env.Ch, ".trade."):
		a.emitTrades(symbol, env.Tick)
	case strings.HasSuffix(env.Ch, ".detail"):
		a.emitTicker(symbol, env.Tick, env.Ts)
	case strings.Contains(env.Ch, ".depth."):
		a.emitDepth(symbol, env.Tick, env.Ts)
	case strings.Contains(env.Ch, ".kline."):
		a.emitCandle(symbol, env.Tick, env.Ts)
	}
}

type huobiTick struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Amount float64 `json:"amount"`
	Bid    []float64 `json:"bid"`
	Ask    []float64 `json:"ask"`
}

func (a *HuobiAdapter) emitTicker(symbol string, raw json.RawMessage, ts int64) {
	var t huobiTick
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	tk := &types.Ticker{
		Provider:    a.ProviderName(),
		Symbol:      symbol,
		Price:       t.Close,
		Open:        t.Open,
		High:        t.High,
		Low:         t.Low,
		Volume:      t.Amount,
		TimestampMs: ts,
	}
	if len(t.Bid) >= 2 {
		tk.Bid, tk.BidSize = t.Bid[0], t.Bid[1]
	}
	if len(t.Ask) >= 2 {
		tk.Ask, tk.AskSize = t.Ask[0], t.Ask[1]
	}
	a.emit(types.MarketMessage{Kind: types.KindTicker, Ticker: tk})
}

type huobiTradeTick struct {
	Data []struct {
		Price     float64 `json:"price"`
		Amount    float64 `json:"amount"`
		Direction string  `json:"direction"`
		TradeId   int64   `json:"tradeId"`
		Ts        int64   `json:"ts"`
	} `json:"data"`
}

func (a *HuobiAdapter) emitTrades(symbol string, raw json.RawMessage) {
	var t huobiTradeTick
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	for _, d := range t.Data {
		side := types.TradeSideBuy
		if d.Direction == "sell" {
			side = types.TradeSideSell
		}
		a.emit(types.MarketMessage{
			Kind: types.KindTrade,
			Trade: &types.Trade{
				Provider:    a.ProviderName(),
				Symbol:      symbol,
				Price:       d.Price,
				Quantity:    d.Amount,
				Side:        side,
				TimestampMs: d.Ts,
			},
		})
	}
}

type huobiDepthTick struct {
	Bids [][]float64 `json:"bids"`
	Asks [][]float64 `json:"asks"`
}

func (a *HuobiAdapter) emitDepth(symbol string, raw json.RawMessage, ts int64) {
	var t huobiDepthTick
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindOrderBookSnapshot,
		OrderBook: &types.OrderBook{
			Provider:    a.ProviderName(),
			Symbol:      symbol,
			Bids:        huobiLevels(t.Bids),
			Asks:        huobiLevels(t.Asks),
			IsSnapshot:  true,
			TimestampMs: ts,
		},
	})
}

func huobiLevels(rows [][]float64) []types.OrderBookLevel {
	out := make([]types.OrderBookLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out = append(out, types.OrderBookLevel{Price: r[0], Quantity: r[1]})
	}
	return out
}

type huobiKlineTick struct {
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Amount float64 `json:"amount"`
}

func (a *HuobiAdapter) emitCandle(symbol string, raw json.RawMessage, ts int64) {
	var t huobiKlineTick
	if err := json.Unmarshal(raw, &t); err != nil {
		return
	}
	a.emit(types.MarketMessage{
		Kind: types.KindCandle,
		Candle: &types.Candle{
			Provider:    a.ProviderName(),
			Symbol:      symbol,
			Interval:    "1m",
			Open:        t.Open,
			High:        t.High,
			Low:         t.Low,
			Close:       t.Close,
			Volume:      t.Amount,
			TimestampMs: ts,
		},
	})
}
