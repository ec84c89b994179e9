package adapter

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// OKXAdapter speaks OKX's v5 public WebSocket API
// (wss://ws.okx.com:8443/ws/v5/public), which wraps every push in an
// {"arg": {...}, "data": [...]} envelope keyed by arg.channel.
type OKXAdapter struct {
	*baseAdapter
}

const okxBaseURL = "wss://ws.okx.com:8443/ws/v5/public"

func NewOKXAdapter() *OKXAdapter {
	a := &OKXAdapter{baseAdapter: newBaseAdapter("okx", okxBaseURL)}
	a.handleRaw = a.onMessage
	return a
}

func (a *OKXAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *OKXAdapter) Disconnect() error                 { return a.disconnect() }

func okxNormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", "-"))
}

func okxChannelName(channel string) string {
	switch channel {
	case "ticker":
		return "tickers"
	case "trades":
		return "trades"
	case "depth":
		return "books"
	case "candles_1m":
		return "candle1m"
	default:
		return channel
	}
}

func (a *OKXAdapter) Subscribe(symbol string, channels []string) error {
	args := make([]map[string]string, 0, len(channels))
	for _, ch := range channels {
		args = append(args, map[string]string{"channel": okxChannelName(ch), "instId": okxNormalizeSymbol(symbol)})
	}
	return a.writeJSON(map[string]interface{}{"op": "subscribe", "args": args})
}

func (a *OKXAdapter) Unsubscribe(symbol string, channels []string) error {
	args := make([]map[string]string, 0, len(channels))
	for _, ch := range channels {
		args = append(args, map[string]string{"channel": okxChannelName(ch), "instId": okxNormalizeSymbol(symbol)})
	}
	return a.writeJSON(map[string]interface{}{"op": "unsubscribe", "args": args})
}

type okxArg struct {
	Channel string `json:"channel"`
	InstId  string `json:"instId"`
}

type okxEnvelope struct {
	Arg  okxArg          `json:"arg"`
	Data json.RawMessage `json:"data"`
}

func (a *OKXAdapter) onMessage(raw []byte) {
	var env okxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Arg.Channel == "" {
		return
	}
	switch env.Arg.Channel {
	case "tickers":
		a.emitTicker(env.Data)
	case "trades":
		a.emitTrades(env.Data)
	case "books", "books5":
		a.emitBook(env.Data, env.Arg.InstId)
	case "candle1m":
		a.emitCandles(env.Data, env.Arg.InstId)
	}
}

type okxTickerRow struct {
	InstId  string `json:"instId"`
	Last    string `json:"last"`
	BidPx   string `json:"bidPx"`
	BidSz   string `json:"bidSz"`
	AskPx   string `json:"askPx"`
	AskSz   string `json:"askSz"`
	Vol24h  string `json:"vol24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
	Open24h string `json:"open24h"`
	Ts      string `json:"ts"`
}

func (a *OKXAdapter) emitTicker(data json.RawMessage) {
	var rows []okxTickerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, t := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindTicker,
			Ticker: &types.Ticker{
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(t.InstId),
				Price:       parseFloat(t.Last),
				Bid:         parseFloat(t.BidPx),
				Ask:         parseFloat(t.AskPx),
				BidSize:     parseFloat(t.BidSz),
				AskSize:     parseFloat(t.AskSz),
				Volume:      parseFloat(t.Vol24h),
				High:        parseFloat(t.High24h),
				Low:         parseFloat(t.Low24h),
				Open:        parseFloat(t.Open24h),
				TimestampMs: parseInt(t.Ts),
			},
		})
	}
}

type okxTradeRow struct {
	InstId  string `json:"instId"`
	TradeId string `json:"tradeId"`
	Px      string `json:"px"`
	Sz      string `json:"sz"`
	Side    string `json:"side"`
	Ts      string `json:"ts"`
}

func (a *OKXAdapter) emitTrades(data json.RawMessage) {
	var rows []okxTradeRow
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
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(t.InstId),
				TradeId:     t.TradeId,
				Price:       parseFloat(t.Px),
				Quantity:    parseFloat(t.Sz),
				Side:        side,
				TimestampMs: parseInt(t.Ts),
			},
		})
	}
}

type okxBookRow struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

func (a *OKXAdapter) emitBook(data json.RawMessage, instId string) {
	var rows []okxBookRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, row := range rows {
		a.emit(types.MarketMessage{
			Kind: types.KindOrderBookSnapshot,
			OrderBook: &types.OrderBook{
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(instId),
				Bids:        binanceLevels(row.Bids),
				Asks:        binanceLevels(row.Asks),
				IsSnapshot:  true,
				TimestampMs: parseInt(row.Ts),
			},
		})
	}
}

type okxCandleRow []string // [ts, o, h, l, c, vol, ...]

func (a *OKXAdapter) emitCandles(data json.RawMessage, instId string) {
	var rows []okxCandleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return
	}
	for _, c := range rows {
		if len(c) < 6 {
			continue
		}
		a.emit(types.MarketMessage{
			Kind: types.KindCandle,
			Candle: &types.Candle{
				Provider:    a.ProviderName(),
				Symbol:      canonicalizeSymbol(instId),
				Interval:    "1m",
				Open:        parseFloat(c[1]),
				High:        parseFloat(c[2]),
				Low:         parseFloat(c[3]),
				Close:       parseFloat(c[4]),
				Volume:      parseFloat(c[5]),
				TimestampMs: parseInt(c[0]),
			},
		})
	}
}

func parseInt(s string) int64 {
	v := int64(0)
	for _, r := range s {
		if r < '0' || r > '9' {
			return v
		}
		v = v*10 + int64(r-'0')
	}
	return v
}
