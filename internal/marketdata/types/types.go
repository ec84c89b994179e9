// Package types defines the canonical, provider-agnostic market-data
// shapes every Provider Adapter normalizes into (spec §6). JSON tags
// mirror the wire shape a consumer (router subscriber, analytics sampler)
// sees regardless of which venue produced the message.
package types

// Kind tags which payload variant a MarketMessage carries.
type Kind int

const (
	KindTicker Kind = iota
	KindOrderBookSnapshot
	KindOrderBookDelta
	KindTrade
	KindCandle
	KindStatus
)

func (k Kind) String() string {
	switch k {
	case KindTicker:
		return "ticker"
	case KindOrderBookSnapshot:
		return "orderbook_snapshot"
	case KindOrderBookDelta:
		return "orderbook_delta"
	case KindTrade:
		return "trade"
	case KindCandle:
		return "candle"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// TradeSide mirrors the aggressor side of a canonical trade print.
type TradeSide int

const (
	TradeSideUnknown TradeSide = iota
	TradeSideBuy
	TradeSideSell
)

// Ticker is a best-bid/ask and/or 24h-stat snapshot (spec §6).
type Ticker struct {
	Provider      string  `json:"provider"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Bid           float64 `json:"bid,omitempty"`
	Ask           float64 `json:"ask,omitempty"`
	BidSize       float64 `json:"bid_size,omitempty"`
	AskSize       float64 `json:"ask_size,omitempty"`
	Volume        float64 `json:"volume,omitempty"`
	High          float64 `json:"high,omitempty"`
	Low           float64 `json:"low,omitempty"`
	Open          float64 `json:"open,omitempty"`
	Close         float64 `json:"close,omitempty"`
	ChangePercent float64 `json:"change_percent,omitempty"`
	TimestampMs   int64   `json:"timestamp_ms"`
}

// OrderBookLevel is one (price, quantity) row of a canonical book update.
type OrderBookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a canonical depth snapshot or incremental delta (spec §6).
// IsSnapshot distinguishes a full replace from an incremental update; a
// zero-quantity level inside a delta means "remove this price".
type OrderBook struct {
	Provider    string           `json:"provider"`
	Symbol      string           `json:"symbol"`
	Bids        []OrderBookLevel `json:"bids"`
	Asks        []OrderBookLevel `json:"asks"`
	IsSnapshot  bool             `json:"is_snapshot"`
	TimestampMs int64            `json:"timestamp_ms"`
}

// Trade is one canonical trade print (spec §6).
type Trade struct {
	Provider    string    `json:"provider"`
	Symbol      string    `json:"symbol"`
	TradeId     string    `json:"trade_id,omitempty"`
	Price       float64   `json:"price"`
	Quantity    float64   `json:"quantity"`
	Side        TradeSide `json:"side"`
	TimestampMs int64     `json:"timestamp_ms"`
}

// Candle is a canonical OHLCV bar (spec §6).
type Candle struct {
	Provider    string  `json:"provider"`
	Symbol      string  `json:"symbol"`
	Interval    string  `json:"interval"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ConnStatus enumerates the connectivity states a Status message reports
// (spec §6: "status ∈ {connected, disconnected, error}").
type ConnStatus int

const (
	StatusConnected ConnStatus = iota
	StatusDisconnected
	StatusError
)

func (s ConnStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Status carries a provider-level connectivity event (e.g. a socket drop,
// a reconnect, or an exchange-pushed maintenance notice), surfaced to
// consumers instead of being silently swallowed (spec §4.5's error
// propagation obligation).
type Status struct {
	Provider    string     `json:"provider"`
	Status      ConnStatus `json:"status"`
	Message     string     `json:"message,omitempty"`
	TimestampMs int64      `json:"timestamp_ms"`
}

// MarketMessage is the single envelope a Provider Adapter's callback
// delivers, selected by Kind — mirrors internal/events.Event's flat,
// single-struct design (one payload field populated per Kind) rather than
// a tagged union of concrete message types.
type MarketMessage struct {
	Kind      Kind
	Ticker    *Ticker
	OrderBook *OrderBook
	Trade     *Trade
	Candle    *Candle
	Status    *Status
}

// ConnectionMetrics is the per-provider health snapshot of spec §3/§6.
type ConnectionMetrics struct {
	Provider          string     `json:"provider"`
	Status            ConnStatus `json:"status"`
	ConnectedAtMs     int64      `json:"connected_at_ms,omitempty"`
	MessagesReceived  int64      `json:"messages_received"`
	ReconnectCount    int64      `json:"reconnect_count"`
	LastMessageAtMs   int64      `json:"last_message_at_ms"`
	SubscriptionCount int        `json:"subscription_count"`
	LastError         string     `json:"last_error,omitempty"`
}
