package common

// Side is the side of an order or trade.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType enumerates the order-type table of spec §4.2.
type OrderType int

const (
	LimitOrder OrderType = iota
	MarketOrder
	StopOrder
	StopLimitOrder
	IcebergOrder
	PegOrder
	HiddenOrder
)

func (t OrderType) String() string {
	switch t {
	case LimitOrder:
		return "limit"
	case MarketOrder:
		return "market"
	case StopOrder:
		return "stop"
	case StopLimitOrder:
		return "stop_limit"
	case IcebergOrder:
		return "iceberg"
	case PegOrder:
		return "peg"
	case HiddenOrder:
		return "hidden"
	default:
		return "unknown"
	}
}

// TimeInForce enumerates §6's configuration surface.
type TimeInForce int

const (
	Day TimeInForce = iota
	IOC
	FOK
	GTC
)

func (tif TimeInForce) String() string {
	switch tif {
	case Day:
		return "day"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	case GTC:
		return "gtc"
	default:
		return "unknown"
	}
}

// OrderStatus is the order lifecycle state, per spec §3.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// PegAnchor selects what a peg order's price is computed from at insert.
type PegAnchor int

const (
	PegBestBid PegAnchor = iota
	PegBestAsk
	PegMid
)

// SelfTradePrevention enumerates the policies of spec §6. There is no
// "ambient default" zero value; SelfTradePreventionUnset must never reach
// the matching core (see matching.Config validation and SPEC_FULL.md's
// Open Question decision).
type SelfTradePrevention int

const (
	SelfTradePreventionUnset SelfTradePrevention = iota
	STPNone
	STPCancelOldest
	STPCancelNewest
	STPCancelBoth
	STPDecrementAndCancel
)

// PhaseState enumerates the Exchange Phase Machine's states (spec §4.3).
type PhaseState int

const (
	PreOpen PhaseState = iota
	OpeningAuction
	Continuous
	ClosingAuction
	PostClose
	Halted
)

func (p PhaseState) String() string {
	switch p {
	case PreOpen:
		return "pre_open"
	case OpeningAuction:
		return "opening_auction"
	case Continuous:
		return "continuous"
	case ClosingAuction:
		return "closing_auction"
	case PostClose:
		return "post_close"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

// ImbalanceSide is the side carrying unmatched auction volume.
type ImbalanceSide int

const (
	ImbalanceNone ImbalanceSide = iota
	ImbalanceBuy
	ImbalanceSell
)
