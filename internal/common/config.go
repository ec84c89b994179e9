package common

// InstrumentConfig is the per-instrument engine configuration of spec §6.
type InstrumentConfig struct {
	Instrument             InstrumentId
	TickSize               int64
	LotSize                int64
	PriceBandPct           float64 // circuit breaker band, e.g. 0.10 = +-10%
	HaltDurationMs         int64
	OpeningAuctionTime     string // wall-clock "HH:MM" per session
	ClosingAuctionTime     string
	SelfTradePrevention    SelfTradePrevention
	StopTriggerIterationCap int
}

// DefaultStopTriggerIterationCap is spec §6's documented default.
const DefaultStopTriggerIterationCap = 32

// Validate checks the structural requirements spec §9's Open Question
// forces on every instrument: self-trade prevention must be set
// explicitly, there is no ambient default. Pointer receiver because it
// also fills in StopTriggerIterationCap's default — a value receiver
// would silently discard that write on the caller's copy.
func (c *InstrumentConfig) Validate() error {
	if c.SelfTradePrevention == SelfTradePreventionUnset {
		return ErrSelfTradePreventionUnset
	}
	if c.TickSize <= 0 {
		return ErrInvalidTickSize
	}
	if c.LotSize <= 0 {
		return ErrInvalidLotSize
	}
	if c.StopTriggerIterationCap <= 0 {
		c.StopTriggerIterationCap = DefaultStopTriggerIterationCap
	}
	return nil
}

// ReconnectPolicy is spec §6's per-provider reconnect policy.
type ReconnectPolicy struct {
	InitialMs   int64
	CapMs       int64
	Multiplier  float64
	JitterPct   float64
	MaxAttempts int // 0 means unlimited
}

// DefaultReconnectPolicy matches spec §4.6: initial 250ms, cap 30s,
// multiplier 2, jitter +-20%, unlimited attempts.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		InitialMs:   250,
		CapMs:       30_000,
		Multiplier:  2,
		JitterPct:   0.20,
		MaxAttempts: 0,
	}
}

// ProviderConfig is the per-venue market-data configuration of spec §6.
type ProviderConfig struct {
	Name      string
	URL       string
	Enabled   bool
	APIKey    string
	APISecret string
	Reconnect ReconnectPolicy
}
