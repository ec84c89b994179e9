package adapter

import (
	"context"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// GenericConfig describes a venue not named in the fixed roster well
// enough to drive a configurable adapter (spec §4.5's escape hatch):
// just a URL, a subscribe-frame template, and field paths for the two
// message kinds operators most commonly want from an arbitrary venue,
// trades and top-of-book.
type GenericConfig struct {
	Name string
	URL  string

	// BuildSubscribe returns the exact frame to send on Subscribe; the
	// caller owns the venue-specific shape since there is no common one.
	BuildSubscribe func(symbol string, channels []string) interface{}

	// ParseTrade and ParseTicker attempt to extract a canonical message
	// from one raw frame; returning ok=false means "not this kind",
	// letting GenericAdapter try the next parser.
	ParseTrade  func(raw []byte) (types.Trade, bool)
	ParseTicker func(raw []byte) (types.Ticker, bool)
}

// GenericAdapter satisfies Adapter for a venue whose wire format is
// supplied entirely through GenericConfig's callbacks, rather than a
// bespoke Go type — for operators who need to plug in a venue the fixed
// roster doesn't name yet.
type GenericAdapter struct {
	*baseAdapter
	cfg GenericConfig
}

func NewGenericAdapter(cfg GenericConfig) *GenericAdapter {
	a := &GenericAdapter{baseAdapter: newBaseAdapter(cfg.Name, cfg.URL), cfg: cfg}
	a.handleRaw = a.onMessage
	return a
}

func (a *GenericAdapter) Connect(ctx context.Context) error { return a.connect(ctx) }
func (a *GenericAdapter) Disconnect() error                 { return a.disconnect() }

func (a *GenericAdapter) Subscribe(symbol string, channels []string) error {
	if a.cfg.BuildSubscribe == nil {
		return nil
	}
	return a.writeJSON(a.cfg.BuildSubscribe(symbol, channels))
}

func (a *GenericAdapter) Unsubscribe(symbol string, channels []string) error {
	return nil
}

func (a *GenericAdapter) onMessage(raw []byte) {
	if a.cfg.ParseTrade != nil {
		if t, ok := a.cfg.ParseTrade(raw); ok {
			t.Provider = a.ProviderName()
			a.emit(types.MarketMessage{Kind: types.KindTrade, Trade: &t})
			return
		}
	}
	if a.cfg.ParseTicker != nil {
		if tk, ok := a.cfg.ParseTicker(raw); ok {
			tk.Provider = a.ProviderName()
			a.emit(types.MarketMessage{Kind: types.KindTicker, Ticker: &tk})
		}
	}
}
