package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

func tickerMsg(provider, symbol string) types.MarketMessage {
	return types.MarketMessage{
		Kind:   types.KindTicker,
		Ticker: &types.Ticker{Provider: provider, Symbol: symbol, Price: 100},
	}
}

func TestIngest_DispatchesOnlyToMatchingConsumers(t *testing.T) {
	r := NewRouter()

	tickers, unsubT := r.Subscribe(ByKind(types.KindTicker), 4)
	defer unsubT()
	trades, unsubTr := r.Subscribe(ByKind(types.KindTrade), 4)
	defer unsubTr()

	r.Ingest(tickerMsg("binance", "BTC/USDT"))

	select {
	case msg := <-tickers:
		assert.Equal(t, "binance", msg.Ticker.Provider)
	case <-time.After(time.Second):
		t.Fatal("expected ticker consumer to receive the message")
	}

	select {
	case <-trades:
		t.Fatal("trade consumer should not receive a ticker message")
	default:
	}
}

func TestByProviderAndSymbol_MatchesExactPairOnly(t *testing.T) {
	r := NewRouter()
	ch, unsub := r.Subscribe(ByProviderAndSymbol("binance", "BTC/USDT"), 4)
	defer unsub()

	r.Ingest(tickerMsg("binance", "ETH/USDT"))
	r.Ingest(tickerMsg("kraken", "BTC/USDT"))
	r.Ingest(tickerMsg("binance", "BTC/USDT"))

	select {
	case msg := <-ch:
		assert.Equal(t, "BTC/USDT", msg.Ticker.Symbol)
		assert.Equal(t, "binance", msg.Ticker.Provider)
	case <-time.After(time.Second):
		t.Fatal("expected exactly one matching message")
	}
	select {
	case <-ch:
		t.Fatal("no further messages should match")
	default:
	}
}

func TestIngest_OverflowDropsOldestAndCountsDrop(t *testing.T) {
	r := NewRouter()
	ch, unsub := r.Subscribe(ByKind(types.KindTicker), 1)
	defer unsub()

	r.Ingest(tickerMsg("binance", "BTC/USDT"))
	r.Ingest(tickerMsg("binance", "ETH/USDT")) // overflows the size-1 buffer

	msg := <-ch
	assert.Equal(t, "ETH/USDT", msg.Ticker.Symbol, "oldest queued message should have been dropped")

	stats := r.ConsumerStats()
	require.Len(t, stats, 1)
	for _, dropped := range stats {
		assert.Equal(t, int64(1), dropped)
	}
}

func TestUnsubscribe_StopsFurtherDelivery(t *testing.T) {
	r := NewRouter()
	ch, unsub := r.Subscribe(ByKind(types.KindTicker), 4)
	unsub()

	r.Ingest(tickerMsg("binance", "BTC/USDT"))

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}
