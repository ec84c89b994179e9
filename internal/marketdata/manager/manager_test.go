package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// fakeAdapter is a minimal in-test adapter.Adapter double. connectErr lets
// a test force a failed dial so Reconnect's backoff loop has something to
// retry past.
type fakeAdapter struct {
	name string

	mu          sync.Mutex
	connected   bool
	connectErr  error
	connectCall int
	subs        []subscription
	cb          func(types.MarketMessage)
}

func (f *fakeAdapter) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCall++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeAdapter) Subscribe(symbol string, channels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, subscription{symbol: symbol, channels: channels})
	return nil
}

func (f *fakeAdapter) Unsubscribe(symbol string, channels []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.subs[:0]
	for _, s := range f.subs {
		if s.symbol != symbol {
			kept = append(kept, s)
		}
	}
	f.subs = kept
	return nil
}

func (f *fakeAdapter) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeAdapter) SetMessageCallback(cb func(types.MarketMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
}

func (f *fakeAdapter) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeAdapter) ProviderName() string { return f.name }

func (f *fakeAdapter) subsSnapshot() []subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]subscription, len(f.subs))
	copy(out, f.subs)
	return out
}

func testProviderConfig(name string) common.ProviderConfig {
	return common.ProviderConfig{
		Name:    name,
		URL:     "wss://example.invalid/" + name,
		Enabled: true,
		Reconnect: common.ReconnectPolicy{
			InitialMs:   1,
			CapMs:       5,
			Multiplier:  2,
			JitterPct:   0,
			MaxAttempts: 3,
		},
	}
}

func TestConnect_IsIdempotentOnceConnected(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "binance"}
	m.SetConfig(testProviderConfig("binance"), fa)

	require.NoError(t, m.Connect(context.Background(), "binance"))
	require.NoError(t, m.Connect(context.Background(), "binance"))

	assert.Equal(t, 1, fa.connectCall, "second Connect on an already-connected provider must not redial")
}

func TestConnect_RejectsDisabledProvider(t *testing.T) {
	m := NewManager(nil)
	cfg := testProviderConfig("kraken")
	cfg.Enabled = false
	fa := &fakeAdapter{name: "kraken"}
	m.SetConfig(cfg, fa)

	err := m.Connect(context.Background(), "kraken")
	assert.Error(t, err)
	assert.Equal(t, 0, fa.connectCall)
}

func TestSubscribe_RegistersForReplay(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "okx"}
	m.SetConfig(testProviderConfig("okx"), fa)
	require.NoError(t, m.Connect(context.Background(), "okx"))

	require.NoError(t, m.Subscribe("BTC/USDT", []string{"ticker"}, "okx"))
	require.NoError(t, m.Subscribe("ETH/USDT", []string{"trade"}, "okx"))

	metrics, err := m.GetMetrics("okx")
	require.NoError(t, err)
	assert.Equal(t, 2, metrics.SubscriptionCount)

	require.NoError(t, m.Unsubscribe("BTC/USDT", []string{"ticker"}, "okx"))
	metrics, err = m.GetMetrics("okx")
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.SubscriptionCount)
}

func TestReconnect_ReplaysSubscriptionsInOriginalOrder(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "bybit"}
	m.SetConfig(testProviderConfig("bybit"), fa)
	require.NoError(t, m.Connect(context.Background(), "bybit"))
	require.NoError(t, m.Subscribe("BTC/USDT", []string{"ticker"}, "bybit"))
	require.NoError(t, m.Subscribe("ETH/USDT", []string{"trade"}, "bybit"))

	require.NoError(t, m.Reconnect(context.Background(), "bybit"))

	replayed := fa.subsSnapshot()
	require.Len(t, replayed, 2)
	assert.Equal(t, "BTC/USDT", replayed[0].symbol)
	assert.Equal(t, "ETH/USDT", replayed[1].symbol)

	metrics, err := m.GetMetrics("bybit")
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.ReconnectCount)
	assert.Equal(t, 2, metrics.SubscriptionCount)
}

func TestReconnect_RetriesPastATransientFailure(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "bitget", connectErr: assert.AnError}
	m.SetConfig(testProviderConfig("bitget"), fa)

	// First dial succeeds so there is a live connection to tear down.
	fa.connectErr = nil
	require.NoError(t, m.Connect(context.Background(), "bitget"))

	// The first reconnect attempt fails, the second succeeds.
	attempts := 0
	fa.mu.Lock()
	fa.connectErr = assert.AnError
	fa.mu.Unlock()
	go func() {
		time.Sleep(3 * time.Millisecond)
		fa.mu.Lock()
		fa.connectErr = nil
		fa.mu.Unlock()
	}()
	err := m.Reconnect(context.Background(), "bitget")
	_ = attempts
	require.NoError(t, err)
	assert.True(t, fa.connectCall >= 2, "expected at least one failed attempt before success")
}

func TestCleanupIdle_LeavesProvidersWithSubscriptionsAlone(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "gate"}
	m.SetConfig(testProviderConfig("gate"), fa)
	require.NoError(t, m.Connect(context.Background(), "gate"))
	require.NoError(t, m.Subscribe("BTC/USDT", []string{"ticker"}, "gate"))

	// Simulate a long-quiet provider that still carries a live subscription.
	m.mu.RLock()
	ps := m.providers["gate"]
	m.mu.RUnlock()
	ps.mu.Lock()
	ps.lastMessageAt = time.Now().Add(-time.Hour).UnixMilli()
	ps.mu.Unlock()

	m.CleanupIdle(time.Millisecond)

	assert.True(t, fa.IsConnected(), "a provider with an active subscription must not be disconnected for being idle")
}

func TestCleanupIdle_DisconnectsAnUnsubscribedIdleProvider(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "kucoin"}
	m.SetConfig(testProviderConfig("kucoin"), fa)
	require.NoError(t, m.Connect(context.Background(), "kucoin"))

	m.mu.RLock()
	ps := m.providers["kucoin"]
	m.mu.RUnlock()
	ps.mu.Lock()
	ps.lastMessageAt = time.Now().Add(-time.Hour).UnixMilli()
	ps.mu.Unlock()

	m.CleanupIdle(time.Millisecond)

	assert.False(t, fa.IsConnected(), "an idle provider with zero subscriptions should be disconnected")
}

func TestHandleStatus_DisconnectTriggersExactlyOneConcurrentReconnect(t *testing.T) {
	m := NewManager(nil)
	fa := &fakeAdapter{name: "mexc"}
	m.SetConfig(testProviderConfig("mexc"), fa)
	require.NoError(t, m.Connect(context.Background(), "mexc"))

	m.mu.RLock()
	ps := m.providers["mexc"]
	m.mu.RUnlock()

	m.handleStatus("mexc", ps, &types.Status{Status: types.StatusDisconnected})
	m.handleStatus("mexc", ps, &types.Status{Status: types.StatusDisconnected})

	require.Eventually(t, func() bool {
		ps.mu.Lock()
		defer ps.mu.Unlock()
		return !ps.autoReconnecting
	}, time.Second, time.Millisecond)

	metrics, err := m.GetMetrics("mexc")
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.ReconnectCount, "second Disconnected status while a reconnect is in flight must be ignored")
}
