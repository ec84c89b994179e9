// Package manager implements the Connection Manager of spec §4.6: it
// owns one Adapter per configured provider, tracks subscriptions so a
// reconnect can replay them in order, and exports per-provider health
// metrics. Grounded on the teacher's net.Server connection bookkeeping
// style (mutex-guarded maps, no channel-per-connection actor) and on
// exchanges.Manager's provider-registry shape from the pack.
package manager

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/marketdata/adapter"
	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// subscription is one (symbol, channels) pair registered against a
// provider, kept so Reconnect can replay it in the order it was made.
type subscription struct {
	symbol   string
	channels []string
}

type providerState struct {
	adapter adapter.Adapter
	cfg     common.ProviderConfig

	mu               sync.Mutex
	subs             []subscription
	connecting       bool
	autoReconnecting bool
	reconnectSeq     int64
	lastErr          string
	lastMessageAt    int64
	messagesReceived int64
	connectedAtMs    int64
}

// Manager is the Connection Manager of spec §4.6.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]*providerState
	onMessage func(types.MarketMessage)

	metricsConnected *prometheus.GaugeVec
	metricsRecon     *prometheus.GaugeVec
}

// NewManager constructs a Manager. onMessage is the single fan-out sink
// every provider's normalized messages flow through — typically the
// Message Router's Ingest.
func NewManager(onMessage func(types.MarketMessage)) *Manager {
	return &Manager{
		providers: make(map[string]*providerState),
		onMessage: onMessage,
		metricsConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vantage_marketdata_provider_connected",
			Help: "1 if the provider adapter's connection is currently up.",
		}, []string{"provider"}),
		metricsRecon: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vantage_marketdata_provider_reconnects_total",
			Help: "Count of reconnects attempted for a provider.",
		}, []string{"provider"}),
	}
}

// Collectors exposes the Manager's Prometheus collectors for registration.
func (m *Manager) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.metricsConnected, m.metricsRecon}
}

// SetConfig registers the given Adapter under cfg.Name and wires the
// Manager's onMessage callback into it. Calling SetConfig again for the
// same name replaces the provider's state, its subscription registry
// included; the previous adapter is not disconnected.
func (m *Manager) SetConfig(cfg common.ProviderConfig, a adapter.Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := cfg.Name
	a.SetMessageCallback(func(msg types.MarketMessage) {
		m.mu.RLock()
		ps, ok := m.providers[name]
		m.mu.RUnlock()
		if ok {
			ps.mu.Lock()
			ps.lastMessageAt = time.Now().UnixMilli()
			ps.messagesReceived++
			ps.mu.Unlock()
			if msg.Kind == types.KindStatus && msg.Status != nil {
				m.handleStatus(name, ps, msg.Status)
			}
		}
		if m.onMessage != nil {
			m.onMessage(msg)
		}
	})
	m.providers[cfg.Name] = &providerState{adapter: a, cfg: cfg}
}

// handleStatus reacts to a Status message emitted on the adapter's own
// callback (spec §4.5's error propagation obligation: the adapter never
// calls the manager directly, it just emits Status alongside its other
// canonical messages). Connected records connectedAtMs; Disconnected or
// Error schedules a single backoff-reconnect attempt, matching scenario
// S6's "manager backoff-reconnects" after a socket drop.
func (m *Manager) handleStatus(name string, ps *providerState, status *types.Status) {
	switch status.Status {
	case types.StatusConnected:
		ps.mu.Lock()
		ps.connectedAtMs = status.TimestampMs
		ps.mu.Unlock()
	case types.StatusDisconnected, types.StatusError:
		ps.mu.Lock()
		if ps.autoReconnecting {
			ps.mu.Unlock()
			return
		}
		ps.autoReconnecting = true
		ps.mu.Unlock()
		go func() {
			defer func() {
				ps.mu.Lock()
				ps.autoReconnecting = false
				ps.mu.Unlock()
			}()
			if err := m.Reconnect(context.Background(), name); err != nil {
				log.Warn().Str("provider", name).Err(err).Msg("automatic reconnect after disconnect failed")
			}
		}()
	}
}

// Connect dials the named provider, bounding the dial with a 30s
// deadline, if it isn't already connected or mid-connect — a single
// in-flight sentinel per provider, the same idempotent-connect guarantee
// the original source's is_connected/connecting pair gives, held here as
// a mutex-guarded connecting flag.
func (m *Manager) Connect(ctx context.Context, provider string) error {
	ps, err := m.provider(provider)
	if err != nil {
		return err
	}
	if ps.adapter.IsConnected() {
		return nil
	}
	ps.mu.Lock()
	if ps.connecting {
		ps.mu.Unlock()
		return nil
	}
	ps.connecting = true
	ps.mu.Unlock()

	defer func() {
		ps.mu.Lock()
		ps.connecting = false
		ps.mu.Unlock()
	}()

	if !ps.cfg.Enabled {
		return fmt.Errorf("marketdata: provider %s is disabled", provider)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := ps.adapter.Connect(ctx); err != nil {
		ps.mu.Lock()
		ps.lastErr = err.Error()
		ps.mu.Unlock()
		return err
	}
	m.metricsConnected.WithLabelValues(provider).Set(1)
	log.Info().Str("provider", provider).Msg("marketdata provider connected")
	return nil
}

func (m *Manager) Disconnect(provider string) error {
	ps, err := m.provider(provider)
	if err != nil {
		return err
	}
	m.metricsConnected.WithLabelValues(provider).Set(0)
	// The adapter reports the closed socket as Disconnected/Error status
	// before Disconnect returns; holding autoReconnecting meanwhile keeps
	// handleStatus from treating this deliberate close as a dropped link.
	ps.mu.Lock()
	prev := ps.autoReconnecting
	ps.autoReconnecting = true
	ps.mu.Unlock()
	err = ps.adapter.Disconnect()
	ps.mu.Lock()
	ps.autoReconnecting = prev
	ps.mu.Unlock()
	return err
}

// Subscribe registers and issues a subscription, recording it for replay
// on reconnect.
func (m *Manager) Subscribe(symbol string, channels []string, provider string) error {
	ps, err := m.provider(provider)
	if err != nil {
		return err
	}
	ps.mu.Lock()
	ps.subs = append(ps.subs, subscription{symbol: symbol, channels: channels})
	ps.mu.Unlock()
	return ps.adapter.Subscribe(symbol, channels)
}

// Unsubscribe removes only the named channels from symbol's registry
// entry, leaving any other channel still subscribed for that symbol
// alone (spec §4.6's registry is symbol -> set-of-channels, not a single
// all-or-nothing entry per symbol).
func (m *Manager) Unsubscribe(symbol string, channels []string, provider string) error {
	ps, err := m.provider(provider)
	if err != nil {
		return err
	}
	remove := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		remove[ch] = struct{}{}
	}
	ps.mu.Lock()
	kept := ps.subs[:0]
	for _, s := range ps.subs {
		if s.symbol != symbol {
			kept = append(kept, s)
			continue
		}
		remainingChannels := s.channels[:0]
		for _, ch := range s.channels {
			if _, drop := remove[ch]; !drop {
				remainingChannels = append(remainingChannels, ch)
			}
		}
		if len(remainingChannels) > 0 {
			s.channels = remainingChannels
			kept = append(kept, s)
		}
	}
	ps.subs = kept
	ps.mu.Unlock()
	return ps.adapter.Unsubscribe(symbol, channels)
}

// Reconnect snapshots the provider's subscriptions, tears the connection
// down, backs off per common.ReconnectPolicy, reconnects, and replays
// every subscription in its original order (spec scenario S6).
func (m *Manager) Reconnect(ctx context.Context, provider string) error {
	ps, err := m.provider(provider)
	if err != nil {
		return err
	}
	policy := ps.cfg.Reconnect
	if policy == (common.ReconnectPolicy{}) {
		policy = common.DefaultReconnectPolicy()
	}

	ps.mu.Lock()
	subsSnapshot := make([]subscription, len(ps.subs))
	copy(subsSnapshot, ps.subs)
	ps.subs = nil
	ps.mu.Unlock()

	_ = ps.adapter.Disconnect()
	m.metricsConnected.WithLabelValues(provider).Set(0)

	backoff := policy.InitialMs
	var lastErr error
	for attempt := 1; policy.MaxAttempts <= 0 || attempt <= policy.MaxAttempts; attempt++ {
		ps.mu.Lock()
		ps.reconnectSeq++
		ps.mu.Unlock()
		m.metricsRecon.WithLabelValues(provider).Inc()

		jitter := 1.0 + (rand.Float64()*2-1)*policy.JitterPct
		wait := time.Duration(float64(backoff)*jitter) * time.Millisecond

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		if err := ps.adapter.Connect(ctx); err != nil {
			lastErr = err
			backoff = int64(float64(backoff) * policy.Multiplier)
			if policy.CapMs > 0 && backoff > policy.CapMs {
				backoff = policy.CapMs
			}
			continue
		}

		m.metricsConnected.WithLabelValues(provider).Set(1)
		for _, s := range subsSnapshot {
			if err := ps.adapter.Subscribe(s.symbol, s.channels); err != nil {
				log.Warn().Str("provider", provider).Str("symbol", s.symbol).Err(err).Msg("resubscribe failed during reconnect replay")
				continue
			}
			ps.mu.Lock()
			ps.subs = append(ps.subs, s)
			ps.mu.Unlock()
		}
		return nil
	}
	return fmt.Errorf("marketdata: reconnect to %s exhausted attempts: %w", provider, lastErr)
}

// GetMetrics returns the live health snapshot for one provider.
func (m *Manager) GetMetrics(provider string) (types.ConnectionMetrics, error) {
	ps, err := m.provider(provider)
	if err != nil {
		return types.ConnectionMetrics{}, err
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	status := types.StatusDisconnected
	if ps.adapter.IsConnected() {
		status = types.StatusConnected
	} else if ps.lastErr != "" {
		status = types.StatusError
	}
	return types.ConnectionMetrics{
		Provider:          provider,
		Status:            status,
		ConnectedAtMs:     ps.connectedAtMs,
		MessagesReceived:  ps.messagesReceived,
		ReconnectCount:    ps.reconnectSeq,
		LastMessageAtMs:   ps.lastMessageAt,
		SubscriptionCount: len(ps.subs),
		LastError:         ps.lastErr,
	}, nil
}

// GetAllMetrics returns a snapshot for every registered provider.
func (m *Manager) GetAllMetrics() []types.ConnectionMetrics {
	m.mu.RLock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make([]types.ConnectionMetrics, 0, len(names))
	for _, name := range names {
		if snap, err := m.GetMetrics(name); err == nil {
			out = append(out, snap)
		}
	}
	return out
}

// CleanupIdle disconnects any provider with zero subscriptions whose last
// message is older than maxIdle (spec §4.6) — a provider still carrying
// subscriptions is left alone even if quiet, since a quiet venue can mean
// a thin market rather than a dead connection.
func (m *Manager) CleanupIdle(maxIdle time.Duration) {
	m.mu.RLock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	m.mu.RUnlock()

	now := time.Now().UnixMilli()
	for _, name := range names {
		ps, err := m.provider(name)
		if err != nil {
			continue
		}
		ps.mu.Lock()
		last := ps.lastMessageAt
		subCount := len(ps.subs)
		ps.mu.Unlock()
		if subCount != 0 || last == 0 || !ps.adapter.IsConnected() {
			continue
		}
		if now-last > maxIdle.Milliseconds() {
			log.Warn().Str("provider", name).Msg("marketdata provider idle with no subscriptions, disconnecting")
			_ = m.Disconnect(name)
		}
	}
}

func (m *Manager) provider(name string) (*providerState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("marketdata: unknown provider %q", name)
	}
	return ps, nil
}
