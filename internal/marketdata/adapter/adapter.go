// Package adapter implements the per-venue Provider Adapter of spec
// §4.5: one WebSocket client per venue, normalizing its wire messages
// into internal/marketdata/types.MarketMessage. Polymorphism is a single
// Adapter interface with no shared base class beyond plain composition
// (spec §9: "single Adapter interface, no inheritance") — baseAdapter is
// embedded for its connection plumbing, not subclassed.
package adapter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/vantage-exchange/vantage/internal/marketdata/types"
)

// Adapter is the contract every venue implementation satisfies (spec
// §4.5).
type Adapter interface {
	Connect(ctx context.Context) error
	Subscribe(symbol string, channels []string) error
	Unsubscribe(symbol string, channels []string) error
	Disconnect() error
	SetMessageCallback(cb func(types.MarketMessage))
	IsConnected() bool
	ProviderName() string
}

// baseAdapter is the shared dial/read-loop/write plumbing every venue
// adapter embeds. It never interprets venue wire formats — that is each
// concrete adapter's handleRaw.
//
// IsConnected reads an atomic.Bool, never a lock or a channel: spec §9's
// Open Question flags the original source's is_connected() as a
// blocking-read-disguised-as-a-getter defect, and the fix is to never let
// connection state live anywhere but a lock-free flag.
type baseAdapter struct {
	name string
	url  string

	connMu sync.Mutex
	conn   *websocket.Conn

	connected atomic.Bool

	cbMu     sync.Mutex
	callback func(types.MarketMessage)

	handleRaw func(raw []byte) // set by the concrete adapter's constructor

	t *tomb.Tomb
}

func newBaseAdapter(name, url string) *baseAdapter {
	return &baseAdapter{name: name, url: url}
}

func (a *baseAdapter) ProviderName() string { return a.name }

func (a *baseAdapter) IsConnected() bool { return a.connected.Load() }

func (a *baseAdapter) SetMessageCallback(cb func(types.MarketMessage)) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.callback = cb
}

func (a *baseAdapter) emit(msg types.MarketMessage) {
	a.cbMu.Lock()
	cb := a.callback
	a.cbMu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

// emitStatus publishes a Status message on the same callback every other
// canonical message flows through (spec §4.5's error propagation
// obligation): the Connection Manager watches this stream for
// Disconnected/Error to schedule a reconnect, rather than the Adapter
// interface carrying a second, separate error callback.
func (a *baseAdapter) emitStatus(status types.ConnStatus, message string) {
	a.emit(types.MarketMessage{
		Kind: types.KindStatus,
		Status: &types.Status{
			Provider:    a.name,
			Status:      status,
			Message:     message,
			TimestampMs: time.Now().UnixMilli(),
		},
	})
}

// connect dials the venue URL and starts the supervised read loop. Each
// concrete adapter's Connect calls this once handleRaw is wired up.
func (a *baseAdapter) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.url, nil)
	if err != nil {
		return err
	}
	a.connMu.Lock()
	a.conn = conn
	a.connMu.Unlock()
	a.connected.Store(true)

	a.t = &tomb.Tomb{}
	a.t.Go(func() error { return a.readLoop() })
	a.emitStatus(types.StatusConnected, "")
	return nil
}

func (a *baseAdapter) readLoop() error {
	for {
		select {
		case <-a.t.Dying():
			return nil
		default:
		}
		a.connMu.Lock()
		conn := a.conn
		a.connMu.Unlock()
		if conn == nil {
			return nil
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.connected.Store(false)
			log.Warn().Str("provider", a.name).Err(err).Msg("market data read loop ended")
			a.emitStatus(types.StatusError, err.Error())
			return err
		}
		if a.handleRaw != nil {
			a.handleRaw(data)
		}
	}
}

func (a *baseAdapter) writeJSON(v interface{}) error {
	a.connMu.Lock()
	defer a.connMu.Unlock()
	if a.conn == nil {
		return errNotConnected
	}
	return a.conn.WriteJSON(v)
}

func (a *baseAdapter) disconnect() error {
	a.connected.Store(false)
	a.connMu.Lock()
	conn := a.conn
	a.conn = nil
	a.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
		a.emitStatus(types.StatusDisconnected, "")
	}
	if a.t != nil {
		a.t.Kill(nil)
		_ = a.t.Wait()
	}
	return nil
}
