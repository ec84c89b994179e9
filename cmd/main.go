// Command vantage runs the exchange: one phase machine per configured
// instrument, the analytics recorder consuming their combined event
// stream, the market-data connection manager/router feeding configured
// venue adapters, and the order-entry wire server tying it together —
// adapted from the teacher's cmd/main.go, which wired a single
// engine.Engine straight to a single net.Server.
package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/vantage-exchange/vantage/internal/analytics"
	"github.com/vantage-exchange/vantage/internal/common"
	"github.com/vantage-exchange/vantage/internal/marketdata/adapter"
	"github.com/vantage-exchange/vantage/internal/marketdata/manager"
	"github.com/vantage-exchange/vantage/internal/marketdata/router"
	"github.com/vantage-exchange/vantage/internal/marketdata/types"
	"github.com/vantage-exchange/vantage/internal/phase"
	"github.com/vantage-exchange/vantage/internal/wire"
)

// instrumentConfigs is the fixed instrument roster for this process. A
// production deployment would load this from a config file; spec's
// Non-goals exclude a config-file format, so it's inlined here the way
// the teacher inlines common.Equities.
func instrumentConfigs() []common.InstrumentConfig {
	return []common.InstrumentConfig{
		{
			Instrument:          1,
			TickSize:            1,
			LotSize:             1,
			PriceBandPct:        0.10,
			HaltDurationMs:      60_000,
			OpeningAuctionTime:  "09:30",
			ClosingAuctionTime:  "16:00",
			SelfTradePrevention: common.STPCancelOldest,
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	clock := common.NewMonotonicClock()
	ids := common.NewIdSequence()
	recorder := analytics.NewRecorder(analytics.Config{MakerRebateBps: 2, TakerFeeBps: 5})

	machines := make(map[common.InstrumentId]*phase.Machine)
	t, ctx := tomb.WithContext(ctx)

	for _, cfg := range instrumentConfigs() {
		if err := cfg.Validate(); err != nil {
			log.Fatal().Err(err).Int64("instrument", int64(cfg.Instrument)).Msg("invalid instrument config")
		}
		m, err := phase.NewMachine(cfg, clock, ids, recorder)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build phase machine")
		}
		machines[cfg.Instrument] = m

		sched := phase.NewScheduler(m, cfg, time.Second)
		t.Go(func() error { return sched.Run(ctx, t) })
	}

	srv := wire.New("0.0.0.0", 9001, machines, ids)
	t.Go(func() error { srv.Run(ctx); return nil })

	setupMarketData(ctx, t, recorder)
	serveMetrics(t)

	log.Info().Msg("exchange running")
	<-ctx.Done()
	t.Kill(nil)
	_ = t.Wait()
}

// serveMetrics exposes the default Prometheus registry (which Manager's
// collectors register into) over HTTP, the way the rest of the pack's
// services do for operator dashboards.
func serveMetrics(t *tomb.Tomb) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":9100", Handler: mux}
	t.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
		return nil
	})
	t.Go(func() error {
		<-t.Dying()
		return srv.Close()
	})
}

// setupMarketData wires the Connection Manager, the Message Router, and
// every configured venue adapter (spec §4.5/§4.6/§4.7), feeding the
// analytics recorder's quote sampler from the router's ticker stream.
func setupMarketData(ctx context.Context, t *tomb.Tomb, recorder *analytics.Recorder) {
	rt := router.NewRouter()
	mgr := manager.NewManager(rt.Ingest)
	for _, c := range mgr.Collectors() {
		_ = prometheus.Register(c)
	}

	providers := []struct {
		name string
		a    adapter.Adapter
	}{
		{"binance", adapter.NewBinanceAdapter()},
		{"kraken", adapter.NewKrakenAdapter()},
		{"okx", adapter.NewOKXAdapter()},
		{"bitfinex", adapter.NewBitfinexAdapter()},
		{"huobi", adapter.NewHuobiAdapter()},
		{"bybit", adapter.NewBybitAdapter()},
		{"bitget", adapter.NewBitgetAdapter()},
		{"gateio", adapter.NewGateIOAdapter()},
		{"kucoin", adapter.NewKuCoinAdapter()},
		{"mexc", adapter.NewMEXCAdapter()},
	}

	for _, p := range providers {
		cfg := common.ProviderConfig{Name: p.name, Enabled: true, Reconnect: common.DefaultReconnectPolicy()}
		mgr.SetConfig(cfg, p.a)
		name := p.name
		t.Go(func() error {
			if err := mgr.Connect(ctx, name); err != nil {
				log.Warn().Str("provider", name).Err(err).Msg("initial market data connect failed")
			}
			return nil
		})
	}

	t.Go(func() error {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-t.Dying():
				return nil
			case <-ticker.C:
				mgr.CleanupIdle(5 * time.Minute)
			}
		}
	})

	// Every ticker push samples into the Analytics Recorder's per-
	// instrument spread/depth metrics. Instrument id 1 is the only
	// configured instrument for this process; a deployment with more
	// than one instrument would carry a symbol->InstrumentId table here
	// instead of a constant.
	tickerStream, _ := rt.Subscribe(router.ByKind(types.KindTicker), 1024)
	t.Go(func() error {
		for {
			select {
			case <-t.Dying():
				return nil
			case msg, ok := <-tickerStream:
				if !ok {
					return nil
				}
				if msg.Ticker == nil {
					continue
				}
				tk := msg.Ticker
				bidSize := int64(tk.BidSize)
				askSize := int64(tk.AskSize)
				recorder.RecordQuote(1, int64(tk.Bid), bidSize, int64(tk.Ask), askSize)
			}
		}
	})
}
