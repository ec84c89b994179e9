package phase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/vantage-exchange/vantage/internal/common"
)

// Scheduler drives the time-based phase transitions spec §4.3 adds to the
// machine: the opening/closing auction wall-clock times, and halt-duration
// expiry. It is supervised the way the teacher's net.Server.Run supervises
// its accept loop and worker pool — a tomb.Tomb observing ctx.Done()/
// t.Dying() at each tick, never a bare `go func(){ for {} }()`.
type Scheduler struct {
	machine      *Machine
	openingTime  string // "HH:MM", empty disables
	closingTime  string
	tickInterval time.Duration
}

// NewScheduler builds a scheduler for machine using cfg's configured
// auction times. tickInterval controls how often wall-clock and halt
// expiry are checked; cmd/main.go uses one second.
func NewScheduler(machine *Machine, cfg common.InstrumentConfig, tickInterval time.Duration) *Scheduler {
	return &Scheduler{
		machine:      machine,
		openingTime:  cfg.OpeningAuctionTime,
		closingTime:  cfg.ClosingAuctionTime,
		tickInterval: tickInterval,
	}
}

// Run starts the scheduler loop under t, returning once ctx is cancelled
// or t is killed. It is meant to be launched via t.Go(...).
func (s *Scheduler) Run(ctx context.Context, t *tomb.Tomb) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	openedToday, closedToday := false, false
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.tick(now, &openedToday, &closedToday)
		}
	}
}

func (s *Scheduler) tick(now time.Time, openedToday, closedToday *bool) {
	s.machine.mu.Lock()
	state := s.machine.state
	haltUntil := s.machine.haltUntil
	resumeState := s.machine.resumeState
	s.machine.mu.Unlock()

	if state == common.Halted && haltUntil != 0 && common.NanosFromTime(now) >= haltUntil {
		log.Info().Msg("circuit breaker halt expired, resuming trading")
		s.machine.transitionTo(resumeState)
		return
	}

	clockStr := now.Format("15:04")
	if !*openedToday && s.openingTime != "" && clockStr == s.openingTime && state == common.PreOpen {
		s.machine.transitionTo(common.OpeningAuction)
		*openedToday = true
		return
	}
	if *openedToday && state == common.OpeningAuction && clockStr != s.openingTime {
		s.machine.transitionTo(common.Continuous)
		return
	}
	if !*closedToday && s.closingTime != "" && clockStr == s.closingTime && state == common.Continuous {
		s.machine.transitionTo(common.ClosingAuction)
		*closedToday = true
		return
	}
	if *closedToday && state == common.ClosingAuction && clockStr != s.closingTime {
		s.machine.transitionTo(common.PostClose)
	}
}
