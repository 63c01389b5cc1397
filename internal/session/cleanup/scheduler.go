// Package cleanup runs the periodic sweep that expires and removes
// sessions past their lifetime or retention.
package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	eventdomain "banking-session-core/internal/event/domain"
	"banking-session-core/internal/session/store"
)

// sweepTimeout bounds one sweep pass so a slow backing store cannot
// stall shutdown.
const sweepTimeout = 30 * time.Second

// EventRecorder receives the Expired events for sessions the sweep
// transitioned. Satisfied by *event.Log.
type EventRecorder interface {
	Record(e eventdomain.SessionEvent)
}

// Scheduler sweeps the session store at a fixed interval, independent of
// request traffic. Stop is honored before the next tick.
type Scheduler struct {
	store     store.Store
	events    EventRecorder
	interval  time.Duration
	retention time.Duration
	logger    *zerolog.Logger
	stop      chan struct{}
	done      chan struct{}
	nowF      func() time.Time
}

// NewScheduler returns a stopped scheduler. logger may be nil.
func NewScheduler(st store.Store, events EventRecorder, interval, retention time.Duration, logger *zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:     st,
		events:    events,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Start launches the sweep loop in its own goroutine.
func (s *Scheduler) Start() {
	go s.run()
}

// Stop signals the loop and waits for it to exit. Safe to call once.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce runs one sweep and emits an Expired event for every session
// the sweep transitioned out of Active. Errors are logged, never fatal.
func (s *Scheduler) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	now := s.nowF()
	res, err := s.store.Sweep(ctx, now, s.retention)
	if err != nil {
		if s.logger != nil {
			s.logger.Error().Err(err).Msg("session sweep failed")
		}
		return
	}
	for _, rec := range res.Expired {
		s.events.Record(eventdomain.SessionEvent{
			Type:      eventdomain.EventExpired,
			SessionID: rec.ID,
			UserID:    rec.UserID,
			Timestamp: now,
			Details:   map[string]string{"reason": "expired"},
			RiskLevel: eventdomain.RiskLow,
		})
	}
	if s.logger != nil && (len(res.Expired) > 0 || res.Removed > 0) {
		s.logger.Info().
			Int("expired", len(res.Expired)).
			Int("removed", res.Removed).
			Msg("session sweep")
	}
}
