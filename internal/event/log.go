// Package event provides the bounded, append-only audit trail for session
// lifecycle and security events, with fan-out of high-risk events to
// external sinks.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"banking-session-core/internal/event/domain"
)

const (
	// defaultCap is the hard cap on buffered events; exceeding it
	// truncates the buffer to the newest defaultKeep entries.
	defaultCap  = 10000
	defaultKeep = 5000
)

// HighRiskSink receives events tagged RiskHigh or RiskCritical.
// Implementations must not block; delivery is best-effort.
type HighRiskSink interface {
	OnHighRiskEvent(e domain.SessionEvent)
}

// Log is an in-memory, append-only, bounded event trail.
type Log struct {
	mu      sync.RWMutex
	entries []domain.SessionEvent // oldest first
	cap     int
	keep    int
	sinks   []HighRiskSink
	logger  *zerolog.Logger
	nowF    func() time.Time
}

// NewLog returns a Log with the default capacity. logger may be nil;
// sinks receive every High/Critical event.
func NewLog(logger *zerolog.Logger, sinks ...HighRiskSink) *Log {
	return &Log{
		entries: make([]domain.SessionEvent, 0, 256),
		cap:     defaultCap,
		keep:    defaultKeep,
		sinks:   sinks,
		logger:  logger,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends the event. A missing ID or Timestamp is filled in.
// When the buffer exceeds its cap it is truncated to the newest half.
func (l *Log) Record(e domain.SessionEvent) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.nowF()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	if len(l.entries) > l.cap {
		kept := make([]domain.SessionEvent, l.keep)
		copy(kept, l.entries[len(l.entries)-l.keep:])
		l.entries = kept
	}
	l.mu.Unlock()

	if e.RiskLevel == domain.RiskHigh || e.RiskLevel == domain.RiskCritical {
		for _, s := range l.sinks {
			s.OnHighRiskEvent(e)
		}
		if l.logger != nil {
			l.logger.Warn().
				Str("event_type", string(e.Type)).
				Str("session_id", e.SessionID).
				Str("user_id", e.UserID).
				Str("risk_level", string(e.RiskLevel)).
				Msg("high-risk session event")
		}
	}
}

// Query returns the user's events within [from, to], newest first.
// A zero from or to leaves that bound open.
func (l *Log) Query(userID string, from, to time.Time) []domain.SessionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.SessionEvent, 0)
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.UserID != userID {
			continue
		}
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && e.Timestamp.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CountCreatedSince returns how many Created events the user has on or
// after since. Used by the risk engine's rapid-login heuristic.
func (l *Log) CountCreatedSince(userID string, since time.Time) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := 0
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if e.Timestamp.Before(since) {
			break
		}
		if e.UserID == userID && e.Type == domain.EventCreated {
			n++
		}
	}
	return n
}

// Len returns the number of buffered events.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
