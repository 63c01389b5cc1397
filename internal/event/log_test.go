package event

import (
	"testing"
	"time"

	"banking-session-core/internal/event/domain"
)

func TestLog_Record_FillsIDAndTimestamp(t *testing.T) {
	l := NewLog(nil)

	l.Record(domain.SessionEvent{Type: domain.EventCreated, UserID: "u1", RiskLevel: domain.RiskLow})

	got := l.Query("u1", time.Time{}, time.Time{})
	if len(got) != 1 {
		t.Fatalf("Query returned %d events, want 1", len(got))
	}
	if got[0].ID == "" {
		t.Error("Record should assign an ID")
	}
	if got[0].Timestamp.IsZero() {
		t.Error("Record should assign a timestamp")
	}
}

func TestLog_Query_NewestFirst(t *testing.T) {
	l := NewLog(nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		l.Record(domain.SessionEvent{
			Type:      domain.EventAccessed,
			SessionID: "s1",
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			RiskLevel: domain.RiskLow,
		})
	}

	got := l.Query("u1", time.Time{}, time.Time{})
	if len(got) != 3 {
		t.Fatalf("Query returned %d events, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.After(got[i-1].Timestamp) {
			t.Errorf("events not sorted newest first at index %d", i)
		}
	}
}

func TestLog_Query_TimeRange(t *testing.T) {
	l := NewLog(nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		l.Record(domain.SessionEvent{
			Type:      domain.EventAccessed,
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			RiskLevel: domain.RiskLow,
		})
	}

	got := l.Query("u1", base.Add(1*time.Hour), base.Add(3*time.Hour))
	if len(got) != 3 {
		t.Errorf("Query returned %d events in range, want 3", len(got))
	}
}

func TestLog_Record_TruncatesToNewestHalf(t *testing.T) {
	l := NewLog(nil)
	l.cap = 10
	l.keep = 5
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 11; i++ {
		l.Record(domain.SessionEvent{
			Type:      domain.EventAccessed,
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			RiskLevel: domain.RiskLow,
		})
	}

	if l.Len() != 5 {
		t.Fatalf("Len = %d after truncation, want 5", l.Len())
	}
	got := l.Query("u1", time.Time{}, time.Time{})
	// Newest entry must survive truncation.
	if !got[0].Timestamp.Equal(base.Add(10 * time.Second)) {
		t.Errorf("newest surviving event at %v, want %v", got[0].Timestamp, base.Add(10*time.Second))
	}
}

func TestLog_CountCreatedSince(t *testing.T) {
	l := NewLog(nil)
	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		l.Record(domain.SessionEvent{
			Type:      domain.EventCreated,
			UserID:    "u1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			RiskLevel: domain.RiskLow,
		})
	}
	l.Record(domain.SessionEvent{
		Type:      domain.EventAccessed,
		UserID:    "u1",
		Timestamp: base.Add(4 * time.Minute),
		RiskLevel: domain.RiskLow,
	})

	if n := l.CountCreatedSince("u1", base.Add(1*time.Minute)); n != 3 {
		t.Errorf("CountCreatedSince = %d, want 3", n)
	}
	if n := l.CountCreatedSince("u2", base); n != 0 {
		t.Errorf("CountCreatedSince for other user = %d, want 0", n)
	}
}

type captureSink struct {
	events []domain.SessionEvent
}

func (c *captureSink) OnHighRiskEvent(e domain.SessionEvent) {
	c.events = append(c.events, e)
}

func TestLog_HighRiskFanOut(t *testing.T) {
	sink := &captureSink{}
	l := NewLog(nil, sink)

	l.Record(domain.SessionEvent{Type: domain.EventAccessed, UserID: "u1", RiskLevel: domain.RiskLow})
	l.Record(domain.SessionEvent{Type: domain.EventSuspicious, UserID: "u1", RiskLevel: domain.RiskHigh})
	l.Record(domain.SessionEvent{Type: domain.EventSuspicious, UserID: "u1", RiskLevel: domain.RiskCritical})
	l.Record(domain.SessionEvent{Type: domain.EventSuspicious, UserID: "u1", RiskLevel: domain.RiskMedium})

	if len(sink.events) != 2 {
		t.Fatalf("sink received %d events, want 2", len(sink.events))
	}
	if sink.events[0].RiskLevel != domain.RiskHigh || sink.events[1].RiskLevel != domain.RiskCritical {
		t.Error("sink should receive only high and critical events, in order")
	}
}
