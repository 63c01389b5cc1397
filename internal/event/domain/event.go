// Package domain defines the audit event types recorded by the session core.
package domain

import "time"

// EventType classifies a session lifecycle or security event.
type EventType string

const (
	EventCreated     EventType = "created"
	EventAccessed    EventType = "accessed"
	EventRefreshed   EventType = "refreshed"
	EventExpired     EventType = "expired"
	EventInvalidated EventType = "invalidated"
	EventSuspicious  EventType = "suspicious"
)

// RiskLevel tags an event with how suspicious the underlying activity was.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// SessionEvent is one immutable audit entry. Details is free-form
// key-value context (reason, origin, login method).
type SessionEvent struct {
	ID        string
	Type      EventType
	SessionID string
	UserID    string
	Timestamp time.Time
	Details   map[string]string
	RiskLevel RiskLevel
}
