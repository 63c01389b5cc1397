// Package domain defines the session record, policy, and request/login
// context types shared by the store, the risk engine, and the manager.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// SessionStatus is the lifecycle state of a session. Every status except
// StatusActive is terminal: a record never returns to Active.
type SessionStatus string

const (
	StatusActive      SessionStatus = "active"
	StatusExpired     SessionStatus = "expired"
	StatusInvalidated SessionStatus = "invalidated"
	StatusSuspended   SessionStatus = "suspended"
	StatusTerminated  SessionStatus = "terminated"
)

// Terminal reports whether the status is one a session can never leave.
func (s SessionStatus) Terminal() bool {
	return s != StatusActive
}

// LoginMethod identifies how the user authenticated when the session was created.
type LoginMethod string

const (
	LoginPassword    LoginMethod = "password"
	LoginBiometric   LoginMethod = "biometric"
	LoginOneTimeCode LoginMethod = "one_time_code"
	LoginCertificate LoginMethod = "certificate"
)

// SecurityLevel selects how strictly origin binding is enforced on validation.
type SecurityLevel string

const (
	SecurityBasic    SecurityLevel = "basic"
	SecurityEnhanced SecurityLevel = "enhanced"
	SecurityMaximum  SecurityLevel = "maximum"
)

// SessionRecord is one authenticated session for one user on one
// device/origin combination.
type SessionRecord struct {
	ID                string
	UserID            string
	DeviceID          string
	OriginAddress     string
	ClientFingerprint string
	CreatedAt         time.Time
	LastAccessedAt    time.Time
	ExpiresAt         time.Time
	Status            SessionStatus
	Permissions       []string
	LoginMethod       LoginMethod
	RiskScore         int
	Metadata          map[string]string
}

// Clone returns a deep copy so callers can hold a record without sharing
// mutable state with the store.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Permissions != nil {
		out.Permissions = append([]string(nil), r.Permissions...)
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// SessionPolicy is process-wide session configuration.
type SessionPolicy struct {
	// MaxAge is the absolute session lifetime; ExpiresAt = CreatedAt + MaxAge.
	MaxAge time.Duration
	// IdleTimeout is the maximum gap between accesses before force-expiry.
	IdleTimeout time.Duration
	// MaxConcurrentSessions is the per-user cap on Active sessions.
	MaxConcurrentSessions int
	// RefreshThreshold: a validated session with less than this much
	// lifetime left gets ExpiresAt extended by MaxAge.
	RefreshThreshold time.Duration
	// SecurityLevel controls whether an origin mismatch suspends the session.
	SecurityLevel SecurityLevel
	// OriginBindingEnabled requires the validation origin to match creation.
	OriginBindingEnabled bool
	// FixationProtectionEnabled invalidates prior Active sessions for the
	// same user+device when a new session is created.
	FixationProtectionEnabled bool
}

// DefaultPolicy returns the policy used when no configuration is supplied.
func DefaultPolicy() SessionPolicy {
	return SessionPolicy{
		MaxAge:                    8 * time.Hour,
		IdleTimeout:               30 * time.Minute,
		MaxConcurrentSessions:     3,
		RefreshThreshold:          15 * time.Minute,
		SecurityLevel:             SecurityEnhanced,
		OriginBindingEnabled:      true,
		FixationProtectionEnabled: true,
	}
}

// Validate checks the policy for values that would make the manager misbehave.
func (p SessionPolicy) Validate() error {
	if p.MaxAge <= 0 {
		return errors.New("policy: MaxAge must be positive")
	}
	if p.IdleTimeout <= 0 {
		return errors.New("policy: IdleTimeout must be positive")
	}
	if p.MaxConcurrentSessions < 1 {
		return errors.New("policy: MaxConcurrentSessions must be at least 1")
	}
	if p.RefreshThreshold < 0 || p.RefreshThreshold >= p.MaxAge {
		return errors.New("policy: RefreshThreshold must be in [0, MaxAge)")
	}
	switch p.SecurityLevel {
	case SecurityBasic, SecurityEnhanced, SecurityMaximum:
	default:
		return errors.New("policy: SecurityLevel must be basic, enhanced, or maximum")
	}
	return nil
}

// LoginContext carries everything the caller knows about a login attempt.
// DeviceID may be empty; the manager derives it from origin+fingerprint.
type LoginContext struct {
	Origin      string
	Fingerprint string
	DeviceID    string
	Method      LoginMethod
	Permissions []string
	Metadata    map[string]string
}

// RequestContext carries the per-request data checked during validation.
type RequestContext struct {
	Origin      string
	Fingerprint string
}

// DeriveDeviceID returns a stable device identifier for an origin and
// client fingerprint, for callers that do not supply one explicitly.
func DeriveDeviceID(origin, fingerprint string) string {
	h := sha256.Sum256([]byte(origin + "\x00" + fingerprint))
	return hex.EncodeToString(h[:16])
}
