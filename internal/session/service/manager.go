// Package service composes the session store, token codec, risk engine,
// and event log into the public session operations: create, validate,
// refresh, invalidate, bulk-invalidate, and list.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	eventdomain "banking-session-core/internal/event/domain"
	"banking-session-core/internal/risk"
	"banking-session-core/internal/session/domain"
	"banking-session-core/internal/session/store"
)

// Sentinel errors returned by the manager's direct operations.
var (
	// ErrNotFound mirrors store.ErrNotFound at the facade boundary.
	ErrNotFound = store.ErrNotFound
	// ErrAlreadyTerminal is returned when an operation needs an Active
	// session but the record has left Active.
	ErrAlreadyTerminal = errors.New("session already terminal")
)

// Machine-readable reasons carried by ValidationResult and event details.
const (
	ReasonNotFound          = "not found"
	ReasonExpired           = "expired"
	ReasonIdleTimeout       = "idle timeout"
	ReasonOriginMismatch    = "origin mismatch"
	ReasonConcurrencyLimit  = "concurrency limit exceeded"
	ReasonFixationProtected = "session fixation protection"
)

// TokenCodec is the manager's view of the token scheme.
type TokenCodec interface {
	Encode(sessionID string) (string, error)
	Decode(token string) (string, error)
}

// EventRecorder receives one audit event per state-changing operation.
// Satisfied by *event.Log.
type EventRecorder interface {
	Record(e eventdomain.SessionEvent)
}

// RiskAssessor scores a login attempt. Satisfied by *risk.Engine.
type RiskAssessor interface {
	Assess(ctx context.Context, userID string, login domain.LoginContext, existing []*domain.SessionRecord) risk.Assessment
}

// CreateResult is the outcome of CreateSession. Warnings carries
// non-fatal outcomes such as a concurrency eviction.
type CreateResult struct {
	Record   *domain.SessionRecord
	Token    string
	Warnings []string
	Risk     risk.Assessment
}

// ValidationResult is the outcome of ValidateSession. Reason is set only
// when Valid is false; Warnings carries soft findings (origin drift below
// Maximum security, fingerprint drift).
type ValidationResult struct {
	Valid    bool
	Record   *domain.SessionRecord
	Reason   string
	Warnings []string
}

// Manager is the session facade. One Manager mutex serializes every
// multi-step read-then-write sequence (validate-then-refresh, the
// limiter's read-then-evict-then-create) so concurrent calls cannot lose
// updates or both slip past the concurrency limit.
type Manager struct {
	mu     sync.Mutex
	store  store.Store
	codec  TokenCodec
	events EventRecorder
	risk   RiskAssessor
	policy domain.SessionPolicy
	logger *zerolog.Logger
	nowF   func() time.Time
}

// NewManager wires the facade. logger may be nil; the policy must have
// passed Validate.
func NewManager(st store.Store, codec TokenCodec, events EventRecorder, assessor RiskAssessor, policy domain.SessionPolicy, logger *zerolog.Logger) *Manager {
	return &Manager{
		store:  st,
		codec:  codec,
		events: events,
		risk:   assessor,
		policy: policy,
		logger: logger,
		nowF:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession creates a session for userID from the login context.
// It always succeeds once the concurrency limit is freed; eviction and
// fixation cleanup surface as warnings, never as errors. The risk
// assessment runs before the critical section because its reputation
// lookup may wait on the network.
func (m *Manager) CreateSession(ctx context.Context, userID string, login domain.LoginContext) (*CreateResult, error) {
	existing, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	assessment := m.risk.Assess(ctx, userID, login, existing)

	deviceID := login.DeviceID
	if deviceID == "" {
		deviceID = domain.DeriveDeviceID(login.Origin, login.Fingerprint)
	}
	method := login.Method
	if method == "" {
		method = domain.LoginPassword
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var warnings []string

	if m.policy.FixationProtectionEnabled {
		n, err := m.invalidateMatchingLocked(ctx, userID, "", ReasonFixationProtected, func(r *domain.SessionRecord) bool {
			return r.DeviceID == deviceID
		})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			warnings = append(warnings, ReasonFixationProtected)
		}
	}

	evicted, err := m.enforceConcurrencyLimitLocked(ctx, userID)
	if err != nil {
		return nil, err
	}
	for range evicted {
		warnings = append(warnings, ReasonConcurrencyLimit)
	}

	now := m.nowF()
	rec := &domain.SessionRecord{
		ID:                uuid.New().String(),
		UserID:            userID,
		DeviceID:          deviceID,
		OriginAddress:     login.Origin,
		ClientFingerprint: login.Fingerprint,
		CreatedAt:         now,
		LastAccessedAt:    now,
		ExpiresAt:         now.Add(m.policy.MaxAge),
		Status:            domain.StatusActive,
		Permissions:       append([]string(nil), login.Permissions...),
		LoginMethod:       method,
		RiskScore:         assessment.Score,
		Metadata:          login.Metadata,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	token, err := m.codec.Encode(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}

	details := map[string]string{
		"origin":       login.Origin,
		"login_method": string(method),
	}
	if len(assessment.Reasons) > 0 {
		details["risk_reasons"] = strings.Join(assessment.Reasons, "; ")
	}
	m.emit(eventdomain.EventCreated, rec, risk.LevelForScore(assessment.Score), details)

	return &CreateResult{
		Record:   rec.Clone(),
		Token:    token,
		Warnings: warnings,
		Risk:     assessment,
	}, nil
}

// ValidateSession decodes the token and runs the lifecycle checks.
// Decode failures are logged distinctly from unknown sessions but the
// caller sees the same result for both, so the API is not an oracle for
// token validity.
func (m *Manager) ValidateSession(ctx context.Context, token string, req domain.RequestContext) (ValidationResult, error) {
	sessionID, err := m.codec.Decode(token)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn().Msg("token decode failed")
		}
		return ValidationResult{Reason: ReasonNotFound}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validateLocked(ctx, sessionID, req)
}

// validateLocked is the lifecycle state machine for one access.
func (m *Manager) validateLocked(ctx context.Context, sessionID string, req domain.RequestContext) (ValidationResult, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ValidationResult{Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return ValidationResult{}, err
	}

	if rec.Status != domain.StatusActive {
		return ValidationResult{Reason: fmt.Sprintf("status: %s", rec.Status)}, nil
	}

	now := m.nowF()

	// Expiry boundary: a session whose ExpiresAt equals now is invalid.
	if !now.Before(rec.ExpiresAt) {
		if err := m.transitionLocked(ctx, rec, domain.StatusExpired, eventdomain.EventExpired, ReasonExpired); err != nil {
			return ValidationResult{}, err
		}
		return ValidationResult{Reason: ReasonExpired}, nil
	}

	if now.Sub(rec.LastAccessedAt) > m.policy.IdleTimeout {
		if err := m.transitionLocked(ctx, rec, domain.StatusExpired, eventdomain.EventExpired, ReasonIdleTimeout); err != nil {
			return ValidationResult{}, err
		}
		return ValidationResult{Reason: ReasonIdleTimeout}, nil
	}

	var warnings []string

	if m.policy.OriginBindingEnabled && req.Origin != rec.OriginAddress {
		m.emit(eventdomain.EventSuspicious, rec, eventdomain.RiskHigh, map[string]string{
			"reason":          ReasonOriginMismatch,
			"expected_origin": rec.OriginAddress,
			"actual_origin":   req.Origin,
		})
		if m.policy.SecurityLevel == domain.SecurityMaximum {
			rec.Status = domain.StatusSuspended
			if err := m.store.Put(ctx, rec); err != nil {
				return ValidationResult{}, err
			}
			return ValidationResult{Reason: ReasonOriginMismatch}, nil
		}
		warnings = append(warnings, ReasonOriginMismatch)
	}

	// Fingerprint drift alone never blocks, at any security level.
	if req.Fingerprint != rec.ClientFingerprint {
		m.emit(eventdomain.EventSuspicious, rec, eventdomain.RiskMedium, map[string]string{
			"reason": "fingerprint mismatch",
		})
		warnings = append(warnings, "fingerprint mismatch")
	}

	if _, err := m.refreshLocked(ctx, rec, now); err != nil {
		return ValidationResult{}, err
	}
	m.emit(eventdomain.EventAccessed, rec, eventdomain.RiskLow, nil)

	return ValidationResult{Valid: true, Record: rec.Clone(), Warnings: warnings}, nil
}

// refreshLocked extends the session when it is close to expiry and
// always advances LastAccessedAt. Returns whether ExpiresAt was extended.
func (m *Manager) refreshLocked(ctx context.Context, rec *domain.SessionRecord, now time.Time) (bool, error) {
	extended := false
	if rec.ExpiresAt.Sub(now) < m.policy.RefreshThreshold {
		rec.ExpiresAt = now.Add(m.policy.MaxAge)
		extended = true
	}
	rec.LastAccessedAt = now
	if err := m.store.Put(ctx, rec); err != nil {
		return false, err
	}
	if extended {
		m.emit(eventdomain.EventRefreshed, rec, eventdomain.RiskLow, map[string]string{
			"expires_at": rec.ExpiresAt.Format(time.RFC3339),
		})
	}
	return extended, nil
}

// RefreshSession refreshes by session ID. Returns false with a nil error
// when the session exists but is no longer Active (no-op per contract).
func (m *Manager) RefreshSession(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if rec.Status != domain.StatusActive {
		return false, nil
	}
	extended, err := m.refreshLocked(ctx, rec, m.nowF())
	if err != nil {
		return false, err
	}
	if !extended {
		// LastAccessedAt still moved; account for it in the trail.
		m.emit(eventdomain.EventAccessed, rec, eventdomain.RiskLow, nil)
	}
	return extended, nil
}

// InvalidateSession invalidates by session ID. Invalidating an already
// terminal session is idempotent: same terminal state, no second event.
func (m *Manager) InvalidateSession(ctx context.Context, sessionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return nil
	}
	return m.transitionLocked(ctx, rec, domain.StatusInvalidated, eventdomain.EventInvalidated, reason)
}

// InvalidateAllOtherSessions invalidates every Active session of the
// user except exceptID and returns how many it invalidated.
func (m *Manager) InvalidateAllOtherSessions(ctx context.Context, userID, exceptID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.invalidateMatchingLocked(ctx, userID, exceptID, "terminated by user", func(*domain.SessionRecord) bool { return true })
}

// ListUserSessions returns the user's sessions, most recently accessed first.
func (m *Manager) ListUserSessions(ctx context.Context, userID string) ([]*domain.SessionRecord, error) {
	return m.store.ListByUser(ctx, userID)
}

// SuspendSession moves an Active session to Suspended. Unlike
// InvalidateSession it is not idempotent: suspending a session that has
// already left Active is a caller error and returns ErrAlreadyTerminal.
func (m *Manager) SuspendSession(ctx context.Context, sessionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.Status.Terminal() {
		return ErrAlreadyTerminal
	}
	return m.transitionLocked(ctx, rec, domain.StatusSuspended, eventdomain.EventSuspicious, reason)
}

// Policy returns the manager's policy.
func (m *Manager) Policy() domain.SessionPolicy {
	return m.policy
}

// enforceConcurrencyLimitLocked evicts the least recently used Active
// sessions until one slot is free, returning the evicted IDs.
func (m *Manager) enforceConcurrencyLimitLocked(ctx context.Context, userID string) ([]string, error) {
	list, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var active []*domain.SessionRecord
	for _, r := range list {
		if r.Status == domain.StatusActive {
			active = append(active, r)
		}
	}

	var evicted []string
	// list is sorted descending by LastAccessedAt, so the oldest Active
	// session is the last element.
	for len(active) >= m.policy.MaxConcurrentSessions {
		victim := active[len(active)-1]
		if err := m.transitionLocked(ctx, victim, domain.StatusInvalidated, eventdomain.EventInvalidated, ReasonConcurrencyLimit); err != nil {
			return evicted, err
		}
		evicted = append(evicted, victim.ID)
		active = active[:len(active)-1]
	}
	return evicted, nil
}

// invalidateMatchingLocked invalidates the user's Active sessions that
// match, skipping exceptID, and returns the count.
func (m *Manager) invalidateMatchingLocked(ctx context.Context, userID, exceptID, reason string, match func(*domain.SessionRecord) bool) (int, error) {
	list, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range list {
		if r.ID == exceptID || r.Status != domain.StatusActive || !match(r) {
			continue
		}
		if err := m.transitionLocked(ctx, r, domain.StatusInvalidated, eventdomain.EventInvalidated, reason); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// transitionLocked applies a terminal status, persists it, and emits the
// single event for the transition.
func (m *Manager) transitionLocked(ctx context.Context, rec *domain.SessionRecord, to domain.SessionStatus, evt eventdomain.EventType, reason string) error {
	rec.Status = to
	if err := m.store.Put(ctx, rec); err != nil {
		return err
	}
	var details map[string]string
	if reason != "" {
		details = map[string]string{"reason": reason}
	}
	level := eventdomain.RiskLow
	if evt == eventdomain.EventSuspicious {
		level = eventdomain.RiskHigh
	}
	m.emit(evt, rec, level, details)
	return nil
}

func (m *Manager) emit(t eventdomain.EventType, rec *domain.SessionRecord, level eventdomain.RiskLevel, details map[string]string) {
	m.events.Record(eventdomain.SessionEvent{
		Type:      t,
		SessionID: rec.ID,
		UserID:    rec.UserID,
		Timestamp: m.nowF(),
		Details:   details,
		RiskLevel: level,
	})
}
