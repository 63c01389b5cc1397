// Package authgate is the authentication-gate surface consumed by the
// UI layer: a thin stateful wrapper over the session manager that holds
// the current token and re-validates it on demand.
package authgate

import (
	"context"
	"sync"

	"banking-session-core/internal/session/domain"
	"banking-session-core/internal/session/service"
)

// LoginResult is what the UI collaborator sees after a login attempt.
// Warnings carries non-fatal outcomes (concurrency eviction, fixation
// cleanup); the token is the only session artifact handed to the caller.
type LoginResult struct {
	Success   bool
	Token     string
	Warnings  []string
	RiskScore int
}

// Gate tracks one authenticated surface (one device/app instance).
type Gate struct {
	mu     sync.Mutex
	mgr    *service.Manager
	token  string
	record *domain.SessionRecord
}

// New returns a Gate over the given manager, initially logged out.
func New(mgr *service.Manager) *Gate {
	return &Gate{mgr: mgr}
}

// Login creates a session and remembers its token.
func (g *Gate) Login(ctx context.Context, userID string, login domain.LoginContext) (LoginResult, error) {
	res, err := g.mgr.CreateSession(ctx, userID, login)
	if err != nil {
		return LoginResult{}, err
	}
	g.mu.Lock()
	g.token = res.Token
	g.record = res.Record
	g.mu.Unlock()
	return LoginResult{
		Success:   true,
		Token:     res.Token,
		Warnings:  res.Warnings,
		RiskScore: res.Risk.Score,
	}, nil
}

// Logout invalidates the current session and clears local state. Logging
// out while logged out is a no-op.
func (g *Gate) Logout(ctx context.Context, reason string) error {
	g.mu.Lock()
	rec := g.record
	g.token = ""
	g.record = nil
	g.mu.Unlock()
	if rec == nil {
		return nil
	}
	if reason == "" {
		reason = "user logout"
	}
	return g.mgr.InvalidateSession(ctx, rec.ID, reason)
}

// IsAuthenticated reports the last-known session state without touching
// the store. Use CheckStatus to re-validate.
func (g *Gate) IsAuthenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.record != nil && g.record.Status == domain.StatusActive
}

// CheckStatus re-validates the current token (e.g. on a timer or app
// foreground). Any non-success result logs the surface out locally; the
// caller is expected to require re-authentication.
func (g *Gate) CheckStatus(ctx context.Context, req domain.RequestContext) (bool, error) {
	g.mu.Lock()
	token := g.token
	g.mu.Unlock()
	if token == "" {
		return false, nil
	}

	v, err := g.mgr.ValidateSession(ctx, token, req)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !v.Valid {
		g.token = ""
		g.record = nil
		return false, nil
	}
	g.record = v.Record
	return true, nil
}

// ListSessions returns all of the current user's sessions, most recently
// accessed first.
func (g *Gate) ListSessions(ctx context.Context) ([]*domain.SessionRecord, error) {
	g.mu.Lock()
	rec := g.record
	g.mu.Unlock()
	if rec == nil {
		return nil, nil
	}
	return g.mgr.ListUserSessions(ctx, rec.UserID)
}

// TerminateSession invalidates one of the user's sessions by ID, e.g.
// from a "manage devices" screen.
func (g *Gate) TerminateSession(ctx context.Context, sessionID string) error {
	return g.mgr.InvalidateSession(ctx, sessionID, "terminated by user")
}

// TerminateAllOtherSessions invalidates every other session of the
// current user and returns how many were terminated.
func (g *Gate) TerminateAllOtherSessions(ctx context.Context) (int, error) {
	g.mu.Lock()
	rec := g.record
	g.mu.Unlock()
	if rec == nil {
		return 0, nil
	}
	return g.mgr.InvalidateAllOtherSessions(ctx, rec.UserID, rec.ID)
}
