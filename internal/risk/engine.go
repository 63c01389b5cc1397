// Package risk scores login attempts on a 0-100 scale from additive
// heuristics over the user's known sessions, recent login velocity, the
// client signature, and an optional network reputation lookup.
package risk

import (
	"context"
	"strings"
	"time"

	eventdomain "banking-session-core/internal/event/domain"
	"banking-session-core/internal/session/domain"
)

// Heuristic contributions. Additive, capped at maxScore.
const (
	scoreNewDevice       = 30
	scoreNewOrigin       = 20
	scoreRapidLogin      = 40
	scoreAutomatedClient = 50
	scoreHighRiskNetwork = 35
	maxScore             = 100
)

// Reasons attached to an Assessment, one per triggered heuristic.
const (
	ReasonNewDevice       = "new device"
	ReasonNewOrigin       = "new origin"
	ReasonRapidLogin      = "rapid repeated login"
	ReasonAutomatedClient = "automated client signature"
	ReasonHighRiskNetwork = "high-risk network"
)

const (
	rapidLoginWindow    = 5 * time.Minute
	rapidLoginThreshold = 3
	defaultLookupWait   = 2 * time.Second
)

// DefaultAutomatedSignatures is the built-in deny-list of fingerprint
// substrings that mark an automated client.
var DefaultAutomatedSignatures = []string{"bot", "crawler", "headless", "curl"}

// Assessment is the transient result of scoring one login attempt.
type Assessment struct {
	Detected           bool
	Reasons            []string
	Score              int
	RecommendedActions []string
}

// CreatedCounter reports how many sessions a user created recently.
// Satisfied by *event.Log.
type CreatedCounter interface {
	CountCreatedSince(userID string, since time.Time) int
}

// ReputationLookup classifies a network origin. Implementations must be
// bounded by ctx; an error means "unknown" and contributes no score.
type ReputationLookup interface {
	IsHighRisk(ctx context.Context, origin string) (bool, error)
}

// Engine computes risk assessments. events and reputation may be nil;
// the corresponding heuristics then contribute nothing.
type Engine struct {
	events     CreatedCounter
	reputation ReputationLookup
	signatures []string
	lookupWait time.Duration
	nowF       func() time.Time
}

// NewEngine returns an Engine. A nil or empty signatures list falls back
// to DefaultAutomatedSignatures.
func NewEngine(events CreatedCounter, reputation ReputationLookup, signatures []string) *Engine {
	if len(signatures) == 0 {
		signatures = DefaultAutomatedSignatures
	}
	return &Engine{
		events:     events,
		reputation: reputation,
		signatures: signatures,
		lookupWait: defaultLookupWait,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
}

// Assess scores a login attempt for userID against the user's existing
// sessions. The reputation lookup is best-effort: a failure or timeout
// degrades to "unknown" rather than blocking the login.
func (e *Engine) Assess(ctx context.Context, userID string, login domain.LoginContext, existing []*domain.SessionRecord) Assessment {
	var a Assessment

	deviceID := login.DeviceID
	if deviceID == "" {
		deviceID = domain.DeriveDeviceID(login.Origin, login.Fingerprint)
	}

	knownDevice, knownOrigin := false, false
	for _, s := range existing {
		if s.DeviceID == deviceID {
			knownDevice = true
		}
		if s.OriginAddress == login.Origin {
			knownOrigin = true
		}
	}
	if len(existing) > 0 && !knownDevice {
		a.add(scoreNewDevice, ReasonNewDevice)
	}
	if len(existing) > 0 && !knownOrigin {
		a.add(scoreNewOrigin, ReasonNewOrigin)
	}

	if e.events != nil {
		if n := e.events.CountCreatedSince(userID, e.nowF().Add(-rapidLoginWindow)); n > rapidLoginThreshold {
			a.add(scoreRapidLogin, ReasonRapidLogin)
		}
	}

	fp := strings.ToLower(login.Fingerprint)
	for _, sig := range e.signatures {
		if sig != "" && strings.Contains(fp, strings.ToLower(sig)) {
			a.add(scoreAutomatedClient, ReasonAutomatedClient)
			break
		}
	}

	if e.reputation != nil {
		lookupCtx, cancel := context.WithTimeout(ctx, e.lookupWait)
		high, err := e.reputation.IsHighRisk(lookupCtx, login.Origin)
		cancel()
		if err == nil && high {
			a.add(scoreHighRiskNetwork, ReasonHighRiskNetwork)
		}
	}

	a.Detected = a.Score > 0
	a.RecommendedActions = recommend(a)
	return a
}

func (a *Assessment) add(score int, reason string) {
	a.Score += score
	if a.Score > maxScore {
		a.Score = maxScore
	}
	a.Reasons = append(a.Reasons, reason)
}

// recommend maps an assessment to ordered follow-up actions for the caller.
func recommend(a Assessment) []string {
	var actions []string
	if a.Score >= 80 {
		actions = append(actions, "require step-up authentication")
	} else if a.Score >= 60 {
		actions = append(actions, "notify account holder")
	}
	for _, r := range a.Reasons {
		if r == ReasonAutomatedClient {
			actions = append(actions, "challenge client")
			break
		}
	}
	return actions
}

// LevelForScore maps a 0-100 risk score to the event risk level used to
// tag audit events and the facade's live risk indicator.
func LevelForScore(score int) eventdomain.RiskLevel {
	switch {
	case score >= 80:
		return eventdomain.RiskCritical
	case score >= 60:
		return eventdomain.RiskHigh
	case score >= 30:
		return eventdomain.RiskMedium
	default:
		return eventdomain.RiskLow
	}
}
