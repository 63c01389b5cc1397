// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	"banking-session-core/internal/session/domain"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// TokenSecret is the session token secret: an inline value or
	// "file:<path>". Required by sessiond; there is no runtime-derived
	// default, so tokens survive restarts only with an externally
	// provisioned secret. Tools that never mint tokens may leave it unset.
	TokenSecret string `mapstructure:"TOKEN_SECRET"`
	// DatabaseURL is the Postgres DSN for the network-backed session
	// store; empty selects the in-memory store.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// MetricsAddr is the address the metrics endpoint listens on (e.g. :9100).
	MetricsAddr string `mapstructure:"METRICS_ADDR"`
	// SessionMaxAge is the absolute session lifetime (e.g. "8h").
	SessionMaxAge string `mapstructure:"SESSION_MAX_AGE"`
	// SessionIdleTimeout is the maximum gap between accesses (e.g. "30m").
	SessionIdleTimeout string `mapstructure:"SESSION_IDLE_TIMEOUT"`
	// SessionMaxConcurrent is the per-user cap on Active sessions.
	SessionMaxConcurrent int `mapstructure:"SESSION_MAX_CONCURRENT"`
	// SessionRefreshThreshold gates expiry extension on access (e.g. "15m").
	SessionRefreshThreshold string `mapstructure:"SESSION_REFRESH_THRESHOLD"`
	// SecurityLevel is basic, enhanced, or maximum.
	SecurityLevel string `mapstructure:"SECURITY_LEVEL"`
	// OriginBindingEnabled requires the request origin to match creation.
	OriginBindingEnabled bool `mapstructure:"ORIGIN_BINDING_ENABLED"`
	// FixationProtectionEnabled invalidates prior same-device sessions on login.
	FixationProtectionEnabled bool `mapstructure:"FIXATION_PROTECTION_ENABLED"`
	// CleanupInterval is how often the sweep runs (e.g. "5m").
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// SessionRetention is how long terminal records are kept before removal.
	SessionRetention string `mapstructure:"SESSION_RETENTION"`
	// RiskClientDenylist is a comma-separated list of fingerprint
	// substrings that mark an automated client; empty uses the built-in list.
	RiskClientDenylist string `mapstructure:"RISK_CLIENT_DENYLIST"`
	// ReputationURL is the optional network reputation service endpoint.
	ReputationURL string `mapstructure:"REPUTATION_URL"`
	// ReputationTimeout bounds one reputation lookup (e.g. "2s").
	ReputationTimeout string `mapstructure:"REPUTATION_TIMEOUT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the
// environment via Viper. Missing .env is ignored (e.g. in CI). Env vars
// override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("TOKEN_SECRET", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("METRICS_ADDR", ":9100")
	v.SetDefault("SESSION_MAX_AGE", "8h")
	v.SetDefault("SESSION_IDLE_TIMEOUT", "30m")
	v.SetDefault("SESSION_MAX_CONCURRENT", 3)
	v.SetDefault("SESSION_REFRESH_THRESHOLD", "15m")
	v.SetDefault("SECURITY_LEVEL", "enhanced")
	v.SetDefault("ORIGIN_BINDING_ENABLED", true)
	v.SetDefault("FIXATION_PROTECTION_ENABLED", true)
	v.SetDefault("CLEANUP_INTERVAL", "5m")
	v.SetDefault("SESSION_RETENTION", "24h")
	v.SetDefault("RISK_CLIENT_DENYLIST", "")
	v.SetDefault("REPUTATION_URL", "")
	v.SetDefault("REPUTATION_TIMEOUT", "2s")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SessionMaxConcurrent < 1 {
		return nil, errors.New("config: SESSION_MAX_CONCURRENT must be at least 1")
	}
	if _, err := cfg.Policy(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Policy builds the session policy from the config, falling back to the
// defaults for unparseable durations.
func (c *Config) Policy() (domain.SessionPolicy, error) {
	p := domain.DefaultPolicy()
	p.MaxAge = durationOr(c.SessionMaxAge, p.MaxAge)
	p.IdleTimeout = durationOr(c.SessionIdleTimeout, p.IdleTimeout)
	p.MaxConcurrentSessions = c.SessionMaxConcurrent
	p.RefreshThreshold = durationOr(c.SessionRefreshThreshold, p.RefreshThreshold)
	p.SecurityLevel = domain.SecurityLevel(strings.ToLower(strings.TrimSpace(c.SecurityLevel)))
	p.OriginBindingEnabled = c.OriginBindingEnabled
	p.FixationProtectionEnabled = c.FixationProtectionEnabled
	if err := p.Validate(); err != nil {
		return domain.SessionPolicy{}, err
	}
	return p, nil
}

// CleanupIntervalDuration parses CleanupInterval. Returns 5m if unset or invalid.
func (c *Config) CleanupIntervalDuration() time.Duration {
	return durationOr(c.CleanupInterval, 5*time.Minute)
}

// RetentionDuration parses SessionRetention. Returns 24h if unset or invalid.
func (c *Config) RetentionDuration() time.Duration {
	return durationOr(c.SessionRetention, 24*time.Hour)
}

// ReputationTimeoutDuration parses ReputationTimeout. Returns 2s if unset or invalid.
func (c *Config) ReputationTimeoutDuration() time.Duration {
	return durationOr(c.ReputationTimeout, 2*time.Second)
}

// DenylistSignatures returns the automated-client signatures from the
// comma-separated config, or nil to use the engine's built-in list.
func (c *Config) DenylistSignatures() []string {
	if c == nil || c.RiskClientDenylist == "" {
		return nil
	}
	parts := strings.Split(c.RiskClientDenylist, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
