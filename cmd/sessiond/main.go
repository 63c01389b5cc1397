// sessiond wires the session core for operation: config, store (memory
// or Postgres), risk engine, event log with the Prometheus sink, the
// cleanup scheduler, and a metrics endpoint. The session manager itself
// is an in-process library surface; sessiond runs its housekeeping and
// verifies the wiring with a startup self-check.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"banking-session-core/internal/config"
	"banking-session-core/internal/db"
	"banking-session-core/internal/event"
	"banking-session-core/internal/event/promsink"
	"banking-session-core/internal/risk"
	"banking-session-core/internal/security"
	"banking-session-core/internal/session/cleanup"
	"banking-session-core/internal/session/domain"
	"banking-session-core/internal/session/service"
	"banking-session-core/internal/session/store"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal().Err(err).Msg("policy")
	}

	secret, err := security.LoadSecret(cfg.TokenSecret)
	if err != nil {
		logger.Fatal().Err(err).Msg("token secret")
	}
	codec, err := security.NewTokenCodec(secret)
	if err != nil {
		logger.Fatal().Err(err).Msg("token codec")
	}

	var st store.Store
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("database")
		}
		defer sqlDB.Close()
		st = store.NewPostgresStore(sqlDB)
		logger.Info().Msg("using postgres session store")
	} else {
		st = store.NewMemoryStore()
		logger.Info().Msg("using in-memory session store")
	}

	reg := prometheus.NewRegistry()
	eventLog := event.NewLog(&logger, promsink.New(reg))

	var reputation risk.ReputationLookup
	if cfg.ReputationURL != "" {
		reputation = risk.NewHTTPReputation(cfg.ReputationURL, cfg.ReputationTimeoutDuration())
	}
	engine := risk.NewEngine(eventLog, reputation, cfg.DenylistSignatures())

	mgr := service.NewManager(st, codec, eventLog, engine, policy, &logger)
	if err := selfCheck(mgr); err != nil {
		logger.Fatal().Err(err).Msg("startup self-check")
	}
	logger.Info().Msg("session manager self-check passed")

	sched := cleanup.NewScheduler(st, eventLog, cfg.CleanupIntervalDuration(), cfg.RetentionDuration(), &logger)
	sched.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("metrics serve")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	sched.Stop()
	logger.Info().Msg("stopped")
}

// selfCheck exercises the full create/validate/invalidate path once so a
// misconfigured secret or store fails at startup, not on first login.
func selfCheck(mgr *service.Manager) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	login := domain.LoginContext{
		Origin:      "127.0.0.1",
		Fingerprint: "sessiond-self-check",
		Method:      domain.LoginCertificate,
	}
	res, err := mgr.CreateSession(ctx, "_selfcheck", login)
	if err != nil {
		return err
	}
	v, err := mgr.ValidateSession(ctx, res.Token, domain.RequestContext{
		Origin:      "127.0.0.1",
		Fingerprint: "sessiond-self-check",
	})
	if err != nil {
		return err
	}
	if !v.Valid {
		return err
	}
	return mgr.InvalidateSession(ctx, res.Record.ID, "self-check complete")
}
