package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wardenlabs/warden/internal/action"
	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/auth"
	"github.com/wardenlabs/warden/internal/gates"
	"github.com/wardenlabs/warden/internal/runner"
	"github.com/wardenlabs/warden/internal/trust"
)

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("WARDEN_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	postgresDSN := os.Getenv("POSTGRES_DSN")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	allowVoice := envOrDefaultBool("WARDEN_ALLOW_VOICE", true)
	decayIntervalH := envOrDefaultInt("WARDEN_TRUST_DECAY_INTERVAL_H", 24)
	integrityIntervalH := envOrDefaultInt("WARDEN_INTEGRITY_INTERVAL_H", 1)
	analyticsIntervalH := envOrDefaultInt("WARDEN_ANALYTICS_INTERVAL_H", 6)

	logger.Info("starting warden server",
		zap.Bool("allow_voice", allowVoice),
		zap.Int("trust_decay_interval_h", decayIntervalH),
		zap.Int("integrity_interval_h", integrityIntervalH),
	)

	// Stores — Postgres if DSN provided, otherwise in-memory
	var (
		actionStore action.Store
		trustStore  trust.Store
		auditStore  audit.Store
	)
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		actionStore = action.NewPostgresStore(db)
		trustStore = trust.NewPostgresStore(db)
		auditStore = audit.NewPostgresStore(db)
		logger.Info("postgres stores connected")
	} else {
		actionStore = action.NewMemoryStore()
		trustStore = trust.NewMemoryStore()
		auditStore = audit.NewMemoryStore()
		logger.Info("no POSTGRES_DSN set, using in-memory stores")
	}

	// Analytics mirror — ClickHouse or log fallback
	var (
		mirror    audit.MirrorWriter
		analytics *audit.AnalyticsReader
	)
	if clickhouseDSN != "" {
		chMirror, err := audit.NewClickHouseMirror(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log mirror",
				zap.Error(err),
			)
			mirror = audit.NewLogMirror(logger)
		} else {
			mirror = chMirror
			logger.Info("clickhouse mirror connected")
			reader, err := audit.NewAnalyticsReader(clickhouseDSN, logger)
			if err != nil {
				logger.Warn("analytics reader unavailable", zap.Error(err))
			} else {
				analytics = reader
				defer func() { _ = reader.Close() }()
			}
		}
	} else {
		mirror = audit.NewLogMirror(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log mirror")
	}
	defer mirror.Close()

	auditLog := audit.NewLog(auditStore, logger)
	trustMgr := trust.NewManager(trustStore, logger)

	policy := gates.Policy{AllowVoice: &allowVoice}
	pipeline := gates.NewPipeline(gates.DefaultGates(), logger)

	effectors := runner.NewEffectorRegistry()
	registerLoggingEffectors(effectors, logger)

	run := runner.New(runner.Config{
		Actions:   actionStore,
		Pipeline:  pipeline,
		AuditLog:  auditLog,
		Mirror:    mirror,
		Effectors: effectors,
		Policy:    policy,
		Logger:    logger,
	})
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Startup self-check: drive one low-risk action end to end so a broken
	// wiring (stores, gates, audit) fails loudly at boot instead of on the
	// first real action.
	if err := selfCheck(ctx, run, logger); err != nil {
		logger.Fatal("startup self-check failed", zap.Error(err))
	}

	// Maintenance loops: trust adjustment decay and audit integrity sweep
	decayTicker := time.NewTicker(time.Duration(decayIntervalH) * time.Hour)
	defer decayTicker.Stop()
	integrityTicker := time.NewTicker(time.Duration(integrityIntervalH) * time.Hour)
	defer integrityTicker.Stop()
	analyticsTicker := time.NewTicker(time.Duration(analyticsIntervalH) * time.Hour)
	defer analyticsTicker.Stop()

	logger.Info("warden maintenance loops running")
	for {
		select {
		case <-decayTicker.C:
			if err := trustMgr.DecayAll(ctx); err != nil {
				logger.Error("trust decay sweep failed", zap.Error(err))
			}
		case <-integrityTicker.C:
			report, err := auditLog.CheckIntegrity(ctx, audit.Filter{})
			if err != nil {
				logger.Error("integrity sweep failed", zap.Error(err))
				continue
			}
			if report.Failed > 0 {
				logger.Error("AUDIT INTEGRITY VIOLATION",
					zap.Int("failed", report.Failed),
					zap.Strings("failed_ids", report.FailedIDs),
				)
			} else {
				logger.Info("audit integrity verified", zap.Int("total", report.Total))
			}
			auditLog.Record(ctx, audit.Record{
				Event: audit.EventIntegrityCheck,
				Payload: map[string]any{
					"total":    report.Total,
					"verified": report.Verified,
					"failed":   report.Failed,
				},
				Actor: "system",
			})
		case <-analyticsTicker.C:
			if analytics == nil {
				continue
			}
			if err := audit.ReportAnalytics(ctx, analytics, logger); err != nil {
				logger.Error("analytics report failed", zap.Error(err))
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		}
	}
}

// selfCheck creates and executes a minimal reversible action under a
// synthetic system actor.
func selfCheck(ctx context.Context, run *runner.Runner, logger *zap.Logger) error {
	a, err := run.Create(ctx, action.CreateInput{
		Source:      action.SourceAPI,
		Intent:      "startup self-check",
		Authority:   action.AuthorityRead,
		Scope:       action.ScopeTasks,
		Steps:       []action.Step{{Type: action.StepQuery, Target: "self-check"}},
		Reversible:  true,
		Confidence:  1.0,
		UserID:      "system",
		Environment: action.EnvDevelopment,
	})
	if err != nil {
		return fmt.Errorf("selfCheck: %w", err)
	}
	res, err := run.Execute(ctx, a.ID, &auth.Actor{UserID: "system"})
	if err != nil {
		return fmt.Errorf("selfCheck: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("selfCheck: action %s finished %s (blocked by %q): %s",
			a.ID, res.Status, res.BlockedBy, res.Error)
	}
	logger.Info("startup self-check passed",
		zap.String("action_id", a.ID),
		zap.Duration("duration", res.Duration),
	)
	return nil
}

// registerLoggingEffectors installs development effectors that log each
// step instead of touching real systems. Production embeddings register
// their own.
func registerLoggingEffectors(reg *runner.EffectorRegistry, logger *zap.Logger) {
	logStep := runner.EffectorFunc(func(_ context.Context, step action.Step) (any, error) {
		logger.Info("effector invoked",
			zap.String("step_id", step.ID),
			zap.String("type", string(step.Type)),
			zap.String("target", step.Target),
		)
		return map[string]any{"ok": true}, nil
	})
	for _, t := range []action.StepType{
		action.StepQuery, action.StepMutation, action.StepFileWrite,
		action.StepAPICall, action.StepNotification,
	} {
		reg.Register(t, logStep)
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
