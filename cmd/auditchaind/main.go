package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/clarimed/auditchain/internal/app/httpapi"
	"github.com/clarimed/auditchain/internal/chain"
	"github.com/clarimed/auditchain/internal/constants"
	"github.com/clarimed/auditchain/internal/domain"
	"github.com/clarimed/auditchain/internal/infra/config"
	"github.com/clarimed/auditchain/internal/infra/kms"
	"github.com/clarimed/auditchain/internal/infra/persistence"
	"github.com/clarimed/auditchain/internal/infra/persistence/memstore"
	"github.com/clarimed/auditchain/internal/scheduler"
	"github.com/clarimed/auditchain/internal/service"
	"github.com/clarimed/auditchain/pkg/execution"
	"github.com/clarimed/auditchain/pkg/postgres"
)

func main() {
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("AUDITCHAIN_CONFIG_PATH"))
	if err != nil {
		logger.Error("failed to load config", "error", err.Error())
		os.Exit(1)
	}

	ctx := context.Background()

	hasher, err := buildHasher(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build entry hasher", "error", err.Error())
		os.Exit(1)
	}

	var (
		entries domain.EntryRepository
		runs    domain.RunRepository
		acks    domain.AcknowledgmentRepository
		store   httpapi.Pinger
	)

	if cfg.Database.URL == "memory" {
		// Development backend; nothing survives a restart.
		mem := memstore.New()
		entries, runs, acks = mem, mem, mem
		logger.Warn("using in-memory store, audit data will not persist")
	} else {
		pool, err := execution.WithRetry(ctx, 5, 500*time.Millisecond, 5*time.Second,
			func(ctx context.Context) (*pgxpool.Pool, error) {
				return persistence.NewConnectionPool(ctx, cfg.Database)
			})
		if err != nil {
			logger.Error("failed to connect to database", "error", err.Error())
			os.Exit(1)
		}
		defer pool.Close()

		if err := postgres.NewClient(pool).PrepareStatements(ctx, constants.Queries); err != nil {
			logger.Error("failed to prepare statements", "error", err.Error())
			os.Exit(1)
		}

		entries = persistence.NewEntryRepository(pool, logger)
		runs = persistence.NewRunRepository(pool)
		acks = persistence.NewAckRepository(pool)
		store = pool
	}

	writer := service.NewWriter(entries, hasher, logger)
	verifier := chain.NewVerifier(hasher, entries, cfg.Verification.BatchSize)
	verification := service.NewVerificationService(verifier, runs, service.NewLogNotifier(logger), logger)
	alerts := service.NewAlertsService(runs, acks, logger)
	reports := service.NewReportsService(entries, runs)

	sched := scheduler.New(verification, scheduler.Config{
		Interval:    cfg.Verification.Interval,
		Incremental: cfg.Verification.Incremental,
	}, logger)
	sched.Start()
	defer sched.Stop()

	server := httpapi.New(cfg.Server.Port, httpapi.Deps{
		Writer:       writer,
		Entries:      entries,
		Verification: verification,
		Alerts:       alerts,
		Reports:      reports,
		Store:        store,
		Logger:       logger,
	})

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		for s := range sig {
			// SIGHUP nudges the scheduler into an immediate pass without
			// waiting for the next tick.
			if s == syscall.SIGHUP {
				logger.Info("SIGHUP received, triggering verification run")
				sched.TriggerNow()
				continue
			}
			logger.Info("shutdown signal received")
			if err := server.Shutdown(); err != nil {
				logger.Error("server shutdown failed", "error", err.Error())
			}
			return
		}
	}()

	logger.Info("starting auditchain",
		"version", cfg.ServiceVersion,
		"mode", cfg.Server.Mode,
		"verification_interval", cfg.Verification.Interval.String(),
	)
	if err := server.Listen(); err != nil {
		logger.Error("http server failed", "error", err.Error())
		os.Exit(1)
	}
}

func buildHasher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*chain.Hasher, error) {
	var provider kms.KeyProvider
	var err error

	if cfg.Audit.KMS.Enabled {
		provider, err = kms.NewAWSKMSProvider(ctx, cfg.Audit.KMS.Region, cfg.Audit.KMS.KeyARN, cfg.Audit.KMS.EncryptedKey)
		if err != nil {
			return nil, err
		}
		logger.Info("audit hash key sourced from kms", "key_arn", cfg.Audit.KMS.KeyARN)
	} else {
		provider, err = kms.NewLocalProvider(cfg.Audit.HMACKey)
		if err != nil {
			return nil, err
		}
	}

	key, err := execution.WithRetry(ctx, 3, 250*time.Millisecond, 2*time.Second, provider.HMACKey)
	if err != nil {
		return nil, err
	}
	return chain.NewHasher(key)
}
