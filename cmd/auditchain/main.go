// auditchain is the operator CLI: one-shot chain verification and schema
// migrations. The long-running API server lives in cmd/auditchaind.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/clarimed/auditchain/internal/chain"
	apperrors "github.com/clarimed/auditchain/internal/errors"
	"github.com/clarimed/auditchain/internal/infra/config"
	"github.com/clarimed/auditchain/internal/infra/kms"
	"github.com/clarimed/auditchain/internal/infra/persistence"
	"github.com/clarimed/auditchain/internal/service"
	"github.com/clarimed/auditchain/pkg/execution"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "auditchain",
		Short: "Operate the clinical audit-trail integrity service",
	}
	root.AddCommand(verifyCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func verifyCmd() *cobra.Command {
	var incremental bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Walk the audit chain once, record the run and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			cfg, err := config.Load(os.Getenv("AUDITCHAIN_CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			hasher, err := buildHasher(ctx, cfg)
			if err != nil {
				return err
			}

			pool, err := persistence.NewConnectionPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer pool.Close()

			entries := persistence.NewEntryRepository(pool, logger)
			runs := persistence.NewRunRepository(pool)
			verifier := chain.NewVerifier(hasher, entries, cfg.Verification.BatchSize)
			verification := service.NewVerificationService(verifier, runs, service.NewLogNotifier(logger), logger)

			run, err := verification.Run(ctx, service.VerificationOptions{Incremental: incremental})
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))

			if !run.Intact {
				fmt.Fprintln(os.Stderr, apperrors.ErrChainBroken)
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&incremental, "incremental", false, "resume from the last intact run's cursor instead of walking from genesis")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(os.Getenv("AUDITCHAIN_CONFIG_PATH"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			m, err := migrate.New("file://migrations", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to create migration instance: %w", err)
			}

			if err := m.Up(); err != nil && err != migrate.ErrNoChange {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("Migrations completed successfully.")

			// Verification step: list the tables migrations created.
			db, err := sql.Open("postgres", cfg.Database.URL)
			if err != nil {
				return fmt.Errorf("failed to connect for verification: %w", err)
			}
			defer db.Close()

			rows, err := db.Query(`SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`)
			if err != nil {
				return fmt.Errorf("failed to query tables: %w", err)
			}
			defer rows.Close()

			for rows.Next() {
				var tableName string
				if err := rows.Scan(&tableName); err != nil {
					return fmt.Errorf("failed to scan table name: %w", err)
				}
				fmt.Printf("- %s\n", tableName)
			}
			return rows.Err()
		},
	}
}

func buildHasher(ctx context.Context, cfg *config.Config) (*chain.Hasher, error) {
	var provider kms.KeyProvider
	var err error

	if cfg.Audit.KMS.Enabled {
		provider, err = kms.NewAWSKMSProvider(ctx, cfg.Audit.KMS.Region, cfg.Audit.KMS.KeyARN, cfg.Audit.KMS.EncryptedKey)
	} else {
		provider, err = kms.NewLocalProvider(cfg.Audit.HMACKey)
	}
	if err != nil {
		return nil, err
	}

	key, err := execution.WithRetry(ctx, 3, 250*time.Millisecond, 2*time.Second, provider.HMACKey)
	if err != nil {
		return nil, err
	}
	return chain.NewHasher(key)
}
