package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/uhra/uhra/internal/config"
	"github.com/uhra/uhra/internal/domain/records"
	"github.com/uhra/uhra/internal/platform/db"
	"github.com/uhra/uhra/internal/platform/metrics"
	"github.com/uhra/uhra/internal/platform/sandbox"
	"github.com/uhra/uhra/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "uhra-server",
		Short:        "Health record access API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(lookupCmd())
	rootCmd.AddCommand(inspectCmd())
	return rootCmd
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	logger := zerolog.New(out).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// storage is the dataset repository selected by RECORDS_SOURCE together
// with whatever has to be released on exit.
type storage struct {
	repo  records.DatasetRepository
	pool  *pgxpool.Pool
	close func()
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	switch cfg.RecordsSource {
	case config.SourcePostgres:
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
			Attempts: 5,
			Backoff:  2 * time.Second,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &storage{
			repo:  records.NewPGRepo(pool, cfg.RecordsKey),
			pool:  pool,
			close: pool.Close,
		}, nil

	case config.SourceLevelDB:
		repo, err := records.OpenLevelRepo(cfg.LevelDBPath, cfg.RecordsKey)
		if err != nil {
			return nil, err
		}
		return &storage{
			repo: repo,
			close: func() {
				if err := repo.Close(); err != nil {
					logger.Warn().Err(err).Msg("failed to close leveldb")
				}
			},
		}, nil

	default:
		return &storage{repo: records.NewFileRepo(cfg.RecordsPath), close: func() {}}, nil
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the record access API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Str("source", cfg.RecordsSource).Msg("failed to open dataset source")
		return err
	}
	defer store.close()

	m := metrics.New()
	svc := records.NewService(store.repo, m)

	// A dataset that cannot be read yet is not fatal; requests answer 500
	// until it is.
	if ds, err := svc.LoadDataset(ctx); err != nil {
		logger.Warn().Err(err).Str("source", svc.Source()).Msg("dataset not readable at startup")
	} else {
		logger.Info().Str("source", svc.Source()).Str("shape", ds.Shape().String()).
			Int("records", ds.Len()).Msg("dataset loaded")
	}

	e := server.New(server.Deps{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Metrics: m,
		Pool:    store.pool,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("source", svc.Source()).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a demo dataset to the configured source",
		RunE: func(cmd *cobra.Command, args []string) error {
			shapeName, _ := cmd.Flags().GetString("shape")
			count, _ := cmd.Flags().GetInt("count")
			seed, _ := cmd.Flags().GetInt64("seed")
			if count < 0 {
				return fmt.Errorf("--count must not be negative, got %d", count)
			}

			shape, err := records.ParseShape(shapeName)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			w, ok := store.repo.(records.DatasetWriter)
			if !ok {
				return fmt.Errorf("source %q does not accept writes", store.repo.Source())
			}

			sc := sandbox.DefaultSeedConfig()
			sc.Shape = shape
			sc.SyntheticCount = count
			sc.Seed = seed
			doc, recs, err := sandbox.Generate(sc)
			if err != nil {
				return err
			}
			if err := w.Store(ctx, doc); err != nil {
				return fmt.Errorf("store dataset: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d record(s) as %s into %s.\n", len(recs), shape, store.repo.Source())
			return nil
		},
	}
	cmd.Flags().String("shape", "sequence", "Dataset layout: sequence, keyed or wrapped")
	cmd.Flags().Int("count", 20, "Number of synthetic records added after the demo patients")
	cmd.Flags().Int64("seed", 1, "Random seed, 0 for a time-based seed")
	return cmd
}

func lookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <patient-id>",
		Short: "Resolve one record through the access rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, _ := cmd.Flags().GetString("user-id")
			role, _ := cmd.Flags().GetString("role")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			svc := records.NewService(store.repo, nil)
			rec, err := svc.GetPatientRecord(ctx, userID, role, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(rec))
			return nil
		},
	}
	cmd.Flags().String("user-id", "", "Requester id")
	cmd.Flags().String("role", "hospital", "Requester role: hospital or patient")
	return cmd
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Report the shape and size of the configured dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			store, err := openStorage(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.close()

			svc := records.NewService(store.repo, nil)
			ds, err := svc.LoadDataset(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-8s %s\n", "SOURCE", svc.Source())
			fmt.Fprintf(out, "%-8s %s\n", "SHAPE", ds.Shape())
			fmt.Fprintf(out, "%-8s %d\n", "RECORDS", ds.Len())
			return nil
		},
	}
}
