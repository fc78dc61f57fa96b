// Command load-quality loads one quality/ownership feed file. The feed does
// not carry its snapshot date, so the operator supplies it.
//
// Usage: load-quality <as_of:YYYY-MM-DD> <csv_file_path>
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pinniped-data/hospital-etl/internal/config"
	"github.com/pinniped-data/hospital-etl/internal/load"
	"github.com/pinniped-data/hospital-etl/internal/logging"
	"github.com/pinniped-data/hospital-etl/internal/observability"
)

func main() {
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: load-quality <as_of:YYYY-MM-DD> <csv_file_path>")
		os.Exit(2)
	}
	asOf, err := time.Parse("2006-01-02", os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid as-of date %q, want YYYY-MM-DD\n", os.Args[1])
		os.Exit(2)
	}
	path := os.Args[2]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Load.Timeout)
	defer cancel()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	runner := load.NewRunner(pool, load.DefaultStatements(), cfg.Load.BatchSize,
		clockwork.NewRealClock(), observability.NewMetrics())

	sum, err := runner.RunQuality(ctx, asOf, path)
	if err != nil {
		slog.Error("load failed", "run_id", sum.RunID, "file", path, "error", err)
		pool.Close()
		os.Exit(1)
	}

	slog.Info("load complete",
		"run_id", sum.RunID,
		"file", path,
		"as_of", asOf.Format("2006-01-02"),
		"rows_read", sum.RowsRead,
		"rows_rejected", sum.RowsRejected,
		"batches_loaded", sum.BatchesLoaded,
		"batches_failed", sum.BatchesFailed,
		"profile_updates", sum.ProfileUpdates,
		"duration", sum.Duration,
	)
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.ConnConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
