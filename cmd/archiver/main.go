// Package main is the archival CLI. It exports indicator records older than
// the retention window to gzip JSONL files and prunes them from the live
// table. Intended to run from cron or an operator shell.
//
// Usage:
//
//	archiver [-at 2026-08] [-dry-run]
//
// -at pins the reference period for backfills; the default is the current
// UTC month. -dry-run lists what would be archived without touching data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"riskwatch/internal/archive"
	"riskwatch/internal/config"
	"riskwatch/internal/db"
	"riskwatch/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	at := flag.String("at", "", "reference period (YYYY-NN); default: current UTC month")
	dryRun := flag.Bool("dry-run", false, "report what would be archived without exporting or deleting")
	flag.Parse()

	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	now := time.Now().UTC()
	if *at != "" {
		period, err := types.ParsePeriod(*at)
		if err != nil {
			return fmt.Errorf("invalid -at value: %w", err)
		}
		now = time.Date(period.Year, time.Month(period.Index), 1, 0, 0, 0, 0, time.UTC)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	repos := db.NewRegistry(pool)
	archiver := archive.NewArchiver(repos.Indicators(), cfg.Archive, logger)

	if *dryRun {
		cutoff := archiver.CutoffFor(now)
		records, err := repos.Indicators().ListBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("dry run: %d records older than %s would be archived to %s\n",
			len(records), cutoff.String(), cfg.Archive.Dir)
		return nil
	}

	report, err := archiver.Run(ctx, now)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
