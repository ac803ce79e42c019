// Package main is the entry point for the zonewatch archiver.
//
// The archiver snapshots the live transition log into compressed batches in
// the transition_archives table and prunes batches older than the retention
// window. Each pass is idempotent: an unchanged log hashes to the same value
// and is skipped, so overlapping schedules and restarts are harmless.
//
// It runs as a long-lived process on ARCHIVE_INTERVAL, or performs a single
// pass and exits when invoked with -once (cron-style scheduling, manual
// backfills before maintenance windows).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"zonewatch/internal/archive"
	"zonewatch/internal/config"
	"zonewatch/internal/db"
	"zonewatch/internal/metrics"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

// passTimeout bounds one archival pass. A pass is a handful of bounded
// queries plus one insert; anything slower indicates a stuck database.
const passTimeout = time.Minute

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// The types.Logger interface requires Info, Error, Warn, and With methods.
// slog.Logger satisfies the first three but With returns *slog.Logger, not
// types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

func main() {
	once := flag.Bool("once", false, "run a single archival pass and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: archiver [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Snapshot the zonewatch transition log into the archive table.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(*once); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run wires the archiver's dependencies and hands off to the selected mode.
func run(once bool) error {
	// Load configuration. For local development, pass nil as the SecretProvider
	// since SSM resolution is bypassed when APP_ENV=local.
	var secrets config.SecretProvider
	if os.Getenv("APP_ENV") != "local" {
		secrets = config.NewSSMProvider(os.Getenv("AWS_REGION"))
	}
	cfg, err := config.LoadConfig(secrets)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("zonewatch archiver starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"interval", cfg.Archive.Interval.String(),
		"retention", cfg.Archive.Retention.String(),
		"once", once,
	)

	typed := &slogAdapter{logger: logger}
	clock := types.RealClock{}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	var cwClient metrics.CloudWatchClient
	if cfg.Observability.EnableMetrics {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS SDK config: %w", err)
		}
		cwClient = cloudwatch.NewFromConfig(awsCfg)
	}
	rec := metrics.NewRecorder(cwClient, typed)

	// The archiver reads the same persisted log the daemon appends to.
	blob := db.NewKVRepo(pool)
	events := state.NewEventLog(blob, cfg.Session.EventLogCapacity, typed, rec)
	repo := db.NewArchiveRepo(pool)

	archiver, err := archive.NewArchiver(events, repo, cfg.Archive.Retention, clock, typed, rec)
	if err != nil {
		return fmt.Errorf("building archiver: %w", err)
	}

	if once {
		return runOnce(ctx, archiver)
	}
	return runLoop(ctx, archiver, cfg.Archive.Interval, logger)
}

// runOnce executes a single archival pass. The pass outcome is the process
// exit status, so schedulers can alert on failures.
func runOnce(ctx context.Context, archiver *archive.Archiver) error {
	passCtx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	if _, err := archiver.Run(passCtx); err != nil {
		return fmt.Errorf("archival pass: %w", err)
	}
	return nil
}

// runLoop executes archival passes on the configured interval until the
// context is cancelled. Pass failures are logged and retried on the next
// tick; a transient database outage must not kill the process.
func runLoop(ctx context.Context, archiver *archive.Archiver, interval time.Duration, logger *slog.Logger) error {
	// One pass up front. Waiting a full interval after boot would leave a
	// fresh deployment without any archive coverage.
	pass(ctx, archiver, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("archiver stopped")
			return nil
		case <-ticker.C:
			pass(ctx, archiver, logger)
		}
	}
}

// pass runs one bounded archival pass, absorbing its failure.
func pass(ctx context.Context, archiver *archive.Archiver, logger *slog.Logger) {
	passCtx, cancel := context.WithTimeout(ctx, passTimeout)
	defer cancel()

	if _, err := archiver.Run(passCtx); err != nil {
		logger.Error("archival pass failed", "error", err)
	}
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}

// Compile-time assertion that slogAdapter implements types.Logger.
var _ types.Logger = (*slogAdapter)(nil)
