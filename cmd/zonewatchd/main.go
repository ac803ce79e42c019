// Package main is the entry point for the zonewatch daemon.
//
// It loads the configuration, connects the PostgreSQL state store, the MQTT
// positioning broker, and the push gateway, assembles the monitoring session
// controller on top of them, and serves the operator HTTP API with the core
// chassis (middleware, routing, health checks).
//
// With SESSION_AUTOSTART enabled (the default) the monitoring session is
// started during boot; otherwise it waits for POST /v1/session/start.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
// Shutdown stops the HTTP server only. The monitoring session is left
// running: the background region watch is registered with the device agent
// and the zone occupancy is persisted in the database, so transition
// detection carries over to the next process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"zonewatch/internal/api/handlers"
	"zonewatch/internal/catalog"
	"zonewatch/internal/config"
	"zonewatch/internal/core"
	"zonewatch/internal/db"
	"zonewatch/internal/external"
	"zonewatch/internal/metrics"
	"zonewatch/internal/notify"
	"zonewatch/internal/notify/push"
	"zonewatch/internal/positioning"
	"zonewatch/internal/queue"
	"zonewatch/internal/reconcile"
	"zonewatch/internal/session"
	"zonewatch/internal/state"
	"zonewatch/internal/types"
)

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
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
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
	logger.Info("zonewatch daemon starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"metric_namespace", cfg.Observability.MetricNamespace,
	)

	typed := &slogAdapter{logger: logger}
	clock := types.RealClock{}
	ctx := context.Background()

	// Database pool and the persisted session state on top of it.
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	blob := db.NewKVRepo(pool)

	// AWS SDK configuration for CloudWatch and SQS. The SDK picks up
	// AWS_ENDPOINT_URL on its own for LocalStack.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS SDK config: %w", err)
	}

	var cwClient metrics.CloudWatchClient
	if cfg.Observability.EnableMetrics {
		cwClient = cloudwatch.NewFromConfig(awsCfg)
	}
	rec := metrics.NewRecorder(cwClient, typed)

	events := state.NewEventLog(blob, cfg.Session.EventLogCapacity, typed, rec)
	occupancy := state.NewOccupancyStore(blob, clock, typed, rec)

	// Positioning over the device agent's MQTT session.
	provider, err := positioning.New(positioning.Config{
		BrokerURL:   cfg.Broker.URL,
		ClientID:    cfg.Broker.ClientID,
		Username:    cfg.Broker.Username,
		Password:    cfg.Broker.Password.Unmask(),
		TopicPrefix: cfg.Broker.TopicPrefix,
		MaxFixAge:   cfg.Broker.MaxFixAge,
	}, clock, typed)
	if err != nil {
		return fmt.Errorf("building positioning provider: %w", err)
	}
	if err := provider.Connect(ctx); err != nil {
		return fmt.Errorf("connecting positioning broker: %w", err)
	}
	defer provider.Close()

	// Push gateway channel behind the shared resilient HTTP client.
	gatewayClient := external.NewBaseClient(
		&http.Client{Timeout: cfg.PushGateway.Timeout},
		"push-gateway",
		external.DefaultRetryPolicy(),
		"zonewatch/"+cfg.Build.Version,
	)
	channel, err := push.NewChannel(push.Config{
		BaseURL:     cfg.PushGateway.BaseURL,
		APIKey:      cfg.PushGateway.APIKey,
		DeviceToken: cfg.PushGateway.DeviceToken,
		ChannelID:   cfg.PushGateway.ChannelID,
		ChannelName: cfg.PushGateway.ChannelName,
	}, gatewayClient, typed)
	if err != nil {
		return fmt.Errorf("building push channel: %w", err)
	}

	cat, err := loadCatalog(cfg.Session.ZonesFile)
	if err != nil {
		return fmt.Errorf("loading zone catalog: %w", err)
	}
	logger.Info("zone catalog loaded", "zones", cat.Len())

	dispatcher := notify.NewDispatcher(channel, typed, rec)

	// Downstream fanout is optional; an empty queue URL leaves the sink nil
	// and the reconciler skips publishing entirely.
	var sink reconcile.TransitionSink
	if cfg.AWS.TransitionQueue != "" {
		sink = queue.NewTransitionPublisher(sqs.NewFromConfig(awsCfg), cfg.AWS.TransitionQueue, typed)
		logger.Info("transition publishing enabled", "queue", cfg.AWS.TransitionQueue)
	}

	reconciler := reconcile.New(cat, provider, occupancy, events, dispatcher, sink, clock, typed, rec)

	controller := session.NewController(cat, provider, channel, reconciler, occupancy, clock, typed,
		types.WatchCadence{
			Interval:  cfg.Session.WatchInterval,
			DistanceM: cfg.Session.WatchDistanceM,
		})

	if cfg.Session.AutoStart {
		if err := controller.Start(ctx); err != nil {
			logger.Error("automatic session start failed; start it via POST /v1/session/start once the cause is resolved",
				"error", err,
			)
		}
	}

	// Build the server.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = rec
	srv.HealthProbes = []core.HealthProbe{
		core.NewProbe("database", pool.Ping),
		core.NewProbe("broker", provider.Ping),
		core.NewProbe("push_gateway", gatewayProbe(channel)),
	}

	zoneHandler := handlers.NewZoneHandler(cat, srv.Validator, logger)
	sessionHandler := handlers.NewSessionHandler(controller, logger)
	eventHandler := handlers.NewEventHandler(events, srv.Validator, logger)
	positionHandler := handlers.NewPositionHandler(provider, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		zoneHandler.RegisterRoutes,
		sessionHandler.RegisterRoutes,
		eventHandler.RegisterRoutes,
		positionHandler.RegisterRoutes,
	)

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return serveHTTP(srv, cfg, logger)
}

// serveHTTP runs the API server until a shutdown signal or a listener
// failure. Only the HTTP side is torn down here; the monitoring session keeps
// its background registration and persisted occupancy for the next process.
func serveHTTP(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("daemon stopped cleanly")
	return nil
}

// loadCatalog builds the zone catalog from the configured file, falling back
// to the built-in seed catalog when no file is configured.
func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.MustDefault(), nil
	}
	return catalog.LoadFile(path)
}

// gatewayProbe adapts the push channel's permission query into a
// reachability check. A denied grant is a definite answer from the gateway
// and counts as reachable; only transport and upstream failures mark the
// probe down.
func gatewayProbe(channel *push.Channel) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return gatewayReachable(channel.CheckPermission(ctx))
	}
}

// gatewayReachable collapses a permission answer into gateway liveness.
func gatewayReachable(err error) error {
	if appErr, ok := types.AsAppError(err); ok && appErr.Code == types.ErrCodePermissionNotifications {
		return nil
	}
	return err
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
