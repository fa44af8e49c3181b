// ABOUTME: Daemon command for running the percept collector as a service
// ABOUTME: Wires sinks, journal, profile cache, and the HTTP ingestion API

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/percept-io/percept/internal/analytics"
	"github.com/percept-io/percept/internal/api"
	"github.com/percept-io/percept/internal/config"
	"github.com/percept-io/percept/internal/journal"
	"github.com/percept-io/percept/internal/observability"
	"github.com/percept-io/percept/internal/profilecache"
	"github.com/percept-io/percept/internal/sink"
)

func newDaemonCmd() *cobra.Command {
	var (
		httpAddr string
		dataDir  string
		natsURL  string
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the tracking collector daemon",
		Long: `Start the percept daemon that accepts tracking calls over HTTP,
enriches them with request-derived properties, and forwards them to
the configured sinks (Mixpanel, NATS, local journal).

Configuration is loaded from the YAML config file layered over
defaults; flags override the file for the fields they cover.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTP.Addr = httpAddr
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if cmd.Flags().Changed("nats-url") {
				cfg.NATS.URL = natsURL
			}
			cfg.Log.Level = logLevel
			cfg.Log.Format = logFormat
			return runDaemon(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP address for the ingestion API")
	cmd.Flags().StringVar(&dataDir, "data-dir", config.DefaultDataDir(), "data directory for the event journal")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL for event fan-out (empty disables)")

	return cmd
}

func runDaemon(ctx context.Context, cfg *config.Config) error {
	// Set up logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "percept",
		Version:     version,
	}, os.Stdout)

	slog.SetDefault(logger)
	logger.Info("starting percept daemon",
		slog.String("version", version),
		slog.String("data_dir", cfg.DataDir),
		slog.String("http_addr", cfg.HTTP.Addr),
	)

	// Ensure data directory exists.
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// Set up tracing.
	tp, err := observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:       cfg.Tracing.Enabled,
		ServiceName:   "percept",
		Version:       version,
		Endpoint:      cfg.Tracing.Endpoint,
		Insecure:      cfg.Tracing.Insecure,
		SamplingRatio: cfg.Tracing.SamplingRatio,
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown error", slog.String("error", err.Error()))
		}
	}()

	// Assemble the sink fan-out.
	var sinks []analytics.Client

	if cfg.Mixpanel.Token != "" {
		mixpanelSink, err := sink.NewMixpanel(sink.MixpanelConfig{
			Token:       cfg.Mixpanel.Token,
			EUResidency: cfg.Mixpanel.EUResidency,
		})
		if err != nil {
			return fmt.Errorf("creating mixpanel sink: %w", err)
		}
		// A failing backend sheds dispatches instead of slowing down
		// every tracked request.
		sinks = append(sinks, sink.NewBreaker(mixpanelSink, sink.BreakerConfig{}))
		logger.Info("mixpanel sink enabled", slog.Bool("eu_residency", cfg.Mixpanel.EUResidency))
	}

	if cfg.NATS.URL != "" {
		natsCfg := sink.DefaultNATSConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Subject != "" {
			natsCfg.Subject = cfg.NATS.Subject
		}
		natsSink, err := sink.NewNATS(natsCfg, logger)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer natsSink.Close()
		sinks = append(sinks, natsSink)
		logger.Info("nats sink enabled",
			slog.String("url", cfg.NATS.URL),
			slog.String("subject", natsCfg.Subject),
		)
	}

	var eventJournal *journal.Journal
	if cfg.Journal.Enabled {
		eventJournal, err = journal.Open(journal.Config{
			Path:       filepath.Join(cfg.DataDir, "journal"),
			SyncWrites: cfg.Journal.SyncWrites,
		})
		if err != nil {
			return fmt.Errorf("opening journal: %w", err)
		}
		defer eventJournal.Close()
		sinks = append(sinks, eventJournal)
		logger.Info("journal enabled", slog.String("path", filepath.Join(cfg.DataDir, "journal")))
	}

	if len(sinks) == 0 {
		logger.Warn("no sinks configured, tracked events will be discarded")
	}

	// Profile sync dedupe cache.
	var gate analytics.ProfileGate
	if cfg.Redis.Addr != "" {
		ttl, err := time.ParseDuration(cfg.Redis.TTL)
		if err != nil {
			return fmt.Errorf("invalid redis ttl %q: %w", cfg.Redis.TTL, err)
		}
		cache, err := profilecache.New(ctx, profilecache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      ttl,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer cache.Close()
		gate = cache
		logger.Info("profile dedupe cache enabled", slog.String("addr", cfg.Redis.Addr))
	}

	// Create the tracker.
	metrics := observability.NewMetrics()
	tracker := analytics.New(analytics.Config{
		Client:  sink.NewMulti(sinks...),
		Gate:    gate,
		Logger:  logger,
		Metrics: metrics,
	})

	// Create API handler and HTTP server.
	handler := api.NewHandler(api.HandlerConfig{
		Tracker: tracker,
		Journal: eventJournal,
		Metrics: metrics,
	})

	httpServer := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler.Routes(),
	}

	go func() {
		logger.Info("starting HTTP server", slog.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("daemon ready, accepting tracking calls")
	<-ctx.Done()

	logger.Info("shutting down daemon")

	// Graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", slog.String("error", err.Error()))
	}

	snap := metrics.Snapshot()
	logger.Info("daemon stopped", slog.String("totals", snap.String()))

	return nil
}
