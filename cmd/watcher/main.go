package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ledgerwatch/internal/alert"
	"ledgerwatch/internal/config"
	"ledgerwatch/internal/domain"
	"ledgerwatch/internal/ledger"
	"ledgerwatch/internal/monitor"
	"ledgerwatch/internal/observability"
	"ledgerwatch/internal/registry"
	"ledgerwatch/internal/remote"
	"ledgerwatch/internal/remote/stub"
	"ledgerwatch/internal/storage"
	chstore "ledgerwatch/internal/storage/clickhouse"
	"ledgerwatch/internal/storage/memory"
	"ledgerwatch/internal/storage/migrations"
	pgstore "ledgerwatch/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Ledger RPC HTTP endpoint (overrides config)")
	wsEndpoint := flag.String("ws-endpoint", "", "Ledger WebSocket endpoint (overrides config)")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string (overrides config)")
	addresses := flag.String("addresses", "", "Comma-separated addresses to watch (in addition to config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	useStub := flag.Bool("use-stub", false, "Use a stub ledger client (no network, for local runs)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *rpcEndpoint, *wsEndpoint, *postgresDSN, *addresses, *useMemory, *metricsAddr)

	logger, err := newLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()

		select {
		case sig := <-sigCh:
			logger.Error().Str("signal", sig.String()).Msg("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Error().Msg("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, *useStub)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("watcher failed")
	}
	logger.Info().Msg("shutdown complete")
}

// loadConfig reads the YAML config, falling back to built-in defaults
// when no path is given so flag-only invocations still work.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadWithEnv(path)
	}
	return config.Parse([]byte("remote:\n  rpc_url: http://localhost:9000\n"))
}

func applyFlagOverrides(cfg *config.Config, rpcEndpoint, wsEndpoint, postgresDSN, addresses string, useMemory bool, metricsAddr string) {
	if rpcEndpoint != "" {
		cfg.Remote.RPCURL = rpcEndpoint
	}
	if wsEndpoint != "" {
		cfg.Remote.WSURL = wsEndpoint
	}
	if postgresDSN != "" {
		cfg.Storage.Backend = "postgres"
		cfg.Storage.PostgresDSN = postgresDSN
	}
	if useMemory {
		cfg.Storage.Backend = "memory"
	}
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddr = metricsAddr
	}
	for _, addr := range strings.Split(addresses, ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			cfg.Addresses = append(cfg.Addresses, config.WatchedAddress{Address: addr})
		}
	}
}

func newLogger(level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("parse log level: %w", err)
	}

	var w = os.Stdout
	logger := zerolog.New(w)
	if format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	}
	return logger.Level(lvl).With().Timestamp().Logger(), nil
}

func run(ctx context.Context, logger zerolog.Logger, cfg *config.Config, useStub bool) error {
	metrics := observability.NewMetrics("ledgerwatch")

	// Stores.
	var (
		watchedStore  storage.WatchedAddressStore = memory.NewWatchedAddressStore()
		alertLogStore storage.AlertLogStore       = memory.NewAlertLogStore()
		archive       storage.TransactionArchive  = memory.NewTransactionArchive()
	)

	if cfg.Storage.Backend == "postgres" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.ApplyPostgres(ctx, pool.Pool); err != nil {
			return fmt.Errorf("apply postgres migrations: %w", err)
		}

		watchedStore = pgstore.NewWatchedAddressStore(pool)
		alertLogStore = pgstore.NewAlertLogStore(pool)
	}

	if cfg.Storage.ClickHouse.Enabled {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouse.DSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.ApplyClickHouse(ctx, conn); err != nil {
			return fmt.Errorf("apply clickhouse migrations: %w", err)
		}

		archive = chstore.NewTransactionArchive(conn)
	}

	// Remote client.
	var client remote.Client
	if useStub {
		logger.Warn().Msg("running against a stub ledger client")
		client = stub.NewClient()
	} else {
		client = remote.NewHTTPClient(cfg.Remote.RPCURL,
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithMaxRetries(cfg.Remote.MaxRetries),
			remote.WithRetryDelay(cfg.Remote.RetryDelay),
			remote.WithMetrics(metrics),
		)
	}

	// Registry, seeded from the store and the config.
	reg := registry.New()
	if err := seedRegistry(ctx, reg, watchedStore, cfg.Addresses, logger); err != nil {
		return err
	}
	if reg.Len() == 0 {
		logger.Warn().Msg("no watched addresses configured")
	}

	// Alert dispatcher.
	sinks, sinkCleanup, err := buildSinks(cfg.Alerts.Sinks)
	if err != nil {
		return fmt.Errorf("build alert sinks: %w", err)
	}
	defer sinkCleanup()

	dispatcher := alert.NewDispatcher(alert.Config{
		LowBalanceThresholds:   cfg.Alerts.LowBalanceThresholds,
		LargeTransferThreshold: cfg.Alerts.LargeTransferThreshold,
		Cooldown:               cfg.Alerts.Cooldown,
		FrequencyBound:         cfg.Alerts.FrequencyBound,
		FrequencyWindow:        cfg.Alerts.FrequencyWindow,
		HistorySize:            cfg.Alerts.HistorySize,
	},
		alert.WithSinks(sinks...),
		alert.WithLogger(logger.With().Str("component", "alerts").Logger()),
		alert.WithMetrics(metrics),
		alert.WithAlertLogStore(alertLogStore),
	)
	go dispatcher.RunCooldownSweeper(ctx, cfg.Alerts.Cooldown)

	// Ledger and pipeline.
	book := ledger.New(ledger.WithMaxHistory(cfg.Monitoring.MaxHistoryRecords))

	poller := monitor.NewPoller(monitor.PollerOptions{
		Client:        client,
		Registry:      reg,
		Dispatcher:    dispatcher,
		PollInterval:  cfg.Monitoring.PollInterval,
		FetchLimit:    cfg.Monitoring.FetchLimit,
		ForceLimit:    cfg.Monitoring.ForceLimit,
		MaxConcurrent: cfg.Monitoring.MaxConcurrent,
		BufferSize:    cfg.Monitoring.BufferSize,
		Strategy:      monitor.WatermarkStrategy(cfg.Monitoring.WatermarkStrategy),
		Logger:        logger.With().Str("component", "poller").Logger(),
		Metrics:       metrics,
	})

	events := make(chan domain.TransferEvent, cfg.Monitoring.BufferSize)
	go forwardEvents(poller.Events(), events)

	// Optional low-latency stream alongside polling. Streamed events
	// advance the watermark so the next poll does not re-emit them.
	if cfg.Remote.WSURL != "" && !useStub {
		ws, err := remote.NewWSClient(ctx, cfg.Remote.WSURL, nil)
		if err != nil {
			return fmt.Errorf("connect websocket: %w", err)
		}
		defer ws.Close()

		sub, err := ws.SubscribeTransfers(ctx, reg.Snapshot())
		if err != nil {
			return fmt.Errorf("subscribe transfers: %w", err)
		}
		go forwardStream(ctx, sub, reg, events, logger, metrics)
		logger.Info().Msg("websocket stream connected")
	}

	runner := monitor.NewRunner(monitor.RunnerOptions{
		Events:          events,
		Ledger:          book,
		Dispatcher:      dispatcher,
		Archive:         archive,
		CleanupInterval: cfg.Monitoring.CleanupInterval,
		CleanupMaxAge:   cfg.Monitoring.CleanupMaxAge,
		Logger:          logger.With().Str("component", "runner").Logger(),
		Metrics:         metrics,
	})

	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.ListenAddr, cfg.Metrics.Path, client, logger)
	}

	poller.Start(ctx)
	defer poller.Stop()

	logger.Info().
		Int("addresses", reg.Len()).
		Dur("interval", cfg.Monitoring.PollInterval).
		Msg("watcher started")

	runner.Run(ctx)
	return ctx.Err()
}

// seedRegistry loads persisted watched addresses, then merges the config
// seed list into both the registry and the store.
func seedRegistry(ctx context.Context, reg *registry.Registry, store storage.WatchedAddressStore, seed []config.WatchedAddress, logger zerolog.Logger) error {
	persisted, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list watched addresses: %w", err)
	}
	for _, wa := range persisted {
		if wa.Disabled {
			continue
		}
		if err := reg.Add(wa.Address); err != nil {
			logger.Warn().Err(err).Msg("skipping persisted address")
		}
	}

	for _, wa := range seed {
		if err := reg.Add(wa.Address); err != nil {
			return fmt.Errorf("invalid configured address: %w", err)
		}
		err := store.Insert(ctx, &storage.WatchedAddress{
			Address: wa.Address,
			Label:   wa.Label,
			AddedAt: time.Now().Unix(),
		})
		if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("persist watched address: %w", err)
		}
	}
	return nil
}

func buildSinks(cfg config.SinkConfig) ([]alert.Sink, func(), error) {
	var (
		sinks   []alert.Sink
		closers []func()
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Console.Enabled {
		sinks = append(sinks, alert.NewConsoleSink())
	}
	if cfg.File.Enabled {
		fs, err := alert.NewFileSink(cfg.File.Path)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		sinks = append(sinks, fs)
		closers = append(closers, func() { fs.Close() })
	}
	if cfg.Webhook.Enabled {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Webhook.URL))
	}
	if cfg.Email.Enabled {
		sinks = append(sinks, alert.NewEmailSink(alert.EmailConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
		}))
	}
	return sinks, cleanup, nil
}

func forwardEvents(in <-chan domain.TransferEvent, out chan<- domain.TransferEvent) {
	for ev := range in {
		out <- ev
	}
}

func forwardStream(ctx context.Context, sub <-chan remote.EventRecord, reg *registry.Registry, out chan<- domain.TransferEvent, logger zerolog.Logger, metrics *observability.Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec, ok := <-sub:
			if !ok {
				return
			}
			ev, err := monitor.ParseRecord(rec)
			if err != nil {
				logger.Warn().Err(err).Msg("dropped unparseable streamed record")
				metrics.EventsDropped.WithLabelValues("parse").Inc()
				continue
			}
			select {
			case out <- ev:
				metrics.EventsEmitted.Inc()
				ts := time.Unix(ev.Timestamp, 0)
				reg.SetWatermark(ev.Sender, ts)
				reg.SetWatermark(ev.Recipient, ts)
			case <-ctx.Done():
				return
			}
		}
	}
}

func startMetricsServer(addr, path string, client remote.Client, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(path, observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !client.IsHealthy(r.Context()) {
			http.Error(w, "upstream unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics server listening")
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
}
