package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"chromecast2mqtt/config"
	"chromecast2mqtt/internal/broker"
	mqttbroker "chromecast2mqtt/internal/broker/mqtt"
	"chromecast2mqtt/internal/cast"
	"chromecast2mqtt/internal/forwarder"
	"chromecast2mqtt/internal/logger"
	"chromecast2mqtt/internal/metrics"
	"chromecast2mqtt/internal/stats"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to an optional YAML settings file (logging, metrics)")
	debug := flag.Bool("debug", false, "display debug logs")
	flag.Parse()

	// Load configuration before anything touches the network
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *debug {
		cfg.Logging.Level = "debug"
	}

	baseLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	logger := baseLogger.With("instance", uuid.NewString())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	logger.Info("chromecast2mqtt starting",
		"version", version,
		"chromecast", cfg.Chromecast.Host,
		"broker", cfg.MQTT.Host,
		"topicBase", cfg.MQTT.TopicBase,
		"tls", cfg.MQTT.TLS.Enabled())

	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Fatal("chromecast2mqtt stopped", "error", err)
	}
	logger.Info("chromecast2mqtt stopped")
	_ = logger.Sync()
}

// run wires the bridge and blocks until the device session ends. Every
// resource it acquires is released before it returns.
func run(ctx context.Context, cfg *config.Config, logger *logger.Logger) error {
	st := stats.NewStatsCollector()

	var metricsService *metrics.Metrics
	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		var err error
		metricsService, err = metrics.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("failed to create metrics service: %w", err)
		}
	}

	device := cast.NewDevice(cfg.Chromecast.Host, cfg.Chromecast.Port, logger,
		cast.WithUpdateInterval(cfg.Chromecast.UpdateInterval))

	// The connection only exists once Open returns; until then the health
	// endpoint reports the broker as not connected.
	var conn atomic.Pointer[mqttbroker.Connection]
	mqttCheck := func(ctx context.Context) error {
		c := conn.Load()
		if c == nil {
			return broker.ErrNotConnected
		}
		return c.HealthCheck(ctx)
	}

	// Health and stats are always served; metrics only when enabled
	server, err := newHTTPServer(cfg.Metrics, reg, st, mqttCheck, device.HealthCheck)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	go func() {
		logger.Info("starting http server",
			"address", cfg.Metrics.Address,
			"metricsEnabled", cfg.Metrics.Enabled,
			"healthPath", cfg.Metrics.HealthPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown http server", "error", err)
		}
	}()

	logger.Info("init mqtt connection")
	c, err := mqttbroker.Open(ctx, cfg.MQTT, logger,
		mqttbroker.WithMetrics(metricsService),
		mqttbroker.WithStats(st))
	if err != nil {
		return fmt.Errorf("failed to open mqtt connection: %w", err)
	}
	conn.Store(c)
	defer c.Close()

	fwd := forwarder.New(c, logger,
		forwarder.WithMetrics(metricsService),
		forwarder.WithStats(st))

	return serve(ctx, device, fwd, logger)
}

// serve attaches the forwarder to the session and blocks until it ends
func serve(ctx context.Context, session cast.Session, listener cast.StatusListener, logger *logger.Logger) error {
	session.RegisterStatusListener(listener)

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chromecast session: %w", err)
	}

	logger.Debug("listen chromecast events")
	if err := session.Join(ctx); err != nil {
		return fmt.Errorf("chromecast session ended: %w", err)
	}
	return nil
}
