package main

import (
	"net/http"
	"time"

	"github.com/hellofresh/health-go/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chromecast2mqtt/config"
	"chromecast2mqtt/internal/stats"
)

const healthCheckTimeout = 5 * time.Second

// newHTTPServer exposes the health checks and the stats snapshot on a single
// listener. Prometheus metrics are added when reg is not nil.
func newHTTPServer(cfg config.MetricsConfig, reg *prometheus.Registry, st *stats.StatsCollector,
	mqttCheck, chromecastCheck health.CheckFunc) (*http.Server, error) {
	healthz, err := health.New(
		health.WithComponent(health.Component{
			Name:    "chromecast2mqtt",
			Version: version,
		}),
		health.WithChecks(
			health.Config{
				Name:    "mqtt",
				Timeout: healthCheckTimeout,
				Check:   mqttCheck,
			},
			health.Config{
				Name:    "chromecast",
				Timeout: healthCheckTimeout,
				Check:   chromecastCheck,
			},
		),
	)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	if reg != nil {
		mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			Registry:          reg,
			EnableOpenMetrics: true,
		}))
	}
	mux.Handle(cfg.HealthPath, healthz.Handler())
	mux.Handle(cfg.StatsPath, st)

	return &http.Server{
		Addr:              cfg.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, nil
}
