package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"chromecast2mqtt/config"
	"chromecast2mqtt/internal/broker"
	"chromecast2mqtt/internal/logger"
	"chromecast2mqtt/internal/metrics"
	"chromecast2mqtt/internal/stats"
)

const (
	// MQTT 3.1.1
	protocolVersion = 4
	// disconnectQuiesce is how long Disconnect waits for in-flight work, in ms
	disconnectQuiesce = 250
)

// Connection owns the single outbound connection to the MQTT broker
type Connection struct {
	logger    *logger.Logger
	cfg       config.MQTTConfig
	brokerURL string

	client    mqtt.Client
	newClient ClientFactory
	retry     broker.RetryPolicy
	sleep     SleepFunc

	metrics *metrics.Metrics
	stats   *stats.StatsCollector

	state atomic.Int32
}

// Option configures a Connection before it connects
type Option func(*Connection)

// WithClientFactory replaces mqtt.NewClient
func WithClientFactory(f ClientFactory) Option {
	return func(c *Connection) {
		c.newClient = f
	}
}

// WithRetryPolicy overrides the retry policy taken from the configuration
func WithRetryPolicy(p broker.RetryPolicy) Option {
	return func(c *Connection) {
		c.retry = p
	}
}

// WithSleep replaces the wait between connect attempts
func WithSleep(f SleepFunc) Option {
	return func(c *Connection) {
		c.sleep = f
	}
}

// WithMetrics records connection and publish metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) {
		c.metrics = m
	}
}

// WithStats records connection and publish counters
func WithStats(s *stats.StatsCollector) Option {
	return func(c *Connection) {
		c.stats = s
	}
}

// Open builds the client from cfg and blocks until the broker accepts the
// connection. Failed attempts are logged and retried after the policy delay.
// Open only returns early when ctx is cancelled, when a bounded retry policy
// is exhausted, or when the TLS material cannot be loaded.
func Open(ctx context.Context, cfg config.MQTTConfig, log *logger.Logger, opts ...Option) (*Connection, error) {
	c := &Connection{
		logger:    log,
		cfg:       cfg,
		brokerURL: brokerURL(cfg),
		newClient: mqtt.NewClient,
		retry:     broker.DefaultRetryPolicy(),
		sleep:     sleepContext,
	}
	// A zero delay keeps the default
	if cfg.RetryDelay > 0 {
		c.retry.Delay = cfg.RetryDelay
	}
	c.retry.MaxAttempts = cfg.MaxAttempts
	for _, opt := range opts {
		opt(c)
	}

	clientOpts, err := c.clientOptions()
	if err != nil {
		return nil, err
	}
	c.client = c.newClient(clientOpts)

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// clientOptions prepares the paho options: identity, credentials, session
// continuity, reconnect behaviour and optional mutual TLS.
func (c *Connection) clientOptions() (*mqtt.ClientOptions, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(c.brokerURL).
		SetClientID(c.cfg.ClientID).
		SetUsername(c.cfg.Username).
		SetPassword(c.cfg.Password).
		SetProtocolVersion(protocolVersion).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetMaxReconnectInterval(time.Minute)

	opts.OnConnect = c.handleConnect
	opts.OnConnectionLost = c.handleDisconnect
	opts.OnReconnecting = c.handleReconnecting

	if c.cfg.TLS.Enabled() {
		c.logger.Info("enable x509 authentication",
			"caFile", c.cfg.TLS.CAFile,
			"certFile", c.cfg.TLS.CertFile)
		tlsConfig, err := newTLSConfig(c.cfg.TLS.CertFile, c.cfg.TLS.KeyFile, c.cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	} else if c.cfg.TLS.Partial() {
		c.logger.Warn("incomplete TLS configuration, connecting without TLS",
			"caFile", c.cfg.TLS.CAFile,
			"certFile", c.cfg.TLS.CertFile,
			"keyFile", c.cfg.TLS.KeyFile)
	}

	return opts, nil
}

// connect runs the fixed-delay retry loop
func (c *Connection) connect(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		c.transition(broker.StateConnecting)
		c.logger.Info("connecting to mqtt broker",
			"broker", c.brokerURL,
			"clientId", c.cfg.ClientID,
			"attempt", attempt)
		if c.stats != nil {
			c.stats.IncConnectAttempts()
		}

		err := c.tryConnect()
		if err == nil {
			c.transition(broker.StateConnected)
			c.safeMetricsUpdate(func(m *metrics.Metrics) {
				m.IncMQTTConnectAttempts("success")
				m.SetMQTTConnectionStatus(true)
			})
			c.logger.Info("connected to mqtt broker", "broker", c.brokerURL, "attempt", attempt)
			return nil
		}

		c.transition(broker.StateDisconnected)
		c.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncMQTTConnectAttempts("error")
		})
		c.logger.Error("unable to connect to mqtt broker",
			"broker", c.brokerURL,
			"attempt", attempt,
			"retryIn", c.retry.Delay.String(),
			"error", err)

		if c.retry.Exhausted(attempt) {
			return fmt.Errorf("%w after %d attempts: %w", broker.ErrRetriesExhausted, attempt, err)
		}
		if err := c.sleep(ctx, c.retry.Delay); err != nil {
			return fmt.Errorf("mqtt connect aborted: %w", err)
		}
	}
}

func (c *Connection) tryConnect() error {
	token := c.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("%w: %w", broker.ErrConnect, token.Error())
	}
	return nil
}

// Close disconnects from the broker and stops the client's network loop.
// Calls after the first are no-ops.
func (c *Connection) Close() {
	prev := broker.ConnectionState(c.state.Swap(int32(broker.StateClosed)))
	if prev == broker.StateClosed {
		return
	}

	c.logger.Info("disconnecting from mqtt broker", "broker", c.brokerURL)
	c.client.Disconnect(disconnectQuiesce)

	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetMQTTConnectionStatus(false)
	})
}

// State returns the current connection state
func (c *Connection) State() broker.ConnectionState {
	return broker.ConnectionState(c.state.Load())
}

// HealthCheck reports an error unless the connection is up
func (c *Connection) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	switch state := c.State(); state {
	case broker.StateConnected:
		return nil
	case broker.StateClosed:
		return broker.ErrClosed
	default:
		return fmt.Errorf("%w: %s", broker.ErrNotConnected, state)
	}
}

// transition moves to the given state unless the connection is closed
func (c *Connection) transition(to broker.ConnectionState) bool {
	for {
		cur := c.state.Load()
		if broker.ConnectionState(cur) == broker.StateClosed {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// handleConnect runs on the client's goroutine after every (re)connect
func (c *Connection) handleConnect(client mqtt.Client) {
	if !c.transition(broker.StateConnected) {
		return
	}
	c.logger.Debug("mqtt client connected", "broker", c.brokerURL)
	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetMQTTConnectionStatus(true)
	})
}

// handleDisconnect processes connection loss. The client reconnects on its own.
func (c *Connection) handleDisconnect(client mqtt.Client, err error) {
	if !c.transition(broker.StateDisconnected) {
		return
	}
	c.logger.Error("mqtt connection lost", "broker", c.brokerURL, "error", err)
	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetMQTTConnectionStatus(false)
	})
}

// handleReconnecting processes automatic reconnection attempts
func (c *Connection) handleReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("mqtt client reconnecting", "broker", c.brokerURL)
	c.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncMQTTReconnects()
	})
}

// safeMetricsUpdate safely updates metrics if they are enabled
func (c *Connection) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.TLS.Enabled() {
		scheme = "ssl"
	}
	return scheme + "://" + cfg.Host + ":" + strconv.Itoa(cfg.Port)
}

// newTLSConfig creates a mutual TLS configuration. Server certificates are
// verified against the CA pool.
func newTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caCert, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
