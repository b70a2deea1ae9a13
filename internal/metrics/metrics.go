package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chromecast2mqtt"

// Metrics holds the bridge's prometheus collectors
type Metrics struct {
	mqttConnectionStatus prometheus.Gauge
	mqttConnectAttempts  *prometheus.CounterVec
	mqttReconnects       prometheus.Counter
	publishesTotal       *prometheus.CounterVec
	statusEventsTotal    prometheus.Counter
	muteSuppressedTotal  prometheus.Counter
	volumePercent        prometheus.Gauge
	muted                prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil registerer leaves the collectors unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		mqttConnectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connection_status",
			Help:      "Current MQTT connection status (0 = disconnected, 1 = connected)",
		}),
		mqttConnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_connect_attempts_total",
			Help:      "Initial MQTT connect attempts by result",
		}, []string{"result"}),
		mqttReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_reconnects_total",
			Help:      "Automatic MQTT reconnect attempts after a connection loss",
		}),
		publishesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Messages published by topic suffix and result",
		}, []string{"topic", "result"}),
		statusEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_events_total",
			Help:      "Device status events received",
		}),
		muteSuppressedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mute_suppressed_total",
			Help:      "Mute publishes skipped because the state did not change",
		}),
		volumePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "volume_percent",
			Help:      "Last forwarded volume level in percent",
		}),
		muted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "muted",
			Help:      "Last forwarded mute state (0 = off, 1 = on)",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.mqttConnectionStatus,
		m.mqttConnectAttempts,
		m.mqttReconnects,
		m.publishesTotal,
		m.statusEventsTotal,
		m.muteSuppressedTotal,
		m.volumePercent,
		m.muted,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *Metrics) SetMQTTConnectionStatus(connected bool) {
	m.mqttConnectionStatus.Set(boolToFloat(connected))
}

func (m *Metrics) IncMQTTConnectAttempts(result string) {
	m.mqttConnectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncMQTTReconnects() {
	m.mqttReconnects.Inc()
}

func (m *Metrics) IncPublishesTotal(topic, result string) {
	m.publishesTotal.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) IncStatusEvents() {
	m.statusEventsTotal.Inc()
}

func (m *Metrics) IncMuteSuppressed() {
	m.muteSuppressedTotal.Inc()
}

func (m *Metrics) SetVolume(percent int) {
	m.volumePercent.Set(float64(percent))
}

func (m *Metrics) SetMuted(muted bool) {
	m.muted.Set(boolToFloat(muted))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
