package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	assert.NoError(t, err)
	assert.NotNil(t, m)
}

func TestNewMetricsWithoutRegistry(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	// Collectors still work when unregistered.
	m.IncStatusEvents()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.statusEventsTotal))
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestMetricsSetConnectionStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.SetMQTTConnectionStatus(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mqttConnectionStatus))

	m.SetMQTTConnectionStatus(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.mqttConnectionStatus))
}

func TestMetricsIncrementCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.IncMQTTConnectAttempts("error")
	m.IncMQTTConnectAttempts("error")
	m.IncMQTTConnectAttempts("success")
	m.IncMQTTReconnects()
	m.IncPublishesTotal("volume", "success")
	m.IncPublishesTotal("volume", "success")
	m.IncPublishesTotal("mute", "error")
	m.IncStatusEvents()
	m.IncMuteSuppressed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.mqttConnectAttempts.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mqttConnectAttempts.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.mqttReconnects))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.publishesTotal.WithLabelValues("volume", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.publishesTotal.WithLabelValues("mute", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.statusEventsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.muteSuppressedTotal))
}

func TestMetricsDeviceState(t *testing.T) {
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.SetVolume(73)
	m.SetMuted(true)

	assert.Equal(t, float64(73), testutil.ToFloat64(m.volumePercent))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.muted))
}
