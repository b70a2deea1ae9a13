package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredEnv = map[string]string{
	"CHROMECAST_HOST": "192.168.1.20",
	"MQTT_HOST":       "broker.local",
	"MQTT_PORT":       "8883",
	"MQTT_USERNAME":   "bridge",
	"MQTT_PASSWORD":   "secret",
	"MQTT_TOPIC_BASE": "home/livingroom/chromecast",
}

// setRequiredEnv sets every required variable except the ones listed in skip.
func setRequiredEnv(t *testing.T, skip ...string) {
	t.Helper()
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[s] = struct{}{}
	}
	for k, v := range requiredEnv {
		if _, ok := skipped[k]; ok {
			// t.Setenv restores the previous value, Unsetenv guarantees absence.
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
			continue
		}
		t.Setenv(k, v)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20", cfg.Chromecast.Host)
	assert.Equal(t, 8009, cfg.Chromecast.Port)
	assert.Equal(t, 10*time.Minute, cfg.Chromecast.UpdateInterval)
	assert.Equal(t, "broker.local", cfg.MQTT.Host)
	assert.Equal(t, 8883, cfg.MQTT.Port)
	assert.Equal(t, "bridge", cfg.MQTT.Username)
	assert.Equal(t, "secret", cfg.MQTT.Password)
	assert.Equal(t, "home/livingroom/chromecast", cfg.MQTT.TopicBase)
	assert.Equal(t, "chromecast2mqtt", cfg.MQTT.ClientID)
	assert.Equal(t, 10*time.Second, cfg.MQTT.RetryDelay)
	assert.Equal(t, 0, cfg.MQTT.MaxAttempts)
	assert.False(t, cfg.MQTT.TLS.Enabled())

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.OutputPath)
	assert.Equal(t, "json", cfg.Logging.Encoding)
	assert.Equal(t, ":2112", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "/status", cfg.Metrics.HealthPath)
	assert.Equal(t, "/stats", cfg.Metrics.StatsPath)
}

func TestLoadMissingRequired(t *testing.T) {
	for name := range requiredEnv {
		t.Run(name, func(t *testing.T) {
			setRequiredEnv(t, name)

			cfg, err := Load("")
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestLoadEmptyRequiredValueIsPresent(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MQTT_PASSWORD", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.MQTT.Password)
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric port", "MQTT_PORT", "mqtt"},
		{"port out of range", "MQTT_PORT", "70000"},
		{"zero chromecast port", "CHROMECAST_PORT", "0"},
		{"negative retry delay", "MQTT_CONNECT_RETRY_DELAY", "-1s"},
		{"negative max attempts", "MQTT_CONNECT_MAX_ATTEMPTS", "-3"},
		{"invalid log level", "LOG_LEVEL", "verbose"},
		{"invalid log encoding", "LOG_ENCODING", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load("")
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestTLSActivation(t *testing.T) {
	tests := []struct {
		name        string
		ca          string
		cert        string
		key         string
		wantEnabled bool
		wantPartial bool
	}{
		{"none", "", "", "", false, false},
		{"all", "ca.pem", "client.pem", "client.key", true, false},
		{"ca only", "ca.pem", "", "", false, true},
		{"missing key", "ca.pem", "client.pem", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("CA_CERTS_FILE", tt.ca)
			t.Setenv("CERT_FILE", tt.cert)
			t.Setenv("KEY_FILE", tt.key)

			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.wantEnabled, cfg.MQTT.TLS.Enabled())
			assert.Equal(t, tt.wantPartial, cfg.MQTT.TLS.Partial())
		})
	}
}

func TestLoadSettingsFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "chromecast2mqtt.yaml")
	content := `
logging:
  level: debug
  encoding: console
  outputPath: /var/log/chromecast2mqtt.log
  maxBackups: 3
metrics:
  enabled: true
  address: ":9100"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Encoding)
	assert.Equal(t, "/var/log/chromecast2mqtt.log", cfg.Logging.OutputPath)
	assert.Equal(t, 3, cfg.Logging.MaxBackups)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestEnvironmentOverridesSettingsFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "chromecast2mqtt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadSettingsFileErrors(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrConfiguration)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging: [unterminated"), 0o600))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrConfiguration)
}
