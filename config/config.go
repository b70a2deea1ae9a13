package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration is returned for every missing or invalid setting.
var ErrConfiguration = errors.New("configuration error")

type Config struct {
	Chromecast ChromecastConfig `yaml:"-"`
	MQTT       MQTTConfig       `yaml:"-"`
	Logging    LogConfig        `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type ChromecastConfig struct {
	Host           string        `env:"CHROMECAST_HOST,required"`
	Port           int           `env:"CHROMECAST_PORT" envDefault:"8009"`
	UpdateInterval time.Duration `env:"CHROMECAST_UPDATE_INTERVAL" envDefault:"10m"`
}

type MQTTConfig struct {
	Host      string `env:"MQTT_HOST,required"`
	Port      int    `env:"MQTT_PORT,required"`
	Username  string `env:"MQTT_USERNAME,required"`
	Password  string `env:"MQTT_PASSWORD,required"`
	TopicBase string `env:"MQTT_TOPIC_BASE,required"`
	ClientID  string `env:"MQTT_CLIENT_ID" envDefault:"chromecast2mqtt"`

	// Connect retry policy. MaxAttempts 0 retries forever.
	RetryDelay  time.Duration `env:"MQTT_CONNECT_RETRY_DELAY" envDefault:"10s"`
	MaxAttempts int           `env:"MQTT_CONNECT_MAX_ATTEMPTS" envDefault:"0"`

	TLS TLSConfig
}

// TLSConfig holds the mutual TLS material. It is only used when all three
// files are set.
type TLSConfig struct {
	CAFile   string `env:"CA_CERTS_FILE"`
	CertFile string `env:"CERT_FILE"`
	KeyFile  string `env:"KEY_FILE"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`       // debug, info, warn, error
	OutputPath string `yaml:"outputPath" env:"LOG_OUTPUT"` // file path or "stdout"
	Encoding   string `yaml:"encoding" env:"LOG_ENCODING"` // json or console
	MaxSize    int    `yaml:"maxSize"`                     // megabytes, file output only
	MaxAge     int    `yaml:"maxAge"`                      // days
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Address    string `yaml:"address" env:"METRICS_ADDRESS"`
	Path       string `yaml:"path"`
	HealthPath string `yaml:"healthPath"`
	StatsPath  string `yaml:"statsPath"`
}

// Enabled reports whether the complete set of TLS files is configured.
func (t TLSConfig) Enabled() bool {
	return t.CAFile != "" && t.CertFile != "" && t.KeyFile != ""
}

// Partial reports whether some, but not all, TLS files are configured.
func (t TLSConfig) Partial() bool {
	return !t.Enabled() && (t.CAFile != "" || t.CertFile != "" || t.KeyFile != "")
}

// Load reads the optional settings file at path, then the environment.
// Environment values take precedence over the file.
func Load(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrConfiguration, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file: %v", ErrConfiguration, err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.OutputPath == "" {
		config.Logging.OutputPath = "stdout"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}
	if config.Logging.MaxSize <= 0 {
		config.Logging.MaxSize = 100
	}

	if config.Metrics.Address == "" {
		config.Metrics.Address = ":2112"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.HealthPath == "" {
		config.Metrics.HealthPath = "/status"
	}
	if config.Metrics.StatsPath == "" {
		config.Metrics.StatsPath = "/stats"
	}
}

// validateConfig checks values that parsed but are not usable
func validateConfig(cfg *Config) error {
	if cfg.MQTT.Port < 1 || cfg.MQTT.Port > 65535 {
		return fmt.Errorf("invalid mqtt port: %d", cfg.MQTT.Port)
	}
	if cfg.Chromecast.Port < 1 || cfg.Chromecast.Port > 65535 {
		return fmt.Errorf("invalid chromecast port: %d", cfg.Chromecast.Port)
	}
	if cfg.MQTT.RetryDelay < 0 {
		return fmt.Errorf("connect retry delay must not be negative")
	}
	if cfg.MQTT.MaxAttempts < 0 {
		return fmt.Errorf("connect max attempts must not be negative")
	}
	if cfg.Chromecast.UpdateInterval <= 0 {
		return fmt.Errorf("chromecast update interval must be greater than 0")
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	return nil
}
