// Package forwarder turns device status notifications into broker publishes.
//
// Volume is published, retained, on every status. Mute is published,
// retained, only when its label differs from the last published one. The
// last published mute label starts as "OFF", so a device that is unmuted at
// startup never gets an initial mute publish.
package forwarder

import (
	"math"
	"strconv"
	"sync"

	"chromecast2mqtt/internal/broker"
	"chromecast2mqtt/internal/cast"
	"chromecast2mqtt/internal/logger"
	"chromecast2mqtt/internal/metrics"
	"chromecast2mqtt/internal/stats"
)

// Topic suffixes, appended to the configured topic base
const (
	VolumeTopic = "volume"
	MuteTopic   = "mute"
)

// Mute labels published on MuteTopic
const (
	MuteOn  = "ON"
	MuteOff = "OFF"
)

// StatusForwarder implements cast.StatusListener
type StatusForwarder struct {
	publisher broker.Publisher
	logger    *logger.Logger
	metrics   *metrics.Metrics
	stats     *stats.StatsCollector

	mu        sync.Mutex
	muteState string
}

var _ cast.StatusListener = (*StatusForwarder)(nil)

// Option configures a StatusForwarder
type Option func(*StatusForwarder)

// WithMetrics records forwarded values in Prometheus
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *StatusForwarder) {
		f.metrics = m
	}
}

// WithStats records forwarded values in the stats collector
func WithStats(s *stats.StatsCollector) Option {
	return func(f *StatusForwarder) {
		f.stats = s
	}
}

// New creates a forwarder publishing through publisher. No mute has been
// published yet, so the last mute label is MuteOff.
func New(publisher broker.Publisher, log *logger.Logger, opts ...Option) *StatusForwarder {
	f := &StatusForwarder{
		publisher: publisher,
		logger:    log,
		muteState: MuteOff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// OnStatus publishes the volume and, when it changed, the mute label
func (f *StatusForwarder) OnStatus(status cast.Status) {
	volume := VolumePercent(status.VolumeLevel)
	mute := MuteLabel(status.Muted)

	f.logger.Info("new event", "volume", volume, "mute", mute)
	if f.stats != nil {
		f.stats.IncStatusEvents()
	}
	f.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.IncStatusEvents()
	})

	f.mu.Lock()
	defer f.mu.Unlock()

	f.publisher.Publish(VolumeTopic, strconv.Itoa(volume), true)
	if f.stats != nil {
		f.stats.IncVolumePublished()
	}
	f.safeMetricsUpdate(func(m *metrics.Metrics) {
		m.SetVolume(volume)
	})

	if mute != f.muteState {
		f.muteState = mute
		f.publisher.Publish(MuteTopic, mute, true)
		if f.stats != nil {
			f.stats.IncMutePublished()
		}
		f.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.SetMuted(status.Muted)
		})
	} else {
		if f.stats != nil {
			f.stats.IncMuteSuppressed()
		}
		f.safeMetricsUpdate(func(m *metrics.Metrics) {
			m.IncMuteSuppressed()
		})
	}

	if f.stats != nil {
		f.stats.RecordStatus(volume, f.muteState)
	}
}

// MuteState returns the last published mute label
func (f *StatusForwarder) MuteState() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.muteState
}

// VolumePercent converts a level in [0, 1] to a rounded percentage in [0, 100]
func VolumePercent(level float64) int {
	percent := int(math.Round(level * 100))
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// MuteLabel returns "ON" for a muted device, "OFF" otherwise
func MuteLabel(muted bool) string {
	if muted {
		return MuteOn
	}
	return MuteOff
}

func (f *StatusForwarder) safeMetricsUpdate(fn func(*metrics.Metrics)) {
	if f.metrics != nil {
		fn(f.metrics)
	}
}
