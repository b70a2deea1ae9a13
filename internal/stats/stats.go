package stats

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// StatsCollector keeps bridge-wide counters and the last forwarded status
type StatsCollector struct {
	StartTime       time.Time
	StatusEvents    uint64
	VolumePublished uint64
	MutePublished   uint64
	MuteSuppressed  uint64
	PublishErrors   uint64
	ConnectAttempts uint64

	mu         sync.RWMutex
	lastVolume int
	lastMute   string
	LastUpdate time.Time
}

// NewStatsCollector creates a new stats collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{
		StartTime:  time.Now(),
		LastUpdate: time.Now(),
	}
}

func (s *StatsCollector) IncStatusEvents()    { atomic.AddUint64(&s.StatusEvents, 1) }
func (s *StatsCollector) IncVolumePublished() { atomic.AddUint64(&s.VolumePublished, 1) }
func (s *StatsCollector) IncMutePublished()   { atomic.AddUint64(&s.MutePublished, 1) }
func (s *StatsCollector) IncMuteSuppressed()  { atomic.AddUint64(&s.MuteSuppressed, 1) }
func (s *StatsCollector) IncPublishErrors()   { atomic.AddUint64(&s.PublishErrors, 1) }
func (s *StatsCollector) IncConnectAttempts() { atomic.AddUint64(&s.ConnectAttempts, 1) }

// RecordStatus stores the last forwarded volume and mute label
func (s *StatsCollector) RecordStatus(volume int, mute string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastVolume = volume
	s.lastMute = mute
	s.LastUpdate = time.Now()
}

// GetStats returns current statistics
func (s *StatsCollector) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"uptime":                   time.Since(s.StartTime).String(),
		"status_events":            atomic.LoadUint64(&s.StatusEvents),
		"status_events_per_second": s.CalculateRate(),
		"volume_published":         atomic.LoadUint64(&s.VolumePublished),
		"mute_published":           atomic.LoadUint64(&s.MutePublished),
		"mute_suppressed":          atomic.LoadUint64(&s.MuteSuppressed),
		"publish_errors":           atomic.LoadUint64(&s.PublishErrors),
		"connect_attempts":         atomic.LoadUint64(&s.ConnectAttempts),
		"last_volume":              s.lastVolume,
		"last_mute":                s.lastMute,
		"last_update":              s.LastUpdate,
	}
}

// GetStatsJSON returns stats as JSON
func (s *StatsCollector) GetStatsJSON() ([]byte, error) {
	return json.Marshal(s.GetStats())
}

// CalculateRate returns status events per second since start
func (s *StatsCollector) CalculateRate() float64 {
	uptime := time.Since(s.StartTime).Seconds()
	if uptime <= 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.StatusEvents)) / uptime
}

// ServeHTTP writes the current statistics as JSON
func (s *StatsCollector) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	data, err := s.GetStatsJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
