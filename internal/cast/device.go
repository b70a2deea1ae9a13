package cast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/vishen/go-chromecast/application"
	castpayload "github.com/vishen/go-chromecast/cast"
	api "github.com/vishen/go-chromecast/cast/proto"

	"chromecast2mqtt/internal/logger"
)

const (
	DefaultPort           = 8009
	DefaultUpdateInterval = 10 * time.Minute

	receiverStatusType = "RECEIVER_STATUS"
	mediaStatusType    = "MEDIA_STATUS"
)

// Device is a Session on a Chromecast reached at a fixed address.
// No network discovery is done.
type Device struct {
	addr           string
	port           int
	updateInterval time.Duration
	logger         *logger.Logger

	mu        sync.RWMutex
	listeners []StatusListener
	update    func() error
	lastErr   error
}

// DeviceOption configures a Device
type DeviceOption func(*Device)

// WithUpdateInterval sets how often Join refreshes the device state
func WithUpdateInterval(d time.Duration) DeviceOption {
	return func(dev *Device) {
		if d > 0 {
			dev.updateInterval = d
		}
	}
}

func NewDevice(addr string, port int, log *logger.Logger, opts ...DeviceOption) *Device {
	if port <= 0 {
		port = DefaultPort
	}
	d := &Device{
		addr:           addr,
		port:           port,
		updateInterval: DefaultUpdateInterval,
		logger:         log.With("device", fmt.Sprintf("%s:%d", addr, port)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RegisterStatusListener adds l. Listeners are notified in registration order.
func (d *Device) RegisterStatusListener(l StatusListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Start connects to the device and begins receiving its messages
func (d *Device) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger.Info("start chromecast connection")

	app := application.NewApplication(application.WithCacheDisabled(true))
	app.AddMessageFunc(d.handleMessage)

	if err := app.Start(d.addr, d.port); err != nil {
		return fmt.Errorf("unable to connect to chromecast %s:%d: %w", d.addr, d.port, err)
	}

	d.mu.Lock()
	d.update = app.Update
	d.lastErr = nil
	d.mu.Unlock()

	return nil
}

// Join blocks until ctx is cancelled or the device stops answering. The
// device state is refreshed every update interval, which also triggers a
// new receiver status.
func (d *Device) Join(ctx context.Context) error {
	d.mu.RLock()
	update := d.update
	d.mu.RUnlock()
	if update == nil {
		return ErrNotStarted
	}

	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("chromecast session stopped", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			err := update()
			d.mu.Lock()
			d.lastErr = err
			d.mu.Unlock()
			if err != nil {
				d.logger.Error("unable to update chromecast application", "error", err)
				return fmt.Errorf("%w: %w", ErrDeviceUpdate, err)
			}
		}
	}
}

// HealthCheck reports whether the session is started and the last refresh
// succeeded.
func (d *Device) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("chromecast health check: %w", err)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.update == nil {
		return ErrNotStarted
	}
	if d.lastErr != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUpdate, d.lastErr)
	}
	return nil
}

func (d *Device) handleMessage(msg *api.CastMessage) {
	if msg.GetPayloadType() != api.CastMessage_STRING {
		return
	}
	d.handlePayload(msg.GetPayloadUtf8())
}

// handlePayload decodes one JSON message from the device
func (d *Device) handlePayload(payload string) {
	var header castpayload.PayloadHeader
	if err := json.Unmarshal([]byte(payload), &header); err != nil {
		d.logger.Error("unable to parse message", "payload", payload, "error", err)
		return
	}

	switch header.Type {
	case receiverStatusType:
		var response receiverStatusResponse
		if err := json.Unmarshal([]byte(payload), &response); err != nil {
			d.logger.Error("unable to parse receiver status", "payload", payload, "error", err)
			return
		}
		volume := response.Status.Volume
		if volume == nil {
			d.logger.Debug("receiver status without volume")
			return
		}
		d.notify(Status{
			VolumeLevel: float64(volume.Level),
			Muted:       volume.Muted,
		})
	case mediaStatusType:
		d.logger.Debug("new media status event", "payload", payload)
	default:
		d.logger.Debug("unmanaged event", "type", header.Type)
	}
}

func (d *Device) notify(status Status) {
	d.logger.Debug("new status", "volumeLevel", status.VolumeLevel, "muted", status.Muted)

	d.mu.RLock()
	listeners := make([]StatusListener, len(d.listeners))
	copy(listeners, d.listeners)
	d.mu.RUnlock()

	for _, l := range listeners {
		l.OnStatus(status)
	}
}

// receiverStatusResponse keeps the volume optional so a status without
// one is not read as level 0.
type receiverStatusResponse struct {
	castpayload.PayloadHeader
	Status struct {
		Volume *castpayload.Volume `json:"volume"`
	} `json:"status"`
}
