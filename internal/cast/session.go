// Package cast connects to a Chromecast device and turns its receiver
// status messages into Status notifications.
package cast

import (
	"context"
	"errors"
)

var (
	// ErrNotStarted is returned by Join and HealthCheck before Start succeeded
	ErrNotStarted = errors.New("cast session not started")
	// ErrDeviceUpdate reports that the device stopped answering
	ErrDeviceUpdate = errors.New("cast device update failed")
)

// Status is the volume state reported by the device
type Status struct {
	// VolumeLevel is in [0, 1]
	VolumeLevel float64
	Muted       bool
}

// StatusListener receives every status the device reports. Calls are
// serialized by the session.
type StatusListener interface {
	OnStatus(status Status)
}

// Session is a connection to one device
type Session interface {
	RegisterStatusListener(l StatusListener)
	// Start connects to the device
	Start(ctx context.Context) error
	// Join blocks until the session ends
	Join(ctx context.Context) error
}
