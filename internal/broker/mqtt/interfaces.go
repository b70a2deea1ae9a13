package mqtt

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"chromecast2mqtt/internal/broker"
)

// ClientFactory builds the paho client from the prepared options.
// mqtt.NewClient is the production factory; tests inject a mock.
type ClientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// SleepFunc waits between two connect attempts. It returns early with the
// context error when ctx is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

var _ broker.Publisher = (*Connection)(nil)
