//file: internal/broker/types.go
// Package broker defines the broker-facing types shared by the bridge
package broker

import (
	"errors"
	"time"
)

var (
	// ErrConnect reports a failed connect attempt (refused, TLS handshake, timeout)
	ErrConnect = errors.New("broker connect failed")
	// ErrClosed reports use of a connection after Close
	ErrClosed = errors.New("broker connection closed")
	// ErrNotConnected reports that the connection is not currently up
	ErrNotConnected = errors.New("broker not connected")
	// ErrRetriesExhausted reports that a bounded retry policy gave up
	ErrRetriesExhausted = errors.New("broker connect retries exhausted")
)

// ConnectionState represents the current state of a broker connection
type ConnectionState int32

const (
	// StateDisconnected is the initial state and the state after a transport failure
	StateDisconnected ConnectionState = iota
	// StateConnecting indicates a connect attempt is in flight
	StateConnecting
	// StateConnected indicates the broker accepted the connection
	StateConnected
	// StateClosed is terminal
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Publisher publishes a payload under the connection's topic base.
// Delivery is best effort: failures are logged by the implementation and
// never returned.
type Publisher interface {
	Publish(topicSuffix string, payload string, retain bool)
}

// RetryPolicy controls the blocking connect loop
type RetryPolicy struct {
	// Delay between two attempts. The delay is fixed: no jitter, no growth.
	Delay time.Duration
	// MaxAttempts bounds the number of attempts. 0 means retry forever.
	MaxAttempts int
}

// DefaultRetryPolicy retries every 10 seconds without limit
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Delay: 10 * time.Second}
}

// Exhausted reports whether attempt (1-based) was the last one allowed
func (p RetryPolicy) Exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}
