package mqtt

import (
	"context"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MockToken implements mqtt.Token for testing
type MockToken struct {
	err  error
	done chan struct{}
}

func NewMockToken(err error) *MockToken {
	done := make(chan struct{})
	close(done)
	return &MockToken{
		err:  err,
		done: done,
	}
}

func (t *MockToken) Wait() bool                       { return true }
func (t *MockToken) WaitTimeout(d time.Duration) bool { return true }
func (t *MockToken) Error() error                     { return t.err }
func (t *MockToken) Done() <-chan struct{}            { return t.done }

// publishedMessage records one Publish call
type publishedMessage struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

// MockClient implements mqtt.Client for testing
type MockClient struct {
	mu sync.Mutex

	// connectErrs is consumed one entry per Connect call; once empty,
	// Connect succeeds.
	connectErrs  []error
	connectCalls int
	publishErr   error
	published    []publishedMessage
	disconnects  int
	connected    bool
}

func NewMockClient(connectErrs ...error) *MockClient {
	return &MockClient{connectErrs: connectErrs}
}

func (m *MockClient) Connect() mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectCalls++
	if len(m.connectErrs) > 0 {
		err := m.connectErrs[0]
		m.connectErrs = m.connectErrs[1:]
		if err != nil {
			return NewMockToken(err)
		}
	}
	m.connected = true
	return NewMockToken(nil)
}

func (m *MockClient) Disconnect(quiesce uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.connected = false
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, publishedMessage{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  payload,
	})
	return NewMockToken(m.publishErr)
}

func (m *MockClient) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}
func (m *MockClient) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	return NewMockToken(nil)
}
func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token          { return NewMockToken(nil) }
func (m *MockClient) AddRoute(topic string, callback mqtt.MessageHandler) {}
func (m *MockClient) IsConnectionOpen() bool                             { return m.IsConnected() }
func (m *MockClient) OptionsReader() mqtt.ClientOptionsReader            { return mqtt.ClientOptionsReader{} }

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockClient) ConnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectCalls
}

func (m *MockClient) Published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockClient) Disconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnects
}

// mockFactory returns a ClientFactory handing out client and capturing the
// options it was built with.
func mockFactory(client *MockClient, captured **mqtt.ClientOptions) ClientFactory {
	return func(opts *mqtt.ClientOptions) mqtt.Client {
		if captured != nil {
			*captured = opts
		}
		return client
	}
}

// recordingSleep records requested delays without waiting
type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.delays))
	copy(out, r.delays)
	return out
}
