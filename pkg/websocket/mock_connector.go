package websocket

import (
	"context"
	"sync"
)

// MockConnector implements WSConnector for testing the exchange connectors
// without a live streaming endpoint. Sent frames are recorded and inbound
// data frames can be injected per topic.
type MockConnector struct {
	mu sync.RWMutex

	connected bool
	subs      map[string]subscription
	sent      []interface{}

	connectCalls     int
	subscribeCalls   map[string]int
	unsubscribeCalls map[string]int
	closeCalls       int

	connectError   error
	subscribeError error
	sendError      error
	closeError     error
}

// NewMockConnector creates a mock streaming connector.
func NewMockConnector() *MockConnector {
	return &MockConnector{
		subs:             make(map[string]subscription),
		subscribeCalls:   make(map[string]int),
		unsubscribeCalls: make(map[string]int),
	}
}

// Connect implements WSConnector.
func (m *MockConnector) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectCalls++
	if m.connectError != nil {
		return m.connectError
	}
	m.connected = true
	return nil
}

// Close implements WSConnector.
func (m *MockConnector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeCalls++
	if m.closeError != nil {
		return m.closeError
	}
	m.connected = false
	return nil
}

// Subscribe implements WSConnector.
func (m *MockConnector) Subscribe(topic string, frame interface{}, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.subscribeCalls[topic]++
	if m.subscribeError != nil {
		return m.subscribeError
	}
	m.sent = append(m.sent, frame)
	m.subs[topic] = subscription{frame: frame, handler: handler}
	return nil
}

// Unsubscribe implements WSConnector.
func (m *MockConnector) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unsubscribeCalls[topic]++
	delete(m.subs, topic)
	return nil
}

// Send implements WSConnector.
func (m *MockConnector) Send(message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendError != nil {
		return m.sendError
	}
	m.sent = append(m.sent, message)
	return nil
}

// IsConnected implements WSConnector.
func (m *MockConnector) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// InjectMessage delivers a raw data frame to the handler subscribed to
// topic, as if it arrived from the server.
func (m *MockConnector) InjectMessage(topic string, message []byte) {
	m.mu.RLock()
	sub, ok := m.subs[topic]
	m.mu.RUnlock()

	if ok {
		sub.handler(message)
	}
}

// SentFrames returns everything passed to Send and the subscribe frames, in
// order.
func (m *MockConnector) SentFrames() []interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interface{}, len(m.sent))
	copy(out, m.sent)
	return out
}

// SetConnectError makes Connect fail with err.
func (m *MockConnector) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

// SetSubscribeError makes Subscribe fail with err.
func (m *MockConnector) SetSubscribeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeError = err
}

// SetSendError makes Send fail with err.
func (m *MockConnector) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendError = err
}

// SetCloseError makes Close fail with err.
func (m *MockConnector) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

// ConnectCalls returns how many times Connect was called.
func (m *MockConnector) ConnectCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connectCalls
}

// SubscribeCalls returns how many times Subscribe was called for a topic.
func (m *MockConnector) SubscribeCalls(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscribeCalls[topic]
}

// UnsubscribeCalls returns how many times Unsubscribe was called for a
// topic.
func (m *MockConnector) UnsubscribeCalls(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unsubscribeCalls[topic]
}

// CloseCalls returns how many times Close was called.
func (m *MockConnector) CloseCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closeCalls
}
