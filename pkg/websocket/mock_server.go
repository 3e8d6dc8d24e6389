package websocket

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

// MockServer speaks a minimal version of the exchange's streaming protocol
// for tests: it greets every client with a welcome frame, answers ping with
// pong, acks subscribe and unsubscribe frames, and lets tests broadcast
// arbitrary data frames.
type MockServer struct {
	server *httptest.Server
	url    string

	connections   map[*websocket.Conn]bool
	connectionsMu sync.RWMutex

	received   [][]byte
	receivedMu sync.RWMutex

	rejectConnections bool
	suppressWelcome   bool
}

// NewMockServer starts a mock streaming server on a local listener.
func NewMockServer() *MockServer {
	mock := &MockServer{
		connections: make(map[*websocket.Conn]bool),
	}
	mock.server = httptest.NewServer(http.HandlerFunc(mock.handleConnection))
	mock.url = "ws" + strings.TrimPrefix(mock.server.URL, "http")
	return mock
}

// URL returns the server's ws:// endpoint.
func (m *MockServer) URL() string {
	return m.url
}

// Close shuts the server down.
func (m *MockServer) Close() {
	m.server.Close()
}

// SetRejectConnections makes the server refuse new upgrade requests.
func (m *MockServer) SetRejectConnections(reject bool) {
	m.rejectConnections = reject
}

// SetSuppressWelcome makes the server skip the welcome frame, simulating a
// misbehaving endpoint.
func (m *MockServer) SetSuppressWelcome(suppress bool) {
	m.suppressWelcome = suppress
}

// Broadcast sends a raw frame to every connected client.
func (m *MockServer) Broadcast(message []byte) {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()

	for conn := range m.connections {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			go m.removeConnection(conn)
		}
	}
}

// DropAll closes every active connection, simulating a server-side drop.
func (m *MockServer) DropAll() {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()

	for conn := range m.connections {
		conn.Close()
		delete(m.connections, conn)
	}
}

// ConnectionCount returns the number of active connections.
func (m *MockServer) ConnectionCount() int {
	m.connectionsMu.RLock()
	defer m.connectionsMu.RUnlock()
	return len(m.connections)
}

// ReceivedFrames returns a copy of every frame clients have sent, excluding
// pings.
func (m *MockServer) ReceivedFrames() [][]byte {
	m.receivedMu.RLock()
	defer m.receivedMu.RUnlock()

	frames := make([][]byte, len(m.received))
	copy(frames, m.received)
	return frames
}

func (m *MockServer) handleConnection(w http.ResponseWriter, r *http.Request) {
	if m.rejectConnections {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if !m.suppressWelcome {
		welcome := fmt.Sprintf(`{"id":"mock-%p","type":"welcome"}`, conn)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(welcome)); err != nil {
			conn.Close()
			return
		}
	}

	m.addConnection(conn)
	defer func() {
		m.removeConnection(conn)
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		id := gjson.GetBytes(message, "id").String()
		switch gjson.GetBytes(message, "type").String() {
		case framePing:
			reply := fmt.Sprintf(`{"id":%q,"type":"pong"}`, id)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		case "subscribe", "unsubscribe":
			m.record(message)
			reply := fmt.Sprintf(`{"id":%q,"type":"ack"}`, id)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		default:
			m.record(message)
		}
	}
}

func (m *MockServer) record(message []byte) {
	m.receivedMu.Lock()
	m.received = append(m.received, append([]byte(nil), message...))
	m.receivedMu.Unlock()
}

func (m *MockServer) addConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	m.connections[conn] = true
}

func (m *MockServer) removeConnection(conn *websocket.Conn) {
	m.connectionsMu.Lock()
	defer m.connectionsMu.Unlock()
	delete(m.connections, conn)
}

func setupMockServer(t *testing.T) (*MockServer, string) {
	t.Helper()
	mock := NewMockServer()
	t.Cleanup(mock.Close)
	return mock, mock.URL()
}
