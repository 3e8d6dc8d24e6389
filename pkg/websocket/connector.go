// Package websocket manages the long-lived connection to the exchange's
// streaming API: dialing, the application-level ping/pong heartbeat,
// automatic reconnection and topic-based message dispatch.
//
// KuCoin's streaming protocol is JSON frames over a single WebSocket. The
// server greets with a welcome frame, expects periodic ping frames (not
// WebSocket ping control frames) and tags every data frame with the topic it
// belongs to. Subscriptions are plain frames too, so the connector records
// them and replays them after a reconnect.
package websocket

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/veiloq/kucoin-connector/pkg/logging"
)

// Frame types used by the streaming protocol.
const (
	frameWelcome = "welcome"
	framePing    = "ping"
	framePong    = "pong"
	frameAck     = "ack"
	frameError   = "error"
	frameMessage = "message"
)

// MessageHandler is invoked with the raw JSON of each data frame published
// on a subscribed topic.
type MessageHandler func(message []byte)

// WSConnector manages one streaming connection.
type WSConnector interface {
	// Connect dials the streaming endpoint and waits for the server's
	// welcome frame.
	Connect(ctx context.Context) error

	// Close cleanly shuts the connection down. No reconnection happens
	// afterwards.
	Close() error

	// Subscribe sends the given subscribe frame and routes data frames for
	// topic to handler. The frame is recorded and replayed after reconnects.
	Subscribe(topic string, frame interface{}, handler MessageHandler) error

	// Unsubscribe removes the handler and recorded frame for a topic.
	Unsubscribe(topic string) error

	// Send writes one frame to the connection. []byte payloads go out as-is,
	// anything else is JSON-encoded.
	Send(message interface{}) error

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool
}

// Config holds streaming connection configuration. URLFunc is consulted on
// every dial because KuCoin connection tokens are single-use: each attempt
// needs a fresh token negotiated over REST.
type Config struct {
	URLFunc           func(ctx context.Context) (string, error)
	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration
	MaxRetries        int
	WelcomeTimeout    time.Duration
	Logger            logging.Logger
}

// subscription pairs a recorded subscribe frame with its handler so both
// survive a reconnect.
type subscription struct {
	frame   interface{}
	handler MessageHandler
}

type connector struct {
	config Config

	conn    *websocket.Conn
	writeMu sync.Mutex

	subs   map[string]subscription
	subsMu sync.RWMutex

	connected bool
	stateMu   sync.Mutex
	done      chan struct{}
	closed    bool

	reconnecting bool
	shuttingDown bool

	logger logging.Logger
}

// NewConnector creates a streaming connector. It does not dial until
// Connect is called.
func NewConnector(config Config) WSConnector {
	if config.WelcomeTimeout == 0 {
		config.WelcomeTimeout = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &connector{
		config: config,
		subs:   make(map[string]subscription),
		logger: logger,
	}
}

// Connect implements WSConnector.
func (c *connector) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()

	if c.connected {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if attempt > c.config.MaxRetries {
			return fmt.Errorf("websocket connect: max retries exceeded: %w", lastErr)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := c.dialOnce(ctx); err != nil {
			lastErr = err
			c.logger.Warn("websocket connection attempt failed",
				logging.Int("attempt", attempt),
				logging.Error(err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.ReconnectInterval):
				continue
			}
		}

		c.connected = true
		c.done = make(chan struct{})
		c.closed = false

		go c.readPump()
		go c.heartbeat()

		c.logger.Info("websocket connected")

		if err := c.resubscribe(); err != nil {
			c.logger.Warn("failed to replay subscriptions", logging.Error(err))
		}
		return nil
	}
}

// dialOnce negotiates a fresh endpoint URL, dials it and consumes the
// welcome frame.
func (c *connector) dialOnce(ctx context.Context) error {
	url, err := c.config.URLFunc(ctx)
	if err != nil {
		return fmt.Errorf("negotiating endpoint: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(c.config.WelcomeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return fmt.Errorf("waiting for welcome frame: %w", err)
	}
	if t := gjson.GetBytes(raw, "type").String(); t != frameWelcome {
		conn.Close()
		return fmt.Errorf("expected welcome frame, got type %q", t)
	}

	c.conn = conn
	return nil
}

// readPump reads frames until the connection drops, dispatching data frames
// to topic handlers. On an unexpected drop it kicks off reconnection.
func (c *connector) readPump() {
	conn := c.conn
	defer func() {
		c.stateMu.Lock()
		c.connected = false
		if !c.closed {
			close(c.done)
			c.closed = true
		}
		shuttingDown := c.shuttingDown
		alreadyReconnecting := c.reconnecting
		c.stateMu.Unlock()

		_ = conn.Close()

		if !shuttingDown && !alreadyReconnecting {
			go c.reconnect()
		}
	}()

	readDeadline := c.config.HeartbeatInterval * 3
	for {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", logging.Error(err))
			}
			return
		}
		c.dispatch(raw)
	}
}

// dispatch routes one inbound frame by its type field.
func (c *connector) dispatch(raw []byte) {
	switch gjson.GetBytes(raw, "type").String() {
	case framePong, frameAck:
		return
	case frameError:
		c.logger.Warn("server error frame",
			logging.String("code", gjson.GetBytes(raw, "code").String()),
			logging.String("data", gjson.GetBytes(raw, "data").String()),
		)
		return
	case frameMessage:
	default:
		return
	}

	topic := gjson.GetBytes(raw, "topic").String()
	c.subsMu.RLock()
	sub, ok := c.subs[topic]
	c.subsMu.RUnlock()
	if !ok {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("handler panic recovered",
					logging.String("topic", topic),
					logging.String("panic", fmt.Sprintf("%v", r)),
				)
			}
		}()
		sub.handler(raw)
	}()
}

// heartbeat sends the protocol's JSON ping frame on a fixed cadence. The
// server drops connections that go silent, so this doubles as keep-alive.
func (c *connector) heartbeat() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !c.IsConnected() {
				return
			}
			ping := map[string]string{"id": uuid.NewString(), "type": framePing}
			if err := c.Send(ping); err != nil {
				c.logger.Warn("heartbeat failed", logging.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// reconnect redials with backoff after an unexpected drop.
func (c *connector) reconnect() {
	c.stateMu.Lock()
	if c.reconnecting || c.shuttingDown {
		c.stateMu.Unlock()
		return
	}
	c.reconnecting = true
	c.stateMu.Unlock()

	defer func() {
		c.stateMu.Lock()
		c.reconnecting = false
		c.stateMu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	err := retry.Do(
		func() error {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			return c.Connect(ctx)
		},
		retry.Attempts(uint(c.config.MaxRetries)),
		retry.Delay(c.config.ReconnectInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("reconnection attempt failed",
				logging.Int("attempt", int(n+1)),
				logging.Error(err))
		}),
	)
	if err != nil {
		c.logger.Error("reconnection failed", logging.Error(err))
		return
	}
	c.logger.Info("reconnected")
}

// Subscribe implements WSConnector.
func (c *connector) Subscribe(topic string, frame interface{}, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("websocket not connected")
	}

	if err := c.Send(frame); err != nil {
		return fmt.Errorf("sending subscribe frame for %s: %w", topic, err)
	}

	c.subsMu.Lock()
	c.subs[topic] = subscription{frame: frame, handler: handler}
	c.subsMu.Unlock()
	return nil
}

// Unsubscribe implements WSConnector.
func (c *connector) Unsubscribe(topic string) error {
	c.subsMu.Lock()
	delete(c.subs, topic)
	c.subsMu.Unlock()
	return nil
}

// Send implements WSConnector.
func (c *connector) Send(message interface{}) error {
	c.stateMu.Lock()
	conn := c.conn
	connected := c.connected
	c.stateMu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("websocket not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if data, ok := message.([]byte); ok {
		return conn.WriteMessage(websocket.TextMessage, data)
	}
	return conn.WriteJSON(message)
}

// IsConnected implements WSConnector.
func (c *connector) IsConnected() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.connected
}

// Close implements WSConnector.
func (c *connector) Close() error {
	c.stateMu.Lock()
	c.shuttingDown = true
	wasClosed := c.closed
	if !c.closed && c.done != nil {
		close(c.done)
		c.closed = true
	}
	c.connected = false
	conn := c.conn
	c.stateMu.Unlock()

	if wasClosed || conn == nil {
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closed connection"))
	time.Sleep(100 * time.Millisecond)

	if err := conn.Close(); err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
		return err
	}
	return nil
}

// resubscribe replays every recorded subscribe frame on a fresh connection.
func (c *connector) resubscribe() error {
	c.subsMu.RLock()
	frames := make(map[string]interface{}, len(c.subs))
	for topic, sub := range c.subs {
		frames[topic] = sub.frame
	}
	c.subsMu.RUnlock()

	var failed int
	for topic, frame := range frames {
		if err := c.Send(frame); err != nil {
			c.logger.Error("failed to replay subscription",
				logging.String("topic", topic),
				logging.Error(err),
			)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("failed to replay %d subscriptions", failed)
	}
	return nil
}
