package kucoin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/kucoin-connector/pkg/logging"
	"github.com/veiloq/kucoin-connector/pkg/websocket"
)

// bulletResponse is the WebSocket session negotiation payload. The token and
// endpoint it carries are single-use, so every dial negotiates afresh.
type bulletResponse struct {
	Token           string `json:"token"`
	InstanceServers []struct {
		Endpoint     string `json:"endpoint"`
		Protocol     string `json:"protocol"`
		PingInterval int64  `json:"pingInterval"`
		PingTimeout  int64  `json:"pingTimeout"`
	} `json:"instanceServers"`
}

// negotiateWSURL obtains a fresh connection token over REST and builds the
// dialable WebSocket URL from it.
func (c *Connector) negotiateWSURL(ctx context.Context) (string, error) {
	var bullet bulletResponse
	if err := c.unwrapBullet(ctx, &bullet); err != nil {
		return "", err
	}
	if bullet.Token == "" || len(bullet.InstanceServers) == 0 {
		return "", fmt.Errorf("%w: bullet response missing token or servers", interfaces.ErrMalformedData)
	}

	endpoint := bullet.InstanceServers[0].Endpoint
	if c.options.WSBaseURL != "" {
		endpoint = c.options.WSBaseURL
	}
	return fmt.Sprintf("%s?token=%s&connectId=%s", endpoint, bullet.Token, uuid.NewString()), nil
}

func (c *Connector) unwrapBullet(ctx context.Context, bullet *bulletResponse) error {
	// bullet-public needs no signature even on authenticated connectors
	status, raw, err := c.do(ctx, "POST", "/api/v1/bullet-public", nil)
	if err != nil {
		return err
	}
	return c.unwrap(status, raw, bullet)
}

// openWebsocket builds the streaming connector and dials it. Called from
// Connect.
func (c *Connector) openWebsocket(ctx context.Context) error {
	if c.ws == nil {
		c.ws = websocket.NewConnector(websocket.Config{
			URLFunc:           c.negotiateWSURL,
			HeartbeatInterval: c.options.WSHeartbeatInterval,
			ReconnectInterval: c.options.WSReconnectInterval,
			MaxRetries:        5,
			Logger:            c.logger,
		})
	}
	return c.ws.Connect(ctx)
}

// subscribeFrame is the protocol's subscription request.
type subscribeFrame struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Topic          string `json:"topic"`
	PrivateChannel bool   `json:"privateChannel"`
	Response       bool   `json:"response"`
}

func newSubscribeFrame(topic string) subscribeFrame {
	return subscribeFrame{
		ID:       uuid.NewString(),
		Type:     "subscribe",
		Topic:    topic,
		Response: true,
	}
}

// SubscribeCandles streams candle updates for the requested symbols. The
// handler runs on connector-managed goroutines until the context is
// cancelled or the connector is closed.
func (c *Connector) SubscribeCandles(ctx context.Context, req interfaces.CandleSubscription, handler interfaces.CandleHandler) error {
	if !c.connected {
		return interfaces.ErrNotConnected
	}
	if _, err := intervalDuration(req.Interval); err != nil {
		return err
	}
	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return err
	}

	for _, symbol := range symbols {
		topic := fmt.Sprintf("/market/candles:%s_%s", symbol, req.Interval)
		sym := symbol
		err := c.ws.Subscribe(topic, newSubscribeFrame(topic), func(raw []byte) {
			candle, err := parseCandleUpdate(sym, raw)
			if err != nil {
				c.logger.Warn("dropping malformed candle update",
					logging.String("symbol", sym),
					logging.Error(err),
				)
				return
			}
			handler(candle)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrSubscriptionFailed, err)
		}
		c.subscriptions[topic] = struct{}{}
	}
	return nil
}

// SubscribeTicker streams best bid/ask updates for the requested symbols.
func (c *Connector) SubscribeTicker(ctx context.Context, symbols []string, handler interfaces.TickerHandler) error {
	if !c.connected {
		return interfaces.ErrNotConnected
	}
	normalized, err := normalizeSymbols(symbols)
	if err != nil {
		return err
	}

	for _, symbol := range normalized {
		topic := "/market/ticker:" + symbol
		sym := symbol
		err := c.ws.Subscribe(topic, newSubscribeFrame(topic), func(raw []byte) {
			ticker, err := parseTickerUpdate(sym, raw)
			if err != nil {
				c.logger.Warn("dropping malformed ticker update",
					logging.String("symbol", sym),
					logging.Error(err),
				)
				return
			}
			handler(ticker)
		})
		if err != nil {
			return fmt.Errorf("%w: %v", interfaces.ErrSubscriptionFailed, err)
		}
		c.subscriptions[topic] = struct{}{}
	}
	return nil
}

// parseCandleUpdate decodes one streaming candle frame. The data payload
// carries the same fixed-position row as the REST kline endpoint.
func parseCandleUpdate(symbol string, raw []byte) (interfaces.Candle, error) {
	fields := gjson.GetBytes(raw, "data.candles").Array()
	if len(fields) < 7 {
		return interfaces.Candle{}, fmt.Errorf("%w: candle update has %d fields, want 7",
			interfaces.ErrMalformedData, len(fields))
	}

	ts, err := strconv.ParseInt(fields[0].String(), 10, 64)
	if err != nil {
		return interfaces.Candle{}, fmt.Errorf("%w: candle timestamp %q", interfaces.ErrMalformedData, fields[0].String())
	}

	candle := interfaces.Candle{
		Symbol:    symbol,
		StartTime: time.Unix(ts, 0).UTC(),
	}
	for i, dst := range []*float64{&candle.Open, &candle.Close, &candle.High, &candle.Low, &candle.Volume, &candle.Turnover} {
		v, err := strconv.ParseFloat(fields[i+1].String(), 64)
		if err != nil {
			return interfaces.Candle{}, fmt.Errorf("%w: candle field %q", interfaces.ErrMalformedData, fields[i+1].String())
		}
		*dst = v
	}
	return candle, nil
}

// parseTickerUpdate decodes one streaming ticker frame.
func parseTickerUpdate(symbol string, raw []byte) (interfaces.Ticker, error) {
	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return interfaces.Ticker{}, fmt.Errorf("%w: ticker update has no data", interfaces.ErrMalformedData)
	}

	ticker := interfaces.Ticker{
		Symbol: symbol,
		Time:   time.UnixMilli(data.Get("time").Int()).UTC(),
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{"price", &ticker.Price},
		{"bestBid", &ticker.BestBid},
		{"bestAsk", &ticker.BestAsk},
		{"size", &ticker.Size},
	} {
		raw := data.Get(f.key).String()
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return interfaces.Ticker{}, fmt.Errorf("%w: ticker field %s=%q", interfaces.ErrMalformedData, f.key, raw)
		}
		*f.dst = v
	}
	return ticker, nil
}
