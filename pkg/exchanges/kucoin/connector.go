// Package kucoin implements the exchange connector for the KuCoin REST and
// WebSocket APIs.
//
// REST market-data endpoints work without credentials; account, trading and
// margin endpoints require an API key, secret and passphrase. Historical
// candle retrieval transparently paginates around the server's 1500-bar
// per-call cap, see GetCandleHistory.
package kucoin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/veiloq/kucoin-connector/pkg/common"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/kucoin-connector/pkg/logging"
	"github.com/veiloq/kucoin-connector/pkg/ratelimit"
	"github.com/veiloq/kucoin-connector/pkg/websocket"
)

const (
	restURL        = "https://api.kucoin.com"
	sandboxRestURL = "https://openapi-sandbox.kucoin.com"

	// Exchange status codes embedded in the response envelope. A success code
	// with an empty data array is NOT an error: it marks the end of the
	// available series.
	codeSuccess       = "200000"
	codeInvalidSymbol = "400100"
)

// historyOptions tunes the candle pagination engine. The durations are
// policy, not contract: tests shrink them to keep retry paths fast.
type historyOptions struct {
	maxBarsPerCall      int
	maxRateLimitRetries int
	backoffBase         float64
	backoffUnit         time.Duration
	connectionCooldown  time.Duration
}

func defaultHistoryOptions() historyOptions {
	return historyOptions{
		maxBarsPerCall:      1500,
		maxRateLimitRetries: 7,
		backoffBase:         2,
		backoffUnit:         time.Second,
		connectionCooldown:  time.Minute,
	}
}

// Connector implements interfaces.ExchangeConnector for KuCoin.
type Connector struct {
	options *interfaces.ExchangeOptions
	http    common.HTTPClient
	signer  *signer
	logger  logging.Logger
	history historyOptions

	ws            websocket.WSConnector
	connected     bool
	subscriptions map[string]struct{}
}

// compile-time interface check
var _ interfaces.ExchangeConnector = (*Connector)(nil)

// NewConnector creates a new KuCoin connector with the given options.
// Passing nil selects defaults (public endpoints only).
//
//	options := interfaces.NewExchangeOptions().WithCredentials(key, secret, passphrase)
//	connector := kucoin.NewConnector(options)
func NewConnector(options *interfaces.ExchangeOptions) *Connector {
	if options == nil {
		options = interfaces.NewExchangeOptions()
	}

	level := logging.ParseLevel(options.LogLevel)

	// Debug level switches to the zap logger and a client that dumps
	// full requests and responses.
	var logger logging.Logger
	if level == logging.DEBUG {
		logger = logging.NewZapLogger(logging.WithDebugLevel())
	} else {
		logger = logging.NewLogger()
		logger.SetLevel(level)
	}

	httpConfig := &common.ClientConfig{
		Timeout: options.HTTPTimeout,
		RateLimit: ratelimit.Rate{
			Limit:    options.MaxRequestsPerSecond,
			Interval: time.Second,
		},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logger,
	}
	var httpClient common.HTTPClient
	if level == logging.DEBUG {
		httpClient = common.NewDebugHTTPClient(&common.DebugClientConfig{
			ClientConfig:    httpConfig,
			LogRequestBody:  true,
			LogResponseBody: true,
			MaxBodyLogSize:  4096,
		})
	} else {
		httpClient = common.NewHTTPClient(httpConfig)
	}

	c := &Connector{
		options:       options,
		logger:        logger,
		history:       defaultHistoryOptions(),
		http:          httpClient,
		subscriptions: make(map[string]struct{}),
	}
	if options.APIKey != "" {
		c.signer = newSigner(options.APIKey, options.APISecret, options.APIPassphrase)
	}
	return c
}

func (c *Connector) baseURL() string {
	if c.options.RestURL != "" {
		return c.options.RestURL
	}
	if c.options.Sandbox {
		return sandboxRestURL
	}
	return restURL
}

// Connect verifies the REST API is reachable and establishes the WebSocket
// session used for subscriptions.
func (c *Connector) Connect(ctx context.Context) error {
	if c.connected {
		return nil
	}

	if _, err := c.ServerTime(ctx); err != nil {
		return fmt.Errorf("failed to reach KuCoin REST API: %w", err)
	}

	if err := c.openWebsocket(ctx); err != nil {
		return fmt.Errorf("failed to connect to KuCoin WebSocket API: %w", err)
	}

	c.connected = true
	c.logger.Info("kucoin connector ready",
		logging.Bool("sandbox", c.options.Sandbox),
		logging.Bool("authenticated", c.signer != nil),
	)
	return nil
}

// Close terminates the WebSocket session and forgets all subscriptions.
func (c *Connector) Close() error {
	if !c.connected {
		return interfaces.ErrNotConnected
	}
	c.connected = false
	c.subscriptions = make(map[string]struct{})
	if c.ws != nil {
		if err := c.ws.Close(); err != nil {
			return fmt.Errorf("error closing KuCoin WebSocket connection: %w", err)
		}
	}
	return nil
}

// do executes one REST request and returns the HTTP status and raw body.
// Responses with status 429 are returned as-is; retry policy for them
// belongs to the caller.
func (c *Connector) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("error marshaling request payload: %w", err)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.signer != nil {
		for k, v := range c.signer.headers(method, path, string(body), time.Now()) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

// unwrap validates the response envelope {"code": ..., "data": ...} and
// unmarshals the data field into out. A nil out discards the data.
func (c *Connector) unwrap(status int, raw []byte, out interface{}) error {
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", interfaces.ErrInvalidCredentials, status)
	default:
		return fmt.Errorf("kucoin API error: status %d: %s", status, strings.TrimSpace(string(raw)))
	}

	code := gjson.GetBytes(raw, "code").String()
	if code != codeSuccess {
		return fmt.Errorf("kucoin API error: code %s: %s", code, gjson.GetBytes(raw, "msg").String())
	}
	if out == nil {
		return nil
	}

	data := gjson.GetBytes(raw, "data")
	if !data.Exists() {
		return fmt.Errorf("%w: response envelope has no data field", interfaces.ErrMalformedData)
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrMalformedData, err)
	}
	return nil
}

// getJSON issues a GET request and decodes the envelope data field into out.
func (c *Connector) getJSON(ctx context.Context, path string, out interface{}) error {
	status, raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return c.unwrap(status, raw, out)
}

// postJSON issues a signed POST request and decodes the envelope data field.
func (c *Connector) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	if c.signer == nil {
		return interfaces.ErrAuthenticationRequired
	}
	status, raw, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	return c.unwrap(status, raw, out)
}

// deleteJSON issues a signed DELETE request and decodes the envelope data
// field.
func (c *Connector) deleteJSON(ctx context.Context, path string, out interface{}) error {
	if c.signer == nil {
		return interfaces.ErrAuthenticationRequired
	}
	status, raw, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	return c.unwrap(status, raw, out)
}

// requireAuth guards signed GET endpoints.
func (c *Connector) requireAuth() error {
	if c.signer == nil {
		return interfaces.ErrAuthenticationRequired
	}
	return nil
}
