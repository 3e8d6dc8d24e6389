package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"time"

	"github.com/veiloq/kucoin-connector/pkg/logging"
	"github.com/veiloq/kucoin-connector/pkg/ratelimit"
)

// DebugClientConfig extends ClientConfig with wire-dump settings.
type DebugClientConfig struct {
	*ClientConfig

	LogRequestBody  bool
	LogResponseBody bool

	// MaxBodyLogSize caps how much of a request or response body ends up in
	// the log. Zero means no cap.
	MaxBodyLogSize int
}

// DefaultDebugConfig returns a debug client configuration with body logging
// enabled and a 4KB body cap.
func DefaultDebugConfig() *DebugClientConfig {
	return &DebugClientConfig{
		ClientConfig:    DefaultConfig(),
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLogSize:  4096,
	}
}

// NewDebugHTTPClient wraps the standard client with request and response
// wire dumps at debug level. Unless the caller already supplies a zap
// logger, one is built with debug level enabled so the dumps are visible.
func NewDebugHTTPClient(config *DebugClientConfig) HTTPClient {
	if config == nil {
		config = DefaultDebugConfig()
	}
	if config.ClientConfig == nil {
		config.ClientConfig = DefaultConfig()
	}

	if _, ok := config.Logger.(*logging.ZapLogger); !ok {
		config.Logger = logging.NewZapLogger(
			logging.WithDebugLevel(),
			logging.WithDevelopmentMode(),
		)
	}

	return &debugClient{
		client: NewHTTPClient(config.ClientConfig).(*client),
		config: config,
	}
}

// debugClient implements HTTPClient, delegating to the standard client and
// logging full request/response dumps around each call.
type debugClient struct {
	client *client
	config *DebugClientConfig
}

// Do implements HTTPClient interface
func (c *debugClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.logRequest(req)

	resp, err := c.client.Do(ctx, req)
	duration := time.Since(start)
	if err != nil {
		c.client.logger.Error("http request failed",
			logging.String("method", req.Method),
			logging.String("url", req.URL.String()),
			logging.Duration("duration", duration),
			logging.Error(err))
		return nil, err
	}

	c.logResponse(req, resp, duration)
	return resp, nil
}

// Get implements HTTPClient interface
func (c *debugClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.Do(ctx, req)
}

// Post implements HTTPClient interface
func (c *debugClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req)
}

// SetRateLimit implements HTTPClient interface
func (c *debugClient) SetRateLimit(limit ratelimit.Rate) error {
	return c.client.SetRateLimit(limit)
}

// Reset implements HTTPClient interface
func (c *debugClient) Reset() {
	c.client.Reset()
}

func (c *debugClient) logRequest(req *http.Request) {
	dump, err := httputil.DumpRequestOut(req, false)
	if err != nil {
		c.client.logger.Warn("failed to dump request for logging", logging.Error(err))
		return
	}

	if c.config.LogRequestBody && req.Body != nil {
		body, readErr := io.ReadAll(req.Body)
		if readErr != nil {
			c.client.logger.Warn("failed to read request body for logging",
				logging.Error(readErr))
		} else {
			// Restore the body so the request can still be executed
			req.Body = io.NopCloser(bytes.NewReader(body))
			dump = append(dump, c.truncate(body)...)
		}
	}

	c.client.logger.Debug("http request",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.String("dump", string(dump)))
}

func (c *debugClient) logResponse(req *http.Request, resp *http.Response, duration time.Duration) {
	dump, err := httputil.DumpResponse(resp, false)
	if err != nil {
		c.client.logger.Warn("failed to dump response for logging", logging.Error(err))
		return
	}

	if c.config.LogResponseBody && resp.Body != nil {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			c.client.logger.Warn("failed to read response body for logging",
				logging.Error(readErr))
		} else {
			// Restore the body so the caller can still consume it
			resp.Body = io.NopCloser(bytes.NewReader(body))
			dump = append(dump, c.truncate(body)...)
		}
	}

	c.client.logger.Debug("http response",
		logging.String("method", req.Method),
		logging.String("url", req.URL.String()),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", duration),
		logging.String("dump", string(dump)))
}

func (c *debugClient) truncate(body []byte) []byte {
	if c.config.MaxBodyLogSize > 0 && len(body) > c.config.MaxBodyLogSize {
		return body[:c.config.MaxBodyLogSize]
	}
	return body
}
