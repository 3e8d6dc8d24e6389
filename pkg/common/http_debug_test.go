package common

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/kucoin-connector/pkg/logging"
	"github.com/veiloq/kucoin-connector/pkg/ratelimit"
)

func newDebugTestClient(t *testing.T, maxBodyLogSize int) (HTTPClient, *bytes.Buffer) {
	t.Helper()
	logger, ok := logging.NewZapLogger(logging.WithDebugLevel()).(*logging.ZapLogger)
	require.True(t, ok)

	var buf bytes.Buffer
	logger.SetOutput(&buf)

	client := NewDebugHTTPClient(&DebugClientConfig{
		ClientConfig: &ClientConfig{
			Timeout:    2 * time.Second,
			RateLimit:  ratelimit.Rate{Limit: 1000, Interval: time.Second},
			MaxRetries: 1,
			RetryDelay: time.Millisecond,
			Logger:     logger,
		},
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLogSize:  maxBodyLogSize,
	})
	return client, &buf
}

func TestDebugClient_LogsRequestAndResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":"200000"}`)
	}))
	defer server.Close()

	client, buf := newDebugTestClient(t, 0)
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The response body must survive the dump untouched
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"code":"200000"}`, string(body))

	out := buf.String()
	assert.Contains(t, out, `"message":"http request"`)
	assert.Contains(t, out, `"message":"http response"`)
	assert.Contains(t, out, server.URL)
	assert.Contains(t, out, "200000")
}

func TestDebugClient_PostBodyReachesServer(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, buf := newDebugTestClient(t, 0)
	resp, err := client.Post(context.Background(), server.URL, map[string]string{"symbol": "BTC-USDT"})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, `{"symbol":"BTC-USDT"}`, received)
	assert.Contains(t, buf.String(), "BTC-USDT")
}

func TestDebugClient_TruncatesDumpedBody(t *testing.T) {
	payload := strings.Repeat("A", 256) + "TAIL"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	defer server.Close()

	client, buf := newDebugTestClient(t, 64)
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body), "caller sees the full body")
	assert.NotContains(t, buf.String(), "TAIL", "dump is capped")
}

func TestNewDebugHTTPClient_BuildsZapLogger(t *testing.T) {
	config := &DebugClientConfig{
		ClientConfig: &ClientConfig{
			Timeout:   time.Second,
			RateLimit: ratelimit.Rate{Limit: 1000, Interval: time.Second},
			Logger:    logging.NewLogger(),
		},
	}
	NewDebugHTTPClient(config)
	assert.IsType(t, &logging.ZapLogger{}, config.Logger)
}

func TestDebugClient_ResetLeavesClientUsable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, _ := newDebugTestClient(t, 0)
	client.Reset()

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
