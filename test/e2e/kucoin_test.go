package e2e

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/avast/retry-go"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/kucoin"
)

// TestKucoinConnector_E2E exercises the connector against the live KuCoin
// API. Public market data works without credentials; the account subtest
// needs KUCOIN_API_KEY, KUCOIN_API_SECRET and KUCOIN_API_PASSPHRASE.
//
// To run: go test -v ./test/e2e
func TestKucoinConnector_E2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	apiKey := os.Getenv("KUCOIN_API_KEY")
	apiSecret := os.Getenv("KUCOIN_API_SECRET")
	apiPassphrase := os.Getenv("KUCOIN_API_PASSPHRASE")
	runningInCI := os.Getenv("CI") != ""

	options := interfaces.NewExchangeOptions()
	options.LogLevel = "debug"
	if apiKey != "" {
		options = options.WithCredentials(apiKey, apiSecret, apiPassphrase)
	}

	connector := kucoin.NewConnector(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	err := connector.Connect(ctx)
	require.NoError(t, err, "failed to connect to exchange")
	defer connector.Close()

	t.Run("ServerTime", func(t *testing.T) {
		ts, err := connector.ServerTime(ctx)
		require.NoError(t, err, "failed to get server time")
		require.WithinDuration(t, time.Now(), ts, time.Minute)
	})

	t.Run("GetCandles", func(t *testing.T) {
		candles, err := connector.GetCandles(ctx, interfaces.CandleRequest{
			Symbol:    "BTC-USDT",
			Interval:  "1min",
			StartTime: time.Now().Add(-1 * time.Hour),
			EndTime:   time.Now(),
		})
		require.NoError(t, err, "failed to get candles")
		require.NotEmpty(t, candles, "no candles returned")
		require.Equal(t, "BTC-USDT", candles[0].Symbol)
		for i := 1; i < len(candles); i++ {
			require.True(t, candles[i].StartTime.After(candles[i-1].StartTime),
				"series must be strictly ascending")
		}
	})

	// Spans the 1500-bar cap so the request needs several API calls.
	t.Run("GetCandles_Paginated", func(t *testing.T) {
		candles, err := connector.GetCandles(ctx, interfaces.CandleRequest{
			Symbol:    "BTC-USDT",
			Interval:  "1hour",
			StartTime: time.Now().Add(-3000 * time.Hour),
			EndTime:   time.Now(),
		})
		require.NoError(t, err, "failed to get paginated candles")
		require.Greater(t, len(candles), 1500, "pagination should exceed one page")
	})

	t.Run("GetCandles_InvalidSymbol", func(t *testing.T) {
		_, err := connector.GetCandles(ctx, interfaces.CandleRequest{
			Symbol:    "DOES-NOTEXIST",
			Interval:  "1min",
			StartTime: time.Now().Add(-1 * time.Hour),
			EndTime:   time.Now(),
		})
		require.ErrorIs(t, err, interfaces.ErrInvalidSymbol)
	})

	t.Run("GetTicker", func(t *testing.T) {
		ticker, err := connector.GetTicker(ctx, "BTC-USDT")
		require.NoError(t, err, "failed to get ticker")
		require.Equal(t, "BTC-USDT", ticker.Symbol)
		require.Greater(t, ticker.Price, float64(0))
	})

	t.Run("GetOrderBook", func(t *testing.T) {
		orderBook, err := connector.GetOrderBook(ctx, "BTC-USDT", 20)
		require.NoError(t, err, "failed to get order book")
		require.Equal(t, "BTC-USDT", orderBook.Symbol)
		require.NotEmpty(t, orderBook.Bids)
		require.NotEmpty(t, orderBook.Asks)
		require.LessOrEqual(t, len(orderBook.Bids), 20)
		require.LessOrEqual(t, len(orderBook.Asks), 20)
	})

	t.Run("Accounts", func(t *testing.T) {
		if apiKey == "" || runningInCI {
			t.Skip("requires API credentials and a non-CI environment")
		}
		accounts, err := connector.Accounts(ctx, kucoin.AccountFilter{})
		require.NoError(t, err, "failed to list accounts")
		t.Logf("account entries: %d", len(accounts))
	})

	t.Run("WebSocketSubscriptions", func(t *testing.T) {
		if runningInCI {
			t.Skip("skipping streaming test in CI")
		}

		tickerCh := make(chan interfaces.Ticker, 10)
		err := connector.SubscribeTicker(ctx, []string{"BTC-USDT"},
			func(ticker interfaces.Ticker) {
				select {
				case tickerCh <- ticker:
				default:
				}
			})
		require.NoError(t, err, "failed to subscribe to ticker")

		var received bool
		err = retry.Do(
			func() error {
				select {
				case ticker := <-tickerCh:
					if ticker.Symbol == "BTC-USDT" {
						received = true
					}
				default:
				}
				if !received {
					return fmt.Errorf("waiting for ticker updates")
				}
				return nil
			},
			retry.Attempts(30),
			retry.Delay(1*time.Second),
			retry.DelayType(retry.FixedDelay),
			retry.OnRetry(func(n uint, err error) {
				t.Logf("Retry %d: waiting for ticker update", n+1)
			}),
		)
		require.NoError(t, err, "timeout waiting for ticker update")
	})

	t.Run("Reconnection", func(t *testing.T) {
		err := connector.Close()
		require.NoError(t, err, "failed to close connection")

		err = connector.Connect(ctx)
		require.NoError(t, err, "failed to reconnect")

		ticker, err := connector.GetTicker(ctx, "BTC-USDT")
		require.NoError(t, err, "failed to get ticker after reconnect")
		require.Equal(t, "BTC-USDT", ticker.Symbol)
	})
}
