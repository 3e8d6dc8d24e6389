// Package kucoin-connector provides a Go client for the KuCoin cryptocurrency
// exchange, covering historical market data, account and trading endpoints,
// and real-time WebSocket streams.
//
// Core Features:
//
//   - Historical OHLCV retrieval with transparent pagination around the
//     exchange's 1500-bar per-call cap
//   - Multi-symbol history requests returning one series per symbol
//   - Automatic exponential backoff on rate limiting and recovery from
//     dropped connections
//   - Market data operations (tickers, order books, 24h statistics)
//   - Signed account, trading and margin endpoints (KC-API key version 2)
//   - WebSocket subscriptions for real-time candles and tickers
//   - SQL persistence of candle series, one table per trading pair
//
// The library is built around the ExchangeConnector interface in
// pkg/exchanges/interfaces, with the KuCoin implementation in
// pkg/exchanges/kucoin.
//
// # Standard Errors
//
// The interfaces package defines standardized errors so callers can branch
// on error conditions with errors.Is:
//
//   - ErrNotConnected: an operation was attempted before Connect or after
//     Close
//
//   - ErrInvalidSymbol: the exchange does not know the trading pair
//
//   - ErrInvalidInterval: an unsupported candle interval was provided
//
//   - ErrInvalidTimeRange: the requested end time is not after the start
//     time
//
//   - ErrServerUnresponsive: the exchange kept rate-limiting past the retry
//     budget
//
//   - ErrMalformedData: the exchange returned a payload that does not match
//     its documented shape
//
//   - ErrAuthenticationRequired: a signed endpoint was called without
//     credentials
//
//   - ErrInvalidCredentials: the exchange rejected the provided credentials
//
//   - ErrSubscriptionFailed: a WebSocket subscription could not be
//     established
//
//   - ErrExchangeUnavailable: the exchange stayed unreachable after the
//     connection retry
//
// Additionally, the library provides a MarketError type for symbol-specific
// error conditions, created with NewMarketError(symbol, message, err).
//
// # Examples
//
// Basic usage:
//
//	options := interfaces.NewExchangeOptions().
//	    WithCredentials("your-api-key", "your-api-secret", "your-passphrase")
//	connector := kucoin.NewConnector(options)
//
//	ctx := context.Background()
//	if err := connector.Connect(ctx); err != nil {
//	    log.Fatalf("Failed to connect: %v", err)
//	}
//	defer connector.Close()
//
// Credentials are only needed for account, trading and margin endpoints;
// market data works without them.
//
// # Candle Examples
//
// Getting historical candle data:
//
//	// Two days of 1-minute candles: the connector splits this into two API
//	// calls behind the scenes and merges the results.
//	candles, err := connector.GetCandles(ctx, interfaces.CandleRequest{
//	    Symbol:    "BTC-USDT",
//	    Interval:  "1min",
//	    StartTime: time.Now().Add(-48 * time.Hour),
//	    EndTime:   time.Now(),
//	})
//
//	if err != nil {
//	    switch {
//	    case errors.Is(err, interfaces.ErrInvalidSymbol):
//	        log.Fatalf("Unknown trading pair")
//	    case errors.Is(err, interfaces.ErrInvalidInterval):
//	        log.Fatalf("Unsupported interval")
//	    case errors.Is(err, interfaces.ErrInvalidTimeRange):
//	        log.Fatalf("End time must be after start time")
//	    default:
//	        log.Fatalf("Failed to get candles: %v", err)
//	    }
//	}
//
//	for _, candle := range candles {
//	    fmt.Printf("%s | Open: %.2f, Close: %.2f\n",
//	        candle.StartTime.Format("2006-01-02 15:04"),
//	        candle.Open,
//	        candle.Close)
//	}
//
// Fetching several symbols in one call:
//
//	series, err := connector.GetCandleHistory(ctx, interfaces.HistoryRequest{
//	    Symbols:   []string{"BTC-USDT", "ETH-USDT"},
//	    Interval:  "1day",
//	    StartTime: time.Now().AddDate(0, -1, 0),
//	})
//
//	for symbol, candles := range series {
//	    fmt.Printf("%s: %d candles\n", symbol, len(candles))
//	}
//
// Subscribing to real-time candle updates:
//
//	err := connector.SubscribeCandles(ctx, interfaces.CandleSubscription{
//	    Symbols:  []string{"BTC-USDT"},
//	    Interval: "1min",
//	}, func(candle interfaces.Candle) {
//	    fmt.Printf("[%s] Close: $%.2f Volume: %.2f\n",
//	        candle.StartTime.Format("15:04:05"),
//	        candle.Close,
//	        candle.Volume)
//	})
//
// # Persisting Candles
//
// The pipeline package writes fetched series into a SQL database, one table
// per trading pair (BTC-USDT becomes table btcusdt):
//
//	db, err := sqlx.Connect("postgres", dsn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = pipeline.Run(ctx, connector, db, pipeline.Config{
//	    Symbols:   []string{"BTC-USDT"},
//	    Interval:  "1hour",
//	    StartTime: time.Now().AddDate(0, -6, 0),
//	    Mode:      pipeline.ModeReplace,
//	})
package kucoinconnector
