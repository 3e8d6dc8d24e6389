package interfaces

import (
	"context"
	"time"
)

// ExchangeConnector defines the main interface for interacting with a
// cryptocurrency exchange. It covers REST access for historical and current
// market data as well as WebSocket subscriptions for live updates.
//
// Implementations are expected to handle:
// - Authentication and request signing for private endpoints
// - Rate limiting according to exchange requirements
// - Pagination when the exchange caps the amount of data per call
// - Reconnection logic for WebSocket streams
// - Data normalization to the types defined in this package
type ExchangeConnector interface {
	// Connect prepares the connector for use: it verifies reachability of the
	// exchange and establishes the WebSocket session used for subscriptions.
	// The context controls connection timeout and cancellation.
	Connect(ctx context.Context) error

	// Close terminates all connections and releases resources held by the
	// connector. The connector must not be used afterwards.
	Close() error

	// GetCandles retrieves historical OHLCV data for a single symbol.
	//
	// The exchange caps the number of candles returned per API call;
	// implementations transparently split large time ranges into multiple
	// calls and merge the results into one continuous series.
	GetCandles(ctx context.Context, req CandleRequest) ([]Candle, error)

	// GetCandleHistory retrieves historical OHLCV data for one or more
	// symbols, returning one series per symbol. It is the multi-symbol form
	// of GetCandles and shares its pagination behavior.
	GetCandleHistory(ctx context.Context, req HistoryRequest) (map[string][]Candle, error)

	// GetTicker retrieves the current best bid/ask and last traded price
	// for a symbol.
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetOrderBook retrieves the current order book for a symbol. The actual
	// depth returned may be limited by the exchange.
	GetOrderBook(ctx context.Context, symbol string, depth int) (*OrderBook, error)

	// SubscribeCandles establishes a real-time candle subscription. The
	// handler is invoked from a goroutine managed by the implementation, once
	// per update, until the context is cancelled or Close is called.
	SubscribeCandles(ctx context.Context, req CandleSubscription, handler CandleHandler) error

	// SubscribeTicker establishes a real-time ticker subscription for the
	// given symbols.
	SubscribeTicker(ctx context.Context, symbols []string, handler TickerHandler) error
}

// ExchangeOptions defines configuration for an exchange connector.
type ExchangeOptions struct {
	// APIKey, APISecret and APIPassphrase authenticate private endpoints
	// (accounts, trading, margin). Public market data needs no credentials.
	APIKey        string
	APISecret     string
	APIPassphrase string

	// RestURL overrides the REST API base URL. Empty selects the exchange's
	// production endpoint, or the sandbox endpoint when Sandbox is set.
	RestURL string

	// WSBaseURL overrides the WebSocket endpoint discovered during Connect.
	WSBaseURL string

	// Sandbox directs all REST traffic to the exchange's paper-trading
	// environment. Sandbox credentials are separate from production ones.
	Sandbox bool

	// HTTPTimeout is the per-request timeout for REST calls.
	HTTPTimeout time.Duration

	// MaxRequestsPerSecond caps outbound request rate to stay under the
	// exchange's per-window limits.
	MaxRequestsPerSecond int

	// WSReconnectInterval is the wait between WebSocket reconnect attempts.
	WSReconnectInterval time.Duration

	// WSHeartbeatInterval is the ping frequency keeping the WebSocket alive.
	WSHeartbeatInterval time.Duration

	// LogLevel controls connector log verbosity: "debug", "info", "warn",
	// "error".
	LogLevel string
}

// NewExchangeOptions returns options with reasonable defaults: 15s HTTP
// timeout, 10 requests/second, 5s WS reconnect, 20s WS heartbeat, info logs.
func NewExchangeOptions() *ExchangeOptions {
	return &ExchangeOptions{
		HTTPTimeout:          15 * time.Second,
		MaxRequestsPerSecond: 10,
		WSReconnectInterval:  5 * time.Second,
		WSHeartbeatInterval:  20 * time.Second,
		LogLevel:             "info",
	}
}

// WithCredentials sets the API credentials and returns the options for
// chaining.
func (o *ExchangeOptions) WithCredentials(key, secret, passphrase string) *ExchangeOptions {
	o.APIKey = key
	o.APISecret = secret
	o.APIPassphrase = passphrase
	return o
}

// Candle represents one OHLCV data point for a fixed time interval.
type Candle struct {
	// Symbol is the trading pair identifier (e.g. "BTC-USDT").
	Symbol string

	// StartTime marks the beginning of the interval covered by this candle.
	StartTime time.Time

	// Open, High, Low and Close are the interval's prices.
	Open  float64
	High  float64
	Low   float64
	Close float64

	// Volume is the traded amount in the base currency.
	Volume float64

	// Turnover is the traded amount in the quote currency.
	Turnover float64
}

// CandleRequest defines parameters for a single-symbol historical candle
// request.
type CandleRequest struct {
	// Symbol is the trading pair to fetch (e.g. "BTC-USDT").
	Symbol string

	// Interval is the candle granularity token. Supported values are
	// exchange-specific; KuCoin accepts 1min, 3min, 5min, 15min, 30min,
	// 1hour, 2hour, 4hour, 6hour, 8hour, 12hour, 1day and 1week.
	Interval string

	// StartTime is the beginning of the requested range.
	StartTime time.Time

	// EndTime is the end of the requested range. Zero means "now".
	EndTime time.Time

	// Descending orders the returned series newest-first. The default is
	// oldest-first.
	Descending bool
}

// HistoryRequest defines parameters for a multi-symbol historical candle
// request.
type HistoryRequest struct {
	// Symbols lists the trading pairs to fetch. Case-insensitive; duplicates
	// are ignored. At least one symbol is required.
	Symbols []string

	// Interval, StartTime, EndTime and Descending behave as in CandleRequest.
	Interval   string
	StartTime  time.Time
	EndTime    time.Time
	Descending bool

	// WarnThreshold is the number of API calls above which the connector logs
	// an advisory warning that the operation may take long or hit rate
	// limits. Zero selects the default of 20; negative disables the warning.
	// The warning never blocks execution.
	WarnThreshold int
}

// CandleSubscription defines parameters for a real-time candle subscription.
type CandleSubscription struct {
	Symbols  []string
	Interval string
}

// Ticker is a snapshot of the most recent trading activity for one pair.
type Ticker struct {
	Symbol  string
	Price   float64
	BestBid float64
	BestAsk float64
	Size    float64
	Time    time.Time
}

// OrderBookLevel is one price level of the order book.
type OrderBookLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is the current market depth for one pair. Bids are sorted
// descending by price, asks ascending.
type OrderBook struct {
	Symbol string
	Bids   []OrderBookLevel
	Asks   []OrderBookLevel
	Time   time.Time
}

// Handler types for WebSocket callbacks.
type (
	// CandleHandler processes real-time candle updates.
	CandleHandler func(Candle)

	// TickerHandler processes real-time ticker updates.
	TickerHandler func(Ticker)
)
