package interfaces

import (
	"errors"
	"fmt"
)

// Common error variables that exchange connectors may return
var (
	// ErrNotConnected is returned when an operation is attempted on a connector
	// that hasn't been connected yet or lost connection
	ErrNotConnected = errors.New("exchange connector not connected")

	// ErrInvalidSymbol is returned when the exchange does not recognize the
	// requested trading pair. It is permanent for the given input and must be
	// distinguished from a valid symbol that simply has no more historical
	// data.
	ErrInvalidSymbol = errors.New("unknown trading pair symbol")

	// ErrInvalidInterval is returned when an unsupported time interval token
	// is provided
	ErrInvalidInterval = errors.New("invalid candle interval")

	// ErrInvalidTimeRange is returned when an invalid time range is provided
	// (e.g., end time not after start time)
	ErrInvalidTimeRange = errors.New("invalid time range")

	// ErrServerUnresponsive is returned when the exchange kept rate-limiting
	// or failing a request and the retry budget was exhausted
	ErrServerUnresponsive = errors.New("exchange server unresponsive after retries")

	// ErrMalformedData is returned when a response field cannot be parsed
	// into its expected type. Malformed values are never silently coerced.
	ErrMalformedData = errors.New("malformed data in exchange response")

	// ErrAuthenticationRequired is returned when attempting an operation that
	// requires authentication without providing credentials
	ErrAuthenticationRequired = errors.New("authentication required for this operation")

	// ErrInvalidCredentials is returned when the provided API credentials are invalid
	ErrInvalidCredentials = errors.New("invalid API credentials")

	// ErrSubscriptionFailed is returned when a WebSocket subscription cannot be established
	ErrSubscriptionFailed = errors.New("failed to establish subscription")

	// ErrExchangeUnavailable is returned when the exchange API is unavailable
	ErrExchangeUnavailable = errors.New("exchange API unavailable")
)

// MarketError represents a market-specific error condition
type MarketError struct {
	Symbol  string
	Message string
	Err     error
}

// Error implements the error interface
func (e *MarketError) Error() string {
	return fmt.Sprintf("market error for %s: %s", e.Symbol, e.Message)
}

// Unwrap returns the underlying error
func (e *MarketError) Unwrap() error {
	return e.Err
}

// NewMarketError creates a new market-specific error
func NewMarketError(symbol, message string, err error) error {
	return &MarketError{
		Symbol:  symbol,
		Message: message,
		Err:     err,
	}
}
