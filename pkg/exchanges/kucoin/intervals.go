package kucoin

import (
	"fmt"
	"time"

	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
)

// Candle interval tokens accepted by the KuCoin kline endpoint, mapped to
// their duration in minutes. One week has no native minute count on the
// exchange side and is derived as 7 x one day.
var intervalMinutes = map[string]int{
	"1min":   1,
	"3min":   3,
	"5min":   5,
	"15min":  15,
	"30min":  30,
	"1hour":  60,
	"2hour":  120,
	"4hour":  240,
	"6hour":  360,
	"8hour":  480,
	"12hour": 720,
	"1day":   1440,
	"1week":  7 * 1440,
}

// intervalDuration resolves an interval token to its bar duration.
// Unrecognized tokens are a caller error, never retried.
func intervalDuration(interval string) (time.Duration, error) {
	minutes, ok := intervalMinutes[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", interfaces.ErrInvalidInterval, interval)
	}
	return time.Duration(minutes) * time.Minute, nil
}

// Intervals returns the supported interval tokens in ascending duration
// order.
func Intervals() []string {
	return []string{
		"1min", "3min", "5min", "15min", "30min",
		"1hour", "2hour", "4hour", "6hour", "8hour", "12hour",
		"1day", "1week",
	}
}
