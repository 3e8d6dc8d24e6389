package kucoin

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
	"github.com/veiloq/kucoin-connector/pkg/logging"
)

// defaultWarnThreshold is the call count above which GetCandleHistory logs
// an advisory warning before starting the fetch.
const defaultWarnThreshold = 20

// page is the classified result of one kline API call for one sub-range:
// either a list of parsed bars, or an end-of-series marker meaning the
// exchange has no data at or before the requested window.
type page struct {
	bars        []interfaces.Candle
	endOfSeries bool
}

// GetCandles retrieves historical OHLCV data for a single symbol, splitting
// the requested range into as many API calls as the server's per-call bar
// cap requires and merging the pages into one continuous series.
func (c *Connector) GetCandles(ctx context.Context, req interfaces.CandleRequest) ([]interfaces.Candle, error) {
	series, err := c.GetCandleHistory(ctx, interfaces.HistoryRequest{
		Symbols:    []string{req.Symbol},
		Interval:   req.Interval,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Descending: req.Descending,
	})
	if err != nil {
		return nil, err
	}
	return series[normalizeSymbol(req.Symbol)], nil
}

// GetCandleHistory retrieves one OHLCV series per requested symbol.
//
// The engine walks each symbol's sub-ranges newest-first and stops for that
// symbol at the first empty page: the exchange returns an empty data array
// once the walk has passed the beginning of the symbol's recorded history,
// and every earlier window would be empty too. An unknown symbol, by
// contrast, aborts the whole call with ErrInvalidSymbol and no partial
// result.
//
// Transient server conditions (429 rate limiting, connection drops, read
// timeouts) are retried internally per the connector's backoff policy and
// surface only when the retry budget is exhausted.
func (c *Connector) GetCandleHistory(ctx context.Context, req interfaces.HistoryRequest) (map[string][]interfaces.Candle, error) {
	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return nil, err
	}

	end := req.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}

	ranges, err := planRanges(req.StartTime, end, req.Interval, c.history.maxBarsPerCall)
	if err != nil {
		return nil, err
	}

	threshold := req.WarnThreshold
	if threshold == 0 {
		threshold = defaultWarnThreshold
	}
	if totalCalls := len(ranges) * len(symbols); threshold > 0 && totalCalls > threshold {
		c.logger.Warn("large candle history request",
			logging.Int("api_calls", totalCalls),
			logging.Int("symbols", len(symbols)),
			logging.String("interval", req.Interval),
		)
	}

	result := make(map[string][]interfaces.Candle, len(symbols))
	for _, symbol := range symbols {
		series, err := c.fetchSymbolHistory(ctx, symbol, ranges, req.Interval, req.Descending)
		if err != nil {
			return nil, err
		}
		result[symbol] = series
	}
	return result, nil
}

// fetchSymbolHistory walks the planned sub-ranges for one symbol, newest
// first, and assembles the fetched pages into a single ordered series.
func (c *Connector) fetchSymbolHistory(ctx context.Context, symbol string, ranges []timeRange, interval string, descending bool) ([]interfaces.Candle, error) {
	pages := make([]page, 0, len(ranges))
	for _, r := range ranges {
		p, err := c.fetchCandlePage(ctx, symbol, r, interval)
		if err != nil {
			return nil, err
		}
		if p.endOfSeries {
			c.logger.Debug("end of recorded history",
				logging.String("symbol", symbol),
				logging.Time("before", r.end),
			)
			break
		}
		pages = append(pages, p)
	}
	return assembleSeries(pages, descending), nil
}

// fetchCandlePage issues one kline request for one sub-range and classifies
// the response.
//
// Failure handling, in priority order:
//  1. transport failure: cool down, rebuild the HTTP client so no pooled
//     connection to the broken socket is reused, and retry the same request
//     once; a second failure is fatal.
//  2. HTTP 429: exponential backoff (base^attempt), bounded by the retry
//     cap; exceeding the cap is fatal. The attempt counter is local to this
//     call, so an exhausted budget never leaks into later requests.
//  3. payload code 400100: unknown trading pair, fatal and never retried.
//  4. success with empty data: end-of-series marker, not an error.
//  5. success with rows: parsed bars.
func (c *Connector) fetchCandlePage(ctx context.Context, symbol string, r timeRange, interval string) (page, error) {
	path := fmt.Sprintf("/api/v1/market/candles?type=%s&symbol=%s&startAt=%d&endAt=%d",
		interval, symbol, r.start.Unix(), r.end.Unix())
	url := c.baseURL() + path

	attempt := 0
	transportRetried := false
	for {
		resp, err := c.http.Get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return page{}, ctx.Err()
			}
			if transportRetried {
				return page{}, fmt.Errorf("%w: %v", interfaces.ErrExchangeUnavailable, err)
			}
			transportRetried = true
			c.logger.Warn("transport failure, cooling down",
				logging.String("symbol", symbol),
				logging.Duration("cooldown", c.history.connectionCooldown),
				logging.Error(err),
			)
			if err := sleepCtx(ctx, c.history.connectionCooldown); err != nil {
				return page{}, err
			}
			c.http.Reset()
			continue
		}

		raw, readErr := readBody(resp)
		if readErr != nil {
			if transportRetried {
				return page{}, fmt.Errorf("%w: %v", interfaces.ErrExchangeUnavailable, readErr)
			}
			transportRetried = true
			c.logger.Warn("read failure, cooling down",
				logging.String("symbol", symbol),
				logging.Error(readErr),
			)
			if err := sleepCtx(ctx, c.history.connectionCooldown); err != nil {
				return page{}, err
			}
			c.http.Reset()
			continue
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			attempt++
			if attempt > c.history.maxRateLimitRetries {
				return page{}, fmt.Errorf("%w: gave up after %d rate-limited attempts for %s",
					interfaces.ErrServerUnresponsive, attempt, symbol)
			}
			wait := time.Duration(math.Pow(c.history.backoffBase, float64(attempt)) * float64(c.history.backoffUnit))
			c.logger.Debug("rate limited, backing off",
				logging.String("symbol", symbol),
				logging.Int("attempt", attempt),
				logging.Duration("wait", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return page{}, err
			}
			continue
		case resp.StatusCode != http.StatusOK:
			return page{}, fmt.Errorf("kucoin API error: status %d: %s",
				resp.StatusCode, strings.TrimSpace(string(raw)))
		}

		return parseCandlePage(symbol, raw)
	}
}

// parseCandlePage classifies a 200 response body for the kline endpoint.
//
// Each wire row is a fixed-position array
// [time_seconds, open, close, high, low, volume, turnover] with numeric
// fields encoded as strings. A field that fails conversion is a
// data-integrity error, never silently dropped.
func parseCandlePage(symbol string, raw []byte) (page, error) {
	code := gjson.GetBytes(raw, "code").String()
	switch code {
	case codeSuccess:
	case codeInvalidSymbol:
		return page{}, interfaces.NewMarketError(symbol,
			gjson.GetBytes(raw, "msg").String(), interfaces.ErrInvalidSymbol)
	default:
		return page{}, fmt.Errorf("kucoin API error: code %s: %s",
			code, gjson.GetBytes(raw, "msg").String())
	}

	rows := gjson.GetBytes(raw, "data").Array()
	if len(rows) == 0 {
		return page{endOfSeries: true}, nil
	}

	bars := make([]interfaces.Candle, 0, len(rows))
	for _, row := range rows {
		fields := row.Array()
		if len(fields) < 7 {
			return page{}, fmt.Errorf("%w: candle row has %d fields, want 7",
				interfaces.ErrMalformedData, len(fields))
		}

		ts, err := strconv.ParseInt(fields[0].String(), 10, 64)
		if err != nil {
			return page{}, fmt.Errorf("%w: candle timestamp %q", interfaces.ErrMalformedData, fields[0].String())
		}

		bar := interfaces.Candle{
			Symbol:    symbol,
			StartTime: time.Unix(ts, 0).UTC(),
		}
		for i, dst := range []*float64{&bar.Open, &bar.Close, &bar.High, &bar.Low, &bar.Volume, &bar.Turnover} {
			v, err := strconv.ParseFloat(fields[i+1].String(), 64)
			if err != nil {
				return page{}, fmt.Errorf("%w: candle field %q", interfaces.ErrMalformedData, fields[i+1].String())
			}
			*dst = v
		}
		bars = append(bars, bar)
	}
	return page{bars: bars}, nil
}

// assembleSeries merges fetched pages into one series, strictly ordered by
// start time with duplicates at page boundaries removed. An all-empty input
// yields an empty, non-nil series: "no data exists in or before the
// requested window" is a valid answer.
func assembleSeries(pages []page, descending bool) []interfaces.Candle {
	total := 0
	for _, p := range pages {
		total += len(p.bars)
	}
	bars := make([]interfaces.Candle, 0, total)
	for _, p := range pages {
		bars = append(bars, p.bars...)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].StartTime.Before(bars[j].StartTime)
	})

	series := bars[:0]
	for _, bar := range bars {
		if n := len(series); n > 0 && series[n-1].StartTime.Equal(bar.StartTime) {
			continue
		}
		series = append(series, bar)
	}

	if descending {
		for i, j := 0, len(series)-1; i < j; i, j = i+1, j-1 {
			series[i], series[j] = series[j], series[i]
		}
	}
	return series
}

// EstimateCalls reports how many API requests a history request would issue,
// before any network traffic happens. Useful for callers that want to gate
// large backfills themselves rather than rely on the advisory log warning.
func (c *Connector) EstimateCalls(req interfaces.HistoryRequest) (int, error) {
	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return 0, err
	}
	end := req.EndTime
	if end.IsZero() {
		end = time.Now().UTC()
	}
	ranges, err := planRanges(req.StartTime, end, req.Interval, c.history.maxBarsPerCall)
	if err != nil {
		return 0, err
	}
	return len(ranges) * len(symbols), nil
}

// normalizeSymbols uppercases, trims and deduplicates the requested symbols,
// preserving first-seen order.
func normalizeSymbols(symbols []string) ([]string, error) {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		sym := normalizeSymbol(s)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no symbols requested", interfaces.ErrInvalidSymbol)
	}
	return out, nil
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// sleepCtx blocks for d or until the context is cancelled. Backoff waits go
// through here so a caller can abort a long cool-down by cancelling the
// whole call.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readBody drains and closes an HTTP response body.
func readBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
