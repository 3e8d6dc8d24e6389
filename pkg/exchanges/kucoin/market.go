package kucoin

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veiloq/kucoin-connector/pkg/exchanges/interfaces"
)

// SymbolInfo describes one trading pair as listed by the exchange.
type SymbolInfo struct {
	Symbol         string          `json:"symbol"`
	Name           string          `json:"name"`
	BaseCurrency   string          `json:"baseCurrency"`
	QuoteCurrency  string          `json:"quoteCurrency"`
	Market         string          `json:"market"`
	BaseMinSize    decimal.Decimal `json:"baseMinSize"`
	BaseMaxSize    decimal.Decimal `json:"baseMaxSize"`
	QuoteMinSize   decimal.Decimal `json:"quoteMinSize"`
	QuoteMaxSize   decimal.Decimal `json:"quoteMaxSize"`
	BaseIncrement  decimal.Decimal `json:"baseIncrement"`
	QuoteIncrement decimal.Decimal `json:"quoteIncrement"`
	PriceIncrement decimal.Decimal `json:"priceIncrement"`
	FeeCurrency    string          `json:"feeCurrency"`
	EnableTrading  bool            `json:"enableTrading"`
	IsMarginEnable bool            `json:"isMarginEnabled"`
}

// Stats24h holds the 24-hour rolling statistics for one symbol.
type Stats24h struct {
	Symbol      string          `json:"symbol"`
	Buy         decimal.Decimal `json:"buy"`
	Sell        decimal.Decimal `json:"sell"`
	ChangeRate  decimal.Decimal `json:"changeRate"`
	ChangePrice decimal.Decimal `json:"changePrice"`
	High        decimal.Decimal `json:"high"`
	Low         decimal.Decimal `json:"low"`
	Volume      decimal.Decimal `json:"vol"`
	VolValue    decimal.Decimal `json:"volValue"`
	Last        decimal.Decimal `json:"last"`
	Time        int64           `json:"time"`
}

// ServerTime returns the exchange's clock. Besides its use for drift checks,
// a successful call proves the REST API is reachable, so Connect pings it.
func (c *Connector) ServerTime(ctx context.Context) (time.Time, error) {
	var millis int64
	if err := c.getJSON(ctx, "/api/v1/timestamp", &millis); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis).UTC(), nil
}

// Symbols lists every trading pair the exchange currently knows about.
func (c *Connector) Symbols(ctx context.Context) ([]SymbolInfo, error) {
	var symbols []SymbolInfo
	if err := c.getJSON(ctx, "/api/v1/symbols", &symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// SymbolDetail returns trading rules for a single pair.
func (c *Connector) SymbolDetail(ctx context.Context, symbol string) (*SymbolInfo, error) {
	symbol = normalizeSymbol(symbol)
	var info SymbolInfo
	if err := c.getJSON(ctx, "/api/v2/symbols/"+symbol, &info); err != nil {
		return nil, err
	}
	if info.Symbol == "" {
		return nil, interfaces.NewMarketError(symbol, "unknown symbol", interfaces.ErrInvalidSymbol)
	}
	return &info, nil
}

// Stats returns the 24-hour rolling statistics for a symbol.
func (c *Connector) Stats(ctx context.Context, symbol string) (*Stats24h, error) {
	symbol = normalizeSymbol(symbol)
	var stats Stats24h
	if err := c.getJSON(ctx, "/api/v1/market/stats?symbol="+symbol, &stats); err != nil {
		return nil, err
	}
	if stats.Symbol == "" {
		return nil, interfaces.NewMarketError(symbol, "no statistics returned", interfaces.ErrInvalidSymbol)
	}
	return &stats, nil
}

// tickerPayload matches the level1 orderbook response. Prices arrive as
// strings on the wire.
type tickerPayload struct {
	Sequence    string `json:"sequence"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	BestBid     string `json:"bestBid"`
	BestBidSize string `json:"bestBidSize"`
	BestAsk     string `json:"bestAsk"`
	BestAskSize string `json:"bestAskSize"`
	Time        int64  `json:"time"`
}

// GetTicker returns the current best bid/ask and last trade for a symbol.
func (c *Connector) GetTicker(ctx context.Context, symbol string) (*interfaces.Ticker, error) {
	symbol = normalizeSymbol(symbol)
	var payload tickerPayload
	if err := c.getJSON(ctx, "/api/v1/market/orderbook/level1?symbol="+symbol, &payload); err != nil {
		return nil, err
	}
	if payload.Price == "" {
		return nil, interfaces.NewMarketError(symbol, "no ticker returned", interfaces.ErrInvalidSymbol)
	}

	ticker := &interfaces.Ticker{
		Symbol: symbol,
		Time:   time.UnixMilli(payload.Time).UTC(),
	}
	for _, f := range []struct {
		raw string
		dst *float64
	}{
		{payload.Price, &ticker.Price},
		{payload.BestBid, &ticker.BestBid},
		{payload.BestAsk, &ticker.BestAsk},
		{payload.Size, &ticker.Size},
	} {
		if f.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(f.raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: ticker field %q", interfaces.ErrMalformedData, f.raw)
		}
		*f.dst = v
	}
	return ticker, nil
}

// orderBookPayload matches the level2 orderbook response. Each side is a
// list of [price, size] string pairs.
type orderBookPayload struct {
	Sequence string      `json:"sequence"`
	Time     int64       `json:"time"`
	Bids     [][2]string `json:"bids"`
	Asks     [][2]string `json:"asks"`
}

// GetOrderBook returns up to depth levels per side of the aggregated order
// book. The exchange serves fixed snapshot sizes of 20 and 100 levels;
// depth selects the smallest snapshot that covers it.
func (c *Connector) GetOrderBook(ctx context.Context, symbol string, depth int) (*interfaces.OrderBook, error) {
	symbol = normalizeSymbol(symbol)
	endpoint := "/api/v1/market/orderbook/level2_100"
	if depth > 0 && depth <= 20 {
		endpoint = "/api/v1/market/orderbook/level2_20"
	}

	var payload orderBookPayload
	if err := c.getJSON(ctx, endpoint+"?symbol="+symbol, &payload); err != nil {
		return nil, err
	}

	book := &interfaces.OrderBook{
		Symbol: symbol,
		Time:   time.UnixMilli(payload.Time).UTC(),
	}
	var err error
	if book.Bids, err = parseBookSide(payload.Bids, depth); err != nil {
		return nil, err
	}
	if book.Asks, err = parseBookSide(payload.Asks, depth); err != nil {
		return nil, err
	}
	return book, nil
}

func parseBookSide(rows [][2]string, depth int) ([]interfaces.OrderBookLevel, error) {
	if depth > 0 && depth < len(rows) {
		rows = rows[:depth]
	}
	levels := make([]interfaces.OrderBookLevel, 0, len(rows))
	for _, row := range rows {
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: order book price %q", interfaces.ErrMalformedData, row[0])
		}
		qty, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: order book size %q", interfaces.ErrMalformedData, row[1])
		}
		levels = append(levels, interfaces.OrderBookLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
