package kucoin

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order sides and lifecycle states as the exchange reports them.
const (
	SideBuy  = "buy"
	SideSell = "sell"

	OrderTypeLimit  = "limit"
	OrderTypeMarket = "market"
)

// LimitOrderRequest places a limit order on the spot market.
type LimitOrderRequest struct {
	Symbol      string
	Side        string
	Price       decimal.Decimal
	Size        decimal.Decimal
	ClientOID   string // optional, generated when empty
	TimeInForce string // GTC (default), GTT, IOC or FOK
	PostOnly    bool
}

// MarketOrderRequest places a market order on the spot market. Exactly one
// of Size (base currency) or Funds (quote currency) must be set.
type MarketOrderRequest struct {
	Symbol    string
	Side      string
	Size      decimal.Decimal
	Funds     decimal.Decimal
	ClientOID string
}

// Order is one order as reported by the exchange.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Type      string          `json:"type"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Funds     decimal.Decimal `json:"funds"`
	DealFunds decimal.Decimal `json:"dealFunds"`
	DealSize  decimal.Decimal `json:"dealSize"`
	Fee       decimal.Decimal `json:"fee"`
	FeeCcy    string          `json:"feeCurrency"`
	ClientOID string          `json:"clientOid"`
	IsActive  bool            `json:"isActive"`
	CreatedAt int64           `json:"createdAt"`
}

// Fill is one execution of an order.
type Fill struct {
	TradeID   string          `json:"tradeId"`
	OrderID   string          `json:"orderId"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Funds     decimal.Decimal `json:"funds"`
	Fee       decimal.Decimal `json:"fee"`
	FeeCcy    string          `json:"feeCurrency"`
	CreatedAt int64           `json:"createdAt"`
}

type orderResult struct {
	OrderID string `json:"orderId"`
}

// PlaceLimitOrder submits a limit order and returns the exchange-assigned
// order ID. Requires credentials.
func (c *Connector) PlaceLimitOrder(ctx context.Context, req LimitOrderRequest) (string, error) {
	payload := map[string]interface{}{
		"clientOid": orDefaultOID(req.ClientOID),
		"symbol":    normalizeSymbol(req.Symbol),
		"side":      req.Side,
		"type":      OrderTypeLimit,
		"price":     req.Price.String(),
		"size":      req.Size.String(),
	}
	if req.TimeInForce != "" {
		payload["timeInForce"] = req.TimeInForce
	}
	if req.PostOnly {
		payload["postOnly"] = true
	}

	var result orderResult
	if err := c.postJSON(ctx, "/api/v1/orders", payload, &result); err != nil {
		return "", err
	}
	return result.OrderID, nil
}

// PlaceMarketOrder submits a market order and returns the exchange-assigned
// order ID. Requires credentials.
func (c *Connector) PlaceMarketOrder(ctx context.Context, req MarketOrderRequest) (string, error) {
	payload := map[string]interface{}{
		"clientOid": orDefaultOID(req.ClientOID),
		"symbol":    normalizeSymbol(req.Symbol),
		"side":      req.Side,
		"type":      OrderTypeMarket,
	}
	if !req.Size.IsZero() {
		payload["size"] = req.Size.String()
	}
	if !req.Funds.IsZero() {
		payload["funds"] = req.Funds.String()
	}

	var result orderResult
	if err := c.postJSON(ctx, "/api/v1/orders", payload, &result); err != nil {
		return "", err
	}
	return result.OrderID, nil
}

// CancelOrder cancels an order by its exchange ID. Returns the IDs the
// exchange confirms as cancelled.
func (c *Connector) CancelOrder(ctx context.Context, orderID string) ([]string, error) {
	var result struct {
		CancelledOrderIDs []string `json:"cancelledOrderIds"`
	}
	if err := c.deleteJSON(ctx, "/api/v1/orders/"+orderID, &result); err != nil {
		return nil, err
	}
	return result.CancelledOrderIDs, nil
}

// OrderFilter narrows Orders and Fills listings. Zero values match
// everything.
type OrderFilter struct {
	Symbol    string
	Side      string
	Status    string // active or done
	StartTime time.Time
	EndTime   time.Time
}

func (f OrderFilter) query() url.Values {
	query := url.Values{}
	if f.Symbol != "" {
		query.Set("symbol", normalizeSymbol(f.Symbol))
	}
	if f.Side != "" {
		query.Set("side", f.Side)
	}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if !f.StartTime.IsZero() {
		query.Set("startAt", formatMilli(f.StartTime))
	}
	if !f.EndTime.IsZero() {
		query.Set("endAt", formatMilli(f.EndTime))
	}
	return query
}

// pagedItems is the exchange's paginated list envelope. Listings here fetch
// only the first page; callers needing deep history should narrow the time
// filter instead.
type pagedItems[T any] struct {
	CurrentPage int `json:"currentPage"`
	PageSize    int `json:"pageSize"`
	TotalNum    int `json:"totalNum"`
	TotalPage   int `json:"totalPage"`
	Items       []T `json:"items"`
}

// Orders lists the authenticated user's orders matching the filter.
func (c *Connector) Orders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	path := "/api/v1/orders"
	if encoded := filter.query().Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page pagedItems[Order]
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Fills lists the authenticated user's recent executions matching the
// filter.
func (c *Connector) Fills(ctx context.Context, filter OrderFilter) ([]Fill, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	path := "/api/v1/fills"
	if encoded := filter.query().Encode(); encoded != "" {
		path += "?" + encoded
	}
	var page pagedItems[Fill]
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func orDefaultOID(oid string) string {
	if oid != "" {
		return oid
	}
	return uuid.NewString()
}

func formatMilli(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
