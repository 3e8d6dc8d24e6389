package kucoin

import (
	"context"

	"github.com/shopspring/decimal"
)

// MarginAccount summarizes the cross-margin account: overall debt ratio and
// the per-currency positions backing it.
type MarginAccount struct {
	DebtRatio decimal.Decimal        `json:"debtRatio"`
	Accounts  []MarginAccountBalance `json:"accounts"`
}

// MarginAccountBalance is one currency's position inside the margin account.
type MarginAccountBalance struct {
	Currency         string          `json:"currency"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	HoldBalance      decimal.Decimal `json:"holdBalance"`
	Liability        decimal.Decimal `json:"liability"`
	MaxBorrowSize    decimal.Decimal `json:"maxBorrowSize"`
}

// GetMarginAccount returns the cross-margin account overview. Requires
// credentials.
func (c *Connector) GetMarginAccount(ctx context.Context) (*MarginAccount, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	var account MarginAccount
	if err := c.getJSON(ctx, "/api/v1/margin/account", &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// BorrowRecord is one outstanding margin borrow order.
type BorrowRecord struct {
	TradeID         string          `json:"tradeId"`
	Currency        string          `json:"currency"`
	Principal       decimal.Decimal `json:"principal"`
	AccruedInterest decimal.Decimal `json:"accruedInterest"`
	RepaidSize      decimal.Decimal `json:"repaidSize"`
	DailyIntRate    decimal.Decimal `json:"dailyIntRate"`
	Term            int             `json:"term"`
	MaturityTime    int64           `json:"maturityTime"`
	CreatedAt       int64           `json:"createdAt"`
}

// BorrowOutstanding lists unrepaid margin borrows, optionally filtered by
// currency. Requires credentials.
func (c *Connector) BorrowOutstanding(ctx context.Context, currency string) ([]BorrowRecord, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	path := "/api/v1/margin/borrow/outstanding"
	if currency != "" {
		path += "?currency=" + currency
	}
	var page pagedItems[BorrowRecord]
	if err := c.getJSON(ctx, path, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// LendingRate is one rung of the lending market for a currency: the daily
// interest rate offered at a given term.
type LendingRate struct {
	Currency     string          `json:"currency"`
	DailyIntRate decimal.Decimal `json:"dailyIntRate"`
	Term         int             `json:"term"`
	Size         decimal.Decimal `json:"size"`
}

// LendingRates returns the current lending market for a currency. This is a
// public endpoint.
func (c *Connector) LendingRates(ctx context.Context, currency string) ([]LendingRate, error) {
	var rates []LendingRate
	if err := c.getJSON(ctx, "/api/v1/margin/market?currency="+currency, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}
