package kucoin

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"
)

// Account is one ledger entry on the exchange: a currency held in a specific
// account tier (main, trade or margin).
type Account struct {
	ID        string          `json:"id"`
	Currency  string          `json:"currency"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Available decimal.Decimal `json:"available"`
	Holds     decimal.Decimal `json:"holds"`
}

// AccountFilter narrows an Accounts listing. Zero values match everything.
type AccountFilter struct {
	Currency string
	Type     string // main, trade or margin

	// MinBalance drops entries below the given total balance. The exchange
	// has no server-side balance filter, so this one is applied locally.
	MinBalance decimal.Decimal
}

// Accounts lists the authenticated user's accounts, optionally filtered by
// currency and type. Requires credentials.
func (c *Connector) Accounts(ctx context.Context, filter AccountFilter) ([]Account, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}

	query := url.Values{}
	if filter.Currency != "" {
		query.Set("currency", filter.Currency)
	}
	if filter.Type != "" {
		query.Set("type", filter.Type)
	}
	path := "/api/v1/accounts"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var accounts []Account
	if err := c.getJSON(ctx, path, &accounts); err != nil {
		return nil, err
	}

	if filter.MinBalance.IsZero() {
		return accounts, nil
	}
	filtered := accounts[:0]
	for _, a := range accounts {
		if a.Balance.GreaterThanOrEqual(filter.MinBalance) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

// AccountDetail returns a single account by its ledger ID.
func (c *Connector) AccountDetail(ctx context.Context, accountID string) (*Account, error) {
	if err := c.requireAuth(); err != nil {
		return nil, err
	}
	var account Account
	if err := c.getJSON(ctx, "/api/v1/accounts/"+accountID, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// TransferRequest moves funds between the user's own account tiers.
type TransferRequest struct {
	ClientOID string          `json:"clientOid"`
	Currency  string          `json:"currency"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
}

// InnerTransfer moves funds between the main, trade and margin accounts of
// the authenticated user. Returns the exchange-assigned order ID.
func (c *Connector) InnerTransfer(ctx context.Context, req TransferRequest) (string, error) {
	var result struct {
		OrderID string `json:"orderId"`
	}
	if err := c.postJSON(ctx, "/api/v2/accounts/inner-transfer", req, &result); err != nil {
		return "", err
	}
	return result.OrderID, nil
}
