package domain

import "github.com/shopspring/decimal"

// Sub-account labels attached to records where a venue splits funds
// across several wallets. Empty means the venue does not distinguish.
const (
	AccountTypeSpot    = "spot"
	AccountTypeFunding = "funding"
	AccountTypeEarn    = "earn"
	AccountTypeUnified = "unified_trading"
)

// Balance a cash-like holding reported by a venue.
type Balance struct {
	Broker   Broker `json:"broker"`
	Currency string `json:"currency"`
	// Available part of Total that is not locked by the venue.
	Available   decimal.Decimal `json:"available"`
	Total       decimal.Decimal `json:"total"`
	AccountType string          `json:"account_type,omitempty"`
}

// Position an asset holding reported by a venue. Records for the same
// symbol from different sub-accounts stay separate.
type Position struct {
	Broker   Broker          `json:"broker"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	// AvgPrice average acquisition price in Currency; zero when the venue
	// does not report one.
	AvgPrice    decimal.Decimal `json:"avg_price"`
	Currency    string          `json:"currency,omitempty"`
	AccountType string          `json:"account_type,omitempty"`
}
