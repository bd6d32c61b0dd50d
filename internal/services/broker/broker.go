// Package broker normalizes venue APIs into the shared holdings model.
// Adapters are best effort: a venue typically exposes several independent
// sub-sources (wallets, earn products, per-account iteration) and a
// failing one is logged and skipped, never failing the whole fetch. Only
// a failure that leaves an adapter without any sub-source to iterate,
// such as a rejected account discovery call, surfaces as an error.
package broker

import (
	"context"

	"github.com/holdsum/holdsum/internal/domain"
)

// Adapter fetches normalized holdings from one venue.
type Adapter interface {
	Broker() domain.Broker
	FetchBalances(ctx context.Context) ([]domain.Balance, error)
	FetchPositions(ctx context.Context) ([]domain.Position, error)
}
