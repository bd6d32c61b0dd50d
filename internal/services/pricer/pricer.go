// Package pricer resolves USD unit prices for currency and asset
// symbols through an ordered chain of sources. Each source only sees
// the symbols the previous ones left unresolved, and symbols no source
// can price are omitted from the result.
package pricer

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// A stage prices the symbols it recognizes and ignores the rest.
// Failures inside a stage drop the symbol through to the next stage,
// they are never raised.
type stage interface {
	name() string
	resolve(ctx context.Context, symbols []string) map[string]decimal.Decimal
}

type Resolver struct {
	stages []stage
	logger *zap.Logger
}

// New wires the resolution chain: stable assets first, then fiat rates,
// then exchange spot tickers. The ticker endpoints are public, so the
// clients work without credentials.
func New(fiat fiatRates, binanceAPI binanceTickers, bybitAPI bybitTickers, logger *zap.Logger) *Resolver {
	return &Resolver{
		stages: []stage{
			&stableStage{},
			&fiatStage{rates: fiat},
			&binanceStage{tickers: binanceAPI},
			&bybitStage{tickers: bybitAPI},
		},
		logger: logger,
	}
}

// Prices resolves the USD unit price of every symbol it can. The map is
// built fresh per call and omits what no stage could price.
func (r *Resolver) Prices(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	unresolved := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			unresolved[s] = struct{}{}
		}
	}

	for _, st := range r.stages {
		if len(unresolved) == 0 {
			break
		}
		resolved := st.resolve(ctx, sortedSymbols(unresolved))
		for sym, price := range resolved {
			prices[sym] = price
			delete(unresolved, sym)
		}
		if len(resolved) > 0 {
			r.logger.Debug("resolved usd prices",
				zap.String("source", st.name()), zap.Int("count", len(resolved)))
		}
	}

	if len(unresolved) > 0 {
		r.logger.Debug("no usd price source", zap.Strings("symbols", sortedSymbols(unresolved)))
	}
	return prices
}

func sortedSymbols(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
