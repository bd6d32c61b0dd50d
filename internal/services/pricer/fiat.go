package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

type fiatRates interface {
	USDRate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// Fiat currencies priced through the exchange-rate API. Only the ruble
// needs it today; exchange tickers cover everything else.
var fiatSymbols = map[string]struct{}{"RUB": {}}

type fiatStage struct {
	rates fiatRates
}

func (f *fiatStage) name() string { return "fiat" }

// resolve prices one fiat unit as the reciprocal of the USD rate.
func (f *fiatStage) resolve(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		if _, ok := fiatSymbols[sym]; !ok {
			continue
		}
		rate, err := f.rates.USDRate(ctx, sym)
		if err != nil || !rate.IsPositive() {
			continue
		}
		prices[sym] = decimal.NewFromInt(1).Div(rate)
	}
	return prices
}
