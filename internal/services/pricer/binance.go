package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

type binanceTickers interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Quote currencies tried for a direct pair, most liquid first.
var binanceQuotes = []string{"USDT", "USDC", "USD", "BUSD"}

// Quotes tried inverted for the ruble, which the venue lists base-first
// (USDTRUB, never RUBUSDT).
var binanceInverseQuotes = []string{"USDT", "BUSD", "USDC"}

type binanceStage struct {
	tickers binanceTickers
}

func (b *binanceStage) name() string { return "binance" }

func (b *binanceStage) resolve(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		if price, ok := b.price(ctx, sym); ok {
			prices[sym] = price
		}
	}
	return prices
}

func (b *binanceStage) price(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	for _, quote := range binanceQuotes {
		price, err := b.tickers.TickerPrice(ctx, symbol+quote)
		if err == nil && price.IsPositive() {
			return price, true
		}
	}

	if symbol != "RUB" {
		return decimal.Decimal{}, false
	}
	for _, quote := range binanceInverseQuotes {
		price, err := b.tickers.TickerPrice(ctx, quote+symbol)
		if err == nil && price.IsPositive() {
			return decimal.NewFromInt(1).Div(price), true
		}
	}
	return decimal.Decimal{}, false
}
