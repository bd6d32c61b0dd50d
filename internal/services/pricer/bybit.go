package pricer

import (
	"context"

	"github.com/shopspring/decimal"
)

type bybitTickers interface {
	TickerPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

var bybitQuotes = []string{"USDT", "USDC", "USD"}

type bybitStage struct {
	tickers bybitTickers
}

func (b *bybitStage) name() string { return "bybit" }

func (b *bybitStage) resolve(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal)
	for _, sym := range symbols {
		for _, quote := range bybitQuotes {
			price, err := b.tickers.TickerPrice(ctx, sym+quote)
			if err == nil && price.IsPositive() {
				prices[sym] = price
				break
			}
		}
	}
	return prices
}
