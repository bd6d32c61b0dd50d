package pricer

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type tickerStub struct {
	prices map[string]string
	calls  []string
}

func (s *tickerStub) TickerPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	s.calls = append(s.calls, symbol)
	raw, ok := s.prices[symbol]
	if !ok {
		return decimal.Decimal{}, errors.New("no such pair")
	}
	return decimal.RequireFromString(raw), nil
}

type fiatStub struct {
	rates map[string]string
	calls []string
}

func (s *fiatStub) USDRate(_ context.Context, currency string) (decimal.Decimal, error) {
	s.calls = append(s.calls, currency)
	raw, ok := s.rates[currency]
	if !ok {
		return decimal.Decimal{}, errors.New("no rate")
	}
	return decimal.RequireFromString(raw), nil
}

func newTestResolver(fiat *fiatStub, binanceAPI, bybitAPI *tickerStub) *Resolver {
	return New(fiat, binanceAPI, bybitAPI, zap.NewNop())
}

func TestPricesStableWithoutNetwork(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"usdt", "BUSD", "DAI", "USDE", "XUSD"})

	require.Len(t, prices, 5)
	for sym, price := range prices {
		assert.True(t, price.Equal(decimal.NewFromInt(1)), "%s must price at one", sym)
	}
	assert.Empty(t, fiat.calls)
	assert.Empty(t, binanceAPI.calls)
	assert.Empty(t, bybitAPI.calls)
}

func TestPricesExample(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{prices: map[string]string{"BNBUSDT": "300"}}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"usdt", "bnb"})

	require.Len(t, prices, 2)
	assert.True(t, prices["USDT"].Equal(decimal.NewFromInt(1)))
	assert.True(t, prices["BNB"].Equal(decimal.NewFromInt(300)))

	assert.Equal(t, []string{"BNBUSDT"}, binanceAPI.calls, "resolved symbols never reach later sources")
	assert.Empty(t, bybitAPI.calls, "nothing was left for the last source")
}

func TestPricesFiatReciprocal(t *testing.T) {
	fiat := &fiatStub{rates: map[string]string{"RUB": "80"}}
	binanceAPI := &tickerStub{}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"RUB"})

	require.Len(t, prices, 1)
	assert.Equal(t, "0.0125", prices["RUB"].String())
	assert.Equal(t, []string{"RUB"}, fiat.calls)
	assert.Empty(t, binanceAPI.calls)
	assert.Empty(t, bybitAPI.calls)
}

func TestPricesRubInverseFallback(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{prices: map[string]string{"USDTRUB": "80"}}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"RUB"})

	require.Len(t, prices, 1)
	assert.Equal(t, "0.0125", prices["RUB"].String())
	assert.Equal(t,
		[]string{"RUBUSDT", "RUBUSDC", "RUBUSD", "RUBBUSD", "USDTRUB"},
		binanceAPI.calls,
		"direct pairs come first, the inverted pair last")
	assert.Empty(t, bybitAPI.calls)
}

func TestPricesQuoteOrder(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{prices: map[string]string{"BNBUSDT": "0", "BNBUSDC": "300"}}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"BNB"})

	require.Len(t, prices, 1)
	assert.True(t, prices["BNB"].Equal(decimal.NewFromInt(300)), "a zero ticker is not a price")
	assert.Equal(t, []string{"BNBUSDT", "BNBUSDC"}, binanceAPI.calls)
}

func TestPricesBybitFallback(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{}
	bybitAPI := &tickerStub{prices: map[string]string{"TONUSDT": "5.4"}}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"TON"})

	require.Len(t, prices, 1)
	assert.Equal(t, "5.4", prices["TON"].String())
	assert.Len(t, binanceAPI.calls, 4, "every direct quote is tried before falling through")
	assert.Equal(t, []string{"TONUSDT"}, bybitAPI.calls)
}

func TestPricesUnresolvedOmitted(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"XYZ", ""})

	assert.Empty(t, prices)
	assert.Len(t, binanceAPI.calls, 4)
	assert.Len(t, bybitAPI.calls, 3)
}

func TestPricesDeduplicatesInput(t *testing.T) {
	fiat := &fiatStub{}
	binanceAPI := &tickerStub{prices: map[string]string{"BTCUSDT": "64000"}}
	bybitAPI := &tickerStub{}
	r := newTestResolver(fiat, binanceAPI, bybitAPI)

	prices := r.Prices(context.Background(), []string{"btc", "BTC", " btc "})

	require.Len(t, prices, 1)
	assert.Equal(t, []string{"BTCUSDT"}, binanceAPI.calls)
}

func TestIsStable(t *testing.T) {
	tests := []struct {
		symbol string
		want   bool
	}{
		{"USDT", true},
		{"USDC", true},
		{"BUSD", true},
		{"TUSD", true},
		{"USDD", true},
		{"USD", true},
		{"DAI", true},
		{"USDE", true},
		{"XUSD", true},
		{"BTC", false},
		{"RUB", false},
		{"USDX", false},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			assert.Equal(t, tt.want, isStable(tt.symbol))
		})
	}
}
