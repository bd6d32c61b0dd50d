package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/clients/tinkoff"
	"github.com/holdsum/holdsum/internal/domain"
)

type tinkoffAPIStub struct {
	accounts    []tinkoff.Account
	accountsErr error

	money    map[string][]tinkoff.MoneyValue
	moneyErr map[string]error

	portfolio map[string][]tinkoff.PortfolioPosition

	instruments     map[string]tinkoff.Instrument
	instrumentCalls int
}

func (s *tinkoffAPIStub) Accounts(context.Context) ([]tinkoff.Account, error) {
	if s.accountsErr != nil {
		return nil, s.accountsErr
	}
	return s.accounts, nil
}

func (s *tinkoffAPIStub) Money(_ context.Context, accountID string) ([]tinkoff.MoneyValue, error) {
	if err := s.moneyErr[accountID]; err != nil {
		return nil, err
	}
	return s.money[accountID], nil
}

func (s *tinkoffAPIStub) Portfolio(_ context.Context, accountID string) ([]tinkoff.PortfolioPosition, error) {
	return s.portfolio[accountID], nil
}

func (s *tinkoffAPIStub) InstrumentByFIGI(_ context.Context, figi string) (tinkoff.Instrument, error) {
	s.instrumentCalls++
	ins, ok := s.instruments[figi]
	if !ok {
		return tinkoff.Instrument{}, errs.New("tinkoff", errs.KindTransport, errs.WithHTTP(500))
	}
	return ins, nil
}

func newTinkoffAdapter(api tinkoffAPI, accountIDs ...string) *Tinkoff {
	return &Tinkoff{
		api:        api,
		accountIDs: accountIDs,
		logger:     zap.NewNop(),
		symbols:    make(map[string]string),
	}
}

func TestNewTinkoffRequiresToken(t *testing.T) {
	_, err := NewTinkoff(config.TinkoffConfig{BaseURL: "https://invest-public-api.tinkoff.ru"}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}

func TestTinkoffFetchBalances(t *testing.T) {
	stub := &tinkoffAPIStub{
		money: map[string][]tinkoff.MoneyValue{
			"acc-1": {
				{Currency: "rub", Units: 1500, Nano: 250000000},
				{Currency: "usd", Units: 10},
				{Currency: "eur"},
			},
		},
	}
	adapter := newTinkoffAdapter(stub, "acc-1")

	balances, err := adapter.FetchBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2)

	assert.Equal(t, domain.BrokerTinkoff, balances[0].Broker)
	assert.Equal(t, "RUB", balances[0].Currency)
	assert.Equal(t, "1500.25", balances[0].Total.String())
	assert.Equal(t, "1500.25", balances[0].Available.String())
	assert.Empty(t, balances[0].AccountType)

	assert.Equal(t, "USD", balances[1].Currency)
	assert.Equal(t, "10", balances[1].Total.String())
}

func TestTinkoffFetchBalancesSkipsFailingAccount(t *testing.T) {
	stub := &tinkoffAPIStub{
		money: map[string][]tinkoff.MoneyValue{
			"acc-2": {{Currency: "rub", Units: 100}},
		},
		moneyErr: map[string]error{
			"acc-1": errs.New("tinkoff", errs.KindTransport, errs.WithHTTP(503)),
		},
	}
	adapter := newTinkoffAdapter(stub, "acc-1", "acc-2")

	balances, err := adapter.FetchBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "RUB", balances[0].Currency)
}

func TestTinkoffFetchBalancesAuthFailureSkipsAccount(t *testing.T) {
	stub := &tinkoffAPIStub{
		money: map[string][]tinkoff.MoneyValue{
			"acc-2": {{Currency: "usd", Units: 7}},
		},
		moneyErr: map[string]error{
			"acc-1": errs.New("tinkoff", errs.KindAuth, errs.WithHTTP(401)),
		},
	}
	adapter := newTinkoffAdapter(stub, "acc-1", "acc-2")

	balances, err := adapter.FetchBalances(context.Background())
	require.NoError(t, err, "a rejected account contributes zero records, nothing more")
	require.Len(t, balances, 1)
	assert.Equal(t, "USD", balances[0].Currency)
}

func TestTinkoffFetchBalancesDiscoveryFailure(t *testing.T) {
	stub := &tinkoffAPIStub{
		accountsErr: errs.New("tinkoff", errs.KindAuth, errs.WithHTTP(401)),
	}
	adapter := newTinkoffAdapter(stub)

	_, err := adapter.FetchBalances(context.Background())
	require.Error(t, err, "with discovery rejected there are no accounts to scan")
	assert.Equal(t, errs.KindAuth, errs.KindOf(err))
}

func TestTinkoffFetchPositions(t *testing.T) {
	stub := &tinkoffAPIStub{
		portfolio: map[string][]tinkoff.PortfolioPosition{
			"acc-1": {
				{
					FIGI:                 "BBG004RVFFC0",
					Quantity:             tinkoff.MoneyValue{Units: 10},
					CurrentPrice:         tinkoff.MoneyValue{Currency: "rub", Units: 290, Nano: 500000000},
					AveragePositionPrice: tinkoff.MoneyValue{Currency: "rub", Units: 250},
				},
				{
					FIGI:                 "BBG000B9XRY4",
					Quantity:             tinkoff.MoneyValue{Units: 2},
					AveragePositionPrice: tinkoff.MoneyValue{Currency: "usd", Units: 180},
				},
				{
					FIGI:     "BBG00ZERO000",
					Quantity: tinkoff.MoneyValue{},
				},
			},
		},
		instruments: map[string]tinkoff.Instrument{
			"BBG004RVFFC0": {FIGI: "BBG004RVFFC0", Ticker: "TCS", ClassCode: "TQBR"},
			"BBG000B9XRY4": {FIGI: "BBG000B9XRY4", Ticker: "AAPL"},
		},
	}
	adapter := newTinkoffAdapter(stub, "acc-1")

	positions, err := adapter.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2, "zero quantity rows never surface")

	assert.Equal(t, "TCS.TQBR", positions[0].Symbol)
	assert.Equal(t, "10", positions[0].Quantity.String())
	assert.Equal(t, "290.5", positions[0].AvgPrice.String(), "market price wins over acquisition price")
	assert.Equal(t, "RUB", positions[0].Currency)

	assert.Equal(t, "AAPL", positions[1].Symbol, "no class code keeps the bare ticker")
	assert.Equal(t, "180", positions[1].AvgPrice.String(), "zero market price falls back to acquisition price")
	assert.Equal(t, "USD", positions[1].Currency)
}

func TestTinkoffInstrumentCache(t *testing.T) {
	row := tinkoff.PortfolioPosition{
		FIGI:         "BBG004RVFFC0",
		Quantity:     tinkoff.MoneyValue{Units: 1},
		CurrentPrice: tinkoff.MoneyValue{Currency: "rub", Units: 100},
	}
	stub := &tinkoffAPIStub{
		portfolio: map[string][]tinkoff.PortfolioPosition{
			"acc-1": {row},
			"acc-2": {row, row},
		},
		instruments: map[string]tinkoff.Instrument{
			"BBG004RVFFC0": {Ticker: "TCS", ClassCode: "TQBR"},
		},
	}
	adapter := newTinkoffAdapter(stub, "acc-1", "acc-2")

	positions, err := adapter.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 3)
	for _, pos := range positions {
		assert.Equal(t, "TCS.TQBR", pos.Symbol)
	}
	assert.Equal(t, 1, stub.instrumentCalls, "a FIGI is looked up once across all accounts")
}

func TestTinkoffResolveFailureKeepsFIGI(t *testing.T) {
	row := tinkoff.PortfolioPosition{
		FIGI:         "BBG00UNKNOWN",
		Quantity:     tinkoff.MoneyValue{Units: 1},
		CurrentPrice: tinkoff.MoneyValue{Currency: "rub", Units: 5},
	}
	stub := &tinkoffAPIStub{
		portfolio: map[string][]tinkoff.PortfolioPosition{"acc-1": {row, row}},
	}
	adapter := newTinkoffAdapter(stub, "acc-1")

	positions, err := adapter.FetchPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "BBG00UNKNOWN", positions[0].Symbol)
	assert.Equal(t, 2, stub.instrumentCalls, "failed lookups are not cached")
}

func TestTinkoffAccountDiscovery(t *testing.T) {
	stub := &tinkoffAPIStub{
		accounts: []tinkoff.Account{
			{ID: "open-1", Status: tinkoff.AccountStatusOpen},
			{ID: "closed-1", Status: "ACCOUNT_STATUS_CLOSED"},
			{ID: "open-2", Status: tinkoff.AccountStatusOpen},
		},
		money: map[string][]tinkoff.MoneyValue{
			"open-1":   {{Currency: "rub", Units: 1}},
			"open-2":   {{Currency: "usd", Units: 2}},
			"closed-1": {{Currency: "eur", Units: 3}},
		},
	}
	adapter := newTinkoffAdapter(stub)

	balances, err := adapter.FetchBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2, "closed accounts are not scanned")
	assert.Equal(t, "RUB", balances[0].Currency)
	assert.Equal(t, "USD", balances[1].Currency)
}
