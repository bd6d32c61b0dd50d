package broker

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/clients/bybit"
	"github.com/holdsum/holdsum/internal/domain"
)

type bybitAPI interface {
	WalletCoins(ctx context.Context, accountType string) ([]bybit.Coin, error)
	TransferCoins(ctx context.Context, accountType string) ([]bybit.Coin, error)
	EarnPositions(ctx context.Context) ([]bybit.EarnEntry, error)
}

// Bybit reports balances across the unified trading, funding and earn
// venue accounts, and the positions held in each.
type Bybit struct {
	api    bybitAPI
	logger *zap.Logger
}

// NewBybit builds the adapter or fails fast on missing credentials.
func NewBybit(cfg config.BybitConfig, logger *zap.Logger) (*Bybit, error) {
	if !cfg.IsConfigured() {
		return nil, errs.New(string(domain.BrokerBybit), errs.KindConfig,
			errs.WithMessage("api key and secret are required"))
	}
	return &Bybit{
		api:    bybit.New(cfg.BaseURL, cfg.APIKey, cfg.APISecret, cfg.RecvWindow),
		logger: logger,
	}, nil
}

func (b *Bybit) Broker() domain.Broker { return domain.BrokerBybit }

// Several venue accounts map onto the reported sub-account labels; the
// transferable-balance endpoint covers the accounts the wallet endpoint
// does not expose.
var bybitBalanceSources = []struct {
	accountType string
	venueType   string
	transfer    bool
}{
	{domain.AccountTypeUnified, "UNIFIED", false},
	{domain.AccountTypeFunding, "FUND", true},
	{domain.AccountTypeEarn, "INVESTMENT", false},
	{domain.AccountTypeEarn, "EARN", true},
}

// FetchBalances scans every known venue account. Accounts missing for
// this user fail individually and are skipped.
func (b *Bybit) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	var balances []domain.Balance
	for _, src := range bybitBalanceSources {
		coins, err := b.coins(ctx, src.venueType, src.transfer)
		if err != nil {
			b.logger.Debug("skipping balance source",
				zap.String("venue_account", src.venueType), zap.Error(err))
			continue
		}

		for _, coin := range coins {
			if bal, ok := parseBalanceCoin(coin, src.accountType); ok {
				balances = append(balances, bal)
			}
		}
	}
	return balances, nil
}

// FetchPositions merges unified wallet assets, funding assets and
// flexible-saving products, each best effort.
func (b *Bybit) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position

	unified, err := b.api.WalletCoins(ctx, "UNIFIED")
	if err != nil {
		b.logger.Debug("skipping unified positions", zap.Error(err))
	}
	for _, coin := range unified {
		if pos, ok := coinPosition(coin, domain.AccountTypeUnified, coin.WalletBalance, coin.Equity); ok {
			positions = append(positions, pos)
		}
	}

	funding, err := b.api.TransferCoins(ctx, "FUND")
	if err != nil {
		b.logger.Debug("skipping funding positions", zap.Error(err))
	}
	for _, coin := range funding {
		if pos, ok := coinPosition(coin, domain.AccountTypeFunding, coin.WalletBalance, coin.TransferBalance, coin.Balance); ok {
			positions = append(positions, pos)
		}
	}

	earn, err := b.api.EarnPositions(ctx)
	if err != nil {
		b.logger.Debug("skipping earn positions", zap.Error(err))
	}
	for _, entry := range earn {
		qty := toAmount(entry.Amount)
		if entry.Coin == "" || qty.IsZero() {
			continue
		}
		positions = append(positions, domain.Position{
			Broker:      domain.BrokerBybit,
			Symbol:      strings.ToUpper(entry.Coin),
			Quantity:    qty,
			Currency:    strings.ToUpper(entry.Coin),
			AccountType: domain.AccountTypeEarn,
		})
	}

	return positions, nil
}

func (b *Bybit) coins(ctx context.Context, venueType string, transfer bool) ([]bybit.Coin, error) {
	if transfer {
		return b.api.TransferCoins(ctx, venueType)
	}
	return b.api.WalletCoins(ctx, venueType)
}

// parseBalanceCoin picks the first populated amount field; venue account
// types report different subsets.
func parseBalanceCoin(coin bybit.Coin, accountType string) (domain.Balance, bool) {
	currency := coin.Coin
	if currency == "" {
		currency = coin.Currency
	}
	if currency == "" {
		currency = "USD"
	}

	total := toAmount(coin.WalletBalance, coin.TransferBalance, coin.Equity, coin.Balance)
	if total.IsZero() {
		return domain.Balance{}, false
	}
	available := toAmount(coin.AvailableToWithdraw, coin.TransferBalance, coin.WalletBalance, coin.Equity)

	return domain.Balance{
		Broker:      domain.BrokerBybit,
		Currency:    strings.ToUpper(currency),
		Available:   available,
		Total:       total,
		AccountType: accountType,
	}, true
}

func coinPosition(coin bybit.Coin, accountType string, candidates ...string) (domain.Position, bool) {
	qty := toAmount(candidates...)
	if coin.Coin == "" || qty.IsZero() {
		return domain.Position{}, false
	}
	return domain.Position{
		Broker:      domain.BrokerBybit,
		Symbol:      strings.ToUpper(coin.Coin),
		Quantity:    qty,
		Currency:    strings.ToUpper(coin.Coin),
		AccountType: accountType,
	}, true
}

// toAmount parses the first non-empty candidate; zero when none is
// present or the chosen one does not parse.
func toAmount(candidates ...string) decimal.Decimal {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}
		}
		return d
	}
	return decimal.Decimal{}
}
