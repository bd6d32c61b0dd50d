package broker

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/clients/binance"
	"github.com/holdsum/holdsum/internal/domain"
)

type binanceAPI interface {
	Account(ctx context.Context) ([]binance.AccountBalance, error)
	FundingAssets(ctx context.Context) ([]binance.FundingAsset, error)
	FlexibleEarnPositions(ctx context.Context) ([]binance.EarnPosition, error)
	LockedEarnPositions(ctx context.Context) ([]binance.EarnPosition, error)
}

// Binance reports spot cash balances and spot, funding and earn asset
// positions.
type Binance struct {
	api    binanceAPI
	logger *zap.Logger
}

// NewBinance builds the adapter or fails fast on missing credentials.
func NewBinance(cfg config.BinanceConfig, logger *zap.Logger) (*Binance, error) {
	if !cfg.IsConfigured() {
		return nil, errs.New(string(domain.BrokerBinance), errs.KindConfig,
			errs.WithMessage("api key and secret are required"))
	}
	return &Binance{
		api:    binance.New(cfg.BaseURL, cfg.APIKey, cfg.APISecret),
		logger: logger,
	}, nil
}

func (b *Binance) Broker() domain.Broker { return domain.BrokerBinance }

// FetchBalances reports spot account cash, free plus locked.
func (b *Binance) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	rows, err := b.api.Account(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fetch spot account")
	}

	var balances []domain.Balance
	for _, row := range rows {
		free, ferr := parseAmount(row.Free)
		locked, lerr := parseAmount(row.Locked)
		if ferr != nil || lerr != nil {
			return nil, errs.New(string(domain.BrokerBinance), errs.KindNormalization,
				errs.WithMessage("unparseable amount for "+row.Asset))
		}

		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{
			Broker:    domain.BrokerBinance,
			Currency:  strings.ToUpper(row.Asset),
			Available: free,
			Total:     total,
		})
	}
	return balances, nil
}

// FetchPositions merges the spot, funding and earn sub-sources, each best
// effort.
func (b *Binance) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	var positions []domain.Position

	spot, err := b.spotPositions(ctx)
	if err != nil {
		b.logger.Debug("skipping spot positions", zap.Error(err))
	}
	positions = append(positions, spot...)

	funding, err := b.fundingPositions(ctx)
	if err != nil {
		b.logger.Debug("skipping funding positions", zap.Error(err))
	}
	positions = append(positions, funding...)

	positions = append(positions, b.earnPositions(ctx)...)

	return positions, nil
}

func (b *Binance) spotPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := b.api.Account(ctx)
	if err != nil {
		return nil, err
	}

	var positions []domain.Position
	for _, row := range rows {
		free, ferr := parseAmount(row.Free)
		locked, lerr := parseAmount(row.Locked)
		if ferr != nil || lerr != nil {
			return nil, errs.New(string(domain.BrokerBinance), errs.KindNormalization,
				errs.WithMessage("unparseable amount for "+row.Asset))
		}

		total := free.Add(locked)
		if total.IsZero() {
			continue
		}
		positions = append(positions, domain.Position{
			Broker:      domain.BrokerBinance,
			Symbol:      strings.ToUpper(row.Asset),
			Quantity:    total,
			Currency:    strings.ToUpper(row.Asset),
			AccountType: domain.AccountTypeSpot,
		})
	}
	return positions, nil
}

func (b *Binance) fundingPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := b.api.FundingAssets(ctx)
	if err != nil {
		return nil, err
	}

	var positions []domain.Position
	for _, row := range rows {
		free, ferr := parseAmount(row.Free)
		locked, lerr := parseAmount(row.Locked)
		frozen, zerr := parseAmount(row.Frozen)
		if ferr != nil || lerr != nil || zerr != nil {
			return nil, errs.New(string(domain.BrokerBinance), errs.KindNormalization,
				errs.WithMessage("unparseable amount for "+row.Asset))
		}

		total := free.Add(locked).Add(frozen)
		if total.IsZero() {
			continue
		}
		positions = append(positions, domain.Position{
			Broker:      domain.BrokerBinance,
			Symbol:      strings.ToUpper(row.Asset),
			Quantity:    total,
			Currency:    strings.ToUpper(row.Asset),
			AccountType: domain.AccountTypeFunding,
		})
	}
	return positions, nil
}

// earnPositions merges the flexible and locked product endpoints, each
// independently best effort. Rows are lenient: an unparseable amount
// drops the row, not the source.
func (b *Binance) earnPositions(ctx context.Context) []domain.Position {
	var positions []domain.Position

	flexible, err := b.api.FlexibleEarnPositions(ctx)
	if err != nil {
		b.logger.Debug("skipping flexible earn positions", zap.Error(err))
	} else {
		positions = append(positions, b.earnRows(flexible)...)
	}

	locked, err := b.api.LockedEarnPositions(ctx)
	if err != nil {
		b.logger.Debug("skipping locked earn positions", zap.Error(err))
	} else {
		positions = append(positions, b.earnRows(locked)...)
	}

	return positions
}

func (b *Binance) earnRows(rows []binance.EarnPosition) []domain.Position {
	var positions []domain.Position
	for _, row := range rows {
		asset := row.Asset
		if asset == "" {
			asset = row.CollateralCoin
		}
		raw := row.TotalAmount
		if raw == "" {
			raw = row.Amount
		}

		amount, err := parseAmount(raw)
		if err != nil {
			b.logger.Debug("dropping earn row", zap.String("asset", asset), zap.Error(err))
			continue
		}
		if asset == "" || amount.IsZero() {
			continue
		}
		positions = append(positions, domain.Position{
			Broker:      domain.BrokerBinance,
			Symbol:      strings.ToUpper(asset),
			Quantity:    amount,
			Currency:    strings.ToUpper(asset),
			AccountType: domain.AccountTypeEarn,
		})
	}
	return positions
}

// parseAmount treats an absent field as zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, nil
	}
	return decimal.NewFromString(s)
}
