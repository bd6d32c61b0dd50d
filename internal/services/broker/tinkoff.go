package broker

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/clients/tinkoff"
	"github.com/holdsum/holdsum/internal/domain"
)

type tinkoffAPI interface {
	Accounts(ctx context.Context) ([]tinkoff.Account, error)
	Money(ctx context.Context, accountID string) ([]tinkoff.MoneyValue, error)
	Portfolio(ctx context.Context, accountID string) ([]tinkoff.PortfolioPosition, error)
	InstrumentByFIGI(ctx context.Context, figi string) (tinkoff.Instrument, error)
}

// Tinkoff reports cash balances and portfolio positions across one or
// more brokerage accounts. Instrument tickers are resolved from FIGIs
// through a never-evicted cache, one lookup per FIGI.
type Tinkoff struct {
	api        tinkoffAPI
	accountIDs []string
	logger     *zap.Logger

	mu      sync.Mutex
	symbols map[string]string
}

// NewTinkoff builds the adapter or fails fast on a missing token.
func NewTinkoff(cfg config.TinkoffConfig, logger *zap.Logger) (*Tinkoff, error) {
	if !cfg.IsConfigured() {
		return nil, errs.New(string(domain.BrokerTinkoff), errs.KindConfig,
			errs.WithMessage("token is required"))
	}
	return &Tinkoff{
		api:        tinkoff.New(cfg.BaseURL, cfg.Token),
		accountIDs: cfg.AccountIDs,
		logger:     logger,
		symbols:    make(map[string]string),
	}, nil
}

func (t *Tinkoff) Broker() domain.Broker { return domain.BrokerTinkoff }

// FetchBalances reports the cash rows of every account. Per-account
// failures are skipped.
func (t *Tinkoff) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	accounts, err := t.accounts(ctx)
	if err != nil {
		return nil, err
	}

	var balances []domain.Balance
	for _, id := range accounts {
		money, err := t.api.Money(ctx, id)
		if err != nil {
			t.logger.Debug("skipping account balances", zap.String("account", id), zap.Error(err))
			continue
		}

		for _, m := range money {
			total := m.Decimal()
			if total.IsZero() {
				continue
			}
			balances = append(balances, domain.Balance{
				Broker:    domain.BrokerTinkoff,
				Currency:  strings.ToUpper(m.Currency),
				Available: total,
				Total:     total,
			})
		}
	}
	return balances, nil
}

// FetchPositions reports the portfolio rows of every account. The unit
// price prefers the current market price and falls back to the average
// acquisition price when the market one is zero.
func (t *Tinkoff) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	accounts, err := t.accounts(ctx)
	if err != nil {
		return nil, err
	}

	var positions []domain.Position
	for _, id := range accounts {
		rows, err := t.api.Portfolio(ctx, id)
		if err != nil {
			t.logger.Debug("skipping account portfolio", zap.String("account", id), zap.Error(err))
			continue
		}

		for _, row := range rows {
			qty := row.Quantity.Decimal()
			if qty.IsZero() {
				continue
			}

			price := row.CurrentPrice.Decimal()
			currency := row.CurrentPrice.Currency
			if price.IsZero() {
				price = row.AveragePositionPrice.Decimal()
				currency = row.AveragePositionPrice.Currency
			}

			positions = append(positions, domain.Position{
				Broker:   domain.BrokerTinkoff,
				Symbol:   t.resolveSymbol(ctx, row.FIGI),
				Quantity: qty,
				AvgPrice: price,
				Currency: strings.ToUpper(currency),
			})
		}
	}
	return positions, nil
}

// accounts returns the configured account ids, or discovers the open
// ones when none are configured.
func (t *Tinkoff) accounts(ctx context.Context) ([]string, error) {
	if len(t.accountIDs) > 0 {
		return t.accountIDs, nil
	}

	all, err := t.api.Accounts(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discover accounts")
	}

	var ids []string
	for _, acc := range all {
		if acc.Status == tinkoff.AccountStatusOpen {
			ids = append(ids, acc.ID)
		}
	}
	return ids, nil
}

// resolveSymbol maps a FIGI to TICKER.CLASSCODE, or bare TICKER when the
// instrument carries no class code. Failures keep the FIGI and are not
// cached.
func (t *Tinkoff) resolveSymbol(ctx context.Context, figi string) string {
	t.mu.Lock()
	if sym, ok := t.symbols[figi]; ok {
		t.mu.Unlock()
		return sym
	}
	t.mu.Unlock()

	ins, err := t.api.InstrumentByFIGI(ctx, figi)
	if err != nil || ins.Ticker == "" {
		t.logger.Debug("instrument resolution failed, keeping figi",
			zap.String("figi", figi), zap.Error(err))
		return figi
	}

	sym := ins.Ticker
	if ins.ClassCode != "" {
		sym = ins.Ticker + "." + ins.ClassCode
	}

	t.mu.Lock()
	t.symbols[figi] = sym
	t.mu.Unlock()
	return sym
}
