// Package aggregator fans balance and position fetches out over the
// configured broker adapters and merges the results. One failing broker
// is logged and skipped so it never hides the others.
package aggregator

import (
	"context"

	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/domain"
	"github.com/holdsum/holdsum/internal/services/broker"
)

type Aggregator struct {
	adapters []broker.Adapter
	logger   *zap.Logger
}

func New(logger *zap.Logger, adapters ...broker.Adapter) *Aggregator {
	return &Aggregator{adapters: adapters, logger: logger}
}

// NewFromConfig builds an adapter for every venue with credentials
// present. Brokers without credentials are skipped, not errors.
func NewFromConfig(cfg *config.Config, logger *zap.Logger) *Aggregator {
	builders := []struct {
		broker domain.Broker
		build  func() (broker.Adapter, error)
	}{
		{domain.BrokerTinkoff, func() (broker.Adapter, error) { return broker.NewTinkoff(cfg.Tinkoff, logger) }},
		{domain.BrokerBybit, func() (broker.Adapter, error) { return broker.NewBybit(cfg.Bybit, logger) }},
		{domain.BrokerBinance, func() (broker.Adapter, error) { return broker.NewBinance(cfg.Binance, logger) }},
		{domain.BrokerIBKR, func() (broker.Adapter, error) { return broker.NewIBKR(cfg.IB, logger) }},
	}

	var adapters []broker.Adapter
	for _, b := range builders {
		adapter, err := b.build()
		if err != nil {
			logger.Info("broker not configured, skipping",
				zap.String("broker", b.broker.String()), zap.Error(err))
			continue
		}
		adapters = append(adapters, adapter)
	}
	return New(logger, adapters...)
}

// Brokers lists the brokers the aggregator will query, in query order.
func (a *Aggregator) Brokers() []domain.Broker {
	brokers := make([]domain.Broker, 0, len(a.adapters))
	for _, adapter := range a.adapters {
		brokers = append(brokers, adapter.Broker())
	}
	return brokers
}

// FetchBalances queries every adapter in order and concatenates what
// they return. It never fails; a dead venue only shrinks the result.
func (a *Aggregator) FetchBalances(ctx context.Context) []domain.Balance {
	var balances []domain.Balance
	for _, adapter := range a.adapters {
		got, err := adapter.FetchBalances(ctx)
		if err != nil {
			a.logFetchError(adapter.Broker(), "balances", err)
			continue
		}
		a.logger.Debug("fetched balances",
			zap.String("broker", adapter.Broker().String()), zap.Int("count", len(got)))
		balances = append(balances, got...)
	}
	return balances
}

// FetchPositions queries every adapter in order and concatenates what
// they return. It never fails; a dead venue only shrinks the result.
func (a *Aggregator) FetchPositions(ctx context.Context) []domain.Position {
	var positions []domain.Position
	for _, adapter := range a.adapters {
		got, err := adapter.FetchPositions(ctx)
		if err != nil {
			a.logFetchError(adapter.Broker(), "positions", err)
			continue
		}
		a.logger.Debug("fetched positions",
			zap.String("broker", adapter.Broker().String()), zap.Int("count", len(got)))
		positions = append(positions, got...)
	}
	return positions
}

// Classified venue failures are expected operational noise; anything
// else is a bug worth a louder line.
func (a *Aggregator) logFetchError(b domain.Broker, what string, err error) {
	fields := []zap.Field{zap.String("broker", b.String()), zap.Error(err)}
	if kind := errs.KindOf(err); kind != "" {
		a.logger.Warn("broker fetch failed, skipping "+what, append(fields, zap.String("kind", string(kind)))...)
		return
	}
	a.logger.Error("broker fetch failed, skipping "+what, fields...)
}
