package broker

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/errs"
	"github.com/holdsum/holdsum/internal/clients/ibgw"
	"github.com/holdsum/holdsum/internal/domain"
)

type gatewayClient interface {
	Collect(ctx context.Context) (ibgw.Result, error)
}

// IBKR reports per-currency cash and instrument positions through the
// gateway socket. Every fetch runs a fresh session; sessions serialize
// because the gateway rejects concurrent connections sharing a client
// id.
type IBKR struct {
	mu sync.Mutex
	gw gatewayClient
}

// NewIBKR builds the adapter or fails fast on a missing gateway address.
func NewIBKR(cfg config.IBConfig, logger *zap.Logger) (*IBKR, error) {
	if !cfg.IsConfigured() {
		return nil, errs.New(string(domain.BrokerIBKR), errs.KindConfig,
			errs.WithMessage("gateway host is required"))
	}
	gw := ibgw.New(cfg.Host, cfg.Port, cfg.ClientID,
		ibgw.WithAccounts(cfg.AccountIDs),
		ibgw.WithTimeout(cfg.Timeout),
		ibgw.WithLogger(logger),
	)
	return &IBKR{gw: gw}, nil
}

func (i *IBKR) Broker() domain.Broker { return domain.BrokerIBKR }

func (i *IBKR) FetchBalances(ctx context.Context) ([]domain.Balance, error) {
	res, err := i.collect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "collect gateway records")
	}
	return res.Balances, nil
}

func (i *IBKR) FetchPositions(ctx context.Context) ([]domain.Position, error) {
	res, err := i.collect(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "collect gateway records")
	}
	return res.Positions, nil
}

func (i *IBKR) collect(ctx context.Context) (ibgw.Result, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.gw.Collect(ctx)
}
