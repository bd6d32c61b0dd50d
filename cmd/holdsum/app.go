package main

import (
	"flag"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/holdsum/holdsum/config"
	"github.com/holdsum/holdsum/internal/clients/binance"
	"github.com/holdsum/holdsum/internal/clients/bybit"
	"github.com/holdsum/holdsum/internal/clients/fx"
	"github.com/holdsum/holdsum/internal/logging"
	"github.com/holdsum/holdsum/internal/services/aggregator"
	"github.com/holdsum/holdsum/internal/services/pricer"
)

// Flags every report command shares.
type commonFlags struct {
	configPath string
	format     string
	debug      bool
}

func (c *commonFlags) register(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to the yaml config file; environment variables apply on top")
	f.StringVar(&c.format, "format", "table", "output format, table or json")
	f.BoolVar(&c.debug, "debug", false, "log at debug level")
}

// app wires the pieces every command needs. The price resolver talks to
// public ticker endpoints, so it works with no credentials at all.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *aggregator.Aggregator
	resolver *pricer.Resolver
}

func newApp(flags commonFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	logger := logging.New(flags.debug, cfg.LogFile)
	return &app{
		cfg:    cfg,
		logger: logger,
		engine: aggregator.NewFromConfig(cfg, logger),
		resolver: pricer.New(
			fx.New(""),
			binance.New(cfg.Binance.BaseURL, "", ""),
			bybit.New(cfg.Bybit.BaseURL, "", "", cfg.Bybit.RecvWindow),
			logger,
		),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}
