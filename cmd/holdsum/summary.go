package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/holdsum/holdsum/internal/domain"
)

type summaryCmd struct {
	commonFlags
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "fetch balances and positions in one report" }
func (*summaryCmd) Usage() string {
	return `holdsum summary [-config <file>] [-format table|json] [-debug]

  Fetches balances and positions from every configured broker, values
  everything in USD where possible and prints both sections with a
  combined total.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(c.commonFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.close()

	// The two fetches are independent; adapters that cannot serve
	// concurrent sessions serialize internally.
	var (
		balances  []domain.Balance
		positions []domain.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		balances = a.engine.FetchBalances(gctx)
		return nil
	})
	g.Go(func() error {
		positions = a.engine.FetchPositions(gctx)
		return nil
	})
	_ = g.Wait()

	if len(balances) == 0 && len(positions) == 0 {
		fmt.Println("No records fetched; ensure credentials are configured.")
		return subcommands.ExitSuccess
	}

	symbols := append(balanceCurrencies(balances), positionSymbols(positions)...)
	prices := a.resolver.Prices(ctx, symbols)

	out, err := renderSummary(balances, positions, prices, c.format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering summary: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}
