package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type positionsCmd struct {
	commonFlags
}

func (*positionsCmd) Name() string     { return "positions" }
func (*positionsCmd) Synopsis() string { return "fetch open positions across all configured brokers" }
func (*positionsCmd) Usage() string {
	return `holdsum positions [-config <file>] [-format table|json] [-debug]

  Fetches non-zero asset positions from every configured broker, tagged
  by sub-account, and values them in USD where a price can be resolved.
`
}

func (c *positionsCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *positionsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(c.commonFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.close()

	positions := a.engine.FetchPositions(ctx)
	if len(positions) == 0 {
		fmt.Println("No positions fetched; ensure credentials are configured.")
		return subcommands.ExitSuccess
	}

	prices := a.resolver.Prices(ctx, positionSymbols(positions))

	out, err := renderPositions(positions, prices, c.format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering positions: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}
