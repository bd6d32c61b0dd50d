package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type balancesCmd struct {
	commonFlags
}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "fetch cash balances across all configured brokers" }
func (*balancesCmd) Usage() string {
	return `holdsum balances [-config <file>] [-format table|json] [-debug]

  Fetches non-zero cash balances from every configured broker and
  values them in USD where a price can be resolved.
`
}

func (c *balancesCmd) SetFlags(f *flag.FlagSet) {
	c.register(f)
}

func (c *balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(c.commonFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.close()

	balances := a.engine.FetchBalances(ctx)
	if len(balances) == 0 {
		fmt.Println("No balances fetched; ensure credentials are configured.")
		return subcommands.ExitSuccess
	}

	prices := a.resolver.Prices(ctx, balanceCurrencies(balances))

	out, err := renderBalances(balances, prices, c.format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering balances: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Println(out)
	return subcommands.ExitSuccess
}
