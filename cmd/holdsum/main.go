// holdsum collects account balances and open positions from the
// configured brokers and values them in USD.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&balancesCmd{}, "reports")
	commander.Register(&positionsCmd{}, "reports")
	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&setupCmd{}, "configuration")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
