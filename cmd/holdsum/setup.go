package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/holdsum/holdsum/internal/setup"
)

type setupCmd struct {
	configPath string
}

func (*setupCmd) Name() string     { return "setup" }
func (*setupCmd) Synopsis() string { return "interactively write a config file" }
func (*setupCmd) Usage() string {
	return `holdsum setup [-config <file>]

  Walks through broker credentials in the terminal and writes them to
  the config file.
`
}

func (c *setupCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "config.yaml", "where to write the config file")
}

func (c *setupCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := setup.Run(c.configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
