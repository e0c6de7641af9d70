package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptowallet/renderer"
	"github.com/google/subcommands"
)

type historyCmd struct {
	asset string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display the daily balance history of one asset" }
func (*historyCmd) Usage() string {
	return `cw history -asset <ticker>

  Resamples the asset's transactions to daily buckets and shows the running
  balance.
`
}

func (p *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asset, "asset", "", "Asset to chart")
}

func (p *historyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.asset == "" {
		fmt.Fprintln(os.Stderr, "Error: -asset is required")
		return subcommands.ExitUsageError
	}
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	wallet, err := OpenStore(settings).Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	balance := wallet.DailyHoldings(p.asset)
	if balance.Len() == 0 {
		fmt.Fprintf(os.Stderr, "No transactions for %s\n", p.asset)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.HistoryMarkdown(p.asset, balance))
	return subcommands.ExitSuccess
}
