package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptowallet/date"
	"github.com/etnz/cryptowallet/renderer"
	"github.com/google/subcommands"
)

type summaryCmd struct{}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display the whole-portfolio summary" }
func (*summaryCmd) Usage() string {
	return `cw summary

  Values the whole ledger at current prices: crypto value, fiat balance,
  interest earned and fees paid.
`
}

func (*summaryCmd) SetFlags(*flag.FlagSet) {}

func (p *summaryCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	store := OpenStore(settings)
	wallet, err := store.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	prices, err := CurrentPrices(settings, store, wallet.Assets())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.SummaryMarkdown(&renderer.Summary{
		Date:      date.Today(),
		Portfolio: wallet.PortfolioSummary(prices),
		Fees:      wallet.FeeTotals(prices),
		Interest:  wallet.InterestTotals(prices),
	}))
	return subcommands.ExitSuccess
}
