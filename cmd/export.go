package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export-tradingview" }
func (*exportCmd) Synopsis() string { return "export held assets as a TradingView watchlist" }
func (*exportCmd) Usage() string {
	return `cw export-tradingview [-o <file>]

  Writes the currently held non-fiat assets as a TradingView watchlist,
  ready to be imported there.
`
}

func (p *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.output, "o", "", "Output file (stdout by default)")
}

func (p *exportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	watchlist := wallet.TradingViewWatchlist()
	if p.output == "" {
		fmt.Println(watchlist)
		return subcommands.ExitSuccess
	}
	if err := os.WriteFile(p.output, []byte(watchlist+"\n"), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Watchlist written to %s\n", p.output)
	return subcommands.ExitSuccess
}
