package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

type purgeCmd struct {
	exchange string
}

func (*purgeCmd) Name() string     { return "purge" }
func (*purgeCmd) Synopsis() string { return "remove every transaction of one exchange" }
func (*purgeCmd) Usage() string {
	return `cw purge -exchange <name>

  Removes all rows of the given exchange from the ledger, wholesale. The
  previous ledger file is backed up first, so the rows stay recoverable.
`
}

func (p *purgeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.exchange, "exchange", "", "Exchange to purge")
}

func (p *purgeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.exchange == "" {
		fmt.Fprintln(os.Stderr, "Error: -exchange is required")
		return subcommands.ExitUsageError
	}
	settings, err := LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := OpenStore(settings).PurgeExchange(p.exchange); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Purged %s from the ledger\n", p.exchange)
	return subcommands.ExitSuccess
}
