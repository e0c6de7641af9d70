package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

type backfillCmd struct{}

func (*backfillCmd) Name() string { return "backfill" }
func (*backfillCmd) Synopsis() string {
	return "fill missing USD valuations from historical prices"
}
func (*backfillCmd) Usage() string {
	return `cw backfill

  Looks up the historical USD price of every ledger row that lacks one and
  recomputes its value. Interrupting with Ctrl-C keeps the prices already
  resolved. Failed lookups are written to backfill_failures.json in the
  ledger directory.
`
}

func (*backfillCmd) SetFlags(*flag.FlagSet) {}

func (p *backfillCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	client := NewPriceClient(settings)
	failures, err := wallet.BackfillMissingValuations(ctx, client)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	// Cancelled or not, what was resolved is kept.
	if err := store.SaveFailureLog(failures); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing failure log: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := store.Save(wallet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if len(failures) > 0 {
		fmt.Printf("%d lookups failed, see backfill_failures.json\n", len(failures))
	}
	return subcommands.ExitSuccess
}
