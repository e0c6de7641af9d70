package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/etnz/cryptowallet/loader"
	"github.com/etnz/cryptowallet/renderer"
	"github.com/google/subcommands"
)

type importCmd struct {
	source  string
	window  time.Duration
	noMerge bool
	noDedup bool
	dryRun  bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import an exchange export into the ledger" }
func (*importCmd) Usage() string {
	return `cw import -source <name> <export-path>

  Loads an exchange export, merges rows split by the source, drops rows
  already covered by a previous import, and saves the ledger. The previous
  ledger file is backed up first.

Usage Examples:
$ cw import -source Binance export.csv
$ cw import -source Kraken ./kraken-export/
`
}

func (p *importCmd) SetFlags(f *flag.FlagSet) {
	names := make([]string, 0, len(loader.Sources()))
	for _, s := range loader.Sources() {
		names = append(names, s.Name())
	}
	f.StringVar(&p.source, "source", "", "Export source, one of: "+strings.Join(names, ", "))
	f.DurationVar(&p.window, "merge-window", 15*time.Minute, "Window for merging split rows")
	f.BoolVar(&p.noMerge, "no-merge", false, "Do not merge split rows")
	f.BoolVar(&p.noDedup, "no-dedup", false, "Do not drop rows inside an already imported span")
	f.BoolVar(&p.dryRun, "dry-run", false, "Show what would be imported without saving")
}

func (p *importCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one export path is expected")
		return subcommands.ExitUsageError
	}
	source, err := loader.ForName(p.source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	batch, err := source.Load(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s export: %v\n", source.Name(), err)
		return subcommands.ExitFailure
	}

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

	before := wallet.Len()
	added := wallet.Integrate(batch, cryptowallet.IntegrateOptions{
		MergeSimilar:   !p.noMerge,
		RemoveExisting: !p.noDedup,
		Window:         p.window,
	})
	if p.dryRun {
		printMarkdown(renderer.TransactionsMarkdown("Import preview", added))
		fmt.Printf("Would import %d transactions (ledger untouched)\n", len(added))
		return subcommands.ExitSuccess
	}
	if err := store.Save(wallet); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Imported %d transactions from %s (%d loaded, %d already known or merged)\n",
		wallet.Len()-before, source.Name(), len(batch), len(batch)-(wallet.Len()-before))
	return subcommands.ExitSuccess
}
