package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"
)

type updateCmd struct {
	daily bool
}

func (*updateCmd) Name() string     { return "update" }
func (*updateCmd) Synopsis() string { return "refresh current prices for every held asset" }
func (*updateCmd) Usage() string {
	return `cw update [-daily]

  Fetches the current USD price of every asset in the ledger into the price
  cache. With -daily, also refreshes the incremental daily OHLCV cache of
  each asset.
`
}

func (p *updateCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.daily, "daily", false, "Also refresh the daily OHLCV caches")
}

func (p *updateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	assets := wallet.Assets()
	if len(assets) == 0 {
		fmt.Println("The ledger is empty, nothing to update.")
		return subcommands.ExitSuccess
	}

	prices, err := CurrentPrices(settings, store, assets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
		return subcommands.ExitFailure
	}
	sort.Strings(assets)
	for _, asset := range assets {
		fmt.Printf("%-8s %s\n", asset, formatPrice(prices[asset]))
	}

	if p.daily {
		client := NewPriceClient(settings)
		for _, asset := range assets {
			if _, err := client.DailySeries(store.Dir, asset); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: daily series for %s: %v\n", asset, err)
			}
		}
	}
	return subcommands.ExitSuccess
}

func formatPrice(price float64) string {
	if price != price { // NaN
		return "unknown"
	}
	return fmt.Sprintf("%.6g USD", price)
}
