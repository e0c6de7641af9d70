package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/cryptowallet"
	"github.com/etnz/cryptowallet/date"
	"github.com/etnz/cryptowallet/renderer"
	"github.com/google/subcommands"
	"github.com/shopspring/decimal"
)

type balanceCmd struct {
	wallet   string
	exchange string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "display per-asset holdings and valuation" }
func (*balanceCmd) Usage() string {
	return `cw balance [-wallet <kind> | -exchange <name>]

  Shows the balance of every asset with its buy price, current price, value
  and potential revenue. The view can be scoped to one wallet kind (SPOT,
  SAVING, STAKING, FUNDING) or to one exchange.
`
}

func (p *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.wallet, "wallet", "", "Scope to one wallet kind")
	f.StringVar(&p.exchange, "exchange", "", "Scope to one exchange")
}

func (p *balanceCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if p.wallet != "" && p.exchange != "" {
		fmt.Fprintln(os.Stderr, "Error: -wallet and -exchange are exclusive")
		return subcommands.ExitUsageError
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

	var holdings map[string]decimal.Decimal
	scope := ""
	switch {
	case p.wallet != "":
		kind, err := cryptowallet.ParseWalletType(p.wallet)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitUsageError
		}
		holdings = wallet.HoldingsByWallet(kind)
		scope = p.wallet
	case p.exchange != "":
		holdings = wallet.HoldingsByExchange(p.exchange)
		scope = p.exchange
	default:
		holdings = wallet.Holdings()
	}

	prices, err := CurrentPrices(settings, store, wallet.Assets())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching prices: %v\n", err)
		return subcommands.ExitFailure
	}
	cost := wallet.CostBasis()
	values := cryptowallet.CurrentValue(holdings, prices)
	revenue := cryptowallet.PotentialRevenue(values, cost)
	buyPrices := cryptowallet.BuyPrice(cost, holdings)

	report := &renderer.Balance{Date: date.Today(), Scope: scope}
	for asset, balance := range holdings {
		report.Rows = append(report.Rows, renderer.BalanceRow{
			Asset:           asset,
			Amount:          balance,
			BuyPriceUSD:     buyPrices[asset],
			CurrentPriceUSD: prices[asset],
			ValueUSD:        values[asset],
			RevenueUSD:      revenue[asset],
		})
	}
	printMarkdown(renderer.BalanceMarkdown(report))
	return subcommands.ExitSuccess
}
