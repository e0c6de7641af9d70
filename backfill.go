package cryptowallet

import (
	"context"
	"log"

	"github.com/etnz/cryptowallet/cryptocompare"
)

// BackfillMissingValuations resolves the USD valuation of every row that
// lacks one, looking each (asset, time) pair up through the price client.
// Assets the provider does not support are left alone. Resolved prices are
// applied in place even when other lookups fail or the context is cancelled
// mid-batch; the returned failure log names what is still missing.
func (w *Wallet) BackfillMissingValuations(ctx context.Context, client *cryptocompare.Client) (cryptocompare.FailureLog, error) {
	var lookups []cryptocompare.Lookup
	for i, tx := range w.transactions {
		if tx.HasPrice() || cryptocompare.UnsupportedForHistory(tx.Asset) {
			continue
		}
		lookups = append(lookups, cryptocompare.Lookup{Index: i, Asset: tx.Asset, At: tx.Time})
	}
	if len(lookups) == 0 {
		return nil, nil
	}

	prices, failures, err := client.Backfill(ctx, lookups)
	for i, price := range prices {
		w.transactions[i] = w.transactions[i].WithValuation(price)
	}
	log.Printf("backfilled %d of %d missing valuations (%d failed)", len(prices), len(lookups), len(failures))
	return failures, err
}
