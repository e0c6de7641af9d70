package cryptowallet

import (
	"sort"
	"strings"
)

// TradingViewWatchlist renders the currently held non-fiat assets as a
// TradingView watchlist, the comma-separated symbol list the importer
// expects. Dust and closed positions are left out.
func (w *Wallet) TradingViewWatchlist() string {
	var symbols []string
	for asset, balance := range w.Holdings() {
		if fiatAssets[asset] || balance.InexactFloat64() < dustThreshold {
			continue
		}
		symbols = append(symbols, "CRYPTO:"+asset+"USD")
	}
	sort.Strings(symbols)
	return strings.Join(symbols, ",")
}
