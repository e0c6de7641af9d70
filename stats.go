package cryptowallet

import (
	"math"
	"sort"

	"github.com/etnz/cryptowallet/date"
	"github.com/shopspring/decimal"
)

// Read-side views over the ledger. All of them are pure: they scan the
// sorted transaction slice and never mutate it.

// costBasisTypes are the economic inflow/outflow events that count toward
// the cost basis. Fees and interest-like earnings are excluded: they are
// reported on their own.
var costBasisTypes = map[TransactionType]bool{
	SpotTrade: true, StakingPurchase: true, StakingRedemption: true,
	SavingPurchase: true, SavingRedemption: true, Deposit: true,
	Withdraw: true, Spend: true, Income: true, Redenomination: true,
	AccountTransfer: true,
}

// interestTypes are the earning events reported by InterestTotals.
var interestTypes = map[TransactionType]bool{
	StakingInterest: true, SavingInterest: true, ReferralInterest: true,
	MiningInterest: true, Distribution: true,
}

// fiatAssets are the assets whose balance is a currency amount, not a
// position to be valued at a market price.
var fiatAssets = map[string]bool{
	"USD": true, "EUR": true, "CHF": true, "GBP": true,
	"USDT": true, "USDC": true, "BUSD": true,
}

func (w *Wallet) holdings(keep func(Transaction) bool) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal)
	for _, tx := range w.transactions {
		if keep != nil && !keep(tx) {
			continue
		}
		balances[tx.Asset] = balances[tx.Asset].Add(tx.Amount)
	}
	return balances
}

// Holdings returns the current balance per asset, the signed sum of all
// amounts.
func (w *Wallet) Holdings() map[string]decimal.Decimal {
	return w.holdings(nil)
}

// HoldingsByWallet returns the balance per asset scoped to one wallet kind.
func (w *Wallet) HoldingsByWallet(kind WalletType) map[string]decimal.Decimal {
	return w.holdings(func(tx Transaction) bool { return tx.Wallet == kind })
}

// HoldingsByExchange returns the balance per asset scoped to one exchange.
func (w *Wallet) HoldingsByExchange(exchange string) map[string]decimal.Decimal {
	return w.holdings(func(tx Transaction) bool { return tx.Exchange == exchange })
}

// VenueBalances returns the balance matrix exchange then asset.
func (w *Wallet) VenueBalances() map[string]map[string]decimal.Decimal {
	matrix := make(map[string]map[string]decimal.Decimal)
	for _, tx := range w.transactions {
		venue := matrix[tx.Exchange]
		if venue == nil {
			venue = make(map[string]decimal.Decimal)
			matrix[tx.Exchange] = venue
		}
		venue[tx.Asset] = venue[tx.Asset].Add(tx.Amount)
	}
	return matrix
}

// CostBasis returns the net USD spent per asset across the cost-basis event
// types. Rows with an unknown valuation are skipped, not treated as zero of
// the whole asset.
func (w *Wallet) CostBasis() map[string]float64 {
	cost := make(map[string]float64)
	for _, tx := range w.transactions {
		if !costBasisTypes[tx.Type] || math.IsNaN(tx.AmountUSD) {
			continue
		}
		cost[tx.Asset] += tx.AmountUSD
	}
	return cost
}

// CurrentValue values holdings at current prices. An asset without a price
// is valued NaN.
func CurrentValue(holdings map[string]decimal.Decimal, prices map[string]float64) map[string]float64 {
	values := make(map[string]float64, len(holdings))
	for asset, balance := range holdings {
		price, ok := prices[asset]
		if !ok {
			price = math.NaN()
		}
		if fiatAssets[asset] {
			price = 1
		}
		values[asset] = balance.InexactFloat64() * price
	}
	return values
}

// PotentialRevenue returns current value minus cost basis per asset. A
// missing cost basis counts as zero, the value itself is the potential
// revenue then.
func PotentialRevenue(values, cost map[string]float64) map[string]float64 {
	revenue := make(map[string]float64, len(values))
	for asset, value := range values {
		revenue[asset] = value - cost[asset]
	}
	return revenue
}

// dustThreshold is the holding below which a buy price is meaningless, the
// division blows up on dust balances.
const dustThreshold = 0.0001

// BuyPrice returns the average acquisition price per asset, cost divided by
// holdings. Dust holdings resolve to unknown, and so does a negative result,
// profit already realized is not a price.
func BuyPrice(cost map[string]float64, holdings map[string]decimal.Decimal) map[string]float64 {
	prices := make(map[string]float64, len(holdings))
	for asset, balance := range holdings {
		held := balance.InexactFloat64()
		price := math.NaN()
		if held >= dustThreshold {
			if p := cost[asset] / held; p >= 0 {
				price = p
			}
		}
		prices[asset] = price
	}
	return prices
}

// Totals reports one category of rows valued two ways: at the USD value
// recorded at transaction time, and at current prices.
type Totals struct {
	HistoricalUSD float64
	CurrentUSD    float64
}

func (w *Wallet) totals(keep func(Transaction) bool, prices map[string]float64) Totals {
	var t Totals
	for _, tx := range w.transactions {
		if !keep(tx) {
			continue
		}
		if !math.IsNaN(tx.AmountUSD) {
			t.HistoricalUSD += tx.AmountUSD
		}
		if price, ok := prices[tx.Asset]; ok {
			t.CurrentUSD += tx.Amount.InexactFloat64() * price
		}
	}
	return t
}

// FeeTotals sums all fee rows, historical and at current prices.
func (w *Wallet) FeeTotals(prices map[string]float64) Totals {
	return w.totals(func(tx Transaction) bool { return tx.Type == Fee }, prices)
}

// InterestTotals sums all interest and distribution rows, historical and at
// current prices.
func (w *Wallet) InterestTotals(prices map[string]float64) Totals {
	return w.totals(func(tx Transaction) bool { return interestTypes[tx.Type] }, prices)
}

// Summary is the whole-portfolio view.
type Summary struct {
	// CryptoValueUSD is the current value of all non-fiat holdings.
	CryptoValueUSD float64
	// FiatValueUSD is the fiat balance; fiat is tracked as ledger assets, so
	// its current value is the balance itself.
	FiatValueUSD float64
	// TotalUSD is the sum of both, the overall profit estimate of the
	// ledger.
	TotalUSD float64
}

// PortfolioSummary values the whole ledger at current prices. Assets without
// a price are skipped from the crypto total.
func (w *Wallet) PortfolioSummary(prices map[string]float64) Summary {
	var s Summary
	for asset, value := range CurrentValue(w.Holdings(), prices) {
		if math.IsNaN(value) {
			continue
		}
		if fiatAssets[asset] {
			s.FiatValueUSD += value
		} else {
			s.CryptoValueUSD += value
		}
	}
	s.TotalUSD = s.CryptoValueUSD + s.FiatValueUSD
	return s
}

// DailyHoldings resamples one asset's signed amounts to daily buckets and
// cumulates them into a running balance series.
func (w *Wallet) DailyHoldings(asset string) *date.History[float64] {
	flows := &date.History[float64]{}
	for _, tx := range w.transactions {
		if tx.Asset != asset {
			continue
		}
		flows.AppendAdd(date.Of(tx.Time), tx.Amount.InexactFloat64())
	}
	balance := &date.History[float64]{}
	running := 0.0
	for day, flow := range flows.Values() {
		running += flow
		balance.Append(day, running)
	}
	return balance
}

// Assets returns the sorted set of assets present in the ledger.
func (w *Wallet) Assets() []string {
	seen := make(map[string]bool)
	var assets []string
	for _, tx := range w.transactions {
		if !seen[tx.Asset] {
			seen[tx.Asset] = true
			assets = append(assets, tx.Asset)
		}
	}
	sort.Strings(assets)
	return assets
}
