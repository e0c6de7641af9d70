package cryptowallet

import (
	"math"
	"testing"

	"github.com/etnz/cryptowallet/date"
)

// demoWallet builds a small ledger: buy 1 BTC for 30k USD, pay a fee, earn
// staking interest, and hold some fiat.
func demoWallet() *Wallet {
	w := NewWallet()
	usd := tx("2023-05-01T09:00:00Z", "USD", "40000", Deposit).WithValuation(1)
	buyUSD := tx("2023-05-01T10:00:00Z", "USD", "-30000", SpotTrade).WithValuation(1)
	buyBTC := tx("2023-05-01T10:00:00Z", "BTC", "1", SpotTrade).WithValuation(30000)
	fee := tx("2023-05-01T10:00:00Z", "BTC", "-0.001", Fee).WithValuation(30000)
	reward := tx("2023-06-01T10:00:00Z", "BTC", "0.01", StakingInterest).WithValuation(28000)
	reward.Wallet = Staking
	w.append(usd, buyUSD, buyBTC, fee, reward)
	return w
}

func TestHoldings(t *testing.T) {
	w := demoWallet()
	holdings := w.Holdings()
	if !holdings["BTC"].Equal(amount("1.009")) {
		t.Errorf("BTC = %s", holdings["BTC"])
	}
	if !holdings["USD"].Equal(amount("10000")) {
		t.Errorf("USD = %s", holdings["USD"])
	}

	staked := w.HoldingsByWallet(Staking)
	if !staked["BTC"].Equal(amount("0.01")) {
		t.Errorf("staked BTC = %s", staked["BTC"])
	}
	if venue := w.VenueBalances(); !venue["Binance"]["BTC"].Equal(amount("1.009")) {
		t.Errorf("venue matrix = %+v", venue)
	}
}

func TestCostBasisExcludesFeesAndInterest(t *testing.T) {
	cost := demoWallet().CostBasis()
	// Only the trade leg counts: not the fee, not the reward.
	if cost["BTC"] != 30000 {
		t.Errorf("BTC cost basis = %v", cost["BTC"])
	}
	if cost["USD"] != 10000 {
		t.Errorf("USD cost basis = %v", cost["USD"])
	}
}

func TestCurrentValueAndRevenue(t *testing.T) {
	w := demoWallet()
	prices := map[string]float64{"BTC": 40000}
	values := CurrentValue(w.Holdings(), prices)
	if math.Abs(values["BTC"]-40360) > 1e-6 {
		t.Errorf("BTC value = %v", values["BTC"])
	}
	// Fiat is valued at its balance.
	if values["USD"] != 10000 {
		t.Errorf("USD value = %v", values["USD"])
	}

	revenue := PotentialRevenue(values, w.CostBasis())
	if math.Abs(revenue["BTC"]-10360) > 1e-6 {
		t.Errorf("BTC revenue = %v", revenue["BTC"])
	}
}

func TestBuyPrice(t *testing.T) {
	w := demoWallet()
	prices := BuyPrice(w.CostBasis(), w.Holdings())
	want := 30000 / 1.009
	if math.Abs(prices["BTC"]-want) > 1e-6 {
		t.Errorf("BTC buy price = %v want %v", prices["BTC"], want)
	}

	// Dust holdings have no meaningful buy price.
	dust := NewWallet()
	dust.append(tx("2023-05-01T10:00:00Z", "BTC", "0.00001", SpotTrade).WithValuation(30000))
	if p := BuyPrice(dust.CostBasis(), dust.Holdings()); !math.IsNaN(p["BTC"]) {
		t.Errorf("dust buy price = %v want NaN", p["BTC"])
	}

	// A negative cost (realized profit) is suppressed, not shown negative.
	realized := NewWallet()
	realized.append(
		tx("2023-05-01T10:00:00Z", "BTC", "1", SpotTrade).WithValuation(30000),
		tx("2023-05-02T10:00:00Z", "BTC", "-0.99", SpotTrade).WithValuation(40000),
	)
	if p := BuyPrice(realized.CostBasis(), realized.Holdings()); !math.IsNaN(p["BTC"]) {
		t.Errorf("realized buy price = %v want NaN", p["BTC"])
	}
}

func TestTotals(t *testing.T) {
	w := demoWallet()
	prices := map[string]float64{"BTC": 40000}

	fees := w.FeeTotals(prices)
	if math.Abs(fees.HistoricalUSD+30) > 1e-9 || math.Abs(fees.CurrentUSD+40) > 1e-9 {
		t.Errorf("fees = %+v", fees)
	}
	interest := w.InterestTotals(prices)
	if math.Abs(interest.HistoricalUSD-280) > 1e-9 || math.Abs(interest.CurrentUSD-400) > 1e-9 {
		t.Errorf("interest = %+v", interest)
	}
}

func TestPortfolioSummary(t *testing.T) {
	w := demoWallet()
	s := w.PortfolioSummary(map[string]float64{"BTC": 40000})
	if math.Abs(s.CryptoValueUSD-40360) > 1e-6 {
		t.Errorf("crypto value = %v", s.CryptoValueUSD)
	}
	if s.FiatValueUSD != 10000 {
		t.Errorf("fiat value = %v", s.FiatValueUSD)
	}
	if math.Abs(s.TotalUSD-50360) > 1e-6 {
		t.Errorf("total = %v", s.TotalUSD)
	}
}

func TestDailyHoldings(t *testing.T) {
	w := NewWallet()
	w.append(
		tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit),
		tx("2023-05-01T15:00:00Z", "BTC", "0.5", Deposit),
		tx("2023-05-03T10:00:00Z", "BTC", "-0.2", Withdraw),
	)
	balance := w.DailyHoldings("BTC")
	if balance.Len() != 2 {
		t.Fatalf("series length = %d", balance.Len())
	}
	if v, ok := balance.Get(date.MustParse("2023-05-01")); !ok || v != 1.5 {
		t.Errorf("day 1 = %v %v", v, ok)
	}
	if v, ok := balance.Get(date.MustParse("2023-05-03")); !ok || math.Abs(v-1.3) > 1e-9 {
		t.Errorf("day 3 = %v %v", v, ok)
	}
	// The series is a running balance, a day without flow reads as the
	// previous balance.
	if v, ok := balance.ValueAsOf(date.MustParse("2023-05-02")); !ok || v != 1.5 {
		t.Errorf("as of day 2 = %v %v", v, ok)
	}
}

func TestTradingViewWatchlist(t *testing.T) {
	w := demoWallet()
	if got, want := w.TradingViewWatchlist(), "CRYPTO:BTCUSD"; got != want {
		t.Errorf("watchlist = %q want %q", got, want)
	}
}
