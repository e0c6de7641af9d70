package cryptowallet

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tx(ts, asset, amt string, typ TransactionType) Transaction {
	return NewTransaction(at(ts), asset, amount(amt), typ, "Binance", "u1", Spot, string(typ))
}

func TestMergeWithinWindow(t *testing.T) {
	// Three fills of the same order, one second apart, plus an unrelated row
	// much later. Window 900s merges the fills and keeps the late row alone.
	batch := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "0.1", SpotTrade).WithValuation(30000),
		tx("2023-05-01T10:00:01Z", "BTC", "0.2", SpotTrade).WithValuation(30000),
		tx("2023-05-01T10:00:02Z", "BTC", "0.3", SpotTrade).WithValuation(30000),
		tx("2023-05-01T12:00:00Z", "BTC", "1", SpotTrade).WithValuation(31000),
	}
	merged := MergeWithinWindow(batch, 900*time.Second)
	if len(merged) != 2 {
		t.Fatalf("got %d rows: %+v", len(merged), merged)
	}
	fill := merged[0]
	if !fill.Amount.Equal(amount("0.6")) {
		t.Errorf("merged amount = %s", fill.Amount)
	}
	if !fill.Time.Equal(at("2023-05-01T10:00:00Z")) {
		t.Errorf("merged time = %v, want the earliest", fill.Time)
	}
	if math.Abs(fill.AmountUSD-18000) > 1e-9 || math.Abs(fill.PriceUSD-30000) > 1e-9 {
		t.Errorf("merged valuation = %v at %v", fill.AmountUSD, fill.PriceUSD)
	}
	if !merged[1].Amount.Equal(amount("1")) {
		t.Errorf("late row merged by mistake: %+v", merged[1])
	}
}

func TestMergeWithinWindowGapSplits(t *testing.T) {
	// Same key, but 1000s apart with a 900s window: two sub-groups.
	batch := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "0.1", SpotTrade),
		tx("2023-05-01T10:16:40Z", "BTC", "0.2", SpotTrade),
	}
	if merged := MergeWithinWindow(batch, 900*time.Second); len(merged) != 2 {
		t.Errorf("got %d rows: %+v", len(merged), merged)
	}
	// A negative gap (clock skew) is a boundary too, order of the input does
	// not matter because groups are sorted first.
	if merged := MergeWithinWindow(batch, 2000*time.Second); len(merged) != 1 {
		t.Errorf("got %d rows: %+v", len(merged), merged)
	}
}

func TestMergeWithinWindowNaNPropagates(t *testing.T) {
	batch := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "0.1", SpotTrade).WithValuation(30000),
		tx("2023-05-01T10:00:01Z", "BTC", "0.2", SpotTrade), // unknown valuation
	}
	merged := MergeWithinWindow(batch, time.Minute)
	if len(merged) != 1 {
		t.Fatalf("got %d rows", len(merged))
	}
	// One unknown member makes the merged total unknown, not zero.
	if !math.IsNaN(merged[0].AmountUSD) {
		t.Errorf("merged AmountUSD = %v want NaN", merged[0].AmountUSD)
	}
}

func TestMergeWithinWindowKeepsDistinctKeys(t *testing.T) {
	batch := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "0.1", SpotTrade),
		tx("2023-05-01T10:00:01Z", "ETH", "0.1", SpotTrade),
		tx("2023-05-01T10:00:02Z", "BTC", "0.1", Fee),
	}
	if merged := MergeWithinWindow(batch, time.Minute); len(merged) != 3 {
		t.Errorf("got %d rows: %+v", len(merged), merged)
	}
}

func TestRemoveAlreadyImported(t *testing.T) {
	wallet := NewWallet()
	wallet.append(
		tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit),
		tx("2023-05-03T10:00:00Z", "BTC", "1", Deposit),
	)
	// T0 before the span, T2 inside it (a genuinely different event, still
	// dropped by the window policy), T5 after it.
	batch := []Transaction{
		tx("2023-04-30T10:00:00Z", "BTC", "2", Deposit),
		tx("2023-05-02T10:00:00Z", "BTC", "3", Deposit),
		tx("2023-05-05T10:00:00Z", "BTC", "4", Deposit),
	}
	kept := wallet.RemoveAlreadyImported(batch)
	if len(kept) != 2 {
		t.Fatalf("kept %d rows: %+v", len(kept), kept)
	}
	if !kept[0].Amount.Equal(amount("2")) || !kept[1].Amount.Equal(amount("4")) {
		t.Errorf("kept = %+v", kept)
	}

	// Span boundaries are closed: rows at the exact ends are duplicates.
	edge := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "9", Deposit),
		tx("2023-05-03T10:00:00Z", "BTC", "9", Deposit),
	}
	if kept := wallet.RemoveAlreadyImported(edge); len(kept) != 0 {
		t.Errorf("edge rows kept: %+v", kept)
	}

	// A different account is not covered by the span.
	other := tx("2023-05-02T10:00:00Z", "BTC", "1", Deposit)
	other.UserID = "u2"
	if kept := wallet.RemoveAlreadyImported([]Transaction{other}); len(kept) != 1 {
		t.Errorf("other account dropped: %+v", kept)
	}
}

func TestIntegrateIsIdempotent(t *testing.T) {
	batch := []Transaction{
		tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit),
		tx("2023-05-02T10:00:00Z", "ETH", "2", Deposit),
	}
	wallet := NewWallet()
	wallet.Integrate(batch, DefaultIntegrateOptions())
	if wallet.Len() != 2 {
		t.Fatalf("first import: %d rows", wallet.Len())
	}
	wallet.Integrate(batch, DefaultIntegrateOptions())
	if wallet.Len() != 2 {
		t.Errorf("re-import duplicated rows: %d", wallet.Len())
	}
}

func TestIntegrateReturnsAddedRows(t *testing.T) {
	wallet := NewWallet()
	wallet.append(tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit))

	// Two fills of one trade plus a duplicate of the existing deposit: the
	// returned rows must reflect what survived both stages, not the raw
	// batch.
	batch := []Transaction{
		tx("2023-05-02T10:00:00Z", "ETH", "1", SpotTrade),
		tx("2023-05-02T10:05:00Z", "ETH", "2", SpotTrade),
		tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit),
	}
	added := wallet.Integrate(batch, DefaultIntegrateOptions())
	if len(added) != 1 {
		t.Fatalf("added %d rows: %+v", len(added), added)
	}
	if !added[0].Amount.Equal(amount("3")) || added[0].Asset != "ETH" {
		t.Errorf("added = %+v", added[0])
	}
	if wallet.Len() != 2 {
		t.Errorf("ledger has %d rows", wallet.Len())
	}
}

func TestCheckIntegrity(t *testing.T) {
	wallet := NewWallet()
	wallet.append(tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit).WithValuation(30000))
	if err := wallet.CheckIntegrity(); err != nil {
		t.Fatalf("valid ledger rejected: %v", err)
	}

	tbd := NewWallet()
	tbd.append(tx("2023-05-01T10:00:00Z", "BTC", "1", TBD))
	if err := tbd.CheckIntegrity(); err == nil || !strings.Contains(err.Error(), "TBD") {
		t.Errorf("TBD not rejected: %v", err)
	}

	missing := NewWallet()
	bad := tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit)
	bad.UserID = ""
	missing.append(bad)
	if err := missing.CheckIntegrity(); err == nil {
		t.Error("missing user id not rejected")
	}

	skewed := NewWallet()
	row := tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit)
	row.PriceUSD = 30000
	row.AmountUSD = 30000.002 // beyond the 0.001 tolerance
	skewed.append(row)
	if err := skewed.CheckIntegrity(); err == nil {
		t.Error("valuation mismatch not rejected")
	}
	row.AmountUSD = 30000.0005 // within tolerance
	fine := NewWallet()
	fine.append(row)
	if err := fine.CheckIntegrity(); err != nil {
		t.Errorf("within-tolerance ledger rejected: %v", err)
	}
}

func TestPurge(t *testing.T) {
	wallet := NewWallet()
	kraken := tx("2023-05-01T10:00:00Z", "BTC", "1", Deposit)
	kraken.Exchange = "Kraken"
	wallet.append(tx("2023-05-02T10:00:00Z", "ETH", "1", Deposit), kraken)

	if err := wallet.Purge("Kraken"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if wallet.Len() != 1 {
		t.Errorf("ledger has %d rows after purge", wallet.Len())
	}
	if err := wallet.Purge("Kraken"); err == nil {
		t.Error("purging an absent exchange should fail")
	}
}
