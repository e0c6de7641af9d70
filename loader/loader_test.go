package loader

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/shopspring/decimal"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func amount(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestBinanceLoad(t *testing.T) {
	csv := `User_ID,UTC_Time,Account,Operation,Coin,Change,Remark
12345,2023-05-01 10:00:00,Spot,Deposit,BTC,0.5,
12345,2023-05-01 11:00:00,Spot,Staking Purchase,DOT,-10,
12345,2023-05-01 12:00:00,Spot,Simple Earn Flexible Subscription,LDUSDT,100,
12345,2023-05-01 13:00:00,Spot,ETH 2.0 Staking Rewards,BETH,0.01,
12345,2023-05-01 14:00:00,Funding,Asset Transfer,USDT,-50,to funding
12345,2023-05-01 15:00:00,Spot,Buy,SHIB2,1000,
`
	path := writeFile(t, t.TempDir(), "export.csv", csv)
	transactions, err := Binance{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 6 rows plus the synthesized staking leg.
	if len(transactions) != 7 {
		t.Fatalf("got %d transactions: %+v", len(transactions), transactions)
	}

	deposit := transactions[0]
	if deposit.Type != cryptowallet.Deposit || deposit.Asset != "BTC" || deposit.UserID != "12345" {
		t.Errorf("deposit = %+v", deposit)
	}
	if !deposit.Time.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("deposit time = %v", deposit.Time)
	}
	if !math.IsNaN(deposit.PriceUSD) {
		t.Errorf("deposit price should be unknown, got %v", deposit.PriceUSD)
	}

	// The staking purchase reports only the spot outflow, its staking leg is
	// synthesized with the opposite sign.
	spot, staking := transactions[1], transactions[2]
	if spot.Wallet != cryptowallet.Spot || !spot.Amount.Equal(amount("-10")) {
		t.Errorf("staking purchase spot leg = %+v", spot)
	}
	if staking.Wallet != cryptowallet.Staking || !staking.Amount.Equal(amount("10")) {
		t.Errorf("staking purchase staking leg = %+v", staking)
	}
	if !strings.HasSuffix(staking.Note, ", Transaction not from Binance") {
		t.Errorf("staking leg note = %q", staking.Note)
	}

	// LD prefix marks the saving wallet representation.
	saving := transactions[3]
	if saving.Asset != "USDT" || saving.Wallet != cryptowallet.Saving {
		t.Errorf("saving subscription = %+v", saving)
	}
	if !strings.Contains(saving.Note, "Original asset is LDUSDT") {
		t.Errorf("saving note = %q", saving.Note)
	}

	// BETH rewards are ETH already staked, no mirror leg for ETH 2.0 rows.
	beth := transactions[4]
	if beth.Asset != "ETH" || beth.Wallet != cryptowallet.Staking || beth.Type != cryptowallet.StakingInterest {
		t.Errorf("beth reward = %+v", beth)
	}

	transfer := transactions[5]
	if transfer.Type != cryptowallet.AccountTransfer || transfer.Wallet != cryptowallet.Funding {
		t.Errorf("asset transfer = %+v", transfer)
	}

	if renamed := transactions[6]; renamed.Asset != "SHIB" {
		t.Errorf("SHIB2 not renamed: %+v", renamed)
	}
}

func TestBinanceAggregatesRowErrors(t *testing.T) {
	csv := `User_ID,UTC_Time,Account,Operation,Coin,Change,Remark
12345,2023-05-01 10:00:00,Spot,Deposit,BTC,0.5,
12345,2023-05-01 11:00:00,Spot,Mystery Operation,BTC,1,
12345,not a time,Spot,Deposit,BTC,1,
12345,2023-05-01 12:00:00,Spot,Deposit,ETH,2,
`
	path := writeFile(t, t.TempDir(), "export.csv", csv)
	_, err := Binance{}.Load(path)
	if err == nil {
		t.Fatal("expected an aggregate error")
	}
	// Both failures are reported at once, not just the first.
	if !strings.Contains(err.Error(), "2 rows") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "Mystery Operation") || !strings.Contains(err.Error(), "not a time") {
		t.Errorf("err = %v", err)
	}
}

func TestBinanceFolderSiblingUserID(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "part-00000.csv", `UTC_Time,Account,Operation,Coin,Change,Remark
2023-05-01 10:00:00,Spot,Deposit,BTC,0.5,
`)
	writeFile(t, dir, "part-00001.csv", `User_ID,UTC_Time,Account,Operation,Coin,Change,Remark
98765,2023-05-02 10:00:00,Spot,Deposit,ETH,2,
`)
	transactions, err := BinanceFolder{}.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("got %d transactions", len(transactions))
	}
	for _, tx := range transactions {
		if tx.UserID != "98765" {
			t.Errorf("user id not resolved from sibling: %+v", tx)
		}
	}
}

func TestBinanceFolderRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "part-00000.csv", "User_ID,UTC_Time,Account,Operation,Coin,Change,Remark\n")
	writeFile(t, dir, "notes.txt", "not an export")
	if _, err := (BinanceFolder{}).Load(dir); err == nil {
		t.Fatal("expected foreign file rejection")
	}
}

func TestSwissborgLoad(t *testing.T) {
	csv := `Account statement,
Account holder,Jane Doe
Generated,2023-06-01
Time (UTC+02:00),Type,Currency,Gross amount,Gross amount (USD),Fee,Fee (USD),Net amount,Net amount (USD),Note
2023-05-01 12:00:00,Deposit,CHSB,100,50,2,1,98,49,
2023-05-01 13:00:00,Earn subscription,CHSB,-50,-25,0,0,-50,-25,
`
	path := writeFile(t, t.TempDir(), "statement.csv", csv)
	transactions, err := Swissborg{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Deposit + its fee leg, subscription + its mirror leg.
	if len(transactions) != 4 {
		t.Fatalf("got %d transactions: %+v", len(transactions), transactions)
	}

	deposit := transactions[0]
	// The export zone is UTC+02:00, noon local is 10:00 UTC.
	if !deposit.Time.Equal(time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("deposit time = %v", deposit.Time)
	}
	if deposit.UserID != "Jane Doe" {
		t.Errorf("deposit user = %q", deposit.UserID)
	}
	if deposit.PriceUSD != 0.5 || deposit.AmountUSD != 50 {
		t.Errorf("deposit valuation = %v %v", deposit.PriceUSD, deposit.AmountUSD)
	}

	fee := transactions[1]
	if fee.Type != cryptowallet.Fee || !fee.Amount.Equal(amount("-2")) || !strings.HasSuffix(fee.Note, ", Fee") {
		t.Errorf("fee leg = %+v", fee)
	}
	if fee.PriceUSD != 0.5 {
		t.Errorf("fee price = %v", fee.PriceUSD)
	}

	sub, mirror := transactions[2], transactions[3]
	if sub.Wallet != cryptowallet.Spot || !sub.Amount.Equal(amount("-50")) {
		t.Errorf("subscription spot leg = %+v", sub)
	}
	if mirror.Wallet != cryptowallet.Staking || !mirror.Amount.Equal(amount("50")) || mirror.AmountUSD != 25 {
		t.Errorf("subscription staking leg = %+v", mirror)
	}
}

func TestCoinbaseLoad(t *testing.T) {
	csv := `Transactions report,
User,jane@example.com
Timestamp,Transaction Type,Asset,Quantity Transacted,Spot Price Currency,Spot Price at Transaction,Subtotal,Fees and/or Spread,Notes
2023-05-01T10:00:00Z,Buy,BTC,0.1,USD,30000,3000,10,Bought 0.1 BTC
2023-05-01T11:00:00Z,Convert,USDC,500,USD,1,500,5,Converted 500 USDC to 0.25 ETH
2023-05-01T12:00:00Z,Send,BTC,0.05,USD,30000,1500,0,Sent 0.05 BTC to an external address
`
	path := writeFile(t, t.TempDir(), "report.csv", csv)
	transactions, err := Coinbase{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Buy + fee, convert out + in + fee, send.
	if len(transactions) != 6 {
		t.Fatalf("got %d transactions: %+v", len(transactions), transactions)
	}

	buy := transactions[0]
	if buy.Type != cryptowallet.SpotTrade || buy.PriceUSD != 30000 || buy.AmountUSD != 3000 {
		t.Errorf("buy = %+v", buy)
	}
	if fee := transactions[1]; fee.Asset != "USD" || !fee.Amount.Equal(amount("-10")) || fee.AmountUSD != -10 {
		t.Errorf("buy fee = %+v", fee)
	}

	out, in := transactions[2], transactions[3]
	if out.Asset != "USDC" || !out.Amount.Equal(amount("-500")) || out.PriceUSD != 1 || out.AmountUSD != -500 {
		t.Errorf("convert out leg = %+v", out)
	}
	if in.Asset != "ETH" || !in.Amount.Equal(amount("0.25")) || in.PriceUSD != 2000 || in.AmountUSD != 500 {
		t.Errorf("convert in leg = %+v", in)
	}

	send := transactions[5]
	if send.Type != cryptowallet.Withdraw || !send.Amount.Equal(amount("-0.05")) {
		t.Errorf("send = %+v", send)
	}
}

func TestCoinbaseDollarFormattedCells(t *testing.T) {
	csv := `Transactions report,
User,jane@example.com
Timestamp,Transaction Type,Asset,Quantity Transacted,Spot Price Currency,Spot Price at Transaction,Subtotal,Fees and/or Spread,Notes
2023-05-01T10:00:00Z,Buy,BTC,0.5,USD,"$30,000.00","$15,000.00","$1,234.56",Bought 0.5 BTC
2023-05-01T11:00:00Z,Convert,USDC,1234.56,USD,$1.00,"$1,234.56",$0,"Converted 1,234.56 USDC to 0.61728 ETH"
`
	path := writeFile(t, t.TempDir(), "report.csv", csv)
	transactions, err := Coinbase{}.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// Buy + fee, convert out + in (zero fee, no fee leg).
	if len(transactions) != 4 {
		t.Fatalf("got %d transactions: %+v", len(transactions), transactions)
	}

	if buy := transactions[0]; buy.PriceUSD != 30000 || buy.AmountUSD != 15000 {
		t.Errorf("buy = %+v", buy)
	}
	if fee := transactions[1]; !fee.Amount.Equal(amount("-1234.56")) || fee.AmountUSD != -1234.56 {
		t.Errorf("buy fee = %+v", fee)
	}
	out, in := transactions[2], transactions[3]
	if out.PriceUSD != 1 || out.AmountUSD != -1234.56 {
		t.Errorf("convert out leg = %+v", out)
	}
	if in.Asset != "ETH" || !in.Amount.Equal(amount("0.61728")) || in.PriceUSD != 2000 {
		t.Errorf("convert in leg = %+v", in)
	}
}

func TestCoinbaseUnresolvableSend(t *testing.T) {
	csv := `Transactions report,
User,jane@example.com
Timestamp,Transaction Type,Asset,Quantity Transacted,Spot Price Currency,Spot Price at Transaction,Subtotal,Fees and/or Spread,Notes
2023-05-01T10:00:00Z,Send,BTC,0.05,USD,30000,1500,0,Sent 0.05 BTC
`
	path := writeFile(t, t.TempDir(), "report.csv", csv)
	if _, err := (Coinbase{}).Load(path); err == nil {
		t.Fatal("expected unresolvable Send to fail")
	}
}

func TestKrakenLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ledgers.csv", `txid,refid,time,type,subtype,aclass,asset,amount,fee,balance
L1,R1,2023-05-01 10:00:00,deposit,,currency,ZUSD,1000,0,1000
L2,R2,2023-05-01 11:00:00,trade,,currency,XXBT,0.1,0.001,0.1
L3,R3,2023-05-01 12:00:00,transfer,spottostaking,currency,XETH,-1,0,0
L4,R4,2023-05-01 12:00:05,transfer,stakingfromspot,currency,ETH2.S,1,0,1
L5,R5,2023-05-01 13:00:00,staking,,currency,ETH2.S,0.01,0,1.01
`)
	writeFile(t, dir, "trades.csv", "txid,pair,time\n")

	transactions, err := Kraken{}.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// 5 rows plus the trade fee leg. Both transfer legs come from the
	// export itself, nothing is synthesized.
	if len(transactions) != 6 {
		t.Fatalf("got %d transactions: %+v", len(transactions), transactions)
	}
	user := filepath.Base(dir)

	if deposit := transactions[0]; deposit.Asset != "USD" || deposit.UserID != user {
		t.Errorf("deposit = %+v", deposit)
	}
	trade, tradeFee := transactions[1], transactions[2]
	if trade.Asset != "BTC" || trade.Type != cryptowallet.SpotTrade {
		t.Errorf("trade = %+v", trade)
	}
	if tradeFee.Type != cryptowallet.Fee || !tradeFee.Amount.Equal(amount("-0.001")) {
		t.Errorf("trade fee = %+v", tradeFee)
	}

	spotLeg, stakingLeg := transactions[3], transactions[4]
	if spotLeg.Type != cryptowallet.StakingPurchase || spotLeg.Wallet != cryptowallet.Spot || spotLeg.Asset != "ETH" {
		t.Errorf("transfer spot leg = %+v", spotLeg)
	}
	if stakingLeg.Type != cryptowallet.StakingPurchase || stakingLeg.Wallet != cryptowallet.Staking || stakingLeg.Asset != "ETH" {
		t.Errorf("transfer staking leg = %+v", stakingLeg)
	}
	if !strings.Contains(stakingLeg.Note, "Original asset is ETH2.S") {
		t.Errorf("staking leg note = %q", stakingLeg.Note)
	}

	if reward := transactions[5]; reward.Wallet != cryptowallet.Staking || reward.Type != cryptowallet.StakingInterest {
		t.Errorf("staking reward = %+v", reward)
	}
}

func TestKrakenRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ledgers.csv", "txid,refid,time,type,subtype,aclass,asset,amount,fee,balance\n")
	writeFile(t, dir, "extra.csv", "foreign\n")
	if _, err := (Kraken{}).Load(dir); err == nil {
		t.Fatal("expected foreign file rejection")
	}
}

func TestForName(t *testing.T) {
	for _, name := range []string{"Binance", "BinanceFolder", "Swissborg", "Coinbase", "Kraken"} {
		source, err := ForName(name)
		if err != nil {
			t.Errorf("ForName(%q): %v", name, err)
			continue
		}
		if source.Name() != name {
			t.Errorf("ForName(%q).Name() = %q", name, source.Name())
		}
	}
	if _, err := ForName("Mystery"); err == nil {
		t.Error("ForName should reject unknown sources")
	}
}

func TestZonedTimeColumn(t *testing.T) {
	tests := []struct {
		name   string
		offset int // seconds east of UTC
		ok     bool
	}{
		{"Time (UTC+02:00)", 7200, true},
		{"Time (UTC-05:30)", -19800, true},
		{"Time (UTC)", 0, false},
		{"Timestamp", 0, false},
	}
	for _, test := range tests {
		tbl := &table{columns: map[string]int{test.name: 0}}
		name, zone, err := tbl.timeColumn()
		if !test.ok {
			if err == nil {
				t.Errorf("timeColumn(%q) should fail", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("timeColumn(%q): %v", test.name, err)
			continue
		}
		if name != test.name {
			t.Errorf("timeColumn(%q) name = %q", test.name, name)
		}
		_, offset := time.Date(2023, 5, 1, 12, 0, 0, 0, zone).Zone()
		if offset != test.offset {
			t.Errorf("timeColumn(%q) offset = %d want %d", test.name, offset, test.offset)
		}
	}
}
