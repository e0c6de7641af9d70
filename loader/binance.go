package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/shopspring/decimal"
)

// Binance loads the Binance "Transaction Records" CSV export.
type Binance struct{}

func (Binance) Name() string { return "Binance" }

const binanceTimeFormat = "2006-01-02 15:04:05"

var binanceOperations = map[string]cryptowallet.TransactionType{
	"Deposit":                           cryptowallet.Deposit,
	"Withdraw":                          cryptowallet.Withdraw,
	"Buy":                               cryptowallet.SpotTrade,
	"Sell":                              cryptowallet.SpotTrade,
	"Transaction Related":               cryptowallet.SpotTrade,
	"Small assets exchange BNB":         cryptowallet.SpotTrade,
	"Fee":                               cryptowallet.Fee,
	"Simple Earn Flexible Interest":     cryptowallet.SavingInterest,
	"Simple Earn Flexible Subscription": cryptowallet.SavingPurchase,
	"Simple Earn Flexible Redemption":   cryptowallet.SavingRedemption,
	"Simple Earn Locked Rewards":        cryptowallet.SavingInterest,
	"Rewards Distribution":              cryptowallet.SavingInterest,
	"Staking Purchase":                  cryptowallet.StakingPurchase,
	"Staking Rewards":                   cryptowallet.StakingInterest,
	"Staking Redemption":                cryptowallet.StakingRedemption,
	"ETH 2.0 Staking":                   cryptowallet.StakingPurchase,
	"ETH 2.0 Staking Rewards":           cryptowallet.StakingInterest,
	"Distribution":                      cryptowallet.Distribution,
	"Cash Voucher distribution":         cryptowallet.Distribution,
	"Commission Fee Shared With You":    cryptowallet.ReferralInterest,
	"Referral Kickback":                 cryptowallet.ReferralInterest,
}

// binanceAccounts maps the Account column of an Asset Transfer row to the
// wallet it moved funds in or out of.
var binanceAccounts = map[string]cryptowallet.WalletType{
	"Spot":    cryptowallet.Spot,
	"Funding": cryptowallet.Funding,
	"Earn":    cryptowallet.Saving,
	"Staking": cryptowallet.Staking,
}

// binanceAssetNames normalizes Binance ticker spellings, it is distinct from
// the price provider rename table.
var binanceAssetNames = map[string]string{
	"IOTA":  "MIOTA",
	"SHIB2": "SHIB",
}

func (b Binance) Load(path string) ([]cryptowallet.Transaction, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("binance export must be a .csv file, got %q", path)
	}
	t, err := readTableFile(path, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot read binance export %s: %w", path, err)
	}
	if err := t.require("User_ID", "UTC_Time", "Account", "Operation", "Coin", "Change"); err != nil {
		return nil, fmt.Errorf("invalid binance export %s: %w", path, err)
	}
	errs := &rowErrors{source: b.Name()}
	transactions := loadBinanceRows(t, errs)
	if err := errs.aggregate(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// loadBinanceRows maps the rows of one Binance table. The User_ID column may
// be absent on part files, the folder loader resolves it afterwards.
func loadBinanceRows(t *table, errs *rowErrors) []cryptowallet.Transaction {
	var transactions []cryptowallet.Transaction
	for i, row := range t.rows {
		at, err := time.ParseInLocation(binanceTimeFormat, t.cell(row, "UTC_Time"), time.UTC)
		if err != nil {
			errs.addf(t.line(i), "invalid UTC_Time %q", t.cell(row, "UTC_Time"))
			continue
		}
		amount, err := decimal.NewFromString(t.cell(row, "Change"))
		if err != nil {
			errs.addf(t.line(i), "invalid Change %q", t.cell(row, "Change"))
			continue
		}

		operation := t.cell(row, "Operation")
		wallet := cryptowallet.Spot
		var typ cryptowallet.TransactionType
		if operation == "Asset Transfer" {
			// Moves between the user's own accounts, the destination wallet
			// is named by the Account column.
			typ = cryptowallet.AccountTransfer
			var ok bool
			if wallet, ok = binanceAccounts[t.cell(row, "Account")]; !ok {
				errs.addf(t.line(i), "unknown account %q", t.cell(row, "Account"))
				continue
			}
		} else {
			var ok bool
			if typ, ok = binanceOperations[operation]; !ok {
				errs.addf(t.line(i), "unknown operation %q", operation)
				continue
			}
		}

		note := operation
		if remark := t.cell(row, "Remark"); remark != "" {
			note += ", " + remark
		}
		tx := cryptowallet.NewTransaction(at, t.cell(row, "Coin"), amount, typ,
			"Binance", t.cell(row, "User_ID"), wallet, note)

		// Assets held in the saving wallet are reported under an LD-prefixed
		// ticker. Strip the prefix and place the row in the saving wallet.
		if (typ == cryptowallet.SavingPurchase || typ == cryptowallet.SavingRedemption) &&
			strings.HasPrefix(tx.Asset, "LD") {
			tx.Wallet = cryptowallet.Saving
			tx = tx.Annotate(", Original asset is " + tx.Asset)
			tx.Asset = tx.Asset[2:]
		}

		// BETH is the ETH 2.0 staking representation of ETH. Rewards of that
		// program are paid in BETH, so they stay staked.
		if tx.Asset == "BETH" {
			tx.Wallet = cryptowallet.Staking
			tx = tx.Annotate(", Original asset is BETH")
			tx.Asset = "ETH"
		}

		if to, ok := binanceAssetNames[tx.Asset]; ok {
			tx.Asset = to
		}
		transactions = append(transactions, tx)

		// The staking wallet is custodied by Binance: the export reports the
		// spot side of a staking purchase or redemption but not the staking
		// side. Synthesize the missing leg. ETH 2.0 Staking is the carve-out,
		// its staking side already arrived as a BETH row.
		if (typ == cryptowallet.StakingPurchase || typ == cryptowallet.StakingRedemption) &&
			operation != "ETH 2.0 Staking" {
			mirror := tx
			mirror.Wallet = cryptowallet.Staking
			mirror.Amount = tx.Amount.Neg()
			mirror = mirror.Annotate(", Transaction not from Binance")
			transactions = append(transactions, mirror)
		}
	}
	return transactions
}

// BinanceFolder loads a directory of Binance part CSVs, the shape produced
// when a large export is split. Only part files may be present. Some parts
// carry no User_ID value, it is then adopted from a sibling part.
type BinanceFolder struct{}

func (BinanceFolder) Name() string { return "BinanceFolder" }

var binancePartFile = regexp.MustCompile(`^(?:part|transactions?)[-_].*\.csv$`)

func (b BinanceFolder) Load(path string) ([]cryptowallet.Transaction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("binance folder export must be a directory, got %q", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, entry := range entries {
		if entry.IsDir() {
			return nil, fmt.Errorf("unexpected directory %q in binance export folder", entry.Name())
		}
		if !binancePartFile.MatchString(entry.Name()) {
			return nil, fmt.Errorf("unrecognized file %q in binance export folder", entry.Name())
		}
		parts = append(parts, filepath.Join(path, entry.Name()))
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no part file in binance export folder %q", path)
	}
	sort.Strings(parts)

	errs := &rowErrors{source: b.Name()}
	var transactions []cryptowallet.Transaction
	for _, part := range parts {
		t, err := readTableFile(part, 0)
		if err != nil {
			return nil, fmt.Errorf("cannot read binance part %s: %w", part, err)
		}
		if err := t.require("UTC_Time", "Account", "Operation", "Coin", "Change"); err != nil {
			return nil, fmt.Errorf("invalid binance part %s: %w", part, err)
		}
		transactions = append(transactions, loadBinanceRows(t, errs)...)
	}
	if err := errs.aggregate(); err != nil {
		return nil, err
	}

	// Adopt the first user id found across the parts for rows that lack one.
	userID := ""
	for _, tx := range transactions {
		if tx.UserID != "" {
			userID = tx.UserID
			break
		}
	}
	if userID == "" {
		return nil, fmt.Errorf("no User_ID found in any part of binance export folder %q", path)
	}
	for i := range transactions {
		if transactions[i].UserID == "" {
			transactions[i].UserID = userID
		}
	}
	return transactions, nil
}
