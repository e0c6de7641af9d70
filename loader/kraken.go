package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/shopspring/decimal"
)

// Kraken loads a Kraken export folder. The folder must contain ledgers.csv;
// trades.csv is a recognized sibling and is ignored, its rows are a
// different view of the same events. Anything else in the folder is fatal.
// Kraken has no user id in the export, the folder name identifies the
// account.
type Kraken struct{}

func (Kraken) Name() string { return "Kraken" }

var krakenTypes = map[string]cryptowallet.TransactionType{
	"deposit":    cryptowallet.Deposit,
	"withdrawal": cryptowallet.Withdraw,
	"trade":      cryptowallet.SpotTrade,
	"spend":      cryptowallet.Spend,
	"receive":    cryptowallet.Income,
	"staking":    cryptowallet.StakingInterest,
	"dividend":   cryptowallet.Distribution,

	// Both legs of a staking transfer are present in the ledger, the
	// subtype column tells which leg and which direction a row is.
	"transfer": cryptowallet.TBD,
}

// krakenAssetNames maps Kraken's classic asset codes to canonical tickers.
var krakenAssetNames = map[string]string{
	"XXBT": "BTC",
	"XETH": "ETH",
	"XXRP": "XRP",
	"XXLM": "XLM",
	"XLTC": "LTC",
	"XXDG": "DOGE",
	"ZUSD": "USD",
	"ZEUR": "EUR",
	"ETH2": "ETH",
}

var krakenSiblings = map[string]bool{
	"ledgers.csv": true,
	"trades.csv":  true,
}

func (k Kraken) Load(path string) ([]cryptowallet.Transaction, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("kraken export must be a directory, got %q", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	found := false
	for _, entry := range entries {
		if entry.IsDir() || !krakenSiblings[entry.Name()] {
			return nil, fmt.Errorf("unrecognized file %q in kraken export folder", entry.Name())
		}
		if entry.Name() == "ledgers.csv" {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no ledgers.csv in kraken export folder %q", path)
	}

	t, err := readTableFile(filepath.Join(path, "ledgers.csv"), 0)
	if err != nil {
		return nil, fmt.Errorf("cannot read kraken ledger: %w", err)
	}
	if err := t.require("txid", "time", "type", "subtype", "asset", "amount", "fee"); err != nil {
		return nil, fmt.Errorf("invalid kraken ledger: %w", err)
	}

	userID := filepath.Base(filepath.Clean(path))
	errs := &rowErrors{source: k.Name()}
	var transactions []cryptowallet.Transaction
	for i, row := range t.rows {
		at, err := parseKrakenTime(t.cell(row, "time"))
		if err != nil {
			errs.addf(t.line(i), "invalid time %q", t.cell(row, "time"))
			continue
		}
		amount, err := decimal.NewFromString(t.cell(row, "amount"))
		if err != nil {
			errs.addf(t.line(i), "invalid amount %q", t.cell(row, "amount"))
			continue
		}
		rowType := t.cell(row, "type")
		typ, ok := krakenTypes[rowType]
		if !ok {
			errs.addf(t.line(i), "unknown type %q", rowType)
			continue
		}

		note := rowType
		if subtype := t.cell(row, "subtype"); subtype != "" {
			note += ", " + subtype
		}
		if txid := t.cell(row, "txid"); txid != "" {
			note += ", " + txid
		}

		wallet := cryptowallet.Spot
		if typ == cryptowallet.TBD {
			if typ, wallet = resolveKrakenTransfer(t.cell(row, "subtype")); typ == cryptowallet.TBD {
				errs.addf(t.line(i), "cannot resolve transfer subtype %q", t.cell(row, "subtype"))
				continue
			}
		}

		asset, stakingAsset := krakenAsset(t.cell(row, "asset"))
		if stakingAsset != "" {
			wallet = cryptowallet.Staking
			note += ", Original asset is " + stakingAsset
		}
		if typ == cryptowallet.StakingInterest {
			// Rewards are paid on the staked ticker, they stay staked.
			wallet = cryptowallet.Staking
		}

		transactions = append(transactions, cryptowallet.NewTransaction(at, asset, amount, typ,
			"Kraken", userID, wallet, note))

		fee, err := decimal.NewFromString(t.cell(row, "fee"))
		if err != nil {
			errs.addf(t.line(i), "invalid fee %q", t.cell(row, "fee"))
			continue
		}
		if !fee.IsZero() {
			transactions = append(transactions, cryptowallet.NewTransaction(at, asset, fee.Neg(),
				cryptowallet.Fee, "Kraken", userID, wallet, note+", Fee"))
		}
	}
	if err := errs.aggregate(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func parseKrakenTime(s string) (time.Time, error) {
	at, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		at, err = time.ParseInLocation("2006-01-02 15:04:05.0000", s, time.UTC)
	}
	return at, err
}

// resolveKrakenTransfer maps a transfer subtype to the transaction type and
// the wallet the row's leg belongs to.
func resolveKrakenTransfer(subtype string) (cryptowallet.TransactionType, cryptowallet.WalletType) {
	switch subtype {
	case "spottostaking":
		return cryptowallet.StakingPurchase, cryptowallet.Spot
	case "stakingfromspot":
		return cryptowallet.StakingPurchase, cryptowallet.Staking
	case "stakingtospot":
		return cryptowallet.StakingRedemption, cryptowallet.Staking
	case "spotfromstaking":
		return cryptowallet.StakingRedemption, cryptowallet.Spot
	default:
		return cryptowallet.TBD, cryptowallet.Spot
	}
}

// krakenAsset canonicalizes a Kraken asset code. A ".S" suffix marks the
// staked representation of the base asset: the second return names the
// original staked ticker, empty otherwise.
func krakenAsset(code string) (asset, stakingAsset string) {
	base, staked := strings.CutSuffix(code, ".S")
	if to, ok := krakenAssetNames[base]; ok {
		base = to
	}
	if staked {
		return base, code
	}
	return base, ""
}
