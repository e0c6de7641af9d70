package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/shopspring/decimal"
)

// Swissborg loads the CSV rendition of the Swissborg account statement. The
// statement starts with metadata lines (account holder among them), the
// table header follows, and the time column name embeds the timezone the
// export was generated in.
type Swissborg struct{}

func (Swissborg) Name() string { return "Swissborg" }

const swissborgTimeFormat = "2006-01-02 15:04:05"

var swissborgTypes = map[string]cryptowallet.TransactionType{
	"Deposit":           cryptowallet.Deposit,
	"Withdrawal":        cryptowallet.Withdraw,
	"Buy":               cryptowallet.SpotTrade,
	"Sell":              cryptowallet.SpotTrade,
	"Payment":           cryptowallet.Spend,
	"Earn reward":       cryptowallet.StakingInterest,
	"Earn subscription": cryptowallet.StakingPurchase,
	"Earn redemption":   cryptowallet.StakingRedemption,
}

func (s Swissborg) Load(path string) ([]cryptowallet.Transaction, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("swissborg statement must be a .csv file, got %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, userID, err := readSwissborgStatement(f)
	if err != nil {
		return nil, fmt.Errorf("invalid swissborg statement %s: %w", path, err)
	}
	timeCol, zone, err := t.timeColumn()
	if err != nil {
		return nil, fmt.Errorf("invalid swissborg statement %s: %w", path, err)
	}
	if err := t.require("Type", "Currency", "Gross amount", "Gross amount (USD)", "Fee", "Fee (USD)", "Net amount"); err != nil {
		return nil, fmt.Errorf("invalid swissborg statement %s: %w", path, err)
	}

	errs := &rowErrors{source: s.Name()}
	var transactions []cryptowallet.Transaction
	for i, row := range t.rows {
		at, err := time.ParseInLocation(swissborgTimeFormat, t.cell(row, timeCol), zone)
		if err != nil {
			errs.addf(t.line(i), "invalid time %q", t.cell(row, timeCol))
			continue
		}
		typ, ok := swissborgTypes[t.cell(row, "Type")]
		if !ok {
			errs.addf(t.line(i), "unknown type %q", t.cell(row, "Type"))
			continue
		}
		amount, err := decimal.NewFromString(t.cell(row, "Gross amount"))
		if err != nil {
			errs.addf(t.line(i), "invalid gross amount %q", t.cell(row, "Gross amount"))
			continue
		}

		note := t.cell(row, "Type")
		if extra := t.cell(row, "Note"); extra != "" {
			note += ", " + extra
		}
		tx := cryptowallet.NewTransaction(at, t.cell(row, "Currency"), amount, typ,
			"Swissborg", userID, cryptowallet.Spot, note)

		// The statement carries its own USD valuation, no backfill needed.
		if price, ok := swissborgUnitPrice(t.cell(row, "Gross amount (USD)"), amount); ok {
			tx = tx.WithValuation(price)
		}
		transactions = append(transactions, tx)

		// The Earn program wallet is custodied, the statement only reports
		// the spot side of a subscription or redemption.
		if typ == cryptowallet.StakingPurchase || typ == cryptowallet.StakingRedemption {
			mirror := tx
			mirror.Wallet = cryptowallet.Staking
			mirror.Amount = tx.Amount.Neg()
			mirror.AmountUSD = -tx.AmountUSD
			mirror = mirror.Annotate(", Transaction not from Swissborg")
			transactions = append(transactions, mirror)
		}

		// The fee is bundled into the row, split it out as its own leg.
		fee, err := decimal.NewFromString(t.cell(row, "Fee"))
		if err != nil {
			errs.addf(t.line(i), "invalid fee %q", t.cell(row, "Fee"))
			continue
		}
		if !fee.IsZero() {
			leg := cryptowallet.NewTransaction(at, tx.Asset, fee.Neg(), cryptowallet.Fee,
				"Swissborg", userID, cryptowallet.Spot, note+", Fee")
			if price, ok := swissborgUnitPrice(t.cell(row, "Fee (USD)"), fee); ok {
				leg = leg.WithValuation(price)
			}
			transactions = append(transactions, leg)
		}
	}
	if err := errs.aggregate(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// swissborgUnitPrice derives the USD unit price from a USD column cell and
// the matching native amount.
func swissborgUnitPrice(usdCell string, amount decimal.Decimal) (float64, bool) {
	if usdCell == "" || amount.IsZero() {
		return 0, false
	}
	usd, err := strconv.ParseFloat(usdCell, 64)
	if err != nil {
		return 0, false
	}
	price := math.Abs(usd / amount.InexactFloat64())
	return price, true
}

// readSwissborgStatement scans the metadata lines for the account holder,
// then reads the table starting at the header row.
func readSwissborgStatement(r io.Reader) (*table, string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	userID := ""
	var header []string
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil, "", fmt.Errorf("no header row found")
		}
		if err != nil {
			return nil, "", err
		}
		line++
		if len(record) >= 2 && record[0] == "Account holder" {
			userID = record[1]
			continue
		}
		if hasZonedTimeColumn(record) {
			header = record
			break
		}
	}
	if userID == "" {
		return nil, "", fmt.Errorf("no account holder found in metadata")
	}

	t := &table{columns: make(map[string]int, len(header)), offset: line}
	for i, name := range header {
		t.columns[name] = i
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, "", err
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.rows = append(t.rows, record)
	}
	return t, userID, nil
}

func hasZonedTimeColumn(record []string) bool {
	for _, cell := range record {
		if zonedTimeColumn.MatchString(cell) {
			return true
		}
	}
	return false
}
