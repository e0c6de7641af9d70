package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/etnz/cryptowallet"
	"github.com/shopspring/decimal"
)

// Coinbase loads the Coinbase transactions report CSV. The report opens with
// metadata lines naming the user, then the table.
type Coinbase struct{}

func (Coinbase) Name() string { return "Coinbase" }

var coinbaseTypes = map[string]cryptowallet.TransactionType{
	"Buy":                 cryptowallet.SpotTrade,
	"Sell":                cryptowallet.SpotTrade,
	"Advanced Trade Buy":  cryptowallet.SpotTrade,
	"Advanced Trade Sell": cryptowallet.SpotTrade,
	"Convert":             cryptowallet.SpotTrade,
	"Receive":             cryptowallet.Deposit,
	"Learning Reward":     cryptowallet.Income,
	"Staking Income":      cryptowallet.StakingInterest,
	"Exchange Deposit":    cryptowallet.AccountTransfer,
	"Exchange Withdrawal": cryptowallet.AccountTransfer,

	// A Send is ambiguous until the Notes column tells whether it paid a
	// merchant or left for an external wallet.
	"Send": cryptowallet.TBD,
}

// Rows whose quantity is reported positive but whose amount left the wallet.
var coinbaseOutflows = map[string]bool{
	"Sell":                true,
	"Advanced Trade Sell": true,
	"Convert":             true,
	"Send":                true,
	"Exchange Withdrawal": true,
}

// convertNotes parses the Notes of a Convert row, like
// "Converted 500.00 USDC to 0.25 ETH".
var convertNotes = regexp.MustCompile(`^Converted ([\d.,]+) (\S+) to ([\d.,]+) (\S+)$`)

func (c Coinbase) Load(path string) ([]cryptowallet.Transaction, error) {
	if !strings.EqualFold(filepath.Ext(path), ".csv") {
		return nil, fmt.Errorf("coinbase report must be a .csv file, got %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, userID, err := readCoinbaseReport(f)
	if err != nil {
		return nil, fmt.Errorf("invalid coinbase report %s: %w", path, err)
	}
	if err := t.require("Timestamp", "Transaction Type", "Asset", "Quantity Transacted",
		"Spot Price Currency", "Spot Price at Transaction", "Subtotal", "Fees and/or Spread", "Notes"); err != nil {
		return nil, fmt.Errorf("invalid coinbase report %s: %w", path, err)
	}

	errs := &rowErrors{source: c.Name()}
	var transactions []cryptowallet.Transaction
	for i, row := range t.rows {
		at, err := time.Parse(time.RFC3339, t.cell(row, "Timestamp"))
		if err != nil {
			errs.addf(t.line(i), "invalid timestamp %q", t.cell(row, "Timestamp"))
			continue
		}
		rowType := t.cell(row, "Transaction Type")
		typ, ok := coinbaseTypes[rowType]
		if !ok {
			errs.addf(t.line(i), "unknown transaction type %q", rowType)
			continue
		}
		amount, err := decimal.NewFromString(t.cell(row, "Quantity Transacted"))
		if err != nil {
			errs.addf(t.line(i), "invalid quantity %q", t.cell(row, "Quantity Transacted"))
			continue
		}
		if coinbaseOutflows[rowType] {
			amount = amount.Neg()
		}

		notes := t.cell(row, "Notes")
		note := rowType
		if notes != "" {
			note += ", " + notes
		}

		if typ == cryptowallet.TBD {
			if typ = resolveCoinbaseSend(notes); typ == cryptowallet.TBD {
				errs.addf(t.line(i), "cannot resolve Send row from notes %q", notes)
				continue
			}
		}

		tx := cryptowallet.NewTransaction(at, t.cell(row, "Asset"), amount, typ,
			"Coinbase", userID, cryptowallet.Spot, note)

		if rowType == "Convert" {
			legs, err := coinbaseConvertLegs(tx, notes, t.cell(row, "Subtotal"))
			if err != nil {
				errs.addf(t.line(i), "%v", err)
				continue
			}
			transactions = append(transactions, legs...)
		} else {
			// The spot price column values the row directly.
			if price, ok := coinbasePrice(t.cell(row, "Spot Price Currency"), t.cell(row, "Spot Price at Transaction")); ok {
				tx = tx.WithValuation(price)
			}
			transactions = append(transactions, tx)
		}

		fee, err := coinbaseFee(t.cell(row, "Fees and/or Spread"))
		if err != nil {
			errs.addf(t.line(i), "invalid fee %q", t.cell(row, "Fees and/or Spread"))
			continue
		}
		if !fee.IsZero() {
			leg := cryptowallet.NewTransaction(at, "USD", fee.Neg(), cryptowallet.Fee,
				"Coinbase", userID, cryptowallet.Spot, note+", Fee")
			leg = leg.WithValuation(1)
			transactions = append(transactions, leg)
		}
	}
	if err := errs.aggregate(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// resolveCoinbaseSend decides what a Send row really was from its notes.
func resolveCoinbaseSend(notes string) cryptowallet.TransactionType {
	switch {
	case strings.Contains(notes, "to an external address"),
		strings.Contains(notes, "to an external wallet"):
		return cryptowallet.Withdraw
	case strings.Contains(notes, "using Coinbase Card"),
		strings.Contains(notes, "payment"):
		return cryptowallet.Spend
	default:
		return cryptowallet.TBD
	}
}

// coinbaseConvertLegs decomposes a Convert row into its two trade legs. The
// report only carries the outgoing asset in the Asset column, the incoming
// one is recovered from the notes. Both legs are valued from the USD
// subtotal, so the pair stays consistent.
func coinbaseConvertLegs(out cryptowallet.Transaction, notes, subtotal string) ([]cryptowallet.Transaction, error) {
	m := convertNotes.FindStringSubmatch(notes)
	if m == nil {
		return nil, fmt.Errorf("cannot parse convert notes %q", notes)
	}
	inAmount, err := decimal.NewFromString(strings.ReplaceAll(m[3], ",", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid convert amount %q", m[3])
	}
	in := out
	in.Asset = m[4]
	in.Amount = inAmount

	usd, err := strconv.ParseFloat(usdCell(subtotal), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid convert subtotal %q", subtotal)
	}
	out = out.WithValuation(usd / out.Amount.Abs().InexactFloat64())
	in = in.WithValuation(usd / in.Amount.InexactFloat64())
	return []cryptowallet.Transaction{out, in}, nil
}

// usdCell normalizes a USD report cell for parsing: the report renders
// amounts like "$1,234.56".
func usdCell(cell string) string {
	return strings.ReplaceAll(strings.TrimPrefix(cell, "$"), ",", "")
}

func coinbasePrice(currency, cell string) (float64, bool) {
	if currency != "USD" || cell == "" {
		return 0, false
	}
	price, err := strconv.ParseFloat(usdCell(cell), 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func coinbaseFee(cell string) (decimal.Decimal, error) {
	cell = usdCell(cell)
	if cell == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cell)
}

// readCoinbaseReport scans the metadata lines for the user, then reads the
// table starting at the header row.
func readCoinbaseReport(r io.Reader) (*table, string, error) {
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
		if len(record) >= 2 && record[0] == "User" {
			userID = record[1]
			continue
		}
		if len(record) > 0 && record[0] == "Timestamp" {
			header = record
			break
		}
	}
	if userID == "" {
		return nil, "", fmt.Errorf("no user found in metadata")
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
