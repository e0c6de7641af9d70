package cryptowallet

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// The ledger is persisted as a flat CSV file, one row per transaction,
// sorted by datetime, and re-written wholesale on every save. The column
// names are part of the format and must not change.

var walletColumns = []string{
	"datetime", "asset", "amount", "type", "exchange",
	"userId", "wallet", "note", "price_USD", "amount_USD",
}

const walletTimeFormat = time.RFC3339

// EncodeWallet writes the wallet ledger to w in the CSV persistence format.
// Unknown valuations are written as empty cells.
func EncodeWallet(w io.Writer, wallet *Wallet) error {
	wallet.stableSort()
	cw := csv.NewWriter(w)
	if err := cw.Write(walletColumns); err != nil {
		return fmt.Errorf("cannot write ledger header: %w", err)
	}
	for _, tx := range wallet.transactions {
		record := []string{
			tx.Time.UTC().Format(walletTimeFormat),
			tx.Asset,
			tx.Amount.String(),
			tx.Type.String(),
			tx.Exchange,
			tx.UserID,
			tx.Wallet.String(),
			tx.Note,
			formatFloat(tx.PriceUSD),
			formatFloat(tx.AmountUSD),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("cannot write ledger row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeWallet reads a wallet ledger from r in the CSV persistence format.
func DecodeWallet(r io.Reader) (*Wallet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(walletColumns)

	header, err := cr.Read()
	if err == io.EOF {
		return NewWallet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read ledger header: %w", err)
	}
	for i, want := range walletColumns {
		if header[i] != want {
			return nil, fmt.Errorf("unexpected ledger column %d: got %q want %q", i, header[i], want)
		}
	}

	wallet := NewWallet()
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cannot read ledger line %d: %w", line, err)
		}
		tx, err := decodeRecord(record)
		if err != nil {
			return nil, fmt.Errorf("invalid ledger line %d: %w", line, err)
		}
		wallet.transactions = append(wallet.transactions, tx)
	}
	wallet.stableSort()
	return wallet, nil
}

func decodeRecord(record []string) (Transaction, error) {
	var tx Transaction
	at, err := time.Parse(walletTimeFormat, record[0])
	if err != nil {
		return tx, fmt.Errorf("invalid datetime %q: %w", record[0], err)
	}
	amount, err := decimal.NewFromString(record[2])
	if err != nil {
		return tx, fmt.Errorf("invalid amount %q: %w", record[2], err)
	}
	typ, err := ParseTransactionType(record[3])
	if err != nil {
		return tx, err
	}
	wallet, err := ParseWalletType(record[6])
	if err != nil {
		return tx, err
	}
	price, err := parseFloat(record[8])
	if err != nil {
		return tx, fmt.Errorf("invalid price_USD %q: %w", record[8], err)
	}
	amountUSD, err := parseFloat(record[9])
	if err != nil {
		return tx, fmt.Errorf("invalid amount_USD %q: %w", record[9], err)
	}
	return Transaction{
		Time:      at.UTC(),
		Asset:     record[1],
		Amount:    amount,
		Type:      typ,
		Exchange:  record[4],
		UserID:    record[5],
		Wallet:    wallet,
		Note:      record[7],
		PriceUSD:  price,
		AmountUSD: amountUSD,
	}, nil
}

// formatFloat renders a float cell, with NaN (unknown) as the empty string.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// parseFloat parses a float cell, with the empty string meaning unknown.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
