// Package renderer turns ledger views into markdown reports.
package renderer

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/etnz/cryptowallet"
	"github.com/etnz/cryptowallet/date"
	md "github.com/nao1215/markdown"
	"github.com/shopspring/decimal"
)

// Summary is the data behind the portfolio summary report.
type Summary struct {
	Date      date.Date
	Portfolio cryptowallet.Summary
	Fees      cryptowallet.Totals
	Interest  cryptowallet.Totals
}

// SummaryMarkdown renders the whole-portfolio summary.
func SummaryMarkdown(s *Summary) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("Portfolio Summary on %s", s.Date))
	doc.PlainText(fmt.Sprintf("Total Value: %s", cryptowallet.USD(s.Portfolio.TotalUSD)))

	doc.Table(md.TableSet{
		Header: []string{"", "Value"},
		Rows: [][]string{
			{"Crypto", cryptowallet.USD(s.Portfolio.CryptoValueUSD)},
			{"Fiat", cryptowallet.USD(s.Portfolio.FiatValueUSD)},
		},
	})

	doc.H2("Earnings and costs")
	doc.Table(md.TableSet{
		Header: []string{"", "At transaction time", "At current prices"},
		Rows: [][]string{
			{"Interest", cryptowallet.USD(s.Interest.HistoricalUSD), cryptowallet.USD(s.Interest.CurrentUSD)},
			{"Fees", cryptowallet.USD(s.Fees.HistoricalUSD), cryptowallet.USD(s.Fees.CurrentUSD)},
		},
	})
	return doc.String()
}

// BalanceRow is one asset line of the balance report.
type BalanceRow struct {
	Asset           string
	Amount          decimal.Decimal
	BuyPriceUSD     float64
	CurrentPriceUSD float64
	ValueUSD        float64
	RevenueUSD      float64
}

// Balance is the data behind the per-asset balance report.
type Balance struct {
	Date  date.Date
	Scope string // empty for the whole portfolio
	Rows  []BalanceRow
}

// BalanceMarkdown renders the per-asset balance, most valuable first.
func BalanceMarkdown(b *Balance) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	title := fmt.Sprintf("Balance on %s", b.Date)
	if b.Scope != "" {
		title = fmt.Sprintf("Balance (%s) on %s", b.Scope, b.Date)
	}
	doc.H1(title)

	rows := make([]BalanceRow, len(b.Rows))
	copy(rows, b.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		vi, vj := rows[i].ValueUSD, rows[j].ValueUSD
		if math.IsNaN(vi) {
			vi = math.Inf(-1)
		}
		if math.IsNaN(vj) {
			vj = math.Inf(-1)
		}
		return vi > vj
	})

	set := md.TableSet{Header: []string{"Asset", "Amount", "Buy Price", "Price", "Value", "Potential Revenue"}}
	for _, row := range rows {
		set.Rows = append(set.Rows, []string{
			row.Asset,
			row.Amount.String(),
			cryptowallet.USD(row.BuyPriceUSD),
			cryptowallet.USD(row.CurrentPriceUSD),
			cryptowallet.USD(row.ValueUSD),
			cryptowallet.USD(row.RevenueUSD),
		})
	}
	doc.Table(set)
	return doc.String()
}

// HistoryMarkdown renders the daily running balance of one asset.
func HistoryMarkdown(asset string, balance *date.History[float64]) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(fmt.Sprintf("%s holdings", asset))
	set := md.TableSet{Header: []string{"Day", "Balance"}}
	for day, value := range balance.Values() {
		set.Rows = append(set.Rows, []string{day.String(), fmt.Sprintf("%g", value)})
	}
	doc.Table(set)
	return doc.String()
}

// TransactionsMarkdown renders a list of transactions, for import previews
// and audit listings.
func TransactionsMarkdown(title string, transactions []cryptowallet.Transaction) string {
	var buf bytes.Buffer
	doc := md.NewMarkdown(&buf)

	doc.H1(title)
	set := md.TableSet{Header: []string{"Time", "Asset", "Amount", "Type", "Wallet", "Value", "Note"}}
	for _, tx := range transactions {
		set.Rows = append(set.Rows, []string{
			tx.Time.Format("2006-01-02 15:04"),
			tx.Asset,
			tx.Amount.String(),
			tx.Type.String(),
			tx.Wallet.String(),
			cryptowallet.USD(tx.AmountUSD),
			tx.Note,
		})
	}
	doc.Table(set)
	return doc.String()
}
