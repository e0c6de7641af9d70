package cryptowallet

import (
	"fmt"
	"iter"
	"log"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds the full transaction ledger.
//
// In a Wallet transactions are always in chronological order. The ledger is
// append-only: rows are never edited in place, and removal happens only
// wholesale per exchange through Purge.
type Wallet struct {
	transactions []Transaction
}

// NewWallet creates an empty wallet.
func NewWallet() *Wallet {
	return &Wallet{transactions: make([]Transaction, 0)}
}

// Len returns the number of transactions in the ledger.
func (w *Wallet) Len() int { return len(w.transactions) }

// Transactions returns an iterator over all transactions in chronological order.
func (w *Wallet) Transactions() iter.Seq2[int, Transaction] {
	return func(yield func(int, Transaction) bool) {
		for i, tx := range w.transactions {
			if !yield(i, tx) {
				return
			}
		}
	}
}

// stableSort sorts the ledger by transaction time. The sort is stable, meaning
// transactions at the same instant maintain their original relative order.
func (w *Wallet) stableSort() {
	sort.SliceStable(w.transactions, func(i, j int) bool {
		return w.transactions[i].Time.Before(w.transactions[j].Time)
	})
}

// append adds transactions and restores the chronological order.
func (w *Wallet) append(txs ...Transaction) {
	w.transactions = append(w.transactions, txs...)
	w.stableSort()
}

// OldestTransactionTime returns the time of the earliest transaction,
// or the zero time for an empty ledger.
func (w *Wallet) OldestTransactionTime() time.Time {
	if len(w.transactions) == 0 {
		return time.Time{}
	}
	return w.transactions[0].Time
}

// NewestTransactionTime returns the time of the latest transaction,
// or the zero time for an empty ledger.
func (w *Wallet) NewestTransactionTime() time.Time {
	if len(w.transactions) == 0 {
		return time.Time{}
	}
	return w.transactions[len(w.transactions)-1].Time
}

// span returns the [earliest, latest] transaction time for one
// (exchange, userID) account, and whether the account has any row.
func (w *Wallet) span(exchange, userID string) (from, to time.Time, ok bool) {
	for _, tx := range w.transactions {
		if tx.Exchange != exchange || tx.UserID != userID {
			continue
		}
		if !ok || tx.Time.Before(from) {
			from = tx.Time
		}
		if !ok || tx.Time.After(to) {
			to = tx.Time
		}
		ok = true
	}
	return from, to, ok
}

// mergeKey is the grouping key for MergeWithinWindow: rows sharing it are
// candidates to be collapsed into one real-world event.
type mergeKey struct {
	Asset    string
	Type     TransactionType
	Exchange string
	UserID   string
	Wallet   WalletType
	Note     string
}

// MergeWithinWindow collapses rows that are really one event split by the
// source across several lines. Rows sharing (asset, type, exchange, userId,
// wallet, note) and closer than window to their predecessor are summed:
// Amount and AmountUSD add up (an unknown member makes the merged AmountUSD
// unknown), PriceUSD becomes the amount-weighted average, and the merged row
// keeps the earliest timestamp.
func MergeWithinWindow(batch []Transaction, window time.Duration) []Transaction {
	groups := make(map[mergeKey][]Transaction)
	order := make([]mergeKey, 0)
	for _, tx := range batch {
		k := mergeKey{tx.Asset, tx.Type, tx.Exchange, tx.UserID, tx.Wallet, tx.Note}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], tx)
	}

	merged := make([]Transaction, 0, len(batch))
	for _, k := range order {
		group := groups[k]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Time.Before(group[j].Time)
		})
		start := 0
		for i := 1; i <= len(group); i++ {
			// A gap larger than the window closes the sub-group. The gap is
			// taken in absolute value: clock skew can produce negative gaps
			// and those are boundaries too.
			if i < len(group) {
				gap := group[i].Time.Sub(group[i-1].Time)
				if gap < 0 {
					gap = -gap
				}
				if gap <= window {
					continue
				}
			}
			merged = append(merged, mergeGroup(group[start:i]))
			start = i
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Time.Before(merged[j].Time)
	})
	return merged
}

// mergeGroup collapses a non-empty same-key sub-group into one row.
func mergeGroup(group []Transaction) Transaction {
	if len(group) == 1 {
		return group[0]
	}
	out := group[0]
	amount := decimal.Zero
	amountUSD := 0.0
	weighted := 0.0 // sum of amount*price, for the weighted average price
	for _, tx := range group {
		amount = amount.Add(tx.Amount)
		amountUSD += tx.AmountUSD // NaN propagates
		weighted += tx.Amount.InexactFloat64() * tx.PriceUSD
	}
	out.Amount = amount
	out.AmountUSD = amountUSD
	if f := amount.InexactFloat64(); f != 0 {
		out.PriceUSD = weighted / f
	} else {
		out.PriceUSD = math.NaN()
	}
	return out
}

// RemoveAlreadyImported drops every incoming row whose timestamp falls inside
// the ledger's existing [earliest, latest] span for the row's
// (exchange, userId) account. A re-import of an overlapping export window
// reproduces the same events, so rows inside a previously seen span are
// duplicates; rows before or after the span are kept so incremental imports
// can append a new head or tail.
//
// The containment test is by time window only, not row identity: a genuinely
// new event timestamped inside an already-imported span is dropped too. The
// supported exports carry no exchange-native transaction id that would allow
// a stronger key.
func (w *Wallet) RemoveAlreadyImported(batch []Transaction) []Transaction {
	type account struct{ exchange, userID string }
	accounts := make(map[account]bool)
	for _, tx := range batch {
		accounts[account{tx.Exchange, tx.UserID}] = true
	}
	spans := make(map[account][2]time.Time, len(accounts))
	for a := range accounts {
		if from, to, ok := w.span(a.exchange, a.userID); ok {
			spans[a] = [2]time.Time{from, to}
		}
	}

	kept := make([]Transaction, 0, len(batch))
	removed := make(map[account]int)
	for _, tx := range batch {
		a := account{tx.Exchange, tx.UserID}
		span, ok := spans[a]
		if ok && !tx.Time.Before(span[0]) && !tx.Time.After(span[1]) {
			removed[a]++
			continue
		}
		kept = append(kept, tx)
	}
	for a, n := range removed {
		log.Printf("%s (user %s): removed %d transactions already imported between %s and %s",
			a.exchange, a.userID, n, spans[a][0].Format(time.RFC3339), spans[a][1].Format(time.RFC3339))
	}
	return kept
}

// IntegrateOptions tunes the Integrate pipeline. The zero value disables both
// stages; DefaultIntegrateOptions is what imports normally use.
type IntegrateOptions struct {
	MergeSimilar   bool
	RemoveExisting bool
	Window         time.Duration
}

// DefaultIntegrateOptions merges split rows within a 15 minute window and
// drops rows already covered by a previous import.
func DefaultIntegrateOptions() IntegrateOptions {
	return IntegrateOptions{MergeSimilar: true, RemoveExisting: true, Window: 15 * time.Minute}
}

// Integrate runs the merge and overlap-removal stages on the batch, appends
// the result to the ledger keeping it sorted, and returns the rows that were
// actually added. This is the only mutation entry point for imported data.
func (w *Wallet) Integrate(batch []Transaction, opts IntegrateOptions) []Transaction {
	if opts.MergeSimilar {
		batch = MergeWithinWindow(batch, opts.Window)
	}
	if opts.RemoveExisting {
		batch = w.RemoveAlreadyImported(batch)
	}
	w.append(batch...)
	return batch
}

// valueTolerance is the absolute tolerance allowed between AmountUSD and
// Amount*PriceUSD when both sides are known.
const valueTolerance = 0.001

// CheckIntegrity verifies the ledger is fit for persistence: no missing
// required field, no lingering TBD type, and AmountUSD consistent with
// Amount*PriceUSD within tolerance. It must be called before any save.
func (w *Wallet) CheckIntegrity() error {
	for i, tx := range w.transactions {
		if err := tx.validate(); err != nil {
			return fmt.Errorf("row %d (%s %s): %w", i, tx.Exchange, tx.Asset, err)
		}
		if tx.Type == TBD {
			return fmt.Errorf("row %d (%s %s at %s): transaction type is still TBD", i, tx.Exchange, tx.Asset, tx.Time.Format(time.RFC3339))
		}
		if !math.IsNaN(tx.PriceUSD) && !math.IsNaN(tx.AmountUSD) {
			want := tx.Amount.InexactFloat64() * tx.PriceUSD
			if math.Abs(tx.AmountUSD-want) > valueTolerance {
				return fmt.Errorf("row %d (%s %s at %s): amount_USD %f does not match amount*price_USD %f",
					i, tx.Exchange, tx.Asset, tx.Time.Format(time.RFC3339), tx.AmountUSD, want)
			}
		}
	}
	return nil
}

// Purge removes every row of the given exchange, wholesale. It fails if the
// exchange has no rows. The caller is responsible for taking a backup first;
// Store.Save always does.
func (w *Wallet) Purge(exchange string) error {
	kept := make([]Transaction, 0, len(w.transactions))
	for _, tx := range w.transactions {
		if tx.Exchange != exchange {
			kept = append(kept, tx)
		}
	}
	if len(kept) == len(w.transactions) {
		return fmt.Errorf("no transactions found for exchange %q", exchange)
	}
	log.Printf("purged %d transactions from %s", len(w.transactions)-len(kept), exchange)
	w.transactions = kept
	return nil
}
