package cryptowallet

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger row by the economic event it records.
type TransactionType string

// Transaction types used in the ledger.
const (
	SpotTrade         TransactionType = "SPOT_TRADE"
	StakingPurchase   TransactionType = "STAKING_PURCHASE"
	StakingRedemption TransactionType = "STAKING_REDEMPTION"
	StakingInterest   TransactionType = "STAKING_INTEREST"
	SavingPurchase    TransactionType = "SAVING_PURCHASE"
	SavingRedemption  TransactionType = "SAVING_REDEMPTION"
	SavingInterest    TransactionType = "SAVING_INTEREST"
	Distribution      TransactionType = "DISTRIBUTION"
	Deposit           TransactionType = "DEPOSIT"
	Withdraw          TransactionType = "WITHDRAW"
	Fee               TransactionType = "FEE"
	ReferralInterest  TransactionType = "REFERRAL_INTEREST"
	MiningInterest    TransactionType = "MINING_INTEREST"
	Lost              TransactionType = "LOST"
	Stolen            TransactionType = "STOLEN"
	Spend             TransactionType = "SPEND"
	Income            TransactionType = "INCOME"
	Redenomination    TransactionType = "REDENOMINATION"
	AccountTransfer   TransactionType = "ACCOUNT_TRANSFER"

	// TBD is a transitional placeholder used by loaders while a row still
	// needs a secondary rule to disambiguate it. It must never reach the
	// persisted ledger; CheckIntegrity rejects it.
	TBD TransactionType = "TBD"
)

var transactionTypes = map[TransactionType]bool{
	SpotTrade: true, StakingPurchase: true, StakingRedemption: true,
	StakingInterest: true, SavingPurchase: true, SavingRedemption: true,
	SavingInterest: true, Distribution: true, Deposit: true, Withdraw: true,
	Fee: true, ReferralInterest: true, MiningInterest: true, Lost: true,
	Stolen: true, Spend: true, Income: true, Redenomination: true,
	AccountTransfer: true, TBD: true,
}

func (t TransactionType) String() string { return string(t) }

// ParseTransactionType parses a string into a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(s)
	if !transactionTypes[t] {
		return "", fmt.Errorf("unknown transaction type: %q", s)
	}
	return t, nil
}

// WalletType identifies the sub-account a transaction moved funds in or out of.
type WalletType string

// Wallet kinds. SAVING and STAKING are custodied sub-wallets: the exchange
// manages their balance on the user's behalf, and some exports do not report
// their side of an internal transfer at all.
const (
	Spot    WalletType = "SPOT"
	Saving  WalletType = "SAVING"
	Staking WalletType = "STAKING"
	Funding WalletType = "FUNDING"
)

func (w WalletType) String() string { return string(w) }

// ParseWalletType parses a string into a WalletType.
func ParseWalletType(s string) (WalletType, error) {
	switch w := WalletType(s); w {
	case Spot, Saving, Staking, Funding:
		return w, nil
	default:
		return "", fmt.Errorf("unknown wallet type: %q", s)
	}
}

// Transaction is one canonical ledger row.
//
// A Transaction is a value: loaders and the merge engine derive new rows by
// copying and overriding fields, never by mutating a stored one. Amount is
// signed, positive for an inflow to the named wallet. PriceUSD and AmountUSD
// are NaN while the valuation is unknown.
type Transaction struct {
	Time      time.Time
	Asset     string
	Amount    decimal.Decimal
	Type      TransactionType
	Exchange  string
	UserID    string
	Wallet    WalletType
	Note      string
	PriceUSD  float64
	AmountUSD float64
}

// NewTransaction creates a transaction with unknown USD valuation.
func NewTransaction(at time.Time, asset string, amount decimal.Decimal, typ TransactionType, exchange, userID string, wallet WalletType, note string) Transaction {
	return Transaction{
		Time:      at.UTC(),
		Asset:     asset,
		Amount:    amount,
		Type:      typ,
		Exchange:  exchange,
		UserID:    userID,
		Wallet:    wallet,
		Note:      note,
		PriceUSD:  math.NaN(),
		AmountUSD: math.NaN(),
	}
}

// WithValuation returns a copy carrying the given unit price, with AmountUSD
// recomputed from it.
func (t Transaction) WithValuation(priceUSD float64) Transaction {
	t.PriceUSD = priceUSD
	t.AmountUSD = t.Amount.InexactFloat64() * priceUSD
	return t
}

// Annotate returns a copy with the note extended. The note is an append-only
// provenance trail: the order of annotations must stay reproducible so that
// re-imports compare equal.
func (t Transaction) Annotate(note string) Transaction {
	t.Note += note
	return t
}

// HasPrice reports whether the USD unit price is known.
func (t Transaction) HasPrice() bool { return !math.IsNaN(t.PriceUSD) }

// Equal reports structural equality. Unknown valuations (NaN) compare equal
// to each other.
func (t Transaction) Equal(o Transaction) bool {
	return t.Time.Equal(o.Time) &&
		t.Asset == o.Asset &&
		t.Amount.Equal(o.Amount) &&
		t.Type == o.Type &&
		t.Exchange == o.Exchange &&
		t.UserID == o.UserID &&
		t.Wallet == o.Wallet &&
		t.Note == o.Note &&
		floatEqual(t.PriceUSD, o.PriceUSD) &&
		floatEqual(t.AmountUSD, o.AmountUSD)
}

func floatEqual(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return a == b
}

// validate reports the first missing required field, if any.
func (t Transaction) validate() error {
	switch {
	case t.Time.IsZero():
		return fmt.Errorf("transaction has no datetime")
	case t.Asset == "":
		return fmt.Errorf("transaction has no asset")
	case t.Type == "":
		return fmt.Errorf("transaction has no type")
	case t.Exchange == "":
		return fmt.Errorf("transaction has no exchange")
	case t.UserID == "":
		return fmt.Errorf("transaction has no user id")
	case t.Wallet == "":
		return fmt.Errorf("transaction has no wallet")
	}
	return nil
}
