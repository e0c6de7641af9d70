package cryptowallet

import (
	"math"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// USD renders a USD value for reports, "?" when the value is unknown.
func USD(value float64) string {
	if math.IsNaN(value) {
		return "?"
	}
	// the Money constructor is the only way to get a never nil currency
	cur := *money.New(0, money.USD).Currency()
	cents := decimal.NewFromFloat(value).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(cents.IntPart())
}
