// Package cryptocompare implements the price oracle client on top of the
// CryptoCompare min-api: batched current prices, hourly historical lookups
// for transaction-time backfill, and an incrementally cached daily OHLCV
// series per asset.
package cryptocompare

import (
	"errors"
	"fmt"
)

// ErrNoAPIKey is returned when a price operation is attempted without an API
// key. The key is mandatory for every endpoint, so the client fails fast
// instead of sending a request that would be rejected.
var ErrNoAPIKey = errors.New("no CryptoCompare API key provided")

// ErrUnsupportedAsset marks an asset on the static unsupported list: it is
// resolved locally to an unknown price without a network call.
var ErrUnsupportedAsset = errors.New("asset not supported by CryptoCompare")

// NetworkError is a transport-level failure: a failed request or a non-200
// status. It is fatal to the enclosing batch call.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request error to CryptoCompare API: %v", e.Err)
	}
	return fmt.Sprintf("request error to CryptoCompare API: status %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is a structured error payload returned by the provider that
// is not recognized as the benign "no market exists" case.
type ProviderError struct {
	Type    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("error sent by the CryptoCompare API: type %d: %s", e.Type, e.Message)
}

// emptyMarketPrefix starts the provider error message meaning none of the
// requested pairs has a market. That case is not an error: the whole batch
// simply resolves to no prices.
const emptyMarketPrefix = "cccagg_or_exchange market does not exist for this coin pair"
