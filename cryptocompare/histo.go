package cryptocompare

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

// Lookup is one historical price request, keyed by the originating ledger
// row index so results can be applied regardless of completion order.
type Lookup struct {
	Index int
	Asset string
	At    time.Time
}

// FailureDetail records why one lookup failed: a transport status, the
// provider error payload, or a parse error.
type FailureDetail struct {
	StatusCode int    `json:"status_code,omitempty"`
	Type       int    `json:"type,omitempty"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FailureLog maps a lookup index to its failure detail.
type FailureLog map[int]FailureDetail

// HistoricalPrice returns the USD price of asset at the given time, as the
// mean of high and low of the last hourly candle up to that instant. The API
// has no point-price endpoint; the hourly midpoint is the policy
// approximation.
func (c *Client) HistoricalPrice(asset string, at time.Time) (float64, error) {
	if c.APIKey == "" {
		return 0, ErrNoAPIKey
	}
	if UnsupportedForHistory(asset) {
		return 0, fmt.Errorf("%q: %w", asset, ErrUnsupportedAsset)
	}
	if to, ok := AssetNameMap[asset]; ok {
		asset = to
	}
	price, fail := c.historicalPriceOnce(asset, at)
	if fail != nil {
		return 0, fail.err()
	}
	return price, nil
}

func (f FailureDetail) err() error {
	switch {
	case f.StatusCode != 0:
		return &NetworkError{StatusCode: f.StatusCode}
	case f.Message != "":
		return &ProviderError{Type: f.Type, Message: f.Message}
	default:
		return fmt.Errorf("cannot parse CryptoCompare response: %s", f.Error)
	}
}

// Backfill resolves many independent historical lookups over a small fixed
// worker pool. Individual failures are recorded in the returned FailureLog
// and do not abort the batch. On context cancellation no new request is
// issued, but every already-completed result is still returned.
func (c *Client) Backfill(ctx context.Context, lookups []Lookup) (map[int]float64, FailureLog, error) {
	prices := make(map[int]float64, len(lookups))
	failures := make(FailureLog)
	if c.APIKey == "" {
		return prices, failures, ErrNoAPIKey
	}

	type result struct {
		index int
		price float64
		fail  *FailureDetail
	}

	jobs := make(chan Lookup)
	results := make(chan result)

	var wg sync.WaitGroup
	for range c.workers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				asset := job.Asset
				if to, ok := AssetNameMap[asset]; ok {
					asset = to
				}
				price, fail := c.historicalPriceOnce(asset, job.At)
				results <- result{index: job.Index, price: price, fail: fail}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Submit with the advisory inter-request delay, stopping early on
	// cancellation. Workers drain what was submitted either way.
	go func() {
		defer close(jobs)
		for _, lookup := range lookups {
			select {
			case <-ctx.Done():
				log.Println("interrupt received, stopping API requests...")
				return
			case jobs <- lookup:
			}
			time.Sleep(c.Delay)
		}
	}()

	for r := range results {
		if r.fail != nil {
			log.Printf("historical price lookup %d failed: %v", r.index, r.fail.err())
			failures[r.index] = *r.fail
			continue
		}
		prices[r.index] = r.price
	}
	return prices, failures, ctx.Err()
}

// historicalPriceOnce issues one histohour request and extracts the midpoint
// of the most recent candle.
func (c *Client) historicalPriceOnce(asset string, at time.Time) (float64, *FailureDetail) {
	params := url.Values{}
	params.Set("fsym", asset)
	params.Set("tsym", "USD")
	params.Set("limit", "1")
	params.Set("toTs", strconv.FormatInt(at.Unix(), 10))

	var jobj any
	if err := c.jwget("/data/v2/histohour", params, &jobj); err != nil {
		var fail FailureDetail
		if nerr, ok := err.(*NetworkError); ok && nerr.StatusCode != 0 {
			fail.StatusCode = nerr.StatusCode
		} else {
			fail.Error = err.Error()
		}
		return 0, &fail
	}

	envelope, ok := jobj.(map[string]any)
	if !ok || envelope["Response"] != "Success" {
		fail := FailureDetail{Message: asString(envelope["Message"])}
		if t, ok := envelope["Type"].(float64); ok {
			fail.Type = int(t)
		}
		if fail.Message == "" {
			fail.Error = "response is not a Success envelope"
		}
		return 0, &fail
	}

	// The candle list nests as Data.Data; take the last candle. jsonpath
	// keeps this tolerant of the provider's loose envelope.
	jval, err := jsonpath.Get("$.Data.Data[-1:]", jobj)
	if err != nil {
		return 0, &FailureDetail{Error: err.Error()}
	}
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		jval = jlist[0]
	}
	candle, ok := jval.(map[string]any)
	if !ok {
		return 0, &FailureDetail{Error: "no candle in response"}
	}
	high, hok := candle["high"].(float64)
	low, lok := candle["low"].(float64)
	if !hok || !lok {
		return 0, &FailureDetail{Error: "candle has no high/low"}
	}
	return (high + low) / 2, nil
}
