package cryptocompare

import (
	"log"
	"math"
	"net/url"
	"sort"
	"strings"
)

// AssetNameMap renames internal tickers to the provider's vocabulary before
// querying; results are renamed back. This table belongs to the provider, it
// is distinct from the per-source rename tables in the loaders.
var AssetNameMap = map[string]string{
	"IOTA": "MIOTA",
	"MNT":  "MANTLE",
}

// Assets the provider has no data for. They resolve to an unknown price
// locally, without a network call.
var (
	UnsupportedHistoricalPriceAssets = []string{
		"1000PEPPER", "CHILLGUY", "UOS", "HYPE", "SDM", "GNET", "XBG", "BIO", "PAWSY", "WGC",
	}
	UnsupportedCurrentPriceAssets = []string{
		"1000PEPPER", "GNET", "XBG", "BIO", "PAWSY", "WGC",
	}
)

// UnsupportedForHistory reports whether asset is on the historical
// unsupported list.
func UnsupportedForHistory(asset string) bool {
	for _, a := range UnsupportedHistoricalPriceAssets {
		if a == asset {
			return true
		}
	}
	return false
}

func unsupportedForCurrent(asset string) bool {
	for _, a := range UnsupportedCurrentPriceAssets {
		if a == asset {
			return true
		}
	}
	return false
}

// maxFsymsLength is the character budget for the joined ticker list of one
// pricemulti request. The endpoint is URL-length-sensitive, not
// count-sensitive.
const maxFsymsLength = 300

// CurrentPrices returns the current USD price for each requested asset.
// Unsupported assets and assets absent from the provider response resolve to
// NaN; only transport failures and unrecognized provider errors are fatal.
func (c *Client) CurrentPrices(assets []string) (map[string]float64, error) {
	if c.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	prices := make(map[string]float64, len(assets))
	inverted := make(map[string]string, len(AssetNameMap))
	for from, to := range AssetNameMap {
		inverted[to] = from
	}

	// Rename to the provider vocabulary and strip unsupported assets.
	queried := make([]string, 0, len(assets))
	seen := make(map[string]bool)
	for _, asset := range assets {
		if unsupportedForCurrent(asset) {
			prices[asset] = math.NaN()
			continue
		}
		renamed := asset
		if to, ok := AssetNameMap[asset]; ok {
			renamed = to
		}
		if !seen[renamed] {
			seen[renamed] = true
			queried = append(queried, renamed)
		}
	}
	sort.Strings(queried)

	for _, batch := range batchAssets(queried, maxFsymsLength) {
		batchPrices, err := c.currentPricesBatch(batch)
		if err != nil {
			return nil, err
		}
		for asset, price := range batchPrices {
			if from, ok := inverted[asset]; ok {
				asset = from
			}
			prices[asset] = price
		}
	}
	return prices, nil
}

// batchAssets splits the asset list into batches whose comma-joined length
// stays within budget.
func batchAssets(assets []string, budget int) [][]string {
	if len(assets) == 0 {
		return nil
	}
	var batches [][]string
	var batch []string
	length := 0
	for _, asset := range assets {
		joined := length + len(asset)
		if len(batch) > 0 {
			joined++ // the comma
		}
		if joined > budget && len(batch) > 0 {
			batches = append(batches, batch)
			batch, joined = nil, len(asset)
		}
		batch = append(batch, asset)
		length = joined
	}
	return append(batches, batch)
}

// currentPricesBatch issues one pricemulti request for the batch. A provider
// error meaning "no market for any of these pairs" yields an all-NaN batch;
// any other provider error is fatal.
func (c *Client) currentPricesBatch(batch []string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("fsyms", strings.Join(batch, ","))
	params.Set("tsyms", "USD")
	params.Set("relaxedValidation", "true")

	var data map[string]any
	if err := c.jwget("/data/pricemulti", params, &data); err != nil {
		return nil, err
	}

	if response, ok := data["Response"]; ok {
		// A "Response" key on this endpoint is always an error envelope.
		perr := &ProviderError{Message: asString(data["Message"])}
		if t, ok := data["Type"].(float64); ok {
			perr.Type = int(t)
		}
		if response != "Error" {
			return nil, &ProviderError{Message: "unexpected response from CryptoCompare API"}
		}
		if !strings.HasPrefix(perr.Message, emptyMarketPrefix) {
			return nil, perr
		}
		data = nil // benign: no pair in the batch has a market
	}

	prices := make(map[string]float64, len(batch))
	var missing []string
	for _, asset := range batch {
		price := math.NaN()
		if usd, ok := data[asset].(map[string]any); ok {
			if v, ok := usd["USD"].(float64); ok {
				price = v
			}
		}
		if math.IsNaN(price) {
			missing = append(missing, asset)
		}
		prices[asset] = price
	}
	if len(missing) > 0 {
		log.Printf("unable to get current price for: %s", strings.Join(missing, ", "))
	}
	return prices, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
