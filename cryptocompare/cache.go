package cryptocompare

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// DefaultCacheTTL is how long a cached current price stays fresh.
const DefaultCacheTTL = 60 * time.Minute

type cacheEntry struct {
	Value float64   `json:"value"`
	Time  time.Time `json:"time"`
}

// PriceCache is a file-backed current-price cache with a freshness window.
// It is loaded once on open and flushed on Close, there is no per-write
// persistence.
type PriceCache struct {
	path    string
	ttl     time.Duration
	entries map[string]cacheEntry
	dirty   bool
}

// OpenPriceCache loads the cache file at path, creating an empty cache when
// the file does not exist. A non-positive ttl means DefaultCacheTTL.
func OpenPriceCache(path string, ttl time.Duration) (*PriceCache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache := &PriceCache{path: path, ttl: ttl, entries: make(map[string]cacheEntry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cache, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &cache.entries); err != nil {
		return nil, fmt.Errorf("invalid price cache %s: %w", path, err)
	}
	return cache, nil
}

// Get returns the cached price of asset if it is still fresh.
func (p *PriceCache) Get(asset string) (float64, bool) {
	entry, ok := p.entries[asset]
	if !ok || time.Since(entry.Time) > p.ttl {
		return 0, false
	}
	return entry.Value, true
}

// Put records a price for asset. Unknown prices are not cached, they must be
// retried on the next query.
func (p *PriceCache) Put(asset string, value float64) {
	if math.IsNaN(value) {
		return
	}
	p.entries[asset] = cacheEntry{Value: value, Time: time.Now().UTC()}
	p.dirty = true
}

// Close flushes the cache to disk if anything changed since open.
func (p *PriceCache) Close() error {
	if !p.dirty {
		return nil
	}
	data, err := json.MarshalIndent(p.entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return err
	}
	p.dirty = false
	return nil
}

// CurrentPricesCached answers from cache where possible and queries the
// provider only for the assets the cache cannot serve, recording the fresh
// prices back into it.
func (c *Client) CurrentPricesCached(cache *PriceCache, assets []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(assets))
	var missing []string
	for _, asset := range assets {
		if value, ok := cache.Get(asset); ok {
			prices[asset] = value
		} else {
			missing = append(missing, asset)
		}
	}
	if len(missing) == 0 {
		return prices, nil
	}
	fresh, err := c.CurrentPrices(missing)
	if err != nil {
		return nil, err
	}
	for asset, value := range fresh {
		prices[asset] = value
		cache.Put(asset, value)
	}
	return prices, nil
}
