// Package cmd implements the CLI application to manage a crypto transaction
// ledger.
package cmd

import (
	"flag"
	"os"

	"github.com/etnz/cryptowallet"
	"github.com/etnz/cryptowallet/cryptocompare"
	"github.com/google/subcommands"
)

// Commands is the list of subcommands a main package registers.
var Commands = []subcommands.Command{
	&importCmd{},
	&updateCmd{},
	&backfillCmd{},
	&summaryCmd{},
	&balanceCmd{},
	&historyCmd{},
	&purgeCmd{},
	&exportCmd{},
	&topicCmd{},
	&assistCmd{},
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var settingsPath = flag.String("settings", cryptowallet.DefaultSettingsPath(), "Path to the settings file")
var apiKey = flag.String("api-key", "", "CryptoCompare API key (overrides settings and CRYPTOCOMPARE_API_KEY)")

// LoadSettings reads the settings file, creating it with defaults on first
// run.
func LoadSettings() (*cryptowallet.Settings, error) {
	return cryptowallet.LoadSettings(*settingsPath)
}

// OpenStore opens the ledger store rooted at the configured directory.
func OpenStore(settings *cryptowallet.Settings) *cryptowallet.Store {
	return cryptowallet.NewStore(settings.RootDir)
}

// NewPriceClient builds the price client with the effective API key: flag,
// then environment, then settings.
func NewPriceClient(settings *cryptowallet.Settings) *cryptocompare.Client {
	key := *apiKey
	if key == "" {
		key = os.Getenv("CRYPTOCOMPARE_API_KEY")
	}
	if key == "" {
		key = settings.CryptoCompareAPIKey
	}
	return cryptocompare.NewClient(key)
}

// CurrentPrices resolves current prices for the given assets through the
// persisted price cache.
func CurrentPrices(settings *cryptowallet.Settings, store *cryptowallet.Store, assets []string) (map[string]float64, error) {
	cache, err := cryptocompare.OpenPriceCache(store.PriceCachePath(), settings.PriceCacheTTL())
	if err != nil {
		return nil, err
	}
	client := NewPriceClient(settings)
	prices, err := client.CurrentPricesCached(cache, assets)
	if err != nil {
		cache.Close()
		return nil, err
	}
	if err := cache.Close(); err != nil {
		return nil, err
	}
	return prices, nil
}
