package cryptowallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Settings is the flat configuration file of the tool.
type Settings struct {
	// RootDir holds the ledger, its backups and the price caches.
	RootDir string `json:"root_dir"`
	// CryptoCompareAPIKey authenticates price requests. The -api-key flag
	// and the CRYPTOCOMPARE_API_KEY environment variable override it.
	CryptoCompareAPIKey string `json:"cryptocompare_api_key"`
	// PriceCacheTTLMinutes is how long a cached current price stays fresh.
	PriceCacheTTLMinutes int `json:"price_cache_ttl_minutes"`
}

// DefaultSettingsPath is where settings live unless overridden by flag.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cryptowallet", "settings.json")
}

func defaultSettings() *Settings {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Settings{
		RootDir:              filepath.Join(home, ".cryptowallet"),
		PriceCacheTTLMinutes: 60,
	}
}

// LoadSettings reads the settings file, creating it with defaults on first
// use so the operator has a file to edit.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s := defaultSettings()
		if err := s.Save(path); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	s := defaultSettings()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings file, creating its directory if needed.
func (s *Settings) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// PriceCacheTTL returns the configured cache freshness window.
func (s *Settings) PriceCacheTTL() time.Duration {
	if s.PriceCacheTTLMinutes <= 0 {
		return 60 * time.Minute
	}
	return time.Duration(s.PriceCacheTTLMinutes) * time.Minute
}
