package cryptowallet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/etnz/cryptowallet/cryptocompare"
)

const (
	ledgerFilename     = "wallet.csv"
	backupsDirname     = "backups"
	failureLogFilename = "backfill_failures.json"
	priceCacheFilename = "current_prices.json"
)

// Store manages the on-disk ledger under a root directory:
//
//	<dir>/wallet.csv                     the ledger
//	<dir>/backups/<yyyy-mm-dd-hhmm>/     pre-save copies of the ledger
//	<dir>/backfill_failures.json         last backfill failure log
//	<dir>/current_prices.json            current price cache
//	<dir>/                               per-asset daily OHLCV caches
type Store struct {
	Dir string
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store { return &Store{Dir: dir} }

func (s *Store) ledgerPath() string { return filepath.Join(s.Dir, ledgerFilename) }

// PriceCachePath is where the current price cache lives.
func (s *Store) PriceCachePath() string { return filepath.Join(s.Dir, priceCacheFilename) }

// Load reads the ledger. A store that has never been saved loads as an empty
// wallet.
func (s *Store) Load() (*Wallet, error) {
	f, err := os.Open(s.ledgerPath())
	if os.IsNotExist(err) {
		return NewWallet(), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	wallet, err := DecodeWallet(f)
	if err != nil {
		return nil, fmt.Errorf("cannot load ledger %s: %w", s.ledgerPath(), err)
	}
	return wallet, nil
}

// Save checks the wallet's integrity, backs up the current ledger file, and
// overwrites it. The backup happens before the overwrite so a crash in
// between never leaves zero readable copies.
func (s *Store) Save(wallet *Wallet) error {
	if err := wallet.CheckIntegrity(); err != nil {
		return fmt.Errorf("refusing to save: %w", err)
	}
	if err := s.backup(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(s.ledgerPath())
	if err != nil {
		return err
	}
	if err := EncodeWallet(f, wallet); err != nil {
		f.Close()
		return fmt.Errorf("cannot write ledger %s: %w", s.ledgerPath(), err)
	}
	return f.Close()
}

// backup copies the current ledger file verbatim into a minute-stamped
// backup folder. Several saves in the same minute share the folder, the last
// one wins.
func (s *Store) backup() error {
	src, err := os.Open(s.ledgerPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer src.Close()

	dir := filepath.Join(s.Dir, backupsDirname, time.Now().UTC().Format("2006-01-02-1504"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	dst, err := os.Create(filepath.Join(dir, ledgerFilename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("cannot back up ledger: %w", err)
	}
	return dst.Close()
}

// PurgeExchange removes every row of one exchange and saves. Save takes the
// backup, so the purged rows stay recoverable.
func (s *Store) PurgeExchange(exchange string) error {
	wallet, err := s.Load()
	if err != nil {
		return err
	}
	if err := wallet.Purge(exchange); err != nil {
		return err
	}
	return s.Save(wallet)
}

// SaveFailureLog persists the backfill failure log to its side file for
// operator follow-up. An empty log removes the file.
func (s *Store) SaveFailureLog(failures cryptocompare.FailureLog) error {
	path := filepath.Join(s.Dir, failureLogFilename)
	if len(failures) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	data, err := json.MarshalIndent(failures, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
