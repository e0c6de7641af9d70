// Package cryptowallet reconciles crypto transaction exports from multiple
// exchanges into a single auditable USD-valued ledger. It is designed to be
// local-first: all data lives in plain files under a root directory the user
// controls.
//
// The core functionalities include:
//   - Ledger Management: a chronologically sorted wallet of typed transactions
//     (trades, deposits, withdrawals, staking and saving movements, interests,
//     fees) persisted as a single CSV file, backed up before every save.
//   - Import Integration: merging of fill fragments that belong to one event,
//     and span-based deduplication so re-importing an overlapping export is
//     harmless.
//   - Price Resolution: current and historical USD prices through the
//     CryptoCompare min-api, with a TTL cache for current prices, an
//     incremental per-asset daily OHLCV cache, and a concurrent backfill of
//     missing historical valuations.
//   - Reporting: holdings per asset, wallet and exchange, cost basis, buy
//     price, potential revenue, fee and interest totals, and daily holding
//     histories.
//
// This package serves as the foundational logic for the `cw` command-line
// tool.
package cryptowallet
