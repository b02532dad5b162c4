// Package store is the transactional Store capability spec.md §1 assumes
// ("Direct DB driver details (a transactional Store capability is
// assumed)"). It backs every table in §3 with SQLite via database/sql and
// github.com/mattn/go-sqlite3 — the teacher's own storage dependency —
// using SQLite's `INSERT ... ON CONFLICT DO UPDATE` as the conflict-
// resolution primitive §4.5 names.
package store

import (
	"context"
	"time"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// Outpoint identifies a previous output consumed by a transaction input.
type Outpoint struct {
	Txid string
	Vout int
}

// SummaryDelta is the set of counters BlockProcessor (C7) accumulates
// over one block before calling ApplySummaryDelta (C6).
type SummaryDelta struct {
	NewCharms    int64
	ByType       map[domain.AssetType]int64
	TagCounters  map[string]int64
	ConfirmedTxs int64
}

// Store is the full persistence surface every component in §4 is written
// against. SQLiteStore is the only implementation; components depend on
// the interface so their tests can substitute fakes that embed Store and
// implement only the methods the component calls.
type Store interface {
	// Block status lifecycle (§3 BlockStatus, §4.2 step 10, §4.9).
	GetBlockStatus(ctx context.Context, n domain.Network, height int64) (*domain.BlockStatus, error)
	MarkDownloaded(ctx context.Context, n domain.Network, height int64, hash string, txCount int) error
	MarkProcessed(ctx context.Context, n domain.Network, height int64, charmCount int) error
	MarkConfirmed(ctx context.Context, n domain.Network, height int64) error
	UnconfirmedHeights(ctx context.Context, n domain.Network, tip, depth int64) ([]int64, error)
	LastProcessedHeight(ctx context.Context, n domain.Network) (int64, bool, error)
	PendingReindexHeights(ctx context.Context, n domain.Network, limit int) ([]int64, error)

	// BatchPersister (C5), §4.5.
	UpsertTransactions(ctx context.Context, txs []domain.Transaction) error
	UpsertCharms(ctx context.Context, charms []domain.Charm) error
	UpsertAssets(ctx context.Context, assets []domain.Asset) error
	UpsertDexOrders(ctx context.Context, orders []domain.DexOrder) error

	// MempoolConsolidator (C4), §4.4.
	ConsolidateBlock(ctx context.Context, n domain.Network, height int64, txids []string) error

	// SpentTracker (C2), §4.3.
	FindUnspentCharms(ctx context.Context, n domain.Network, outpoints []Outpoint) ([]domain.Charm, error)
	MarkSpentAndAdjust(ctx context.Context, n domain.Network, spent []domain.Charm) error
	UpsertStatsHolder(ctx context.Context, n domain.Network, appID, address string, delta int64, height int64) error

	// UtxoIndexer (C3) and address registration, §4.6, §4.2 steps 6-8.
	MonitoredAddresses(ctx context.Context, n domain.Network) (map[string]struct{}, error)
	RegisterMonitoredAddress(ctx context.Context, n domain.Network, address string, source domain.MonitoredAddressSource, seedHeight *int64) error
	DeleteAddressUTXOs(ctx context.Context, n domain.Network, outpoints []Outpoint) error
	ResolveAddressUtxos(ctx context.Context, n domain.Network, outpoints []Outpoint) ([]domain.AddressUtxo, error)
	InsertAddressUTXOs(ctx context.Context, utxos []domain.AddressUtxo) error
	InsertAddressTransactions(ctx context.Context, ats []domain.AddressTransaction) error

	// MempoolProcessor (C8) support, §4.7, §4.10.
	InsertMempoolSpends(ctx context.Context, spends []domain.MempoolSpend) error
	DeleteMempoolSpends(ctx context.Context, n domain.Network, spendingTxids []string) error
	PurgeStaleMempool(ctx context.Context, n domain.Network, olderThan time.Time) (purgedCharms int, err error)

	// SummaryUpdater (C6), §4.2 step 9, §3 Summary.
	GetSummary(ctx context.Context, n domain.Network) (*domain.Summary, error)
	ApplySummaryDelta(ctx context.Context, n domain.Network, height int64, delta SummaryDelta) error
	RefreshChainTip(ctx context.Context, n domain.Network, status string, blockCount int64, bestHash string) error
	MarkLatestConfirmed(ctx context.Context, n domain.Network, height int64) error

	// AddressMonitor (C12), §4.12.
	IsMonitored(ctx context.Context, n domain.Network, address string) (bool, error)
	SeedMonitoredAddress(ctx context.Context, n domain.Network, address string, seedHeight int64, utxos []domain.AddressUtxo) error

	// ReindexPath (C9), §4.8.
	CachedTransactionsAtHeight(ctx context.Context, n domain.Network, height int64) ([]domain.Transaction, error)

	// Atomic groups steps 4+5 of §4.2 (persist then spend-mark) — and any
	// other multi-step write — into one DB transaction, per §9 "Scoped
	// resources": "A failure inside the transaction leaves the database
	// exactly as it was at block start". fn receives a Store bound to the
	// open transaction; every call through it participates in the same
	// commit/rollback.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	Close() error
}
