package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// GetSummary returns the zero-value summary (never nil) when the network
// row has not been created yet, so SummaryUpdater (C6) can always apply
// deltas without a separate create-if-missing branch.
func (s *SQLiteStore) GetSummary(ctx context.Context, n domain.Network) (*domain.Summary, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT last_processed_block, latest_confirmed_block, total_charms, charms_by_type, tag_counters,
		       bitcoin_node_status, bitcoin_block_count, bitcoin_best_block_hash, updated_at
		FROM summaries WHERE network = ?`, n.Name)

	sum := &domain.Summary{Network: n, CharmsByType: map[domain.AssetType]int64{}, TagCounters: map[string]int64{}}
	var byType, tags string
	var updatedAt sql.NullString

	err := row.Scan(&sum.LastProcessedBlock, &sum.LatestConfirmedBlock, &sum.TotalCharms, &byType, &tags,
		&sum.BitcoinNodeStatus, &sum.BitcoinBlockCount, &sum.BitcoinBestBlockHash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get summary")
	}

	sum.CharmsByType = unmarshalTypeCounters(byType)
	sum.TagCounters = unmarshalCounters(tags)
	if updatedAt.Valid {
		sum.UpdatedAt = parseTime(updatedAt.String)
	}
	return sum, nil
}

// ApplySummaryDelta implements SummaryUpdater (C6), spec.md §4.2 step 9:
// add batch counters to the per-network row. Counters are read-modify-
// write within the same transaction BlockProcessor already wraps steps
// 4+5+9 in, so no separate locking is needed.
func (s *SQLiteStore) ApplySummaryDelta(ctx context.Context, n domain.Network, height int64, delta SummaryDelta) error {
	current, err := s.GetSummary(ctx, n)
	if err != nil {
		return err
	}

	for t, c := range delta.ByType {
		current.CharmsByType[t] += c
	}
	for tag, c := range delta.TagCounters {
		current.TagCounters[tag] += c
	}
	current.TotalCharms += delta.NewCharms
	if height > current.LastProcessedBlock {
		current.LastProcessedBlock = height
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO summaries (network, last_processed_block, latest_confirmed_block, total_charms, charms_by_type, tag_counters, bitcoin_node_status, bitcoin_block_count, bitcoin_best_block_hash, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(network) DO UPDATE SET
			last_processed_block = excluded.last_processed_block,
			total_charms = excluded.total_charms,
			charms_by_type = excluded.charms_by_type,
			tag_counters = excluded.tag_counters,
			updated_at = excluded.updated_at`,
		n.Name, current.LastProcessedBlock, current.LatestConfirmedBlock, current.TotalCharms,
		marshalTypeCounters(current.CharmsByType), marshalCounters(current.TagCounters),
		current.BitcoinNodeStatus, current.BitcoinBlockCount, current.BitcoinBestBlockHash, nowString())
	return errors.Wrap(err, "store: apply summary delta")
}

// RefreshChainTip implements the supplemented chain-tip heartbeat
// (SPEC_FULL.md §3): BlockProcessor writes it for every block it
// processes, confirmed or not; idle block-loop iterations do not write it.
func (s *SQLiteStore) RefreshChainTip(ctx context.Context, n domain.Network, status string, blockCount int64, bestHash string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO summaries (network, bitcoin_node_status, bitcoin_block_count, bitcoin_best_block_hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(network) DO UPDATE SET
			bitcoin_node_status = excluded.bitcoin_node_status,
			bitcoin_block_count = excluded.bitcoin_block_count,
			bitcoin_best_block_hash = excluded.bitcoin_best_block_hash,
			updated_at = excluded.updated_at`,
		n.Name, status, blockCount, bestHash, nowString())
	return errors.Wrap(err, "store: refresh chain tip")
}

// MarkLatestConfirmed refreshes latest_confirmed_block; called by
// BlockProcessor's retro-confirm step (§4.2 step 11).
func (s *SQLiteStore) MarkLatestConfirmed(ctx context.Context, n domain.Network, height int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO summaries (network, latest_confirmed_block, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(network) DO UPDATE SET
			latest_confirmed_block = MAX(summaries.latest_confirmed_block, excluded.latest_confirmed_block),
			updated_at = excluded.updated_at`,
		n.Name, height, nowString())
	return errors.Wrap(err, "store: mark latest confirmed")
}
