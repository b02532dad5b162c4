package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// GetBlockStatus returns nil, nil when the row does not exist yet — C7
// creates it lazily on first touch (spec.md §3 BlockStatus lifecycle).
func (s *SQLiteStore) GetBlockStatus(ctx context.Context, n domain.Network, height int64) (*domain.BlockStatus, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT block_hash, tx_count, charm_count, downloaded, processed, confirmed, downloaded_at, processed_at
		FROM block_status WHERE network = ? AND blockchain_kind = ? AND height = ?`,
		n.Name, string(n.Kind), height)

	var hash sql.NullString
	var txCount, charmCount sql.NullInt64
	var downloaded, processed, confirmed bool
	var downloadedAt, processedAt sql.NullString

	err := row.Scan(&hash, &txCount, &charmCount, &downloaded, &processed, &confirmed, &downloadedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get block status")
	}

	return &domain.BlockStatus{
		Network:      n,
		Height:       height,
		BlockHash:    hash.String,
		TxCount:      int(txCount.Int64),
		CharmCount:   int(charmCount.Int64),
		Downloaded:   downloaded,
		Processed:    processed,
		Confirmed:    confirmed,
		DownloadedAt: nullTimeOut(downloadedAt),
		ProcessedAt:  nullTimeOut(processedAt),
	}, nil
}

// MarkDownloaded upserts the row with downloaded=true, per §4.2 step 10.
func (s *SQLiteStore) MarkDownloaded(ctx context.Context, n domain.Network, height int64, hash string, txCount int) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO block_status (network, blockchain_kind, height, block_hash, tx_count, downloaded, downloaded_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(network, blockchain_kind, height) DO UPDATE SET
			block_hash = excluded.block_hash,
			tx_count = excluded.tx_count,
			downloaded = 1,
			downloaded_at = excluded.downloaded_at`,
		n.Name, string(n.Kind), height, hash, txCount, nowString())
	return errors.Wrap(err, "store: mark downloaded")
}

// MarkProcessed sets processed=true and the final charm_count, per §4.2
// step 10. The invariant processed ⇒ downloaded is upheld by callers
// always invoking MarkDownloaded first within the same process_block run.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, n domain.Network, height int64, charmCount int) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE block_status SET processed = 1, charm_count = ?, processed_at = ?
		WHERE network = ? AND blockchain_kind = ? AND height = ?`,
		charmCount, nowString(), n.Name, string(n.Kind), height)
	return errors.Wrap(err, "store: mark processed")
}

// MarkConfirmed sets confirmed=true, per §4.2 step 10/11 and §3's
// invariant "confirmed only once tip − height + 1 ≥ ConfirmationDepth" —
// callers are responsible for only calling this once that holds.
func (s *SQLiteStore) MarkConfirmed(ctx context.Context, n domain.Network, height int64) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE block_status SET confirmed = 1
		WHERE network = ? AND blockchain_kind = ? AND height = ?`,
		n.Name, string(n.Kind), height)
	return errors.Wrap(err, "store: mark confirmed")
}

// UnconfirmedHeights returns processed-but-not-confirmed heights whose
// depth (tip - height + 1) has now reached depth, for §4.2 step 11's
// "retro-confirm" sweep.
func (s *SQLiteStore) UnconfirmedHeights(ctx context.Context, n domain.Network, tip, depth int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT height FROM block_status
		WHERE network = ? AND blockchain_kind = ? AND processed = 1 AND confirmed = 0 AND (? - height + 1) >= ?
		ORDER BY height ASC`,
		n.Name, string(n.Kind), tip, depth)
	if err != nil {
		return nil, errors.Wrap(err, "store: unconfirmed heights")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, errors.Wrap(err, "store: scan unconfirmed height")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// LastProcessedHeight backs NetworkSupervisor's startup cursor init (§4.9
// step 2): "current_height = last_processed + 1, or genesis_height if
// none".
func (s *SQLiteStore) LastProcessedHeight(ctx context.Context, n domain.Network) (int64, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT MAX(height) FROM block_status WHERE network = ? AND blockchain_kind = ? AND processed = 1`,
		n.Name, string(n.Kind))

	var h sql.NullInt64
	if err := row.Scan(&h); err != nil {
		return 0, false, errors.Wrap(err, "store: last processed height")
	}
	if !h.Valid {
		return 0, false, nil
	}
	return h.Int64, true, nil
}

// PendingReindexHeights returns up to limit heights that have stored
// transactions (so cached raw hex exists) but are not marked processed, for
// ReindexPath (C9) §4.8's batches-of-10000 replay.
func (s *SQLiteStore) PendingReindexHeights(ctx context.Context, n domain.Network, limit int) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT DISTINCT block_height FROM transactions
		WHERE network = ? AND block_height IS NOT NULL
		  AND block_height NOT IN (
		      SELECT height FROM block_status WHERE network = ? AND blockchain_kind = ? AND processed = 1
		  )
		ORDER BY block_height ASC LIMIT ?`,
		n.Name, n.Name, string(n.Kind), limit)
	if err != nil {
		return nil, errors.Wrap(err, "store: pending reindex heights")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, errors.Wrap(err, "store: scan pending reindex height")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
