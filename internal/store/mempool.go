package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// ConsolidateBlock implements MempoolConsolidator (C4), spec.md §4.4: for
// every txid now confirmed in block height, promote its provisional
// charm/transaction/dex_order rows and drop their mempool_spends entries.
// Idempotent by construction — re-running with the same block touches
// rows that already match and is a no-op.
func (s *SQLiteStore) ConsolidateBlock(ctx context.Context, n domain.Network, height int64, txids []string) error {
	if len(txids) == 0 {
		return nil
	}

	placeholders := make([]string, len(txids))
	args := make([]any, 0, len(txids)+2)
	for i, id := range txids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	inClause := "(" + strings.Join(placeholders, ",") + ")"

	if _, err := s.q.ExecContext(ctx,
		`UPDATE charms SET block_height = ? WHERE network = ? AND block_height IS NULL AND txid IN `+inClause,
		append([]any{height, n.Name}, args...)...); err != nil {
		return errors.Wrap(err, "store: consolidate charms")
	}

	if _, err := s.q.ExecContext(ctx,
		`UPDATE transactions SET block_height = ?, status = 'confirmed', confirmations = MAX(confirmations, 1), updated_at = ?
		 WHERE network = ? AND (block_height IS NULL OR status = 'pending') AND txid IN `+inClause,
		append([]any{height, nowString(), n.Name}, args...)...); err != nil {
		return errors.Wrap(err, "store: consolidate transactions")
	}

	if _, err := s.q.ExecContext(ctx,
		`UPDATE dex_orders SET block_height = ? WHERE network = ? AND block_height IS NULL AND txid IN `+inClause,
		append([]any{height, n.Name}, args...)...); err != nil {
		return errors.Wrap(err, "store: consolidate dex orders")
	}

	if _, err := s.q.ExecContext(ctx,
		`DELETE FROM mempool_spends WHERE network = ? AND spending_txid IN `+inClause,
		append([]any{n.Name}, args...)...); err != nil {
		return errors.Wrap(err, "store: delete consolidated mempool spends")
	}

	return nil
}

// InsertMempoolSpends records that unconfirmed transactions are consuming
// given outpoints (spec.md §3 MempoolSpend, §4.7 step 3).
func (s *SQLiteStore) InsertMempoolSpends(ctx context.Context, spends []domain.MempoolSpend) error {
	for _, sp := range spends {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO mempool_spends (spending_txid, spent_txid, spent_vout, network, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(spending_txid, spent_txid, spent_vout, network) DO NOTHING`,
			sp.SpendingTxid, sp.SpentTxid, sp.SpentVout, sp.Network.Name, nowString())
		if err != nil {
			return errors.Wrapf(err, "store: insert mempool spend %s", sp.SpendingTxid)
		}
	}
	return nil
}

// DeleteMempoolSpends removes spend records for the given spending
// txids (spec.md §4.10). No component in this module calls it.
func (s *SQLiteStore) DeleteMempoolSpends(ctx context.Context, n domain.Network, spendingTxids []string) error {
	if len(spendingTxids) == 0 {
		return nil
	}
	placeholders := make([]string, len(spendingTxids))
	args := []any{n.Name}
	for i, id := range spendingTxids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := `DELETE FROM mempool_spends WHERE network = ? AND spending_txid IN (` + strings.Join(placeholders, ",") + `)`
	_, err := s.q.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "store: delete mempool spends")
}

// PurgeStaleMempool implements §4.7 step 4 and §4.10: entries whose
// spending_txid never appeared in a block and are older than olderThan
// are purged, along with their unconfirmed charms and dex orders.
func (s *SQLiteStore) PurgeStaleMempool(ctx context.Context, n domain.Network, olderThan time.Time) (int, error) {
	cutoff := timeString(olderThan)

	res, err := s.q.ExecContext(ctx, `
		DELETE FROM charms WHERE network = ? AND block_height IS NULL AND mempool_detected_at IS NOT NULL AND mempool_detected_at < ?`,
		n.Name, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "store: purge stale charms")
	}
	purged, _ := res.RowsAffected()

	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM dex_orders WHERE network = ? AND block_height IS NULL AND created_at < ?`,
		n.Name, cutoff); err != nil {
		return int(purged), errors.Wrap(err, "store: purge stale dex orders")
	}

	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM mempool_spends WHERE network = ? AND created_at < ?`,
		n.Name, cutoff); err != nil {
		return int(purged), errors.Wrap(err, "store: purge stale mempool spends")
	}

	return int(purged), nil
}

// CachedTransactionsAtHeight implements ReindexPath (C9)'s authoritative
// source: "load all cached transactions for height from the Transaction
// table (their stored raw hex is authoritative)" — spec.md §4.8.
func (s *SQLiteStore) CachedTransactionsAtHeight(ctx context.Context, n domain.Network, height int64) ([]domain.Transaction, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT txid, ordinal, raw, charm, status, confirmations, updated_at, mempool_detected_at
		FROM transactions WHERE network = ? AND block_height = ? ORDER BY ordinal ASC`,
		n.Name, height)
	if err != nil {
		return nil, errors.Wrap(err, "store: cached transactions at height")
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{Network: n, BlockHeight: &height}
		var raw []byte
		var charm sql.NullString
		var status string
		var updatedAt string
		var mempoolDetectedAt sql.NullString

		if err := rows.Scan(&t.Txid, &t.Ordinal, &raw, &charm, &status, &t.Confirmations, &updatedAt, &mempoolDetectedAt); err != nil {
			return nil, errors.Wrap(err, "store: scan cached transaction")
		}

		decoded, err := snappy.Decode(nil, raw)
		if err != nil {
			// Older/uncompressed rows: fall back to the bytes as-is.
			decoded = raw
		}
		t.Raw = decoded
		t.Charm = []byte(charm.String)
		t.Status = domain.TxStatus(status)
		t.UpdatedAt = parseTime(updatedAt)
		t.MempoolDetectedAt = nullTimeOut(mempoolDetectedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}
