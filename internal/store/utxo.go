package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// MonitoredAddresses loads the full monitored-address set for a network,
// backing UtxoIndexer's (C3) periodically-refreshed in-memory snapshot
// (spec.md §4.6 step 1, §5).
func (s *SQLiteStore) MonitoredAddresses(ctx context.Context, n domain.Network) (map[string]struct{}, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT address FROM monitored_addresses WHERE network = ?`, n.Name)
	if err != nil {
		return nil, errors.Wrap(err, "store: monitored addresses")
	}
	defer rows.Close()

	out := map[string]struct{}{}
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, errors.Wrap(err, "store: scan monitored address")
		}
		out[addr] = struct{}{}
	}
	return out, rows.Err()
}

// RegisterMonitoredAddress auto-adds a charm-holder address with
// source="indexer" (spec.md §4.2 step 6), or is reused by AddressMonitor
// for source="api" seeding (§4.12). Existing rows are left untouched —
// the first writer's source and seed metadata win.
func (s *SQLiteStore) RegisterMonitoredAddress(ctx context.Context, n domain.Network, address string, source domain.MonitoredAddressSource, seedHeight *int64) error {
	var seededAt *time.Time
	if source == domain.SourceAPI {
		now := time.Now().UTC()
		seededAt = &now
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO monitored_addresses (address, network, source, seeded_at, seed_height, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(address, network) DO NOTHING`,
		address, n.Name, string(source), nullTime(seededAt), nullInt64(seedHeight), nowString())
	return errors.Wrapf(err, "store: register monitored address %s", address)
}

// DeleteAddressUTXOs implements UtxoIndexer (C3) step 2: removing UTXOs
// consumed by a block's non-coinbase inputs (spec.md §4.6).
func (s *SQLiteStore) DeleteAddressUTXOs(ctx context.Context, n domain.Network, outpoints []Outpoint) error {
	if len(outpoints) == 0 {
		return nil
	}

	clauses := make([]string, 0, len(outpoints))
	args := []any{n.Name}
	for _, o := range outpoints {
		clauses = append(clauses, "(txid = ? AND vout = ?)")
		args = append(args, o.Txid, o.Vout)
	}

	query := `DELETE FROM address_utxos WHERE network = ? AND (` + strings.Join(clauses, " OR ") + `)`
	_, err := s.q.ExecContext(ctx, query, args...)
	return errors.Wrap(err, "store: delete address utxos")
}

// InsertAddressUTXOs implements UtxoIndexer (C3) step 3: recording new
// outputs paying monitored addresses (spec.md §4.6).
func (s *SQLiteStore) InsertAddressUTXOs(ctx context.Context, utxos []domain.AddressUtxo) error {
	for _, u := range utxos {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO address_utxos (txid, vout, network, address, value, script_pubkey, block_height)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(txid, vout, network) DO UPDATE SET
				address = excluded.address, value = excluded.value,
				script_pubkey = excluded.script_pubkey, block_height = excluded.block_height`,
			u.Txid, u.Vout, u.Network.Name, u.Address, u.Value, u.ScriptPubkey, u.BlockHeight)
		if err != nil {
			return errors.Wrapf(err, "store: insert address utxo %s:%d", u.Txid, u.Vout)
		}
	}
	return nil
}

// ResolveAddressUtxos looks up the address/value of any existing
// AddressUtxo rows matching outpoints, before UtxoIndexer (C3) deletes
// them as spent. BlockProcessor (C7) step 8 uses this to attribute an
// "out" ledger entry to the spending transaction.
func (s *SQLiteStore) ResolveAddressUtxos(ctx context.Context, n domain.Network, outpoints []Outpoint) ([]domain.AddressUtxo, error) {
	if len(outpoints) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(outpoints))
	args := []any{n.Name}
	for _, o := range outpoints {
		clauses = append(clauses, "(txid = ? AND vout = ?)")
		args = append(args, o.Txid, o.Vout)
	}

	query := `SELECT txid, vout, address, value, script_pubkey, block_height FROM address_utxos
		WHERE network = ? AND (` + strings.Join(clauses, " OR ") + `)`
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "store: resolve address utxos")
	}
	defer rows.Close()

	var out []domain.AddressUtxo
	for rows.Next() {
		u := domain.AddressUtxo{Network: n}
		if err := rows.Scan(&u.Txid, &u.Vout, &u.Address, &u.Value, &u.ScriptPubkey, &u.BlockHeight); err != nil {
			return nil, errors.Wrap(err, "store: scan address utxo")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// InsertAddressTransactions implements §4.2 step 8: the in/out ledger for
// monitored addresses touched by a block.
func (s *SQLiteStore) InsertAddressTransactions(ctx context.Context, ats []domain.AddressTransaction) error {
	for _, a := range ats {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO address_transactions (txid, address, network, direction, amount, fee, block_height, block_time, confirmations, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(txid, address, network) DO UPDATE SET
				block_height = excluded.block_height, block_time = excluded.block_time,
				confirmations = excluded.confirmations`,
			a.Txid, a.Address, a.Network.Name, string(a.Direction), a.Amount, a.Fee,
			nullInt64(a.BlockHeight), nullTime(a.BlockTime), a.Confirmations, nowString())
		if err != nil {
			return errors.Wrapf(err, "store: insert address transaction %s/%s", a.Txid, a.Address)
		}
	}
	return nil
}

// IsMonitored backs AddressMonitor (C12) step 2's re-check under lock
// (spec.md §4.12).
func (s *SQLiteStore) IsMonitored(ctx context.Context, n domain.Network, address string) (bool, error) {
	row := s.q.QueryRowContext(ctx, `SELECT 1 FROM monitored_addresses WHERE address = ? AND network = ?`, address, n.Name)
	var one int
	err := row.Scan(&one)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, errors.Wrap(err, "store: is monitored")
}

// SeedMonitoredAddress implements AddressMonitor (C12) step 3: inserting
// the externally-fetched UTXO snapshot with block_height=0 (so the block
// loop refreshes values once a relevant block arrives), then upserting
// the MonitoredAddress row with source="api" (spec.md §4.12).
func (s *SQLiteStore) SeedMonitoredAddress(ctx context.Context, n domain.Network, address string, seedHeight int64, utxos []domain.AddressUtxo) error {
	return s.Atomic(ctx, func(tx Store) error {
		sx := tx.(*SQLiteStore)

		if err := sx.InsertAddressUTXOs(ctx, utxos); err != nil {
			return err
		}

		now := nowString()
		_, err := sx.q.ExecContext(ctx, `
			INSERT INTO monitored_addresses (address, network, source, seeded_at, seed_height, created_at)
			VALUES (?, ?, 'api', ?, ?, ?)
			ON CONFLICT(address, network) DO UPDATE SET
				source = 'api', seeded_at = excluded.seeded_at, seed_height = excluded.seed_height`,
			address, n.Name, now, seedHeight, now)
		return errors.Wrapf(err, "store: seed monitored address %s", address)
	})
}
