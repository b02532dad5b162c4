package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// FindUnspentCharms implements SpentTracker (C2) step 1, spec.md §4.3:
// fetch unspent charm rows matching a block's consumed outpoints.
func (s *SQLiteStore) FindUnspentCharms(ctx context.Context, n domain.Network, outpoints []Outpoint) ([]domain.Charm, error) {
	if len(outpoints) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(outpoints))
	args := []any{n.Name}
	for _, o := range outpoints {
		clauses = append(clauses, "(txid = ? AND vout = ?)")
		args = append(args, o.Txid, o.Vout)
	}

	query := `SELECT txid, vout, app_id, asset_type, amount, address, block_height FROM charms
		WHERE network = ? AND spent = 0 AND (` + strings.Join(clauses, " OR ") + `)`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "store: find unspent charms")
	}
	defer rows.Close()

	var out []domain.Charm
	for rows.Next() {
		c := domain.Charm{Network: n}
		var address sql.NullString
		var assetType string
		var blockHeight sql.NullInt64
		if err := rows.Scan(&c.Txid, &c.Vout, &c.AppID, &assetType, &c.Amount, &address, &blockHeight); err != nil {
			return nil, errors.Wrap(err, "store: scan unspent charm")
		}
		c.Address = address.String
		c.AssetType = domain.AssetType(assetType)
		c.BlockHeight = nullInt64Out(blockHeight)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkSpentAndAdjust implements SpentTracker (C2) step 2, spec.md §4.3:
// flips spent=true on each row and rolls back the owning asset's
// total_supply (tokens only; NFTs are no-ops for supply) plus the
// holder's StatsHolder balance — by amount for tokens, by 1 for NFTs
// (ownership count). StatsHolder rows that hit zero are deleted.
func (s *SQLiteStore) MarkSpentAndAdjust(ctx context.Context, n domain.Network, spent []domain.Charm) error {
	for _, c := range spent {
		if _, err := s.q.ExecContext(ctx, `
			UPDATE charms SET spent = 1 WHERE txid = ? AND vout = ? AND network = ?`,
			c.Txid, c.Vout, n.Name); err != nil {
			return errors.Wrapf(err, "store: mark spent %s:%d", c.Txid, c.Vout)
		}

		switch c.AssetType {
		case domain.AssetToken:
			parentAppID := domain.TokenAppIDToParentNFT(c.AppID)
			if err := s.bumpAssetSupply(ctx, n, parentAppID, -c.Amount); err != nil {
				return err
			}
			if c.Address != "" {
				if err := s.adjustStatsHolder(ctx, n, parentAppID, c.Address, -c.Amount); err != nil {
					return err
				}
			}
		case domain.AssetNFT:
			if c.Address != "" {
				if err := s.adjustStatsHolder(ctx, n, c.AppID, c.Address, -1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (s *SQLiteStore) adjustStatsHolder(ctx context.Context, n domain.Network, appID, address string, delta int64) error {
	if _, err := s.q.ExecContext(ctx, `
		UPDATE stats_holders SET total_amount = total_amount + ?, updated_at = ?
		WHERE app_id = ? AND address = ? AND network = ?`,
		delta, nowString(), appID, address, n.Name); err != nil {
		return errors.Wrapf(err, "store: adjust stats holder %s/%s", appID, address)
	}

	// StatsHolder rows that hit zero may be deleted (spec.md §3).
	if _, err := s.q.ExecContext(ctx, `
		DELETE FROM stats_holders WHERE app_id = ? AND address = ? AND network = ? AND total_amount <= 0`,
		appID, address, n.Name); err != nil {
		return errors.Wrapf(err, "store: prune zero stats holder %s/%s", appID, address)
	}
	return nil
}

// UpsertStatsHolder increments (or creates) a holder balance. Used both
// by BlockProcessor when a new charm output lands and by SpentTracker's
// negative-delta path above.
func (s *SQLiteStore) UpsertStatsHolder(ctx context.Context, n domain.Network, appID, address string, delta int64, height int64) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO stats_holders (app_id, address, network, total_amount, charm_count, first_seen_block, last_updated_block, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
		ON CONFLICT(app_id, address, network) DO UPDATE SET
			total_amount = stats_holders.total_amount + excluded.total_amount,
			charm_count = stats_holders.charm_count + 1,
			last_updated_block = excluded.last_updated_block,
			updated_at = excluded.updated_at`,
		appID, address, n.Name, delta, height, height, nowString(), nowString())
	return errors.Wrapf(err, "store: upsert stats holder %s/%s", appID, address)
}
