package store

import (
	"context"
	"database/sql"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

// UpsertTransactions implements C5's transaction upsert, spec.md §4.5:
// on (txid, network) conflict, block_height = COALESCE(new, old),
// status flips to confirmed once a block_height lands, confirmations is
// monotonic (max), and raw/charm are only overwritten when non-empty —
// "the rule that lets mempool rows get upgraded by block rows without
// data loss". The raw hex blob is snappy-compressed before it hits the
// largest column in the schema (SPEC_FULL.md domain stack).
func (s *SQLiteStore) UpsertTransactions(ctx context.Context, txs []domain.Transaction) error {
	for _, t := range txs {
		var rawCompressed []byte
		if len(t.Raw) > 0 {
			rawCompressed = snappy.Encode(nil, t.Raw)
		}

		_, err := s.q.ExecContext(ctx, `
			INSERT INTO transactions (txid, network, blockchain, block_height, ordinal, raw, charm, status, confirmations, updated_at, mempool_detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(txid, network) DO UPDATE SET
				block_height = COALESCE(excluded.block_height, transactions.block_height),
				status = CASE WHEN excluded.block_height IS NOT NULL THEN 'confirmed' ELSE transactions.status END,
				confirmations = MAX(excluded.confirmations, transactions.confirmations),
				raw = CASE WHEN length(excluded.raw) > 0 THEN excluded.raw ELSE transactions.raw END,
				charm = CASE WHEN excluded.charm IS NOT NULL AND excluded.charm != '' THEN excluded.charm ELSE transactions.charm END,
				ordinal = excluded.ordinal,
				updated_at = excluded.updated_at,
				mempool_detected_at = COALESCE(transactions.mempool_detected_at, excluded.mempool_detected_at)`,
			t.Txid, t.Network.Name, string(t.Network.Kind), nullInt64(t.BlockHeight), t.Ordinal,
			rawCompressed, string(t.Charm), string(t.Status), t.Confirmations, timeString(t.UpdatedAt),
			nullTime(t.MempoolDetectedAt))
		if err != nil {
			return errors.Wrapf(err, "store: upsert transaction %s", t.Txid)
		}
	}
	return nil
}

// DecodeRaw reverses the snappy compression UpsertTransactions applies.
// No caller in this module uses it; CachedTransactionsAtHeight decodes
// the stored hex itself.
func DecodeRaw(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	return snappy.Decode(nil, compressed)
}

// UpsertCharms implements C5's charm upsert, spec.md §4.5: on (txid,
// vout, network) conflict, do nothing — spent/unspent state is owned by
// SpentTracker (C2), not by this idempotent write path.
func (s *SQLiteStore) UpsertCharms(ctx context.Context, charms []domain.Charm) error {
	for _, c := range charms {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO charms (txid, vout, network, blockchain, app_id, asset_type, amount, address, data, block_height, date_created, spent, tags, verified, mempool_detected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(txid, vout, network) DO NOTHING`,
			c.Txid, c.Vout, c.Network.Name, string(c.Network.Kind), c.AppID, string(c.AssetType), c.Amount,
			c.Address, string(c.Data), nullInt64(c.BlockHeight), timeString(c.DateCreated), c.Spent,
			joinTags(c.Tags), c.Verified, nullTime(c.MempoolDetectedAt))
		if err != nil {
			return errors.Wrapf(err, "store: upsert charm %s:%d", c.Txid, c.Vout)
		}
	}
	return nil
}

// UpsertAssets implements C5's asset accumulation rule, spec.md §4.5:
// NFTs are created with total_supply=0; a new token either tops up its
// parent NFT (copying the parent's metadata) or, lacking a parent,
// becomes its own root with decimals=8. On conflict, total_supply sums
// and name/symbol/description/image_url/decimals are only set once.
func (s *SQLiteStore) UpsertAssets(ctx context.Context, assets []domain.Asset) error {
	for _, a := range assets {
		if err := s.upsertOneAsset(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) upsertOneAsset(ctx context.Context, a domain.Asset) error {
	if a.AssetType == domain.AssetToken {
		parentAppID := domain.TokenAppIDToParentNFT(a.AppID)
		parent, err := s.getAssetByAppID(ctx, a.Network, parentAppID)
		if err != nil {
			return err
		}
		if parent != nil {
			if err := s.bumpAssetSupply(ctx, a.Network, parentAppID, a.TotalSupply); err != nil {
				return err
			}
			// Copy parent metadata into the token row so both sides
			// present a consistent name/symbol/image.
			a.Name, a.Symbol, a.Description, a.ImageURL, a.Decimals = parent.Name, parent.Symbol, parent.Description, parent.ImageURL, parent.Decimals
		} else if a.Decimals == 0 {
			a.Decimals = 8
		}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO assets (id, app_id, network, txid, vout_index, block_height, asset_type, name, symbol, description, image_url, decimals, total_supply, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(app_id, network) DO UPDATE SET
			total_supply = assets.total_supply + excluded.total_supply,
			updated_at = excluded.updated_at,
			name = CASE WHEN assets.name IS NULL OR assets.name = '' THEN excluded.name ELSE assets.name END,
			symbol = CASE WHEN assets.symbol IS NULL OR assets.symbol = '' THEN excluded.symbol ELSE assets.symbol END,
			description = CASE WHEN assets.description IS NULL OR assets.description = '' THEN excluded.description ELSE assets.description END,
			image_url = CASE WHEN assets.image_url IS NULL OR assets.image_url = '' THEN excluded.image_url ELSE assets.image_url END`,
		a.ID, a.AppID, a.Network.Name, a.Txid, a.VoutIndex, a.BlockHeight, string(a.AssetType),
		a.Name, a.Symbol, a.Description, a.ImageURL, a.Decimals, a.TotalSupply,
		timeString(a.CreatedAt), timeString(a.UpdatedAt), string(a.Data))
	return errors.Wrapf(err, "store: upsert asset %s", a.AppID)
}

func (s *SQLiteStore) bumpAssetSupply(ctx context.Context, n domain.Network, appID string, delta int64) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE assets SET total_supply = total_supply + ?, updated_at = ?
		WHERE app_id = ? AND network = ?`,
		delta, nowString(), appID, n.Name)
	return errors.Wrapf(err, "store: bump asset supply %s", appID)
}

func (s *SQLiteStore) getAssetByAppID(ctx context.Context, n domain.Network, appID string) (*domain.Asset, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, txid, vout_index, block_height, asset_type, name, symbol, description, image_url, decimals, total_supply, created_at, updated_at, data
		FROM assets WHERE app_id = ? AND network = ?`, appID, n.Name)

	var a domain.Asset
	a.AppID, a.Network = appID, n
	var name, symbol, desc, img, data sql.NullString
	var createdAt, updatedAt string
	var assetType string

	err := row.Scan(&a.ID, &a.Txid, &a.VoutIndex, &a.BlockHeight, &assetType, &name, &symbol, &desc, &img, &a.Decimals, &a.TotalSupply, &createdAt, &updatedAt, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: get asset %s", appID)
	}

	a.AssetType = domain.AssetType(assetType)
	a.Name, a.Symbol, a.Description, a.ImageURL = name.String, symbol.String, desc.String, img.String
	a.Data = []byte(data.String)
	a.CreatedAt, a.UpdatedAt = parseTime(createdAt), parseTime(updatedAt)
	return &a, nil
}

// UpsertDexOrders persists DEX orders idempotently. Like transactions,
// block_height is promoted from NULL to a real height without
// clobbering fill progress recorded since the order was first seen in
// the mempool (spec.md §4.4, §3 DexOrder state machine).
func (s *SQLiteStore) UpsertDexOrders(ctx context.Context, orders []domain.DexOrder) error {
	for _, o := range orders {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO dex_orders (order_id, txid, vout, network, blockchain, block_height, platform, maker, side, exec_type, price_num, price_den, amount, quantity, filled_amount, filled_quantity, asset_app_id, status, parent_order_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(order_id) DO UPDATE SET
				block_height = COALESCE(excluded.block_height, dex_orders.block_height),
				filled_amount = MAX(excluded.filled_amount, dex_orders.filled_amount),
				filled_quantity = MAX(excluded.filled_quantity, dex_orders.filled_quantity),
				status = excluded.status,
				updated_at = excluded.updated_at`,
			o.OrderID, o.Txid, o.Vout, o.Network.Name, string(o.Network.Kind), nullInt64(o.BlockHeight),
			o.Platform, o.Maker, string(o.Side), string(o.ExecType), o.PriceNum, o.PriceDen, o.Amount, o.Quantity,
			o.FilledAmount, o.FilledQuantity, o.AssetAppID, string(o.Status), o.ParentOrderID,
			timeString(o.CreatedAt), timeString(o.UpdatedAt))
		if err != nil {
			return errors.Wrapf(err, "store: upsert dex order %s", o.OrderID)
		}
	}
	return nil
}
