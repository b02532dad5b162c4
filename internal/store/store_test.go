package store

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/suite"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
)

type StoreSuite struct {
	suite.Suite
	ctx context.Context
	st  *SQLiteStore
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	st, err := Open(":memory:", false)
	s.Require().NoError(err)
	s.st = st
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.st.Close())
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) TestUpsertTransactions_PromotesFromPendingToConfirmed() {
	mempoolTx := domain.Transaction{
		Txid: "tx1", Network: domain.Testnet4, Raw: []byte("aa"), Status: domain.TxPending,
		Confirmations: 0, UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.st.UpsertTransactions(s.ctx, []domain.Transaction{mempoolTx}))

	height := int64(100)
	blockTx := domain.Transaction{
		Txid: "tx1", Network: domain.Testnet4, BlockHeight: &height, Ordinal: 0,
		Raw: []byte("aabbcc"), Status: domain.TxConfirmed, Confirmations: 1, UpdatedAt: time.Now(),
	}
	s.Require().NoError(s.st.UpsertTransactions(s.ctx, []domain.Transaction{blockTx}))

	row := s.st.q.QueryRowContext(s.ctx, `SELECT status, block_height FROM transactions WHERE txid = ?`, "tx1")
	var status string
	var h int64
	s.Require().NoError(row.Scan(&status, &h))
	s.Equal("confirmed", status)
	s.Equal(int64(100), h)
}

func (s *StoreSuite) TestUpsertCharms_ConflictDoesNothing() {
	c := domain.Charm{Txid: "tx1", Vout: 0, Network: domain.Testnet4, AppID: "app1", AssetType: domain.AssetToken, Amount: 5, DateCreated: time.Now()}
	s.Require().NoError(s.st.UpsertCharms(s.ctx, []domain.Charm{c}))

	c.Spent = true
	s.Require().NoError(s.st.UpsertCharms(s.ctx, []domain.Charm{c}))

	charms, err := s.st.FindUnspentCharms(s.ctx, domain.Testnet4, []Outpoint{{Txid: "tx1", Vout: 0}})
	s.Require().NoError(err)
	s.Require().Len(charms, 1) // still unspent: the second upsert was a no-op
}

func (s *StoreSuite) TestUpsertAssets_TokenAccumulatesIntoParentNFT() {
	nftAppID := "n/abc"
	tokenAppID := "t/abc"

	nft := domain.Asset{ID: "id1", AppID: nftAppID, AssetType: domain.AssetNFT, Network: domain.Testnet4, TotalSupply: 0, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.Require().NoError(s.st.UpsertAssets(s.ctx, []domain.Asset{nft}))

	token := domain.Asset{ID: "id2", AppID: tokenAppID, AssetType: domain.AssetToken, Network: domain.Testnet4, TotalSupply: 10, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.Require().NoError(s.st.UpsertAssets(s.ctx, []domain.Asset{token}))
	s.Require().NoError(s.st.UpsertAssets(s.ctx, []domain.Asset{token}))

	row := s.st.q.QueryRowContext(s.ctx, `SELECT total_supply FROM assets WHERE app_id = ? AND network = ?`, nftAppID, domain.Testnet4.Name)
	var total int64
	s.Require().NoError(row.Scan(&total))
	s.Equal(int64(20), total)
}

func (s *StoreSuite) TestMarkSpentAndAdjust_FlipsSpentAndReducesSupply() {
	nftAppID := "n/xyz"
	tokenAppID := "t/xyz"

	asset := domain.Asset{ID: "id1", AppID: nftAppID, AssetType: domain.AssetNFT, Network: domain.Testnet4, TotalSupply: 0, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.Require().NoError(s.st.UpsertAssets(s.ctx, []domain.Asset{asset}))

	token := domain.Asset{ID: "id2", AppID: tokenAppID, AssetType: domain.AssetToken, Network: domain.Testnet4, TotalSupply: 10, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.Require().NoError(s.st.UpsertAssets(s.ctx, []domain.Asset{token}))

	charm := domain.Charm{Txid: "tx1", Vout: 0, Network: domain.Testnet4, AppID: tokenAppID, AssetType: domain.AssetToken, Amount: 10, Address: "addr1", DateCreated: time.Now()}
	s.Require().NoError(s.st.UpsertCharms(s.ctx, []domain.Charm{charm}))

	s.Require().NoError(s.st.MarkSpentAndAdjust(s.ctx, domain.Testnet4, []domain.Charm{charm}))

	remaining, err := s.st.FindUnspentCharms(s.ctx, domain.Testnet4, []Outpoint{{Txid: "tx1", Vout: 0}})
	s.Require().NoError(err)
	s.Empty(remaining)

	row := s.st.q.QueryRowContext(s.ctx, `SELECT total_supply FROM assets WHERE app_id = ? AND network = ?`, nftAppID, domain.Testnet4.Name)
	var total int64
	s.Require().NoError(row.Scan(&total))
	s.Equal(int64(0), total)
}

func (s *StoreSuite) TestBlockStatusLifecycle() {
	st, err := s.st.GetBlockStatus(s.ctx, domain.Testnet4, 50)
	s.Require().NoError(err)
	s.Nil(st)

	s.Require().NoError(s.st.MarkDownloaded(s.ctx, domain.Testnet4, 50, "hash50", 3))
	s.Require().NoError(s.st.MarkProcessed(s.ctx, domain.Testnet4, 50, 2))

	status, err := s.st.GetBlockStatus(s.ctx, domain.Testnet4, 50)
	s.Require().NoError(err)
	s.Require().NotNil(status)
	s.True(status.Downloaded)
	s.True(status.Processed)
	s.False(status.Confirmed)
	s.Equal(2, status.CharmCount)

	last, ok, err := s.st.LastProcessedHeight(s.ctx, domain.Testnet4)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int64(50), last)

	s.Require().NoError(s.st.MarkConfirmed(s.ctx, domain.Testnet4, 50))
	status, err = s.st.GetBlockStatus(s.ctx, domain.Testnet4, 50)
	s.Require().NoError(err)
	s.True(status.Confirmed)
}

func (s *StoreSuite) TestUnconfirmedHeights_RespectsDepth() {
	s.Require().NoError(s.st.MarkDownloaded(s.ctx, domain.Testnet4, 10, "h10", 0))
	s.Require().NoError(s.st.MarkProcessed(s.ctx, domain.Testnet4, 10, 0))

	heights, err := s.st.UnconfirmedHeights(s.ctx, domain.Testnet4, 12, 6)
	s.Require().NoError(err)
	s.Empty(heights) // 12 - 10 + 1 = 3 < 6

	heights, err = s.st.UnconfirmedHeights(s.ctx, domain.Testnet4, 15, 6)
	s.Require().NoError(err)
	s.Equal([]int64{10}, heights) // 15 - 10 + 1 = 6 >= 6
}

func (s *StoreSuite) TestAtomic_RollsBackOnError() {
	boom := errors.New("synthetic failure")
	err := s.st.Atomic(s.ctx, func(tx Store) error {
		if e := tx.UpsertCharms(s.ctx, []domain.Charm{{Txid: "tx1", Vout: 0, Network: domain.Testnet4, AppID: "app1", DateCreated: time.Now()}}); e != nil {
			return e
		}
		return boom
	})
	s.Require().ErrorIs(err, boom)

	charms, findErr := s.st.FindUnspentCharms(s.ctx, domain.Testnet4, []Outpoint{{Txid: "tx1", Vout: 0}})
	s.Require().NoError(findErr)
	s.Empty(charms) // the charm insert was rolled back with the rest of the transaction
}
