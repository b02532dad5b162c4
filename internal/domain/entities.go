package domain

import (
	"encoding/json"
	"time"
)

// TxStatus is the lifecycle state of a Transaction row (spec.md §3).
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
)

// BlockStatus tracks one (network, blockchain_kind, height) block through
// download → process → confirm. Primary key (Network, Height). Never
// deleted; invariants: Processed ⇒ Downloaded, Confirmed only once
// tip-height+1 ≥ ConfirmationDepth.
type BlockStatus struct {
	Network      Network
	Height       int64
	BlockHash    string
	TxCount      int
	CharmCount   int
	Downloaded   bool
	Processed    bool
	Confirmed    bool
	DownloadedAt *time.Time
	ProcessedAt  *time.Time
}

// Transaction is the raw+derived projection of one on-chain (or mempool)
// transaction. block_height == nil iff status == pending (spec.md §3).
type Transaction struct {
	Txid             string
	Network          Network
	BlockHeight      *int64
	Ordinal          int
	Raw              json.RawMessage
	Charm            json.RawMessage
	Status           TxStatus
	Confirmations    int64
	UpdatedAt        time.Time
	MempoolDetectedAt *time.Time
}

// Charm is one output-level projection of a spell (spec.md §3, GLOSSARY).
type Charm struct {
	Txid              string
	Vout              int
	Network           Network
	AppID             string
	AssetType         AssetType
	Amount            int64
	Address           string
	Data              json.RawMessage
	BlockHeight       *int64
	DateCreated       time.Time
	Spent             bool
	Tags              []string
	Verified          bool
	MempoolDetectedAt *time.Time
}

// Asset is the owning record of an app_id (spec.md §3). NFTs start at
// total_supply == 0; tokens accumulate mint amounts into their own supply
// and into the parent NFT's supply pool (§4.5).
type Asset struct {
	ID          string
	AppID       string
	Txid        string
	VoutIndex   int
	BlockHeight int64
	AssetType   AssetType
	Network     Network
	Name        string
	Symbol      string
	Description string
	ImageURL    string
	Decimals    int16
	TotalSupply int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Data        json.RawMessage
}

// StatsHolder is a per-(app_id, address) balance, consolidated under the
// parent NFT's app_id for token balances (spec.md §3).
type StatsHolder struct {
	AppID           string
	Address         string
	Network         Network
	TotalAmount     int64
	CharmCount      int32
	FirstSeenBlock  int64
	LastUpdatedBlock int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AddressUtxo is one unspent output paying a monitored address (spec.md §3).
type AddressUtxo struct {
	Txid         string
	Vout         int
	Network      Network
	Address      string
	Value        int64
	ScriptPubkey string
	BlockHeight  int64
}

// MonitoredAddressSource records who first asked the indexer to track an
// address: the block loop auto-registering a charm holder, or the API
// seeding it on demand (spec.md §3, §4.12).
type MonitoredAddressSource string

const (
	SourceIndexer MonitoredAddressSource = "indexer"
	SourceAPI     MonitoredAddressSource = "api"
)

// MonitoredAddress is the entry criterion for AddressUtxo/AddressTransaction
// tracking (spec.md §3).
type MonitoredAddress struct {
	Address    string
	Network    Network
	Source     MonitoredAddressSource
	SeededAt   *time.Time
	SeedHeight *int64
	CreatedAt  time.Time
}

// AddressDirection is the in/out ledger direction of an AddressTransaction.
type AddressDirection string

const (
	DirectionIn  AddressDirection = "in"
	DirectionOut AddressDirection = "out"
)

// AddressTransaction is one ledger line for a monitored address touched by
// a transaction (spec.md §3, §4.2 step 8).
type AddressTransaction struct {
	Txid          string
	Address       string
	Network       Network
	Direction     AddressDirection
	Amount        int64
	Fee           int64
	BlockHeight   *int64
	BlockTime     *time.Time
	Confirmations int64
	CreatedAt     time.Time
}

// MempoolSpend records that an unconfirmed tx is consuming a given
// outpoint (spec.md §3, §4.10).
type MempoolSpend struct {
	SpendingTxid string
	SpentTxid    string
	SpentVout    int
	Network      Network
	CreatedAt    time.Time
}

// DexSide and DexExecType are the closed variant sets for DexOrder.
type DexSide string
type DexExecType string
type DexOrderStatus string

const (
	SideAsk DexSide = "ask"
	SideBid DexSide = "bid"

	ExecAllOrNone DexExecType = "all_or_none"
	ExecPartial   DexExecType = "partial"

	OrderOpen      DexOrderStatus = "open"
	OrderPartial   DexOrderStatus = "partial"
	OrderFilled    DexOrderStatus = "filled"
	OrderCancelled DexOrderStatus = "cancelled"
)

// DexOrder is a spell encoding ask/bid/partial-fill/cancel intent under a
// known DEX application (spec.md §3, §4.1).
type DexOrder struct {
	OrderID        string
	Txid           string
	Vout           int
	Network        Network
	BlockHeight    *int64
	Platform       string
	Maker          string
	Side           DexSide
	ExecType       DexExecType
	PriceNum       int64
	PriceDen       int64
	Amount         int64
	Quantity       int64
	FilledAmount   int64
	FilledQuantity int64
	AssetAppID     string
	Status         DexOrderStatus
	ParentOrderID  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Summary is the per-network counters and chain-tip mirror row (spec.md §3).
type Summary struct {
	Network             Network
	LastProcessedBlock  int64
	LatestConfirmedBlock int64
	TotalCharms          int64
	CharmsByType         map[AssetType]int64
	TagCounters          map[string]int64
	BitcoinNodeStatus    string
	BitcoinBlockCount    int64
	BitcoinBestBlockHash string
	UpdatedAt            time.Time
}
