// Package domain holds the entities described in the data model: the
// network partition key and the per-network, denormalized projection rows
// the indexer maintains.
package domain

import "fmt"

// Kind identifies a blockchain family. The indexer only implements Bitcoin
// today, but the Network value keeps the door open without a schema change.
type Kind string

// Supported blockchain kinds.
const (
	KindBitcoin Kind = "bitcoin"
)

// Network is the partition key used across every table in §3 of the spec.
type Network struct {
	Kind Kind
	Name string // "mainnet", "testnet4", ...
}

// String renders a Network the way it appears in logs and table keys.
func (n Network) String() string {
	return fmt.Sprintf("%s/%s", n.Kind, n.Name)
}

// Mainnet and Testnet4 are the two networks spec.md §6 names explicitly.
var (
	Mainnet  = Network{Kind: KindBitcoin, Name: "mainnet"}
	Testnet4 = Network{Kind: KindBitcoin, Name: "testnet4"}
)
