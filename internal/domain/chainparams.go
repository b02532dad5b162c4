package domain

import "github.com/btcsuite/btcd/chaincfg"

// ChainParams returns the address-encoding parameters for a network.
// btcsuite ships no distinct testnet4 params (it postdates the library's
// last tagged release that introduced new param sets); testnet4 shares
// bitcoin testnet's address version bytes, so TestNet3Params decodes it
// correctly for the prefix-matching this indexer needs.
func (n Network) ChainParams() *chaincfg.Params {
	switch n.Name {
	case "mainnet":
		return &chaincfg.MainNetParams
	default:
		return &chaincfg.TestNet3Params
	}
}
