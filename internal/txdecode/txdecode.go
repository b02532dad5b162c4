// Package txdecode centralizes raw Bitcoin transaction decoding shared
// by TxAnalyzer (C1), UtxoIndexer (C3) and SpentTracker (C2)'s outpoint
// collection, so the wire-format parsing lives in exactly one place.
package txdecode

import (
	"bytes"
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/store"
)

// Output is one decoded transaction output.
type Output struct {
	Vout         int
	Value        int64
	Address      string // "" if the script could not be decoded to an address
	ScriptPubkey string // hex
}

// Tx is a fully decoded transaction: its txid, the outpoints it
// consumes (empty for coinbase), and every output.
type Tx struct {
	Txid     string
	Coinbase bool
	Inputs   []store.Outpoint
	Outputs  []Output
}

// Decode parses rawHex into a Tx, resolving output addresses under
// network's address format. Unparseable scripts yield Address == "",
// per spec.md §4.6 "unknown/unparseable script outputs are silently
// skipped".
func Decode(rawHex string, network domain.Network) (*Tx, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, errors.Wrap(err, "txdecode: decode hex")
	}

	var msg wire.MsgTx
	if err := msg.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "txdecode: deserialize")
	}

	params := network.ChainParams()
	out := &Tx{Txid: msg.TxHash().String()}

	out.Coinbase = len(msg.TxIn) == 1 && msg.TxIn[0].PreviousOutPoint.Index == 0xffffffff &&
		msg.TxIn[0].PreviousOutPoint.Hash == [32]byte{}

	if !out.Coinbase {
		for _, in := range msg.TxIn {
			out.Inputs = append(out.Inputs, store.Outpoint{
				Txid: in.PreviousOutPoint.Hash.String(),
				Vout: int(in.PreviousOutPoint.Index),
			})
		}
	}

	for i, txOut := range msg.TxOut {
		address := ""
		if _, addrs, _, err := txscript.ExtractPkScriptAddrs(txOut.PkScript, params); err == nil && len(addrs) > 0 {
			address = addrs[0].EncodeAddress()
		}
		out.Outputs = append(out.Outputs, Output{
			Vout:         i,
			Value:        txOut.Value,
			Address:      address,
			ScriptPubkey: hex.EncodeToString(txOut.PkScript),
		})
	}

	return out, nil
}
