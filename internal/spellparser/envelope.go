package spellparser

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

// protocolTag marks the witness envelope as carrying a spell: the ASCII
// bytes "spell", used the way ordinals-style witness envelopes use a
// protocol tag to distinguish their payload from an unrelated taproot
// script-path spend.
var protocolTag = []byte("spell")

// envelopeSpell is the wire-format JSON the committed witness script
// carries. It is deliberately permissive — unknown fields are preserved
// verbatim in NormalizedSpell.Raw for TxAnalyzer to re-derive tags from.
type envelopeSpell struct {
	AppPublicInputs []struct {
		AppID     string          `json:"app_id"`
		AssetType string          `json:"asset_type"`
		Amount    int64           `json:"amount"`
		VoutIndex int             `json:"vout_index"`
		DexOrder  json.RawMessage `json:"dex_order,omitempty"`
	} `json:"app_public_inputs"`
	BeamedOuts []int `json:"beamed_outs,omitempty"`
}

// EnvelopeParser is the default SpellParser: it looks for a taproot
// witness envelope (OP_FALSE OP_IF <protocol tag> <data pushes> OP_ENDIF)
// in each input's witness stack, the same commit-reveal shape ordinals
// and runestones use to carry arbitrary data in a Bitcoin transaction
// without touching any output script. It does not check the ZK proof
// the envelope's data additionally asserts — spec.md §4.1 forbids that.
type EnvelopeParser struct{}

// NewEnvelopeParser constructs the default SpellParser.
func NewEnvelopeParser() *EnvelopeParser { return &EnvelopeParser{} }

// ExtractSpellNoVerify implements SpellParser. Returns (nil, nil) when no
// transaction input carries a recognizable envelope — that is the normal
// "not a spell" case, not an error (spec.md §7 "Spell parse failure ...
// silent; tx contributes nothing").
func (p *EnvelopeParser) ExtractSpellNoVerify(rawHex string) (*NormalizedSpell, error) {
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, errors.Wrap(err, "spellparser: decode hex")
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "spellparser: deserialize tx")
	}

	for _, in := range tx.TxIn {
		payload, ok := findEnvelope(in.Witness)
		if !ok {
			continue
		}

		var body envelopeSpell
		if err := json.Unmarshal(payload, &body); err != nil {
			continue
		}

		spell := &NormalizedSpell{
			BeamedOuts: body.BeamedOuts,
			Raw:        json.RawMessage(payload),
		}
		for _, in := range body.AppPublicInputs {
			spell.AppPublicInputs = append(spell.AppPublicInputs, AppPublicInput{
				AppID:     in.AppID,
				AssetType: in.AssetType,
				Amount:    in.Amount,
				VoutIndex: in.VoutIndex,
				DexOrder:  in.DexOrder,
			})
		}
		return spell, nil
	}

	return nil, nil
}

// ExtractAssetInfo implements SpellParser, spec.md §6
// "extract_asset_info(spell) → [AssetInfo]".
func (p *EnvelopeParser) ExtractAssetInfo(spell *NormalizedSpell) []AssetInfo {
	if spell == nil {
		return nil
	}
	out := make([]AssetInfo, 0, len(spell.AppPublicInputs))
	for _, in := range spell.AppPublicInputs {
		out = append(out, AssetInfo{
			AppID:     in.AppID,
			AssetType: in.AssetType,
			Amount:    in.Amount,
			VoutIndex: in.VoutIndex,
		})
	}
	return out
}

// findEnvelope scans a taproot witness stack for a script item containing
// OP_FALSE OP_IF <tag> <data...> OP_ENDIF and returns the concatenated
// data pushes. The tapscript lives as one of the witness items (not the
// control block, not the annex); we try every item since position varies
// with script-path depth.
func findEnvelope(witness wire.TxWitness) ([]byte, bool) {
	for _, item := range witness {
		if data, ok := extractFromScript(item); ok {
			return data, true
		}
	}
	return nil, false
}

func extractFromScript(script []byte) ([]byte, bool) {
	tok := txscript.MakeScriptTokenizer(0, script)

	if !tok.Next() || tok.Opcode() != txscript.OP_FALSE {
		return nil, false
	}
	if !tok.Next() || tok.Opcode() != txscript.OP_IF {
		return nil, false
	}
	if !tok.Next() || !bytes.Equal(tok.Data(), protocolTag) {
		return nil, false
	}

	var payload bytes.Buffer
	for tok.Next() {
		if tok.Opcode() == txscript.OP_ENDIF {
			if tok.Err() != nil {
				return nil, false
			}
			return payload.Bytes(), payload.Len() > 0
		}
		payload.Write(tok.Data())
	}
	return nil, false
}
