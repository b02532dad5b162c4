// Package analyzer implements TxAnalyzer (C1), spec.md §4.1: a pure
// function from raw transaction bytes to an optional AnalyzedTx. It does
// no I/O and touches no database; BlockProcessor and MempoolProcessor
// both call it synchronously per transaction.
package analyzer

import (
	"encoding/json"
	"sort"

	"github.com/CharmsDev/charms-explorer-sub000/internal/domain"
	"github.com/CharmsDev/charms-explorer-sub000/internal/spellparser"
	"github.com/CharmsDev/charms-explorer-sub000/internal/txdecode"
)

// broAppIDHash is the $BRO token identifier TxAnalyzer tags on sight,
// spec.md §4.1 "add bro if any asset's app_id matches the $BRO token
// identifier".
const broAppIDHash = "bro"

// dustLevels are the protocol's accepted holder-output values, spec.md
// §4.1: "the first output whose value is the protocol's dust-level
// (1000 or 330 sats)".
var dustLevels = map[int64]struct{}{1000: {}, 330: {}}

// AnalyzedTx is the pure output of Analyze, spec.md §4.1's AnalyzedTx.
type AnalyzedTx struct {
	Txid        string
	AssetType   domain.AssetType
	AppID       string
	Amount      int64
	Address     string
	CharmJSON   json.RawMessage
	AssetInfos  []spellparser.AssetInfo
	Tags        []string
	DexResult   *DexDetectionResult
	IsBeaming   bool
}

// DexDetectionResult is the DEX-order shape TxAnalyzer derives by walking
// the spell's app-public-inputs list, spec.md §4.1.
type DexDetectionResult struct {
	Platform   string
	Maker      string
	Side       domain.DexSide
	ExecType   domain.DexExecType
	Operation  string // CreateAskOrder | CreateBidOrder | FulfillAsk | FulfillBid | PartialFill | Cancel
	AssetAppID string
	Amount     int64
	Quantity   int64
}

// TxAnalyzer wraps the SpellParser capability (spec.md §1 "the core
// invokes a SpellParser capability"). It never re-verifies the ZK proof.
type TxAnalyzer struct {
	parser spellparser.SpellParser
}

// New constructs a TxAnalyzer backed by the given SpellParser.
func New(parser spellparser.SpellParser) *TxAnalyzer {
	return &TxAnalyzer{parser: parser}
}

// Analyze implements spec.md §4.1: analyze(txid, raw_hex, network) →
// AnalyzedTx?. Returns (nil, nil) when the transaction carries no spell —
// the ordinary, expected case for almost every transaction on the chain.
func (a *TxAnalyzer) Analyze(txid, rawHex string, network domain.Network) (*AnalyzedTx, error) {
	spell, err := a.parser.ExtractSpellNoVerify(rawHex)
	if err != nil {
		return nil, nil // spec.md §7: spell parse failure is silent
	}
	if spell == nil {
		return nil, nil
	}

	assetInfos := a.parser.ExtractAssetInfo(spell)

	if len(assetInfos) == 0 && isEmptySpell(spell.Raw) {
		return nil, nil
	}

	address := extractHolderAddress(rawHex, network)

	result := &AnalyzedTx{
		Txid:       txid,
		CharmJSON:  spell.Raw,
		AssetInfos: assetInfos,
		Address:    address,
		IsBeaming:  len(spell.BeamedOuts) > 0,
	}

	if len(assetInfos) > 0 {
		first := assetInfos[0]
		result.AppID = first.AppID
		result.Amount = first.Amount
		result.AssetType = domain.AssetTypeFromAppID(first.AppID)
	} else {
		result.AssetType = domain.AssetSpell
	}

	tags := deriveTags(spell, assetInfos)

	if dex := detectDexOrder(spell); dex != nil {
		result.DexResult = dex
		tags = append(tags, "charms-cast", dexOperationTag(dex.Operation))
	}

	result.Tags = sortedUniqueTags(tags)

	return result, nil
}

// isEmptySpell matches the dead `{"data": {}, "type": "spell", "detected":
// true}` shape: an envelope that decoded but carries no asset data. Such
// rows are never persisted (see DESIGN.md's Open Question decision).
func isEmptySpell(raw json.RawMessage) bool {
	var shape struct {
		Data     json.RawMessage `json:"data"`
		Type     string          `json:"type"`
		Detected bool            `json:"detected"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return false
	}
	if shape.Type != "spell" || !shape.Detected {
		return false
	}
	return string(shape.Data) == "{}" || string(shape.Data) == "null" || len(shape.Data) == 0
}

// deriveTags implements spec.md §4.1's non-exclusive tag derivation.
func deriveTags(spell *spellparser.NormalizedSpell, assets []spellparser.AssetInfo) []string {
	var tags []string
	if len(spell.BeamedOuts) > 0 {
		tags = append(tags, "beaming")
	}
	for _, a := range assets {
		if domain.AppIDHash(a.AppID) == broAppIDHash {
			tags = append(tags, "bro")
			break
		}
	}
	return tags
}

// sortedUniqueTags produces the deduplicated, sorted tag slice
// TxAnalyzer promises its callers: deriveTags' tags ("beaming", "bro")
// are combined with the DEX tags ("charms-cast" plus a dex-* operation
// tag), and downstream tag counters need a stable order.
func sortedUniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func dexOperationTag(op string) string {
	switch op {
	case "CreateAskOrder", "CreateBidOrder":
		return "dex-create"
	case "FulfillAsk", "FulfillBid":
		return "dex-fulfill"
	case "PartialFill":
		return "dex-partial-fill"
	case "Cancel":
		return "dex-cancel"
	default:
		return "dex"
	}
}

// detectDexOrder walks the app-public-inputs list for a DEX app and
// classifies its operation category, spec.md §4.1's matching table.
// Input-order and output-order sides are tracked separately (rather than
// one last-wins side) because the has-in x has-out case needs to tell
// same-side (cancel/replace) from different-side (fulfill) orders apart.
func detectDexOrder(spell *spellparser.NormalizedSpell) *DexDetectionResult {
	var hasIn, hasOut bool
	var inSide, outSide domain.DexSide
	var execType domain.DexExecType
	var appID string
	var amount, quantity int64

	for _, in := range spell.AppPublicInputs {
		if len(in.DexOrder) == 0 {
			continue
		}

		var order struct {
			Role      string `json:"role"` // "input" | "output"
			Side      string `json:"side"`
			ExecType  string `json:"exec_type"`
			Amount    int64  `json:"amount"`
			Quantity  int64  `json:"quantity"`
			Partial   bool   `json:"partial"`
			Cancelled bool   `json:"cancelled"`
		}
		if err := json.Unmarshal(in.DexOrder, &order); err != nil {
			continue // spec.md §7: DEX parse anomaly, log debug, omit order
		}

		switch order.Role {
		case "input":
			if !hasIn && order.Side != "" {
				inSide = domain.DexSide(order.Side)
			}
			hasIn = true
		case "output":
			if !hasOut && order.Side != "" {
				outSide = domain.DexSide(order.Side)
			}
			hasOut = true
		}
		if order.ExecType != "" {
			execType = domain.DexExecType(order.ExecType)
		}
		if order.Partial {
			execType = domain.ExecPartial
		}
		appID = in.AppID
		amount = order.Amount
		quantity = order.Quantity
	}

	if appID == "" {
		return nil
	}

	result := &DexDetectionResult{
		ExecType:   execType,
		AssetAppID: appID,
		Amount:     amount,
		Quantity:   quantity,
	}

	switch {
	case !hasIn && hasOut:
		result.Side = outSide
		switch outSide {
		case domain.SideAsk:
			result.Operation = "CreateAskOrder"
		case domain.SideBid:
			result.Operation = "CreateBidOrder"
		default:
			return nil
		}
	case hasIn && !hasOut:
		result.Side = inSide
		switch inSide {
		case domain.SideAsk:
			result.Operation = "FulfillAsk"
		case domain.SideBid:
			result.Operation = "FulfillBid"
		default:
			return nil
		}
	case hasIn && hasOut && inSide == outSide:
		result.Side = inSide
		if execType == domain.ExecPartial {
			result.Operation = "PartialFill"
		} else {
			result.Operation = "Cancel"
		}
	case hasIn && hasOut:
		result.Side = inSide
		switch inSide {
		case domain.SideAsk:
			result.Operation = "FulfillAsk"
		case domain.SideBid:
			result.Operation = "FulfillBid"
		default:
			return nil
		}
	default:
		return nil
	}

	return result
}

// extractHolderAddress decodes the destination address of the first
// output whose value is a recognized dust level, spec.md §4.1. Unknown
// or unparseable scripts are skipped silently (spec.md §7).
func extractHolderAddress(rawHex string, network domain.Network) string {
	decoded, err := txdecode.Decode(rawHex, network)
	if err != nil {
		return ""
	}

	for _, out := range decoded.Outputs {
		if _, ok := dustLevels[out.Value]; !ok {
			continue
		}
		if out.Address != "" {
			return out.Address
		}
	}
	return ""
}
