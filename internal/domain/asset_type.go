package domain

import "strings"

// AssetType is the closed variant set charms fall into, keyed off the
// app_id prefix (spec.md §4.1, §9 "Polymorphism").
type AssetType string

const (
	AssetNFT   AssetType = "nft"
	AssetToken AssetType = "token"
	AssetDapp  AssetType = "dapp"
	AssetOther AssetType = "other"
	AssetSpell AssetType = "spell"
)

// AssetTypeFromAppID derives the asset type from an app_id's prefix, per
// spec.md §4.1: "n/ → nft, t/ → token, B/ → dapp, else → other".
func AssetTypeFromAppID(appID string) AssetType {
	switch {
	case strings.HasPrefix(appID, "n/"):
		return AssetNFT
	case strings.HasPrefix(appID, "t/"):
		return AssetToken
	case strings.HasPrefix(appID, "B/"):
		return AssetDapp
	default:
		return AssetOther
	}
}

// TokenAppIDToParentNFT rewrites a token app_id to the NFT app_id whose
// statistics it consolidates under, per spec.md §3 StatsHolder and §9
// "the rewriting rule t/<h> → n/<h> ... lives in a single helper".
func TokenAppIDToParentNFT(appID string) string {
	if strings.HasPrefix(appID, "t/") {
		return "n/" + strings.TrimPrefix(appID, "t/")
	}
	return appID
}

// AppIDHash returns the <hash> segment shared between an NFT's app_id and
// its child token's app_id, e.g. "n/abc:0" and "t/abc:0" both hash to "abc".
func AppIDHash(appID string) string {
	rest := appID
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		rest = rest[idx+1:]
	}
	if idx := strings.IndexByte(rest, ':'); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}
