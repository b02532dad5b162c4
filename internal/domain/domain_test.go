package domain

import "testing"

func TestAssetTypeFromAppID(t *testing.T) {
	cases := []struct {
		appID string
		want  AssetType
	}{
		{"n/abc:0", AssetNFT},
		{"t/abc:0", AssetToken},
		{"B/abc:0", AssetDapp},
		{"x/abc:0", AssetOther},
		{"", AssetOther},
	}
	for _, c := range cases {
		if got := AssetTypeFromAppID(c.appID); got != c.want {
			t.Errorf("AssetTypeFromAppID(%q) = %q, want %q", c.appID, got, c.want)
		}
	}
}

func TestTokenAppIDToParentNFT(t *testing.T) {
	cases := []struct {
		appID string
		want  string
	}{
		{"t/abc:0", "n/abc:0"},
		{"n/abc:0", "n/abc:0"}, // already an NFT id, no-op
		{"B/abc:0", "B/abc:0"}, // dapp id, no-op
	}
	for _, c := range cases {
		if got := TokenAppIDToParentNFT(c.appID); got != c.want {
			t.Errorf("TokenAppIDToParentNFT(%q) = %q, want %q", c.appID, got, c.want)
		}
	}
}

func TestAppIDHash(t *testing.T) {
	cases := []struct {
		appID string
		want  string
	}{
		{"n/abc:0", "abc"},
		{"t/abc:0", "abc"},
		{"abc:0", "abc"},
		{"abc", "abc"},
	}
	for _, c := range cases {
		if got := AppIDHash(c.appID); got != c.want {
			t.Errorf("AppIDHash(%q) = %q, want %q", c.appID, got, c.want)
		}
	}
}

func TestNetwork_String(t *testing.T) {
	if got := Testnet4.String(); got != "bitcoin/testnet4" {
		t.Errorf("Testnet4.String() = %q, want %q", got, "bitcoin/testnet4")
	}
}
