package model

import "testing"

func TestSideFromSize(t *testing.T) {
	cases := []struct {
		size string
		side string
		abs  string
	}{
		{"-2.5", "SHORT", "2.5"},
		{"1.25", "LONG", "1.25"},
		{"0", "LONG", "0"},
		{"", "LONG", "0"},
	}
	for _, c := range cases {
		side, abs, err := SideFromSize(c.size)
		if err != nil {
			t.Errorf("SideFromSize(%q) failed: %v", c.size, err)
			continue
		}
		if side != c.side || abs != c.abs {
			t.Errorf("SideFromSize(%q) = %q, %q; want %q, %q", c.size, side, abs, c.side, c.abs)
		}
	}

	if _, _, err := SideFromSize("not-a-number"); err == nil {
		t.Error("expected error for malformed size")
	}
}

func TestValidAmount(t *testing.T) {
	if !ValidAmount("123.456") || !ValidAmount("-0.001") || !ValidAmount("0") {
		t.Error("well-formed decimals rejected")
	}
	if ValidAmount("") || ValidAmount("1.2.3") || ValidAmount("abc") {
		t.Error("malformed decimals accepted")
	}
}

func TestRecordValidation(t *testing.T) {
	ok := Balance{
		WalletAddress: "dex1abc", ChainID: "dexchain-1",
		TokenSymbol: "USDC", TokenDenom: "uusdc",
		Amount: "1", Available: "1", Locked: "0",
	}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid balance rejected: %v", err)
	}

	bad := ok
	bad.Amount = "nope"
	if err := bad.Validate(); err == nil {
		t.Error("malformed amount accepted")
	}

	missing := ok
	missing.TokenDenom = ""
	if err := missing.Validate(); err == nil {
		t.Error("missing key field accepted")
	}

	if err := (Order{OrderID: "o", WalletAddress: "", Size: "1", RemainingSize: "1", Price: "1"}).Validate(); err == nil {
		t.Error("ownerless order accepted")
	}
}
