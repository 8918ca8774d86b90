package model

import "github.com/shopspring/decimal"

// Amounts travel as decimal strings end to end; floats would lose
// precision on chain-scale integers.

// NormalizeAmount maps an absent upstream numeric to "0" so downstream
// arithmetic never meets a null.
func NormalizeAmount(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// ValidAmount reports whether s parses as a decimal. Empty is invalid;
// callers normalize first.
func ValidAmount(s string) bool {
	_, err := decimal.NewFromString(s)
	return err == nil
}

// SideFromSize derives a position side from the sign of the reported
// size and returns the absolute size to store.
func SideFromSize(size string) (side string, abs string, err error) {
	d, err := decimal.NewFromString(NormalizeAmount(size))
	if err != nil {
		return "", "", err
	}
	if d.Sign() < 0 {
		return "SHORT", d.Abs().String(), nil
	}
	return "LONG", d.String(), nil
}
