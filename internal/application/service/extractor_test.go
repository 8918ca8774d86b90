package service

import (
	"encoding/json"
	"errors"
	"testing"

	"dexsync/internal/domain/model"
)

func TestExtractRejectsOwnerlessSnapshot(t *testing.T) {
	e := NewExtractor()
	snap := &model.SessionSnapshot{
		Entries: map[string]string{"app.locale": "en-US"},
	}
	_, err := e.Extract(snap)
	if !errors.Is(err, ErrNoWalletAddress) {
		t.Fatalf("expected ErrNoWalletAddress, got %v", err)
	}
}

func TestExtractPrimaryPrecedence(t *testing.T) {
	e := NewExtractor()
	snap := &model.SessionSnapshot{
		Entries: map[string]string{
			"wallet.cosmos.address": "dex1cosmos",
			"wallet.evm.address":    "0xevm",
		},
	}
	batch, err := e.Extract(snap)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if batch.WalletAddress != "dex1cosmos" {
		t.Errorf("expected cosmos address as primary, got %q", batch.WalletAddress)
	}

	var links []model.WalletLink
	for _, r := range batch.Records {
		if l, ok := r.(model.WalletLink); ok {
			links = append(links, l)
		}
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 wallet links, got %d", len(links))
	}
	for _, l := range links {
		wantPrimary := l.Address == "dex1cosmos"
		if l.IsPrimary != wantPrimary {
			t.Errorf("link %q primary=%v, want %v", l.Address, l.IsPrimary, wantPrimary)
		}
	}
}

func TestExtractEvmFallbackPrimary(t *testing.T) {
	e := NewExtractor()
	snap := &model.SessionSnapshot{
		Entries: map[string]string{"wallet.evm.address": "0xevm"},
	}
	batch, err := e.Extract(snap)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if batch.WalletAddress != "0xevm" {
		t.Errorf("expected evm fallback primary, got %q", batch.WalletAddress)
	}
}

func TestExtractPersistedWinsOverFlat(t *testing.T) {
	e := NewExtractor()
	persisted, _ := json.Marshal(map[string]any{
		"wallets": []map[string]string{
			{"walletType": "cosmos", "address": "dex1persisted", "chainId": "dexchain-1"},
		},
		"preferences": map[string]any{
			"locale":            "ja-JP",
			"termsAcknowledged": true,
		},
	})
	snap := &model.SessionSnapshot{
		Entries: map[string]string{
			"app.locale":             "en-US",
			"app.display_currency":   "USD",
			"app.terms_acknowledged": "false",
		},
		Persisted: persisted,
	}
	batch, err := e.Extract(snap)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if batch.WalletAddress != "dex1persisted" {
		t.Errorf("expected persisted cosmos wallet as primary, got %q", batch.WalletAddress)
	}

	var prefs *model.UserPreferences
	for _, r := range batch.Records {
		if p, ok := r.(model.UserPreferences); ok {
			prefs = &p
		}
	}
	if prefs == nil {
		t.Fatal("expected a preferences record")
	}
	if prefs.Locale != "ja-JP" {
		t.Errorf("persisted locale should win over flat, got %q", prefs.Locale)
	}
	if prefs.DisplayCurrency != "USD" {
		t.Errorf("flat currency should fill missing persisted field, got %q", prefs.DisplayCurrency)
	}
	if !prefs.TermsAcknowledged {
		t.Error("persisted termsAcknowledged=true should win over flat false")
	}
}

func TestExtractDismissedAndTransactions(t *testing.T) {
	e := NewExtractor()
	persisted, _ := json.Marshal(map[string]any{
		"dismissed": map[string]bool{"banner-a": true, "banner-b": false, "": true},
		"affiliate": map[string]string{"code": "REF123"},
		"transfers": []map[string]any{
			{"txHash": "0x1", "type": "DEPOSIT", "amount": "10", "denom": "uusdc", "status": "CONFIRMED", "createdAt": 1000},
		},
		"swaps": []map[string]any{
			{"txHash": "0x2", "fromDenom": "uusdc", "toDenom": "uatom", "fromAmount": "5", "toAmount": "1", "status": "CONFIRMED", "createdAt": 1001},
		},
	})
	snap := &model.SessionSnapshot{
		Entries:   map[string]string{"wallet.cosmos.address": "dex1abc"},
		Persisted: persisted,
	}
	batch, err := e.Extract(snap)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	counts := map[model.Category]int{}
	for _, r := range batch.Records {
		counts[r.Category()]++
	}
	if counts[model.CategoryDismissedItem] != 1 {
		t.Errorf("expected 1 dismissed item (true, non-empty key), got %d", counts[model.CategoryDismissedItem])
	}
	if counts[model.CategoryAffiliate] != 1 {
		t.Errorf("expected 1 affiliate record, got %d", counts[model.CategoryAffiliate])
	}
	if counts[model.CategoryTransfer] != 1 || counts[model.CategorySwap] != 1 {
		t.Errorf("expected 1 transfer and 1 swap, got %d and %d",
			counts[model.CategoryTransfer], counts[model.CategorySwap])
	}

	for _, r := range batch.Records {
		if tr, ok := r.(model.Transfer); ok && tr.WalletAddress != "dex1abc" {
			t.Errorf("transfer not bound to primary address: %+v", tr)
		}
	}
}

func TestExtractDedupesWalletLinks(t *testing.T) {
	e := NewExtractor()
	persisted, _ := json.Marshal(map[string]any{
		"wallets": []map[string]string{
			{"walletType": "cosmos", "address": "dex1abc", "chainId": "dexchain-1"},
		},
	})
	snap := &model.SessionSnapshot{
		Entries:   map[string]string{"wallet.cosmos.address": "dex1abc"},
		Persisted: persisted,
	}
	batch, err := e.Extract(snap)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	links := 0
	for _, r := range batch.Records {
		if _, ok := r.(model.WalletLink); ok {
			links++
		}
	}
	if links != 1 {
		t.Errorf("expected deduplicated single link, got %d", links)
	}
}

func TestExtractMalformedPersistedBlob(t *testing.T) {
	e := NewExtractor()
	snap := &model.SessionSnapshot{
		Entries:   map[string]string{"wallet.cosmos.address": "dex1abc"},
		Persisted: json.RawMessage(`{not json`),
	}
	if _, err := e.Extract(snap); err == nil {
		t.Fatal("expected error for malformed persisted blob")
	}
}
