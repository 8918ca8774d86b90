package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dexsync/internal/domain/model"
)

func seedAccount(t *testing.T, orch *Orchestrator, addr string) {
	t.Helper()
	batch := &model.Batch{WalletAddress: addr}
	batch.Add(validPosition(addr, "pos-1"))
	batch.Add(model.Balance{
		WalletAddress: addr, ChainID: "dexchain-1",
		TokenSymbol: "USDC", TokenDenom: "uusdc",
		Amount: "100", Available: "100", Locked: "0",
	})
	batch.Add(model.Market{
		MarketID: "BTC-USD", StepSize: "0.001", TickSize: "1",
		MinOrderSize: "0.001", InitialMarginFraction: "0.05",
		MaintenanceMarginFraction: "0.03", Status: "ACTIVE",
	})
	if _, err := orch.RunSync(context.Background(), model.SourceLedger, addr, batch); err != nil {
		t.Fatalf("seed sync failed: %v", err)
	}
}

func TestOverviewAggregates(t *testing.T) {
	store, cache, orch := newTestDeps(t)
	accounts := NewAccounts(store, cache)
	ctx := context.Background()

	seedAccount(t, orch, "dex1abc")

	b, err := accounts.Overview(ctx, "dex1abc")
	if err != nil {
		t.Fatalf("Overview failed: %v", err)
	}

	var ov model.AccountOverview
	if err := json.Unmarshal(b, &ov); err != nil {
		t.Fatalf("overview not valid JSON: %v", err)
	}
	if ov.WalletAddress != "dex1abc" {
		t.Errorf("unexpected wallet address %q", ov.WalletAddress)
	}
	if len(ov.Balances) != 1 || len(ov.OpenPositions) != 1 {
		t.Errorf("unexpected aggregate counts: %+v", ov.Summary)
	}
	if ov.Summary.BalanceCount != 1 || ov.Summary.OpenPositionCount != 1 {
		t.Errorf("summary counts wrong: %+v", ov.Summary)
	}
	if ov.Summary.SyncStatus[string(model.SourceLedger)] != model.SyncStatusSuccess {
		t.Errorf("summary missing sync status: %+v", ov.Summary)
	}
}

func TestOverviewServedFromCache(t *testing.T) {
	store, cache, orch := newTestDeps(t)
	accounts := NewAccounts(store, cache)
	ctx := context.Background()

	seedAccount(t, orch, "dex1abc")

	first, err := accounts.Overview(ctx, "dex1abc")
	if err != nil {
		t.Fatalf("first Overview failed: %v", err)
	}

	// poison the cache entry: a hit must return it verbatim
	if err := cache.Set(ctx, "dex1abc", "overview", []byte(`{"cached":true}`)); err != nil {
		t.Fatalf("cache set failed: %v", err)
	}
	second, err := accounts.Overview(ctx, "dex1abc")
	if err != nil {
		t.Fatalf("second Overview failed: %v", err)
	}
	if string(second) != `{"cached":true}` {
		t.Errorf("expected cache hit, got %s", second)
	}
	if string(first) == string(second) {
		t.Error("test setup broken: poisoned entry equals real overview")
	}
}

func TestMarketsGlobalCache(t *testing.T) {
	store, cache, orch := newTestDeps(t)
	accounts := NewAccounts(store, cache)
	ctx := context.Background()

	seedAccount(t, orch, "dex1abc")

	b, err := accounts.Markets(ctx)
	if err != nil {
		t.Fatalf("Markets failed: %v", err)
	}
	var markets []model.Market
	if err := json.Unmarshal(b, &markets); err != nil {
		t.Fatalf("markets not valid JSON: %v", err)
	}
	if len(markets) != 1 || markets[0].MarketID != "BTC-USD" {
		t.Errorf("unexpected markets: %+v", markets)
	}

	// account invalidation must not drop the global entry
	if err := cache.InvalidateAccount(ctx, "dex1abc"); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok := cache.Get(ctx, "_global", "markets"); !ok {
		t.Error("global markets entry dropped by account invalidation")
	}
}

func TestMarketsEmptyIsJSONArray(t *testing.T) {
	store, cache, _ := newTestDeps(t)
	accounts := NewAccounts(store, cache)

	b, err := accounts.Markets(context.Background())
	if err != nil {
		t.Fatalf("Markets failed: %v", err)
	}
	if string(b) != "[]" {
		t.Errorf("expected empty JSON array, got %s", b)
	}
}

func TestNeedsSync(t *testing.T) {
	store, cache, orch := newTestDeps(t)
	accounts := NewAccounts(store, cache)
	ctx := context.Background()

	// never synced: always stale
	stale, err := accounts.NeedsSync(ctx, "dex1new", model.SourceLedger, time.Minute)
	if err != nil {
		t.Fatalf("NeedsSync failed: %v", err)
	}
	if !stale {
		t.Error("account with no ledger entry must need sync")
	}

	seedAccount(t, orch, "dex1abc")

	stale, err = accounts.NeedsSync(ctx, "dex1abc", model.SourceLedger, time.Hour)
	if err != nil {
		t.Fatalf("NeedsSync failed: %v", err)
	}
	if stale {
		t.Error("freshly synced account within interval must not need sync")
	}

	stale, err = accounts.NeedsSync(ctx, "dex1abc", model.SourceLedger, 0)
	if err != nil {
		t.Fatalf("NeedsSync failed: %v", err)
	}
	if !stale {
		t.Error("zero interval means any entry is stale")
	}
}
