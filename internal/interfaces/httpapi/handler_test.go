package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"dexsync/internal/application/service"
	"dexsync/internal/domain/model"
	"dexsync/internal/infrastructure/cache/memory"
	"dexsync/internal/infrastructure/storage/sqlite"
)

// fakeFetcher returns a canned batch, standing in for the remote indexer.
type fakeFetcher struct {
	batch *model.Batch
}

func (f *fakeFetcher) FetchAll(ctx context.Context, accountID, baseURL string) *model.Batch {
	if f.batch != nil {
		return f.batch
	}
	return &model.Batch{WalletAddress: accountID}
}

func newTestApp(t *testing.T, fetcher *fakeFetcher) *fiber.App {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"), 1000)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cache := memory.New(time.Minute)
	orch := service.NewOrchestrator(store, cache)
	accounts := service.NewAccounts(store, cache)

	app := fiber.New()
	NewHandler(service.NewExtractor(), orch, accounts, fetcher).Register(app)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})
	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSessionStateSyncHappyPath(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})

	snap := map[string]any{
		"entries": map[string]string{
			"wallet.cosmos.address": "dex1abc",
			"app.locale":            "en-US",
		},
	}
	resp := doJSON(t, app, http.MethodPost, "/sync/session-state", snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var res model.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !res.Success || res.Written() == 0 {
		t.Errorf("expected successful pass with writes, got %+v", res)
	}

	// synced data is now readable
	resp = doJSON(t, app, http.MethodGet, "/account/dex1abc", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 overview, got %d", resp.StatusCode)
	}
	var ov model.AccountOverview
	if err := json.NewDecoder(resp.Body).Decode(&ov); err != nil {
		t.Fatalf("decode overview: %v", err)
	}
	if len(ov.Links) != 1 || ov.Preferences == nil {
		t.Errorf("overview missing synced records: %+v", ov)
	}
}

func TestSessionStateSyncRejectsOwnerless(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})

	snap := map[string]any{"entries": map[string]string{"app.locale": "en-US"}}
	resp := doJSON(t, app, http.MethodPost, "/sync/session-state", snap)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for ownerless snapshot, got %d", resp.StatusCode)
	}
}

func TestLedgerDataSyncRequiresAccountID(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})

	resp := doJSON(t, app, http.MethodPost, "/sync/ledger-data", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without accountId, got %d", resp.StatusCode)
	}
}

func TestLedgerDataSyncRunsFetchedBatch(t *testing.T) {
	batch := &model.Batch{WalletAddress: "dex1abc"}
	batch.Add(model.Balance{
		WalletAddress: "dex1abc", ChainID: "dexchain-1",
		TokenSymbol: "USDC", TokenDenom: "uusdc",
		Amount: "100", Available: "100", Locked: "0",
	})
	app := newTestApp(t, &fakeFetcher{batch: batch})

	resp := doJSON(t, app, http.MethodPost, "/sync/ledger-data", map[string]string{"accountId": "dex1abc"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res model.SyncResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Written() != 1 {
		t.Errorf("expected 1 written, got %+v", res)
	}

	resp = doJSON(t, app, http.MethodGet, "/sync/status/dex1abc", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 status, got %d", resp.StatusCode)
	}
	var entries []model.SyncLedgerEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].DataCategory != model.SourceLedger {
		t.Errorf("unexpected ledger entries: %+v", entries)
	}
}

func TestSyncStatusEmptyIsArray(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})

	resp := doJSON(t, app, http.MethodGet, "/sync/status/dex1nobody", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	b, _ := io.ReadAll(resp.Body)
	if string(bytes.TrimSpace(b)) != "[]" {
		t.Errorf("expected empty JSON array, got %s", b)
	}
}

func TestMarketsRoute(t *testing.T) {
	app := newTestApp(t, &fakeFetcher{})

	resp := doJSON(t, app, http.MethodGet, "/markets", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var markets []model.Market
	if err := json.NewDecoder(resp.Body).Decode(&markets); err != nil {
		t.Fatalf("decode markets: %v", err)
	}
}
