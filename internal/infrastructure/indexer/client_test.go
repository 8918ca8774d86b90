package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dexsync/internal/domain/model"
)

func testIndexer(t *testing.T, failBalances bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/v4/balances", func(w http.ResponseWriter, r *http.Request) {
		if failBalances {
			http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"balances":[
			{"chainId":"dexchain-1","symbol":"USDC","denom":"uusdc","amount":"100"},
			{"chainId":"dexchain-1","symbol":"ATOM","denom":"uatom","amount":"","available":"5","locked":"1"}
		]}`))
	})
	mux.HandleFunc("/v4/perpetualPositions", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"positions":[
			{"positionId":"pos-1","market":"BTC-USD","size":"-2.5","entryPrice":"40000","unrealizedPnl":"","createdAt":1000,"updatedAt":2000}
		]}`))
	})
	mux.HandleFunc("/v4/addresses/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subaccounts":[{"subaccountNumber":0},{"subaccountNumber":7}]}`))
	})
	mux.HandleFunc("/v4/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("subaccountNumber") == "7" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[
			{"orderId":"ord-1","market":"BTC-USD","side":"BUY","type":"LIMIT","size":"1","price":"40000","status":"OPEN","createdAt":1000}
		]`))
	})
	mux.HandleFunc("/v4/fills", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"fills":[
			{"fillId":"fill-1","orderId":"ord-1","market":"BTC-USD","side":"BUY","size":"1","price":"40000","fee":"","createdAt":1001}
		]}`))
	})
	mux.HandleFunc("/v4/transfers", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transfers":[
			{"txHash":"0x1","type":"DEPOSIT","amount":"50","denom":"uusdc","status":"CONFIRMED","createdAt":900,"confirmedAt":950}
		]}`))
	})
	mux.HandleFunc("/v4/perpetualMarkets", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"markets":{
			"BTC-USD":{"ticker":"BTC-USD","stepSize":"0.001","tickSize":"1","minOrderSize":"0.001","initialMarginFraction":"0.05","maintenanceMarginFraction":"0.03","status":"ACTIVE"}
		}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func byCategory(batch *model.Batch) map[model.Category][]model.Record {
	out := map[model.Category][]model.Record{}
	for _, r := range batch.Records {
		out[r.Category()] = append(out[r.Category()], r)
	}
	return out
}

func TestFetchAllMapsAllCategories(t *testing.T) {
	srv := testIndexer(t, false)
	c := NewClient(srv.URL, 5*time.Second)

	batch := c.FetchAll(context.Background(), "dex1abc", "")
	if len(batch.SourceErrors) != 0 {
		t.Fatalf("unexpected source errors: %v", batch.SourceErrors)
	}

	recs := byCategory(batch)

	balances := recs[model.CategoryBalance]
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances, got %d", len(balances))
	}
	for _, r := range balances {
		b := r.(model.Balance)
		switch b.TokenSymbol {
		case "USDC":
			// no breakdown from upstream: full amount available, nothing locked
			if b.Available != "100" || b.Locked != "0" {
				t.Errorf("USDC defaults wrong: %+v", b)
			}
		case "ATOM":
			if b.Amount != "0" || b.Available != "5" || b.Locked != "1" {
				t.Errorf("ATOM mapping wrong: %+v", b)
			}
		}
	}

	positions := recs[model.CategoryPosition]
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	p := positions[0].(model.Position)
	if p.Side != "SHORT" || p.Size != "2.5" {
		t.Errorf("negative size should map to SHORT with abs size: %+v", p)
	}
	if p.UnrealizedPnl != "0" {
		t.Errorf("empty pnl should normalize to 0: %+v", p)
	}
	if p.Status != model.PositionOpen {
		t.Errorf("missing status should default to OPEN: %+v", p)
	}

	orders := recs[model.CategoryOrder]
	if len(orders) != 1 {
		t.Fatalf("expected 1 order (failed subaccount skipped), got %d", len(orders))
	}
	o := orders[0].(model.Order)
	if o.RemainingSize != "1" {
		t.Errorf("missing remaining size should default to full size: %+v", o)
	}

	fills := recs[model.CategoryFill]
	if len(fills) != 1 || fills[0].(model.Fill).Fee != "0" {
		t.Errorf("fill mapping wrong: %+v", fills)
	}

	if len(recs[model.CategoryTransfer]) != 1 {
		t.Errorf("expected 1 transfer, got %d", len(recs[model.CategoryTransfer]))
	}

	markets := recs[model.CategoryMarket]
	if len(markets) != 1 || markets[0].(model.Market).MarketID != "BTC-USD" {
		t.Errorf("market mapping wrong: %+v", markets)
	}
}

func TestFetchAllFailedCategoryIsSourceError(t *testing.T) {
	srv := testIndexer(t, true)
	c := NewClient(srv.URL, 5*time.Second)

	batch := c.FetchAll(context.Background(), "dex1abc", "")
	if len(batch.SourceErrors) != 1 {
		t.Fatalf("expected 1 source error, got %v", batch.SourceErrors)
	}
	if !strings.HasPrefix(batch.SourceErrors[0], "balances:") {
		t.Errorf("source error should name the category: %q", batch.SourceErrors[0])
	}

	// the failed category must not suppress the others
	recs := byCategory(batch)
	if len(recs[model.CategoryBalance]) != 0 {
		t.Errorf("failed category should be empty, got %v", recs[model.CategoryBalance])
	}
	if len(recs[model.CategoryPosition]) != 1 || len(recs[model.CategoryMarket]) != 1 {
		t.Errorf("other categories should still be fetched: %v", recs)
	}
}

func TestFetchAllBaseURLOverride(t *testing.T) {
	srv := testIndexer(t, false)
	c := NewClient("http://127.0.0.1:1", 2*time.Second)

	batch := c.FetchAll(context.Background(), "dex1abc", srv.URL)
	if len(batch.SourceErrors) != 0 {
		t.Fatalf("override base URL not used: %v", batch.SourceErrors)
	}
}
