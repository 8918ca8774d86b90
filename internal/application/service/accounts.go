package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

// account key for reads that are not account-scoped
const globalAccount = "_global"

// Accounts serves the read API through the cache facade. Loaders are
// idempotent store reads, so a cache race at worst repeats one.
type Accounts struct {
	store port.RecordStore
	cache port.Cache
}

func NewAccounts(store port.RecordStore, cache port.Cache) *Accounts {
	return &Accounts{store: store, cache: cache}
}

// cached is the read-through: cache hit wins, otherwise the loader runs
// and its JSON is stored under (account, query).
func (a *Accounts) cached(ctx context.Context, account, query string, load func() (any, error)) ([]byte, error) {
	if b, ok := a.cache.Get(ctx, account, query); ok {
		return b, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Set(ctx, account, query, b); err != nil {
		log.Warn().Err(err).Str("account", account).Str("query", query).Msg("cache set failed")
	}
	return b, nil
}

// Overview is the aggregated per-account read: links, preferences,
// dismissed items, affiliate, balances, open positions, active orders,
// the last 50 transfers and swaps, and summary counts.
func (a *Accounts) Overview(ctx context.Context, addr string) ([]byte, error) {
	return a.cached(ctx, addr, "overview", func() (any, error) {
		return a.buildOverview(ctx, addr)
	})
}

func (a *Accounts) buildOverview(ctx context.Context, addr string) (*model.AccountOverview, error) {
	ov := &model.AccountOverview{WalletAddress: addr}

	var err error
	if ov.Links, err = a.store.ListWalletLinks(ctx); err != nil {
		return nil, err
	}
	if ov.Preferences, err = a.store.GetUserPreferences(ctx, addr); err != nil {
		return nil, err
	}
	if ov.TradingPreferences, err = a.store.GetTradingPreferences(ctx, addr); err != nil {
		return nil, err
	}
	if ov.DismissedItems, err = a.store.ListDismissedItems(ctx, addr); err != nil {
		return nil, err
	}
	if ov.Affiliate, err = a.store.GetAffiliate(ctx, addr); err != nil {
		return nil, err
	}
	if ov.Balances, err = a.store.ListBalances(ctx, addr); err != nil {
		return nil, err
	}
	if ov.OpenPositions, err = a.store.ListOpenPositions(ctx, addr); err != nil {
		return nil, err
	}
	if ov.ActiveOrders, err = a.store.ListActiveOrders(ctx, addr); err != nil {
		return nil, err
	}
	if ov.RecentTransfers, err = a.store.ListRecentTransfers(ctx, addr, 50); err != nil {
		return nil, err
	}
	if ov.RecentSwaps, err = a.store.ListRecentSwaps(ctx, addr, 50); err != nil {
		return nil, err
	}

	status, err := a.store.GetSyncStatus(ctx, addr)
	if err != nil {
		return nil, err
	}
	ov.Summary = model.PortfolioSummary{
		BalanceCount:      len(ov.Balances),
		OpenPositionCount: len(ov.OpenPositions),
		ActiveOrderCount:  len(ov.ActiveOrders),
		LastSyncedAt:      map[string]int64{},
		SyncStatus:        map[string]string{},
	}
	for _, e := range status {
		ov.Summary.LastSyncedAt[string(e.DataCategory)] = e.LastSyncedAt
		ov.Summary.SyncStatus[string(e.DataCategory)] = e.Status
	}
	return ov, nil
}

// Markets lists the global market table, cached once for all accounts.
func (a *Accounts) Markets(ctx context.Context) ([]byte, error) {
	return a.cached(ctx, globalAccount, "markets", func() (any, error) {
		m, err := a.store.ListMarkets(ctx)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = []model.Market{}
		}
		return m, nil
	})
}

// SyncStatus reads the sync ledger directly; it feeds staleness
// decisions, so it is never served from the cache.
func (a *Accounts) SyncStatus(ctx context.Context, addr string) ([]model.SyncLedgerEntry, error) {
	return a.store.GetSyncStatus(ctx, addr)
}

// NeedsSync reports whether a category was never synced or is older
// than the given interval.
func (a *Accounts) NeedsSync(ctx context.Context, addr string, category model.SyncSource, interval time.Duration) (bool, error) {
	entries, err := a.store.GetSyncStatus(ctx, addr)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.DataCategory != category {
			continue
		}
		age := time.Since(time.UnixMilli(e.LastSyncedAt))
		return age > interval, nil
	}
	return true, nil
}
