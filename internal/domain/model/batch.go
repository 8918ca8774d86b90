package model

import "time"

// Batch is one normalized record set produced by the extractor or the
// remote fetcher, always owned by a single wallet address.
type Batch struct {
	WalletAddress string
	Records       []Record

	// SourceErrors carries upstream failures (a sub-fetch that came back
	// empty) into the pass outcome; they count toward partial status.
	SourceErrors []string
}

func (b *Batch) Add(r Record) { b.Records = append(b.Records, r) }

// SyncResult is the outcome of one sync pass, returned to the caller
// instead of raising errors across the API boundary.
type SyncResult struct {
	PassID    string           `json:"passId"`
	Success   bool             `json:"success"`
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Synced    map[Category]int `json:"synced"`
	Errors    []string         `json:"errors"`
}

func NewSyncResult(passID string) *SyncResult {
	return &SyncResult{
		PassID:    passID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Synced:    map[Category]int{},
		Errors:    []string{},
	}
}

// Written sums the per-category counts.
func (r *SyncResult) Written() int {
	n := 0
	for _, c := range r.Synced {
		n += c
	}
	return n
}

// AccountOverview is the aggregated read served for one account. Pure
// projection over the store, never written independently.
type AccountOverview struct {
	WalletAddress      string              `json:"walletAddress"`
	Links              []WalletLink        `json:"links"`
	Preferences        *UserPreferences    `json:"preferences,omitempty"`
	TradingPreferences *TradingPreferences `json:"tradingPreferences,omitempty"`
	DismissedItems     []DismissedItem     `json:"dismissedItems"`
	Affiliate          *Affiliate          `json:"affiliate,omitempty"`
	Balances           []Balance           `json:"balances"`
	OpenPositions      []Position          `json:"openPositions"`
	ActiveOrders       []Order             `json:"activeOrders"`
	RecentTransfers    []Transfer          `json:"recentTransfers"`
	RecentSwaps        []Swap              `json:"recentSwaps"`
	Summary            PortfolioSummary    `json:"summary"`
}

// PortfolioSummary gives the caller counts and last-sync times without
// another round trip.
type PortfolioSummary struct {
	BalanceCount      int               `json:"balanceCount"`
	OpenPositionCount int               `json:"openPositionCount"`
	ActiveOrderCount  int               `json:"activeOrderCount"`
	LastSyncedAt      map[string]int64  `json:"lastSyncedAt"`
	SyncStatus        map[string]string `json:"syncStatus"`
}
