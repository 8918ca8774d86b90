package model

import "errors"

// Category identifies one record kind inside a sync batch. It is the
// discriminant the orchestrator dispatches on and the key used in
// SyncResult.Synced counts.
type Category string

const (
	CategoryWalletLink         Category = "wallet_links"
	CategoryUserPreferences    Category = "user_preferences"
	CategoryTradingPreferences Category = "trading_preferences"
	CategoryDismissedItem      Category = "dismissed_items"
	CategoryAffiliate          Category = "affiliates"
	CategoryBalance            Category = "balances"
	CategoryPosition           Category = "positions"
	CategoryOrder              Category = "orders"
	CategoryFill               Category = "fills"
	CategoryTransfer           Category = "transfers"
	CategorySwap               Category = "swaps"
	CategoryMarket             Category = "markets"
)

// SyncSource names which side of the system produced a batch.
type SyncSource string

const (
	SourceSessionState SyncSource = "session_state"
	SourceLedger       SyncSource = "ledger_data"
)

// Sync ledger statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusPartial = "partial"
	SyncStatusFailed  = "failed"
)

// Position statuses. Transitions are caller-driven, never inferred.
const (
	PositionOpen       = "OPEN"
	PositionClosed     = "CLOSED"
	PositionLiquidated = "LIQUIDATED"
)

var errMissingKey = errors.New("missing key field")

// Record is the sum type for everything a sync batch can carry.
type Record interface {
	Category() Category
	// Validate reports a shape error (missing key fields, malformed
	// decimal amounts). Invalid records are skipped per-record; they
	// never abort a batch.
	Validate() error
}

// WalletLink ties one address on one chain to the account. The primary
// link's address is the sync key for every per-account record.
type WalletLink struct {
	WalletType string `json:"walletType"`
	Address    string `json:"address"`
	ChainID    string `json:"chainId"`
	IsPrimary  bool   `json:"isPrimary"`
}

func (WalletLink) Category() Category { return CategoryWalletLink }

func (w WalletLink) Validate() error {
	if w.WalletType == "" || w.Address == "" || w.ChainID == "" {
		return errMissingKey
	}
	return nil
}

// UserPreferences is one row per primary wallet address, replaced
// wholesale on every sync.
type UserPreferences struct {
	WalletAddress          string `json:"walletAddress"`
	Locale                 string `json:"locale"`
	DisplayCurrency        string `json:"displayCurrency"`
	SelectedNetwork        string `json:"selectedNetwork"`
	TermsAcknowledged      bool   `json:"termsAcknowledged"`
	OnboardingAcknowledged bool   `json:"onboardingAcknowledged"`
}

func (UserPreferences) Category() Category { return CategoryUserPreferences }

func (p UserPreferences) Validate() error {
	if p.WalletAddress == "" {
		return errMissingKey
	}
	return nil
}

// TradingPreferences is one row per primary wallet address, replaced
// wholesale on every sync.
type TradingPreferences struct {
	WalletAddress     string `json:"walletAddress"`
	DefaultLeverage   string `json:"defaultLeverage"`
	SlippageTolerance string `json:"slippageTolerance"`
	MarginMode        string `json:"marginMode"`
	ConfirmOrders     bool   `json:"confirmOrders"`
}

func (TradingPreferences) Category() Category { return CategoryTradingPreferences }

func (p TradingPreferences) Validate() error {
	if p.WalletAddress == "" {
		return errMissingKey
	}
	if !ValidAmount(p.DefaultLeverage) || !ValidAmount(p.SlippageTolerance) {
		return errors.New("trading preferences: malformed decimal")
	}
	return nil
}

// DismissedItem has set semantics: inserting an existing pair is a no-op.
type DismissedItem struct {
	WalletAddress string `json:"walletAddress"`
	ItemKey       string `json:"itemKey"`
}

func (DismissedItem) Category() Category { return CategoryDismissedItem }

func (d DismissedItem) Validate() error {
	if d.WalletAddress == "" || d.ItemKey == "" {
		return errMissingKey
	}
	return nil
}

// Affiliate is one row per wallet address, replaced wholesale on sync.
type Affiliate struct {
	WalletAddress string `json:"walletAddress"`
	Code          string `json:"code"`
	ReferredBy    string `json:"referredBy"`
}

func (Affiliate) Category() Category { return CategoryAffiliate }

func (a Affiliate) Validate() error {
	if a.WalletAddress == "" {
		return errMissingKey
	}
	return nil
}

// Balance is a current snapshot, not a history. Upsert replaces the
// balance fields.
type Balance struct {
	WalletAddress string `json:"walletAddress"`
	ChainID       string `json:"chainId"`
	TokenSymbol   string `json:"tokenSymbol"`
	TokenDenom    string `json:"tokenDenom"`
	Amount        string `json:"amount"`
	Available     string `json:"available"`
	Locked        string `json:"locked"`
	UpdatedAt     int64  `json:"updatedAt"`
}

func (Balance) Category() Category { return CategoryBalance }

func (b Balance) Validate() error {
	if b.WalletAddress == "" || b.ChainID == "" || b.TokenSymbol == "" || b.TokenDenom == "" {
		return errMissingKey
	}
	if !ValidAmount(b.Amount) || !ValidAmount(b.Available) || !ValidAmount(b.Locked) {
		return errors.New("balance: malformed decimal amount")
	}
	return nil
}

// Position upsert merges the mutable fields (size, unrealized PnL,
// status, updatedAt) and preserves creation metadata.
type Position struct {
	WalletAddress string `json:"walletAddress"`
	PositionID    string `json:"positionId"`
	Market        string `json:"market"`
	Side          string `json:"side"` // LONG | SHORT
	Size          string `json:"size"`
	EntryPrice    string `json:"entryPrice"`
	UnrealizedPnl string `json:"unrealizedPnl"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

func (Position) Category() Category { return CategoryPosition }

func (p Position) Validate() error {
	if p.WalletAddress == "" || p.PositionID == "" {
		return errMissingKey
	}
	if !ValidAmount(p.Size) || !ValidAmount(p.EntryPrice) || !ValidAmount(p.UnrealizedPnl) {
		return errors.New("position: malformed decimal amount")
	}
	return nil
}

// Order is keyed globally by OrderID. Immutable fields (side, type,
// market) are never overwritten after creation; upsert touches status
// and remaining size only.
type Order struct {
	OrderID       string `json:"orderId"`
	WalletAddress string `json:"walletAddress"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Size          string `json:"size"`
	RemainingSize string `json:"remainingSize"`
	Price         string `json:"price"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

func (Order) Category() Category { return CategoryOrder }

func (o Order) Validate() error {
	if o.OrderID == "" || o.WalletAddress == "" {
		return errMissingKey
	}
	if !ValidAmount(o.Size) || !ValidAmount(o.RemainingSize) || !ValidAmount(o.Price) {
		return errors.New("order: malformed decimal amount")
	}
	return nil
}

// Fill is append-only; fills are immutable once executed and duplicate
// inserts are silently ignored.
type Fill struct {
	FillID        string `json:"fillId"`
	WalletAddress string `json:"walletAddress"`
	OrderID       string `json:"orderId"`
	Market        string `json:"market"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	Price         string `json:"price"`
	Fee           string `json:"fee"`
	CreatedAt     int64  `json:"createdAt"`
}

func (Fill) Category() Category { return CategoryFill }

func (f Fill) Validate() error {
	if f.FillID == "" || f.WalletAddress == "" {
		return errMissingKey
	}
	if !ValidAmount(f.Size) || !ValidAmount(f.Price) || !ValidAmount(f.Fee) {
		return errors.New("fill: malformed decimal amount")
	}
	return nil
}

// Transfer upsert updates status and timestamps only, reflecting
// pending -> confirmed transitions.
type Transfer struct {
	TxHash        string `json:"txHash"`
	WalletAddress string `json:"walletAddress"`
	Type          string `json:"type"` // DEPOSIT | WITHDRAWAL | TRANSFER_IN | TRANSFER_OUT
	Amount        string `json:"amount"`
	Denom         string `json:"denom"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	ConfirmedAt   int64  `json:"confirmedAt"`
}

func (Transfer) Category() Category { return CategoryTransfer }

func (t Transfer) Validate() error {
	if t.TxHash == "" || t.WalletAddress == "" {
		return errMissingKey
	}
	if !ValidAmount(t.Amount) {
		return errors.New("transfer: malformed decimal amount")
	}
	return nil
}

// Swap has the same update semantics as Transfer, keyed by tx hash.
type Swap struct {
	TxHash        string `json:"txHash"`
	WalletAddress string `json:"walletAddress"`
	FromDenom     string `json:"fromDenom"`
	ToDenom       string `json:"toDenom"`
	FromAmount    string `json:"fromAmount"`
	ToAmount      string `json:"toAmount"`
	Status        string `json:"status"`
	CreatedAt     int64  `json:"createdAt"`
	ConfirmedAt   int64  `json:"confirmedAt"`
}

func (Swap) Category() Category { return CategorySwap }

func (s Swap) Validate() error {
	if s.TxHash == "" || s.WalletAddress == "" {
		return errMissingKey
	}
	if !ValidAmount(s.FromAmount) || !ValidAmount(s.ToAmount) {
		return errors.New("swap: malformed decimal amount")
	}
	return nil
}

// Market is global, not per-wallet. Upsert replaces sizing and margin
// fields.
type Market struct {
	MarketID                  string `json:"marketId"`
	StepSize                  string `json:"stepSize"`
	TickSize                  string `json:"tickSize"`
	MinOrderSize              string `json:"minOrderSize"`
	InitialMarginFraction     string `json:"initialMarginFraction"`
	MaintenanceMarginFraction string `json:"maintenanceMarginFraction"`
	Status                    string `json:"status"`
	UpdatedAt                 int64  `json:"updatedAt"`
}

func (Market) Category() Category { return CategoryMarket }

func (m Market) Validate() error {
	if m.MarketID == "" {
		return errMissingKey
	}
	if !ValidAmount(m.StepSize) || !ValidAmount(m.TickSize) || !ValidAmount(m.MinOrderSize) ||
		!ValidAmount(m.InitialMarginFraction) || !ValidAmount(m.MaintenanceMarginFraction) {
		return errors.New("market: malformed decimal amount")
	}
	return nil
}

// SyncLedgerEntry is the per (account, category) sync metadata written
// exactly once per completed pass, always as the pass's last write.
type SyncLedgerEntry struct {
	WalletAddress string     `json:"walletAddress"`
	DataCategory  SyncSource `json:"dataCategory"`
	LastSyncedAt  int64      `json:"lastSyncedAt"` // unix ms
	Status        string     `json:"status"`
	RecordCount   int        `json:"recordCount"`
	LastError     string     `json:"lastError,omitempty"`
	PassID        string     `json:"passId"`
}
