package port

import (
	"context"
	"errors"

	"dexsync/internal/domain/model"
)

// ErrIntegrity marks a key collision owned by a different wallet.
// Order and fill ids are chain-unique; a cross-wallet collision is bad
// data, never an overwrite. Reported per-record, the batch continues.
var ErrIntegrity = errors.New("key owned by another wallet")

// ErrStoreBusy surfaces after the store's bounded wait on a competing
// writer expires.
var ErrStoreBusy = errors.New("store busy")

// RecordStore is the persistence port. All batch writes go through a
// RecordTx; reads run outside any transaction.
type RecordStore interface {
	Begin(ctx context.Context) (RecordTx, error)

	// PutSyncLedgerEntryStandalone records a failed pass outside any
	// transaction, so an attempt whose transaction rolled back still
	// leaves a ledger row behind.
	PutSyncLedgerEntryStandalone(ctx context.Context, e *model.SyncLedgerEntry) error

	ListWalletLinks(ctx context.Context) ([]model.WalletLink, error)
	GetUserPreferences(ctx context.Context, addr string) (*model.UserPreferences, error)
	GetTradingPreferences(ctx context.Context, addr string) (*model.TradingPreferences, error)
	ListDismissedItems(ctx context.Context, addr string) ([]model.DismissedItem, error)
	GetAffiliate(ctx context.Context, addr string) (*model.Affiliate, error)
	ListBalances(ctx context.Context, addr string) ([]model.Balance, error)
	ListOpenPositions(ctx context.Context, addr string) ([]model.Position, error)
	ListActiveOrders(ctx context.Context, addr string) ([]model.Order, error)
	ListRecentTransfers(ctx context.Context, addr string, limit int) ([]model.Transfer, error)
	ListRecentSwaps(ctx context.Context, addr string, limit int) ([]model.Swap, error)
	ListMarkets(ctx context.Context) ([]model.Market, error)
	GetSyncStatus(ctx context.Context, addr string) ([]model.SyncLedgerEntry, error)
	ListSyncedAccounts(ctx context.Context) ([]string, error)

	Close() error
}

// RecordTx applies one batch. Upserts are idempotent against their
// entity's natural key; a returned ErrIntegrity wrap is a per-record
// outcome, any other error is fatal to the pass.
type RecordTx interface {
	UpsertWalletLink(ctx context.Context, w *model.WalletLink) error
	UpsertUserPreferences(ctx context.Context, p *model.UserPreferences) error
	UpsertTradingPreferences(ctx context.Context, p *model.TradingPreferences) error
	InsertDismissedItem(ctx context.Context, d *model.DismissedItem) error
	UpsertAffiliate(ctx context.Context, a *model.Affiliate) error
	UpsertBalance(ctx context.Context, b *model.Balance) error
	UpsertPosition(ctx context.Context, p *model.Position) error
	UpsertOrder(ctx context.Context, o *model.Order) error
	InsertFill(ctx context.Context, f *model.Fill) error
	UpsertTransfer(ctx context.Context, t *model.Transfer) error
	UpsertSwap(ctx context.Context, s *model.Swap) error
	UpsertMarket(ctx context.Context, m *model.Market) error

	// PutSyncLedgerEntry must be the transaction's last write.
	PutSyncLedgerEntry(ctx context.Context, e *model.SyncLedgerEntry) error

	Commit() error
	Rollback() error
}
