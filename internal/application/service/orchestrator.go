package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

// Orchestrator drives one sync pass: a single transaction over the
// whole batch, per-record error bookkeeping, the ledger entry as the
// strictly-last write, and cache invalidation after commit.
type Orchestrator struct {
	store port.RecordStore
	cache port.Cache
}

func NewOrchestrator(store port.RecordStore, cache port.Cache) *Orchestrator {
	return &Orchestrator{store: store, cache: cache}
}

// RunSync applies one batch for one account. Shape and integrity errors
// are per-record outcomes; only storage failures abort the pass. The
// returned result carries every error instead of raising it.
func (o *Orchestrator) RunSync(ctx context.Context, source model.SyncSource, accountID string, batch *model.Batch) (*model.SyncResult, error) {
	passID := uuid.NewString()
	result := model.NewSyncResult(passID)
	result.Errors = append(result.Errors, batch.SourceErrors...)

	tx, err := o.store.Begin(ctx)
	if err != nil {
		return o.failPass(ctx, source, accountID, result, fmt.Errorf("begin: %w", err))
	}

	for _, rec := range batch.Records {
		if err := rec.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.Category(), err))
			continue
		}
		err := o.apply(ctx, tx, rec)
		switch {
		case err == nil:
			result.Synced[rec.Category()]++
		case errors.Is(err, port.ErrIntegrity):
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.Category(), err))
		default:
			_ = tx.Rollback()
			return o.failPass(ctx, source, accountID, result, fmt.Errorf("%s: %w", rec.Category(), err))
		}
	}

	written := result.Written()
	status := model.SyncStatusSuccess
	if len(result.Errors) > 0 {
		status = model.SyncStatusPartial
		if written == 0 {
			status = model.SyncStatusFailed
		}
	}

	entry := &model.SyncLedgerEntry{
		WalletAddress: accountID,
		DataCategory:  source,
		LastSyncedAt:  time.Now().UnixMilli(),
		Status:        status,
		RecordCount:   written,
		LastError:     lastError(result.Errors),
		PassID:        passID,
	}
	// ledger entry is the last write: a visible entry always reflects a
	// fully-applied batch
	if err := tx.PutSyncLedgerEntry(ctx, entry); err != nil {
		_ = tx.Rollback()
		return o.failPass(ctx, source, accountID, result, fmt.Errorf("sync ledger: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return o.failPass(ctx, source, accountID, result, fmt.Errorf("commit: %w", err))
	}

	result.Status = status
	result.Success = status == model.SyncStatusSuccess

	// new data exists even on a partial pass
	if written > 0 {
		if err := o.cache.InvalidateAccount(ctx, accountID); err != nil {
			log.Warn().Err(err).Str("account", accountID).Msg("cache invalidation failed")
		}
	}

	log.Info().
		Str("pass", passID).
		Str("source", string(source)).
		Str("account", accountID).
		Str("status", status).
		Int("written", written).
		Int("errors", len(result.Errors)).
		Msg("sync pass finished")

	return result, nil
}

func (o *Orchestrator) apply(ctx context.Context, tx port.RecordTx, rec model.Record) error {
	switch r := rec.(type) {
	case model.WalletLink:
		return tx.UpsertWalletLink(ctx, &r)
	case model.UserPreferences:
		return tx.UpsertUserPreferences(ctx, &r)
	case model.TradingPreferences:
		return tx.UpsertTradingPreferences(ctx, &r)
	case model.DismissedItem:
		return tx.InsertDismissedItem(ctx, &r)
	case model.Affiliate:
		return tx.UpsertAffiliate(ctx, &r)
	case model.Balance:
		return tx.UpsertBalance(ctx, &r)
	case model.Position:
		return tx.UpsertPosition(ctx, &r)
	case model.Order:
		return tx.UpsertOrder(ctx, &r)
	case model.Fill:
		return tx.InsertFill(ctx, &r)
	case model.Transfer:
		return tx.UpsertTransfer(ctx, &r)
	case model.Swap:
		return tx.UpsertSwap(ctx, &r)
	case model.Market:
		return tx.UpsertMarket(ctx, &r)
	default:
		return fmt.Errorf("unknown record category %q", rec.Category())
	}
}

// failPass reports a storage-fatal outcome: the batch is rolled back,
// and a failed ledger row is written best-effort outside the dead
// transaction so the attempt is never absent from the ledger.
func (o *Orchestrator) failPass(ctx context.Context, source model.SyncSource, accountID string, result *model.SyncResult, cause error) (*model.SyncResult, error) {
	result.Errors = append(result.Errors, cause.Error())
	result.Status = model.SyncStatusFailed
	result.Success = false

	entry := &model.SyncLedgerEntry{
		WalletAddress: accountID,
		DataCategory:  source,
		LastSyncedAt:  time.Now().UnixMilli(),
		Status:        model.SyncStatusFailed,
		RecordCount:   0,
		LastError:     cause.Error(),
		PassID:        result.PassID,
	}
	if err := o.store.PutSyncLedgerEntryStandalone(ctx, entry); err != nil {
		log.Error().Err(err).Str("account", accountID).Msg("failed-pass ledger write lost")
	}

	log.Error().
		Err(cause).
		Str("pass", result.PassID).
		Str("source", string(source)).
		Str("account", accountID).
		Msg("sync pass failed")

	return result, nil
}

func lastError(errs []string) string {
	if len(errs) == 0 {
		return ""
	}
	return errs[len(errs)-1]
}
