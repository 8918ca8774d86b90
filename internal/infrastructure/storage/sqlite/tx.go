package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

const putLedgerSQL = `
	INSERT INTO sync_ledger(wallet_address, data_category, last_synced_at, status, record_count, last_error, pass_id)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(wallet_address, data_category) DO UPDATE SET
	last_synced_at=excluded.last_synced_at, status=excluded.status,
	record_count=excluded.record_count, last_error=excluded.last_error, pass_id=excluded.pass_id
`

// Tx applies one sync batch. Every statement is idempotent against the
// entity's natural key; SQLite aborts only the statement on a
// constraint hit, so one bad record never poisons the transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error   { return mapBusy(t.tx.Commit()) }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

func nowMs() int64 { return time.Now().UnixMilli() }

func (t *Tx) UpsertWalletLink(ctx context.Context, w *model.WalletLink) error {
	now := nowMs()
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO wallet_links(wallet_type, address, chain_id, is_primary, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_type, address, chain_id) DO UPDATE SET
		is_primary=excluded.is_primary, updated_at=excluded.updated_at
	`, w.WalletType, w.Address, w.ChainID, boolInt(w.IsPrimary), now, now)
	return err
}

func (t *Tx) UpsertUserPreferences(ctx context.Context, p *model.UserPreferences) error {
	// last write wins, whole row
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO user_preferences(wallet_address, locale, display_currency, selected_network,
			terms_acknowledged, onboarding_acknowledged, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
		locale=excluded.locale, display_currency=excluded.display_currency,
		selected_network=excluded.selected_network, terms_acknowledged=excluded.terms_acknowledged,
		onboarding_acknowledged=excluded.onboarding_acknowledged, updated_at=excluded.updated_at
	`, p.WalletAddress, p.Locale, p.DisplayCurrency, p.SelectedNetwork,
		boolInt(p.TermsAcknowledged), boolInt(p.OnboardingAcknowledged), nowMs())
	return err
}

func (t *Tx) UpsertTradingPreferences(ctx context.Context, p *model.TradingPreferences) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO trading_preferences(wallet_address, default_leverage, slippage_tolerance,
			margin_mode, confirm_orders, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
		default_leverage=excluded.default_leverage, slippage_tolerance=excluded.slippage_tolerance,
		margin_mode=excluded.margin_mode, confirm_orders=excluded.confirm_orders, updated_at=excluded.updated_at
	`, p.WalletAddress, p.DefaultLeverage, p.SlippageTolerance, p.MarginMode,
		boolInt(p.ConfirmOrders), nowMs())
	return err
}

func (t *Tx) InsertDismissedItem(ctx context.Context, d *model.DismissedItem) error {
	// set semantics: existing pair is a no-op
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO dismissed_items(wallet_address, item_key, created_at)
		VALUES(?, ?, ?)
		ON CONFLICT(wallet_address, item_key) DO NOTHING
	`, d.WalletAddress, d.ItemKey, nowMs())
	return err
}

func (t *Tx) UpsertAffiliate(ctx context.Context, a *model.Affiliate) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO affiliates(wallet_address, code, referred_by, updated_at)
		VALUES(?, ?, ?, ?)
		ON CONFLICT(wallet_address) DO UPDATE SET
		code=excluded.code, referred_by=excluded.referred_by, updated_at=excluded.updated_at
	`, a.WalletAddress, a.Code, a.ReferredBy, nowMs())
	return err
}

func (t *Tx) UpsertBalance(ctx context.Context, b *model.Balance) error {
	ts := b.UpdatedAt
	if ts == 0 {
		ts = nowMs()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances(wallet_address, chain_id, token_symbol, token_denom, amount, available, locked, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address, chain_id, token_symbol, token_denom) DO UPDATE SET
		amount=excluded.amount, available=excluded.available, locked=excluded.locked, updated_at=excluded.updated_at
	`, b.WalletAddress, b.ChainID, b.TokenSymbol, b.TokenDenom, b.Amount, b.Available, b.Locked, ts)
	return err
}

func (t *Tx) UpsertPosition(ctx context.Context, p *model.Position) error {
	now := nowMs()
	created := p.CreatedAt
	if created == 0 {
		created = now
	}
	updated := p.UpdatedAt
	if updated == 0 {
		updated = now
	}
	// creation metadata (market, side, entry price, created_at) is kept
	// from the first insert
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO positions(wallet_address, position_id, market, side, size, entry_price,
			unrealized_pnl, status, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(wallet_address, position_id) DO UPDATE SET
		size=excluded.size, unrealized_pnl=excluded.unrealized_pnl,
		status=excluded.status, updated_at=excluded.updated_at
	`, p.WalletAddress, p.PositionID, p.Market, p.Side, p.Size, p.EntryPrice,
		p.UnrealizedPnl, p.Status, created, updated)
	return err
}

func (t *Tx) UpsertOrder(ctx context.Context, o *model.Order) error {
	now := nowMs()
	created := o.CreatedAt
	if created == 0 {
		created = now
	}
	// the conditional update refuses to touch a row owned by another
	// wallet; zero affected rows means an id collision
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders(order_id, wallet_address, market, side, type, size,
			remaining_size, price, status, created_at, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
		status=excluded.status, remaining_size=excluded.remaining_size, updated_at=excluded.updated_at
		WHERE orders.wallet_address = excluded.wallet_address
	`, o.OrderID, o.WalletAddress, o.Market, o.Side, o.Type, o.Size,
		o.RemainingSize, o.Price, o.Status, created, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: order %s", port.ErrIntegrity, o.OrderID)
	}
	return nil
}

func (t *Tx) InsertFill(ctx context.Context, f *model.Fill) error {
	created := f.CreatedAt
	if created == 0 {
		created = nowMs()
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO fills(fill_id, wallet_address, order_id, market, side, size, price, fee, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fill_id) DO NOTHING
	`, f.FillID, f.WalletAddress, f.OrderID, f.Market, f.Side, f.Size, f.Price, f.Fee, created)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// duplicate: silent no-op for the same wallet, integrity error when
	// the stored fill belongs to someone else
	var owner string
	if err := t.tx.QueryRowContext(ctx,
		`SELECT wallet_address FROM fills WHERE fill_id=?`, f.FillID).Scan(&owner); err != nil {
		return err
	}
	if owner != f.WalletAddress {
		return fmt.Errorf("%w: fill %s", port.ErrIntegrity, f.FillID)
	}
	return nil
}

func (t *Tx) UpsertTransfer(ctx context.Context, tr *model.Transfer) error {
	created := tr.CreatedAt
	if created == 0 {
		created = nowMs()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transfers(tx_hash, wallet_address, type, amount, denom, status, created_at, confirmed_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO UPDATE SET
		status=excluded.status, confirmed_at=excluded.confirmed_at
	`, tr.TxHash, tr.WalletAddress, tr.Type, tr.Amount, tr.Denom, tr.Status, created, nullMs(tr.ConfirmedAt))
	return err
}

func (t *Tx) UpsertSwap(ctx context.Context, sw *model.Swap) error {
	created := sw.CreatedAt
	if created == 0 {
		created = nowMs()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO swaps(tx_hash, wallet_address, from_denom, to_denom, from_amount, to_amount, status, created_at, confirmed_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tx_hash) DO UPDATE SET
		status=excluded.status, confirmed_at=excluded.confirmed_at
	`, sw.TxHash, sw.WalletAddress, sw.FromDenom, sw.ToDenom, sw.FromAmount, sw.ToAmount, sw.Status, created, nullMs(sw.ConfirmedAt))
	return err
}

func (t *Tx) UpsertMarket(ctx context.Context, m *model.Market) error {
	ts := m.UpdatedAt
	if ts == 0 {
		ts = nowMs()
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO markets(market_id, step_size, tick_size, min_order_size,
			initial_margin_fraction, maintenance_margin_fraction, status, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market_id) DO UPDATE SET
		step_size=excluded.step_size, tick_size=excluded.tick_size, min_order_size=excluded.min_order_size,
		initial_margin_fraction=excluded.initial_margin_fraction,
		maintenance_margin_fraction=excluded.maintenance_margin_fraction,
		status=excluded.status, updated_at=excluded.updated_at
	`, m.MarketID, m.StepSize, m.TickSize, m.MinOrderSize,
		m.InitialMarginFraction, m.MaintenanceMarginFraction, m.Status, ts)
	return err
}

func (t *Tx) PutSyncLedgerEntry(ctx context.Context, e *model.SyncLedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, putLedgerSQL,
		e.WalletAddress, string(e.DataCategory), e.LastSyncedAt, e.Status, e.RecordCount, e.LastError, e.PassID)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullMs(ms int64) sql.NullInt64 {
	return sql.NullInt64{Int64: ms, Valid: ms != 0}
}

var _ port.RecordTx = (*Tx)(nil)
