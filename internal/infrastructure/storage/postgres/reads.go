package postgres

import (
	"context"
	"database/sql"
	"errors"

	"dexsync/internal/domain/model"
)

func (s *Store) ListWalletLinks(ctx context.Context) ([]model.WalletLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_type, address, chain_id, is_primary
		FROM wallet_links ORDER BY wallet_type, chain_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []model.WalletLink
	for rows.Next() {
		var w model.WalletLink
		if err := rows.Scan(&w.WalletType, &w.Address, &w.ChainID, &w.IsPrimary); err != nil {
			return nil, err
		}
		links = append(links, w)
	}
	return links, rows.Err()
}

func (s *Store) GetUserPreferences(ctx context.Context, addr string) (*model.UserPreferences, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, locale, display_currency, selected_network,
		       terms_acknowledged, onboarding_acknowledged
		FROM user_preferences WHERE wallet_address=$1
	`, addr)

	var p model.UserPreferences
	err := row.Scan(&p.WalletAddress, &p.Locale, &p.DisplayCurrency, &p.SelectedNetwork,
		&p.TermsAcknowledged, &p.OnboardingAcknowledged)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetTradingPreferences(ctx context.Context, addr string) (*model.TradingPreferences, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, default_leverage, slippage_tolerance, margin_mode, confirm_orders
		FROM trading_preferences WHERE wallet_address=$1
	`, addr)

	var p model.TradingPreferences
	err := row.Scan(&p.WalletAddress, &p.DefaultLeverage, &p.SlippageTolerance, &p.MarginMode, &p.ConfirmOrders)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListDismissedItems(ctx context.Context, addr string) ([]model.DismissedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, item_key FROM dismissed_items WHERE wallet_address=$1 ORDER BY item_key
	`, addr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.DismissedItem
	for rows.Next() {
		var d model.DismissedItem
		if err := rows.Scan(&d.WalletAddress, &d.ItemKey); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (s *Store) GetAffiliate(ctx context.Context, addr string) (*model.Affiliate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT wallet_address, code, referred_by FROM affiliates WHERE wallet_address=$1
	`, addr)

	var a model.Affiliate
	err := row.Scan(&a.WalletAddress, &a.Code, &a.ReferredBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) ListBalances(ctx context.Context, addr string) ([]model.Balance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, chain_id, token_symbol, token_denom, amount, available, locked, updated_at
		FROM balances WHERE wallet_address=$1 ORDER BY chain_id, token_symbol
	`, addr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Balance
	for rows.Next() {
		var b model.Balance
		if err := rows.Scan(&b.WalletAddress, &b.ChainID, &b.TokenSymbol, &b.TokenDenom,
			&b.Amount, &b.Available, &b.Locked, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) ListOpenPositions(ctx context.Context, addr string) ([]model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, position_id, market, side, size, entry_price, unrealized_pnl,
		       status, created_at, updated_at
		FROM positions WHERE wallet_address=$1 AND status=$2 ORDER BY created_at DESC
	`, addr, model.PositionOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.WalletAddress, &p.PositionID, &p.Market, &p.Side, &p.Size,
			&p.EntryPrice, &p.UnrealizedPnl, &p.Status, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListActiveOrders(ctx context.Context, addr string) ([]model.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT order_id, wallet_address, market, side, type, size, remaining_size, price,
		       status, created_at, updated_at
		FROM orders
		WHERE wallet_address=$1 AND status NOT IN ('FILLED','CANCELED')
		ORDER BY created_at DESC
	`, addr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.OrderID, &o.WalletAddress, &o.Market, &o.Side, &o.Type, &o.Size,
			&o.RemainingSize, &o.Price, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListRecentTransfers(ctx context.Context, addr string, limit int) ([]model.Transfer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, wallet_address, type, amount, denom, status, created_at, confirmed_at
		FROM transfers WHERE wallet_address=$1 ORDER BY created_at DESC LIMIT $2
	`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transfer
	for rows.Next() {
		var t model.Transfer
		var confirmed sql.NullInt64
		if err := rows.Scan(&t.TxHash, &t.WalletAddress, &t.Type, &t.Amount, &t.Denom,
			&t.Status, &t.CreatedAt, &confirmed); err != nil {
			return nil, err
		}
		t.ConfirmedAt = confirmed.Int64
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListRecentSwaps(ctx context.Context, addr string, limit int) ([]model.Swap, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_hash, wallet_address, from_denom, to_denom, from_amount, to_amount, status, created_at, confirmed_at
		FROM swaps WHERE wallet_address=$1 ORDER BY created_at DESC LIMIT $2
	`, addr, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Swap
	for rows.Next() {
		var sw model.Swap
		var confirmed sql.NullInt64
		if err := rows.Scan(&sw.TxHash, &sw.WalletAddress, &sw.FromDenom, &sw.ToDenom,
			&sw.FromAmount, &sw.ToAmount, &sw.Status, &sw.CreatedAt, &confirmed); err != nil {
			return nil, err
		}
		sw.ConfirmedAt = confirmed.Int64
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *Store) ListMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT market_id, step_size, tick_size, min_order_size, initial_margin_fraction,
		       maintenance_margin_fraction, status, updated_at
		FROM markets ORDER BY market_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Market
	for rows.Next() {
		var m model.Market
		if err := rows.Scan(&m.MarketID, &m.StepSize, &m.TickSize, &m.MinOrderSize,
			&m.InitialMarginFraction, &m.MaintenanceMarginFraction, &m.Status, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) GetSyncStatus(ctx context.Context, addr string) ([]model.SyncLedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT wallet_address, data_category, last_synced_at, status, record_count, last_error, pass_id
		FROM sync_ledger WHERE wallet_address=$1 ORDER BY data_category
	`, addr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncLedgerEntry
	for rows.Next() {
		var e model.SyncLedgerEntry
		var cat string
		if err := rows.Scan(&e.WalletAddress, &cat, &e.LastSyncedAt, &e.Status,
			&e.RecordCount, &e.LastError, &e.PassID); err != nil {
			return nil, err
		}
		e.DataCategory = model.SyncSource(cat)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListSyncedAccounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT wallet_address FROM sync_ledger ORDER BY wallet_address`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
