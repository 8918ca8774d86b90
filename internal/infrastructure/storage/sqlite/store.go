package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"dexsync/internal/application/port"
	"dexsync/internal/domain/model"
)

// Store is the embedded record store. One writer at a time; competing
// writers block up to the busy timeout before the pass fails.
type Store struct {
	db *sql.DB
}

func New(path string, busyTimeoutMs int) (*Store, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	if _, err := db.ExecContext(context.Background(),
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMs)); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS wallet_links (
  wallet_type TEXT NOT NULL,
  address TEXT NOT NULL,
  chain_id TEXT NOT NULL,
  is_primary INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(wallet_type, address, chain_id)
);

CREATE TABLE IF NOT EXISTS user_preferences (
  wallet_address TEXT PRIMARY KEY,
  locale TEXT NOT NULL DEFAULT '',
  display_currency TEXT NOT NULL DEFAULT '',
  selected_network TEXT NOT NULL DEFAULT '',
  terms_acknowledged INTEGER NOT NULL DEFAULT 0,
  onboarding_acknowledged INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trading_preferences (
  wallet_address TEXT PRIMARY KEY,
  default_leverage TEXT NOT NULL DEFAULT '0',
  slippage_tolerance TEXT NOT NULL DEFAULT '0',
  margin_mode TEXT NOT NULL DEFAULT '',
  confirm_orders INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dismissed_items (
  wallet_address TEXT NOT NULL,
  item_key TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY(wallet_address, item_key)
);

CREATE TABLE IF NOT EXISTS affiliates (
  wallet_address TEXT PRIMARY KEY,
  code TEXT NOT NULL DEFAULT '',
  referred_by TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
  wallet_address TEXT NOT NULL,
  chain_id TEXT NOT NULL,
  token_symbol TEXT NOT NULL,
  token_denom TEXT NOT NULL,
  amount TEXT NOT NULL DEFAULT '0',
  available TEXT NOT NULL DEFAULT '0',
  locked TEXT NOT NULL DEFAULT '0',
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(wallet_address, chain_id, token_symbol, token_denom)
);

CREATE TABLE IF NOT EXISTS positions (
  wallet_address TEXT NOT NULL,
  position_id TEXT NOT NULL,
  market TEXT NOT NULL DEFAULT '',
  side TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL DEFAULT '0',
  entry_price TEXT NOT NULL DEFAULT '0',
  unrealized_pnl TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT 'OPEN',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  PRIMARY KEY(wallet_address, position_id)
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(wallet_address, status);

CREATE TABLE IF NOT EXISTS orders (
  order_id TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  market TEXT NOT NULL DEFAULT '',
  side TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL DEFAULT '0',
  remaining_size TEXT NOT NULL DEFAULT '0',
  price TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_wallet ON orders(wallet_address, status);

CREATE TABLE IF NOT EXISTS fills (
  fill_id TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  order_id TEXT NOT NULL DEFAULT '',
  market TEXT NOT NULL DEFAULT '',
  side TEXT NOT NULL DEFAULT '',
  size TEXT NOT NULL DEFAULT '0',
  price TEXT NOT NULL DEFAULT '0',
  fee TEXT NOT NULL DEFAULT '0',
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_wallet ON fills(wallet_address);

CREATE TABLE IF NOT EXISTS transfers (
  tx_hash TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT '',
  amount TEXT NOT NULL DEFAULT '0',
  denom TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  confirmed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_transfers_wallet ON transfers(wallet_address, created_at);

CREATE TABLE IF NOT EXISTS swaps (
  tx_hash TEXT PRIMARY KEY,
  wallet_address TEXT NOT NULL,
  from_denom TEXT NOT NULL DEFAULT '',
  to_denom TEXT NOT NULL DEFAULT '',
  from_amount TEXT NOT NULL DEFAULT '0',
  to_amount TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT '',
  created_at INTEGER NOT NULL,
  confirmed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_swaps_wallet ON swaps(wallet_address, created_at);

CREATE TABLE IF NOT EXISTS markets (
  market_id TEXT PRIMARY KEY,
  step_size TEXT NOT NULL DEFAULT '0',
  tick_size TEXT NOT NULL DEFAULT '0',
  min_order_size TEXT NOT NULL DEFAULT '0',
  initial_margin_fraction TEXT NOT NULL DEFAULT '0',
  maintenance_margin_fraction TEXT NOT NULL DEFAULT '0',
  status TEXT NOT NULL DEFAULT '',
  updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_ledger (
  wallet_address TEXT NOT NULL,
  data_category TEXT NOT NULL,
  last_synced_at INTEGER NOT NULL,
  status TEXT NOT NULL,
  record_count INTEGER NOT NULL,
  last_error TEXT NOT NULL DEFAULT '',
  pass_id TEXT NOT NULL DEFAULT '',
  PRIMARY KEY(wallet_address, data_category)
);
`)
	return err
}

func (s *Store) Begin(ctx context.Context) (port.RecordTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapBusy(err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) PutSyncLedgerEntryStandalone(ctx context.Context, e *model.SyncLedgerEntry) error {
	_, err := s.db.ExecContext(ctx, putLedgerSQL,
		e.WalletAddress, string(e.DataCategory), e.LastSyncedAt, e.Status, e.RecordCount, e.LastError, e.PassID)
	return mapBusy(err)
}

// mapBusy wraps SQLITE_BUSY so callers can tell a timed-out writer wait
// apart from other storage failures.
func mapBusy(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: %v", port.ErrStoreBusy, err)
	}
	return err
}

var _ port.RecordStore = (*Store)(nil)
