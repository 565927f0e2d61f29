package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tradecore/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_id            TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	max_order_quantity    INTEGER NOT NULL DEFAULT 0,
	max_notional          TEXT NOT NULL DEFAULT '0',
	max_position_quantity INTEGER NOT NULL DEFAULT 0,
	cash_balance          TEXT NOT NULL,
	created_at            INTEGER NOT NULL,
	updated_at            INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	order_id        TEXT PRIMARY KEY,
	account_id      TEXT NOT NULL REFERENCES accounts(account_id),
	client_order_id TEXT NOT NULL DEFAULT '',
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	type            TEXT NOT NULL,
	quantity        INTEGER NOT NULL,
	limit_price     TEXT,
	time_in_force   TEXT NOT NULL,
	twap_slices     INTEGER NOT NULL DEFAULT 0,
	twap_window     INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	filled_quantity INTEGER NOT NULL DEFAULT 0,
	filled_notional TEXT NOT NULL DEFAULT '0',
	reject_reason   TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	cancelled_at    INTEGER
);

CREATE INDEX IF NOT EXISTS orders_account_created ON orders (account_id, created_at);

CREATE TABLE IF NOT EXISTS fills (
	fill_id     TEXT PRIMARY KEY,
	order_id    TEXT NOT NULL REFERENCES orders(order_id),
	quantity    INTEGER NOT NULL CHECK (quantity > 0),
	price       TEXT NOT NULL,
	executed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS fills_order ON fills (order_id);

CREATE TABLE IF NOT EXISTS positions (
	account_id   TEXT NOT NULL REFERENCES accounts(account_id),
	symbol       TEXT NOT NULL,
	quantity     INTEGER NOT NULL,
	average_cost TEXT NOT NULL,
	realized_pnl TEXT NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (account_id, symbol)
);
`

const orderColumns = `order_id, account_id, client_order_id, symbol, side, type, quantity,
	limit_price, time_in_force, twap_slices, twap_window, status, filled_quantity,
	filled_notional, reject_reason, created_at, updated_at, cancelled_at`

// SQLiteStore implements Store on a SQLite database. Each settlement runs
// in its own transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func (s *SQLiteStore) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, name, max_order_quantity, max_notional,
			max_position_quantity, cash_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AccountID, a.Name, a.Limits.MaxOrderQuantity, a.Limits.MaxNotional,
		a.Limits.MaxPositionQuantity, a.CashBalance, a.CreatedAt.UnixNano(), a.UpdatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAccountAlreadyExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return getAccount(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateAccountLimits(ctx context.Context, id string, limits domain.RiskLimits, now time.Time) (*domain.Account, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts SET max_order_quantity = ?, max_notional = ?, max_position_quantity = ?, updated_at = ?
		WHERE account_id = ?`,
		limits.MaxOrderQuantity, limits.MaxNotional, limits.MaxPositionQuantity, now.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update account limits: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return getAccount(ctx, s.db, id)
}

// ---------------------------------------------------------------------------
// Orders and fills
// ---------------------------------------------------------------------------

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	var limit decimal.NullDecimal
	if o.LimitPrice != nil {
		limit = decimal.NewNullDecimal(*o.LimitPrice)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.AccountID, o.ClientOrderID, o.Symbol, string(o.Side), string(o.Type), o.Quantity,
		limit, string(o.TimeInForce), o.TWAPSlices, int64(o.TWAPWindow), string(o.Status), o.FilledQuantity,
		o.FilledNotional, o.RejectReason, o.CreatedAt.UnixNano(), o.UpdatedAt.UnixNano(), nullTime(o.CancelledAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	return o, err
}

func (s *SQLiteStore) UpdateOrder(ctx context.Context, o *domain.Order) error {
	return updateOrder(ctx, s.db, o)
}

func (s *SQLiteStore) ListOrders(ctx context.Context, accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	where := `WHERE account_id = ?`
	args := []any{accountID}
	if status != nil {
		where += ` AND status = ?`
		args = append(args, string(*status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	start, end := pageBounds(total, page, limit)
	if start == end {
		return []*domain.Order{}, total, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, end-start, start)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0, end-start)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

func (s *SQLiteStore) ListOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE status NOT IN (?, ?, ?) ORDER BY created_at, order_id`,
		string(domain.OrderStatusFilled), string(domain.OrderStatusCancelled), string(domain.OrderStatusRejected),
	)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListFills(ctx context.Context, orderID string) ([]*domain.Fill, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE order_id = ?`, orderID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fill_id, order_id, quantity, price, executed_at
		FROM fills WHERE order_id = ? ORDER BY rowid`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list fills: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Fill, 0)
	for rows.Next() {
		var (
			f          domain.Fill
			executedAt int64
		)
		if err := rows.Scan(&f.FillID, &f.OrderID, &f.Quantity, &f.Price, &executedAt); err != nil {
			return nil, fmt.Errorf("scan fill: %w", err)
		}
		f.ExecutedAt = time.Unix(0, executedAt)
		out = append(out, &f)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

func (s *SQLiteStore) GetPosition(ctx context.Context, accountID, symbol string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, symbol, quantity, average_cost, realized_pnl, updated_at
		FROM positions WHERE account_id = ? AND symbol = ?`, accountID, symbol)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.Position{AccountID: accountID, Symbol: symbol}, nil
	}
	return p, err
}

func (s *SQLiteStore) ListPositions(ctx context.Context, accountID string) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, symbol, quantity, average_cost, realized_pnl, updated_at
		FROM positions WHERE account_id = ? ORDER BY symbol`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Position, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Settlement
// ---------------------------------------------------------------------------

func (s *SQLiteStore) Settle(ctx context.Context, st Settlement) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settlement: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var cash decimal.Decimal
	err = tx.QueryRowContext(ctx, `SELECT cash_balance FROM accounts WHERE account_id = ?`, st.Order.AccountID).Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("read cash: %w", err)
	}

	if err = updateOrder(ctx, tx, st.Order); err != nil {
		return err
	}

	f := st.Fill
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO fills (fill_id, order_id, quantity, price, executed_at) VALUES (?, ?, ?, ?, ?)`,
		f.FillID, f.OrderID, f.Quantity, f.Price, f.ExecutedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}

	p := st.Position
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO positions (account_id, symbol, quantity, average_cost, realized_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			average_cost = excluded.average_cost,
			realized_pnl = excluded.realized_pnl,
			updated_at = excluded.updated_at`,
		p.AccountID, p.Symbol, p.Quantity, p.AverageCost, p.RealizedPnL, p.UpdatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE accounts SET cash_balance = ?, updated_at = ? WHERE account_id = ?`,
		cash.Add(st.CashDelta), f.ExecutedAt.UnixNano(), st.Order.AccountID,
	); err != nil {
		return fmt.Errorf("update cash: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit settlement: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func getAccount(ctx context.Context, q queryRower, id string) (*domain.Account, error) {
	var (
		a                    domain.Account
		createdAt, updatedAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT account_id, name, max_order_quantity, max_notional, max_position_quantity,
			cash_balance, created_at, updated_at
		FROM accounts WHERE account_id = ?`, id).Scan(
		&a.AccountID, &a.Name, &a.Limits.MaxOrderQuantity, &a.Limits.MaxNotional,
		&a.Limits.MaxPositionQuantity, &a.CashBalance, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.CreatedAt = time.Unix(0, createdAt)
	a.UpdatedAt = time.Unix(0, updatedAt)
	return &a, nil
}

func updateOrder(ctx context.Context, e execer, o *domain.Order) error {
	res, err := e.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_quantity = ?, filled_notional = ?, reject_reason = ?,
			updated_at = ?, cancelled_at = ?
		WHERE order_id = ?`,
		string(o.Status), o.FilledQuantity, o.FilledNotional, o.RejectReason,
		o.UpdatedAt.UnixNano(), nullTime(o.CancelledAt), o.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func scanOrder(sc scanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		side, typ, tif, st   string
		limit                decimal.NullDecimal
		window               int64
		createdAt, updatedAt int64
		cancelledAt          sql.NullInt64
	)
	err := sc.Scan(
		&o.OrderID, &o.AccountID, &o.ClientOrderID, &o.Symbol, &side, &typ, &o.Quantity,
		&limit, &tif, &o.TWAPSlices, &window, &st, &o.FilledQuantity,
		&o.FilledNotional, &o.RejectReason, &createdAt, &updatedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}
	o.Side = domain.OrderSide(side)
	o.Type = domain.OrderType(typ)
	o.TimeInForce = domain.TimeInForce(tif)
	o.Status = domain.OrderStatus(st)
	o.TWAPWindow = time.Duration(window)
	if limit.Valid {
		p := limit.Decimal
		o.LimitPrice = &p
	}
	o.CreatedAt = time.Unix(0, createdAt)
	o.UpdatedAt = time.Unix(0, updatedAt)
	if cancelledAt.Valid {
		t := time.Unix(0, cancelledAt.Int64)
		o.CancelledAt = &t
	}
	return &o, nil
}

func scanPosition(sc scanner) (*domain.Position, error) {
	var (
		p         domain.Position
		updatedAt int64
	)
	if err := sc.Scan(&p.AccountID, &p.Symbol, &p.Quantity, &p.AverageCost, &p.RealizedPnL, &updatedAt); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Unix(0, updatedAt)
	return &p, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
