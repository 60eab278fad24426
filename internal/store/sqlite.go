package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	// Register the SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS latest_block (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	height INTEGER NOT NULL,
	hash   TEXT NOT NULL,
	time   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sync_cursor (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	synced_until INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS balances (
	symbol TEXT PRIMARY KEY,
	free   TEXT NOT NULL,
	locked TEXT NOT NULL,
	frozen TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS transactions (
	symbol       TEXT NOT NULL,
	hash         TEXT NOT NULL,
	block_height INTEGER NOT NULL,
	date         INTEGER NOT NULL,
	from_addr    TEXT NOT NULL,
	to_addr      TEXT NOT NULL,
	amount       TEXT NOT NULL,
	fee          TEXT NOT NULL,
	memo         TEXT NOT NULL,
	PRIMARY KEY (symbol, hash)
);
CREATE INDEX IF NOT EXISTS transactions_by_date ON transactions (symbol, date DESC, hash DESC);
`

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	dsn := "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// LatestBlock returns the stored latest block.
func (s *SQLite) LatestBlock() (*LatestBlock, error) {
	var (
		b  LatestBlock
		ms int64
	)
	err := s.db.QueryRow(`SELECT height, hash, time FROM latest_block WHERE id = 1`).Scan(&b.Height, &b.Hash, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest block: %w", err)
	}
	b.Time = time.UnixMilli(ms).UTC()
	return &b, nil
}

// SaveLatestBlock replaces the stored latest block.
func (s *SQLite) SaveLatestBlock(b LatestBlock) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO latest_block (id, height, hash, time) VALUES (1, ?, ?, ?)`,
		b.Height, b.Hash, b.Time.UnixMilli())
	if err != nil {
		return fmt.Errorf("save latest block: %w", err)
	}
	return nil
}

// SyncedUntil returns the history watermark.
func (s *SQLite) SyncedUntil() (time.Time, error) {
	var ms int64
	err := s.db.QueryRow(`SELECT synced_until FROM sync_cursor WHERE id = 1`).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query sync cursor: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SaveSyncedUntil replaces the history watermark.
func (s *SQLite) SaveSyncedUntil(t time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO sync_cursor (id, synced_until) VALUES (1, ?)`, t.UnixMilli())
	if err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBalance(row scanner) (Balance, error) {
	var (
		b                    Balance
		free, locked, frozen string
	)
	if err := row.Scan(&b.Symbol, &free, &locked, &frozen); err != nil {
		return b, err
	}
	var err error
	if b.Free, err = decimal.NewFromString(free); err != nil {
		return b, fmt.Errorf("balance %s free: %w", b.Symbol, err)
	}
	if b.Locked, err = decimal.NewFromString(locked); err != nil {
		return b, fmt.Errorf("balance %s locked: %w", b.Symbol, err)
	}
	if b.Frozen, err = decimal.NewFromString(frozen); err != nil {
		return b, fmt.Errorf("balance %s frozen: %w", b.Symbol, err)
	}
	return b, nil
}

// Balance returns the stored balance of symbol.
func (s *SQLite) Balance(symbol string) (*Balance, error) {
	b, err := scanBalance(s.db.QueryRow(`SELECT symbol, free, locked, frozen FROM balances WHERE symbol = ?`, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query balance: %w", err)
	}
	return &b, nil
}

// Balances returns all stored balances ordered by symbol.
func (s *SQLite) Balances() ([]Balance, error) {
	rows, err := s.db.Query(`SELECT symbol, free, locked, frozen FROM balances ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SaveBalances upserts balances by symbol.
func (s *SQLite) SaveBalances(bs []Balance) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, b := range bs {
			_, err := tx.Exec(`INSERT OR REPLACE INTO balances (symbol, free, locked, frozen) VALUES (?, ?, ?, ?)`,
				b.Symbol, b.Free.String(), b.Locked.String(), b.Frozen.String())
			if err != nil {
				return fmt.Errorf("save balance %s: %w", b.Symbol, err)
			}
		}
		return nil
	})
}

// RemoveBalances deletes the balances of symbols.
func (s *SQLite) RemoveBalances(symbols []string) error {
	return s.inTx(func(tx *sql.Tx) error {
		for _, sym := range symbols {
			if _, err := tx.Exec(`DELETE FROM balances WHERE symbol = ?`, sym); err != nil {
				return fmt.Errorf("remove balance %s: %w", sym, err)
			}
		}
		return nil
	})
}

// SaveTransactions upserts transactions by (symbol, hash).
func (s *SQLite) SaveTransactions(txs []Transaction) error {
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`INSERT OR REPLACE INTO transactions
			(symbol, hash, block_height, date, from_addr, to_addr, amount, fee, memo)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare transaction insert: %w", err)
		}
		defer stmt.Close()

		for _, t := range txs {
			_, err := stmt.Exec(t.Symbol, t.Hash, t.BlockHeight, t.Date.UnixMilli(),
				t.From, t.To, t.Amount.String(), t.Fee.String(), t.Memo)
			if err != nil {
				return fmt.Errorf("save transaction %s: %w", t.Hash, err)
			}
		}
		return nil
	})
}

const txColumns = `symbol, hash, block_height, date, from_addr, to_addr, amount, fee, memo`

func scanTransaction(row scanner) (Transaction, error) {
	var (
		t           Transaction
		ms          int64
		amount, fee string
	)
	err := row.Scan(&t.Symbol, &t.Hash, &t.BlockHeight, &ms, &t.From, &t.To, &amount, &fee, &t.Memo)
	if err != nil {
		return t, err
	}
	t.Date = time.UnixMilli(ms).UTC()
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return t, fmt.Errorf("transaction %s amount: %w", t.Hash, err)
	}
	if t.Fee, err = decimal.NewFromString(fee); err != nil {
		return t, fmt.Errorf("transaction %s fee: %w", t.Hash, err)
	}
	return t, nil
}

// Transaction returns one transaction.
func (s *SQLite) Transaction(symbol, hash string) (*Transaction, error) {
	t, err := scanTransaction(s.db.QueryRow(
		`SELECT `+txColumns+` FROM transactions WHERE symbol = ? AND hash = ?`, symbol, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction: %w", err)
	}
	return &t, nil
}

// Transactions runs q, newest first.
func (s *SQLite) Transactions(q TransactionQuery) ([]Transaction, error) {
	var (
		where []string
		args  []any
	)
	if q.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, q.Symbol)
	}
	switch q.Direction {
	case DirectionIncoming:
		where = append(where, "to_addr = ?")
		args = append(args, q.Owner)
	case DirectionOutgoing:
		where = append(where, "from_addr = ?")
		args = append(args, q.Owner)
	}
	if q.FromHash != "" {
		var ms int64
		cq := `SELECT date FROM transactions WHERE hash = ?`
		cargs := []any{q.FromHash}
		if q.Symbol != "" {
			cq += ` AND symbol = ?`
			cargs = append(cargs, q.Symbol)
		}
		err := s.db.QueryRow(cq+` LIMIT 1`, cargs...).Scan(&ms)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page cursor %s: %w", q.FromHash, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("query page cursor: %w", err)
		}
		where = append(where, "date < ?")
		args = append(args, ms)
	}

	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC, hash DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLite) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
