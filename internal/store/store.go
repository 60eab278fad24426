// Package store persists the kit's synced state: latest block, history
// watermark, balances and transactions.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/internal/storage"
)

// ErrNotFound is returned for a missing record or an unset singleton.
var ErrNotFound = errors.New("not found")

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Balance is the per-symbol balance of the wallet account.
type Balance struct {
	Symbol string          `json:"symbol"`
	Free   decimal.Decimal `json:"free"`
	Locked decimal.Decimal `json:"locked"`
	Frozen decimal.Decimal `json:"frozen"`
}

// LatestBlock is the most recent block reported by the node.
type LatestBlock struct {
	Height int64     `json:"height"`
	Hash   string    `json:"hash"`
	Time   time.Time `json:"time"`
}

// Transaction is an immutable history record keyed by hash.
type Transaction struct {
	Hash        string          `json:"hash"`
	BlockHeight int64           `json:"block_height"`
	Date        time.Time       `json:"date"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	Fee         decimal.Decimal `json:"fee"`
	Symbol      string          `json:"symbol"`
	Memo        string          `json:"memo"`
}

// Direction filters transactions relative to an owner address.
type Direction int

// Directions.
const (
	DirectionAll Direction = iota
	DirectionIncoming
	DirectionOutgoing
)

// TransactionQuery selects transactions, newest first.
type TransactionQuery struct {
	// Symbol restricts results to one asset; empty means all.
	Symbol string
	// Direction is applied relative to Owner.
	Direction Direction
	Owner     string
	// FromHash pages the results: only records strictly older than the
	// record with this hash are returned.
	FromHash string
	// Limit caps the result count; zero means unlimited.
	Limit int
}

// Store is the persistence contract of the kit.
type Store interface {
	LatestBlock() (*LatestBlock, error)
	SaveLatestBlock(b LatestBlock) error

	// SyncedUntil returns the history watermark or ErrNotFound.
	SyncedUntil() (time.Time, error)
	SaveSyncedUntil(t time.Time) error

	Balance(symbol string) (*Balance, error)
	Balances() ([]Balance, error)
	SaveBalances(bs []Balance) error
	RemoveBalances(symbols []string) error

	// SaveTransactions upserts records by hash.
	SaveTransactions(txs []Transaction) error
	Transaction(symbol, hash string) (*Transaction, error)
	Transactions(q TransactionQuery) ([]Transaction, error)

	Close() error
}

// Open creates a store of the given backend under dir.
func Open(backend, dir string) (Store, error) {
	switch backend {
	case BackendBadger:
		db, err := storage.NewBadger(filepath.Join(dir, "kv"))
		if err != nil {
			return nil, err
		}
		return NewKV(db), nil
	case BackendSQLite:
		return NewSQLite(filepath.Join(dir, "kit.sqlite"))
	case BackendMemory:
		return NewKV(storage.NewMemory()), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// matches reports whether tx passes the symbol and direction filters of q.
func (q TransactionQuery) matches(tx *Transaction) bool {
	if q.Symbol != "" && tx.Symbol != q.Symbol {
		return false
	}
	switch q.Direction {
	case DirectionIncoming:
		return tx.To == q.Owner
	case DirectionOutgoing:
		return tx.From == q.Owner
	}
	return true
}
