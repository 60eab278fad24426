package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Klingon-tech/bnbchain-kit/internal/storage"
)

// Key namespaces inside the KV database.
var (
	metaPrefix    = []byte("meta/")
	balancePrefix = []byte("bal/")
	txPrefix      = []byte("tx/")
	datePrefix    = []byte("txdate/")

	keyLatestBlock = []byte("latest_block")
	keySyncedUntil = []byte("synced_until")
)

// KV is a Store over a key/value database.
type KV struct {
	db       storage.Store
	meta     *storage.PrefixDB
	balances *storage.PrefixDB
	txs      *storage.PrefixDB
	// byDate maps dateKey -> txKey; reverse key order is newest first.
	byDate *storage.PrefixDB
}

// NewKV wraps db. The store owns db and closes it on Close.
func NewKV(db storage.Store) *KV {
	return &KV{
		db:       db,
		meta:     storage.NewPrefixDB(db, metaPrefix),
		balances: storage.NewPrefixDB(db, balancePrefix),
		txs:      storage.NewPrefixDB(db, txPrefix),
		byDate:   storage.NewPrefixDB(db, datePrefix),
	}
}

func txKey(symbol, hash string) []byte {
	return []byte(symbol + "/" + hash)
}

// dateKey sorts by date, then hash, then symbol. Dates before 1970 are not
// produced by the chain.
func dateKey(tx *Transaction) []byte {
	return []byte(fmt.Sprintf("%016x/%s/%s", uint64(tx.Date.UnixNano()), tx.Hash, tx.Symbol))
}

func getJSON(db storage.DB, key []byte, v any) error {
	data, err := db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func putJSON(w interface{ Put(k, v []byte) error }, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return w.Put(key, data)
}

// LatestBlock returns the stored latest block.
func (s *KV) LatestBlock() (*LatestBlock, error) {
	var b LatestBlock
	if err := getJSON(s.meta, keyLatestBlock, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// SaveLatestBlock replaces the stored latest block.
func (s *KV) SaveLatestBlock(b LatestBlock) error {
	return putJSON(s.meta, keyLatestBlock, b)
}

// SyncedUntil returns the history watermark.
func (s *KV) SyncedUntil() (time.Time, error) {
	var ms int64
	if err := getJSON(s.meta, keySyncedUntil, &ms); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// SaveSyncedUntil replaces the history watermark.
func (s *KV) SaveSyncedUntil(t time.Time) error {
	return putJSON(s.meta, keySyncedUntil, t.UnixMilli())
}

// Balance returns the stored balance of symbol.
func (s *KV) Balance(symbol string) (*Balance, error) {
	var b Balance
	if err := getJSON(s.balances, []byte(symbol), &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Balances returns all stored balances ordered by symbol.
func (s *KV) Balances() ([]Balance, error) {
	var out []Balance
	err := s.balances.ForEach(nil, func(key, value []byte) error {
		var b Balance
		if err := json.Unmarshal(value, &b); err != nil {
			return fmt.Errorf("decode balance %s: %w", key, err)
		}
		out = append(out, b)
		return nil
	})
	return out, err
}

// SaveBalances upserts balances by symbol.
func (s *KV) SaveBalances(bs []Balance) error {
	batch := s.balances.NewBatch()
	for _, b := range bs {
		if err := putJSON(batch, []byte(b.Symbol), b); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// RemoveBalances deletes the balances of symbols.
func (s *KV) RemoveBalances(symbols []string) error {
	batch := s.balances.NewBatch()
	for _, sym := range symbols {
		if err := batch.Delete([]byte(sym)); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// SaveTransactions upserts transactions by (symbol, hash) and keeps the
// date index in the same batch.
func (s *KV) SaveTransactions(txs []Transaction) error {
	batch := s.db.NewBatch()
	for i := range txs {
		tx := &txs[i]
		key := txKey(tx.Symbol, tx.Hash)
		if prev, err := s.Transaction(tx.Symbol, tx.Hash); err == nil && !prev.Date.Equal(tx.Date) {
			if err := batch.Delete(append(clone(datePrefix), dateKey(prev)...)); err != nil {
				return err
			}
		}
		if err := putJSON(batch, append(clone(txPrefix), key...), tx); err != nil {
			return err
		}
		if err := batch.Put(append(clone(datePrefix), dateKey(tx)...), key); err != nil {
			return err
		}
	}
	return batch.Commit()
}

// Transaction returns one transaction.
func (s *KV) Transaction(symbol, hash string) (*Transaction, error) {
	var tx Transaction
	if err := getJSON(s.txs, txKey(symbol, hash), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// errStop ends an index walk early.
var errStop = errors.New("stop")

// Transactions walks the date index newest first, so a page costs at most
// the records newer than its end.
func (s *KV) Transactions(q TransactionQuery) ([]Transaction, error) {
	var (
		out    []Transaction
		cursor *Transaction
	)
	err := s.byDate.ForEachReverse(nil, func(_, key []byte) error {
		var tx Transaction
		if err := getJSON(s.txs, key, &tx); err != nil {
			return fmt.Errorf("index entry %s: %w", key, err)
		}
		if q.FromHash != "" && cursor == nil {
			if tx.Hash == q.FromHash && (q.Symbol == "" || tx.Symbol == q.Symbol) {
				cursor = &tx
			}
			return nil
		}
		if cursor != nil && !tx.Date.Before(cursor.Date) {
			return nil
		}
		if !q.matches(&tx) {
			return nil
		}
		out = append(out, tx)
		if q.Limit > 0 && len(out) == q.Limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	if q.FromHash != "" && cursor == nil {
		return nil, fmt.Errorf("page cursor %s: %w", q.FromHash, ErrNotFound)
	}
	return out, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Close closes the underlying database.
func (s *KV) Close() error {
	return s.db.Close()
}
