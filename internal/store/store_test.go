package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/bnbchain-kit/internal/storage"
)

const owner = "bnb1owner"

// runStoreTest runs fn against every backend.
func runStoreTest(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	backends := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"KVMemory", func(t *testing.T) Store { return NewKV(storage.NewMemory()) }},
		{"KVBadger", func(t *testing.T) Store {
			db, err := storage.NewBadgerInMemory()
			require.NoError(t, err)
			return NewKV(db)
		}},
		{"SQLite", func(t *testing.T) Store {
			s, err := NewSQLite(filepath.Join(t.TempDir(), "test.sqlite"))
			require.NoError(t, err)
			return s
		}},
	}
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			t.Cleanup(func() { require.NoError(t, s.Close()) })
			fn(t, s)
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testTx(hash, symbol string, date time.Time, from, to string) Transaction {
	return Transaction{
		Hash: hash, BlockHeight: 100, Date: date, From: from, To: to,
		Amount: dec("1.5"), Fee: dec("0.000375"), Symbol: symbol, Memo: "m",
	}
}

func TestLatestBlock(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		_, err := s.LatestBlock()
		require.ErrorIs(t, err, ErrNotFound)

		when := time.Date(2020, 5, 1, 10, 0, 0, 123e6, time.UTC)
		require.NoError(t, s.SaveLatestBlock(LatestBlock{Height: 42, Hash: "ABC", Time: when}))
		require.NoError(t, s.SaveLatestBlock(LatestBlock{Height: 43, Hash: "DEF", Time: when}))

		b, err := s.LatestBlock()
		require.NoError(t, err)
		require.Equal(t, int64(43), b.Height)
		require.Equal(t, "DEF", b.Hash)
		require.True(t, when.Equal(b.Time))
	})
}

func TestSyncedUntil(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		_, err := s.SyncedUntil()
		require.ErrorIs(t, err, ErrNotFound)

		when := time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveSyncedUntil(when))
		got, err := s.SyncedUntil()
		require.NoError(t, err)
		require.True(t, when.Equal(got))
	})
}

func TestBalances(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		require.NoError(t, s.SaveBalances([]Balance{
			{Symbol: "BNB", Free: dec("199.97207842"), Locked: dec("0"), Frozen: dec("1")},
			{Symbol: "ABC-123", Free: dec("5"), Locked: dec("0.1"), Frozen: dec("0")},
		}))

		all, err := s.Balances()
		require.NoError(t, err)
		require.Len(t, all, 2)
		require.Equal(t, "ABC-123", all[0].Symbol)
		require.Equal(t, "BNB", all[1].Symbol)
		require.True(t, all[1].Free.Equal(dec("199.97207842")))

		require.NoError(t, s.SaveBalances([]Balance{{Symbol: "BNB", Free: dec("2")}}))
		b, err := s.Balance("BNB")
		require.NoError(t, err)
		require.True(t, b.Free.Equal(dec("2")))

		require.NoError(t, s.RemoveBalances([]string{"ABC-123", "MISSING"}))
		_, err = s.Balance("ABC-123")
		require.ErrorIs(t, err, ErrNotFound)
		all, err = s.Balances()
		require.NoError(t, err)
		require.Len(t, all, 1)
	})
}

func TestTransactions_UpsertAndGet(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		tx := testTx("H1", "BNB", base, owner, "bnb1other")
		require.NoError(t, s.SaveTransactions([]Transaction{tx}))

		tx.BlockHeight = 101
		require.NoError(t, s.SaveTransactions([]Transaction{tx}))

		got, err := s.Transaction("BNB", "H1")
		require.NoError(t, err)
		require.Equal(t, int64(101), got.BlockHeight)
		require.True(t, got.Amount.Equal(dec("1.5")))
		require.True(t, got.Fee.Equal(dec("0.000375")))
		require.True(t, base.Equal(got.Date))

		all, err := s.Transactions(TransactionQuery{})
		require.NoError(t, err)
		require.Len(t, all, 1, "upsert must replace, not duplicate")

		_, err = s.Transaction("ABC", "H1")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTransactions_Query(t *testing.T) {
	runStoreTest(t, func(t *testing.T, s Store) {
		base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.SaveTransactions([]Transaction{
			testTx("A", "BNB", base, owner, "bnb1x"),
			testTx("B", "BNB", base.Add(time.Hour), "bnb1x", owner),
			testTx("C", "BNB", base.Add(2*time.Hour), owner, "bnb1y"),
			testTx("D", "XYZ", base.Add(3*time.Hour), "bnb1x", owner),
		}))

		hashes := func(txs []Transaction) []string {
			var out []string
			for _, tx := range txs {
				out = append(out, tx.Hash)
			}
			return out
		}

		all, err := s.Transactions(TransactionQuery{})
		require.NoError(t, err)
		require.Equal(t, []string{"D", "C", "B", "A"}, hashes(all))

		bnb, err := s.Transactions(TransactionQuery{Symbol: "BNB"})
		require.NoError(t, err)
		require.Equal(t, []string{"C", "B", "A"}, hashes(bnb))

		in, err := s.Transactions(TransactionQuery{Symbol: "BNB", Direction: DirectionIncoming, Owner: owner})
		require.NoError(t, err)
		require.Equal(t, []string{"B"}, hashes(in))

		out, err := s.Transactions(TransactionQuery{Direction: DirectionOutgoing, Owner: owner})
		require.NoError(t, err)
		require.Equal(t, []string{"C", "A"}, hashes(out))

		page, err := s.Transactions(TransactionQuery{Symbol: "BNB", FromHash: "C", Limit: 1})
		require.NoError(t, err)
		require.Equal(t, []string{"B"}, hashes(page))

		page, err = s.Transactions(TransactionQuery{Symbol: "BNB", FromHash: "A"})
		require.NoError(t, err)
		require.Empty(t, page)

		_, err = s.Transactions(TransactionQuery{FromHash: "nope"})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestOpen(t *testing.T) {
	for _, backend := range []string{BackendBadger, BackendSQLite, BackendMemory} {
		t.Run(backend, func(t *testing.T) {
			s, err := Open(backend, t.TempDir())
			require.NoError(t, err)
			require.NoError(t, s.SaveSyncedUntil(time.Unix(1, 0)))
			require.NoError(t, s.Close())
		})
	}
	_, err := Open("postgres", t.TempDir())
	require.Error(t, err)
}

func TestKV_DateIndexFollowsUpsert(t *testing.T) {
	s := NewKV(storage.NewMemory())
	defer s.Close()

	base := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveTransactions([]Transaction{
		testTx("A", "BNB", base, "x", owner),
		testTx("B", "BNB", base.Add(time.Hour), "x", owner),
	}))
	// A re-reported with a later date moves ahead of B and leaves no stale
	// index entry behind.
	require.NoError(t, s.SaveTransactions([]Transaction{testTx("A", "BNB", base.Add(2*time.Hour), "x", owner)}))

	all, err := s.Transactions(TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "A", all[0].Hash)
	require.Equal(t, "B", all[1].Hash)

	var entries int
	require.NoError(t, s.byDate.ForEach(nil, func(_, _ []byte) error {
		entries++
		return nil
	}))
	require.Equal(t, 2, entries)
}
