package txsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/bnbchain-kit/internal/account"
	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/storage"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

type fakeAPI struct {
	mu sync.Mutex

	pages  []*api.TxPage
	starts []time.Time
	txErr  error

	broadcasts [][]byte
	hash       string
	sendErr    error

	heights []int64
	queries int
}

func (f *fakeAPI) Transactions(_ context.Context, _ string, start time.Time, _ int) (*api.TxPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, start)
	if f.txErr != nil {
		return nil, f.txErr
	}
	if len(f.pages) == 0 {
		return &api.TxPage{}, nil
	}
	p := f.pages[0]
	f.pages = f.pages[1:]
	return p, nil
}

func (f *fakeAPI) Broadcast(_ context.Context, envelope []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.broadcasts = append(f.broadcasts, envelope)
	return f.hash, nil
}

func (f *fakeAPI) BlockHeight(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if len(f.heights) == 0 {
		return 0, nil
	}
	h := f.heights[0]
	f.heights = f.heights[1:]
	return h, nil
}

type fakeSyncer struct {
	state wallet.AccountState
	err   error
	calls int
}

func (f *fakeSyncer) SyncWallet(_ context.Context, w account.Wallet) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	w.SetAccountState(f.state)
	return nil
}

type recorder struct {
	synced [][]store.Transaction
	failed error
}

func (r *recorder) TransactionsSynced(txs []store.Transaction) { r.synced = append(r.synced, txs) }
func (r *recorder) TransactionSyncFailed(err error)            { r.failed = err }

type fixture struct {
	api    *fakeAPI
	syncer *fakeSyncer
	wallet *wallet.Wallet
	store  store.Store
	obs    *recorder
	m      *Manager
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	codec := types.NewCodec(types.TestnetHRP)
	w, err := wallet.New(bytes.Repeat([]byte{0x42}, 64), codec)
	require.NoError(t, err)

	f := &fixture{
		api:    &fakeAPI{},
		syncer: &fakeSyncer{state: wallet.AccountState{AccountNumber: 7, Sequence: 3, ChainID: "Binance-Chain-Ganges"}},
		wallet: w,
		store:  store.NewKV(storage.NewMemory()),
		obs:    &recorder{},
	}
	f.m = NewManager(f.api, f.syncer, w, tx.NewEncoder(w, codec), f.store, Config{
		PollRetries:  3,
		PollInterval: time.Millisecond,
		LinkedPath:   wallet.LinkedTestnetPath,
		Now:          func() time.Time { return now },
	})
	f.m.SetObserver(f.obs)
	return f
}

func apiTx(hash string, at time.Time, from, to string) api.Tx {
	return api.Tx{
		Hash:      hash,
		Timestamp: at.Format(time.RFC3339Nano),
		From:      from,
		To:        to,
		Value:     "1.5",
		Asset:     "BNB",
		Fee:       "0.000375",
	}
}

// fullPage returns PageLimit transactions, newest first, the oldest at oldest.
func fullPage(oldest time.Time) *api.TxPage {
	p := &api.TxPage{Total: PageLimit}
	for i := PageLimit - 1; i >= 0; i-- {
		p.Txs = append(p.Txs, apiTx(fmt.Sprintf("H%04d", i), oldest.Add(time.Duration(i)*time.Minute), "a", "b"))
	}
	return p
}

func TestSync_WindowsUpToNow(t *testing.T) {
	now := LaunchDate.Add(100 * 24 * time.Hour)
	f := newFixture(t, now)

	require.NoError(t, f.m.Sync(context.Background()))

	final := now.Add(-FinalityMargin)
	require.Equal(t, []time.Time{LaunchDate, LaunchDate.Add(Window)}, f.api.starts)
	got, err := f.m.SyncedUntil()
	require.NoError(t, err)
	require.True(t, got.Equal(final), "watermark %v, want %v", got, final)
	require.Empty(t, f.obs.synced)
	require.NoError(t, f.obs.failed)
}

func TestSync_FullPageAdvancesToOldest(t *testing.T) {
	now := LaunchDate.Add(30 * 24 * time.Hour)
	f := newFixture(t, now)
	oldest := LaunchDate.Add(10 * 24 * time.Hour)
	f.api.pages = []*api.TxPage{fullPage(oldest)}

	require.NoError(t, f.m.Sync(context.Background()))

	require.Len(t, f.api.starts, 2)
	require.True(t, f.api.starts[1].Equal(oldest))
	require.Len(t, f.obs.synced, 1)
	require.Len(t, f.obs.synced[0], PageLimit)

	txs, err := f.m.Transactions(store.TransactionQuery{})
	require.NoError(t, err)
	require.Len(t, txs, PageLimit)
}

func TestSync_FullPageNotAdvancingUsesWindow(t *testing.T) {
	now := LaunchDate.Add(200 * 24 * time.Hour)
	f := newFixture(t, now)
	// Every record sits at the window start.
	page := &api.TxPage{}
	for i := 0; i < PageLimit; i++ {
		page.Txs = append(page.Txs, apiTx(fmt.Sprintf("S%04d", i), LaunchDate, "a", "b"))
	}
	f.api.pages = []*api.TxPage{page}

	require.NoError(t, f.m.Sync(context.Background()))
	require.True(t, f.api.starts[1].Equal(LaunchDate.Add(Window)))
	require.Len(t, f.api.starts, 3)
}

func TestSync_ResumesFromWatermark(t *testing.T) {
	now := LaunchDate.Add(400 * 24 * time.Hour)
	f := newFixture(t, now)
	mark := now.Add(-2 * time.Hour)
	require.NoError(t, f.store.SaveSyncedUntil(mark))

	require.NoError(t, f.m.Sync(context.Background()))
	require.Len(t, f.api.starts, 1)
	require.True(t, f.api.starts[0].Equal(mark))
}

func TestSync_WatermarkAheadOfNow(t *testing.T) {
	now := LaunchDate.Add(24 * time.Hour)
	f := newFixture(t, now)
	ahead := now.Add(time.Hour)
	require.NoError(t, f.store.SaveSyncedUntil(ahead))

	require.NoError(t, f.m.Sync(context.Background()))
	require.Len(t, f.api.starts, 1)
	got, err := f.m.SyncedUntil()
	require.NoError(t, err)
	require.True(t, got.Equal(ahead))
}

func TestSync_DropsUnparsableRecords(t *testing.T) {
	now := LaunchDate.Add(24 * time.Hour)
	f := newFixture(t, now)
	good := apiTx("GOOD", LaunchDate.Add(time.Hour), "a", "b")
	badValue := apiTx("BADV", LaunchDate.Add(time.Hour), "a", "b")
	badValue.Value = "lots"
	badTime := apiTx("BADT", LaunchDate.Add(time.Hour), "a", "b")
	badTime.Timestamp = "yesterday"
	f.api.pages = []*api.TxPage{{Txs: []api.Tx{good, badValue, badTime}}}

	require.NoError(t, f.m.Sync(context.Background()))
	require.Len(t, f.obs.synced, 1)
	require.Len(t, f.obs.synced[0], 1)
	require.Equal(t, "GOOD", f.obs.synced[0][0].Hash)
	require.True(t, f.obs.synced[0][0].Amount.Equal(decimal.RequireFromString("1.5")))

	_, err := f.m.Transaction("BNB", "BADV")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestSync_APIErrorKeepsWatermark(t *testing.T) {
	f := newFixture(t, LaunchDate.Add(24*time.Hour))
	boom := errors.New("boom")
	f.api.txErr = boom

	err := f.m.Sync(context.Background())
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, f.obs.failed, boom)

	_, err = f.store.SyncedUntil()
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestTransactions_Direction(t *testing.T) {
	now := LaunchDate.Add(24 * time.Hour)
	f := newFixture(t, now)
	me := f.wallet.Address()
	f.api.pages = []*api.TxPage{{Txs: []api.Tx{
		apiTx("IN", LaunchDate.Add(time.Hour), "other", me),
		apiTx("OUT", LaunchDate.Add(2*time.Hour), me, "other"),
	}}}
	require.NoError(t, f.m.Sync(context.Background()))

	in, err := f.m.Transactions(store.TransactionQuery{Direction: store.DirectionIncoming})
	require.NoError(t, err)
	require.Len(t, in, 1)
	require.Equal(t, "IN", in[0].Hash)

	out, err := f.m.Transactions(store.TransactionQuery{Direction: store.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "OUT", out[0].Hash)

	all, err := f.m.Transactions(store.TransactionQuery{Symbol: "BNB"})
	require.NoError(t, err)
	require.Equal(t, []string{"OUT", "IN"}, []string{all[0].Hash, all[1].Hash})
}

func TestNextWatermark(t *testing.T) {
	start := LaunchDate
	now := start.Add(10 * 24 * time.Hour)
	require.True(t, nextWatermark(start, now, 3, nil).Equal(now))
	require.True(t, nextWatermark(start, start.Add(-time.Hour), 0, nil).Equal(start))

	far := start.Add(365 * 24 * time.Hour)
	require.True(t, nextWatermark(start, far, 0, nil).Equal(start.Add(Window)))

	recs := []store.Transaction{{Date: start.Add(48 * time.Hour)}, {Date: start.Add(24 * time.Hour)}}
	require.True(t, nextWatermark(start, far, PageLimit, recs).Equal(start.Add(24*time.Hour)))
	require.True(t, nextWatermark(start, far, PageLimit-1, recs).Equal(start.Add(Window)))
}
