package txsync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

var dest = mustAddress(bytes.Repeat([]byte{0x11}, 20))

func mustAddress(pkh []byte) string {
	addr, err := types.Encode(types.TestnetHRP, pkh)
	if err != nil {
		panic(err)
	}
	return addr
}

func TestSend_ResyncsAndBroadcasts(t *testing.T) {
	f := newFixture(t, time.Now())
	f.api.hash = "ABCDEF"

	hash, err := f.m.Send(context.Background(), "BNB", dest, decimal.RequireFromString("0.1"), "memo")
	require.NoError(t, err)
	require.Equal(t, "ABCDEF", hash)
	require.Equal(t, 1, f.syncer.calls)
	require.Len(t, f.api.broadcasts, 1)

	envHash, err := tx.HashEnvelope(f.api.broadcasts[0])
	require.NoError(t, err)
	require.Len(t, envHash, 64)

	// The synced sequence is consumed by the send.
	require.Equal(t, int64(4), f.wallet.AccountState().Sequence)
	require.Equal(t, int64(7), f.wallet.AccountState().AccountNumber)
}

func TestSend_FallsBackToLocalHash(t *testing.T) {
	f := newFixture(t, time.Now())

	hash, err := f.m.Send(context.Background(), "BNB", dest, decimal.RequireFromString("1"), "")
	require.NoError(t, err)
	want, err := tx.HashEnvelope(f.api.broadcasts[0])
	require.NoError(t, err)
	require.Equal(t, want, hash)
}

func TestSend_Errors(t *testing.T) {
	t.Run("sync", func(t *testing.T) {
		f := newFixture(t, time.Now())
		f.syncer.err = errors.New("offline")
		_, err := f.m.Send(context.Background(), "BNB", dest, decimal.RequireFromString("1"), "")
		require.ErrorIs(t, err, f.syncer.err)
		require.Empty(t, f.api.broadcasts)
	})
	t.Run("bad destination", func(t *testing.T) {
		f := newFixture(t, time.Now())
		_, err := f.m.Send(context.Background(), "BNB", "bnb1nope", decimal.RequireFromString("1"), "")
		require.ErrorIs(t, err, tx.ErrInvalidDestination)
		require.Empty(t, f.api.broadcasts)
	})
	t.Run("rejected", func(t *testing.T) {
		f := newFixture(t, time.Now())
		f.api.sendErr = api.ErrWrongTransaction
		_, err := f.m.Send(context.Background(), "BNB", dest, decimal.RequireFromString("1"), "")
		require.ErrorIs(t, err, api.ErrWrongTransaction)
		// The signed sequence stays consumed; the next send resyncs it.
		require.Equal(t, f.syncer.state.Sequence+1, f.wallet.AccountState().Sequence)
	})
}

func TestSend_RejectedByNode(t *testing.T) {
	var bodies atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bodies.Add(1)
		io.WriteString(w, `[{"hash":"ABC","ok":false,"log":"insufficient fund","code":65541}]`)
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, time.Now())
	client := api.New(srv.URL, 5*time.Second, api.WithBackoff(time.Millisecond))
	m := NewManager(client, f.syncer, f.wallet, tx.NewEncoder(f.wallet, types.NewCodec(types.TestnetHRP)), f.store, Config{
		LinkedPath: wallet.LinkedTestnetPath,
	})

	_, err := m.Send(context.Background(), "BNB", dest, decimal.RequireFromString("1"), "")
	require.ErrorIs(t, err, api.ErrWrongTransaction)
	require.Equal(t, int32(1), bodies.Load(), "rejections are not retried")
	require.Equal(t, f.syncer.state.Sequence+1, f.wallet.AccountState().Sequence)
}

func TestMoveToBSC(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newFixture(t, now)
	f.api.hash = "BEEF"

	hash, err := f.m.MoveToBSC(context.Background(), "BNB", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	require.Equal(t, "BEEF", hash)
	require.Len(t, f.api.broadcasts, 1)

	linked, err := f.wallet.LinkedPublicKeyHash(wallet.LinkedTestnetPath)
	require.NoError(t, err)
	require.Contains(t, string(f.api.broadcasts[0]), string(linked))
}

func TestPollInclusion(t *testing.T) {
	t.Run("included", func(t *testing.T) {
		f := newFixture(t, time.Now())
		f.api.heights = []int64{0, 0, 1234}
		h, err := f.m.PollInclusion(context.Background(), "H")
		require.NoError(t, err)
		require.Equal(t, int64(1234), h)
		require.Equal(t, 3, f.api.queries)
	})
	t.Run("not included", func(t *testing.T) {
		f := newFixture(t, time.Now())
		_, err := f.m.PollInclusion(context.Background(), "H")
		require.ErrorIs(t, err, ErrTransactionNotIncludedInBlock)
		require.Equal(t, 3, f.api.queries)
	})
	t.Run("waits after every empty answer", func(t *testing.T) {
		f := newFixture(t, time.Now())
		f.m.cfg.PollInterval = 20 * time.Millisecond
		start := time.Now()
		_, err := f.m.PollInclusion(context.Background(), "H")
		require.ErrorIs(t, err, ErrTransactionNotIncludedInBlock)
		require.GreaterOrEqual(t, time.Since(start), 3*f.m.cfg.PollInterval)
	})
	t.Run("defaults", func(t *testing.T) {
		f := newFixture(t, time.Now())
		m := NewManager(f.api, f.syncer, f.wallet, nil, f.store, Config{})
		require.Equal(t, 5, m.cfg.PollRetries)
		require.Equal(t, time.Second, m.cfg.PollInterval)
	})
	t.Run("cancelled", func(t *testing.T) {
		f := newFixture(t, time.Now())
		f.m.cfg.PollInterval = time.Hour
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.m.PollInclusion(ctx, "H")
		require.ErrorIs(t, err, context.Canceled)
	})
}
