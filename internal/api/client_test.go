package api

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 5*time.Second, WithBackoff(time.Millisecond, time.Millisecond))
}

func TestNodeInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/node-info", r.URL.Path)
		io.WriteString(w, `{"node_info":{"network":"Binance-Chain-Tigris"},
			"sync_info":{"latest_block_height":12345,"latest_block_hash":"ABCD",
			"latest_block_time":"2020-05-01T10:00:00.123456789Z"}}`)
	})

	info, err := c.NodeInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Binance-Chain-Tigris", info.Network)
	require.Equal(t, "12345", info.LatestBlockHeight)
	require.Equal(t, "ABCD", info.LatestBlockHash)
	require.Equal(t, "2020-05-01T10:00:00.123456789Z", info.LatestBlockTime)
}

func TestAccount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/account/bnb1abc", r.URL.Path)
		io.WriteString(w, `{"address":"bnb1abc","account_number":29,"sequence":7,
			"balances":[{"symbol":"BNB","free":"199.97207842","locked":"0.00000000","frozen":"1.00000000"}]}`)
	})

	acc, err := c.Account(context.Background(), "bnb1abc")
	require.NoError(t, err)
	require.Equal(t, int64(29), acc.AccountNumber)
	require.Equal(t, int64(7), acc.Sequence)
	require.Len(t, acc.Balances, 1)
	require.Equal(t, AccountBalance{Symbol: "BNB", Free: "199.97207842", Locked: "0.00000000", Frozen: "1.00000000"}, acc.Balances[0])
}

func TestAccount_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"code":404,"message":"account not found"}`)
	})

	_, err := c.Account(context.Background(), "bnb1new")
	require.ErrorIs(t, err, ErrAccountNotFound)
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Equal(t, "account not found", apiErr.Message)
}

func TestTransactions(t *testing.T) {
	start := time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "/api/v1/transactions", r.URL.Path)
		require.Equal(t, "bnb1abc", q.Get("address"))
		require.Equal(t, "1000", q.Get("limit"))
		require.Equal(t, "1551916800000", q.Get("startTime"))
		require.Equal(t, "TRANSFER", q.Get("txType"))
		io.WriteString(w, `{"total":1,"tx":[{"txHash":"H1","blockHeight":100,"timeStamp":"2019-03-08T00:00:00.000Z",
			"fromAddr":"bnb1a","toAddr":"bnb1b","value":"1.5","txAsset":"BNB","txFee":"0.000375",
			"memo":"hi","txType":"TRANSFER","code":0}]}`)
	})

	page, err := c.Transactions(context.Background(), "bnb1abc", start, 1000)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	require.Len(t, page.Txs, 1)
	tx := page.Txs[0]
	require.Equal(t, "H1", tx.Hash)
	require.Equal(t, int64(100), tx.BlockHeight)
	require.Equal(t, "1.5", tx.Value)
	require.Equal(t, "BNB", tx.Asset)
	require.Equal(t, "hi", tx.Memo)
}

func TestTx_BlockHeight(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tx/H1", r.URL.Path)
		require.Equal(t, "json", r.URL.Query().Get("format"))
		io.WriteString(w, `{"hash":"H1","height":"4567","ok":true,"code":0,"log":""}`)
	})

	h, err := c.BlockHeight(context.Background(), "H1")
	require.NoError(t, err)
	require.Equal(t, int64(4567), h)

	require.Zero(t, (&TxStatus{Height: ""}).BlockHeight())
	require.Zero(t, (&TxStatus{Height: "x"}).BlockHeight())
}

func TestBroadcast(t *testing.T) {
	envelope := []byte{0x01, 0x02, 0xab}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/broadcast/", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("sync"))
		require.Equal(t, "text/plain", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, hex.EncodeToString(envelope), string(body))
		io.WriteString(w, `[{"hash":"ABC","ok":true,"height":"0","log":"","code":0}]`)
	})

	hash, err := c.Broadcast(context.Background(), envelope)
	require.NoError(t, err)
	require.Equal(t, "ABC", hash)
}

func TestBroadcast_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", `[]`, ErrNoTransactionReturned},
		{"rejected", `[{"hash":"ABC","ok":false,"log":"insufficient fund","code":65541}]`, ErrWrongTransaction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			})
			_, err := c.Broadcast(context.Background(), []byte{1})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRateLimit_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, `{"ap_time":"2020-01-01T00:00:00Z"}`)
	})

	ts, err := c.Time(context.Background())
	require.NoError(t, err)
	require.Equal(t, int32(3), calls.Load())
	require.Equal(t, 2020, ts.Year())
}

func TestRateLimit_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Time(context.Background())
	require.ErrorIs(t, err, ErrRateLimited)
	require.Equal(t, int32(3), calls.Load(), "one attempt plus two retries")
}

func TestRateLimit_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	c := New(srv.URL, time.Second, WithBackoff(time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Time(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	})

	_, err := c.NodeInfo(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "boom", apiErr.Message)
}

func TestHost(t *testing.T) {
	c := New("https://testnet-dex.binance.org/", 0)
	require.Equal(t, "testnet-dex.binance.org", c.Host())
	require.Equal(t, "https://testnet-dex.binance.org", c.Endpoint())
}
