package rpcclient

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/config"
	klog "github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/rpc"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/pkg/kit"
)

const testAddr = "tbnb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq"

type stubBackend struct {
	mu       sync.Mutex
	lastSend string
}

func (b *stubBackend) Address() string                { return testAddr }
func (b *stubBackend) LinkedAddress() (string, error) { return "0x00", nil }
func (b *stubBackend) SyncState() kit.SyncState       { return kit.SyncState{Status: kit.Synced} }
func (b *stubBackend) Refresh()                       {}
func (b *stubBackend) Validate(string) error          { return nil }

func (b *stubBackend) StatusInfo() kit.StatusInfo {
	return kit.StatusInfo{LastBlockHeight: 42, SyncState: b.SyncState(), APIHost: "localhost"}
}

func (b *stubBackend) Balances() ([]kit.Balance, error) {
	return []kit.Balance{{Symbol: "BNB", Free: decimal.RequireFromString("0.001")}}, nil
}

func (b *stubBackend) Transactions(string, kit.Direction, string, int) ([]kit.Transaction, error) {
	return []kit.Transaction{{
		Hash:   "AB",
		Date:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Amount: decimal.NewFromInt(7),
		Symbol: "BNB",
	}}, nil
}

func (b *stubBackend) Transaction(string, string) (*kit.Transaction, error) {
	return nil, store.ErrNotFound
}

func (b *stubBackend) Send(_ context.Context, symbol, to string, amount decimal.Decimal, _ string) (string, error) {
	b.mu.Lock()
	b.lastSend = symbol + " " + amount.String() + " " + to
	b.mu.Unlock()
	return "ABCD", nil
}

func (b *stubBackend) MoveToBSC(context.Context, string, decimal.Decimal) (string, error) {
	return "", errors.New("not supported")
}

type testEnv struct {
	client  *Client
	backend *stubBackend
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	klog.Init("error", false, "")

	backend := &stubBackend{}
	srv := rpc.New("127.0.0.1:0", backend, config.RPCConfig{})
	if err := srv.Start(); err != nil {
		t.Fatalf("start rpc: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return &testEnv{
		client:  New("http://" + srv.Addr() + "/"),
		backend: backend,
	}
}

func TestClient_Status(t *testing.T) {
	env := setupTestEnv(t)

	st, err := env.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if st.Address != testAddr {
		t.Errorf("address = %q, want %q", st.Address, testAddr)
	}
	if st.LastBlockHeight != 42 {
		t.Errorf("height = %d, want 42", st.LastBlockHeight)
	}
	if st.SyncState != "synced" {
		t.Errorf("sync_state = %q, want synced", st.SyncState)
	}
}

func TestClient_Balances(t *testing.T) {
	env := setupTestEnv(t)

	bals, err := env.client.Balances(context.Background())
	if err != nil {
		t.Fatalf("Balances error: %v", err)
	}
	if len(bals) != 1 || bals[0].Free != "0.001" {
		t.Errorf("balances = %+v", bals)
	}
}

func TestClient_Transactions(t *testing.T) {
	env := setupTestEnv(t)

	txs, err := env.client.Transactions(context.Background(), rpc.TransactionsParam{Limit: 5})
	if err != nil {
		t.Fatalf("Transactions error: %v", err)
	}
	if len(txs) != 1 || txs[0].Hash != "AB" || txs[0].Amount != "7" {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestClient_Send(t *testing.T) {
	env := setupTestEnv(t)

	hash, err := env.client.Send(context.Background(), rpc.SendParam{To: testAddr, Amount: "1.25"})
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if hash != "ABCD" {
		t.Errorf("hash = %q, want ABCD", hash)
	}
	env.backend.mu.Lock()
	got := env.backend.lastSend
	env.backend.mu.Unlock()
	if want := "BNB 1.25 " + testAddr; got != want {
		t.Errorf("backend saw %q, want %q", got, want)
	}
}

func TestClient_Call_RawResult(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	if err := env.client.Call(context.Background(), "kit_getAddress", nil, &raw); err != nil {
		t.Fatalf("Call error: %v", err)
	}
	var addr rpc.AddressResult
	if err := json.Unmarshal(raw, &addr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if addr.Linked != "0x00" {
		t.Errorf("linked = %q", addr.Linked)
	}
}

func TestClient_GetTransaction_NotFound(t *testing.T) {
	env := setupTestEnv(t)

	err := env.client.Call(context.Background(), "kit_getTransaction", rpc.TransactionParam{Hash: "FF"}, nil)
	if err == nil {
		t.Fatal("expected error for missing transaction")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != rpc.CodeNotFound {
		t.Errorf("error code = %d, want %d", rpcErr.Code, rpc.CodeNotFound)
	}
}

func TestClient_Call_InvalidEndpoint(t *testing.T) {
	client := New("http://127.0.0.1:1/")

	if _, err := client.Status(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestClient_Call_Cancelled(t *testing.T) {
	env := setupTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := env.client.Call(ctx, "kit_getStatus", nil, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClient_Call_MethodNotFound(t *testing.T) {
	env := setupTestEnv(t)

	var raw json.RawMessage
	err := env.client.Call(context.Background(), "nonexistent_method", nil, &raw)
	if err == nil {
		t.Fatal("expected error for unknown method")
	}

	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("expected RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("error code = %d, want -32601", rpcErr.Code)
	}
}
