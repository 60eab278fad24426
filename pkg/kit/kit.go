// Package kit is the public entry point: it owns one wallet, keeps its
// balances and history in sync with the chain, and sends transactions.
package kit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/bnbchain-kit/config"
	"github.com/Klingon-tech/bnbchain-kit/internal/account"
	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/balance"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/netstate"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/internal/txsync"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// NativeSymbol is the chain's native token.
const NativeSymbol = "BNB"

const eventBuffer = 64

// Kit is the wallet facade.
type Kit struct {
	cfg     *config.Config
	codec   *types.Codec
	wallet  *wallet.Wallet
	client  *api.Client
	store   store.Store
	balance *balance.Manager
	txs     *txsync.Manager
	monitor *netstate.Monitor
	logger  zerolog.Logger

	mu          sync.RWMutex
	state       SyncState
	blockHeight int64
	assets      []*Asset
	subs        []chan Event
	stopped     bool

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New derives the wallet from seed and opens its store. Nothing touches the
// network until Start.
func New(seed []byte, cfg *config.Config, opts ...api.Option) (*Kit, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	codec := types.NewCodec(cfg.Network.HRP())
	w, err := wallet.New(seed, codec)
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	st, err := store.Open(cfg.Storage.Backend, cfg.StoreDir())
	if err != nil {
		w.Zero()
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := api.New(cfg.API.Endpoint, cfg.API.Timeout, opts...)
	syncer := account.NewSyncer(client)

	ctx, cancel := context.WithCancel(context.Background())
	k := &Kit{
		cfg:     cfg,
		codec:   codec,
		wallet:  w,
		client:  client,
		store:   st,
		balance: balance.NewManager(syncer, st, w.Address()),
		txs: txsync.NewManager(client, syncer, w, tx.NewEncoder(w, codec), st, txsync.Config{
			PollRetries:  cfg.Sync.PollRetries,
			PollInterval: cfg.Sync.PollInterval,
			LinkedPath:   cfg.Network.LinkedPath(),
		}),
		monitor: netstate.NewMonitor(client, cfg.Sync.ProbeInterval),
		logger:  log.WithWallet(log.Kit, cfg.WalletID),
		state:   SyncState{Status: NotSynced, Err: ErrNotStarted},
		ctx:     ctx,
		cancel:  cancel,
	}
	k.balance.SetObserver(balanceObserver{k})
	k.txs.SetObserver(txObserver{k})

	if latest, err := st.LatestBlock(); err == nil {
		k.blockHeight = latest.Height
	} else if !errors.Is(err, store.ErrNotFound) {
		k.logger.Warn().Err(err).Msg("Failed to read stored latest block")
	}

	k.logger.Info().
		Str("address", w.Address()).
		Str("network", string(cfg.Network)).
		Str("backend", cfg.Storage.Backend).
		Msg("Kit created")
	return k, nil
}

// Start probes the API, watches reachability and runs the first refresh.
func (k *Kit) Start() {
	changes := k.monitor.Subscribe()
	k.monitor.Start(k.ctx)

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for {
			select {
			case <-k.ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				k.Refresh()
			}
		}
	}()

	k.Refresh()
}

// Stop cancels background work, closes the store and wipes the key.
// Calls after the first are no-ops.
func (k *Kit) Stop() {
	k.stopOnce.Do(k.stop)
}

func (k *Kit) stop() {
	k.mu.Lock()
	k.stopped = true
	k.mu.Unlock()

	k.cancel()
	k.monitor.Stop()
	k.wg.Wait()

	k.mu.Lock()
	for _, ch := range k.subs {
		close(ch)
	}
	k.subs = nil
	for _, a := range k.assets {
		close(a.txs)
	}
	k.assets = nil
	k.mu.Unlock()

	if err := k.store.Close(); err != nil {
		k.logger.Warn().Err(err).Msg("Failed to close store")
	}
	k.wallet.Zero()
	k.logger.Info().Msg("Kit stopped")
}

// Refresh starts a balance and history sync unless one is running or the
// API is unreachable. It does not wait for the sync.
func (k *Kit) Refresh() {
	if !k.begin(2) {
		return
	}
	go func() {
		defer k.wg.Done()
		k.balance.Sync(k.ctx)
	}()
	go func() {
		defer k.wg.Done()
		k.txs.Sync(k.ctx)
	}()
}

// Sync is the blocking form of Refresh: it runs both syncs and returns the
// first failure. It fails with ErrSyncInProgress if a sync is running.
func (k *Kit) Sync(ctx context.Context) error {
	if !k.monitor.Reachable() {
		k.setState(SyncState{Status: NotSynced, Err: netstate.ErrNotReachable})
		return netstate.ErrNotReachable
	}
	if !k.begin(1) {
		return ErrSyncInProgress
	}
	defer k.wg.Done()

	var g errgroup.Group
	g.Go(func() error { return k.balance.Sync(ctx) })
	g.Go(func() error { return k.txs.Sync(ctx) })
	return g.Wait()
}

// begin moves to Syncing and reserves n slots in the wait group. It reports
// false if the API is down, a sync is running or the kit stopped.
func (k *Kit) begin(n int) bool {
	if !k.monitor.Reachable() {
		k.setState(SyncState{Status: NotSynced, Err: netstate.ErrNotReachable})
		return false
	}

	k.mu.Lock()
	if k.stopped || k.state.Status == Syncing {
		k.mu.Unlock()
		k.logger.Debug().Msg("Already syncing")
		return false
	}
	k.state = SyncState{Status: Syncing}
	// Added under the lock so Stop never waits on a group that grows later.
	k.wg.Add(n)
	k.mu.Unlock()

	k.logger.Debug().Msg("Syncing")
	k.publish(SyncStateChanged{State: SyncState{Status: Syncing}})
	return true
}

// SyncState returns the current sync state.
func (k *Kit) SyncState() SyncState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// LastBlockHeight returns the last known block height, zero if unknown.
func (k *Kit) LastBlockHeight() int64 {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.blockHeight
}

// Address returns the wallet address.
func (k *Kit) Address() string {
	return k.wallet.Address()
}

// LinkedAddress returns the wallet's account on the linked EVM side chain.
func (k *Kit) LinkedAddress() (string, error) {
	return k.wallet.LinkedAddress(k.cfg.Network.LinkedPath())
}

// Balance returns the stored free balance of symbol, zero if unknown.
func (k *Kit) Balance(symbol string) decimal.Decimal {
	b, err := k.balance.Balance(symbol)
	if err != nil {
		return decimal.Zero
	}
	return b.Free
}

// Balances returns all stored balances.
func (k *Kit) Balances() ([]Balance, error) {
	return k.store.Balances()
}

// NativeBalance returns the free BNB balance.
func (k *Kit) NativeBalance() decimal.Decimal {
	return k.Balance(NativeSymbol)
}

// Register starts tracking symbol and returns its asset.
func (k *Kit) Register(symbol string) *Asset {
	a := newAsset(symbol, k.wallet.Address(), k.Balance(symbol))
	k.mu.Lock()
	k.assets = append(k.assets, a)
	k.mu.Unlock()
	return a
}

// Unregister stops tracking a and closes its transaction channel.
func (k *Kit) Unregister(a *Asset) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, x := range k.assets {
		if x == a {
			k.assets = append(k.assets[:i], k.assets[i+1:]...)
			close(a.txs)
			return
		}
	}
}

// Subscribe returns a channel of kit events. Events are dropped while the
// buffer is full. The channel is closed by Stop.
func (k *Kit) Subscribe() <-chan Event {
	ch := make(chan Event, eventBuffer)
	k.mu.Lock()
	if k.stopped {
		close(ch)
	} else {
		k.subs = append(k.subs, ch)
	}
	k.mu.Unlock()
	return ch
}

// Validate checks that address is a valid address of the kit's network.
func (k *Kit) Validate(address string) error {
	return k.codec.Validate(address)
}

// Transactions returns stored history of symbol, newest first. A non-empty
// fromHash returns only records older than that record; limit zero means
// unlimited.
func (k *Kit) Transactions(symbol string, dir Direction, fromHash string, limit int) ([]Transaction, error) {
	return k.txs.Transactions(store.TransactionQuery{
		Symbol:    symbol,
		Direction: dir,
		FromHash:  fromHash,
		Limit:     limit,
	})
}

// Transaction returns one stored record.
func (k *Kit) Transaction(symbol, hash string) (*Transaction, error) {
	return k.txs.Transaction(symbol, hash)
}

// Send transfers amount of symbol to the address to. It returns once the
// node accepted the transaction; inclusion is watched in the background
// and followed by a refresh.
func (k *Kit) Send(ctx context.Context, symbol, to string, amount decimal.Decimal, memo string) (string, error) {
	k.logger.Debug().Str("symbol", symbol).Str("to", to).Str("amount", amount.String()).Msg("Sending")
	hash, err := k.txs.Send(ctx, symbol, to, amount, memo)
	if err != nil {
		return "", err
	}
	k.watch(hash)
	return hash, nil
}

// MoveToBSC transfers amount of symbol to the wallet's own account on the
// linked side chain.
func (k *Kit) MoveToBSC(ctx context.Context, symbol string, amount decimal.Decimal) (string, error) {
	k.logger.Debug().Str("symbol", symbol).Str("amount", amount.String()).Msg("Moving to side chain")
	hash, err := k.txs.MoveToBSC(ctx, symbol, amount)
	if err != nil {
		return "", err
	}
	k.watch(hash)
	return hash, nil
}

// WaitForInclusion blocks until hash is in a block and returns its height.
func (k *Kit) WaitForInclusion(ctx context.Context, hash string) (int64, error) {
	return k.txs.PollInclusion(ctx, hash)
}

func (k *Kit) watch(hash string) {
	k.mu.Lock()
	if k.stopped {
		k.mu.Unlock()
		return
	}
	k.wg.Add(1)
	k.mu.Unlock()
	go func() {
		defer k.wg.Done()
		height, err := k.txs.PollInclusion(k.ctx, hash)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			k.logger.Error().Err(err).Str("hash", hash).Msg("Transaction send error")
		} else {
			k.logger.Info().Str("hash", hash).Int64("height", height).Msg("Transaction included")
		}
		k.Refresh()
	}()
}

// StatusInfo is a snapshot for status displays.
type StatusInfo struct {
	// SyncedUntil is the time of the latest stored block.
	SyncedUntil time.Time
	// HistorySyncedUntil is the transaction history watermark.
	HistorySyncedUntil time.Time
	LastBlockHeight    int64
	SyncState          SyncState
	APIHost            string
}

// StatusInfo reports the sync progress.
func (k *Kit) StatusInfo() StatusInfo {
	info := StatusInfo{
		LastBlockHeight: k.LastBlockHeight(),
		SyncState:       k.SyncState(),
		APIHost:         k.client.Host(),
	}
	if latest, err := k.balance.LatestBlock(); err == nil {
		info.SyncedUntil = latest.Time
	}
	if t, err := k.txs.SyncedUntil(); err == nil {
		info.HistorySyncedUntil = t
	}
	return info
}

func (k *Kit) setState(s SyncState) {
	k.mu.Lock()
	if k.state.Equal(s) {
		k.mu.Unlock()
		return
	}
	k.state = s
	k.mu.Unlock()
	k.logger.Debug().Str("state", s.String()).Msg("Sync state changed")
	k.publish(SyncStateChanged{State: s})
}

func (k *Kit) publish(e Event) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	for _, ch := range k.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

type balanceObserver struct{ k *Kit }

func (o balanceObserver) BalancesSynced(balances []store.Balance, latest *store.LatestBlock) {
	k := o.k
	k.mu.Lock()
	for _, b := range balances {
		for _, a := range k.assets {
			if a.Symbol == b.Symbol {
				a.setBalance(b.Free)
			}
		}
	}
	heightChanged := latest != nil && latest.Height != k.blockHeight
	if heightChanged {
		k.blockHeight = latest.Height
	}
	k.mu.Unlock()

	if heightChanged {
		k.publish(LastBlockHeightChanged{Height: latest.Height})
	}
	k.publish(BalancesChanged{Balances: balances})
	k.setState(SyncState{Status: Synced})
}

func (o balanceObserver) BalanceSyncFailed(err error) {
	o.k.setState(SyncState{Status: NotSynced, Err: err})
}

type txObserver struct{ k *Kit }

func (o txObserver) TransactionsSynced(txs []store.Transaction) {
	k := o.k
	bySymbol := make(map[string][]Transaction)
	var order []string
	for _, t := range txs {
		if _, ok := bySymbol[t.Symbol]; !ok {
			order = append(order, t.Symbol)
		}
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}

	k.mu.RLock()
	for _, a := range k.assets {
		if batch, ok := bySymbol[a.Symbol]; ok {
			a.push(batch)
		}
	}
	k.mu.RUnlock()

	for _, symbol := range order {
		k.publish(TransactionsSynced{Symbol: symbol, Transactions: bySymbol[symbol]})
	}
}

func (o txObserver) TransactionSyncFailed(err error) {
	o.k.setState(SyncState{Status: NotSynced, Err: err})
}
