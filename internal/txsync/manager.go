// Package txsync mirrors the wallet's transfer history and sends
// transactions.
package txsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/internal/account"
	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
)

// History sync parameters.
const (
	// PageLimit is the largest page the transactions endpoint returns.
	PageLimit = 1000
	// Window is the widest time range the endpoint reliably serves per page.
	Window = 88 * 24 * time.Hour
	// FinalityMargin keeps the watermark behind the most recent blocks.
	FinalityMargin = 60 * time.Second
)

// LaunchDate is the default watermark: the chain's mainnet launch.
var LaunchDate = time.Date(2019, 3, 7, 0, 0, 0, 0, time.UTC)

// ErrTransactionNotIncludedInBlock is returned when a broadcast transaction
// was not seen in a block within the poll budget.
var ErrTransactionNotIncludedInBlock = errors.New("transaction not included in block")

// API is the subset of the DEX client the manager needs.
type API interface {
	Transactions(ctx context.Context, address string, start time.Time, limit int) (*api.TxPage, error)
	Broadcast(ctx context.Context, envelope []byte) (string, error)
	BlockHeight(ctx context.Context, hash string) (int64, error)
}

// AccountSyncer refreshes the wallet's on-chain nonce.
type AccountSyncer interface {
	SyncWallet(ctx context.Context, w account.Wallet) error
}

// Wallet is the signing identity used for sends.
type Wallet interface {
	account.Wallet
	tx.Signer
	LinkedPublicKeyHash(path string) ([]byte, error)
}

// Encoder builds signed wire envelopes.
type Encoder interface {
	Encode(msg tx.Msg, memo string) (*tx.Encoded, error)
}

// Observer is notified of history sync outcomes.
type Observer interface {
	TransactionsSynced(txs []store.Transaction)
	TransactionSyncFailed(err error)
}

// Config tunes the manager.
type Config struct {
	// PollRetries is the number of inclusion queries before giving up.
	PollRetries int
	// PollInterval is the wait after each empty inclusion query.
	PollInterval time.Duration
	// LinkedPath is the derivation path of the linked chain account used
	// as the transfer-out destination.
	LinkedPath string
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager syncs history and sends transactions for one wallet.
type Manager struct {
	api      API
	syncer   AccountSyncer
	wallet   Wallet
	encoder  Encoder
	store    store.Store
	cfg      Config
	observer Observer
	log      zerolog.Logger

	syncMu sync.Mutex
	// sendMu serializes nonce resync, encoding and broadcast.
	sendMu sync.Mutex
}

// NewManager creates a transaction manager.
func NewManager(a API, syncer AccountSyncer, w Wallet, enc Encoder, st store.Store, cfg Config) *Manager {
	if cfg.PollRetries <= 0 {
		cfg.PollRetries = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		api:     a,
		syncer:  syncer,
		wallet:  w,
		encoder: enc,
		store:   st,
		cfg:     cfg,
		log:     log.TxSync.With().Str("address", w.Address()).Logger(),
	}
}

// SetObserver registers the observer. It must be called before Sync.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

// Transactions queries stored history. Direction filters apply to the
// wallet address.
func (m *Manager) Transactions(q store.TransactionQuery) ([]store.Transaction, error) {
	q.Owner = m.wallet.Address()
	return m.store.Transactions(q)
}

// Transaction returns one stored transaction.
func (m *Manager) Transaction(symbol, hash string) (*store.Transaction, error) {
	return m.store.Transaction(symbol, hash)
}

// SyncedUntil returns the persisted watermark, or LaunchDate if history was
// never synced.
func (m *Manager) SyncedUntil() (time.Time, error) {
	t, err := m.store.SyncedUntil()
	if errors.Is(err, store.ErrNotFound) {
		return LaunchDate, nil
	}
	return t, err
}

// Sync fetches history from the watermark up to now, one window at a time.
func (m *Manager) Sync(ctx context.Context) error {
	m.syncMu.Lock()
	defer m.syncMu.Unlock()
	defer log.Benchmark(m.log, "tx sync")()

	err := m.sync(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Transaction sync failed")
		if m.observer != nil {
			m.observer.TransactionSyncFailed(err)
		}
	}
	return err
}

func (m *Manager) sync(ctx context.Context) error {
	start, err := m.SyncedUntil()
	if err != nil {
		return fmt.Errorf("load watermark: %w", err)
	}
	m.log.Debug().Time("start", start).Msg("Syncing transactions")

	for {
		next, now, err := m.syncWindow(ctx, start)
		if err != nil {
			return err
		}
		if !next.Before(now) {
			return nil
		}
		start = next
	}
}

// syncWindow fetches one page from start, persists the new watermark and
// any records, and returns the watermark with the finality-adjusted now.
func (m *Manager) syncWindow(ctx context.Context, start time.Time) (time.Time, time.Time, error) {
	page, err := m.api.Transactions(ctx, m.wallet.Address(), start, PageLimit)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("fetch transactions from %s: %w", start.Format(time.RFC3339), err)
	}

	records := make([]store.Transaction, 0, len(page.Txs))
	for _, t := range page.Txs {
		rec, err := toRecord(t)
		if err != nil {
			m.log.Warn().Err(err).Str("hash", t.Hash).Msg("Dropping unparsable transaction")
			continue
		}
		records = append(records, rec)
	}

	now := m.cfg.Now().UTC().Add(-FinalityMargin)
	next := nextWatermark(start, now, len(page.Txs), records)
	m.log.Debug().
		Int("received", len(page.Txs)).
		Int("kept", len(records)).
		Time("synced_until", next).
		Msg("Transaction window synced")

	if err := m.store.SaveSyncedUntil(next); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("save watermark: %w", err)
	}
	if len(records) > 0 {
		if err := m.store.SaveTransactions(records); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("save transactions: %w", err)
		}
		if m.observer != nil {
			m.observer.TransactionsSynced(records)
		}
	}
	return next, now, nil
}

// nextWatermark picks the new watermark. A full page only guarantees
// coverage up to its oldest record; otherwise the window end (capped at
// now) is covered. The result never moves behind start, and a full page
// that does not advance falls back to the window step.
func nextWatermark(start, now time.Time, received int, records []store.Transaction) time.Time {
	windowEnd := start.Add(Window)
	if windowEnd.After(now) {
		windowEnd = now
	}
	next := windowEnd
	if received >= PageLimit && len(records) > 0 {
		oldest := records[0].Date
		for _, r := range records[1:] {
			if r.Date.Before(oldest) {
				oldest = r.Date
			}
		}
		if oldest.After(start) {
			next = oldest
		}
	}
	if next.Before(start) {
		next = start
	}
	return next
}

func toRecord(t api.Tx) (store.Transaction, error) {
	amount, err := decimal.NewFromString(t.Value)
	if err != nil {
		return store.Transaction{}, fmt.Errorf("value %q: %w", t.Value, err)
	}
	fee, err := decimal.Zero, error(nil)
	if t.Fee != "" {
		if fee, err = decimal.NewFromString(t.Fee); err != nil {
			return store.Transaction{}, fmt.Errorf("fee %q: %w", t.Fee, err)
		}
	}
	date, err := time.Parse(time.RFC3339Nano, t.Timestamp)
	if err != nil {
		return store.Transaction{}, fmt.Errorf("timestamp %q: %w", t.Timestamp, err)
	}
	return store.Transaction{
		Hash:        t.Hash,
		BlockHeight: t.BlockHeight,
		Date:        date.UTC(),
		From:        t.From,
		To:          t.To,
		Amount:      amount,
		Fee:         fee,
		Symbol:      t.Asset,
		Memo:        t.Memo,
	}, nil
}
