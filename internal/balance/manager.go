// Package balance keeps the stored balances and latest block in step with
// the chain.
package balance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
)

// Source returns node and account info for an address.
type Source interface {
	Sync(ctx context.Context, address string) (*api.NodeInfo, *api.Account, error)
}

// Observer is notified of sync outcomes.
type Observer interface {
	// BalancesSynced receives the new balances plus zeroed entries for
	// symbols that disappeared. latest is nil when the node reported an
	// unparsable block.
	BalancesSynced(balances []store.Balance, latest *store.LatestBlock)
	BalanceSyncFailed(err error)
}

// Manager syncs balances of one address.
type Manager struct {
	source   Source
	store    store.Store
	address  string
	observer Observer
	log      zerolog.Logger
}

// NewManager creates a balance manager for address.
func NewManager(source Source, st store.Store, address string) *Manager {
	return &Manager{
		source:  source,
		store:   st,
		address: address,
		log:     log.Balance.With().Str("address", address).Logger(),
	}
}

// SetObserver registers the observer. It must be called before Sync.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

// Balance returns the stored balance of symbol.
func (m *Manager) Balance(symbol string) (*store.Balance, error) {
	return m.store.Balance(symbol)
}

// LatestBlock returns the stored latest block.
func (m *Manager) LatestBlock() (*store.LatestBlock, error) {
	return m.store.LatestBlock()
}

// Sync fetches account state, persists it and notifies the observer.
func (m *Manager) Sync(ctx context.Context) error {
	err := m.sync(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to sync balances")
		if m.observer != nil {
			m.observer.BalanceSyncFailed(err)
		}
	}
	return err
}

func (m *Manager) sync(ctx context.Context) error {
	info, acc, err := m.source.Sync(ctx, m.address)
	if err != nil {
		return err
	}
	m.log.Debug().Str("network", info.Network).Str("height", info.LatestBlockHeight).Msg("Node info received")

	balances, err := toBalances(acc.Balances)
	if err != nil {
		return err
	}

	old, err := m.store.Balances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	current := make(map[string]bool, len(balances))
	for _, b := range balances {
		current[b.Symbol] = true
	}
	var removed []store.Balance
	var removedSymbols []string
	for _, b := range old {
		if !current[b.Symbol] {
			removed = append(removed, store.Balance{Symbol: b.Symbol})
			removedSymbols = append(removedSymbols, b.Symbol)
		}
	}

	if err := m.store.SaveBalances(balances); err != nil {
		return fmt.Errorf("save balances: %w", err)
	}
	if len(removedSymbols) > 0 {
		if err := m.store.RemoveBalances(removedSymbols); err != nil {
			return fmt.Errorf("remove balances: %w", err)
		}
	}

	latest, err := parseLatestBlock(info)
	if err != nil {
		m.log.Warn().Err(err).Msg("Skipping latest block")
		latest = nil
	} else if err := m.store.SaveLatestBlock(*latest); err != nil {
		return fmt.Errorf("save latest block: %w", err)
	}

	if m.observer != nil {
		m.observer.BalancesSynced(append(balances, removed...), latest)
	}
	return nil
}

func toBalances(in []api.AccountBalance) ([]store.Balance, error) {
	out := make([]store.Balance, 0, len(in))
	for _, b := range in {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, fmt.Errorf("balance %s free %q: %w", b.Symbol, b.Free, err)
		}
		locked, err := parseOptional(b.Locked)
		if err != nil {
			return nil, fmt.Errorf("balance %s locked %q: %w", b.Symbol, b.Locked, err)
		}
		frozen, err := parseOptional(b.Frozen)
		if err != nil {
			return nil, fmt.Errorf("balance %s frozen %q: %w", b.Symbol, b.Frozen, err)
		}
		out = append(out, store.Balance{Symbol: b.Symbol, Free: free, Locked: locked, Frozen: frozen})
	}
	return out, nil
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// errBadBlock marks unparsable block fields in node info.
var errBadBlock = errors.New("unparsable latest block")

func parseLatestBlock(info *api.NodeInfo) (*store.LatestBlock, error) {
	height, err := strconv.ParseInt(info.LatestBlockHeight, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: height %q", errBadBlock, info.LatestBlockHeight)
	}
	t, err := time.Parse(time.RFC3339Nano, info.LatestBlockTime)
	if err != nil {
		return nil, fmt.Errorf("%w: time %q", errBadBlock, info.LatestBlockTime)
	}
	return &store.LatestBlock{Height: height, Hash: info.LatestBlockHash, Time: t.UTC()}, nil
}
