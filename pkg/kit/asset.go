package kit

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Asset tracks one registered symbol of the wallet.
type Asset struct {
	Symbol  string
	Address string

	mu      sync.RWMutex
	balance decimal.Decimal
	txs     chan []Transaction
}

func newAsset(symbol, address string, balance decimal.Decimal) *Asset {
	return &Asset{
		Symbol:  symbol,
		Address: address,
		balance: balance,
		txs:     make(chan []Transaction, 16),
	}
}

// Balance returns the last known free balance.
func (a *Asset) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Transactions delivers batches of newly synced records of this asset.
// Batches are dropped while the buffer is full. The channel is closed when
// the asset is unregistered or the kit stops.
func (a *Asset) Transactions() <-chan []Transaction {
	return a.txs
}

func (a *Asset) setBalance(b decimal.Decimal) {
	a.mu.Lock()
	a.balance = b
	a.mu.Unlock()
}

func (a *Asset) push(txs []Transaction) {
	select {
	case a.txs <- txs:
	default:
	}
}
