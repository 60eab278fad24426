package kit

import (
	"errors"
	"fmt"

	"github.com/Klingon-tech/bnbchain-kit/internal/store"
)

// Sync errors.
var (
	// ErrNotStarted is the sync error before the first refresh.
	ErrNotStarted = errors.New("not started")
	// ErrSyncInProgress is returned by Sync while another sync runs.
	ErrSyncInProgress = errors.New("sync in progress")
)

// SyncStatus is the coarse sync state of the kit.
type SyncStatus int

const (
	NotSynced SyncStatus = iota
	Syncing
	Synced
)

// SyncState is the kit sync state. Err is set only for NotSynced.
type SyncState struct {
	Status SyncStatus
	Err    error
}

// Equal compares status and error identity.
func (s SyncState) Equal(o SyncState) bool {
	return s.Status == o.Status && s.Err == o.Err
}

func (s SyncState) String() string {
	switch s.Status {
	case Syncing:
		return "syncing"
	case Synced:
		return "synced"
	default:
		return fmt.Sprintf("not synced (%v)", s.Err)
	}
}

// Balance is a per-symbol account balance.
type Balance = store.Balance

// Transaction is a synced history record.
type Transaction = store.Transaction

// Direction filters transactions relative to the wallet.
type Direction = store.Direction

// Transaction filters.
const (
	All      = store.DirectionAll
	Incoming = store.DirectionIncoming
	Outgoing = store.DirectionOutgoing
)

// Event is published to subscribers.
type Event interface {
	event()
}

// SyncStateChanged reports a sync state transition.
type SyncStateChanged struct {
	State SyncState
}

// LastBlockHeightChanged reports a new latest block height.
type LastBlockHeightChanged struct {
	Height int64
}

// BalancesChanged carries the synced balances, including zeroed entries
// for symbols that disappeared from the account.
type BalancesChanged struct {
	Balances []Balance
}

// TransactionsSynced carries newly synced records of one symbol.
type TransactionsSynced struct {
	Symbol       string
	Transactions []Transaction
}

func (SyncStateChanged) event()       {}
func (LastBlockHeightChanged) event() {}
func (BalancesChanged) event()        {}
func (TransactionsSynced) event()     {}
