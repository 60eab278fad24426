package rpc

import (
	"time"

	"github.com/Klingon-tech/bnbchain-kit/pkg/kit"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeRejected       = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// AddressParam is used by kit_validateAddress.
type AddressParam struct {
	Address string `json:"address"`
}

// TransactionsParam is used by kit_getTransactions.
type TransactionsParam struct {
	Symbol   string `json:"symbol,omitempty"`
	Filter   string `json:"filter,omitempty"` // all, in or out
	FromHash string `json:"from_hash,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// TransactionParam is used by kit_getTransaction.
type TransactionParam struct {
	Symbol string `json:"symbol"`
	Hash   string `json:"hash"`
}

// SendParam is used by kit_send.
type SendParam struct {
	Symbol string `json:"symbol,omitempty"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Memo   string `json:"memo,omitempty"`
}

// MoveToBSCParam is used by kit_moveToBSC.
type MoveToBSCParam struct {
	Symbol string `json:"symbol,omitempty"`
	Amount string `json:"amount"`
}

// ── Result types ────────────────────────────────────────────────────────

// StatusResult is returned by kit_getStatus.
type StatusResult struct {
	Address            string     `json:"address"`
	SyncState          string     `json:"sync_state"`
	SyncError          string     `json:"sync_error,omitempty"`
	LastBlockHeight    int64      `json:"last_block_height"`
	SyncedUntil        *time.Time `json:"synced_until,omitempty"`
	HistorySyncedUntil *time.Time `json:"history_synced_until,omitempty"`
	APIHost            string     `json:"api_host"`
}

// AddressResult is returned by kit_getAddress.
type AddressResult struct {
	Address string `json:"address"`
	Linked  string `json:"linked"`
}

// ValidateResult is returned by kit_validateAddress.
type ValidateResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// BalanceResult is one entry of kit_getBalances.
type BalanceResult struct {
	Symbol string `json:"symbol"`
	Free   string `json:"free"`
	Locked string `json:"locked"`
	Frozen string `json:"frozen"`
}

// TxResult is a history record.
type TxResult struct {
	Hash        string    `json:"hash"`
	BlockHeight int64     `json:"block_height"`
	Date        time.Time `json:"date"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Amount      string    `json:"amount"`
	Fee         string    `json:"fee"`
	Symbol      string    `json:"symbol"`
	Memo        string    `json:"memo,omitempty"`
}

// SendResult is returned by kit_send and kit_moveToBSC.
type SendResult struct {
	TxHash string `json:"tx_hash"`
}

// RefreshResult is returned by kit_refresh.
type RefreshResult struct {
	SyncState string `json:"sync_state"`
}

// NewTxResult converts a history record.
func NewTxResult(t *kit.Transaction) *TxResult {
	return &TxResult{
		Hash:        t.Hash,
		BlockHeight: t.BlockHeight,
		Date:        t.Date,
		From:        t.From,
		To:          t.To,
		Amount:      t.Amount.String(),
		Fee:         t.Fee.String(),
		Symbol:      t.Symbol,
		Memo:        t.Memo,
	}
}

// NewBalanceResult converts a balance.
func NewBalanceResult(b *kit.Balance) *BalanceResult {
	return &BalanceResult{
		Symbol: b.Symbol,
		Free:   b.Free.String(),
		Locked: b.Locked.String(),
		Frozen: b.Frozen.String(),
	}
}
