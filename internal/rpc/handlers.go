package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/store"
	"github.com/Klingon-tech/bnbchain-kit/pkg/kit"
	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// maxTxLimit caps kit_getTransactions page sizes. It is also the default.
const maxTxLimit = 1000

// ── Status endpoints ────────────────────────────────────────────────────

func (s *Server) handleGetStatus(_ *Request) (interface{}, *Error) {
	info := s.backend.StatusInfo()
	res := &StatusResult{
		Address:         s.backend.Address(),
		SyncState:       syncStateLabel(info.SyncState),
		LastBlockHeight: info.LastBlockHeight,
		SyncedUntil:     optionalTime(info.SyncedUntil),
		APIHost:         info.APIHost,
	}
	if info.SyncState.Err != nil {
		res.SyncError = info.SyncState.Err.Error()
	}
	res.HistorySyncedUntil = optionalTime(info.HistorySyncedUntil)
	return res, nil
}

func (s *Server) handleRefresh(_ *Request) (interface{}, *Error) {
	s.backend.Refresh()
	return &RefreshResult{SyncState: syncStateLabel(s.backend.SyncState())}, nil
}

// ── Address endpoints ───────────────────────────────────────────────────

func (s *Server) handleGetAddress(_ *Request) (interface{}, *Error) {
	linked, err := s.backend.LinkedAddress()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("linked address: %v", err)}
	}
	return &AddressResult{Address: s.backend.Address(), Linked: linked}, nil
}

func (s *Server) handleValidateAddress(req *Request) (interface{}, *Error) {
	var params AddressParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if err := s.backend.Validate(params.Address); err != nil {
		return &ValidateResult{Valid: false, Error: err.Error()}, nil
	}
	return &ValidateResult{Valid: true}, nil
}

// ── Balance / history endpoints ─────────────────────────────────────────

func (s *Server) handleGetBalances(_ *Request) (interface{}, *Error) {
	bals, err := s.backend.Balances()
	if err != nil {
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("balances: %v", err)}
	}
	out := make([]*BalanceResult, 0, len(bals))
	for i := range bals {
		out = append(out, NewBalanceResult(&bals[i]))
	}
	return out, nil
}

func (s *Server) handleGetTransactions(req *Request) (interface{}, *Error) {
	var params TransactionsParam
	if req.Params != nil {
		if err := parseParams(req, &params); err != nil {
			return nil, err
		}
	}
	dir, ok := parseFilter(params.Filter)
	if !ok {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("unknown filter %q", params.Filter)}
	}
	if params.Limit < 0 || params.Limit > maxTxLimit {
		return nil, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("limit must be between 1 and %d", maxTxLimit)}
	}
	if params.Limit == 0 {
		params.Limit = maxTxLimit
	}

	txs, err := s.backend.Transactions(params.Symbol, dir, params.FromHash, params.Limit)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Code: CodeNotFound, Message: err.Error()}
		}
		return nil, &Error{Code: CodeInternalError, Message: fmt.Sprintf("transactions: %v", err)}
	}
	out := make([]*TxResult, 0, len(txs))
	for i := range txs {
		out = append(out, NewTxResult(&txs[i]))
	}
	return out, nil
}

func (s *Server) handleGetTransaction(req *Request) (interface{}, *Error) {
	var params TransactionParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.Hash == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "hash is required"}
	}
	if params.Symbol == "" {
		params.Symbol = kit.NativeSymbol
	}

	t, err := s.backend.Transaction(params.Symbol, params.Hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &Error{Code: CodeNotFound, Message: "transaction not found"}
		}
		return nil, &Error{Code: CodeInternalError, Message: err.Error()}
	}
	return NewTxResult(t), nil
}

// ── Send endpoints ──────────────────────────────────────────────────────

func (s *Server) handleSend(ctx context.Context, req *Request) (interface{}, *Error) {
	var params SendParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	if params.To == "" {
		return nil, &Error{Code: CodeInvalidParams, Message: "to is required"}
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.Symbol == "" {
		params.Symbol = kit.NativeSymbol
	}

	hash, err := s.backend.Send(ctx, params.Symbol, params.To, amount, params.Memo)
	if err != nil {
		s.logger.Warn().Err(err).Str("to", params.To).Msg("Send failed")
		return nil, sendError(err)
	}
	s.logger.Info().Str("hash", hash).Str("to", params.To).Str("amount", amount.String()).Msg("Sent")
	return &SendResult{TxHash: hash}, nil
}

func (s *Server) handleMoveToBSC(ctx context.Context, req *Request) (interface{}, *Error) {
	var params MoveToBSCParam
	if err := parseParams(req, &params); err != nil {
		return nil, err
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if params.Symbol == "" {
		params.Symbol = kit.NativeSymbol
	}

	hash, err := s.backend.MoveToBSC(ctx, params.Symbol, amount)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Move to side chain failed")
		return nil, sendError(err)
	}
	s.logger.Info().Str("hash", hash).Str("amount", amount.String()).Msg("Moved to side chain")
	return &SendResult{TxHash: hash}, nil
}

// ── Helpers ─────────────────────────────────────────────────────────────

func parseAmount(s string) (decimal.Decimal, *Error) {
	if s == "" {
		return decimal.Zero, &Error{Code: CodeInvalidParams, Message: "amount is required"}
	}
	amount, err := types.ParseAmount(s)
	if err != nil {
		return decimal.Zero, &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid amount: %v", err)}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &Error{Code: CodeInvalidParams, Message: "amount must be positive"}
	}
	return amount, nil
}

// sendError maps a send failure to an RPC error.
func sendError(err error) *Error {
	var apiErr *api.Error
	switch {
	case errors.Is(err, types.ErrCodec),
		errors.Is(err, tx.ErrInvalidDestination),
		errors.Is(err, tx.ErrInvalidSymbol),
		errors.Is(err, tx.ErrInvalidAmount),
		errors.Is(err, tx.ErrMemoTooLong):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.As(err, &apiErr),
		errors.Is(err, api.ErrWrongTransaction),
		errors.Is(err, api.ErrNoTransactionReturned):
		return &Error{Code: CodeRejected, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}

func parseFilter(f string) (kit.Direction, bool) {
	switch f {
	case "", "all":
		return kit.All, true
	case "in":
		return kit.Incoming, true
	case "out":
		return kit.Outgoing, true
	default:
		return kit.All, false
	}
}

func syncStateLabel(st kit.SyncState) string {
	switch st.Status {
	case kit.Syncing:
		return "syncing"
	case kit.Synced:
		return "synced"
	default:
		return "not_synced"
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
