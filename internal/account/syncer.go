// Package account fetches node and account state and applies it to the
// wallet.
package account

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/Klingon-tech/bnbchain-kit/internal/api"
	"github.com/Klingon-tech/bnbchain-kit/internal/log"
	"github.com/Klingon-tech/bnbchain-kit/internal/wallet"
)

// API is the subset of the DEX client the syncer needs.
type API interface {
	NodeInfo(ctx context.Context) (*api.NodeInfo, error)
	Account(ctx context.Context, address string) (*api.Account, error)
}

// Wallet receives the synced account state.
type Wallet interface {
	Address() string
	SetAccountState(s wallet.AccountState)
}

// Syncer fetches node info and account info together.
type Syncer struct {
	api API
}

// NewSyncer creates a syncer.
func NewSyncer(a API) *Syncer {
	return &Syncer{api: a}
}

// Sync fetches node info and the account of address concurrently. An
// unknown account is reported as an empty account.
func (s *Syncer) Sync(ctx context.Context, address string) (*api.NodeInfo, *api.Account, error) {
	var (
		info *api.NodeInfo
		acc  *api.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = s.api.NodeInfo(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		acc, err = s.api.Account(gctx, address)
		if errors.Is(err, api.ErrAccountNotFound) {
			log.Account.Debug().Str("address", address).Msg("Account not on chain yet, using empty account")
			acc = &api.Account{Address: address}
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return info, acc, nil
}

// SyncWallet refreshes the sequence, account number and chain id of w.
func (s *Syncer) SyncWallet(ctx context.Context, w Wallet) error {
	info, acc, err := s.Sync(ctx, w.Address())
	if err != nil {
		return err
	}
	w.SetAccountState(wallet.AccountState{
		AccountNumber: acc.AccountNumber,
		Sequence:      acc.Sequence,
		ChainID:       info.Network,
	})
	log.Account.Debug().
		Int64("account_number", acc.AccountNumber).
		Int64("sequence", acc.Sequence).
		Str("chain_id", info.Network).
		Msg("Wallet account state synced")
	return nil
}
