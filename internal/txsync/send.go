package txsync

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/pkg/tx"
)

// TransferOutExpiry is how long a transfer-out stays claimable.
const TransferOutExpiry = 600 * time.Second

// Send transfers amount of symbol to the address to and returns the hash
// reported by the node.
func (m *Manager) Send(ctx context.Context, symbol, to string, amount decimal.Decimal, memo string) (string, error) {
	return m.submit(ctx, tx.Transfer{Symbol: symbol, Amount: amount, To: to}, memo)
}

// MoveToBSC transfers amount of symbol to the wallet's own linked account
// on the EVM side chain.
func (m *Manager) MoveToBSC(ctx context.Context, symbol string, amount decimal.Decimal) (string, error) {
	to, err := m.wallet.LinkedPublicKeyHash(m.cfg.LinkedPath)
	if err != nil {
		return "", fmt.Errorf("linked account: %w", err)
	}
	msg := tx.TransferOut{
		Symbol:     symbol,
		Amount:     amount,
		To:         to,
		ExpireTime: m.cfg.Now().Add(TransferOutExpiry).Unix(),
	}
	return m.submit(ctx, msg, "")
}

// submit resyncs the nonce, signs and broadcasts msg. Sends of one wallet
// never interleave.
func (m *Manager) submit(ctx context.Context, msg tx.Msg, memo string) (string, error) {
	m.sendMu.Lock()
	defer m.sendMu.Unlock()

	if err := m.syncer.SyncWallet(ctx, m.wallet); err != nil {
		return "", fmt.Errorf("sync account: %w", err)
	}
	enc, err := m.encoder.Encode(msg, memo)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	hash, err := m.api.Broadcast(ctx, enc.Bytes)
	if err != nil {
		return "", fmt.Errorf("broadcast %s: %w", msg.Kind(), err)
	}
	if hash == "" {
		hash = enc.Hash
	}
	m.log.Info().Str("kind", msg.Kind().String()).Str("hash", hash).Msg("Transaction broadcast")
	return hash, nil
}

// PollInclusion waits until hash is included in a block and returns its
// height. Every empty answer is followed by one PollInterval wait; after
// PollRetries of them it gives up with ErrTransactionNotIncludedInBlock.
func (m *Manager) PollInclusion(ctx context.Context, hash string) (int64, error) {
	for attempt := 1; ; attempt++ {
		height, err := m.api.BlockHeight(ctx, hash)
		if err != nil {
			return 0, fmt.Errorf("query %s: %w", hash, err)
		}
		if height > 0 {
			m.log.Debug().Str("hash", hash).Int64("height", height).Msg("Transaction included")
			return height, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(m.cfg.PollInterval):
		}
		if attempt >= m.cfg.PollRetries {
			return 0, ErrTransactionNotIncludedInBlock
		}
	}
}
