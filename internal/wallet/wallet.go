package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Klingon-tech/bnbchain-kit/pkg/crypto"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// AccountState is the chain-assigned mutable state of the wallet account.
type AccountState struct {
	AccountNumber int64
	Sequence      int64
	ChainID       string
}

// Wallet is the single-account identity: keys and address are derived once
// from the seed; the account state is refreshed from the chain before sends.
type Wallet struct {
	codec  *types.Codec
	master *HDKey
	signer *crypto.PrivateKey

	publicKey     []byte
	publicKeyHash []byte
	address       string

	mu    sync.RWMutex
	state AccountState
}

// New derives the wallet identity from a BIP-39 seed at PrimaryPath.
func New(seed []byte, codec *types.Codec) (*Wallet, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return nil, err
	}
	key, err := master.Derive(PrimaryPath)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", PrimaryPath, err)
	}
	signer, err := key.Signer()
	if err != nil {
		return nil, err
	}

	pub := signer.PublicKey()
	pkh := crypto.Hash160(pub)
	addr, err := codec.Encode(pkh)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}

	return &Wallet{
		codec:         codec,
		master:        master,
		signer:        signer,
		publicKey:     pub,
		publicKeyHash: pkh,
		address:       addr,
	}, nil
}

// FromMnemonic derives the wallet from a mnemonic and optional passphrase.
func FromMnemonic(mnemonic, passphrase string, codec *types.Codec) (*Wallet, error) {
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return nil, err
	}
	defer zero(seed)
	return New(seed, codec)
}

// Address returns the bech32 account address.
func (w *Wallet) Address() string {
	return w.address
}

// PublicKey returns the compressed 33-byte public key.
func (w *Wallet) PublicKey() []byte {
	return append([]byte(nil), w.publicKey...)
}

// PublicKeyHash returns RIPEMD160(SHA256(compressed public key)).
func (w *Wallet) PublicKeyHash() []byte {
	return append([]byte(nil), w.publicKeyHash...)
}

// PublicKeyHashHex returns the lowercase hex public key hash.
func (w *Wallet) PublicKeyHashHex() string {
	return hex.EncodeToString(w.publicKeyHash)
}

// PublicKeyHashFromAddress decodes another account address on this network.
func (w *Wallet) PublicKeyHashFromAddress(addr string) ([]byte, error) {
	return w.codec.Decode(addr)
}

// LinkedPublicKeyHash derives the 20-byte EVM-style account at path:
// the last 20 bytes of Keccak256 over the uncompressed key without its
// 0x04 prefix.
func (w *Wallet) LinkedPublicKeyHash(path string) ([]byte, error) {
	key, err := w.master.Derive(path)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", path, err)
	}
	uncompressed, err := crypto.DecompressPublicKey(key.PublicKeyBytes())
	if err != nil {
		return nil, err
	}
	h := crypto.Keccak256(uncompressed[1:])
	return h[len(h)-20:], nil
}

// LinkedAddress returns the EIP-55 checksummed address of the linked chain
// account at path.
func (w *Wallet) LinkedAddress(path string) (string, error) {
	pkh, err := w.LinkedPublicKeyHash(path)
	if err != nil {
		return "", err
	}
	return common.BytesToAddress(pkh).Hex(), nil
}

// Sign signs SHA256(message) and returns the 64-byte r||s signature.
func (w *Wallet) Sign(message []byte) ([]byte, error) {
	return w.signer.Sign(crypto.SHA256(message))
}

// AccountState returns a snapshot of the chain account state.
func (w *Wallet) AccountState() AccountState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// SetAccountState overwrites the chain account state. Only the account
// syncer calls this.
func (w *Wallet) SetAccountState(s AccountState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// SigningState returns the values a signature commits to.
func (w *Wallet) SigningState() (accountNumber, sequence int64, chainID string) {
	s := w.AccountState()
	return s.AccountNumber, s.Sequence, s.ChainID
}

// IncrementSequence bumps the local sequence after a message is encoded.
// It does not replace a resync of the on-chain value before sending.
func (w *Wallet) IncrementSequence() {
	w.mu.Lock()
	w.state.Sequence++
	w.mu.Unlock()
}

// NextAvailableOrderID returns the optimistic order id for the next
// new-order message: HEX(pubKeyHash)-<sequence+1>.
func (w *Wallet) NextAvailableOrderID() string {
	w.mu.RLock()
	seq := w.state.Sequence
	w.mu.RUnlock()
	return fmt.Sprintf("%s-%d", strings.ToUpper(w.PublicKeyHashHex()), seq+1)
}

// String describes the wallet without key material.
func (w *Wallet) String() string {
	s := w.AccountState()
	return fmt.Sprintf("Wallet [address=%s accountNumber=%d sequence=%d chainId=%s publicKey=%x]",
		w.address, s.AccountNumber, s.Sequence, s.ChainID, w.publicKey)
}

// Zero wipes the private key.
func (w *Wallet) Zero() {
	w.signer.Zero()
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
