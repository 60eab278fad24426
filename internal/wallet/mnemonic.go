// Package wallet implements the HD wallet identity: mnemonic and seed
// handling, BIP-32 derivation, address derivation, signing, and the
// encrypted keystore.
package wallet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// ErrInvalidMnemonic is returned for phrases failing the BIP-39 word list
// or checksum.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// SeedSize is the length of a BIP-39 seed in bytes.
const SeedSize = 64

// DefaultWordCount is the phrase length of new wallets.
const DefaultWordCount = 24

// entropyBits maps supported phrase lengths to their entropy size.
var entropyBits = map[int]int{12: 128, 15: 160, 18: 192, 21: 224, 24: 256}

// GenerateMnemonic creates a fresh DefaultWordCount-word phrase.
func GenerateMnemonic() (string, error) {
	return NewMnemonic(DefaultWordCount)
}

// NewMnemonic creates a fresh phrase of the given length (12, 15, 18, 21
// or 24 words).
func NewMnemonic(words int) (string, error) {
	bits, ok := entropyBits[words]
	if !ok {
		return "", fmt.Errorf("unsupported mnemonic length %d", words)
	}
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generate entropy: %w", err)
	}
	defer clear(entropy)
	return bip39.NewMnemonic(entropy)
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic reports why a phrase is unusable, or nil.
func ValidateMnemonic(mnemonic string) error {
	words := strings.Fields(NormalizeMnemonic(mnemonic))
	if _, ok := entropyBits[len(words)]; !ok {
		return fmt.Errorf("%w: %d words", ErrInvalidMnemonic, len(words))
	}
	if _, err := bip39.EntropyFromMnemonic(strings.Join(words, " ")); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return nil
}

// SeedFromMnemonic runs the BIP-39 key stretch over a validated phrase.
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	return bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase), nil
}
