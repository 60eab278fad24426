// Package crypto provides the hashing and signing primitives used by the
// chain: SHA-256, RIPEMD-160(SHA-256), Keccak-256, and compact secp256k1 ECDSA.
package crypto

import (
	"crypto/sha256"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // required by the address scheme
)

// SHA256 computes the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Hash160 computes RIPEMD160(SHA256(data)).
// This is the account address program derived from a compressed public key.
func Hash160(data []byte) []byte {
	sum := sha256.Sum256(data)
	r := ripemd160.New()
	r.Write(sum[:])
	return r.Sum(nil)
}

// Keccak256 computes the legacy Keccak-256 digest used by EVM chains.
func Keccak256(data []byte) []byte {
	return ethcrypto.Keccak256(data)
}
