package types

import (
	"encoding/hex"
	"fmt"
)

// AddressSize is the length of an account address program in bytes.
const AddressSize = 20

// Address HRP (human-readable part) constants for bech32 encoding.
const (
	MainnetHRP = "bnb"
	TestnetHRP = "tbnb"
)

// Codec binds the address encoding to one network HRP.
type Codec struct {
	hrp string
}

// NewCodec returns a codec for the given HRP.
func NewCodec(hrp string) *Codec {
	return &Codec{hrp: hrp}
}

// HRP returns the human-readable part used by this codec.
func (c *Codec) HRP() string {
	return c.hrp
}

// Encode converts a 20-byte program into a bech32 address.
func (c *Codec) Encode(program []byte) (string, error) {
	if len(program) != AddressSize {
		return "", &DataSizeMismatchError{Size: len(program)}
	}
	return Encode(c.hrp, program)
}

// Decode converts a bech32 address into its program bytes.
func (c *Codec) Decode(addr string) ([]byte, error) {
	return Decode(c.hrp, addr)
}

// Validate returns nil when addr decodes under this codec's HRP.
func (c *Codec) Validate(addr string) error {
	_, err := c.Decode(addr)
	return err
}

// ValidateAddress checks that addr is a well-formed address for hrp.
func ValidateAddress(hrp, addr string) error {
	return NewCodec(hrp).Validate(addr)
}

// AddressFromHex encodes a 40-char hex program under hrp.
func AddressFromHex(hrp, s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != AddressSize {
		return "", fmt.Errorf("address must be %d bytes, got %d", AddressSize, len(b))
	}
	return Encode(hrp, b)
}
