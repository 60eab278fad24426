package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Program size limits accepted by Decode (BIP-173 witness program bounds).
const (
	MinProgramSize = 2
	MaxProgramSize = 40
)

// ErrCodec matches every address codec failure via errors.Is.
var ErrCodec = errors.New("address codec")

// Codec failures.
var (
	ErrBitsConversionFailed = fmt.Errorf("%w: bits conversion failed", ErrCodec)
	ErrChecksumSizeTooLow   = fmt.Errorf("%w: checksum size too low", ErrCodec)
	ErrEncodingCheckFailed  = fmt.Errorf("%w: encoding check failed", ErrCodec)
)

// HRPMismatchError is returned when a decoded address carries a different
// human-readable part than expected.
type HRPMismatchError struct {
	Found    string
	Expected string
}

func (e *HRPMismatchError) Error() string {
	return fmt.Sprintf("address codec: hrp mismatch: found %q, expected %q", e.Found, e.Expected)
}

// Is reports ErrCodec as a match.
func (e *HRPMismatchError) Is(target error) bool { return target == ErrCodec }

// DataSizeMismatchError is returned when a decoded program is outside
// [MinProgramSize, MaxProgramSize].
type DataSizeMismatchError struct {
	Size int
}

func (e *DataSizeMismatchError) Error() string {
	return fmt.Sprintf("address codec: data size mismatch: %d", e.Size)
}

// Is reports ErrCodec as a match.
func (e *DataSizeMismatchError) Is(target error) bool { return target == ErrCodec }

// Encode bech32-encodes program under hrp. The result is decoded again and
// compared against the input before it is returned.
func Encode(hrp string, program []byte) (string, error) {
	conv, err := bech32.ConvertBits(program, 8, 5, true)
	if err != nil {
		return "", ErrBitsConversionFailed
	}
	addr, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCodec, err)
	}
	check, err := Decode(hrp, addr)
	if err != nil || !bytes.Equal(check, program) {
		return "", ErrEncodingCheckFailed
	}
	return addr, nil
}

// Decode parses a bech32 address and returns its program bytes.
func Decode(hrp, addr string) ([]byte, error) {
	found, data, err := bech32.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if found != hrp {
		return nil, &HRPMismatchError{Found: found, Expected: hrp}
	}
	if len(data) < 1 {
		return nil, ErrChecksumSizeTooLow
	}
	program, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, ErrBitsConversionFailed
	}
	if len(program) < MinProgramSize || len(program) > MaxProgramSize {
		return nil, &DataSizeMismatchError{Size: len(program)}
	}
	return program, nil
}
