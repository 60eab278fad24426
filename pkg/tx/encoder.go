package tx

import (
	"encoding/hex"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/Klingon-tech/bnbchain-kit/pkg/crypto"
	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// Source is the source id written into every StdTx.
const Source = 1

// Signer is the wallet view required to encode a transaction.
type Signer interface {
	Address() string
	PublicKey() []byte
	PublicKeyHash() []byte
	Sign(message []byte) ([]byte, error)
	SigningState() (accountNumber, sequence int64, chainID string)
	NextAvailableOrderID() string
	IncrementSequence()
}

// Encoded is a signed transaction ready for broadcast.
type Encoded struct {
	// Bytes is the length-prefixed wire envelope.
	Bytes []byte
	// Hash is the uppercase hex transaction hash.
	Hash string
	// SignDoc is the JSON preimage that was signed.
	SignDoc string
}

// Hex returns the wire envelope as hex, the body format of the broadcast API.
func (e *Encoded) Hex() string {
	return hex.EncodeToString(e.Bytes)
}

// Encoder builds signed transactions for a single signer.
type Encoder struct {
	signer Signer
	codec  *types.Codec
}

// NewEncoder creates an encoder. codec resolves destination addresses.
func NewEncoder(signer Signer, codec *types.Codec) *Encoder {
	return &Encoder{signer: signer, codec: codec}
}

// Encode signs msg with the current account state and returns the wire
// envelope. On success the signer's sequence is incremented.
func (e *Encoder) Encode(msg Msg, memo string) (*Encoded, error) {
	if err := checkMemo(memo); err != nil {
		return nil, err
	}

	c := &msgContext{
		from:     e.signer.PublicKeyHash(),
		fromAddr: e.signer.Address(),
		codec:    e.codec,
		orderID:  e.signer.NextAvailableOrderID,
	}
	body, msgDoc, err := msg.build(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}

	accountNumber, sequence, chainID := e.signer.SigningState()
	doc := signDoc(accountNumber, chainID, memo, msgDoc, sequence)
	sig, err := e.signer.Sign([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("sign %s: %w", msg.Kind(), err)
	}

	stdSig := encodeStdSignature(encodePubKey(e.signer.PublicKey()), sig, accountNumber, sequence)
	msgBytes := append(msg.Kind().Tag(), body...)
	stdTx := encodeStdTx([][]byte{msgBytes}, [][]byte{stdSig}, memo, Source, nil)

	content := append(KindStdTx.Tag(), stdTx...)
	out := protowire.AppendVarint(nil, uint64(len(content)))
	out = append(out, content...)

	e.signer.IncrementSequence()

	return &Encoded{Bytes: out, Hash: Hash(content), SignDoc: doc}, nil
}

// encodePubKey prefixes a compressed key with its type tag and length.
func encodePubKey(key []byte) []byte {
	b := KindPubKey.Tag()
	b = protowire.AppendVarint(b, uint64(len(key)))
	return append(b, key...)
}

// Hash returns the transaction hash of tagged StdTx bytes (the envelope
// without its length prefix): uppercase hex SHA256.
func Hash(stdTx []byte) string {
	return strings.ToUpper(hex.EncodeToString(crypto.SHA256(stdTx)))
}

// HashEnvelope strips the length prefix from a wire envelope and hashes it.
func HashEnvelope(envelope []byte) (string, error) {
	n, l := protowire.ConsumeVarint(envelope)
	if l < 0 {
		return "", fmt.Errorf("read length prefix: %w", protowire.ParseError(l))
	}
	if uint64(len(envelope)-l) != n {
		return "", fmt.Errorf("length prefix %d does not match payload %d", n, len(envelope)-l)
	}
	return Hash(envelope[l:]), nil
}
