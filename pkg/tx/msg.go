// Package tx encodes and signs Binance Chain transactions.
package tx

import (
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies a message type.
type Kind int

// Message kinds.
const (
	KindNewOrder Kind = iota
	KindCancelOrder
	KindFreeze
	KindUnfreeze
	KindTransfer
	KindTransferOut
	KindVote
	KindStdTx
	KindPubKey
)

var kindNames = map[Kind]string{
	KindNewOrder:    "newOrder",
	KindCancelOrder: "cancelOrder",
	KindFreeze:      "freeze",
	KindUnfreeze:    "unfreeze",
	KindTransfer:    "transfer",
	KindTransferOut: "transferOut",
	KindVote:        "vote",
	KindStdTx:       "stdtx",
	KindPubKey:      "pubKey",
}

// typeTags holds the 4-byte amino prefixes of every registered kind.
var typeTags = map[Kind][]byte{
	KindNewOrder:    mustHex("CE6DC043"),
	KindCancelOrder: mustHex("166E681B"),
	KindFreeze:      mustHex("E774B32D"),
	KindUnfreeze:    mustHex("6515FF0D"),
	KindTransfer:    mustHex("2A2C87FA"),
	KindTransferOut: mustHex("800819C0"),
	KindVote:        mustHex("A1CADD36"),
	KindStdTx:       mustHex("F0625DEE"),
	KindPubKey:      mustHex("EB5AE987"),
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Tag returns a copy of the 4-byte type tag of k.
func (k Kind) Tag() []byte {
	return append([]byte(nil), typeTags[k]...)
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Side is the order side.
type Side int64

// Order sides.
const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// OrderType is the order type. Only limit orders are accepted by the chain.
type OrderType int64

// OrderTypeLimit is a limit order.
const OrderTypeLimit OrderType = 2

// TimeInForce controls how long an order stays on the book.
type TimeInForce int64

// Time in force values.
const (
	TimeInForceGTE TimeInForce = 1 // good till expire
	TimeInForceIOC TimeInForce = 3 // immediate or cancel
)

// VoteOption is a governance vote choice.
type VoteOption int64

// Vote options.
const (
	VoteYes        VoteOption = 1
	VoteAbstain    VoteOption = 2
	VoteNo         VoteOption = 3
	VoteNoWithVeto VoteOption = 4
)

// Msg is a message that can be wrapped into a StdTx.
type Msg interface {
	Kind() Kind
	// build returns the protobuf body and the canonical sign doc JSON.
	build(c *msgContext) (body []byte, doc string, err error)
}

// Transfer sends Amount of Symbol from the signer to To.
type Transfer struct {
	Symbol string
	Amount decimal.Decimal
	To     string
}

// TransferOut moves Amount of Symbol to the linked EVM chain account To
// (a 20-byte address). ExpireTime is a unix timestamp in seconds.
type TransferOut struct {
	Symbol     string
	Amount     decimal.Decimal
	To         []byte
	ExpireTime int64
}

// NewOrder places an order. An empty ID is filled with the signer's next
// available order id.
type NewOrder struct {
	ID          string
	Symbol      string
	OrderType   OrderType
	Side        Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	TimeInForce TimeInForce
}

// CancelOrder cancels the order RefID on Symbol.
type CancelOrder struct {
	Symbol string
	RefID  string
}

// Freeze locks Amount of Symbol.
type Freeze struct {
	Symbol string
	Amount decimal.Decimal
}

// Unfreeze releases Amount of Symbol.
type Unfreeze struct {
	Symbol string
	Amount decimal.Decimal
}

// Vote casts Option on governance proposal ProposalID.
type Vote struct {
	ProposalID int64
	Option     VoteOption
}

func (Transfer) Kind() Kind    { return KindTransfer }
func (TransferOut) Kind() Kind { return KindTransferOut }
func (NewOrder) Kind() Kind    { return KindNewOrder }
func (CancelOrder) Kind() Kind { return KindCancelOrder }
func (Freeze) Kind() Kind      { return KindFreeze }
func (Unfreeze) Kind() Kind    { return KindUnfreeze }
func (Vote) Kind() Kind        { return KindVote }
