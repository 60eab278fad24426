package tx

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/Klingon-tech/bnbchain-kit/pkg/types"
)

// The sign doc is hand-assembled: the chain verifies signatures over JSON
// with keys in lexical order, which map-based encoders do not guarantee
// for nested fragments.

// msgContext carries the sender identity into message builders.
type msgContext struct {
	from     []byte
	fromAddr string
	codec    *types.Codec
	orderID  func() string
}

// quote renders s as a JSON string literal.
func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func signDoc(accountNumber int64, chainID, memo, msg string, sequence int64) string {
	return fmt.Sprintf(`{"account_number":"%d","chain_id":%s,"data":null,"memo":%s,"msgs":[%s],"sequence":"%d","source":"%d"}`,
		accountNumber, quote(chainID), quote(memo), msg, sequence, Source)
}

func coinDoc(denom string, amount int64) string {
	return fmt.Sprintf(`{"amount":%d,"denom":%s}`, amount, quote(denom))
}

func (m Transfer) build(c *msgContext) ([]byte, string, error) {
	if err := checkSymbol(m.Symbol); err != nil {
		return nil, "", err
	}
	amount, err := checkAmount(m.Amount)
	if err != nil {
		return nil, "", err
	}
	to, err := c.codec.Decode(m.To)
	if err != nil {
		return nil, "", fmt.Errorf("%w %q: %w", ErrInvalidDestination, m.To, err)
	}

	coin := coinDoc(m.Symbol, amount)
	doc := fmt.Sprintf(`{"inputs":[{"address":%s,"coins":[%s]}],"outputs":[{"address":%s,"coins":[%s]}]}`,
		quote(c.fromAddr), coin, quote(m.To), coin)
	return encodeSend(c.from, to, m.Symbol, amount), doc, nil
}

func (m TransferOut) build(c *msgContext) ([]byte, string, error) {
	if err := checkSymbol(m.Symbol); err != nil {
		return nil, "", err
	}
	amount, err := checkAmount(m.Amount)
	if err != nil {
		return nil, "", err
	}
	if len(m.To) != common.AddressLength {
		return nil, "", fmt.Errorf("%w: linked address must be %d bytes, got %d",
			ErrInvalidDestination, common.AddressLength, len(m.To))
	}

	doc := fmt.Sprintf(`{"amount":%s,"expire_time":%d,"from":%s,"to":%s}`,
		coinDoc(m.Symbol, amount), m.ExpireTime, quote(c.fromAddr), quote(common.BytesToAddress(m.To).Hex()))
	return encodeTransferOut(c.from, m.To, m.Symbol, amount, m.ExpireTime), doc, nil
}

func (m NewOrder) build(c *msgContext) ([]byte, string, error) {
	if err := checkSymbol(m.Symbol); err != nil {
		return nil, "", err
	}
	price, err := checkAmount(m.Price)
	if err != nil {
		return nil, "", fmt.Errorf("price: %w", err)
	}
	qty, err := checkAmount(m.Quantity)
	if err != nil {
		return nil, "", fmt.Errorf("quantity: %w", err)
	}
	if m.Side != SideBuy && m.Side != SideSell {
		return nil, "", fmt.Errorf("%w: side %d", ErrInvalidOrder, m.Side)
	}
	id := m.ID
	if id == "" {
		id = c.orderID()
	}

	doc := fmt.Sprintf(`{"id":%s,"ordertype":%d,"price":%d,"quantity":%d,"sender":%s,"side":%d,"symbol":%s,"timeinforce":%d}`,
		quote(id), m.OrderType, price, qty, quote(c.fromAddr), m.Side, quote(m.Symbol), m.TimeInForce)
	body := encodeNewOrder(c.from, id, m.Symbol, int64(m.OrderType), int64(m.Side), price, qty, int64(m.TimeInForce))
	return body, doc, nil
}

func (m CancelOrder) build(c *msgContext) ([]byte, string, error) {
	if err := checkSymbol(m.Symbol); err != nil {
		return nil, "", err
	}
	if m.RefID == "" {
		return nil, "", fmt.Errorf("%w: empty ref id", ErrInvalidOrder)
	}
	doc := fmt.Sprintf(`{"refid":%s,"sender":%s,"symbol":%s}`, quote(m.RefID), quote(c.fromAddr), quote(m.Symbol))
	return encodeCancelOrder(c.from, m.Symbol, m.RefID), doc, nil
}

func freezeDoc(c *msgContext, symbol string, amount decimal.Decimal) (string, int64, error) {
	if err := checkSymbol(symbol); err != nil {
		return "", 0, err
	}
	v, err := checkAmount(amount)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf(`{"amount":%d,"from":%s,"symbol":%s}`, v, quote(c.fromAddr), quote(symbol)), v, nil
}

func (m Freeze) build(c *msgContext) ([]byte, string, error) {
	doc, amount, err := freezeDoc(c, m.Symbol, m.Amount)
	if err != nil {
		return nil, "", err
	}
	return encodeFreeze(c.from, m.Symbol, amount), doc, nil
}

func (m Unfreeze) build(c *msgContext) ([]byte, string, error) {
	doc, amount, err := freezeDoc(c, m.Symbol, m.Amount)
	if err != nil {
		return nil, "", err
	}
	return encodeFreeze(c.from, m.Symbol, amount), doc, nil
}

func (m Vote) build(c *msgContext) ([]byte, string, error) {
	if m.Option < VoteYes || m.Option > VoteNoWithVeto {
		return nil, "", fmt.Errorf("%w: %d", ErrInvalidVoteOption, m.Option)
	}
	doc := fmt.Sprintf(`{"option":%d,"proposal_id":%d,"voter":%s}`, m.Option, m.ProposalID, quote(c.fromAddr))
	return encodeVote(m.ProposalID, c.from, int64(m.Option)), doc, nil
}
