package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// NodeInfo is the subset of /node-info the kit consumes. Block fields are
// kept as reported so callers decide how to handle malformed values.
type NodeInfo struct {
	Network           string
	LatestBlockHeight string
	LatestBlockHash   string
	LatestBlockTime   string
}

// AccountBalance is one balance entry of /account. Amounts are decimal
// strings.
type AccountBalance struct {
	Symbol string
	Free   string
	Locked string
	Frozen string
}

// Account is the /account response.
type Account struct {
	Address       string
	AccountNumber int64
	Sequence      int64
	Balances      []AccountBalance
}

// Tx is one entry of the /transactions response.
type Tx struct {
	Hash        string
	BlockHeight int64
	Timestamp   string
	From        string
	To          string
	Value       string
	Asset       string
	Fee         string
	Memo        string
	Type        string
	Code        int64
}

// TxPage is a page of /transactions.
type TxPage struct {
	Total int64
	Txs   []Tx
}

// TxStatus is the /tx/{hash} response.
type TxStatus struct {
	Hash   string
	Height string
	OK     bool
	Log    string
	Code   int64
}

// BlockHeight parses Height; zero means not yet included.
func (s *TxStatus) BlockHeight() int64 {
	h, err := strconv.ParseInt(s.Height, 10, 64)
	if err != nil {
		return 0
	}
	return h
}

// NodeInfo fetches node and sync information.
func (c *Client) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	r, err := c.get(ctx, "node-info", nil)
	if err != nil {
		return nil, err
	}
	return &NodeInfo{
		Network:           r.Get("node_info.network").String(),
		LatestBlockHeight: r.Get("sync_info.latest_block_height").String(),
		LatestBlockHash:   r.Get("sync_info.latest_block_hash").String(),
		LatestBlockTime:   r.Get("sync_info.latest_block_time").String(),
	}, nil
}

// Account fetches an account. An unknown address yields ErrAccountNotFound.
func (c *Client) Account(ctx context.Context, address string) (*Account, error) {
	r, err := c.get(ctx, "account/"+url.PathEscape(address), nil)
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, errors.Join(ErrAccountNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	acc := &Account{
		Address:       r.Get("address").String(),
		AccountNumber: r.Get("account_number").Int(),
		Sequence:      r.Get("sequence").Int(),
	}
	r.Get("balances").ForEach(func(_, b gjson.Result) bool {
		acc.Balances = append(acc.Balances, AccountBalance{
			Symbol: b.Get("symbol").String(),
			Free:   b.Get("free").String(),
			Locked: b.Get("locked").String(),
			Frozen: b.Get("frozen").String(),
		})
		return true
	})
	return acc, nil
}

// Transactions fetches up to limit transfer transactions of address
// starting at start.
func (c *Client) Transactions(ctx context.Context, address string, start time.Time, limit int) (*TxPage, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
	q.Set("txType", "TRANSFER")

	r, err := c.get(ctx, "transactions", q)
	if err != nil {
		return nil, err
	}

	page := &TxPage{Total: r.Get("total").Int()}
	r.Get("tx").ForEach(func(_, t gjson.Result) bool {
		page.Txs = append(page.Txs, Tx{
			Hash:        t.Get("txHash").String(),
			BlockHeight: t.Get("blockHeight").Int(),
			Timestamp:   t.Get("timeStamp").String(),
			From:        t.Get("fromAddr").String(),
			To:          t.Get("toAddr").String(),
			Value:       t.Get("value").String(),
			Asset:       t.Get("txAsset").String(),
			Fee:         t.Get("txFee").String(),
			Memo:        t.Get("memo").String(),
			Type:        t.Get("txType").String(),
			Code:        t.Get("code").Int(),
		})
		return true
	})
	return page, nil
}

// Tx fetches the status of a transaction by hash.
func (c *Client) Tx(ctx context.Context, hash string) (*TxStatus, error) {
	q := url.Values{}
	q.Set("format", "json")
	r, err := c.get(ctx, "tx/"+url.PathEscape(hash), q)
	if err != nil {
		return nil, err
	}
	return &TxStatus{
		Hash:   r.Get("hash").String(),
		Height: r.Get("height").String(),
		OK:     r.Get("ok").Bool(),
		Log:    r.Get("log").String(),
		Code:   r.Get("code").Int(),
	}, nil
}

// BlockHeight returns the inclusion height of a transaction, zero if it is
// not in a block yet.
func (c *Client) BlockHeight(ctx context.Context, hash string) (int64, error) {
	s, err := c.Tx(ctx, hash)
	if err != nil {
		return 0, err
	}
	return s.BlockHeight(), nil
}

// Broadcast submits a signed wire envelope synchronously and returns the
// transaction hash reported by the node.
func (c *Client) Broadcast(ctx context.Context, envelope []byte) (string, error) {
	q := url.Values{}
	q.Set("sync", "1")
	body := []byte(hex.EncodeToString(envelope))

	r, err := c.do(ctx, http.MethodPost, "broadcast/", q, body, "text/plain")
	if err != nil {
		return "", err
	}

	first := r.Get("0")
	if !first.Exists() {
		return "", ErrNoTransactionReturned
	}
	if !first.Get("ok").Bool() {
		return "", fmt.Errorf("%w: code %d: %s", ErrWrongTransaction, first.Get("code").Int(), first.Get("log").String())
	}
	return first.Get("hash").String(), nil
}

// Time returns the API server time. It doubles as the reachability probe,
// so a 2xx answer with a malformed time still succeeds with a zero time.
func (c *Client) Time(ctx context.Context) (time.Time, error) {
	r, err := c.get(ctx, "time", nil)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := time.Parse(time.RFC3339Nano, r.Get("ap_time").String())
	return t, nil
}
