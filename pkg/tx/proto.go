package tx

import "google.golang.org/protobuf/encoding/protowire"

// Field helpers follow proto3 semantics: zero values are not written.

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendIntField(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

// token: denom=1, amount=2.
func encodeToken(denom string, amount int64) []byte {
	var b []byte
	b = appendStringField(b, 1, denom)
	return appendIntField(b, 2, amount)
}

// Send.Input / Send.Output: address=1, coins=2.
func encodeIO(address []byte, denom string, amount int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, address)
	return appendBytesField(b, 2, encodeToken(denom, amount))
}

// Send: inputs=1, outputs=2.
func encodeSend(from, to []byte, denom string, amount int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, encodeIO(from, denom, amount))
	return appendBytesField(b, 2, encodeIO(to, denom, amount))
}

// TransferOut: from=1, to=2, amount=3, expire_time=4.
func encodeTransferOut(from, to []byte, denom string, amount, expire int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, from)
	b = appendBytesField(b, 2, to)
	b = appendBytesField(b, 3, encodeToken(denom, amount))
	return appendIntField(b, 4, expire)
}

// NewOrder: sender=1, id=2, symbol=3, ordertype=4, side=5, price=6,
// quantity=7, timeinforce=8.
func encodeNewOrder(sender []byte, id, symbol string, orderType, side, price, qty, tif int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, sender)
	b = appendStringField(b, 2, id)
	b = appendStringField(b, 3, symbol)
	b = appendIntField(b, 4, orderType)
	b = appendIntField(b, 5, side)
	b = appendIntField(b, 6, price)
	b = appendIntField(b, 7, qty)
	return appendIntField(b, 8, tif)
}

// CancelOrder: sender=1, symbol=2, refid=3.
func encodeCancelOrder(sender []byte, symbol, refID string) []byte {
	var b []byte
	b = appendBytesField(b, 1, sender)
	b = appendStringField(b, 2, symbol)
	return appendStringField(b, 3, refID)
}

// TokenFreeze / TokenUnfreeze: from=1, symbol=2, amount=3.
func encodeFreeze(from []byte, symbol string, amount int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, from)
	b = appendStringField(b, 2, symbol)
	return appendIntField(b, 3, amount)
}

// Vote: proposal_id=1, voter=2, option=3.
func encodeVote(proposalID int64, voter []byte, option int64) []byte {
	var b []byte
	b = appendIntField(b, 1, proposalID)
	b = appendBytesField(b, 2, voter)
	return appendIntField(b, 3, option)
}

// StdSignature: pub_key=1, signature=2, account_number=3, sequence=4.
func encodeStdSignature(pubKey, sig []byte, accountNumber, sequence int64) []byte {
	var b []byte
	b = appendBytesField(b, 1, pubKey)
	b = appendBytesField(b, 2, sig)
	b = appendIntField(b, 3, accountNumber)
	return appendIntField(b, 4, sequence)
}

// StdTx: msgs=1, signatures=2, memo=3, source=4, data=5.
func encodeStdTx(msgs, sigs [][]byte, memo string, source int64, data []byte) []byte {
	var b []byte
	for _, m := range msgs {
		b = appendBytesField(b, 1, m)
	}
	for _, s := range sigs {
		b = appendBytesField(b, 2, s)
	}
	b = appendStringField(b, 3, memo)
	b = appendIntField(b, 4, source)
	return appendBytesField(b, 5, data)
}
