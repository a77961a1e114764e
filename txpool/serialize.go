package txpool

import (
	"bytes"
	"encoding/gob"

	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/multitx"
	"github.com/ezchain/ezchain-core/rangevalue"
	"github.com/ezchain/ezchain-core/transaction"
)

// The pool's persisted blob is a stable structured format local to the
// store (spec §9 explicitly allows this, distinct from the deterministic
// JSON used for hashing and signing). It is encoded with the standard
// library's encoding/gob rather than the deterministic canon package,
// since nothing here crosses a trust boundary.

type valueDTO struct {
	Begin string
	Count uint64
	State int
}

type txDTO struct {
	Sender    string
	Recipient string
	Nonce     int64
	Timestamp string
	Values    []valueDTO
	Signature []byte
}

type batchDTO struct {
	Sender    string
	Timestamp string
	Txs       []txDTO
	Signature []byte
}

func encodeBatch(batch *multitx.MultiTransaction) ([]byte, error) {
	dto := batchDTO{Sender: batch.Sender, Timestamp: batch.Timestamp, Signature: batch.Signature}
	for _, tx := range batch.Txs {
		t := txDTO{
			Sender:    tx.Sender,
			Recipient: tx.Recipient,
			Nonce:     tx.Nonce,
			Timestamp: tx.Timestamp,
			Signature: tx.Signature,
		}
		for _, v := range tx.Values {
			t.Values = append(t.Values, valueDTO{Begin: v.BeginHex(), Count: v.Count(), State: int(v.State())})
		}
		dto.Txs = append(dto.Txs, t)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dto); err != nil {
		return nil, kind.Wrap(kind.StorageFailure, err, "txpool: encode batch")
	}
	return buf.Bytes(), nil
}

func decodeBatch(blob []byte) (*multitx.MultiTransaction, error) {
	var dto batchDTO
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&dto); err != nil {
		return nil, kind.Wrap(kind.StorageFailure, err, "txpool: decode batch")
	}
	txs := make([]*transaction.Transaction, 0, len(dto.Txs))
	for _, t := range dto.Txs {
		values := make([]*rangevalue.Value, 0, len(t.Values))
		for _, v := range t.Values {
			rv, err := rangevalue.New(v.Begin, v.Count, rangevalue.State(v.State))
			if err != nil {
				return nil, err
			}
			values = append(values, rv)
		}
		tx, err := transaction.New(t.Sender, t.Recipient, t.Nonce, t.Timestamp, values)
		if err != nil {
			return nil, err
		}
		tx.Signature = t.Signature
		txs = append(txs, tx)
	}
	batch, err := multitx.New(dto.Sender, dto.Timestamp, txs)
	if err != nil {
		return nil, err
	}
	batch.Signature = dto.Signature
	if err := batch.SetDigest(); err != nil {
		return nil, err
	}
	return batch, nil
}
