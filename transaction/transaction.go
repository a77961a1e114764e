// Package transaction implements the single transaction described in spec
// §4.4: a signed transfer of one or more range values from one sender to one
// recipient, grounded on EZ_Transaction/SingleTransaction.py.
package transaction

import (
	"github.com/ezchain/ezchain-core/canon"
	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/rangevalue"
)

// Transaction is a signed transfer of one or more range values.
type Transaction struct {
	Sender    string
	Recipient string
	Nonce     int64
	Timestamp string // ISO-8601
	Values    []*rangevalue.Value
	Signature []byte // nil until Sign is called
	TxHash    [32]byte
}

// New constructs a Transaction and immediately computes its TxHash from the
// canonical serialization of {sender, recipient, nonce, timestamp, values},
// excluding signature and tx_hash. Fails with kind.InvalidArgument if sender,
// recipient, or values are empty.
func New(sender, recipient string, nonce int64, timestamp string, values []*rangevalue.Value) (*Transaction, error) {
	if sender == "" || recipient == "" {
		return nil, kind.InvalidArgumentf("sender and recipient must not be empty")
	}
	if len(values) == 0 {
		return nil, kind.InvalidArgumentf("transaction must carry at least one value")
	}
	tx := &Transaction{
		Sender:    sender,
		Recipient: recipient,
		Nonce:     nonce,
		Timestamp: timestamp,
		Values:    values,
	}
	hash, err := tx.canonicalHash()
	if err != nil {
		return nil, err
	}
	tx.TxHash = hash
	return tx, nil
}

// CanonicalBytes returns the canonical signed-form JSON bytes of tx, as
// specified in spec §6. Used directly by package multitx to nest a batch's
// children into the batch's own canonical form.
func (tx *Transaction) CanonicalBytes() ([]byte, error) {
	return tx.canonicalBytes()
}

func (tx *Transaction) canonicalBytes() ([]byte, error) {
	vals := make([]canon.Value, len(tx.Values))
	for i, v := range tx.Values {
		vals[i] = canon.Value{BeginIndex: v.BeginHex(), EndIndex: v.EndHex(), ValueNum: int64(v.Count())}
	}
	return canon.SingleTransaction(tx.Sender, tx.Recipient, tx.Nonce, tx.Timestamp, vals)
}

func (tx *Transaction) canonicalHash() ([32]byte, error) {
	b, err := tx.canonicalBytes()
	if err != nil {
		return [32]byte{}, err
	}
	return cryptoutil.Hash256(b), nil
}

// Sign computes the transaction's signing digest (the same canonical form
// used for TxHash, since state is never part of either) and signs it with
// priv, storing the resulting ASN.1 DER signature.
func (tx *Transaction) Sign(priv *cryptoutil.PrivateKey) error {
	digest, err := tx.canonicalHash()
	if err != nil {
		return err
	}
	sig, err := cryptoutil.Sign(priv, digest)
	if err != nil {
		return err
	}
	tx.Signature = sig
	return nil
}

// Verify reports whether tx.Signature is a valid signature over tx's
// canonical form under pub. A missing signature yields false, never an
// error; a reconstruction failure also yields false.
func (tx *Transaction) Verify(pub *cryptoutil.PublicKey) bool {
	if len(tx.Signature) == 0 {
		return false
	}
	digest, err := tx.canonicalHash()
	if err != nil {
		return false
	}
	return cryptoutil.Verify(pub, digest, tx.Signature)
}

// IsSelfTransfer reports whether sender and recipient are the same address.
func (tx *Transaction) IsSelfTransfer() bool {
	return tx.Sender == tx.Recipient
}

// CountValuesIntersecting counts how many of tx's values intersect target.
func (tx *Transaction) CountValuesIntersecting(target *rangevalue.Value) int {
	count := 0
	for _, v := range tx.Values {
		if v.Intersects(target) {
			count++
		}
	}
	return count
}

// CountValuesContained counts how many of tx's values are fully contained
// within target.
func (tx *Transaction) CountValuesContained(target *rangevalue.Value) int {
	count := 0
	for _, v := range tx.Values {
		if target.Contains(v) {
			count++
		}
	}
	return count
}
