// Package multitx implements the multi-transaction (batch) described in
// spec §4.5: a group of single transactions from one sender carrying one
// aggregate ECDSA signature, grounded on
// EZ_Transaction/MultiTransactions.py and Transaction.py's AccountTxns.
package multitx

import (
	"github.com/ezchain/ezchain-core/canon"
	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/transaction"
)

// MultiTransaction is a batch of single transactions from one sender.
type MultiTransaction struct {
	Sender    string
	Timestamp string
	Txs       []*transaction.Transaction
	Digest    [32]byte
	HasDigest bool
	Signature []byte
}

// New constructs a batch. Fails with kind.InvalidArgument if txs is empty,
// and with kind.SenderMismatch if any child's sender differs from sender.
func New(sender, timestamp string, txs []*transaction.Transaction) (*MultiTransaction, error) {
	if len(txs) == 0 {
		return nil, kind.New(kind.InvalidArgument, "batch must contain at least one transaction")
	}
	for _, tx := range txs {
		if tx.Sender != sender {
			return nil, kind.New(kind.SenderMismatch, "child transaction sender does not match batch sender")
		}
	}
	return &MultiTransaction{Sender: sender, Timestamp: timestamp, Txs: txs}, nil
}

// Validate re-checks the structural requirements enforced at construction:
// txs non-empty, every child's sender equal to the batch's sender, and each
// child individually well-formed (it carries a non-zero tx hash).
func (m *MultiTransaction) Validate() error {
	if len(m.Txs) == 0 {
		return kind.New(kind.InvalidArgument, "batch must contain at least one transaction")
	}
	var zero [32]byte
	for _, tx := range m.Txs {
		if tx.Sender != m.Sender {
			return kind.New(kind.SenderMismatch, "child transaction sender does not match batch sender")
		}
		if tx.TxHash == zero {
			return kind.New(kind.InvalidArgument, "child transaction is missing its hash")
		}
	}
	return nil
}

func (m *MultiTransaction) canonicalBytes() ([]byte, error) {
	childCanon := make([][]byte, len(m.Txs))
	for i, tx := range m.Txs {
		b, err := tx.CanonicalBytes()
		if err != nil {
			return nil, err
		}
		childCanon[i] = b
	}
	return canon.MultiTransaction(m.Sender, m.Timestamp, childCanon)
}

// SetDigest computes and stores the SHA-256 digest of the batch's canonical
// form: {sender, timestamp, type:"multi_transaction", transactions:[...]}.
func (m *MultiTransaction) SetDigest() error {
	b, err := m.canonicalBytes()
	if err != nil {
		return err
	}
	m.Digest = cryptoutil.Hash256(b)
	m.HasDigest = true
	return nil
}

// SignBatch recomputes the digest and signs it with priv, storing both.
// Fails with kind.InvalidArgument (EmptyBatch) if the batch has no
// transactions.
func (m *MultiTransaction) SignBatch(priv *cryptoutil.PrivateKey) error {
	if len(m.Txs) == 0 {
		return kind.New(kind.InvalidArgument, "cannot sign an empty batch")
	}
	if err := m.SetDigest(); err != nil {
		return err
	}
	sig, err := cryptoutil.Sign(priv, m.Digest)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// VerifyBatch recomputes the digest and verifies the aggregate signature
// under pub. Returns false (never an error) if the signature or digest is
// absent, or if the recomputed digest does not match the stored one.
func (m *MultiTransaction) VerifyBatch(pub *cryptoutil.PublicKey) bool {
	if len(m.Signature) == 0 || !m.HasDigest {
		return false
	}
	b, err := m.canonicalBytes()
	if err != nil {
		return false
	}
	digest := cryptoutil.Hash256(b)
	if digest != m.Digest {
		return false
	}
	return cryptoutil.Verify(pub, digest, m.Signature)
}
