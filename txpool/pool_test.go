package txpool_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/multitx"
	"github.com/ezchain/ezchain-core/rangevalue"
	"github.com/ezchain/ezchain-core/transaction"
	"github.com/ezchain/ezchain-core/txpool"
)

func genKeyPair(t *testing.T) (*cryptoutil.PrivateKey, *cryptoutil.PublicKey) {
	t.Helper()
	raw, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(raw)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	priv, err := cryptoutil.LoadPrivateKeyPEM(pemBytes)
	require.NoError(t, err)
	return priv, priv.PublicKey()
}

func makeBatch(t *testing.T, priv *cryptoutil.PrivateKey, sender string, begin string, count uint64, nonce int64, timestamp string) *multitx.MultiTransaction {
	t.Helper()
	v, err := rangevalue.New(begin, count, rangevalue.Unspent)
	require.NoError(t, err)
	tx, err := transaction.New(sender, "recipient", nonce, timestamp, []*rangevalue.Value{v})
	require.NoError(t, err)
	require.NoError(t, tx.Sign(priv))
	batch, err := multitx.New(sender, timestamp, []*transaction.Transaction{tx})
	require.NoError(t, err)
	return batch
}

func openTestPool(t *testing.T, maxAge time.Duration) *txpool.Pool {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := txpool.Open(dbPath, maxAge)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAddAndDuplicate(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t, 24*time.Hour)

	batch := makeBatch(t, priv, "alice", "0x1000", 50, 1, "2024-01-01T00:00:00Z")
	require.NoError(t, batch.SignBatch(priv))

	accepted, msg, err := pool.Add(batch, pub)
	require.NoError(t, err)
	require.True(t, accepted, "expected acceptance, got rejection: %s", msg)

	accepted, _, err = pool.Add(batch, pub)
	require.NoError(t, err)
	require.False(t, accepted, "expected duplicate rejection")
	require.EqualValues(t, 1, pool.Stats().Duplicates)
	require.Equal(t, 1, pool.Len())
}

func TestAddRejectsInvalidSignature(t *testing.T) {
	priv, _ := genKeyPair(t)
	_, otherPub := genKeyPair(t)
	pool := openTestPool(t, 24*time.Hour)

	batch := makeBatch(t, priv, "alice", "0x1000", 50, 1, "2024-01-01T00:00:00Z")
	require.NoError(t, batch.SignBatch(priv))

	accepted, _, err := pool.Add(batch, otherPub)
	require.NoError(t, err)
	require.False(t, accepted, "expected rejection under the wrong public key")
	require.EqualValues(t, 1, pool.Stats().InvalidReceived)
}

func TestRetrievalBySenderAndDigest(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t, 24*time.Hour)

	b1 := makeBatch(t, priv, "alice", "0x1000", 50, 1, "2024-01-01T00:00:00Z")
	b2 := makeBatch(t, priv, "alice", "0x2000", 25, 2, "2024-01-01T00:01:00Z")
	b3 := makeBatch(t, priv, "bob", "0x3000", 10, 1, "2024-01-01T00:02:00Z")
	for _, b := range []*multitx.MultiTransaction{b1, b2, b3} {
		require.NoError(t, b.SignBatch(priv))
		_, _, err := pool.Add(b, pub)
		require.NoError(t, err)
	}

	require.Len(t, pool.BySender("alice"), 2)
	require.Len(t, pool.All(), 3)

	digest, err := batchDigestHex(b2)
	require.NoError(t, err)
	got, ok := pool.ByDigest(digest)
	require.True(t, ok, "expected ByDigest to find an admitted batch")
	require.Same(t, b2, got)
}

func TestRemove(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t, 24*time.Hour)

	batch := makeBatch(t, priv, "alice", "0x1000", 50, 1, "2024-01-01T00:00:00Z")
	require.NoError(t, batch.SignBatch(priv))
	_, _, err := pool.Add(batch, pub)
	require.NoError(t, err)

	digest, err := batchDigestHex(batch)
	require.NoError(t, err)
	removed, err := pool.Remove(digest)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, 0, pool.Len())
}

func TestAgeSweepRemovesStaleEntries(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t, time.Hour)

	batch := makeBatch(t, priv, "alice", "0x1000", 50, 1, "2024-01-01T00:00:00Z")
	require.NoError(t, batch.SignBatch(priv))
	_, _, err := pool.Add(batch, pub)
	require.NoError(t, err)

	removed, err := pool.AgeSweep(time.Now().Add(2 * time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, pool.Len())
}

func batchDigestHex(batch *multitx.MultiTransaction) (string, error) {
	if !batch.HasDigest {
		if err := batch.SetDigest(); err != nil {
			return "", err
		}
	}
	return hexEncode(batch.Digest[:]), nil
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0F]
	}
	return string(out)
}
