package block_test

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

	"github.com/ezchain/ezchain-core/block"
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

func openTestPool(t *testing.T) *txpool.Pool {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "pool.db")
	p, err := txpool.Open(dbPath, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func addBatch(t *testing.T, pool *txpool.Pool, priv *cryptoutil.PrivateKey, pub *cryptoutil.PublicKey, sender, begin string, count uint64, nonce int64, childCount int) {
	t.Helper()
	txs := make([]*transaction.Transaction, 0, childCount)
	for i := 0; i < childCount; i++ {
		v, err := rangevalue.New(begin, count, rangevalue.Unspent)
		require.NoError(t, err)
		tx, err := transaction.New(sender, "recipient", nonce+int64(i), "2024-01-01T00:00:00Z", []*rangevalue.Value{v})
		require.NoError(t, err)
		require.NoError(t, tx.Sign(priv))
		txs = append(txs, tx)
	}
	batch, err := multitx.New(sender, "2024-01-01T00:00:00Z", txs)
	require.NoError(t, err)
	require.NoError(t, batch.SignBatch(priv))
	accepted, msg, err := pool.Add(batch, pub)
	require.NoError(t, err)
	require.True(t, accepted, "batch rejected: %s", msg)
}

func TestAssemblePackageFifoAndMerkleRoot(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t)
	addBatch(t, pool, priv, pub, "alice", "0x1000", 10, 1, 1)
	addBatch(t, pool, priv, pub, "bob", "0x2000", 10, 1, 1)

	pkg, err := block.AssemblePackage(pool, block.Fifo, 100, "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	require.Len(t, pkg.Digests, 2)
	require.NotEmpty(t, pkg.MerkleRoot, "expected non-empty merkle root for non-empty selection")
	require.Len(t, pkg.SenderAddresses, 2)
}

func TestAssemblePackageEmptyPoolYieldsEmptyRoot(t *testing.T) {
	pool := openTestPool(t)
	pkg, err := block.AssemblePackage(pool, block.Fifo, 100, "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	require.Empty(t, pkg.MerkleRoot, "expected empty root for empty selection")
}

func TestAssemblePackageFeeStrategyOrdersByChildCount(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t)
	addBatch(t, pool, priv, pub, "alice", "0x1000", 10, 1, 1)
	addBatch(t, pool, priv, pub, "bob", "0x2000", 10, 1, 3)

	pkg, err := block.AssemblePackage(pool, block.Fee, 100, "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	require.Equal(t, "bob", pkg.Batches[0].Sender, "expected the batch with more children first under the Fee strategy")
}

func TestBuildBlockGenesisHasNoSignature(t *testing.T) {
	pkg := &block.Package{Timestamp: "2024-01-01T00:00:00Z"}
	b, err := block.BuildBlock(pkg, "miner-1", "", 0, 0, nil)
	require.NoError(t, err)
	require.Empty(t, b.Envelope.Signature, "expected genesis to carry no signature")

	ok, err := block.VerifyBlockSignature(b, nil)
	require.NoError(t, err)
	require.True(t, ok, "expected genesis signature check to pass unconditionally")
}

func TestBuildBlockSignsAndVerifies(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t)
	addBatch(t, pool, priv, pub, "alice", "0x1000", 10, 1, 1)

	pkg, err := block.AssemblePackage(pool, block.Fifo, 100, "2024-01-01T01:00:00Z")
	require.NoError(t, err)
	b, err := block.BuildBlock(pkg, "miner-1", "0000", 1, 42, priv)
	require.NoError(t, err)

	ok, err := block.VerifyBlockSignature(b, pub)
	require.NoError(t, err)
	require.True(t, ok, "expected valid block signature to verify")

	_, otherPub := genKeyPair(t)
	ok, err = block.VerifyBlockSignature(b, otherPub)
	require.NoError(t, err)
	require.False(t, ok, "expected signature to fail under an unrelated key")
}

func TestIsValidNextAndFinalize(t *testing.T) {
	priv, pub := genKeyPair(t)
	pool := openTestPool(t)
	addBatch(t, pool, priv, pub, "alice", "0x1000", 10, 1, 1)

	genesisPkg, err := block.AssemblePackage(pool, block.Fifo, 100, "2024-01-01T00:00:00Z")
	require.NoError(t, err)
	genesis, err := block.BuildBlock(genesisPkg, "miner-1", "", 0, 0, nil)
	require.NoError(t, err)
	removed, err := block.Finalize(pool, genesisPkg)
	require.NoError(t, err)
	require.Equal(t, len(genesisPkg.Digests), removed, "expected to finalize every selected batch")

	genesisHash, err := genesis.Hash()
	require.NoError(t, err)

	addBatch(t, pool, priv, pub, "bob", "0x2000", 10, 1, 1)
	nextPkg, err := block.AssemblePackage(pool, block.Fifo, 100, "2024-01-01T02:00:00Z")
	require.NoError(t, err)
	next, err := block.BuildBlock(nextPkg, "miner-1", genesisHash, 1, 1, priv)
	require.NoError(t, err)

	ok, err := block.IsValidNext(genesis, next)
	require.NoError(t, err)
	require.True(t, ok, "expected next block to link validly to genesis")

	tampered := *next
	tampered.Index = 5
	ok, err = block.IsValidNext(genesis, &tampered)
	require.NoError(t, err)
	require.False(t, ok, "expected mismatched index to fail linkage check")
}
