// Package block implements block assembly and linkage validation per spec
// §4.9: selecting pooled batches under a strategy, committing their
// digests into a Merkle root, indexing senders into a Bloom filter, and
// signing the resulting header.
//
// Grounded on EZ_Main_Chain/Block.py for the assembly/finalize/linkage
// shape.
package block

import (
	"encoding/hex"
	"sort"

	"github.com/ezchain/ezchain-core/bloom"
	"github.com/ezchain/ezchain-core/canon"
	"github.com/ezchain/ezchain-core/cryptoutil"
	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/merkle"
	"github.com/ezchain/ezchain-core/multitx"
	"github.com/ezchain/ezchain-core/txpool"
)

// Strategy selects how AssemblePackage chooses batches from the pool.
type Strategy int

const (
	// Fifo takes pooled batches in insertion order.
	Fifo Strategy = iota
	// Fee is a proxy strategy: batches sorted by descending child count.
	Fee
)

// DefaultMaxBatches is the default cap on batches per block (spec §6).
const DefaultMaxBatches = 100

// Package is the result of selecting batches from the pool for inclusion
// in the next block.
type Package struct {
	Digests         []string
	SenderAddresses []string
	MerkleRoot      string // hex, "" for an empty selection
	Timestamp       string
	Batches         []*multitx.MultiTransaction
}

// AssemblePackage selects up to maxBatches pooled batches under strategy
// and computes their sender set and Merkle root over batch digests.
// timestamp is stamped onto the resulting package (the assembler's own
// clock, since the source does not define one authoritative batch time
// for a package of many batches).
func AssemblePackage(pool *txpool.Pool, strategy Strategy, maxBatches int, timestamp string) (*Package, error) {
	if maxBatches <= 0 {
		maxBatches = DefaultMaxBatches
	}
	all := pool.All()

	selected := make([]*multitx.MultiTransaction, len(all))
	copy(selected, all)

	switch strategy {
	case Fifo:
		// already in insertion order
	case Fee:
		sort.SliceStable(selected, func(i, j int) bool {
			return len(selected[i].Txs) > len(selected[j].Txs)
		})
	default:
		return nil, kind.InvalidArgumentf("unknown selection strategy")
	}

	if len(selected) > maxBatches {
		selected = selected[:maxBatches]
	}

	pkg := &Package{Timestamp: timestamp, Batches: selected}

	seenSender := make(map[string]struct{})
	leaves := make([][]byte, 0, len(selected))
	for _, batch := range selected {
		if !batch.HasDigest {
			if err := batch.SetDigest(); err != nil {
				return nil, err
			}
		}
		digestHex := hex.EncodeToString(batch.Digest[:])
		pkg.Digests = append(pkg.Digests, digestHex)
		leaves = append(leaves, batch.Digest[:])

		if _, ok := seenSender[batch.Sender]; !ok {
			seenSender[batch.Sender] = struct{}{}
			pkg.SenderAddresses = append(pkg.SenderAddresses, batch.Sender)
		}
	}

	if len(leaves) == 0 {
		pkg.MerkleRoot = ""
	} else {
		tree, err := merkle.New(leaves)
		if err != nil {
			return nil, err
		}
		root := tree.Root()
		pkg.MerkleRoot = hex.EncodeToString(root[:])
	}

	return pkg, nil
}

// SignatureEnvelope is the wire envelope of spec §6: the header signature
// alongside the miner's identity and public key, preserved for wire
// compatibility with the source's placeholder scheme.
type SignatureEnvelope struct {
	Signature []byte
	MinerID   string
	Timestamp string
	PublicKey []byte // PEM-encoded, nil for genesis
}

// Block is an assembled block: header fields, the sender Bloom filter,
// and the signature envelope.
type Block struct {
	Index        uint64
	PreviousHash string // hex
	Miner        string
	Timestamp    string
	Nonce        uint64
	MerkleRoot   string // hex
	Version      int
	Bloom        *bloom.Filter
	Envelope     *SignatureEnvelope
}

// headerBytes returns the canonical, line-terminated header byte form of
// spec §6, over which both the block hash and the block signature are
// computed.
func (b *Block) headerBytes() ([]byte, error) {
	bloomStr, err := b.Bloom.CanonicalString()
	if err != nil {
		return nil, err
	}
	return canon.BlockHeader(b.Index, b.Nonce, bloomStr, b.MerkleRoot, b.Timestamp, b.Miner, b.PreviousHash, b.Version), nil
}

// Hash returns the block's hash: SHA-256 over the canonical header,
// excluding the signature.
func (b *Block) Hash() (string, error) {
	header, err := b.headerBytes()
	if err != nil {
		return "", err
	}
	digest := cryptoutil.Hash256(header)
	return hex.EncodeToString(digest[:]), nil
}

// BuildBlock constructs a Block from pkg: a header carrying pkg's Merkle
// root, previousHash, miner, and pkg's timestamp, version 1, a Bloom
// filter over pkg's sender addresses, and a signature over the canonical
// header unless index == 0 (genesis is exempt per spec §3).
func BuildBlock(pkg *Package, miner string, previousHash string, index uint64, nonce uint64, priv *cryptoutil.PrivateKey) (*Block, error) {
	filter, err := bloom.New(bloom.DefaultSize, bloom.DefaultHashCount, false)
	if err != nil {
		return nil, err
	}
	for _, sender := range pkg.SenderAddresses {
		if err := filter.Add([]byte(sender)); err != nil {
			return nil, err
		}
	}

	b := &Block{
		Index:        index,
		PreviousHash: previousHash,
		Miner:        miner,
		Timestamp:    pkg.Timestamp,
		Nonce:        nonce,
		MerkleRoot:   pkg.MerkleRoot,
		Version:      1,
		Bloom:        filter,
	}

	if index == 0 {
		b.Envelope = &SignatureEnvelope{MinerID: miner, Timestamp: pkg.Timestamp}
		return b, nil
	}

	if priv == nil {
		return nil, kind.InvalidArgumentf("a non-genesis block requires a miner signing key")
	}
	header, err := b.headerBytes()
	if err != nil {
		return nil, err
	}
	digest := cryptoutil.Hash256(header)
	sig, err := cryptoutil.Sign(priv, digest)
	if err != nil {
		return nil, err
	}
	pubPEM, err := cryptoutil.MarshalPublicKeyPEM(priv.PublicKey())
	if err != nil {
		return nil, err
	}
	b.Envelope = &SignatureEnvelope{Signature: sig, MinerID: miner, Timestamp: pkg.Timestamp, PublicKey: pubPEM}
	return b, nil
}

// Finalize removes every batch in pkg from pool by digest, returning the
// count actually removed (which may be less than len(pkg.Digests) if a
// concurrent removal already took one).
func Finalize(pool *txpool.Pool, pkg *Package) (int, error) {
	removed := 0
	for _, digest := range pkg.Digests {
		ok, err := pool.Remove(digest)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// IsValidNext reports whether child is a legal successor of parent:
// child.Index == parent.Index + 1 and child.PreviousHash == hash(parent).
func IsValidNext(parent, child *Block) (bool, error) {
	if child.Index != parent.Index+1 {
		return false, nil
	}
	parentHash, err := parent.Hash()
	if err != nil {
		return false, err
	}
	return child.PreviousHash == parentHash, nil
}

// VerifyBlockSignature reports whether b's signature is valid. Genesis
// (index 0) is always accepted. Otherwise the canonical header is
// recomputed and the envelope's signature verified under pub.
func VerifyBlockSignature(b *Block, pub *cryptoutil.PublicKey) (bool, error) {
	if b.Index == 0 {
		return true, nil
	}
	if b.Envelope == nil || len(b.Envelope.Signature) == 0 {
		return false, nil
	}
	header, err := b.headerBytes()
	if err != nil {
		return false, err
	}
	digest := cryptoutil.Hash256(header)
	return cryptoutil.Verify(pub, digest, b.Envelope.Signature), nil
}
