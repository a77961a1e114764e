// Package bloom implements the sender-set Bloom filter of spec §4.7: a
// fixed-size bit array tested with k independent MurmurHash3 x86-32 hash
// functions (seeds 0..k-1), with an optional compressed storage
// representation (deflate + base64) that auto-inflates on mutation and
// auto-deflates on serialization.
//
// Grounded on EZ_Block_Units/Bloom.py for the algorithm and statistics
// surface; hashing grounded on github.com/spaolacci/murmur3, used for the
// same purpose by sibling repos in the example pack.
package bloom

import (
	"bytes"
	"compress/flate"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/spaolacci/murmur3"

	"github.com/ezchain/ezchain-core/kind"
)

// DefaultSize and DefaultHashCount match spec §4.7's defaults.
const (
	DefaultSize      = 1 << 20
	DefaultHashCount = 5
)

// Filter is a Bloom filter over arbitrary byte-slice items. At any time it
// holds its bits either raw (bits != nil) or compressed (blob set)
// per the Raw|Compressed sum-type design of spec §9 — never both.
type Filter struct {
	size       uint32
	hashCount  int
	bits       []byte // (size+7)/8 bytes, bit i lives at bits[i/8]>>(i%8)&1
	compressed bool
	blob       string // base64(deflate(bits)) when compressed
}

// New constructs an empty Filter with the given bit-array size and hash
// count. compressed selects the initial storage representation.
func New(size uint32, hashCount int, compressed bool) (*Filter, error) {
	if size == 0 {
		return nil, kind.InvalidArgumentf("bloom filter size must be positive")
	}
	if hashCount < 1 {
		return nil, kind.InvalidArgumentf("bloom filter hash count must be positive")
	}
	f := &Filter{size: size, hashCount: hashCount}
	if compressed {
		f.bits = make([]byte, (size+7)/8)
		if err := f.Compress(); err != nil {
			return nil, err
		}
	} else {
		f.bits = make([]byte, (size+7)/8)
	}
	return f, nil
}

// Size returns the bit-array length.
func (f *Filter) Size() uint32 { return f.size }

// HashCount returns the number of hash functions in use.
func (f *Filter) HashCount() int { return f.hashCount }

// IsCompressed reports whether the filter is currently holding compressed
// storage.
func (f *Filter) IsCompressed() bool { return f.compressed }

func (f *Filter) indices(item []byte) []uint32 {
	out := make([]uint32, f.hashCount)
	for i := 0; i < f.hashCount; i++ {
		h := murmur3.Sum32WithSeed(item, uint32(i))
		out[i] = h % f.size
	}
	return out
}

func (f *Filter) setBit(i uint32) {
	f.bits[i/8] |= 1 << (i % 8)
}

func (f *Filter) getBit(i uint32) bool {
	return f.bits[i/8]&(1<<(i%8)) != 0
}

// Add inserts item into the filter, decompressing first if necessary.
func (f *Filter) Add(item []byte) error {
	if err := f.ensureDecompressed(); err != nil {
		return err
	}
	for _, idx := range f.indices(item) {
		f.setBit(idx)
	}
	return nil
}

// Contains reports whether item may be a member (false means definitely
// not; true is subject to the filter's false-positive rate).
func (f *Filter) Contains(item []byte) (bool, error) {
	if err := f.ensureDecompressed(); err != nil {
		return false, err
	}
	for _, idx := range f.indices(item) {
		if !f.getBit(idx) {
			return false, nil
		}
	}
	return true, nil
}

func (f *Filter) ensureDecompressed() error {
	if !f.compressed {
		return nil
	}
	return f.Decompress()
}

func (f *Filter) ensureCompressed() error {
	if f.compressed {
		return nil
	}
	return f.Compress()
}

// Compress deflates the raw bit array and base64-encodes it, freeing the
// raw representation. A no-op if already compressed.
func (f *Filter) Compress() error {
	if f.compressed {
		return nil
	}
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return kind.Wrap(kind.Crypto, err, "bloom: compress")
	}
	if _, err := w.Write(f.bits); err != nil {
		return kind.Wrap(kind.Crypto, err, "bloom: compress")
	}
	if err := w.Close(); err != nil {
		return kind.Wrap(kind.Crypto, err, "bloom: compress")
	}
	f.blob = base64.StdEncoding.EncodeToString(buf.Bytes())
	f.bits = nil
	f.compressed = true
	return nil
}

// Decompress inflates the stored blob back into a raw bit array, freeing
// the compressed representation. A no-op if already raw. On corrupt
// stored data it resets to a fresh, all-zero bit array rather than
// failing, matching the original's recovery behavior.
func (f *Filter) Decompress() error {
	if !f.compressed {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(f.blob)
	if err != nil {
		f.resetRaw()
		return nil
	}
	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	inflated, err := io.ReadAll(r)
	if err != nil {
		f.resetRaw()
		return nil
	}
	f.bits = inflated
	f.blob = ""
	f.compressed = false
	return nil
}

func (f *Filter) resetRaw() {
	f.bits = make([]byte, (f.size+7)/8)
	f.blob = ""
	f.compressed = false
}

// CompressionRatio returns original-size / compressed-size for the
// filter's current contents, compressing a snapshot if currently raw.
func (f *Filter) CompressionRatio() (float64, error) {
	blob := f.blob
	if !f.compressed {
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.BestCompression)
		if err != nil {
			return 0, kind.Wrap(kind.Crypto, err, "bloom: compression ratio")
		}
		if _, err := w.Write(f.bits); err != nil {
			return 0, kind.Wrap(kind.Crypto, err, "bloom: compression ratio")
		}
		if err := w.Close(); err != nil {
			return 0, kind.Wrap(kind.Crypto, err, "bloom: compression ratio")
		}
		blob = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	originalSize := (f.size + 7) / 8
	compressedSize := len(blob)
	if compressedSize == 0 {
		return 0, kind.New(kind.InvalidArgument, "bloom: empty compressed blob")
	}
	return float64(originalSize) / float64(compressedSize), nil
}

// CanonicalString returns the filter's string form used inside a block
// header's canonical bytes (spec §6): "size:hash_count:compressed_blob".
// Like Serialize, it leaves a raw filter in compressed storage.
func (f *Filter) CanonicalString() (string, error) {
	wire, err := f.Serialize()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d:%d:%s", wire.Size, wire.HashCount, wire.Blob), nil
}

// Statistics summarizes a filter's bit-array occupancy and storage.
type Statistics struct {
	TotalBits         uint32
	SetBits           uint32
	UnsetBits         uint32
	Density           float64
	CompressionRatio  float64
	CompressedStorage bool
}

// Stats computes occupancy and compression statistics, restoring the
// filter's original storage representation afterward.
func (f *Filter) Stats() (Statistics, error) {
	wasCompressed := f.compressed
	if wasCompressed {
		if err := f.Decompress(); err != nil {
			return Statistics{}, err
		}
	}
	var setBits uint32
	for i := uint32(0); i < f.size; i++ {
		if f.getBit(i) {
			setBits++
		}
	}
	ratio, err := f.CompressionRatio()
	if err != nil {
		return Statistics{}, err
	}
	stats := Statistics{
		TotalBits:         f.size,
		SetBits:           setBits,
		UnsetBits:         f.size - setBits,
		Density:           float64(setBits) / float64(f.size),
		CompressionRatio:  ratio,
		CompressedStorage: wasCompressed,
	}
	if wasCompressed {
		if err := f.ensureCompressed(); err != nil {
			return Statistics{}, err
		}
	}
	return stats, nil
}

// wireFilter is the serialized form, always in compressed storage.
type wireFilter struct {
	Size       uint32 `json:"size"`
	HashCount  int    `json:"hash_count"`
	Blob       string `json:"compressed_bit_array"`
	Compressed bool   `json:"compressed"`
}

// Serialize returns the filter's wire representation. A raw filter is
// compressed in place first, so the filter is left in compressed storage;
// the next Add or Contains inflates it again.
func (f *Filter) Serialize() (*wireFilter, error) {
	if err := f.ensureCompressed(); err != nil {
		return nil, err
	}
	return &wireFilter{Size: f.size, HashCount: f.hashCount, Blob: f.blob, Compressed: true}, nil
}

// Deserialize reconstructs a Filter from its wire representation. The
// returned filter starts in compressed storage; callers that need to
// query it should call Add/Contains, which auto-inflate.
func Deserialize(w *wireFilter) (*Filter, error) {
	if w.Size == 0 || w.HashCount < 1 {
		return nil, kind.InvalidArgumentf("bloom: invalid wire filter")
	}
	return &Filter{size: w.Size, hashCount: w.HashCount, blob: w.Blob, compressed: true}, nil
}
