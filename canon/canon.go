// Package canon builds the canonical, deterministic byte forms that cross a
// trust boundary in this module: the single-transaction and multi-
// transaction signed JSON forms from spec §6, and the block header's
// canonical text form. Every form here is built from map[string]interface{}
// and marshaled with encoding/json, whose documented behavior — map keys
// sorted, compact separators with no inserted whitespace — is exactly the
// "sorted keys, (',', ':') separators" contract the spec requires; no
// hand-rolled serializer is needed to get that guarantee.
package canon

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Value is the wire shape of one range value inside a transaction's
// canonical form: {begin_index, end_index, value_num}. State is never
// included — lifecycle transitions must never invalidate a signature or
// change a transaction's identity hash.
type Value struct {
	BeginIndex string
	EndIndex   string
	ValueNum   int64
}

func (v Value) toMap() map[string]interface{} {
	return map[string]interface{}{
		"begin_index": v.BeginIndex,
		"end_index":   v.EndIndex,
		"value_num":   v.ValueNum,
	}
}

// SingleTransaction builds the canonical signed-form bytes of one single
// transaction, per spec §6: sorted keys {nonce, recipient, sender,
// timestamp, value}.
func SingleTransaction(sender, recipient string, nonce int64, timestamp string, values []Value) ([]byte, error) {
	valueMaps := make([]map[string]interface{}, len(values))
	for i, v := range values {
		valueMaps[i] = v.toMap()
	}
	obj := map[string]interface{}{
		"sender":    sender,
		"recipient": recipient,
		"nonce":     nonce,
		"timestamp": timestamp,
		"value":     valueMaps,
	}
	return marshal(obj)
}

// MultiTransaction builds the canonical batch digest form, per spec §6:
// {sender, timestamp, transactions:[<canonical single tx>...],
// type:"multi_transaction"}. childCanon is the already-built canonical bytes
// of each child single transaction — re-decoded here so the batch form
// nests real JSON objects rather than escaped strings.
func MultiTransaction(sender, timestamp string, childCanon [][]byte) ([]byte, error) {
	children := make([]interface{}, len(childCanon))
	for i, c := range childCanon {
		var v interface{}
		if err := json.Unmarshal(c, &v); err != nil {
			return nil, fmt.Errorf("canon: child transaction %d is not valid canonical JSON: %w", i, err)
		}
		children[i] = v
	}
	obj := map[string]interface{}{
		"sender":       sender,
		"timestamp":    timestamp,
		"type":         "multi_transaction",
		"transactions": children,
	}
	return marshal(obj)
}

func marshal(obj map[string]interface{}) ([]byte, error) {
	return json.Marshal(obj)
}

// BlockHeader builds the canonical, line-terminated text concatenation used
// to hash and sign a block header, per spec §6: Index, Nonce, Bloom, Merkle
// Tree Root, Time, Miner, Previous Hash, Version, each on its own line.
func BlockHeader(index uint64, nonce uint64, bloomString, merkleRoot, timestamp, miner, previousHash string, version int) []byte {
	lines := []string{
		fmt.Sprintf("%d", index),
		fmt.Sprintf("%d", nonce),
		bloomString,
		merkleRoot,
		timestamp,
		miner,
		previousHash,
		fmt.Sprintf("%d", version),
	}
	out := ""
	for _, l := range lines {
		out += l + "\n"
	}
	return []byte(out)
}

// SortedKeys returns the keys of m in sorted order. Exposed for callers that
// need to reproduce sort ordering without going through marshal (e.g. tests
// asserting byte stability across two independent constructions).
func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
