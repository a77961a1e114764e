// Package valuecollection implements the per-account ordered collection of
// range values described in spec §4.2: a doubly linked insertion-ordered
// list plus three secondary indexes (node id -> node, state -> node id set,
// decimal begin -> node id).
//
// Per spec §9's design notes, the collection is modeled as an arena keyed by
// a stable integer handle (NodeID) rather than as objects holding direct
// cross-references, so splitting a node in place is a local mutation of two
// arena entries instead of a graph rewrite.
package valuecollection

import (
	"math/big"
	"sort"

	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/rangevalue"
)

// NodeID is a stable handle into the collection's arena. It survives splits
// (the original node keeps its id; the split's change half gets a new id).
type NodeID uint64

// Position selects where Add inserts a new value in list order.
type Position int

// Insertion positions.
const (
	Back Position = iota
	Front
)

type node struct {
	id         NodeID
	value      *rangevalue.Value
	prev, next NodeID // 0 is the sentinel "no neighbor"
}

// Collection is one account's indexed, ordered set of range values. It is
// not safe for concurrent use; per spec §5, the core does not serialize
// access to a single collection, so embedders sharing one across goroutines
// must add their own locking.
type Collection struct {
	nodes    map[NodeID]*node
	head     NodeID
	tail     NodeID
	nextID   NodeID
	byState  map[rangevalue.State]map[NodeID]struct{}
	byBegin  map[string]NodeID // decimal begin string -> node id
}

// New returns an empty Collection.
func New() *Collection {
	return &Collection{
		nodes:   map[NodeID]*node{},
		byState: map[rangevalue.State]map[NodeID]struct{}{},
		byBegin: map[string]NodeID{},
	}
}

func (c *Collection) indexAdd(n *node) {
	if c.byState[n.value.State()] == nil {
		c.byState[n.value.State()] = map[NodeID]struct{}{}
	}
	c.byState[n.value.State()][n.id] = struct{}{}
	c.byBegin[n.value.Begin().String()] = n.id
}

func (c *Collection) indexRemove(n *node) {
	delete(c.byState[n.value.State()], n.id)
	delete(c.byBegin, n.value.Begin().String())
}

// Add inserts value at the given position, returning its new stable NodeID.
func (c *Collection) Add(value *rangevalue.Value, position Position) NodeID {
	c.nextID++
	id := c.nextID
	n := &node{id: id, value: value}

	if len(c.nodes) == 0 {
		c.head, c.tail = id, id
	} else if position == Front {
		n.next = c.head
		c.nodes[c.head].prev = id
		c.head = id
	} else {
		n.prev = c.tail
		c.nodes[c.tail].next = id
		c.tail = id
	}
	c.nodes[id] = n
	c.indexAdd(n)
	return id
}

// insertAfter inserts a new node carrying value immediately after existing
// node id after, preserving list order. Used by Split.
func (c *Collection) insertAfter(after NodeID, value *rangevalue.Value) NodeID {
	c.nextID++
	id := c.nextID
	afterNode := c.nodes[after]
	n := &node{id: id, value: value, prev: after, next: afterNode.next}

	if afterNode.next != 0 {
		c.nodes[afterNode.next].prev = id
	} else {
		c.tail = id
	}
	afterNode.next = id

	c.nodes[id] = n
	c.indexAdd(n)
	return id
}

// Remove unlinks and purges the indexes for node id. Returns false if id is
// unknown; mutating operations on an unknown id never partially mutate any
// index, per spec §4.2 failure semantics.
func (c *Collection) Remove(id NodeID) bool {
	n, ok := c.nodes[id]
	if !ok {
		return false
	}
	if n.prev != 0 {
		c.nodes[n.prev].next = n.next
	} else {
		c.head = n.next
	}
	if n.next != 0 {
		c.nodes[n.next].prev = n.prev
	} else {
		c.tail = n.prev
	}
	c.indexRemove(n)
	delete(c.nodes, id)
	return true
}

// Get returns the value stored at id, or nil, false if id is unknown.
func (c *Collection) Get(id NodeID) (*rangevalue.Value, bool) {
	n, ok := c.nodes[id]
	if !ok {
		return nil, false
	}
	return n.value, true
}

// UpdateState transitions the value at id to newState, atomically updating
// the state index. Returns kind.NotFound for an unknown id, or whatever
// error rangevalue.Value.TransitionTo returns for an illegal transition.
func (c *Collection) UpdateState(id NodeID, newState rangevalue.State) error {
	n, ok := c.nodes[id]
	if !ok {
		return kind.NotFoundf("node %d not found", id)
	}
	oldState := n.value.State()
	if err := n.value.TransitionTo(newState); err != nil {
		return err
	}
	if oldState != newState {
		delete(c.byState[oldState], id)
		if c.byState[newState] == nil {
			c.byState[newState] = map[NodeID]struct{}{}
		}
		c.byState[newState][id] = struct{}{}
	}
	return nil
}

// Split delegates to rangevalue.Value.Split on the value at id, then inserts
// the change half immediately after the original in list order. Returns the
// (possibly reused) id of the kept half and the new id of the change half.
func (c *Collection) Split(id NodeID, change uint64) (keepID, changeID NodeID, err error) {
	n, ok := c.nodes[id]
	if !ok {
		return 0, 0, kind.NotFoundf("node %d not found", id)
	}
	keep, changeValue, err := n.value.Split(change)
	if err != nil {
		return 0, 0, err
	}

	c.indexRemove(n)
	n.value = keep
	c.indexAdd(n)

	changeID = c.insertAfter(id, changeValue)
	return id, changeID, nil
}

// ByState returns every node id currently in the given state, in no
// particular order.
func (c *Collection) ByState(state rangevalue.State) []NodeID {
	set := c.byState[state]
	out := make([]NodeID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// ByStateOrdered returns every node id currently in the given state, in list
// (insertion) order. The picker relies on this for deterministic selection.
func (c *Collection) ByStateOrdered(state rangevalue.State) []NodeID {
	var out []NodeID
	for id := c.head; id != 0; {
		n := c.nodes[id]
		if n.value.State() == state {
			out = append(out, id)
		}
		id = n.next
	}
	return out
}

// ByRange returns every value whose interval intersects [lo, hi].
func (c *Collection) ByRange(lo, hi *big.Int) []*rangevalue.Value {
	target, _ := rangevalue.New("0x"+lo.Text(16), rangeCount(lo, hi), rangevalue.Unspent)
	return c.Intersecting(target)
}

func rangeCount(lo, hi *big.Int) uint64 {
	diff := new(big.Int).Sub(hi, lo)
	diff.Add(diff, big.NewInt(1))
	return diff.Uint64()
}

// Intersecting returns every value in the collection intersecting target.
func (c *Collection) Intersecting(target *rangevalue.Value) []*rangevalue.Value {
	var out []*rangevalue.Value
	for id := c.head; id != 0; {
		n := c.nodes[id]
		if n.value.Intersects(target) {
			out = append(out, n.value)
		}
		id = n.next
	}
	return out
}

// SortedByBegin returns every value in the collection ordered by ascending
// begin address.
func (c *Collection) SortedByBegin() []*rangevalue.Value {
	out := make([]*rangevalue.Value, 0, len(c.nodes))
	for id := c.head; id != 0; {
		n := c.nodes[id]
		out = append(out, n.value)
		id = n.next
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Begin().Cmp(out[j].Begin()) < 0
	})
	return out
}

// Balance sums the count of every value in the given state.
func (c *Collection) Balance(state rangevalue.State) uint64 {
	var total uint64
	for id := range c.byState[state] {
		total += c.nodes[id].value.Count()
	}
	return total
}

// TotalBalance sums the count of every value in the collection, regardless
// of state.
func (c *Collection) TotalBalance() uint64 {
	var total uint64
	for _, n := range c.nodes {
		total += n.value.Count()
	}
	return total
}

// Len returns the number of values currently in the collection.
func (c *Collection) Len() int { return len(c.nodes) }

// ValidateNoOverlap confirms the structural invariant that no two values in
// the collection overlap, by sorting begin indexes and checking adjacent
// pairs.
func (c *Collection) ValidateNoOverlap() error {
	sorted := c.SortedByBegin()
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Intersects(sorted[i]) {
			return kind.InvalidArgumentf("overlap between %s and %s", sorted[i-1].BeginHex(), sorted[i].BeginHex())
		}
	}
	return nil
}

// ClearConfirmed removes every Confirmed value from the collection, and
// returns how many were removed.
func (c *Collection) ClearConfirmed() int {
	ids := c.ByState(rangevalue.Confirmed)
	for _, id := range ids {
		c.Remove(id)
	}
	return len(ids)
}
