// Package rangevalue implements the half-open interval coin described in
// spec §4.1: a range value is [begin, end] (both inclusive) over a ~2^259
// address space, identified by a lowercase 0x-prefixed hex begin address and
// a positive count, carrying one of four lifecycle states.
//
// Grounded on the original EZ_Value/Value.py; addresses are modeled as
// math/big.Int rather than a fixed-width integer because the address space
// (2^259) does not fit in any machine word.
package rangevalue

import (
	"math/big"
	"strings"

	"github.com/ezchain/ezchain-core/kind"
)

// State is a range value's lifecycle state.
type State int

// States, forming the DAG Unspent -> Selected -> LocalCommitted -> Confirmed
// with the rollback edge Selected -> Unspent.
const (
	Unspent State = iota
	Selected
	LocalCommitted
	Confirmed
)

func (s State) String() string {
	switch s {
	case Unspent:
		return "unspent"
	case Selected:
		return "selected"
	case LocalCommitted:
		return "local_committed"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// legal transitions, as an adjacency set. Equal-state "transitions" are a
// no-op handled separately in TransitionTo.
var legalTransitions = map[State]map[State]bool{
	Unspent:        {Selected: true},
	Selected:       {LocalCommitted: true, Unspent: true},
	LocalCommitted: {Confirmed: true},
	Confirmed:      {},
}

// Value is a half-open (inclusively bounded) range coin.
type Value struct {
	begin *big.Int
	count uint64
	state State
}

// New constructs a Value. beginHex must be a lowercase-or-mixed-case
// "0x"- or "0X"-prefixed hex string; count must be >= 1. Fails with
// kind.InvalidArgument otherwise.
func New(beginHex string, count uint64, state State) (*Value, error) {
	begin, err := parseHexAddress(beginHex)
	if err != nil {
		return nil, err
	}
	if count < 1 {
		return nil, kind.InvalidArgumentf("count must be >= 1, got %d", count)
	}
	return &Value{begin: begin, count: count, state: state}, nil
}

func parseHexAddress(s string) (*big.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, kind.InvalidArgumentf("address %q must start with 0x", s)
	}
	digits := s[2:]
	if len(digits) == 0 {
		return nil, kind.InvalidArgumentf("address %q has no digits", s)
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok {
		return nil, kind.InvalidArgumentf("address %q is not valid hex", s)
	}
	if n.Sign() < 0 {
		return nil, kind.InvalidArgumentf("address %q must be non-negative", s)
	}
	return n, nil
}

// Begin returns the inclusive begin address as a big.Int copy.
func (v *Value) Begin() *big.Int { return new(big.Int).Set(v.begin) }

// End returns the inclusive end address: begin + count - 1.
func (v *Value) End() *big.Int {
	end := new(big.Int).Add(v.begin, new(big.Int).SetUint64(v.count-1))
	return end
}

// Count returns the number of address units this value spans.
func (v *Value) Count() uint64 { return v.count }

// State returns the value's current lifecycle state.
func (v *Value) State() State { return v.state }

// BeginHex renders the begin address as "0x"-prefixed lowercase hex.
func (v *Value) BeginHex() string { return "0x" + v.begin.Text(16) }

// EndHex renders the end address as "0x"-prefixed lowercase hex.
func (v *Value) EndHex() string { return "0x" + v.End().Text(16) }

// Split divides v at offset change (0 < change < count), returning the kept
// portion (the original begin, with count reduced by change) and the change
// portion (the trailing change units). Both inherit v's state.
func (v *Value) Split(change uint64) (keep *Value, changeValue *Value, err error) {
	if change == 0 || change >= v.count {
		return nil, nil, kind.InvalidArgumentf("change must satisfy 0 < change < count (count=%d, change=%d)", v.count, change)
	}
	keep = &Value{begin: new(big.Int).Set(v.begin), count: v.count - change, state: v.state}
	changeBegin := new(big.Int).Add(keep.begin, new(big.Int).SetUint64(keep.count))
	changeValue = &Value{begin: changeBegin, count: change, state: v.state}
	return keep, changeValue, nil
}

// Intersects reports whether v and other overlap: self.end >= other.begin
// && other.end >= self.begin. Adjacent (abutting) intervals do not overlap.
func (v *Value) Intersects(other *Value) bool {
	return v.End().Cmp(other.begin) >= 0 && other.End().Cmp(v.begin) >= 0
}

// Contains reports whether other lies entirely within v.
func (v *Value) Contains(other *Value) bool {
	return other.begin.Cmp(v.begin) >= 0 && other.End().Cmp(v.End()) <= 0
}

// Equals reports whether v and other describe the same interval (begin,
// count); state is not part of interval identity.
func (v *Value) Equals(other *Value) bool {
	return v.begin.Cmp(other.begin) == 0 && v.count == other.count
}

// Intersect computes the overlap between v and other (in v's coordinate
// space, adopting v's state) and the 0, 1, or 2 sub-intervals of v not
// covered by other. ok is false when the two values are disjoint.
func (v *Value) Intersect(other *Value) (intersection *Value, rest []*Value, ok bool) {
	if !v.Intersects(other) {
		return nil, nil, false
	}
	begin := maxBig(v.begin, other.begin)
	end := minBig(v.End(), other.End())

	count := new(big.Int).Sub(end, begin)
	count.Add(count, big.NewInt(1))
	intersection = &Value{begin: new(big.Int).Set(begin), count: count.Uint64(), state: v.state}

	rest = nil
	if v.begin.Cmp(begin) < 0 {
		leadCount := new(big.Int).Sub(begin, v.begin)
		rest = append(rest, &Value{begin: new(big.Int).Set(v.begin), count: leadCount.Uint64(), state: v.state})
	}
	if v.End().Cmp(end) > 0 {
		tailBegin := new(big.Int).Add(end, big.NewInt(1))
		tailCount := new(big.Int).Sub(v.End(), end)
		rest = append(rest, &Value{begin: tailBegin, count: tailCount.Uint64(), state: v.state})
	}
	return intersection, rest, true
}

func maxBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// TransitionTo moves v to newState if the transition is legal per the DAG
// Unspent -> Selected -> LocalCommitted -> Confirmed with rollback edge
// Selected -> Unspent. Transitioning to the current state is a no-op.
// Any other transition returns a kind.InvalidArgument error.
func (v *Value) TransitionTo(newState State) error {
	if v.state == newState {
		return nil
	}
	if legalTransitions[v.state][newState] {
		v.state = newState
		return nil
	}
	return kind.InvalidArgumentf("illegal state transition from %s to %s", v.state, newState)
}

// Clone returns a deep copy of v.
func (v *Value) Clone() *Value {
	return &Value{begin: new(big.Int).Set(v.begin), count: v.count, state: v.state}
}
