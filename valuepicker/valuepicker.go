// Package valuepicker implements the coin-selection policy of spec §4.3:
// given a required amount, select Unspent values from an account's
// valuecollection.Collection summing to at least that amount, splitting at
// most one value to produce exact change, and building the resulting
// primary and (optional) change transactions.
//
// Grounded on EZ_Value/PickValues.py for the selection algorithm, and on the
// teacher's util/coinset package for the Go shape of a coin-selection API
// (a selector that walks candidates in a fixed order accumulating value).
package valuepicker

import (
	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/rangevalue"
	"github.com/ezchain/ezchain-core/transaction"
	"github.com/ezchain/ezchain-core/valuecollection"
)

// Options configures picker behavior.
type Options struct {
	// MintZeroChange reproduces the historical (possibly buggy) source
	// behavior noted in spec §9: some tests assert the picker may mint a
	// zero-value change object when the selection is exact. Because
	// rangevalue.Value enforces count >= 1, a literal zero-count Value
	// cannot be constructed in this type system; setting this flag only
	// causes Result.ZeroChangeRequested to be reported as true so
	// bug-compatible callers can detect the exact-amount case without a
	// phantom Value ever entering the collection. Default false: no
	// change value, minted or requested, when change == 0.
	MintZeroChange bool
}

// Result is the outcome of a successful Pick.
type Result struct {
	Selected    []valuecollection.NodeID
	SelectedSum uint64
	Change      uint64
	PrimaryTx   *transaction.Transaction // required -> recipient
	ChangeTx    *transaction.Transaction // change -> sender, nil if Change == 0

	// ZeroChangeRequested is true only when Options.MintZeroChange was set
	// and the selection summed to exactly required. See Options doc.
	ZeroChangeRequested bool
}

// Pick selects Unspent values from col summing to at least required,
// transitions every selected value (including a minted change half) to
// Selected, and returns the primary and optional change transactions.
//
// required must be >= 1, else kind.InvalidArgument. If the aggregate
// Unspent balance is less than required, fails with kind.InsufficientFunds.
// Selection is deterministic: it walks col's Unspent values in insertion
// order.
func Pick(col *valuecollection.Collection, required uint64, sender, recipient string, nonce int64, timestamp string, opts Options) (*Result, error) {
	if required < 1 {
		return nil, kind.InvalidArgumentf("required amount must be >= 1, got %d", required)
	}

	candidates := col.ByStateOrdered(rangevalue.Unspent)

	var sum uint64
	var selected []valuecollection.NodeID
	for _, id := range candidates {
		v, ok := col.Get(id)
		if !ok {
			continue
		}
		sum += v.Count()
		selected = append(selected, id)
		if sum >= required {
			break
		}
	}
	if sum < required {
		return nil, kind.New(kind.InsufficientFunds, "insufficient unspent balance to cover required amount")
	}

	change := sum - required
	result := &Result{SelectedSum: sum, Change: change}

	var changeValue *rangevalue.Value
	if change > 0 {
		lastID := selected[len(selected)-1]
		keepID, changeID, err := col.Split(lastID, change)
		if err != nil {
			return nil, err
		}
		// keepID replaces lastID in the selection (same id, reduced count).
		selected[len(selected)-1] = keepID
		if err := col.UpdateState(changeID, rangevalue.Selected); err != nil {
			return nil, err
		}
		changeValue, _ = col.Get(changeID)
		selected = append(selected, changeID)
	} else if opts.MintZeroChange {
		result.ZeroChangeRequested = true
	}

	values := make([]*rangevalue.Value, 0, len(selected))
	for _, id := range selected {
		if err := col.UpdateState(id, rangevalue.Selected); err != nil {
			return nil, err
		}
		v, _ := col.Get(id)
		values = append(values, v)
	}

	primaryValues := values
	if changeValue != nil {
		primaryValues = values[:len(values)-1]
	}

	primaryTx, err := transaction.New(sender, recipient, nonce, timestamp, primaryValues)
	if err != nil {
		return nil, err
	}
	result.PrimaryTx = primaryTx
	result.Selected = selected

	if changeValue != nil {
		changeTx, err := transaction.New(sender, sender, nonce, timestamp, []*rangevalue.Value{changeValue})
		if err != nil {
			return nil, err
		}
		result.ChangeTx = changeTx
	}

	return result, nil
}

// Commit transitions every selected node from Selected to LocalCommitted.
func Commit(col *valuecollection.Collection, selected []valuecollection.NodeID) error {
	return transitionAll(col, selected, rangevalue.LocalCommitted)
}

// Confirm transitions every selected node from LocalCommitted to Confirmed.
func Confirm(col *valuecollection.Collection, selected []valuecollection.NodeID) error {
	return transitionAll(col, selected, rangevalue.Confirmed)
}

// Rollback transitions every selected node from Selected back to Unspent,
// used when a transaction is rejected before broadcast.
func Rollback(col *valuecollection.Collection, selected []valuecollection.NodeID) error {
	return transitionAll(col, selected, rangevalue.Unspent)
}

func transitionAll(col *valuecollection.Collection, ids []valuecollection.NodeID, state rangevalue.State) error {
	for _, id := range ids {
		if err := col.UpdateState(id, state); err != nil {
			return err
		}
	}
	return nil
}
