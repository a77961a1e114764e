package valuepicker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ezchain/ezchain-core/kind"
	"github.com/ezchain/ezchain-core/rangevalue"
	"github.com/ezchain/ezchain-core/valuecollection"
	"github.com/ezchain/ezchain-core/valuepicker"
)

func mustValue(t *testing.T, begin string, count uint64) *rangevalue.Value {
	t.Helper()
	v, err := rangevalue.New(begin, count, rangevalue.Unspent)
	require.NoError(t, err)
	return v
}

func TestPickerWithChange(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 100), valuecollection.Back)
	col.Add(mustValue(t, "0x2000", 200), valuecollection.Back)
	id3 := col.Add(mustValue(t, "0x3000", 300), valuecollection.Back)

	result, err := valuepicker.Pick(col, 150, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.NoError(t, err)

	require.EqualValues(t, 300, result.SelectedSum)
	require.EqualValues(t, 150, result.Change)
	require.NotNil(t, result.ChangeTx, "expected a change transaction")

	var primaryTotal uint64
	for _, v := range result.PrimaryTx.Values {
		primaryTotal += v.Count()
	}
	require.EqualValues(t, 150, primaryTotal)

	for _, id := range result.Selected {
		v, _ := col.Get(id)
		require.Equal(t, rangevalue.Selected, v.State())
	}

	untouched, _ := col.Get(id3)
	require.Equal(t, rangevalue.Unspent, untouched.State())
}

func TestPickerExactAmountNoChange(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 100), valuecollection.Back)
	col.Add(mustValue(t, "0x2000", 50), valuecollection.Back)

	result, err := valuepicker.Pick(col, 150, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.NoError(t, err)
	require.Zero(t, result.Change)
	require.Nil(t, result.ChangeTx, "expected no change for exact amount")
}

func TestPickerInsufficientFunds(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 10), valuecollection.Back)

	_, err := valuepicker.Pick(col, 100, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.True(t, kind.Is(err, kind.InsufficientFunds), "expected InsufficientFunds, got %v", err)
}

func TestPickerInvalidRequiredAmount(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 10), valuecollection.Back)

	_, err := valuepicker.Pick(col, 0, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.True(t, kind.Is(err, kind.InvalidArgument), "expected InvalidArgument, got %v", err)
}

func TestRollback(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 100), valuecollection.Back)

	result, err := valuepicker.Pick(col, 100, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.NoError(t, err)
	require.NoError(t, valuepicker.Rollback(col, result.Selected))
	for _, id := range result.Selected {
		v, _ := col.Get(id)
		require.Equal(t, rangevalue.Unspent, v.State())
	}
}

func TestCommitAndConfirm(t *testing.T) {
	col := valuecollection.New()
	col.Add(mustValue(t, "0x1000", 100), valuecollection.Back)

	result, err := valuepicker.Pick(col, 100, "sender", "recipient", 1, "2024-01-01T00:00:00Z", valuepicker.Options{})
	require.NoError(t, err)
	require.NoError(t, valuepicker.Commit(col, result.Selected))
	require.NoError(t, valuepicker.Confirm(col, result.Selected))
	for _, id := range result.Selected {
		v, _ := col.Get(id)
		require.Equal(t, rangevalue.Confirmed, v.State())
	}
}
