package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersim/internal/domain"
)

func TestAddOrder_PriceTimePriority(t *testing.T) {
	b := New(Bid)
	require.NoError(t, b.AddOrder(1, 100, 5, true))
	require.NoError(t, b.AddOrder(2, 100, 7, true))

	assert.EqualValues(t, 100, b.Best())
	assert.EqualValues(t, 12, b.QuoteVolume())

	fills, err := b.ExecuteOrder(1, 5)
	require.NoError(t, err)
	assert.Empty(t, fills)
	assert.False(t, b.Contains(1))
	assert.EqualValues(t, 7, b.QuoteVolume())
}

func TestAddOrder_DuplicateRefIsFatal(t *testing.T) {
	b := New(Ask)
	require.NoError(t, b.AddOrder(1, 100, 5, true))
	err := b.AddOrder(1, 101, 3, true)
	assert.ErrorIs(t, err, domain.ErrPrimaryKeyConflict)
}

func TestCancelOrder_PartialThenFull(t *testing.T) {
	b := New(Ask)
	require.NoError(t, b.AddOrder(1, 100, 10, true))

	require.NoError(t, b.CancelOrder(1, 4))
	assert.EqualValues(t, 6, b.QuoteVolume())

	require.NoError(t, b.CancelOrder(1, 100)) // more than remaining -> full removal
	assert.False(t, b.Contains(1))
	assert.EqualValues(t, 0, b.QuoteVolume())
}

func TestCancelOrder_UnknownRefIsNoop(t *testing.T) {
	b := New(Ask)
	assert.NoError(t, b.CancelOrder(999, 5))
}

func TestShadowConsumption(t *testing.T) {
	b := New(Bid)
	require.NoError(t, b.AddOrder(1, 100, 10, true))
	require.NoError(t, b.AddOrder(-1, 101, 3, false)) // agent order at a better price

	fills, err := b.ExecuteOrder(1, 4)
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.Equal(t, domain.Fill{Ref: -1, Price: 101, Shares: 3}, fills[0])

	assert.EqualValues(t, 6, b.volumes[100])
	_, hasLevel101 := b.byPrice[101]
	assert.False(t, hasLevel101)

	price, live := b.PriceOf(1)
	assert.True(t, live)
	assert.EqualValues(t, 100, price)
}

func TestReplaceOrder_ThroughShadow(t *testing.T) {
	b := New(Bid)
	require.NoError(t, b.AddOrder(1, 100, 10, true))
	require.NoError(t, b.AddOrder(-1, 101, 3, false))
	_, err := b.ExecuteOrder(1, 4)
	require.NoError(t, err)

	require.NoError(t, b.ReplaceOrder(1, 9, 99, 20))
	assert.True(t, b.Contains(9))
	assert.False(t, b.Contains(1))

	// Ref 1 was still live, so the replace above went through. A replace
	// whose source was shadow-consumed is a no-op instead.
	b2 := New(Bid)
	require.NoError(t, b2.AddOrder(5, 50, 10, true))
	require.NoError(t, b2.AddOrder(-2, 51, 12, false))
	_, err = b2.ExecuteOrder(5, 10) // walks: shadow-consumes -2 fully, then fills 5
	require.NoError(t, err)
	require.NoError(t, b2.ReplaceOrder(-2, -3, 52, 1)) // -2 is shadow-consumed: no-op
	assert.False(t, b2.Contains(-3))
}

func TestExecuteOrder_ExceedsAvailableIsFatal(t *testing.T) {
	b := New(Ask)
	require.NoError(t, b.AddOrder(1, 100, 5, true))
	require.NoError(t, b.AddOrder(2, 100, 5, true))
	// 2 is not the foremost real order, so this execute takes the direct
	// (non-walking) branch, where over-execution is fatal.
	_, err := b.ExecuteOrder(2, 10)
	assert.ErrorIs(t, err, domain.ErrExecutionExceeds)
}

func TestAssertInvariants_Empty(t *testing.T) {
	b := New(Ask)
	assert.NoError(t, b.AssertInvariants())
}
