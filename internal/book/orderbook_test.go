package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func testSymbol() types.Symbol {
	return types.Symbol{EventID: 1, MarketID: 1, TokenID: types.TokenA}
}

func newLimitOrder(id string, side types.Side, price int32, qty uint64) *types.Order {
	return &types.Order{
		OrderID:   id,
		Symbol:    testSymbol(),
		Side:      side,
		OrderType: types.LimitOrder,
		Price:     price,
		Quantity:  qty,
		CreatedAt: time.Unix(0, 0),
	}
}

func TestInsertRestingPriceTimePriority(t *testing.T) {
	ob := New(testSymbol())

	require.NoError(t, ob.InsertResting(newLimitOrder("a", types.Buy, 5000, 10)))
	require.NoError(t, ob.InsertResting(newLimitOrder("b", types.Buy, 5000, 5)))

	level, ok := ob.Bids.Get(&PriceLevel{Price: 5000})
	require.True(t, ok)
	require.Len(t, level.Orders, 2)
	assert.Equal(t, "a", level.Orders[0].OrderID)
	assert.Equal(t, "b", level.Orders[1].OrderID)
}

func TestInsertRestingRejectsDuplicateID(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("a", types.Buy, 5000, 10)))
	err := ob.InsertResting(newLimitOrder("a", types.Buy, 5000, 10))
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestMatchAgainstFillsFIFO(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("maker1", types.Sell, 6000, 5)))
	require.NoError(t, ob.InsertResting(newLimitOrder("maker2", types.Sell, 6000, 10)))

	taker := newLimitOrder("taker", types.Buy, 6000, 8)
	result := ob.MatchAgainst(taker)

	require.Len(t, result.Fills, 2)
	assert.Equal(t, uint64(5), result.Fills[0].Quantity)
	assert.True(t, result.Fills[0].MakerRemoved)
	assert.Equal(t, uint64(3), result.Fills[1].Quantity)
	assert.False(t, result.Fills[1].MakerRemoved)
	assert.Nil(t, result.Remainder)
	assert.Equal(t, uint64(8), taker.FilledQuantity)

	level, ok := ob.Asks.Get(&PriceLevel{Price: 6000})
	require.True(t, ok)
	require.Len(t, level.Orders, 1)
	assert.Equal(t, "maker2", level.Orders[0].OrderID)
	assert.Equal(t, uint64(3), level.Orders[0].FilledQuantity)
}

func TestMatchAgainstNoCrossLeavesRemainder(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("maker1", types.Sell, 6000, 5)))

	taker := newLimitOrder("taker", types.Buy, 5900, 8)
	result := ob.MatchAgainst(taker)

	assert.Empty(t, result.Fills)
	require.NotNil(t, result.Remainder)
	assert.Equal(t, uint64(8), result.Remainder.Remaining())
}

func TestMatchAgainstNeverOverfills(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("maker1", types.Sell, 6000, 3)))

	taker := newLimitOrder("taker", types.Buy, 6000, 3)
	result := ob.MatchAgainst(taker)

	var filled uint64
	for _, f := range result.Fills {
		filled += f.Quantity
	}
	assert.Equal(t, taker.FilledQuantity, filled)
	assert.LessOrEqual(t, filled, taker.Quantity)
}

func TestCancelRemovesOrderAndEmptyLevel(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("a", types.Buy, 5000, 10)))

	res, err := ob.Cancel("a")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), res.RemainingQuantity)

	_, ok := ob.Bids.Get(&PriceLevel{Price: 5000})
	assert.False(t, ok)
}

func TestCancelIdempotentNotFoundOnSecondCall(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("a", types.Buy, 5000, 10)))

	_, err := ob.Cancel("a")
	require.NoError(t, err)

	_, err = ob.Cancel("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDepthReturnsTopLevelsInPriceOrder(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("b1", types.Buy, 5000, 10)))
	require.NoError(t, ob.InsertResting(newLimitOrder("b2", types.Buy, 5500, 5)))
	require.NoError(t, ob.InsertResting(newLimitOrder("s1", types.Sell, 6000, 7)))
	require.NoError(t, ob.InsertResting(newLimitOrder("s2", types.Sell, 5900, 3)))

	bids, asks := ob.Depth(10)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.Equal(t, int32(5500), bids[0].PriceScaled)
	assert.Equal(t, int32(5000), bids[1].PriceScaled)
	assert.Equal(t, int32(5900), asks[0].PriceScaled)
	assert.Equal(t, int32(6000), asks[1].PriceScaled)
}

func TestBestPriceEmptyBook(t *testing.T) {
	ob := New(testSymbol())
	_, ok := ob.BestPrice(types.Buy)
	assert.False(t, ok)
}

func TestMatchAgainstMarketOrderAlwaysCrosses(t *testing.T) {
	ob := New(testSymbol())
	require.NoError(t, ob.InsertResting(newLimitOrder("maker1", types.Sell, 9900, 5)))

	taker := &types.Order{
		OrderID:   "taker",
		Symbol:    testSymbol(),
		Side:      types.Buy,
		OrderType: types.MarketOrder,
		Quantity:  5,
	}
	result := ob.MatchAgainst(taker)
	require.Len(t, result.Fills, 1)
	assert.Equal(t, uint64(5), result.Fills[0].Quantity)
	assert.Nil(t, result.Remainder)
}
