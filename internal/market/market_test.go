package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func newTestEngine() *Engine {
	spec := types.EventSpec{
		EventID: 1,
		Markets: []types.MarketSpec{
			{MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"A", "B"}},
		},
	}
	return NewEngine(spec, nil, nil)
}

func submit(e *Engine, userID int64, tokenID types.TokenID, side types.Side, price int32, qty uint64) SubmitResult {
	return e.SubmitOrder(&SubmitOrderMessage{
		MarketID:  1,
		TokenID:   tokenID,
		Side:      side,
		OrderType: types.LimitOrder,
		Price:     price,
		Quantity:  qty,
		UserID:    userID,
		Submitted: time.Now(),
	})
}

// S1 Exact match.
func TestExactMatch(t *testing.T) {
	e := newTestEngine()

	sellResult := submit(e, 1, types.TokenA, types.Sell, 6000, 10000)
	require.NotNil(t, sellResult.Resting)
	assert.Equal(t, uint64(1), sellResult.UpdateID)

	buyResult := submit(e, 2, types.TokenA, types.Buy, 6500, 10000)
	require.NotNil(t, buyResult.Traded)
	require.Len(t, buyResult.Traded.Trades, 1)
	assert.Equal(t, "100", buyResult.Traded.Trades[0].Quantity)
	assert.Equal(t, "0.6", buyResult.Traded.Trades[0].MakerPrice)
	assert.Equal(t, uint64(2), buyResult.UpdateID)
}

// S2 Partial then rest.
func TestPartialThenRest(t *testing.T) {
	e := newTestEngine()

	submit(e, 1, types.TokenA, types.Sell, 6000, 10000)
	buyResult := submit(e, 2, types.TokenA, types.Buy, 6000, 4000)

	require.NotNil(t, buyResult.Traded)
	assert.Equal(t, "40", buyResult.Traded.Trades[0].Quantity)
	assert.Equal(t, "40", buyResult.Traded.Trades[0].MakerFilledQuantity)

	mw := e.markets[1]
	bids, asks := mw.market.bookFor(types.TokenA).Depth(10)
	assert.Empty(t, bids)
	require.Len(t, asks, 1)
	assert.Equal(t, int32(6000), asks[0].PriceScaled)
	assert.Equal(t, "60", asks[0].TotalQuantity)
}

// S3 Cross mint.
func TestCrossMint(t *testing.T) {
	e := newTestEngine()

	buyAResult := submit(e, 1, types.TokenA, types.Buy, 6000, 5000)
	require.NotNil(t, buyAResult.Resting)

	buyBResult := submit(e, 2, types.TokenB, types.Buy, 4500, 5000)
	require.NotNil(t, buyBResult.Traded)
	require.Len(t, buyBResult.Traded.Trades, 1)
	trade := buyBResult.Traded.Trades[0]
	assert.Equal(t, "50", trade.Quantity)
	assert.Nil(t, buyBResult.Resting)
}

// S4 No cross.
func TestNoCross(t *testing.T) {
	e := newTestEngine()

	submit(e, 1, types.TokenA, types.Buy, 6000, 5000)
	buyBResult := submit(e, 2, types.TokenB, types.Buy, 3000, 5000)

	assert.Nil(t, buyBResult.Traded)
	require.NotNil(t, buyBResult.Resting)
}

// S5 Cancel-during-drain.
func TestCancelDuringDrain(t *testing.T) {
	e := newTestEngine()

	first := submit(e, 1, types.TokenA, types.Buy, 6000, 50)
	require.NotNil(t, first.Resting)
	firstOrderID := first.Resting.OrderID

	e.Drain()

	second := submit(e, 2, types.TokenA, types.Buy, 6000, 50)
	require.NotNil(t, second.Rejected)
	assert.Equal(t, "event_not_found_or_closed", second.Rejected.Reason)

	cancelResult := e.CancelOrder(&CancelOrderMessage{OrderID: firstOrderID, UserID: 1})
	assert.True(t, cancelResult.Found)
	require.NotNil(t, cancelResult.Cancelled)
}

func TestSelfMatchRejected(t *testing.T) {
	e := newTestEngine()

	submit(e, 1, types.TokenA, types.Sell, 6000, 100)
	result := submit(e, 1, types.TokenA, types.Buy, 6500, 50)

	require.NotNil(t, result.Rejected)
	assert.Equal(t, "self_match", result.Rejected.Reason)
}

func TestUpdateIDMonotone(t *testing.T) {
	e := newTestEngine()

	var last uint64
	for i := 0; i < 10; i++ {
		res := submit(e, int64(i), types.TokenA, types.Buy, int32(5000+i), 10)
		require.Greater(t, res.UpdateID, last)
		last = res.UpdateID
	}
}

func TestConservationOfFilledQuantity(t *testing.T) {
	e := newTestEngine()

	submit(e, 1, types.TokenA, types.Sell, 6000, 70)
	result := submit(e, 2, types.TokenA, types.Buy, 6000, 50)

	require.NotNil(t, result.Traded)
	var makerFilled, takerFilled uint64
	for _, tr := range result.Traded.Trades {
		qty, err := parseQty(tr.Quantity)
		require.NoError(t, err)
		makerFilled += qty
		takerFilled += qty
	}
	assert.Equal(t, makerFilled, takerFilled)
	assert.Equal(t, uint64(50), takerFilled)
}

func TestIdempotentCancel(t *testing.T) {
	e := newTestEngine()

	res := submit(e, 1, types.TokenA, types.Buy, 6000, 10)
	orderID := res.Resting.OrderID

	first := e.CancelOrder(&CancelOrderMessage{OrderID: orderID, UserID: 1})
	assert.True(t, first.Found)

	second := e.CancelOrder(&CancelOrderMessage{OrderID: orderID, UserID: 1})
	assert.False(t, second.Found)

	unknown := e.CancelOrder(&CancelOrderMessage{OrderID: "does-not-exist", UserID: 1})
	assert.False(t, unknown.Found)
}

func parseQty(s string) (uint64, error) {
	var whole, frac uint64
	var hasFrac bool
	var fracDigits int
	for _, r := range s {
		switch {
		case r == '.':
			hasFrac = true
		case r >= '0' && r <= '9':
			d := uint64(r - '0')
			if !hasFrac {
				whole = whole*10 + d
			} else {
				frac = frac*10 + d
				fracDigits++
			}
		}
	}
	for fracDigits < 2 {
		frac *= 10
		fracDigits++
	}
	return whole*100 + frac, nil
}
