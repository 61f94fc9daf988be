package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func restoredOrder(orderID string, token types.TokenID, side types.Side, price int32, qty uint64) types.Order {
	return types.Order{
		OrderID:   orderID,
		Symbol:    types.Symbol{EventID: 1, MarketID: 1, TokenID: token},
		Side:      side,
		OrderType: types.LimitOrder,
		Price:     price,
		Quantity:  qty,
		CreatedAt: time.Now(),
	}
}

func TestRestoreOrderDoesNotMatch(t *testing.T) {
	e := newTestEngine()

	// A resting buy and a resting sell that would cross if submitted
	// as new orders must simply coexist once restored.
	require.NoError(t, e.RestoreOrder(1, restoredOrder("r1", types.TokenA, types.Buy, 6000, 10000)))
	require.NoError(t, e.RestoreOrder(1, restoredOrder("r2", types.TokenA, types.Sell, 5000, 10000)))

	snap, ok := e.Snapshot(1)
	require.True(t, ok)
	assert.Len(t, snap.Orders, 2)
}

func TestRestoreOrderRegistersCancellable(t *testing.T) {
	e := newTestEngine()
	require.NoError(t, e.RestoreOrder(1, restoredOrder("r1", types.TokenA, types.Buy, 6000, 10000)))

	result := e.CancelOrder(&CancelOrderMessage{OrderID: "r1", UserID: 0})
	assert.True(t, result.Found)
	snap, ok := e.Snapshot(1)
	require.True(t, ok)
	assert.Empty(t, snap.Orders)
}

func TestRestoreUpdateIDContinuesSequence(t *testing.T) {
	e := newTestEngine()
	e.RestoreUpdateID(1, 41)

	result := submit(e, 1, types.TokenA, types.Sell, 6000, 10000)
	require.NotNil(t, result.Resting)
	assert.Equal(t, uint64(42), result.UpdateID)
}

func TestRestoreOrderUnknownMarketErrors(t *testing.T) {
	e := newTestEngine()
	err := e.RestoreOrder(99, restoredOrder("r1", types.TokenA, types.Buy, 6000, 10000))
	assert.Error(t, err)
}
