package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func testOrder(id string) types.Order {
	return types.Order{
		OrderID:  id,
		Symbol:   types.Symbol{EventID: 1, MarketID: 1, TokenID: types.TokenA},
		Side:     types.Buy,
		Price:    5000,
		Quantity: 1000,
	}
}

func TestApplyOrderCreatedThenCancelled(t *testing.T) {
	s := NewOrderStorage(nil)

	s.Apply(types.OrderCreated(testOrder("o1")), "1-0")
	assert.Equal(t, 1, s.OrderCount())

	s.Apply(types.OrderCancelledEvent("o1", testOrder("o1").Symbol), "2-0")
	assert.Equal(t, 0, s.OrderCount())
	assert.Equal(t, "2-0", s.LastMessageID())
}

func TestApplyIsIdempotentOnDuplicateCreate(t *testing.T) {
	s := NewOrderStorage(nil)
	s.Apply(types.OrderCreated(testOrder("o1")), "1-0")
	s.Apply(types.OrderCreated(testOrder("o1")), "1-0")
	assert.Equal(t, 1, s.OrderCount())
}

func TestEventRemovedClearsItsOrders(t *testing.T) {
	s := NewOrderStorage(nil)
	spec := types.EventSpec{EventID: 1, Markets: []types.MarketSpec{{MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"A", "B"}}}}
	s.Apply(types.EventAdded(spec), "1-0")
	s.Apply(types.OrderCreated(testOrder("o1")), "2-0")
	require.Equal(t, 1, s.OrderCount())

	s.Apply(types.EventRemoved(1), "3-0")
	assert.Equal(t, 0, s.OrderCount())
	_, exists := s.eventMeta[1]
	assert.False(t, exists)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewOrderStorage(nil)
	spec := types.EventSpec{EventID: 1, Markets: []types.MarketSpec{{MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"A", "B"}}}}
	s.Apply(types.EventAdded(spec), "1-0")
	s.Apply(types.OrderCreated(testOrder("o1")), "2-0")
	s.Apply(types.MarketUpdateID(1, 1, 5), "3-0")

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.json")
	require.NoError(t, s.SaveSnapshot(path))

	restored := NewOrderStorage(nil)
	lastID, err := restored.LoadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "3-0", lastID)
	assert.Equal(t, 1, restored.OrderCount())

	o, ok := restored.Order("o1")
	require.True(t, ok)
	assert.Equal(t, int32(5000), o.Price)

	ms := restored.eventMeta[1].markets[1]
	require.NotNil(t, ms)
	assert.Equal(t, uint64(5), ms.updateID)
}

func TestLoadSnapshotMissingFileStartsFromZero(t *testing.T) {
	s := NewOrderStorage(nil)
	lastID, err := s.LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, "", lastID)
	assert.Equal(t, 0, s.OrderCount())
}
