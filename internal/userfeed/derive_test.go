package userfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func sym() types.Symbol {
	return types.Symbol{EventID: 1, MarketID: 1, TokenID: types.TokenA}
}

func TestDeriveOrderSubmitted(t *testing.T) {
	msg := types.ProcessorMessage{
		Kind:      types.OrderSubmittedKind,
		Submitted: &types.OrderSubmitted{OrderID: "o1", Symbol: sym(), PrivyID: "u1"},
	}
	events := Derive(msg)
	require.Len(t, events, 1)
	assert.Equal(t, types.UserOrderSubmittedKind, events[0].Kind)
	assert.Equal(t, "u1", events[0].PrivyID)
	assert.Equal(t, "1:1", events[0].TrackingKey)
}

func TestDeriveOrderTradedEmitsTakerAndDistinctMakers(t *testing.T) {
	traded := types.OrderTraded{
		TakerSymbol:  sym(),
		TakerPrivyID: "taker",
		Trades: []types.Trade{
			{EventID: 1, MarketID: 1, MakerPrivyID: "maker-a"},
			{EventID: 1, MarketID: 1, MakerPrivyID: "maker-a"},
			{EventID: 1, MarketID: 1, MakerPrivyID: "maker-b"},
		},
	}
	events := Derive(types.ProcessorMessage{Kind: types.OrderTradedKind, Traded: &traded})
	require.Len(t, events, 3)

	privyIDs := map[string]bool{}
	for _, e := range events {
		privyIDs[e.PrivyID] = true
	}
	assert.True(t, privyIDs["taker"])
	assert.True(t, privyIDs["maker-a"])
	assert.True(t, privyIDs["maker-b"])
}

func TestShouldDeliverFirstSightingAlwaysTrue(t *testing.T) {
	lastSeen := map[string]uint64{}
	event := types.UserEvent{TrackingKey: "1:1", UpdateID: 5}
	assert.True(t, ShouldDeliver(lastSeen, event))
}

func TestShouldDeliverRejectsNonIncreasing(t *testing.T) {
	lastSeen := map[string]uint64{"1:1": 5}
	assert.False(t, ShouldDeliver(lastSeen, types.UserEvent{TrackingKey: "1:1", UpdateID: 5}))
	assert.False(t, ShouldDeliver(lastSeen, types.UserEvent{TrackingKey: "1:1", UpdateID: 3}))
	assert.True(t, ShouldDeliver(lastSeen, types.UserEvent{TrackingKey: "1:1", UpdateID: 6}))
}

func TestRecordAdvancesLastSeen(t *testing.T) {
	lastSeen := map[string]uint64{}
	Record(lastSeen, types.UserEvent{TrackingKey: "1:1", UpdateID: 7})
	assert.Equal(t, uint64(7), lastSeen["1:1"])
}

func TestSequencerIsMonotonePerKey(t *testing.T) {
	seq := NewSequencer()
	assert.Equal(t, uint64(1), seq.Next("1:1"))
	assert.Equal(t, uint64(2), seq.Next("1:1"))
	assert.Equal(t, uint64(1), seq.Next("1:2"))
}
