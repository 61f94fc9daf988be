package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/market"
	"predictex/internal/types"
)

func testSpec(eventID int64, endDate *time.Time) types.EventSpec {
	return types.EventSpec{
		EventID: eventID,
		Markets: []types.MarketSpec{
			{MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"A", "B"}},
		},
		EndDate: endDate,
	}
}

func TestEventCreateAndSubmit(t *testing.T) {
	m := New(nil, nil, nil)
	m.EventCreate(testSpec(1, nil))

	result := m.SubmitOrder(1, &market.SubmitOrderMessage{
		MarketID: 1, TokenID: types.TokenA, Side: types.Buy,
		OrderType: types.LimitOrder, Price: 5000, Quantity: 100,
		UserID: 1, Submitted: time.Now(),
	})
	require.NotNil(t, result.Resting)
}

func TestSubmitToUnknownEventRejected(t *testing.T) {
	m := New(nil, nil, nil)
	result := m.SubmitOrder(999, &market.SubmitOrderMessage{
		MarketID: 1, TokenID: types.TokenA, Side: types.Buy,
		OrderType: types.LimitOrder, Price: 5000, Quantity: 100,
		UserID: 1, Submitted: time.Now(),
	})
	require.NotNil(t, result.Rejected)
	assert.Equal(t, "event_not_found_or_closed", result.Rejected.Reason)
}

func TestGlobalStopTakesPrecedence(t *testing.T) {
	m := New(nil, nil, nil)
	m.EventCreate(testSpec(1, nil))
	m.StopReceiving()

	result := m.SubmitOrder(1, &market.SubmitOrderMessage{
		MarketID: 1, TokenID: types.TokenA, Side: types.Buy,
		OrderType: types.LimitOrder, Price: 5000, Quantity: 100,
		UserID: 1, Submitted: time.Now(),
	})
	require.NotNil(t, result.Rejected)
	assert.Equal(t, "event_not_found_or_closed", result.Rejected.Reason)
}

func TestEventCloseRemovesEngine(t *testing.T) {
	var changes []types.OrderChangeEvent
	m := New(nil, nil, func(eventID int64, change types.OrderChangeEvent) {
		changes = append(changes, change)
	})
	m.EventCreate(testSpec(1, nil))
	m.EventClose(1)

	result := m.SubmitOrder(1, &market.SubmitOrderMessage{
		MarketID: 1, TokenID: types.TokenA, Side: types.Buy,
		OrderType: types.LimitOrder, Price: 5000, Quantity: 100,
		UserID: 1, Submitted: time.Now(),
	})
	require.NotNil(t, result.Rejected)

	require.Len(t, changes, 2)
	assert.Equal(t, types.EventAddedKind, changes[0].Kind)
	assert.Equal(t, types.EventRemovedKind, changes[1].Kind)
}

func TestExpirySweepRetiresPastEvents(t *testing.T) {
	past := time.Now().Add(-3 * ExpiryGrace)
	m := New(nil, nil, nil)
	m.EventCreate(testSpec(1, &past))

	m.sweepExpired(time.Now())

	assert.Empty(t, m.EventIDs())
}

func TestRemoveAllClearsEverything(t *testing.T) {
	m := New(nil, nil, nil)
	m.EventCreate(testSpec(1, nil))
	m.EventCreate(testSpec(2, nil))

	m.RemoveAll()
	assert.Empty(t, m.EventIDs())
}
