// Package userfeed is the user fan-out service (L7): it consumes
// processor_stream, derives one UserEvent per affected user, and
// appends each onto user_event_stream for the websocket edge to
// deliver. A per-connection last_update_ids tracking-key map only
// forwards a message when update_id > last_seen — captured here as
// the pure ShouldDeliver gate, since the WebSocket transport itself is
// out of this repo's boundary.
package userfeed

import (
	"fmt"

	"predictex/internal/types"
)

// Derive converts one processor_stream message into the per-user
// events it implies. TrackingKey is left set to the owning
// (event_id, market_id) pair; UpdateID is filled in by the caller via
// a Sequencer, since this function has no notion of delivery order.
func Derive(msg types.ProcessorMessage) []types.UserEvent {
	switch msg.Kind {
	case types.OrderRejectedKind:
		if msg.Rejected == nil {
			return nil
		}
		r := msg.Rejected
		return []types.UserEvent{{
			Kind:        types.UserOrderRejectedKind,
			PrivyID:     r.PrivyID,
			EventID:     r.Symbol.EventID,
			TrackingKey: trackingKey(r.Symbol.EventID, r.Symbol.MarketID),
			Rejected:    r,
		}}

	case types.OrderSubmittedKind:
		if msg.Submitted == nil {
			return nil
		}
		s := msg.Submitted
		return []types.UserEvent{{
			Kind:        types.UserOrderSubmittedKind,
			PrivyID:     s.PrivyID,
			EventID:     s.Symbol.EventID,
			TrackingKey: trackingKey(s.Symbol.EventID, s.Symbol.MarketID),
			Submitted:   s,
		}}

	case types.OrderCancelledMsg:
		if msg.Cancelled == nil {
			return nil
		}
		c := msg.Cancelled
		return []types.UserEvent{{
			Kind:        types.UserOrderCancelledKind,
			PrivyID:     c.PrivyID,
			EventID:     c.Symbol.EventID,
			TrackingKey: trackingKey(c.Symbol.EventID, c.Symbol.MarketID),
			Cancelled:   c,
		}}

	case types.OrderTradedKind:
		if msg.Traded == nil {
			return nil
		}
		return deriveTraded(*msg.Traded)
	}
	return nil
}

// deriveTraded emits one UserEvent for the taker and one for every
// distinct maker involved, each carrying the full trade list so a
// connection sees its own complete fill picture in one message.
func deriveTraded(traded types.OrderTraded) []types.UserEvent {
	events := []types.UserEvent{{
		Kind:        types.UserOrderTradedKind,
		PrivyID:     traded.TakerPrivyID,
		EventID:     traded.TakerSymbol.EventID,
		TrackingKey: trackingKey(traded.TakerSymbol.EventID, traded.TakerSymbol.MarketID),
		Traded:      &traded,
	}}

	seen := map[string]bool{traded.TakerPrivyID: true}
	for _, tr := range traded.Trades {
		if seen[tr.MakerPrivyID] {
			continue
		}
		seen[tr.MakerPrivyID] = true
		events = append(events, types.UserEvent{
			Kind:        types.UserOrderTradedKind,
			PrivyID:     tr.MakerPrivyID,
			EventID:     tr.EventID,
			TrackingKey: trackingKey(tr.EventID, tr.MarketID),
			Traded:      &traded,
		})
	}
	return events
}

func trackingKey(eventID int64, marketID int16) string {
	return fmt.Sprintf("%d:%d", eventID, marketID)
}

// ShouldDeliver is the per-connection dedup gate: a connection only
// ever needs to render an event's tracking_key/update_id pair once,
// discarding non-increasing duplicates from at-least-once stream
// redelivery via an `update_id > last_id` check.
func ShouldDeliver(lastSeen map[string]uint64, event types.UserEvent) bool {
	last, ok := lastSeen[event.TrackingKey]
	if !ok {
		return true
	}
	return event.UpdateID > last
}

// Record marks event as delivered, advancing lastSeen for its
// tracking key.
func Record(lastSeen map[string]uint64, event types.UserEvent) {
	lastSeen[event.TrackingKey] = event.UpdateID
}
