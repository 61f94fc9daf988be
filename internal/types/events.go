package types

import "time"

// OrderChangeKind tags the case carried by an OrderChangeEvent.
type OrderChangeKind string

const (
	OrderCreatedKind    OrderChangeKind = "OrderCreated"
	OrderUpdatedKind    OrderChangeKind = "OrderUpdated"
	OrderFilledKind     OrderChangeKind = "OrderFilled"
	OrderCancelledKind  OrderChangeKind = "OrderCancelled"
	EventAddedKind      OrderChangeKind = "EventAdded"
	EventRemovedKind    OrderChangeKind = "EventRemoved"
	MarketUpdateIDKind  OrderChangeKind = "MarketUpdateId"
)

// OrderChangeEvent is published to the store stream. Kind selects which
// payload fields are populated (Order; OrderID+Symbol; EventSpec;
// EventID; or EventID+MarketID+UpdateID) — the Go rendering of the
// source's OrderChangeEvent tagged union.
type OrderChangeEvent struct {
	Kind OrderChangeKind `json:"kind"`

	Order           *Order         `json:"order,omitempty"`
	OrderID         string         `json:"order_id,omitempty"`
	Symbol          *Symbol        `json:"symbol,omitempty"`
	EventSpec       *EventSpec     `json:"event_spec,omitempty"`
	EventID         int64          `json:"event_id,omitempty"`
	MarketID        int16          `json:"market_id,omitempty"`
	UpdateID        uint64         `json:"update_id,omitempty"`
}

// EventSpec describes an event, with its markets, being added to the
// engine (EventCreate control message payload).
type EventSpec struct {
	EventID int64             `json:"event_id"`
	Markets []MarketSpec      `json:"markets"`
	EndDate *time.Time        `json:"end_date,omitempty"`
}

// MarketSpec describes a single two-token market within an event.
type MarketSpec struct {
	MarketID int16    `json:"market_id"`
	Outcomes []string `json:"outcomes"`
	TokenIDs []string `json:"token_ids"`
}

func OrderCreated(o Order) OrderChangeEvent {
	return OrderChangeEvent{Kind: OrderCreatedKind, Order: &o}
}

func OrderUpdated(o Order) OrderChangeEvent {
	return OrderChangeEvent{Kind: OrderUpdatedKind, Order: &o}
}

func OrderFilled(orderID string, sym Symbol) OrderChangeEvent {
	return OrderChangeEvent{Kind: OrderFilledKind, OrderID: orderID, Symbol: &sym}
}

func OrderCancelledEvent(orderID string, sym Symbol) OrderChangeEvent {
	return OrderChangeEvent{Kind: OrderCancelledKind, OrderID: orderID, Symbol: &sym}
}

func EventAdded(spec EventSpec) OrderChangeEvent {
	return OrderChangeEvent{Kind: EventAddedKind, EventSpec: &spec}
}

func EventRemoved(eventID int64) OrderChangeEvent {
	return OrderChangeEvent{Kind: EventRemovedKind, EventID: eventID}
}

func MarketUpdateID(eventID int64, marketID int16, updateID uint64) OrderChangeEvent {
	return OrderChangeEvent{Kind: MarketUpdateIDKind, EventID: eventID, MarketID: marketID, UpdateID: updateID}
}
