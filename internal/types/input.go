package types

import "time"

// OrderInputKind tags the case carried by an OrderInputMessage.
type OrderInputKind string

const (
	SubmitOrderInputKind OrderInputKind = "SubmitOrder"
	CancelOrderInputKind OrderInputKind = "CancelOrder"
)

// OrderInputMessage is the wire shape of one order_input_stream entry
// — the JSON-decodable counterpart of internal/market's
// SubmitOrderMessage/CancelOrderMessage, which carry a reply channel
// and so cannot be unmarshaled directly.
type OrderInputMessage struct {
	Kind OrderInputKind `json:"kind"`

	EventID   int64     `json:"event_id"`
	MarketID  int16     `json:"market_id"`
	TokenID   TokenID   `json:"token_id"`
	Side      Side      `json:"side,omitempty"`
	OrderType OrderType `json:"order_type,omitempty"`

	// Price/Quantity are decimal strings on the wire, parsed to
	// fixed-point via ParsePrice/ParseQuantity.
	Price    string `json:"price,omitempty"`
	Quantity string `json:"quantity,omitempty"`

	UserID      int64     `json:"user_id"`
	PrivyID     string    `json:"privy_id"`
	OutcomeName string    `json:"outcome_name,omitempty"`
	Submitted   time.Time `json:"submitted,omitempty"`

	// OrderID is only set for CancelOrder.
	OrderID string `json:"order_id,omitempty"`
}

// EventInputKind tags the case carried by an EventInputMessage.
type EventInputKind string

const (
	EventCreateInputKind EventInputKind = "EventCreate"
	EventCloseInputKind  EventInputKind = "EventClose"
)

// EventInputMessage is the wire shape of one event_input_stream entry
// — event lifecycle control for internal/manager.
type EventInputMessage struct {
	Kind EventInputKind `json:"kind"`

	Spec    *EventSpec `json:"spec,omitempty"`    // set for EventCreate
	EventID int64      `json:"event_id,omitempty"` // set for EventClose
}
