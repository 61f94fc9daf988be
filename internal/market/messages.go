// Package market implements the per-event matching engine: one or
// more two-sided (token A / token B) markets, each processed strictly
// serially under the prediction-market cross-matching rule.
package market

import (
	"time"

	"predictex/internal/types"
)

// ControlKind tags the case carried by an OrderBookControl message.
type ControlKind int

const (
	SubmitOrderKind ControlKind = iota
	CancelOrderKind
	SnapshotKind
)

// OrderBookControl is the single message type accepted by a per-market
// control channel.
type OrderBookControl struct {
	Kind ControlKind

	Submit   *SubmitOrderMessage
	Cancel   *CancelOrderMessage
	Snapshot *SnapshotRequest
}

// SnapshotRequest asks the owning market goroutine to capture its
// update_id and resting orders together and hand them back over
// Result. This is the only safe way to read book state from outside
// that goroutine: the books and update_id counter have no lock of
// their own, since the owning goroutine is their only writer.
type SnapshotRequest struct {
	Result chan MarketSnapshot
}

// MarketSnapshot is one market's update_id and resting orders, read
// together on the owning goroutine.
type MarketSnapshot struct {
	UpdateID uint64
	Orders   []types.Order
}

// SubmitOrderMessage is the inbound order placement request.
type SubmitOrderMessage struct {
	MarketID    int16
	TokenID     types.TokenID
	Side        types.Side
	OrderType   types.OrderType
	Price       int32 // ignored for Market orders
	Quantity    uint64
	UserID      int64
	PrivyID     string
	OutcomeName string
	Submitted   time.Time

	// Result receives the engine's single SubmitResult once the
	// submission has been fully processed (matched/rested/rejected);
	// callers that need a synchronous reply receive from it.
	Result chan SubmitResult
}

// CancelOrderMessage is the inbound cancellation request.
type CancelOrderMessage struct {
	OrderID string
	UserID  int64

	Result chan CancelResultMsg
}

// SubmitResult is the terminal outcome of one SubmitOrder call,
// carrying everything the output publisher needs to fan out
// OrderTraded/OrderSubmitted/OrderRejected/store-stream events.
type SubmitResult struct {
	Rejected *types.OrderRejected
	Traded   *types.OrderTraded // non-nil iff at least one fill occurred
	Resting  *types.OrderSubmitted
	Changes  []types.OrderChangeEvent // store-stream events, in emission order
	UpdateID uint64
	Depth    *types.DepthSnapshot // recomputed iff state mutated
}

// CancelResultMsg is the terminal outcome of one CancelOrder call.
type CancelResultMsg struct {
	Cancelled *types.OrderCancelled
	Changes   []types.OrderChangeEvent
	UpdateID  uint64
	Found     bool
}

func submitResultChan() chan SubmitResult   { return make(chan SubmitResult, 1) }
func cancelResultChan() chan CancelResultMsg { return make(chan CancelResultMsg, 1) }
