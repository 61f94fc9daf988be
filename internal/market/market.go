package market

import (
	"time"

	"predictex/internal/book"
	"predictex/internal/types"
)

// Market owns the two sibling order books (token A / token B) for one
// market within an event, and the monotone update_id counter they
// share. All methods are called only from the owning Engine's single
// per-market goroutine (see engine.go) — no locking here, since the
// books are owned by that one goroutine at a per-market granularity.
type Market struct {
	EventID  int64
	MarketID int16
	Outcomes [2]string // indexed by TokenID

	books    [2]*book.OrderBook // indexed by TokenID
	updateID uint64

	lastTradePrice [2]int32 // indexed by TokenID; 0 means no trade yet

	orderIndex map[string]types.TokenID
}

// NewMarket creates an empty two-sided market.
func NewMarket(eventID int64, marketID int16, outcomes [2]string) *Market {
	return &Market{
		EventID:  eventID,
		MarketID: marketID,
		Outcomes: outcomes,
		books: [2]*book.OrderBook{
			book.New(types.Symbol{EventID: eventID, MarketID: marketID, TokenID: types.TokenA}),
			book.New(types.Symbol{EventID: eventID, MarketID: marketID, TokenID: types.TokenB}),
		},
		orderIndex: make(map[string]types.TokenID),
	}
}

func (mkt *Market) bookFor(token types.TokenID) *book.OrderBook {
	return mkt.books[token]
}

func (mkt *Market) symbolFor(token types.TokenID) types.Symbol {
	return types.Symbol{EventID: mkt.EventID, MarketID: mkt.MarketID, TokenID: token}
}

func (mkt *Market) nextUpdateID() uint64 {
	mkt.updateID++
	return mkt.updateID
}

// crossPredicateFor builds the price-sum cross test for an incoming
// order: Buy A @ p_a crosses Buy B @ p_b iff p_a + p_b >=
// PriceMultiplier (minting); Sell A @ p_a crosses Sell B @ p_b iff
// p_a + p_b <= PriceMultiplier (burning).
func crossPredicateFor(side types.Side, price int32) func(int32) bool {
	if side == types.Buy {
		return func(sibPrice int32) bool { return price+sibPrice >= types.PriceMultiplier }
	}
	return func(sibPrice int32) bool { return price+sibPrice <= types.PriceMultiplier }
}

// SubmitOrder runs the full direct-match -> cross-match -> rest
// algorithm for one inbound order and returns everything the output
// publisher needs to fan out downstream. now is the exchange-receipt
// timestamp; orderID is pre-assigned by the caller (UUIDv4, see
// internal/market/engine.go).
func (mkt *Market) SubmitOrder(msg *SubmitOrderMessage, orderID string, now time.Time) SubmitResult {
	sym := mkt.symbolFor(msg.TokenID)

	if msg.Quantity == 0 {
		return mkt.reject(orderID, sym, msg, "zero_quantity")
	}
	if msg.OrderType == types.LimitOrder && (msg.Price < types.MinPrice || msg.Price > types.MaxPrice) {
		return mkt.reject(orderID, sym, msg, "price_out_of_range")
	}

	order := &types.Order{
		OrderID:          orderID,
		Symbol:           sym,
		Side:             msg.Side,
		OrderType:        msg.OrderType,
		Price:            msg.Price,
		Quantity:         msg.Quantity,
		UserID:           msg.UserID,
		PrivyID:          msg.PrivyID,
		OutcomeName:      msg.OutcomeName,
		CreatedAt:        msg.Submitted,
		ExchangeReceived: now,
	}

	ownBook := mkt.bookFor(msg.TokenID)
	sibling := mkt.bookFor(msg.TokenID.Other())
	crossable := order.OrderType == types.LimitOrder
	var crossPredicate func(int32) bool
	if crossable {
		crossPredicate = crossPredicateFor(order.Side, order.Price)
	}

	if ownBook.WouldSelfMatch(order) {
		return mkt.reject(orderID, sym, msg, "self_match")
	}
	if crossable && sibling.WouldSelfMatchCross(order, crossPredicate) {
		return mkt.reject(orderID, sym, msg, "self_match")
	}

	var fills []book.Fill
	direct := ownBook.MatchAgainst(order)
	fills = append(fills, direct.Fills...)

	// Cross match only engages when the direct side left the order
	// unfilled — i.e. only when the same-side book has no crossing.
	if crossable && order.Remaining() > 0 {
		cross := sibling.MatchCross(order, crossPredicate)
		fills = append(fills, cross.Fills...)
	}

	var resting *types.OrderSubmitted
	mutated := len(fills) > 0
	if order.Remaining() > 0 && order.OrderType == types.LimitOrder {
		_ = ownBook.InsertResting(order)
		mkt.orderIndex[order.OrderID] = msg.TokenID
		resting = &types.OrderSubmitted{
			OrderID:        order.OrderID,
			Symbol:         sym,
			Side:           order.Side,
			OrderType:      order.OrderType,
			Quantity:       types.FormatQuantity(order.Quantity),
			FilledQuantity: types.FormatQuantity(order.FilledQuantity),
			Price:          types.FormatPrice(order.Price),
			UserID:         order.UserID,
			PrivyID:        order.PrivyID,
			OutcomeName:    order.OutcomeName,
		}
		mutated = true
	} else if order.FilledQuantity > 0 {
		mkt.orderIndex[order.OrderID] = msg.TokenID
	}

	var changes []types.OrderChangeEvent
	var traded *types.OrderTraded
	if len(fills) > 0 {
		takerPrice := order.Price
		trades := make([]types.Trade, 0, len(fills))
		for _, f := range fills {
			maker := f.Maker
			effectiveTakerPrice := takerPrice
			if order.OrderType == types.MarketOrder {
				effectiveTakerPrice = maker.Price
			}
			mkt.lastTradePrice[sym.TokenID] = effectiveTakerPrice
			mkt.lastTradePrice[maker.Symbol.TokenID] = maker.Price
			trades = append(trades, types.Trade{
				Timestamp:           now.Unix(),
				EventID:             mkt.EventID,
				MarketID:            mkt.MarketID,
				Quantity:            types.FormatQuantity(f.Quantity),
				TakerUSDCAmount:     types.USDCAmount(effectiveTakerPrice, f.Quantity),
				TakerPrice:          types.FormatPrice(effectiveTakerPrice),
				MakerID:             maker.UserID,
				MakerPrivyID:        maker.PrivyID,
				MakerOutcomeName:    maker.OutcomeName,
				MakerOrderID:        maker.OrderID,
				MakerSide:           maker.Side,
				MakerTokenID:        maker.Symbol.TokenID.String(),
				MakerUSDCAmount:     types.USDCAmount(maker.Price, f.Quantity),
				MakerPrice:          types.FormatPrice(maker.Price),
				MakerFilledQuantity: types.FormatQuantity(maker.FilledQuantity),
				MakerQuantity:       types.FormatQuantity(maker.Quantity),
			})
			if f.MakerRemoved {
				changes = append(changes, types.OrderFilled(maker.OrderID, maker.Symbol))
				delete(mkt.orderIndex, maker.OrderID)
			} else {
				changes = append(changes, types.OrderUpdated(*maker))
			}
		}
		traded = &types.OrderTraded{
			TakerSymbol:      sym,
			TakerID:          order.UserID,
			TakerPrivyID:     order.PrivyID,
			TakerOutcomeName: order.OutcomeName,
			TakerOrderID:     order.OrderID,
			TakerSide:        order.Side,
			Trades:           trades,
		}
	}

	switch {
	case order.IsFilled():
		changes = append(changes, types.OrderFilled(order.OrderID, sym))
	case resting != nil:
		changes = append(changes, types.OrderCreated(*order))
	case len(fills) > 0:
		changes = append(changes, types.OrderUpdated(*order))
	}

	result := SubmitResult{Traded: traded, Resting: resting}
	if mutated {
		result.UpdateID = mkt.nextUpdateID()
		changes = append(changes, types.MarketUpdateID(mkt.EventID, mkt.MarketID, result.UpdateID))
		depth := mkt.depthSnapshot(result.UpdateID, now)
		result.Depth = &depth
	}
	result.Changes = changes
	return result
}

func (mkt *Market) reject(orderID string, sym types.Symbol, msg *SubmitOrderMessage, reason string) SubmitResult {
	return SubmitResult{Rejected: &types.OrderRejected{
		OrderID: orderID,
		Symbol:  sym,
		UserID:  msg.UserID,
		PrivyID: msg.PrivyID,
		Reason:  reason,
	}}
}

// CancelOrder locates order_id via the per-market index and removes
// it. A missing order_id is a consistency violation, logged upstream
// by the engine — this call emits nothing and does not advance
// update_id.
func (mkt *Market) CancelOrder(msg *CancelOrderMessage) CancelResultMsg {
	token, ok := mkt.orderIndex[msg.OrderID]
	if !ok {
		return CancelResultMsg{Found: false}
	}
	sym := mkt.symbolFor(token)
	res, err := mkt.bookFor(token).Cancel(msg.OrderID)
	if err != nil {
		delete(mkt.orderIndex, msg.OrderID)
		return CancelResultMsg{Found: false}
	}
	delete(mkt.orderIndex, msg.OrderID)

	cancelled := &types.OrderCancelled{
		OrderID:           msg.OrderID,
		Symbol:            sym,
		UserID:            res.OwnerUserID,
		PrivyID:           res.OwnerPrivyID,
		CancelledQuantity: types.FormatQuantity(res.RemainingQuantity),
		CancelledVolume:   res.FilledValue,
	}
	updateID := mkt.nextUpdateID()
	changes := []types.OrderChangeEvent{
		types.OrderCancelledEvent(msg.OrderID, sym),
		types.MarketUpdateID(mkt.EventID, mkt.MarketID, updateID),
	}
	return CancelResultMsg{Cancelled: cancelled, Changes: changes, UpdateID: updateID, Found: true}
}

// RestoreOrder re-inserts an already-resting order recovered from a
// snapshot directly into its book, bypassing SubmitOrder's match/cross
// pipeline entirely — a resting order from a prior run has already
// cleared matching once and must not be matched again on replay.
// Callers must restore before the owning Engine starts routing live
// traffic to this market (see Engine.RestoreOrder).
func (mkt *Market) RestoreOrder(o types.Order) error {
	if err := mkt.bookFor(o.Symbol.TokenID).InsertResting(&o); err != nil {
		return err
	}
	mkt.orderIndex[o.OrderID] = o.Symbol.TokenID
	return nil
}

// SetUpdateID primes the per-market update_id counter from a snapshot
// cursor so the next mutation continues the sequence instead of
// restarting it at 1.
func (mkt *Market) SetUpdateID(updateID uint64) {
	mkt.updateID = updateID
}

func (mkt *Market) depthSnapshot(updateID uint64, now time.Time) types.DepthSnapshot {
	depths := make(map[string]types.TokenDepth, 2)
	for _, token := range [2]types.TokenID{types.TokenA, types.TokenB} {
		bids, asks := mkt.bookFor(token).Depth(10)
		depths[token.String()] = types.TokenDepth{
			Bids:             bids,
			Asks:             asks,
			LatestTradePrice: mkt.formatLastTradePrice(token),
		}
	}
	return types.DepthSnapshot{
		EventID:   mkt.EventID,
		MarketID:  mkt.MarketID,
		Depths:    depths,
		Timestamp: now.Unix(),
		UpdateID:  updateID,
	}
}

func (mkt *Market) formatLastTradePrice(token types.TokenID) string {
	price := mkt.lastTradePrice[token]
	if price == 0 {
		return ""
	}
	return types.FormatPrice(price)
}

// RestingOrders returns every resting order across both token books,
// bids and asks from both sides with no particular ordering. Like
// every other Market method, only safe when called from the owning
// Engine's per-market goroutine.
func (mkt *Market) RestingOrders() []types.Order {
	var out []types.Order
	out = append(out, mkt.bookFor(types.TokenA).AllOrders()...)
	out = append(out, mkt.bookFor(types.TokenB).AllOrders()...)
	return out
}
