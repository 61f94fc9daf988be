package market

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/tomb.v2"

	"predictex/internal/types"
)

// state values for Engine.state, stored atomically since the dispatch
// goroutine (SubmitOrder callers) and the manager's expiry/shutdown
// sweep run on different goroutines than the per-market workers.
const (
	stateLive int32 = iota
	stateDraining
	stateRemoved
)

// Engine owns every market within one event and routes inbound
// control messages to the right per-market goroutine. Grounded on the
// teacher's internal/engine/engine.go (a single Engine owning one
// OrderBook per AssetType), generalized to own multiple Markets (each
// a sibling-book pair) and to run each market on its own
// tomb-supervised goroutine so no lock is needed across markets.
type Engine struct {
	EventID int64
	EndDate *time.Time

	state int32

	markets    map[int16]*marketWorker
	orderIndex sync.Map // order_id (string) -> marketID (int16)

	onSubmit func(marketID int16, result SubmitResult)
	onCancel func(marketID int16, result CancelResultMsg)

	t tomb.Tomb
}

type marketWorker struct {
	market   *Market
	control  chan OrderBookControl
	tokenIDs []string
}

// NewEngine builds and starts an Engine for spec, one goroutine per
// market. onSubmit/onCancel are invoked after each processed message
// with the result that the output publisher (internal/publish) fans
// out to the store/processor/depth streams; either may be nil.
func NewEngine(spec types.EventSpec, onSubmit func(int16, SubmitResult), onCancel func(int16, CancelResultMsg)) *Engine {
	e := &Engine{
		EventID:  spec.EventID,
		EndDate:  spec.EndDate,
		markets:  make(map[int16]*marketWorker, len(spec.Markets)),
		onSubmit: onSubmit,
		onCancel: onCancel,
	}
	for _, ms := range spec.Markets {
		var outcomes [2]string
		copy(outcomes[:], ms.Outcomes)
		mw := &marketWorker{
			market:   NewMarket(spec.EventID, ms.MarketID, outcomes),
			control:  make(chan OrderBookControl, 256),
			tokenIDs: ms.TokenIDs,
		}
		e.markets[ms.MarketID] = mw
		marketID := ms.MarketID
		e.t.Go(func() error { return e.runMarket(marketID, mw) })
	}
	return e
}

func (e *Engine) runMarket(marketID int16, mw *marketWorker) error {
	for {
		select {
		case <-e.t.Dying():
			return nil
		case ctrl := <-mw.control:
			e.process(marketID, mw, ctrl)
		}
	}
}

func (e *Engine) process(marketID int16, mw *marketWorker, ctrl OrderBookControl) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("event_id", e.EventID).Int16("market_id", marketID).
				Msg("market worker recovered from panic")
		}
	}()

	switch ctrl.Kind {
	case SubmitOrderKind:
		e.processSubmit(marketID, mw, ctrl.Submit)
	case CancelOrderKind:
		e.processCancel(marketID, mw, ctrl.Cancel)
	case SnapshotKind:
		e.processSnapshot(mw, ctrl.Snapshot)
	}
}

func (e *Engine) processSnapshot(mw *marketWorker, req *SnapshotRequest) {
	snap := MarketSnapshot{
		UpdateID: mw.market.updateID,
		Orders:   mw.market.RestingOrders(),
	}
	if req.Result != nil {
		req.Result <- snap
	}
}

func (e *Engine) processSubmit(marketID int16, mw *marketWorker, msg *SubmitOrderMessage) {
	if e.IsStopped() {
		result := SubmitResult{Rejected: &types.OrderRejected{
			Symbol:  types.Symbol{EventID: e.EventID, MarketID: marketID, TokenID: msg.TokenID},
			UserID:  msg.UserID,
			PrivyID: msg.PrivyID,
			Reason:  "event_not_found_or_closed",
		}}
		e.replySubmit(msg.Result, result)
		if e.onSubmit != nil {
			e.onSubmit(marketID, result)
		}
		return
	}

	orderID := uuid.New().String()
	result := mw.market.SubmitOrder(msg, orderID, time.Now())
	if result.Resting != nil {
		e.orderIndex.Store(orderID, marketID)
	}
	e.replySubmit(msg.Result, result)
	if e.onSubmit != nil {
		e.onSubmit(marketID, result)
	}
}

func (e *Engine) processCancel(marketID int16, mw *marketWorker, msg *CancelOrderMessage) {
	result := mw.market.CancelOrder(msg)
	if result.Found {
		e.orderIndex.Delete(msg.OrderID)
	} else {
		log.Warn().Str("order_id", msg.OrderID).Int64("event_id", e.EventID).Int16("market_id", marketID).
			Msg("cancel for order not resting on market; ignored")
	}
	e.replyCancel(msg.Result, result)
	if result.Found && e.onCancel != nil {
		e.onCancel(marketID, result)
	}
}

func (e *Engine) replySubmit(ch chan SubmitResult, result SubmitResult) {
	if ch != nil {
		ch <- result
	}
}

func (e *Engine) replyCancel(ch chan CancelResultMsg, result CancelResultMsg) {
	if ch != nil {
		ch <- result
	}
}

// SubmitOrder dispatches msg to its market and blocks for the result.
// Returns a synchronous EventNotFoundOrClosed/MarketNotFoundOrClosed
// rejection if the engine is stopped or the market_id is unknown,
// without ever touching a market goroutine.
func (e *Engine) SubmitOrder(msg *SubmitOrderMessage) SubmitResult {
	if e.IsStopped() {
		return SubmitResult{Rejected: &types.OrderRejected{
			UserID: msg.UserID, PrivyID: msg.PrivyID, Reason: "event_not_found_or_closed",
		}}
	}
	mw, ok := e.markets[msg.MarketID]
	if !ok {
		return SubmitResult{Rejected: &types.OrderRejected{
			UserID: msg.UserID, PrivyID: msg.PrivyID, Reason: "market_not_found_or_closed",
		}}
	}
	msg.Result = submitResultChan()
	mw.control <- OrderBookControl{Kind: SubmitOrderKind, Submit: msg}
	return <-msg.Result
}

// CancelOrder locates order_id's market via the engine-wide index and
// dispatches there. An unknown order_id is a no-op per the idempotent
// cancel property — it is never forwarded to any market goroutine.
func (e *Engine) CancelOrder(msg *CancelOrderMessage) CancelResultMsg {
	v, ok := e.orderIndex.Load(msg.OrderID)
	if !ok {
		return CancelResultMsg{Found: false}
	}
	marketID := v.(int16)
	mw, ok := e.markets[marketID]
	if !ok {
		return CancelResultMsg{Found: false}
	}
	msg.Result = cancelResultChan()
	mw.control <- OrderBookControl{Kind: CancelOrderKind, Cancel: msg}
	return <-msg.Result
}

// Drain flips the engine to Draining: subsequent SubmitOrder calls are
// rejected with EventNotFoundOrClosed, but cancels still process
// normally (scenario S5).
func (e *Engine) Drain() {
	atomic.CompareAndSwapInt32(&e.state, stateLive, stateDraining)
}

// IsStopped reports whether new submissions should be rejected.
func (e *Engine) IsStopped() bool {
	return atomic.LoadInt32(&e.state) != stateLive
}

// Remove stops every market goroutine and marks the engine Removed.
// Returns the final EventRemoved change the caller should still
// append to the store stream.
func (e *Engine) Remove() types.OrderChangeEvent {
	atomic.StoreInt32(&e.state, stateRemoved)
	e.t.Kill(nil)
	_ = e.t.Wait()
	return types.EventRemoved(e.EventID)
}

// Markets returns the set of market ids owned by this engine, for
// EngineManager bookkeeping and periodic snapshotting.
func (e *Engine) Markets() []int16 {
	ids := make([]int16, 0, len(e.markets))
	for id := range e.markets {
		ids = append(ids, id)
	}
	return ids
}

// RestoreOrder re-inserts a resting order recovered from a snapshot
// into its market's book and the engine-wide order_id index. Must
// only be called during boot, before any market goroutine is handling
// live SubmitOrder/CancelOrder traffic — it touches market and
// orderIndex state directly rather than going through the control
// channel.
func (e *Engine) RestoreOrder(marketID int16, o types.Order) error {
	mw, ok := e.markets[marketID]
	if !ok {
		return fmt.Errorf("restore order %s: unknown market_id %d for event %d", o.OrderID, marketID, e.EventID)
	}
	if err := mw.market.RestoreOrder(o); err != nil {
		return err
	}
	e.orderIndex.Store(o.OrderID, marketID)
	return nil
}

// RestoreUpdateID primes marketID's update_id counter from a snapshot
// cursor. Same boot-only restriction as RestoreOrder.
func (e *Engine) RestoreUpdateID(marketID int16, updateID uint64) {
	if mw, ok := e.markets[marketID]; ok {
		mw.market.SetUpdateID(updateID)
	}
}

// Snapshot captures marketID's update_id and resting orders together,
// computed on the owning per-market goroutine and returned over its
// control channel — the books and update_id counter have no lock of
// their own, so this is the only safe way to read them while the
// market may be concurrently processing live traffic. Blocks until
// answered; ok is false if marketID is unknown.
func (e *Engine) Snapshot(marketID int16) (MarketSnapshot, bool) {
	mw, ok := e.markets[marketID]
	if !ok {
		return MarketSnapshot{}, false
	}
	result := make(chan MarketSnapshot, 1)
	mw.control <- OrderBookControl{Kind: SnapshotKind, Snapshot: &SnapshotRequest{Result: result}}
	return <-result, true
}

// Outcomes returns marketID's two outcome names, or the zero value if
// unknown — used by manager.Manager.Snapshot when persisting market
// metadata.
func (e *Engine) Outcomes(marketID int16) [2]string {
	mw, ok := e.markets[marketID]
	if !ok {
		return [2]string{}
	}
	return mw.market.Outcomes
}

// TokenIDs returns marketID's two token identifiers in EventSpec order,
// or nil if unknown — used by manager.Manager.Snapshot when persisting
// market metadata.
func (e *Engine) TokenIDs(marketID int16) []string {
	mw, ok := e.markets[marketID]
	if !ok {
		return nil
	}
	return mw.tokenIDs
}
