// Package manager implements the EngineManager: routes inbound
// control traffic to the right per-event market.Engine, creates
// engines on EventCreate, and retires them on EventClose or expiry.
// Generalized from a single long-lived Engine value to a registry of
// many Engines keyed by event_id, plus a periodic expiry sweep.
package manager

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"predictex/internal/market"
	"predictex/internal/snapshot"
	"predictex/internal/types"
)

// ExpiryGrace is added to an event's end_date before the sweep retires
// it, giving in-flight settlement activity a window to finish.
const ExpiryGrace = 2 * time.Minute

// SweepInterval is how often the expiry sweep runs.
const SweepInterval = 5 * time.Minute

// Manager owns every live Engine, keyed by event_id.
type Manager struct {
	mu      sync.RWMutex
	engines map[int64]*market.Engine

	globalStop bool

	onSubmit func(eventID int64, marketID int16, result market.SubmitResult)
	onCancel func(eventID int64, marketID int16, result market.CancelResultMsg)
	onChange func(eventID int64, change types.OrderChangeEvent)

	stop chan struct{}
	done chan struct{}
}

// New creates a Manager. onSubmit/onCancel are forwarded per processed
// message (wired to internal/publish by the caller); onChange receives
// engine lifecycle events (EventAdded/EventRemoved) that don't
// originate from a specific SubmitOrder/CancelOrder call.
func New(
	onSubmit func(eventID int64, marketID int16, result market.SubmitResult),
	onCancel func(eventID int64, marketID int16, result market.CancelResultMsg),
	onChange func(eventID int64, change types.OrderChangeEvent),
) *Manager {
	return &Manager{
		engines:  make(map[int64]*market.Engine),
		onSubmit: onSubmit,
		onCancel: onCancel,
		onChange: onChange,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// EventCreate instantiates and registers a new Engine for spec. A
// duplicate event_id is a no-op (logged); EventCreate is not a
// resubmission mechanism.
func (m *Manager) EventCreate(spec types.EventSpec) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[spec.EventID]; exists {
		log.Warn().Int64("event_id", spec.EventID).Msg("EventCreate for already-registered event, ignoring")
		return
	}

	eventID := spec.EventID
	eng := market.NewEngine(spec,
		func(marketID int16, result market.SubmitResult) {
			if m.onSubmit != nil {
				m.onSubmit(eventID, marketID, result)
			}
		},
		func(marketID int16, result market.CancelResultMsg) {
			if m.onCancel != nil {
				m.onCancel(eventID, marketID, result)
			}
		},
	)
	m.engines[spec.EventID] = eng
	if m.onChange != nil {
		m.onChange(spec.EventID, types.EventAdded(spec))
	}
}

// EventClose drains then removes the engine for eventID, emitting the
// final EventRemoved change.
func (m *Manager) EventClose(eventID int64) {
	m.mu.Lock()
	eng, ok := m.engines[eventID]
	if ok {
		delete(m.engines, eventID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	eng.Drain()
	change := eng.Remove()
	if m.onChange != nil {
		m.onChange(eventID, change)
	}
}

// SubmitOrder routes msg to eventID's engine. Unknown or closed events
// reject with EventNotFoundOrClosed; the global stop_receiving flag
// takes precedence over any per-event state.
func (m *Manager) SubmitOrder(eventID int64, msg *market.SubmitOrderMessage) market.SubmitResult {
	m.mu.RLock()
	stopped := m.globalStop
	eng, ok := m.engines[eventID]
	m.mu.RUnlock()

	if stopped || !ok {
		return market.SubmitResult{Rejected: &types.OrderRejected{
			UserID: msg.UserID, PrivyID: msg.PrivyID, Reason: "event_not_found_or_closed",
		}}
	}
	return eng.SubmitOrder(msg)
}

// CancelOrder routes a cancel to eventID's engine. Cancels are
// processed even under the global stop flag (scenario S5).
func (m *Manager) CancelOrder(eventID int64, msg *market.CancelOrderMessage) market.CancelResultMsg {
	m.mu.RLock()
	eng, ok := m.engines[eventID]
	m.mu.RUnlock()
	if !ok {
		return market.CancelResultMsg{Found: false}
	}
	return eng.CancelOrder(msg)
}

// StopReceiving flips the global shutdown flag: every engine, present
// and future, rejects new submissions from this point on.
func (m *Manager) StopReceiving() {
	m.mu.Lock()
	m.globalStop = true
	m.mu.Unlock()
}

// IsStopped reports the global stop_receiving flag.
func (m *Manager) IsStopped() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.globalStop
}

// RemoveAll drains and removes every registered engine, emitting
// EventRemoved for each — the last step of the graceful shutdown
// sequence.
func (m *Manager) RemoveAll() {
	m.mu.Lock()
	ids := make([]int64, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.EventClose(id)
	}
}

// RunExpirySweep blocks, retiring engines whose end_date+ExpiryGrace
// has passed every SweepInterval, until Stop is called.
func (m *Manager) RunExpirySweep() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweepExpired(now)
		}
	}
}

func (m *Manager) sweepExpired(now time.Time) {
	m.mu.RLock()
	var expired []int64
	for id, eng := range m.engines {
		if eng.EndDate != nil && now.After(eng.EndDate.Add(ExpiryGrace)) {
			expired = append(expired, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range expired {
		log.Info().Int64("event_id", id).Msg("expiry sweep retiring event")
		m.EventClose(id)
	}
}

// Stop ends the expiry sweep goroutine and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

// Restore rebuilds every engine and resting order from snap, and
// primes each market's update_id counter — boot-time recovery (L8),
// loading the snapshot before accepting any stream traffic. Must be
// called before Run/consume loops start dispatching live
// SubmitOrder/CancelOrder/EventCreate traffic, since it mutates engine
// state directly rather than through the control channel. Returns the
// stream cursor the caller should resume consuming from.
func (m *Manager) Restore(snap snapshot.Snapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for eventIDStr, es := range snap.Events {
		eventID, err := strconv.ParseInt(eventIDStr, 10, 64)
		if err != nil {
			return "", err
		}
		spec := types.EventSpec{EventID: eventID, EndDate: es.EndDate}
		for _, ms := range es.Markets {
			spec.Markets = append(spec.Markets, types.MarketSpec{
				MarketID: ms.MarketID, Outcomes: ms.Outcomes, TokenIDs: ms.TokenIDs,
			})
		}

		eventID2 := eventID
		eng := market.NewEngine(spec,
			func(marketID int16, result market.SubmitResult) {
				if m.onSubmit != nil {
					m.onSubmit(eventID2, marketID, result)
				}
			},
			func(marketID int16, result market.CancelResultMsg) {
				if m.onCancel != nil {
					m.onCancel(eventID2, marketID, result)
				}
			},
		)
		for _, ms := range es.Markets {
			eng.RestoreUpdateID(ms.MarketID, ms.UpdateID)
		}
		m.engines[eventID] = eng
	}

	for _, ss := range snap.Snapshots {
		eng, ok := m.engines[ss.Symbol.EventID]
		if !ok {
			log.Warn().Int64("event_id", ss.Symbol.EventID).Msg("snapshot restore: resting orders for unknown event, skipping")
			continue
		}
		for _, o := range ss.Orders {
			if err := eng.RestoreOrder(ss.Symbol.MarketID, o); err != nil {
				log.Error().Err(err).Str("order_id", o.OrderID).Msg("snapshot restore: failed to restore order")
			}
		}
	}

	return snap.LastMessageID, nil
}

// Snapshot builds a full snapshot.Snapshot of every live engine's
// resting orders and market metadata. lastMessageID is the stream
// cursor the caller (cmd/matchengine) has consumed up to; it is
// stamped into the result verbatim. Per-market update_id and resting
// orders are read via Engine.Snapshot, which round-trips through the
// owning market goroutine's control channel rather than reaching into
// book state directly — the books have no lock of their own.
func (m *Manager) Snapshot(lastMessageID string) snapshot.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := snapshot.New()
	snap.Timestamp = time.Now().Unix()
	snap.LastMessageID = lastMessageID

	for eventID, eng := range m.engines {
		es := snapshot.EventSnapshot{Markets: make(map[string]snapshot.MarketSnapshot), EndDate: eng.EndDate}
		for _, marketID := range eng.Markets() {
			marketSnap, ok := eng.Snapshot(marketID)
			if !ok {
				continue
			}
			outcomes := eng.Outcomes(marketID)
			es.Markets[strconv.Itoa(int(marketID))] = snapshot.MarketSnapshot{
				MarketID: marketID,
				Outcomes: outcomes[:],
				TokenIDs: eng.TokenIDs(marketID),
				UpdateID: marketSnap.UpdateID,
			}

			snap.Snapshots = append(snap.Snapshots, symbolSnapshotsFor(eventID, marketID, marketSnap.Orders, snap.Timestamp)...)
		}
		snap.Events[strconv.FormatInt(eventID, 10)] = es
	}
	return snap
}

// symbolSnapshotsFor groups marketID's resting orders by token symbol,
// the granularity snapshot.SymbolSnapshot persists at — a market can
// have resting orders on both token books at once.
func symbolSnapshotsFor(eventID int64, marketID int16, orders []types.Order, timestamp int64) []snapshot.SymbolSnapshot {
	bySymbol := make(map[types.TokenID][]types.Order)
	for _, o := range orders {
		bySymbol[o.Symbol.TokenID] = append(bySymbol[o.Symbol.TokenID], o)
	}
	out := make([]snapshot.SymbolSnapshot, 0, len(bySymbol))
	for _, token := range [2]types.TokenID{types.TokenA, types.TokenB} {
		tokenOrders, ok := bySymbol[token]
		if !ok {
			continue
		}
		out = append(out, snapshot.SymbolSnapshot{
			Symbol:    types.Symbol{EventID: eventID, MarketID: marketID, TokenID: token},
			Orders:    tokenOrders,
			Timestamp: timestamp,
		})
	}
	return out
}

// EventIDs returns every currently registered event_id.
func (m *Manager) EventIDs() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.engines))
	for id := range m.engines {
		ids = append(ids, id)
	}
	return ids
}
