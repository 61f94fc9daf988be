// Package store is the order-state store (L5): it consumes
// store_stream, maintains the authoritative in-memory map of resting
// orders and per-market update_id counters, and persists it via
// periodic snapshots so the match engine's own boot (L8) and this
// service can both recover from a crash. Boot sequence is load
// snapshot → trim stream → replay → periodic save, run on a
// tomb.Tomb-supervised goroutine.
package store

import (
	"sync"
	"time"

	"predictex/internal/metrics"
	"predictex/internal/snapshot"
	"predictex/internal/types"
)

// OrderStorage is the in-memory projection store_stream events are
// applied to. Each operation is idempotent by construction — Create,
// Update, Fill, and Cancel all key off order_id and are monotone, so
// replaying a duplicate (at-least-once delivery) is harmless.
type OrderStorage struct {
	mu            sync.RWMutex
	orders        map[string]types.Order // order_id -> resting order
	eventMeta     map[int64]*eventState
	lastMessageID string
	metrics       *metrics.Collector
}

type eventState struct {
	markets map[int16]*marketState
	endDate *time.Time
}

type marketState struct {
	outcomes []string
	tokenIDs []string
	updateID uint64
}

// NewOrderStorage builds an empty OrderStorage. m may be nil in tests.
func NewOrderStorage(m *metrics.Collector) *OrderStorage {
	return &OrderStorage{
		orders:    make(map[string]types.Order),
		eventMeta: make(map[int64]*eventState),
		metrics:   m,
	}
}

// Apply folds one OrderChangeEvent into memory and advances the
// replay cursor to msgID. OrderUpdated for an unknown order id inserts
// it, like OrderCreated; OrderFilled/OrderCancelled for an unknown
// order id is a silent no-op — a consistency violation, not a crash.
func (s *OrderStorage) Apply(event types.OrderChangeEvent, msgID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event.Kind {
	case types.OrderCreatedKind, types.OrderUpdatedKind:
		if event.Order != nil {
			s.orders[event.Order.OrderID] = *event.Order
		}
	case types.OrderFilledKind, types.OrderCancelledKind:
		delete(s.orders, event.OrderID)
	case types.EventAddedKind:
		if event.EventSpec != nil {
			s.addEvent(*event.EventSpec)
		}
	case types.EventRemovedKind:
		s.removeEvent(event.EventID)
	case types.MarketUpdateIDKind:
		s.setUpdateID(event.EventID, event.MarketID, event.UpdateID)
	}

	s.lastMessageID = msgID
}

func (s *OrderStorage) addEvent(spec types.EventSpec) {
	es := &eventState{markets: make(map[int16]*marketState), endDate: spec.EndDate}
	for _, m := range spec.Markets {
		es.markets[m.MarketID] = &marketState{outcomes: m.Outcomes, tokenIDs: m.TokenIDs}
	}
	s.eventMeta[spec.EventID] = es
}

func (s *OrderStorage) removeEvent(eventID int64) {
	delete(s.eventMeta, eventID)
	for id, o := range s.orders {
		if o.Symbol.EventID == eventID {
			delete(s.orders, id)
		}
	}
}

func (s *OrderStorage) setUpdateID(eventID int64, marketID int16, updateID uint64) {
	es, ok := s.eventMeta[eventID]
	if !ok {
		return
	}
	ms, ok := es.markets[marketID]
	if !ok {
		return
	}
	ms.updateID = updateID
}

// LastMessageID returns the replay cursor as of the most recently
// applied event.
func (s *OrderStorage) LastMessageID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastMessageID
}

// OrderCount reports the number of currently-resting orders, for
// tests and health checks.
func (s *OrderStorage) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// Order looks up a resting order by id.
func (s *OrderStorage) Order(orderID string) (types.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	return o, ok
}

// Snapshot renders the current in-memory state as a persistable
// snapshot.Snapshot, grouping resting orders by symbol.
func (s *OrderStorage) Snapshot() snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().Unix()
	bySymbol := make(map[types.Symbol][]types.Order)
	for _, o := range s.orders {
		bySymbol[o.Symbol] = append(bySymbol[o.Symbol], o)
	}

	snap := snapshot.New()
	snap.Timestamp = now
	snap.LastMessageID = s.lastMessageID
	for sym, orders := range bySymbol {
		snap.Snapshots = append(snap.Snapshots, snapshot.SymbolSnapshot{
			Symbol: sym, Orders: orders, Timestamp: now,
		})
	}
	for eventID, es := range s.eventMeta {
		markets := make(map[string]snapshot.MarketSnapshot, len(es.markets))
		for marketID, ms := range es.markets {
			markets[itoa(int64(marketID))] = snapshot.MarketSnapshot{
				MarketID: marketID, Outcomes: ms.outcomes, TokenIDs: ms.tokenIDs, UpdateID: ms.updateID,
			}
		}
		snap.Events[itoa(eventID)] = snapshot.EventSnapshot{Markets: markets, EndDate: es.endDate}
	}
	return snap
}

// LoadSnapshot reads path and restores it into memory, returning the
// last processed message id so the caller's consumer can resume the
// stream exactly after it.
func (s *OrderStorage) LoadSnapshot(path string) (string, error) {
	snap, err := snapshot.Load(path)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders = make(map[string]types.Order)
	for _, ss := range snap.Snapshots {
		for _, o := range ss.Orders {
			s.orders[o.OrderID] = o
		}
	}

	s.eventMeta = make(map[int64]*eventState)
	for eventIDStr, es := range snap.Events {
		eventID := atoi(eventIDStr)
		state := &eventState{markets: make(map[int16]*marketState), endDate: es.EndDate}
		for marketIDStr, ms := range es.Markets {
			state.markets[int16(atoi(marketIDStr))] = &marketState{
				outcomes: ms.Outcomes, tokenIDs: ms.TokenIDs, updateID: ms.UpdateID,
			}
		}
		s.eventMeta[eventID] = state
	}

	s.lastMessageID = snap.LastMessageID
	return s.lastMessageID, nil
}

// SaveSnapshot atomically writes the current state to path.
func (s *OrderStorage) SaveSnapshot(path string) error {
	err := snapshot.WriteAtomic(path, s.Snapshot())
	if s.metrics != nil {
		if err != nil {
			s.metrics.SnapshotWriteErrors.Inc()
		} else {
			s.metrics.SnapshotWritesTotal.Inc()
		}
	}
	return err
}
