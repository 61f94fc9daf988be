// Package depth is the depth aggregation/pusher service (L6): it
// tails depth_stream keyed by (event_id, market_id), keeping only the
// latest DepthSnapshot per market in memory, and on a fixed interval
// batch-publishes everything to websocket_stream plus the depth/price
// cache hashes.
package depth

import (
	"sync"

	"predictex/internal/types"
)

type depthKey struct {
	eventID  int64
	marketID int16
}

// Storage keeps the latest DepthSnapshot per market — a consumer
// tailing depth_stream only ever needs the newest one, since each
// snapshot is already cumulative.
type Storage struct {
	mu     sync.RWMutex
	depths map[depthKey]types.DepthSnapshot
}

// NewStorage builds an empty Storage.
func NewStorage() *Storage {
	return &Storage{depths: make(map[depthKey]types.DepthSnapshot)}
}

// Update overwrites the stored snapshot for (event_id, market_id).
func (s *Storage) Update(d types.DepthSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.depths[depthKey{d.EventID, d.MarketID}] = d
}

// AllDepths returns every currently-stored snapshot, in no particular
// order — mirrors storage.rs's get_all_depths.
func (s *Storage) AllDepths() []types.DepthSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.DepthSnapshot, 0, len(s.depths))
	for _, d := range s.depths {
		out = append(out, d)
	}
	return out
}

// Len reports how many markets currently have a stored snapshot.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.depths)
}
