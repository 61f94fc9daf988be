package userfeed

import "sync"

// Sequencer assigns a strictly increasing update_id per tracking key,
// mirroring internal/market's per-market update_id counter but scoped
// to this service's own output ordering — user_event_stream's
// delivery-dedup contract only needs monotonicity, not continuity
// with the engine's own counters.
type Sequencer struct {
	mu  sync.Mutex
	seq map[string]uint64
}

// NewSequencer builds an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{seq: make(map[string]uint64)}
}

// Next returns the next update_id for trackingKey, starting at 1.
func (s *Sequencer) Next(trackingKey string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[trackingKey]++
	return s.seq[trackingKey]
}
