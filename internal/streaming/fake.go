package streaming

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Client for tests: every package that consumes
// streaming.Client (internal/store, internal/depth, internal/userfeed,
// and this package's own tests) exercises the whole pipeline against
// it without a live Redis.
type Fake struct {
	mu      sync.Mutex
	streams map[string]*fakeStream
	seq     int64
}

type fakeStream struct {
	entries []Message
	groups  map[string]*fakeGroup
}

type fakeGroup struct {
	lastDelivered string
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{streams: make(map[string]*fakeStream)}
}

func (f *Fake) stream(name string) *fakeStream {
	s, ok := f.streams[name]
	if !ok {
		s = &fakeStream{groups: make(map[string]*fakeGroup)}
		f.streams[name] = s
	}
	return s
}

func (f *Fake) nextID() string {
	f.seq++
	return fmt.Sprintf("%d-0", f.seq)
}

func (f *Fake) Append(_ context.Context, stream string, values map[string]string, maxLen int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID()
	s := f.stream(stream)
	s.entries = append(s.entries, Message{ID: id, Values: values})
	if maxLen > 0 && int64(len(s.entries)) > maxLen {
		s.entries = s.entries[int64(len(s.entries))-maxLen:]
	}
	return id, nil
}

func (f *Fake) Read(_ context.Context, stream, afterID string, count int64, _ time.Duration) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stream(stream)
	out := entriesAfter(s.entries, afterID, count)
	if len(out) == 0 {
		return nil, ErrTimeout
	}
	return out, nil
}

func (f *Fake) ReadGroup(_ context.Context, group, _ string, stream, afterID string, count int64, _ time.Duration) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stream(stream)
	g, ok := s.groups[group]
	if !ok {
		g = &fakeGroup{lastDelivered: "0-0"}
		s.groups[group] = g
	}

	cursor := afterID
	if afterID == ">" {
		cursor = g.lastDelivered
	}
	out := entriesAfter(s.entries, cursor, count)
	if len(out) == 0 {
		return nil, ErrTimeout
	}
	if afterID == ">" {
		g.lastDelivered = out[len(out)-1].ID
	}
	return out, nil
}

func (f *Fake) EnsureGroup(_ context.Context, stream, group, start string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stream(stream)
	if _, ok := s.groups[group]; ok {
		return nil
	}
	cursor := start
	if start == "$" && len(s.entries) > 0 {
		cursor = s.entries[len(s.entries)-1].ID
	} else if start == "$" {
		cursor = "0-0"
	}
	s.groups[group] = &fakeGroup{lastDelivered: cursor}
	return nil
}

func (f *Fake) Ack(_ context.Context, _, _ string, _ ...string) error {
	return nil
}

func (f *Fake) TrimMinID(_ context.Context, stream, minID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := f.stream(stream)
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if compareIDs(e.ID, minID) >= 0 {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (f *Fake) Delete(_ context.Context, stream string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	toDelete := make(map[string]bool, len(ids))
	for _, id := range ids {
		toDelete[id] = true
	}
	s := f.stream(stream)
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if !toDelete[e.ID] {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

// Len returns the current entry count of stream, for test assertions.
func (f *Fake) Len(stream string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stream(stream).entries)
}

func entriesAfter(entries []Message, afterID string, count int64) []Message {
	idx := sort.Search(len(entries), func(i int) bool {
		return compareIDs(entries[i].ID, afterID) > 0
	})
	if idx >= len(entries) {
		return nil
	}
	end := len(entries)
	if count > 0 && idx+int(count) < end {
		end = idx + int(count)
	}
	out := make([]Message, end-idx)
	copy(out, entries[idx:end])
	return out
}

// compareIDs orders Redis Stream ids ("<ms>-<seq>") numerically.
func compareIDs(a, b string) int {
	am, as := splitID(a)
	bm, bs := splitID(b)
	if am != bm {
		if am < bm {
			return -1
		}
		return 1
	}
	if as != bs {
		if as < bs {
			return -1
		}
		return 1
	}
	return 0
}

func splitID(id string) (int64, int64) {
	parts := strings.SplitN(id, "-", 2)
	ms, _ := strconv.ParseInt(parts[0], 10, 64)
	var seq int64
	if len(parts) > 1 {
		seq, _ = strconv.ParseInt(parts[1], 10, 64)
	}
	return ms, seq
}
