package store

import (
	"context"
	"sort"
	"sync"

	"kingdoms-lite/engine"
	"kingdoms-lite/replay"
)

// MemoryStore keeps tapes in process memory. Used in tests and for running
// without a database.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]engine.Event
	tapes  map[string]*replay.Tape
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]engine.Event),
		tapes:  make(map[string]*replay.Tape),
	}
}

func (s *MemoryStore) AppendEvent(_ context.Context, sessionID string, ev engine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[sessionID] = append(s.events[sessionID], ev)
	return nil
}

func (s *MemoryStore) SaveTape(_ context.Context, tape *replay.Tape) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tape
	cp.Events = append([]engine.Event(nil), tape.Events...)
	cp.Players = append([]string(nil), tape.Players...)
	s.tapes[tape.SessionID] = &cp
	return nil
}

func (s *MemoryStore) LoadTape(_ context.Context, sessionID string) (*replay.Tape, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tape, ok := s.tapes[sessionID]
	if !ok {
		return nil, ErrTapeNotFound
	}
	cp := *tape
	cp.Events = append([]engine.Event(nil), tape.Events...)
	cp.Players = append([]string(nil), tape.Players...)
	return &cp, nil
}

func (s *MemoryStore) ListTapes(_ context.Context, limit int) ([]TapeInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TapeInfo, 0, len(s.tapes))
	for _, tape := range s.tapes {
		out = append(out, TapeInfo{
			SessionID: tape.SessionID,
			Mode:      tape.Mode,
			SeatCount: tape.SeatCount,
			SealedAt:  tape.SealedAtMs,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SealedAt > out[j].SealedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EventCount reports appended live events for a session; test helper.
func (s *MemoryStore) EventCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[sessionID])
}

func (s *MemoryStore) Close() error { return nil }
