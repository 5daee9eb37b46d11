package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// Store is the sliding-window ledger behind a Limiter. Implementations
// track request timestamps per key, prune entries that fell out of the
// window, and admit or reject new requests against a limit.
type Store interface {
	// Increment prunes records older than window for key, then records the
	// request if fewer than limit requests remain in the window. It returns
	// the in-window request count (including this request when recorded),
	// the timestamp of the oldest in-window record, and whether the request
	// was admitted.
	Increment(key string, now time.Time, window time.Duration, limit int) (count int, oldest time.Time, recorded bool)

	// Reset drops every record whose key starts with prefix.
	Reset(prefix string)

	// Sweep drops records that expired before now across all keys.
	Sweep(now time.Time)
}

type windowEntries struct {
	times  []time.Time
	window time.Duration
}

// MemoryStore keeps per-key request timestamps in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[string]*windowEntries
}

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]*windowEntries)}
}

// Increment implements Store.
func (s *MemoryStore) Increment(key string, now time.Time, window time.Duration, limit int) (int, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.keys[key]
	if e == nil {
		e = &windowEntries{}
		s.keys[key] = e
	}
	e.window = window

	cutoff := now.Add(-window)
	kept := e.times[:0]
	for _, t := range e.times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	e.times = kept

	if len(e.times) >= limit {
		return len(e.times), e.times[0], false
	}

	e.times = append(e.times, now)
	return len(e.times), e.times[0], true
}

// Reset implements Store.
func (s *MemoryStore) Reset(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.keys {
		if strings.HasPrefix(key, prefix) {
			delete(s.keys, key)
		}
	}
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.keys {
		cutoff := now.Add(-e.window)
		kept := e.times[:0]
		for _, t := range e.times {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		e.times = kept
		if len(e.times) == 0 {
			delete(s.keys, key)
		}
	}
}
