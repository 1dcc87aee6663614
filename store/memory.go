package store

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryCounter struct {
	count   int64
	resetAt time.Time
}

type memorySet struct {
	members   map[string]struct{}
	expiresAt time.Time
}

// Memory is an in-process Store. Expired entries are dropped lazily when touched;
// there is no background sweep.
type Memory struct {
	now func() time.Time

	mu       sync.Mutex
	values   map[string]memoryEntry
	counters map[string]memoryCounter
	sets     map[string]*memorySet
}

// NewMemory creates an empty in-memory store. A nil clock defaults to time.Now.
func NewMemory(clock func() time.Time) *Memory {
	if clock == nil {
		clock = time.Now
	}
	return &Memory{
		now:      clock,
		values:   make(map[string]memoryEntry),
		counters: make(map[string]memoryCounter),
		sets:     make(map[string]*memorySet),
	}
}

func expired(deadline, now time.Time) bool {
	return !deadline.IsZero() && !now.Before(deadline)
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

// lookup must be called with mu held.
func (m *Memory) lookup(key string) (memoryEntry, bool) {
	e, ok := m.values[key]
	if !ok {
		return memoryEntry{}, false
	}
	if expired(e.expiresAt, m.now()) {
		delete(m.values, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(e.value), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = memoryEntry{value: bytes.Clone(value), expiresAt: deadline(m.now(), ttl)}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.values, k)
		delete(m.counters, k)
		delete(m.sets, k)
	}
	return nil
}

func (m *Memory) Take(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.values, key)
	return e.value, nil
}

func (m *Memory) CompareAndSwap(_ context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || !bytes.Equal(e.value, expected) {
		return false, nil
	}
	m.values[key] = memoryEntry{value: bytes.Clone(value), expiresAt: deadline(m.now(), ttl)}
	return true, nil
}

func (m *Memory) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || now.After(c.resetAt) {
		c = memoryCounter{resetAt: now.Add(window)}
	}
	c.count++
	m.counters[key] = c

	return Counter{Count: c.count, ResetAt: c.resetAt}, nil
}

func (m *Memory) AddMember(_ context.Context, key, member string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	d := deadline(m.now(), ttl)
	s := m.liveSet(key)
	if s == nil {
		s = &memorySet{members: make(map[string]struct{}), expiresAt: d}
		m.sets[key] = s
	} else if !s.expiresAt.IsZero() && (d.IsZero() || d.After(s.expiresAt)) {
		s.expiresAt = d
	}
	s.members[member] = struct{}{}
	return nil
}

func (m *Memory) RemoveMember(_ context.Context, key, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSet(key)
	if s == nil {
		return nil
	}
	delete(s.members, member)
	if len(s.members) == 0 {
		delete(m.sets, key)
	}
	return nil
}

func (m *Memory) Members(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.liveSet(key)
	if s == nil {
		return nil, nil
	}
	out := make([]string, 0, len(s.members))
	for member := range s.members {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

// liveSet must be called with mu held.
func (m *Memory) liveSet(key string) *memorySet {
	s, ok := m.sets[key]
	if !ok {
		return nil
	}
	if expired(s.expiresAt, m.now()) {
		delete(m.sets, key)
		return nil
	}
	return s
}

// Len returns the number of live plain values. Intended for tests and diagnostics.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k := range m.values {
		if _, ok := m.lookup(k); ok {
			n++
		}
	}
	return n
}
