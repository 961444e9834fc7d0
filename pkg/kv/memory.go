package kv

import (
	"context"
	"sync"
	"time"
)

// memoryEntry stores a value and its expiry. A zero expiresAt means the
// entry never expires.
type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-memory [Store] implementation. It is used as the test
// double for the Redis-backed store and as the backing store for
// single-node development setups where revocation does not need to be
// shared across instances.
//
// Expired entries are evicted lazily on access and opportunistically on
// writes. Memory is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	// now is swappable in tests to exercise expiry without sleeping.
	now func() time.Time
}

// Compile-time assertion that Memory implements Store.
var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the value stored at key and whether it exists.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.liveLocked(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores value at key with the given TTL.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{value: value, expiresAt: m.deadline(ttl)}
	return nil
}

// SetNX stores value at key only if no live entry exists.
func (m *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.liveLocked(key); ok {
		return false, nil
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: m.deadline(ttl)}
	return true, nil
}

// Del removes the key.
func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Exists reports whether a live entry is stored at key.
func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.liveLocked(key)
	return ok, nil
}

// liveLocked returns the entry at key, evicting it first if expired.
// Caller must hold the mutex.
func (m *Memory) liveLocked(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

// deadline converts a TTL to an absolute expiry. Zero TTL means no expiry.
func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}
