// Package cache provides the in-process TTL store shared by the HTTP response
// cache and the metadata service. Entries carry their own TTL so endpoints with
// different expiry policies can share one store instance.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// DefaultMaxEntries bounds the store when no explicit limit is configured.
// Oldest-inserted entries are evicted once the bound is reached.
const DefaultMaxEntries = 2048

type entry struct {
	body       []byte
	insertedAt time.Time
	ttl        time.Duration
}

// Store is a mutex-guarded map from key to (JSON value, insertion time).
// Expired keys and absent keys are indistinguishable to callers.
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	order   []orderItem
	max     int
	now     func() time.Time
}

type orderItem struct {
	key string
	at  time.Time
}

func New(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		entries: make(map[string]entry),
		max:     maxEntries,
		now:     time.Now,
	}
}

// Key derives a deterministic cache key from an operation name and its ordered
// vary values. The operation name stays as a plain prefix so two operations can
// never collide regardless of their vary values.
func Key(op string, vary ...string) string {
	h := sha1.Sum([]byte(strings.Join(vary, "\x1f")))
	return op + ":" + hex.EncodeToString(h[:])
}

// Get unmarshals the entry for key into v. Returns false on miss, expiry, or
// when the stored bytes do not fit v.
func (s *Store) Get(key string, v any) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok && s.now().Sub(e.insertedAt) >= e.ttl {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	if err := json.Unmarshal(e.body, v); err != nil {
		return false
	}
	return true
}

// Put stores v under key with the given ttl. Values that cannot be marshaled
// are dropped silently; Put never fails.
func (s *Store) Put(key string, v any, ttl time.Duration) {
	body, err := json.Marshal(v)
	if err != nil || ttl <= 0 {
		return
	}
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{body: body, insertedAt: now, ttl: ttl}
	s.order = append(s.order, orderItem{key: key, at: now})
	if len(s.entries) > s.max {
		s.prune(now)
	}
	for len(s.entries) > s.max {
		s.evictOldest()
	}
	if len(s.order) > 2*s.max {
		s.compactOrder()
	}
}

// Len reports the number of live (possibly expired but unswept) entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// prune drops expired entries. Caller holds the lock.
func (s *Store) prune(now time.Time) {
	for k, e := range s.entries {
		if now.Sub(e.insertedAt) >= e.ttl {
			delete(s.entries, k)
		}
	}
}

// compactOrder rebuilds the order log from live entries only, dropping items
// whose key was overwritten, expired, or evicted. Keeps the log bounded under
// overwrite-heavy traffic that never triggers eviction. Caller holds the lock.
func (s *Store) compactOrder() {
	live := make([]orderItem, 0, len(s.entries))
	for _, item := range s.order {
		e, ok := s.entries[item.key]
		if ok && e.insertedAt.Equal(item.at) {
			live = append(live, item)
		}
	}
	s.order = live
}

// evictOldest removes the oldest-inserted live entry. Stale order items
// (overwritten or already-deleted keys) are skipped. Caller holds the lock.
func (s *Store) evictOldest() {
	for len(s.order) > 0 {
		item := s.order[0]
		s.order = s.order[1:]
		e, ok := s.entries[item.key]
		if !ok || !e.insertedAt.Equal(item.at) {
			continue
		}
		delete(s.entries, item.key)
		return
	}
	// Order log exhausted; map and log disagree, drop an arbitrary entry.
	for k := range s.entries {
		delete(s.entries, k)
		return
	}
}
