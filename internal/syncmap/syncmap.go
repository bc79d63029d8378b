// Package syncmap provides a sharded concurrent map with lazy, at-least-once
// population of missing values.
package syncmap

import (
	"sync"

	"github.com/arloliu/hic/internal/hash"
)

const numShards = 16

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

// Map is a string-keyed concurrent map. Reads take a shard read lock; writes
// lock a single shard. The zero value is not usable; call New.
type Map[V any] struct {
	shards [numShards]shard[V]
}

// New creates an empty map.
func New[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].m = make(map[string]V)
	}

	return m
}

func (m *Map[V]) shard(key string) *shard[V] {
	return &m.shards[hash.Shard(key, numShards)]
}

// Load returns the value stored for key.
func (m *Map[V]) Load(key string) (V, bool) {
	s := m.shard(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()

	return v, ok
}

// Store sets the value for key.
func (m *Map[V]) Store(key string, value V) {
	s := m.shard(key)
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
}

// LoadOrStore returns the existing value for key if present. Otherwise it
// stores and returns value. loaded reports whether the value was present.
func (m *Map[V]) LoadOrStore(key string, value V) (actual V, loaded bool) {
	s := m.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.m[key]; ok {
		return v, true
	}
	s.m[key] = value

	return value, false
}

// LoadOrCompute returns the value for key, computing it with fn when missing.
//
// fn runs outside any lock, so concurrent callers that miss at the same time
// may each run fn; the first stored result wins and is returned to all of
// them. Errors are not cached.
func (m *Map[V]) LoadOrCompute(key string, fn func() (V, error)) (V, error) {
	if v, ok := m.Load(key); ok {
		return v, nil
	}

	v, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}
	actual, _ := m.LoadOrStore(key, v)

	return actual, nil
}

// Delete removes key.
func (m *Map[V]) Delete(key string) {
	s := m.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}

	return n
}

// Range calls fn for every entry until fn returns false. The iteration holds
// one shard read lock at a time; fn must not write to the map.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		for k, v := range s.m {
			if !fn(k, v) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Clear removes every entry.
func (m *Map[V]) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		clear(s.m)
		s.mu.Unlock()
	}
}
