// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package statestore

import (
	"context"
	"sync"
	"time"
)

type timedEntry[V any] struct {
	value     V
	expiresAt time.Time
	timer     *time.Timer
}

// Memory is a mutex-guarded in-process [Store].
//
// Every entry owns a timer firing at exactly its TTL, so abandoned entries are
// evicted without any later access. Reads also check the deadline, which
// covers the window between expiry and the timer goroutine taking the lock.
type Memory[V any] struct {
	mu      sync.Mutex
	entries map[string]*timedEntry[V]
	now     func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]*timedEntry[V]),
		now:     time.Now,
	}
}

// WithClock replaces the clock used for deadline checks. Eviction timers keep
// running on real time.
func (store *Memory[V]) WithClock(now func() time.Time) *Memory[V] {
	store.now = now
	return store
}

func (store *Memory[V]) Put(_ context.Context, key string, value V, ttl time.Duration) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.putLocked(key, value, ttl)
	return nil
}

func (store *Memory[V]) PutIfAbsent(_ context.Context, key string, value V, ttl time.Duration) (V, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if entry, ok := store.liveLocked(key); ok {
		return entry.value, nil
	}

	store.putLocked(key, value, ttl)
	return value, nil
}

func (store *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.liveLocked(key)
	if !ok {
		var zero V
		return zero, false, nil
	}
	return entry.value, true, nil
}

func (store *Memory[V]) Consume(_ context.Context, key string) (V, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.liveLocked(key)
	if !ok {
		var zero V
		return zero, false, nil
	}

	store.removeLocked(key, entry)
	return entry.value, true, nil
}

func (store *Memory[V]) Sweep(_ context.Context) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	now := store.now()
	evicted := 0
	for key, entry := range store.entries {
		if !now.Before(entry.expiresAt) {
			store.removeLocked(key, entry)
			evicted++
		}
	}
	return evicted, nil
}

// Len returns the number of entries currently held, expired or not.
func (store *Memory[V]) Len() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries)
}

// Close stops every pending eviction timer and drops all entries.
func (store *Memory[V]) Close() {
	store.mu.Lock()
	defer store.mu.Unlock()

	for key, entry := range store.entries {
		store.removeLocked(key, entry)
	}
}

func (store *Memory[V]) putLocked(key string, value V, ttl time.Duration) {
	if previous, ok := store.entries[key]; ok {
		store.removeLocked(key, previous)
	}

	entry := &timedEntry[V]{value: value, expiresAt: store.now().Add(ttl)}
	entry.timer = time.AfterFunc(ttl, func() { store.expire(key, entry) })
	store.entries[key] = entry
}

// liveLocked returns the entry under key if it has not expired yet.
// An expired entry is evicted on the spot.
func (store *Memory[V]) liveLocked(key string) (*timedEntry[V], bool) {
	entry, ok := store.entries[key]
	if !ok {
		return nil, false
	}
	if !store.now().Before(entry.expiresAt) {
		store.removeLocked(key, entry)
		return nil, false
	}
	return entry, true
}

func (store *Memory[V]) removeLocked(key string, entry *timedEntry[V]) {
	entry.timer.Stop()
	delete(store.entries, key)
}

// expire is the timer callback. The entry pointer guards against evicting a
// newer value stored under the same key.
func (store *Memory[V]) expire(key string, entry *timedEntry[V]) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if current, ok := store.entries[key]; ok && current == entry {
		delete(store.entries, key)
	}
}
