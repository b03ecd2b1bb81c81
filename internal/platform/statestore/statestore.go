// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package statestore holds short-lived, single-use values shared across requests:
OAuth state, PKCE verifiers and CSRF tokens.

# Guarantees

  - An entry is unreachable once its TTL has elapsed, whether or not anyone
    asks for it again.
  - [Store.Consume] is an atomic delete-and-return: of two concurrent
    consumers of the same key, exactly one observes the value.

Two implementations are provided: [Memory] for a single process and [Redis]
for deployments running several instances.
*/
package statestore

import (
	"context"
	"time"
)

// Store is a TTL key-value registry.
type Store[V any] interface {
	// Put stores value under key, replacing any previous entry.
	Put(ctx context.Context, key string, value V, ttl time.Duration) error

	// PutIfAbsent stores value unless a live entry already exists, and
	// returns the value held by the store afterwards.
	PutIfAbsent(ctx context.Context, key string, value V, ttl time.Duration) (V, error)

	// Get returns the live value under key without consuming it.
	Get(ctx context.Context, key string) (V, bool, error)

	// Consume removes the entry under key and returns it.
	Consume(ctx context.Context, key string) (V, bool, error)

	// Sweep evicts expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
}
