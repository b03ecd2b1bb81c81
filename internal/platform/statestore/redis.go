// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// putIfAbsentAttempts bounds the SETNX/GET rounds of PutIfAbsent.
const putIfAbsentAttempts = 3

var errContended = errors.New("redis_state_put_if_absent_contended")

// Redis is a [Store] backed by Redis keys with native expiry.
// Values are JSON encoded under prefix+key.
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis-backed store namespaced by prefix.
func NewRedis[V any](client redis.UniversalClient, prefix string) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix}
}

func (store *Redis[V]) Put(ctx context.Context, key string, value V, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis_state_encode_failed: %w", err)
	}

	if err := store.client.Set(ctx, store.prefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis_state_put_failed: %w", err)
	}
	return nil
}

func (store *Redis[V]) PutIfAbsent(ctx context.Context, key string, value V, ttl time.Duration) (V, error) {
	var zero V

	payload, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("redis_state_encode_failed: %w", err)
	}

	for range putIfAbsentAttempts {
		stored, err := store.client.SetNX(ctx, store.prefix+key, payload, ttl).Result()
		if err != nil {
			return zero, fmt.Errorf("redis_state_put_if_absent_failed: %w", err)
		}
		if stored {
			return value, nil
		}

		existing, found, err := store.Get(ctx, key)
		if err != nil {
			return zero, err
		}
		if found {
			return existing, nil
		}
		// The existing entry expired between SETNX and GET. Another caller may
		// already have replaced it, so race for the key again.
	}
	return zero, errContended
}

func (store *Redis[V]) Get(ctx context.Context, key string) (V, bool, error) {
	return store.decode(store.client.Get(ctx, store.prefix+key).Bytes())
}

func (store *Redis[V]) Consume(ctx context.Context, key string) (V, bool, error) {
	return store.decode(store.client.GetDel(ctx, store.prefix+key).Bytes())
}

// Sweep is a no-op: Redis expires keys on its own.
func (store *Redis[V]) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (store *Redis[V]) decode(payload []byte, err error) (V, bool, error) {
	var value V

	if errors.Is(err, redis.Nil) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("redis_state_read_failed: %w", err)
	}

	if err := json.Unmarshal(payload, &value); err != nil {
		return value, false, fmt.Errorf("redis_state_decode_failed: %w", err)
	}
	return value, true, nil
}
