// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package statestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronoundb/pronoundb/internal/platform/statestore"
)

type flowState struct {
	CreatedAt time.Time `json:"createdAt"`
}

func newRedisStore(t *testing.T) (*miniredis.Miniredis, *statestore.Redis[flowState]) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, statestore.NewRedis[flowState](client, "oauth:state:")
}

/*
TestRedis_ConsumeOnce verifies GETDEL single-use semantics and key prefixing.
*/
func TestRedis_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	server, store := newRedisStore(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Put(ctx, "osu-xyz-link", flowState{CreatedAt: created}, 300*time.Second))
	assert.True(t, server.Exists("oauth:state:osu-xyz-link"))

	value, found, err := store.Consume(ctx, "osu-xyz-link")
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, created.Equal(value.CreatedAt))

	_, found, err = store.Consume(ctx, "osu-xyz-link")
	require.NoError(t, err)
	assert.False(t, found)
}

/*
TestRedis_Expiry verifies that entries vanish after their TTL.
*/
func TestRedis_Expiry(t *testing.T) {
	ctx := context.Background()
	server, store := newRedisStore(t)

	require.NoError(t, store.Put(ctx, "k", flowState{}, 300*time.Second))

	server.FastForward(299 * time.Second)
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	server.FastForward(2 * time.Second)
	_, found, err = store.Consume(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	evicted, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}

func TestRedis_PutIfAbsent(t *testing.T) {
	ctx := context.Background()
	_, store := newRedisStore(t)

	first := flowState{CreatedAt: time.Unix(100, 0).UTC()}
	second := flowState{CreatedAt: time.Unix(200, 0).UTC()}

	value, err := store.PutIfAbsent(ctx, "k", first, time.Minute)
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(value.CreatedAt))

	value, err = store.PutIfAbsent(ctx, "k", second, time.Minute)
	require.NoError(t, err)
	assert.True(t, first.CreatedAt.Equal(value.CreatedAt))
}

// expireOnGet simulates the entry expiring right before the first GET and a
// concurrent writer storing replacement right after it.
type expireOnGet struct {
	server      *miniredis.Miniredis
	key         string
	replacement string
	fired       bool
}

func (hook *expireOnGet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (hook *expireOnGet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (hook *expireOnGet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() != "get" || hook.fired {
			return next(ctx, cmd)
		}
		hook.fired = true
		hook.server.Del(hook.key)
		err := next(ctx, cmd)
		_ = hook.server.Set(hook.key, hook.replacement)
		return err
	}
}

/*
TestRedis_PutIfAbsent_ExpiredBetweenCommands verifies that a value stored by
another caller after the original entry expired is returned, never overwritten.
*/
func TestRedis_PutIfAbsent_ExpiredBetweenCommands(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := statestore.NewRedis[flowState](client, "csrf:")

	original := flowState{CreatedAt: time.Unix(100, 0).UTC()}
	mine := flowState{CreatedAt: time.Unix(200, 0).UTC()}
	theirs := time.Unix(300, 0).UTC()

	_, err := store.PutIfAbsent(ctx, "session", original, time.Minute)
	require.NoError(t, err)

	client.AddHook(&expireOnGet{
		server:      server,
		key:         "csrf:session",
		replacement: `{"createdAt":"` + theirs.Format(time.RFC3339) + `"}`,
	})

	value, err := store.PutIfAbsent(ctx, "session", mine, time.Minute)
	require.NoError(t, err)
	assert.True(t, theirs.Equal(value.CreatedAt))

	stored, found, err := store.Get(ctx, "session")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, theirs.Equal(stored.CreatedAt))
}

func TestRedis_CorruptValue(t *testing.T) {
	ctx := context.Background()
	server, store := newRedisStore(t)

	require.NoError(t, server.Set("oauth:state:bad", "{not json"))

	_, _, err := store.Get(ctx, "bad")
	assert.Error(t, err)
}

func TestRedis_ConnectionError(t *testing.T) {
	ctx := context.Background()
	server, store := newRedisStore(t)
	server.Close()

	_, _, err := store.Consume(ctx, "k")
	assert.Error(t, err)
}
