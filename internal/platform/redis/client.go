// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package redis connects the shared backend of the state store.

PronounDB keeps no durable data in Redis. When REDIS_URL is configured it holds
OAuth state, PKCE verifiers, CSRF tokens and the statistics cache so several
API instances can serve the same flows. Entries are single-use and short lived,
so the pool stays small and timeouts are tight: a slow Redis must fail an OAuth
callback quickly rather than hold the request.
*/
package redis

import (
	stdctx "context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	poolSize     = 8
	minIdleConns = 1
	dialTimeout  = 2 * time.Second
	readTimeout  = time.Second
	writeTimeout = time.Second
	pingTimeout  = 2 * time.Second

	// capabilityKey is never written. It only exists to issue a harmless GETDEL.
	capabilityKey = "pronoundb:capability-check"
)

// ErrGetDelUnsupported is returned for servers older than Redis 6.2. Consuming
// a state entry relies on GETDEL being a single atomic command.
var ErrGetDelUnsupported = errors.New("redis: server does not support GETDEL (Redis 6.2+ required)")

/*
NewClient parses a Redis URL and returns a client ready to back the state store.

Description: Besides the initial ping, the server must accept GETDEL; a
GET followed by DEL would let two callbacks consume the same OAuth state.

Parameters:
  - context: Context for the connection checks.
  - redisURL: Redis connection URL (redis:// or rediss://).
  - logger: Structured logger for connection events.
*/
func NewClient(context stdctx.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}

	options.PoolSize = poolSize
	options.MinIdleConns = minIdleConns
	options.DialTimeout = dialTimeout
	options.ReadTimeout = readTimeout
	options.WriteTimeout = writeTimeout

	client := redis.NewClient(options)

	if err := Ping(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := checkGetDel(context, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	logger.Info("redis_state_backend_connected",
		slog.String("addr", options.Addr),
		slog.Int("db", options.DB),
		slog.Int("pool_size", options.PoolSize),
	)

	return client, nil
}

// Ping verifies that the Redis client is healthy.
func Ping(context stdctx.Context, client redis.UniversalClient) error {
	pingCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis: ping failed: %w", err)
	}
	return nil
}

func checkGetDel(context stdctx.Context, client redis.UniversalClient) error {
	checkCtx, cancel := stdctx.WithTimeout(context, pingTimeout)
	defer cancel()

	err := client.GetDel(checkCtx, capabilityKey).Err()
	switch {
	case err == nil, errors.Is(err, redis.Nil):
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrGetDelUnsupported, err)
	}
}
