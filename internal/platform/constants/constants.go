// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package constants provides centralized, immutable values for the PronounDB API.

Categories:

  - Server Timing: Read/Write/Idle timeouts for the HTTP server.
  - Rate Limiting: Burst capacities and IP tracking TTLs.
  - Sessions: Cookie names and lifetimes for session, CSRF and OAuth state.
  - Caching: Cache-Control lifetimes for the public lookup API.
*/
package constants

import "time"

// # Metadata

const (
	AppName    = "pronoundb-api"
	AppVersion = "2.0.0"

	// UserAgent identifies the service against third-party identity providers.
	UserAgent = "PronounDB Authentication Agent/2.0 (+https://pronoundb.org)"
)

// # Server Timing

const (
	DefaultReadTimeout       = 5 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultReadHeaderTimeout = 2 * time.Second

	// GlobalRequestTimeout is the deadline for the entire request lifecycle.
	GlobalRequestTimeout = 30 * time.Second

	// ShutdownTimeout is how long we wait for in-flight requests to complete during shutdown.
	ShutdownTimeout = 30 * time.Second

	// UpstreamTimeout bounds every call made to a third-party identity provider.
	UpstreamTimeout = 10 * time.Second
)

// # Rate Limiting

const (
	DefaultRateLimitRPS      = 50.0
	DefaultRateLimitBurst    = 100
	RateLimitCleanupInterval = 1 * time.Minute
	RateLimitClientTTL       = 3 * time.Minute
)

// # Sessions

const (
	// SessionCookieName holds the signed session token.
	SessionCookieName = "token"

	// SessionTTL is the lifetime embedded in every session token.
	SessionTTL = 72 * time.Hour

	// CsrfTTL is how long an issued CSRF token stays valid if unused.
	CsrfTTL = 30 * time.Minute

	// CsrfTokenBytes is the amount of entropy in a CSRF token.
	CsrfTokenBytes = 64

	// CsrfHeader carries the CSRF token on state-changing API calls.
	CsrfHeader = "X-CSRF-Token"
)

// # OAuth

const (
	// OAuthStateTTL is the lifetime of an in-flight authorization attempt.
	OAuthStateTTL = 300 * time.Second

	OAuthStateCookieName  = "state"
	OAuthIntentCookieName = "intent"
)

// # Flash Messages

const (
	FlashCookieName = "flash"
	FlashCookieTTL  = 30 * time.Second
)

// # Public API

const (
	// LookupMaxIDs is the upper bound of distinct ids per lookup call.
	LookupMaxIDs = 50

	// LookupCacheFull is the cache lifetime when every requested id resolved.
	LookupCacheFull = 300 * time.Second

	// LookupCachePartial is the cache lifetime when at least one id was missing.
	LookupCachePartial = 30 * time.Second

	// StatsCacheTTL is the cache lifetime of the aggregated statistics.
	StatsCacheTTL = time.Hour

	// CORSMaxAge is the preflight cache lifetime advertised to browsers.
	CORSMaxAge = "600"

	// LegacyCORSMaxAge is the preflight lifetime of the bulk and self v1 endpoints.
	LegacyCORSMaxAge = "7200"

	// SourceHeader lets API consumers identify themselves.
	SourceHeader = "x-pronoundb-source"
)

// # HTTP Headers

const (
	HeaderXRequestID    = "X-Request-ID"
	HeaderXRealIP       = "X-Real-IP"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderOrigin        = "Origin"
	HeaderAuthorization = "Authorization"
	HeaderCacheControl  = "Cache-Control"
)

// # JSON Field Identifiers

const (
	FieldError      = "error"
	FieldCode       = "code"
	FieldMessage    = "message"
	FieldStatusCode = "statusCode"
	FieldStatus     = "status"
)

// # Redis Prefixes

const (
	RedisPrefixOAuthState = "oauth:state:"
	RedisPrefixOAuthPKCE  = "oauth:pkce:"
	RedisPrefixCsrf       = "auth:csrf:"
	RedisPrefixStats      = "stats:"
)
