// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth resolves browser and extension sessions and protects
state-changing calls with CSRF tokens.

# Sessions

A session is an HS256 token carrying the user id, sent back as the 'token'
cookie or an 'Authorization: Bearer' header. Sessions are stateless: logging
out only clears the cookie.

# CSRF

A CSRF token is 64 random bytes bound to the raw session token. It is issued
once per session window and consumed by the first validation, successful or not.
*/
package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/middleware"
	"github.com/pronoundb/pronoundb/internal/platform/sec"
	"github.com/pronoundb/pronoundb/internal/platform/statestore"
	"github.com/pronoundb/pronoundb/internal/platform/validate"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

// ErrNoSession is returned by CSRF operations on a request without a valid session.
var ErrNoSession = apperr.Unauthorized("A valid session is required")

// # Contracts

// UserFinder resolves a user id. account.Service satisfies it.
type UserFinder interface {
	FindUser(context context.Context, id string) (*account.User, error)
}

// # Service

// Service implements session and CSRF use cases.
type Service struct {
	tokens *sec.SessionTokens
	csrf   statestore.Store[string]
	users  UserFinder
	secure bool
	logger *slog.Logger
}

// NewService constructs a new [Service]. secure marks cookies as Secure and
// should be true in production.
func NewService(tokens *sec.SessionTokens, csrf statestore.Store[string], users UserFinder, secure bool, logger *slog.Logger) *Service {
	return &Service{
		tokens: tokens,
		csrf:   csrf,
		users:  users,
		secure: secure,
		logger: logger,
	}
}

// GenerateToken issues a session token for userID.
func (service *Service) GenerateToken(userID string) (string, error) {
	return service.tokens.GenerateToken(userID)
}

/*
Authenticate resolves the user behind the session carried by a request.

Description: In lax mode an expired but otherwise valid token is accepted.
Any verification failure yields an anonymous result; the token itself is never
cleared, so a strict failure here does not log the user out elsewhere.

Parameters:
  - context: context.Context
  - request: *http.Request
  - lax: bool

Returns:
  - *account.User: The user, or nil when anonymous or deleted
  - error: Storage failures only
*/
func (service *Service) Authenticate(context context.Context, request *http.Request, lax bool) (*account.User, error) {
	token := middleware.SessionToken(request)
	if token == "" {
		return nil, nil
	}

	var claims *sec.SessionClaims
	var err error
	if lax {
		claims, err = service.tokens.VerifyTokenLax(token)
	} else {
		claims, err = service.tokens.VerifyToken(token)
	}
	if err != nil {
		return nil, nil
	}

	// Tokens issued before user ids became UUIDs still verify but name no row.
	if !validate.IsUUID(claims.UserID) {
		return nil, nil
	}

	user, err := service.users.FindUser(context, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_authenticate_failed: %w", err)
	}
	return user, nil
}

// sessionToken returns the raw token of a strictly valid session, or "".
func (service *Service) sessionToken(request *http.Request) string {
	token := middleware.SessionToken(request)
	if token == "" {
		return ""
	}
	if _, err := service.tokens.VerifyToken(token); err != nil {
		return ""
	}
	return token
}

// # CSRF

/*
CreateCsrf returns the CSRF token of the request's session, issuing one when
none is pending.

Returns:
  - string: Base64url token (no padding)
  - error: ErrNoSession or store failures
*/
func (service *Service) CreateCsrf(context context.Context, request *http.Request) (string, error) {
	session := service.sessionToken(request)
	if session == "" {
		return "", ErrNoSession
	}

	fresh, err := sec.RandomBytes(constants.CsrfTokenBytes)
	if err != nil {
		return "", fmt.Errorf("auth_service_csrf_random_failed: %w", err)
	}

	stored, err := service.csrf.PutIfAbsent(context, session, base64.RawURLEncoding.EncodeToString(fresh), constants.CsrfTTL)
	if err != nil {
		return "", fmt.Errorf("auth_service_csrf_store_failed: %w", err)
	}
	return stored, nil
}

/*
ValidateCsrf checks a supplied CSRF token against the one pending for the
request's session. The pending token is consumed whatever the outcome.

Returns:
  - bool: Whether the token matched
  - error: ErrNoSession or store failures
*/
func (service *Service) ValidateCsrf(context context.Context, request *http.Request, supplied string) (bool, error) {
	session := service.sessionToken(request)
	if session == "" {
		return false, ErrNoSession
	}

	expected, ok, err := service.csrf.Consume(context, session)
	if err != nil {
		return false, fmt.Errorf("auth_service_csrf_consume_failed: %w", err)
	}
	if !ok {
		return false, nil
	}

	want, err := base64.RawURLEncoding.DecodeString(expected)
	if err != nil {
		return false, nil
	}
	got, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(supplied, "="))
	if err != nil {
		return false, nil
	}

	return sec.Equal(want, got), nil
}

// # Cookies

// SetCookie stores a session token in the browser.
func (service *Service) SetCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(constants.SessionTTL / time.Second),
		Secure:   service.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie removes the session cookie.
func (service *Service) ClearCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   service.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SecureCookies reports whether cookies are issued with the Secure flag.
func (service *Service) SecureCookies() bool {
	return service.secure
}
