// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/ctxutil"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
	"github.com/pronoundb/pronoundb/internal/platform/sec"
)

// TokenVerifier verifies session tokens with strict expiry checks.
type TokenVerifier interface {
	VerifyToken(token string) (*sec.SessionClaims, error)
}

// Authenticate attaches the session of a valid token to the request context.
//
// # Flow
//  1. Read the token from the session cookie, or an 'Authorization: Bearer' header.
//  2. Verify it via [TokenVerifier].
//  3. On success, inject the claims and raw token into the context.
//
// Missing or invalid tokens never fail the request: it proceeds anonymously
// and the token is left untouched.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			token := SessionToken(request)
			if token == "" {
				next.ServeHTTP(writer, request)
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				next.ServeHTTP(writer, request)
				return
			}

			ctx := ctxutil.WithSession(request.Context(), claims, token)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests without a session. Register it after [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetSession(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// SessionToken returns the raw session token carried by the request, preferring
// the cookie over the Authorization header. It returns "" when there is none.
func SessionToken(request *http.Request) string {
	if cookie, err := request.Cookie(constants.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	scheme, token, found := strings.Cut(request.Header.Get(constants.HeaderAuthorization), " ")
	if found && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
