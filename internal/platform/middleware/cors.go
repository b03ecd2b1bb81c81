// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/pronoundb/pronoundb/internal/platform/constants"
)

// # Origin Schemes

var (
	// ExtensionSchemes are the origins browser extensions send requests from.
	ExtensionSchemes = []string{"moz-extension://", "chrome-extension://", "safari-web-extension://"}

	// FirefoxSchemes only covers Firefox, the one browser the v1 extension
	// sent credentialed requests from.
	FirefoxSchemes = []string{"moz-extension://"}
)

// # Cross-Origin Resource Sharing

// CORSPolicy describes the cross-origin rules of a read-only endpoint.
type CORSPolicy struct {
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge string

	// CredentialedSchemes lists origin schemes that are echoed back with
	// credentials allowed. Every other origin gets the wildcard.
	CredentialedSchemes []string

	// Vary adds 'Vary: origin' to every response.
	Vary bool
}

// Middleware applies the policy and answers preflight requests with 204.
func (policy CORSPolicy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		header := writer.Header()
		if policy.Vary {
			header.Add("Vary", "origin")
		}

		origin := request.Header.Get(constants.HeaderOrigin)
		if hasScheme(origin, policy.CredentialedSchemes) {
			setCORSHeaders(header, origin, policy.MaxAge, true)
		} else {
			setCORSHeaders(header, "*", policy.MaxAge, false)
		}

		if request.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// PublicCORS opens a read-only endpoint to every origin.
func PublicCORS() func(http.Handler) http.Handler {
	return CORSPolicy{MaxAge: constants.CORSMaxAge}.Middleware
}

// ExtensionCORS behaves like [PublicCORS] except for requests coming from a
// browser extension: their origin is echoed back and credentials are allowed,
// so the extension can read the signed-in user's own data.
func ExtensionCORS() func(http.Handler) http.Handler {
	return CORSPolicy{MaxAge: constants.CORSMaxAge, CredentialedSchemes: ExtensionSchemes, Vary: true}.Middleware
}

func hasScheme(origin string, schemes []string) bool {
	for _, scheme := range schemes {
		if strings.HasPrefix(origin, scheme) && len(origin) > len(scheme) {
			return true
		}
	}
	return false
}

func setCORSHeaders(header http.Header, origin, maxAge string, credentials bool) {
	header.Set("Access-Control-Allow-Methods", http.MethodGet)
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Headers", constants.SourceHeader)
	header.Set("Access-Control-Max-Age", maxAge)
	if credentials {
		header.Set("Access-Control-Allow-Credentials", "true")
	}
}
