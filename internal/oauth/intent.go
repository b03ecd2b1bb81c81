// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import "github.com/pronoundb/pronoundb/internal/platform/apperr"

// Intent is what the user meant to do when starting an authorization.
type Intent string

const (
	IntentLogin Intent = "login"
	IntentLink  Intent = "link"
)

// ErrInvalidIntent is returned for an intent other than login or link.
var ErrInvalidIntent = apperr.BadRequest("INVALID_INTENT", "`intent` must be either login or link.")

// ParseIntent parses an intent query value. An empty value means login.
func ParseIntent(value string) (Intent, error) {
	switch Intent(value) {
	case "", IntentLogin:
		return IntentLogin, nil
	case IntentLink:
		return IntentLink, nil
	default:
		return "", ErrInvalidIntent
	}
}

// String returns the wire form of the intent.
func (intent Intent) String() string {
	return string(intent)
}

// FailureRedirect is where a browser lands when a flow with this intent fails.
func (intent Intent) FailureRedirect() string {
	if intent == IntentLink {
		return "/me"
	}
	return "/"
}
