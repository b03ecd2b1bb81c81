// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package flash carries one-shot status messages across redirects.

Browser-facing flows (OAuth callbacks) cannot answer with a JSON error, so they
store a short code in a 30 second cookie and redirect. The website resolves the
code to a message on the next page load.
*/
package flash

import (
	"errors"
	"net/http"

	"github.com/pronoundb/pronoundb/internal/platform/constants"
)

// Code identifies a flash message.
type Code string

// Registered is the only success code, set after a first login.
const Registered Code = "S_REGISTERED"

// Error codes.
const (
	CSRF              Code = "E_CSRF"
	OAuthGeneric      Code = "E_OAUTH_GENERIC"
	OAuthFetch        Code = "E_OAUTH_FETCH"
	AccountExists     Code = "E_ACCOUNT_EXISTS"
	AccountTaken      Code = "E_ACCOUNT_TAKEN"
	OnlyAccount       Code = "E_ONLY_ACCOUNT"
	UnknownLocale     Code = "E_PRONOUNS_UNKNOWN_LOCALE"
	DuplicatePronouns Code = "E_PRONOUNS_DUPLICATE_ENTRIES"
	LockedDecoration  Code = "E_DECORATION_LOCKED"
)

var messages = map[Code]string{
	Registered: "Welcome!! Thank you for creating your PronounDB account. Start by setting your pronouns, and then consider linking your other accounts. Have a great stay!",

	CSRF:              "Verification of the authenticity of the submission failed (CSRF check). Please try again.",
	OAuthGeneric:      "An unknown error occurred while authenticating with the third party service.",
	OAuthFetch:        "Could not fetch information about your external account.",
	AccountExists:     "This account already exists in our database. Did you mean to login?",
	AccountTaken:      "This account has already been linked to another PronounDB account.",
	OnlyAccount:       "You cannot unlink your only linked account. If you want to get rid of it, you must delete your account.",
	UnknownLocale:     "The locale specified is unknown.",
	DuplicatePronouns: "One set have been entered multiple times.",
	LockedDecoration:  "The decoration you've selected is not available to you.",
}

// Message returns the human text of code, or "" for an unknown code.
func (code Code) Message() string {
	return messages[code]
}

// Valid reports whether code is a known flash code.
func (code Code) Valid() bool {
	_, ok := messages[code]
	return ok
}

// Error lets a flash code travel through error returns.
type Error struct {
	Code Code
}

func (e *Error) Error() string { return "flash: " + string(e.Code) }

// Errorf returns code as an error.
func Errorf(code Code) error {
	return &Error{Code: code}
}

// CodeOf extracts the flash code carried by err, or "" when err carries none.
func CodeOf(err error) Code {
	var flashErr *Error
	if errors.As(err, &flashErr) {
		return flashErr.Code
	}
	return ""
}

// # Cookies

// Set stores code in the flash cookie.
func Set(writer http.ResponseWriter, code Code, secure bool) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.FlashCookieName,
		Value:    string(code),
		Path:     "/",
		MaxAge:   int(constants.FlashCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Take reads and clears the flash cookie. It returns "" when there is no
// cookie or it holds an unknown code.
func Take(writer http.ResponseWriter, request *http.Request) Code {
	cookie, err := request.Cookie(constants.FlashCookieName)
	if err != nil {
		return ""
	}

	http.SetCookie(writer, &http.Cookie{Name: constants.FlashCookieName, Path: "/", MaxAge: -1})

	code := Code(cookie.Value)
	if !code.Valid() {
		return ""
	}
	return code
}
