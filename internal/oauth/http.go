// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pronoundb/pronoundb/internal/platform/ctxutil"
	"github.com/pronoundb/pronoundb/internal/platform/flash"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

// # Contracts

// Accounts is the account service surface used by callbacks.
type Accounts interface {
	FindByExternalAccount(context context.Context, external account.External) (*account.User, error)
	Register(context context.Context, external account.External) (string, error)
	LinkAccount(context context.Context, userID string, external account.External) error
}

// Sessions is the session surface used by callbacks. auth.Service satisfies it.
type Sessions interface {
	Authenticate(context context.Context, request *http.Request, lax bool) (*account.User, error)
	GenerateToken(userID string) (string, error)
	SetCookie(writer http.ResponseWriter, token string)
	SecureCookies() bool
}

// CallbackRecorder counts callback outcomes. metrics.Collector satisfies it.
type CallbackRecorder interface {
	RecordOAuthCallback(platform, result string)
}

// # Handler

// Handler implements the browser-facing OAuth endpoints.
type Handler struct {
	engine   *Engine
	accounts Accounts
	sessions Sessions
	recorder CallbackRecorder
}

// NewHandler constructs a new OAuth [Handler]. recorder may be nil.
func NewHandler(engine *Engine, accounts Accounts, sessions Sessions, recorder CallbackRecorder) *Handler {
	return &Handler{engine: engine, accounts: accounts, sessions: sessions, recorder: recorder}
}

// Routes returns a [chi.Router] mounted under /oauth.
//
// # Endpoints
//   - GET /{platform}/authorize : Redirects to the provider.
//   - GET /{platform}/callback  : Completes the flow and redirects to the website.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Get("/{platform}/authorize", handler.authorize)
	router.Get("/{platform}/callback", handler.callback)

	return router
}

/*
GET /oauth/{platform}/authorize.

Request:
  - intent: "login" (default) or "link"

Response:
  - 302: Redirect to the provider
  - 400: Invalid intent
  - 404: Platform not enabled
*/
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	target, err := handler.engine.Authorize(writer, request, chi.URLParam(request, "platform"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, target, http.StatusFound)
}

/*
GET /oauth/{platform}/callback.

Description: Always answers with a redirect. Failures are reported through
the flash cookie; login lands on /me, failed logins on /, link flows on /me.
*/
func (handler *Handler) callback(writer http.ResponseWriter, request *http.Request) {
	platform := chi.URLParam(request, "platform")

	external, intent, err := handler.engine.Callback(request, platform)
	if err != nil {
		if errors.Is(err, ErrUnknownPlatform) {
			respond.Error(writer, request, err)
			return
		}

		code := flash.CodeOf(err)
		if code == "" {
			code = flash.OAuthGeneric
		}
		handler.fail(writer, request, platform, intent, code)
		return
	}

	switch intent {
	case IntentLink:
		handler.link(writer, request, external)
	default:
		handler.login(writer, request, external)
	}
}

// login signs in the owner of the account, registering a new user when the
// account is unknown.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request, external *account.External) {
	ctx := request.Context()

	user, err := handler.accounts.FindByExternalAccount(ctx, *external)
	if err != nil {
		handler.internalFailure(writer, request, external.Platform, IntentLogin, err)
		return
	}

	var userID string
	result := "login"
	if user != nil {
		userID = user.ID
	} else {
		userID, err = handler.accounts.Register(ctx, *external)
		if errors.Is(err, account.ErrAlreadyLinked) {
			handler.fail(writer, request, external.Platform, IntentLogin, flash.AccountExists)
			return
		}
		if err != nil {
			handler.internalFailure(writer, request, external.Platform, IntentLogin, err)
			return
		}
		result = "registered"
		flash.Set(writer, flash.Registered, handler.sessions.SecureCookies())
	}

	token, err := handler.sessions.GenerateToken(userID)
	if err != nil {
		handler.internalFailure(writer, request, external.Platform, IntentLogin, err)
		return
	}

	handler.sessions.SetCookie(writer, token)
	handler.record(external.Platform, result)
	http.Redirect(writer, request, "/me", http.StatusFound)
}

// link attaches the account to the signed-in user.
func (handler *Handler) link(writer http.ResponseWriter, request *http.Request, external *account.External) {
	ctx := request.Context()

	user, err := handler.sessions.Authenticate(ctx, request, false)
	if err != nil {
		handler.internalFailure(writer, request, external.Platform, IntentLink, err)
		return
	}
	if user == nil {
		handler.record(external.Platform, "no_session")
		http.Redirect(writer, request, "/login", http.StatusFound)
		return
	}

	err = handler.accounts.LinkAccount(ctx, user.ID, *external)
	if errors.Is(err, account.ErrAccountTaken) {
		handler.fail(writer, request, external.Platform, IntentLink, flash.AccountTaken)
		return
	}
	if err != nil {
		handler.internalFailure(writer, request, external.Platform, IntentLink, err)
		return
	}

	handler.record(external.Platform, "linked")
	http.Redirect(writer, request, "/me", http.StatusFound)
}

func (handler *Handler) fail(writer http.ResponseWriter, request *http.Request, platform string, intent Intent, code flash.Code) {
	handler.record(platform, string(code))
	flash.Set(writer, code, handler.sessions.SecureCookies())
	http.Redirect(writer, request, intent.FailureRedirect(), http.StatusFound)
}

func (handler *Handler) internalFailure(writer http.ResponseWriter, request *http.Request, platform string, intent Intent, err error) {
	ctxutil.GetLogger(request.Context()).ErrorContext(request.Context(), "oauth_callback_failed",
		slog.String("platform", platform),
		slog.String("request_id", ctxutil.GetRequestID(request.Context())),
		slog.Any("error", err),
	)
	handler.fail(writer, request, platform, intent, flash.OAuthGeneric)
}

func (handler *Handler) record(platform, result string) {
	if handler.recorder != nil {
		handler.recorder.RecordOAuthCallback(platform, result)
	}
}
