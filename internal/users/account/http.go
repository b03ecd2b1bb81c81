// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/flash"
	requestutil "github.com/pronoundb/pronoundb/internal/platform/request"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
)

var errCsrf = apperr.Forbidden(string(flash.CSRF), flash.CSRF.Message())

// SessionGuard issues and checks CSRF tokens bound to the session of a
// request, and clears the session cookie. auth.Service satisfies it.
type SessionGuard interface {
	CreateCsrf(context context.Context, request *http.Request) (string, error)
	ValidateCsrf(context context.Context, request *http.Request, supplied string) (bool, error)
	ClearCookie(writer http.ResponseWriter)
}

// Handler implements the self-service endpoints of the signed-in user.
type Handler struct {
	accountService *Service
	guard          SessionGuard
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service, guard SessionGuard) *Handler {
	return &Handler{accountService: service, guard: guard}
}

// Routes returns the /me router. It must be mounted behind RequireAuth.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Get("/", handler.getMe)
	router.Get("/csrf", handler.getCsrf)
	router.Delete("/", handler.csrf(handler.deleteMe))

	router.Put("/pronouns/{locale}", handler.csrf(handler.setPronouns))
	router.Delete("/pronouns/{locale}", handler.csrf(handler.clearPronouns))
	router.Put("/decoration", handler.csrf(handler.setDecoration))
	router.Delete("/accounts/{platform}/{accountId}", handler.csrf(handler.unlinkAccount))

	return router
}

// csrf rejects state-changing requests without a valid single-use token.
func (handler *Handler) csrf(next http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		valid, err := handler.guard.ValidateCsrf(request.Context(), request, request.Header.Get(constants.CsrfHeader))
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		if !valid {
			respond.Error(writer, request, errCsrf)
			return
		}
		next(writer, request)
	}
}

/*
GET /api/v2/me.

Response:
  - 200: Profile: user, pronouns, decorations and linked accounts
  - 401: ErrUnauthorized: Missing session or deleted user
*/
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.accountService.Profile(request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			err = apperr.Unauthorized("Authentication required")
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

// GET /api/v2/me/csrf.
func (handler *Handler) getCsrf(writer http.ResponseWriter, request *http.Request) {
	token, err := handler.guard.CreateCsrf(request.Context(), request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]string{"token": token})
}

type setPronounsRequest struct {
	Sets []string `json:"sets"`
}

/*
PUT /api/v2/me/pronouns/{locale}.

Request:
  - body: {"sets": ["he", "it"]}

Response:
  - 200: {"locale", "sets"}
  - 400: Unknown locale, duplicate or invalid sets
*/
func (handler *Handler) setPronouns(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input setPronounsRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	locale, err := handler.accountService.SetPronouns(request.Context(), userID, requestutil.Param(request, "locale"), input.Sets)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, map[string]any{"locale": locale, "sets": input.Sets})
}

// DELETE /api/v2/me/pronouns/{locale}.
func (handler *Handler) clearPronouns(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.ClearPronouns(request.Context(), userID, requestutil.Param(request, "locale")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

type setDecorationRequest struct {
	Decoration *string `json:"decoration"`
}

// PUT /api/v2/me/decoration. A null decoration clears it.
func (handler *Handler) setDecoration(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input setDecorationRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.SetDecoration(request.Context(), userID, input.Decoration); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
DELETE /api/v2/me/accounts/{platform}/{accountId}.

Response:
  - 204: Account unlinked
  - 404: Account not linked to this user
  - 409: E_ONLY_ACCOUNT
*/
func (handler *Handler) unlinkAccount(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	platform := requestutil.Param(request, "platform")
	accountID := requestutil.Param(request, "accountId")

	if err := handler.accountService.UnlinkAccount(request.Context(), userID, platform, accountID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// DELETE /api/v2/me. The session cookie is cleared with the account.
func (handler *Handler) deleteMe(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accountService.DeleteUser(request.Context(), userID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.guard.ClearCookie(writer)
	respond.NoContent(writer)
}
