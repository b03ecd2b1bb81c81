// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/middleware"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
)

const legacyAPIVersion = 1

// legacyError is the v1 error body. It predates the errorCode/code split of v2.
type legacyError struct {
	ErrorCode int    `json:"errorCode"`
	Error     string `json:"error"`
	Message   string `json:"message"`
}

type legacyPronouns struct {
	Pronouns string `json:"pronouns"`
}

// LegacyRoutes returns a [chi.Router] mounted under /api/v1.
//
// # Endpoints
//   - GET /lookup      : Single account lookup.
//   - GET /lookup-bulk : Up to 50 accounts of one platform.
//   - GET /lookup/me   : Pronouns of the signed-in user.
func (handler *Handler) LegacyRoutes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Group(func(single chi.Router) {
		single.Use(middleware.CORSPolicy{MaxAge: constants.CORSMaxAge, Vary: true}.Middleware)

		single.Get("/lookup", handler.legacyLookup)
		single.Options("/lookup", preflight)
	})

	router.Group(func(bulk chi.Router) {
		bulk.Use(middleware.CORSPolicy{MaxAge: constants.LegacyCORSMaxAge, Vary: true}.Middleware)

		bulk.Get("/lookup-bulk", handler.legacyLookupBulk)
		bulk.Options("/lookup-bulk", preflight)
	})

	router.Group(func(self chi.Router) {
		self.Use(middleware.CORSPolicy{
			MaxAge:              constants.LegacyCORSMaxAge,
			CredentialedSchemes: middleware.FirefoxSchemes,
			Vary:                true,
		}.Middleware)

		self.Get("/lookup/me", handler.legacySelf)
		self.Options("/lookup/me", preflight)
	})

	return router
}

/*
GET /api/v1/lookup.

Request:
  - platform: string (required)
  - id: string (required)

Response:
  - 200: {pronouns: identifier}, "unspecified" when unknown
  - 400: Missing parameters or unknown platform
*/
func (handler *Handler) legacyLookup(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(legacyAPIVersion)

	query := request.URL.Query()
	platform := query.Get("platform")
	id := query.Get("id")
	if platform == "" || id == "" {
		writeLegacyError(writer, request, ErrLegacyIDRequired)
		return
	}

	result, err := handler.lookupService.LegacyLookup(request.Context(), platform, []string{id})
	if err != nil {
		writeLegacyError(writer, request, err)
		return
	}

	handler.recorder.RecordLookup(platform, 1, result.Hits)
	respond.OK(writer, legacyPronouns{Pronouns: result.Identifiers[id]})
}

/*
GET /api/v1/lookup-bulk.

Request:
  - platform: string (required)
  - ids: string (required, comma separated, 1 to 50 distinct ids)

Response:
  - 200: {accountId: identifier} for every requested id
  - 400: Missing parameters, unknown platform or invalid id count
*/
func (handler *Handler) legacyLookupBulk(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(legacyAPIVersion)

	query := request.URL.Query()
	platform := query.Get("platform")
	rawIDs := query.Get("ids")
	if platform == "" || rawIDs == "" {
		writeLegacyError(writer, request, ErrParamsRequired)
		return
	}

	ids := ParseIDs(rawIDs)
	result, err := handler.lookupService.LegacyLookup(request.Context(), platform, ids)
	if err != nil {
		writeLegacyError(writer, request, err)
		return
	}

	handler.recorder.RecordLookup(platform, len(ids), result.Hits)
	respond.OK(writer, result.Identifiers)
}

// GET /api/v1/lookup/me. Lax authentication, "unspecified" when anonymous.
func (handler *Handler) legacySelf(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(legacyAPIVersion)

	user, err := handler.sessions.Authenticate(request.Context(), request, true)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	identifier := Unspecified
	if user != nil {
		identifier = LegacyIdentifier(user.Pronouns["en"])
	}
	respond.OK(writer, legacyPronouns{Pronouns: identifier})
}

// writeLegacyError renders client errors in the v1 shape and defers
// everything else to [respond.Error].
func writeLegacyError(writer http.ResponseWriter, request *http.Request, err error) {
	appError := apperr.As(err)
	if appError == nil || appError.HTTPStatus != http.StatusBadRequest {
		respond.Error(writer, request, err)
		return
	}

	respond.JSON(writer, http.StatusBadRequest, legacyError{
		ErrorCode: http.StatusBadRequest,
		Error:     "Bad request",
		Message:   appError.Message,
	})
}

// # Shields

// ShieldRoutes returns a [chi.Router] mounted under /shields.
func (handler *Handler) ShieldRoutes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(func(writer http.ResponseWriter, _ *http.Request) {
		http.Error(writer, "405: Method not allowed", http.StatusMethodNotAllowed)
	})

	router.Get("/{id}.json", handler.getShield)

	return router
}

/*
GET /shields/{id}.json.

Request:
  - capitalize: present to capitalize label and message

Response:
  - 200: shields.io endpoint badge, an error badge when nothing is set
  - 400: Plain text, malformed user id
*/
func (handler *Handler) getShield(writer http.ResponseWriter, request *http.Request) {
	_, capitalize := request.URL.Query()["capitalize"]

	shield, err := handler.lookupService.Shield(request.Context(), chi.URLParam(request, "id"), capitalize)
	if err != nil {
		if errors.Is(err, ErrInvalidUserID) {
			http.Error(writer, "400: Bad request", http.StatusBadRequest)
			return
		}
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, shield)
}
