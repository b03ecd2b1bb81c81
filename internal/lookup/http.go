// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/middleware"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

// apiVersion labels the calls served by this handler.
const apiVersion = 2

// SessionResolver resolves the user behind a request. auth.Service satisfies it.
type SessionResolver interface {
	Authenticate(context context.Context, request *http.Request, lax bool) (*account.User, error)
}

// Recorder collects public API metrics. metrics.Collector satisfies it.
type Recorder interface {
	RecordLookup(platform string, requested, hits int)
	RecordAPICall(version int)
}

// # Handler

// Handler implements the public API endpoints.
type Handler struct {
	lookupService *Service
	sessions      SessionResolver
	recorder      Recorder
}

// NewHandler constructs a new lookup [Handler].
func NewHandler(service *Service, sessions SessionResolver, recorder Recorder) *Handler {
	return &Handler{lookupService: service, sessions: sessions, recorder: recorder}
}

// Routes returns a [chi.Router] mounted under /api/v2.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Group(func(public chi.Router) {
		public.Use(middleware.PublicCORS())

		public.Get("/lookup", handler.lookup)
		public.Options("/lookup", preflight)
		public.Get("/users/{id}", handler.getUser)
		public.Options("/users/{id}", preflight)
		public.Get("/stats", handler.getStats)
		public.Options("/stats", preflight)
	})

	router.Group(func(extension chi.Router) {
		extension.Use(middleware.ExtensionCORS())

		extension.Get("/users/self", handler.getSelf)
		extension.Options("/users/self", preflight)
	})

	return router
}

// preflight is reached only if the CORS middleware lets OPTIONS through.
func preflight(writer http.ResponseWriter, _ *http.Request) {
	respond.NoContent(writer)
}

/*
GET /api/v2/lookup.

Request:
  - platform: string (required)
  - ids: string (required, comma separated, 1 to 50 distinct ids)

Response:
  - 200: {accountId: {decoration, sets}} for the ids that resolved
  - 400: Missing parameters, unknown platform or invalid id count
*/
func (handler *Handler) lookup(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(apiVersion)

	query := request.URL.Query()
	platform := query.Get("platform")
	rawIDs := query.Get("ids")
	if platform == "" || rawIDs == "" {
		respond.Error(writer, request, ErrParamsRequired)
		return
	}

	ids := ParseIDs(rawIDs)
	result, err := handler.lookupService.Lookup(request.Context(), platform, ids)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.recorder.RecordLookup(platform, len(ids), len(result.Entries))

	// Misses expire sooner so newly linked accounts show up quickly.
	lifetime := constants.LookupCachePartial
	if result.Complete() {
		lifetime = constants.LookupCacheFull
	}
	respond.Cached(writer, lifetime)
	respond.OK(writer, result.Entries)
}

/*
GET /api/v2/users/{id}.

Response:
  - 200: {id, decoration, sets}
  - 400: Invalid user ID
  - 404: No such user
*/
func (handler *Handler) getUser(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(apiVersion)

	user, err := handler.lookupService.FindUser(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

/*
GET /api/v2/users/self.

Description: Uses lax session verification so extensions keep working with
an expired cookie. Answers 404 with an empty body when nobody is signed in.
*/
func (handler *Handler) getSelf(writer http.ResponseWriter, request *http.Request) {
	handler.recorder.RecordAPICall(apiVersion)

	user, err := handler.sessions.Authenticate(request.Context(), request, true)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if user == nil {
		writer.WriteHeader(http.StatusNotFound)
		return
	}

	respond.OK(writer, Entry{Decoration: user.Decoration, Sets: user.Pronouns})
}

// GET /api/v2/stats.
func (handler *Handler) getStats(writer http.ResponseWriter, request *http.Request) {
	stats, err := handler.lookupService.Stats(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Cached(writer, constants.StatsCacheTTL)
	respond.OK(writer, stats)
}
