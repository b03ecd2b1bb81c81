// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pronoundb/pronoundb/internal/platform/flash"
	"github.com/pronoundb/pronoundb/internal/platform/respond"
)

// Handler implements session endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] mounted under /auth.
//
// # Endpoints
//   - POST /logout : Clears the session cookie and redirects home.
//   - GET  /flash  : Reads and clears the pending flash message.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.MethodNotAllowed(respond.MethodNotAllowed)

	router.Post("/logout", handler.logout)
	router.Get("/flash", handler.takeFlash)

	return router
}

/*
POST /auth/logout.

Description: Sessions are stateless, so logging out only drops the cookie.

Response:
  - 302: Redirect to /
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	handler.authService.ClearCookie(writer)
	http.Redirect(writer, request, "/", http.StatusFound)
}

// flashMessage is the JSON view of a pending flash code.
type flashMessage struct {
	Code    flash.Code `json:"code"`
	Message string     `json:"message"`
}

/*
GET /auth/flash.

Description: The website calls this after a redirect to show the message an
OAuth callback left behind. The cookie is cleared either way.

Response:
  - 200: {code, message}
  - 204: No pending message
*/
func (handler *Handler) takeFlash(writer http.ResponseWriter, request *http.Request) {
	code := flash.Take(writer, request)
	if code == "" {
		respond.NoContent(writer)
		return
	}
	respond.OK(writer, flashMessage{Code: code, Message: code.Message()})
}
