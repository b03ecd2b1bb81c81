// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package respond provides HTTP response helpers used by all API handlers.
//
// # Wire Format
//
// Successful responses are written as bare JSON documents: the public API is
// consumed by browser extensions that expect the resource at the top level.
// Errors always follow [ErrorEnvelope].
package respond

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/ctxutil"
)

// ErrorEnvelope is the JSON body of every API error.
type ErrorEnvelope struct {
	Code      int                 `json:"code"`
	Error     string              `json:"error"`
	Message   string              `json:"message,omitempty"`
	ErrorCode string              `json:"errorCode,omitempty"`
	Details   []apperr.FieldError `json:"details,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// OK writes a 200 OK response.
func OK(writer http.ResponseWriter, data any) {
	JSON(writer, http.StatusOK, data)
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// Cached sets a public Cache-Control lifetime on the response.
func Cached(writer http.ResponseWriter, lifetime time.Duration) {
	writer.Header().Set(constants.HeaderCacheControl, fmt.Sprintf("public, max-age=%d", int(lifetime.Seconds())))
}

// MethodNotAllowed writes the 405 body shared by all public endpoints.
func MethodNotAllowed(writer http.ResponseWriter, _ *http.Request) {
	JSON(writer, http.StatusMethodNotAllowed, map[string]any{
		constants.FieldStatusCode: http.StatusMethodNotAllowed,
		constants.FieldError:      "Method not allowed",
	})
}

// Error converts any Go error into a standardized JSON API error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	logger := ctxutil.GetLogger(request.Context())

	appError := apperr.As(err)
	if appError == nil {
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
		)
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= 500 {
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, appError.HTTPStatus, ErrorEnvelope{
		Code:      appError.HTTPStatus,
		Error:     statusTitle(appError.HTTPStatus),
		Message:   appError.Message,
		ErrorCode: appError.Code,
		Details:   appError.Details,
	})
}

// statusTitle renders a status text in sentence case ("Bad request").
func statusTitle(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "Error"
	}
	return text[:1] + strings.ToLower(text[1:])
}
