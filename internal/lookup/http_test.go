// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronoundb/pronoundb/internal/lookup"
	"github.com/pronoundb/pronoundb/internal/platform/metrics"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

type stubSessions struct {
	user *account.User
	lax  []bool
}

func (sessions *stubSessions) Authenticate(_ context.Context, _ *http.Request, lax bool) (*account.User, error) {
	sessions.lax = append(sessions.lax, lax)
	return sessions.user, nil
}

type apiFixture struct {
	router    chi.Router
	sessions  *stubSessions
	collector *metrics.Collector
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	collector, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	fixture := &apiFixture{sessions: &stubSessions{}, collector: collector}
	handler := lookup.NewHandler(newLookupService(t, newFakeRepository()), fixture.sessions, collector)

	fixture.router = chi.NewRouter()
	fixture.router.Mount("/api/v1", handler.LegacyRoutes())
	fixture.router.Mount("/api/v2", handler.Routes())
	fixture.router.Mount("/shields", handler.ShieldRoutes())
	return fixture
}

func (fixture *apiFixture) do(method, target string, headers map[string]string) *httptest.ResponseRecorder {
	request := httptest.NewRequest(method, target, nil)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	recorder := httptest.NewRecorder()
	fixture.router.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func assertPublicCORS(t *testing.T, header http.Header) {
	t.Helper()
	assert.Equal(t, "GET", header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "x-pronoundb-source", header.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", header.Get("Access-Control-Max-Age"))
	assert.Empty(t, header.Get("Access-Control-Allow-Credentials"))
}

/*
TestLookup_CacheLifetime verifies the longer lifetime of fully resolved lookups.
*/
func TestLookup_CacheLifetime(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
		hits  int
	}{
		{name: "all resolved", query: "platform=discord&ids=1,2", want: "public, max-age=300", hits: 2},
		{name: "partially resolved", query: "platform=discord&ids=1,404", want: "public, max-age=30", hits: 1},
		{name: "nothing resolved", query: "platform=twitch&ids=1", want: "public, max-age=30", hits: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fixture := newAPIFixture(t)

			response := fixture.do(http.MethodGet, "/api/v2/lookup?"+tt.query, nil)

			require.Equal(t, http.StatusOK, response.Code)
			assert.Equal(t, tt.want, response.Header().Get("Cache-Control"))
			assertPublicCORS(t, response.Header())
			assert.Len(t, decodeBody(t, response), tt.hits)
		})
	}
}

func TestLookup_Body(t *testing.T) {
	fixture := newAPIFixture(t)

	response := fixture.do(http.MethodGet, "/api/v2/lookup?platform=discord&ids=1,2,404", nil)

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{
		"1": {"decoration": "sparkles", "sets": {"en": ["she", "it"]}},
		"2": {"decoration": null, "sets": {}}
	}`, response.Body.String())
}

/*
TestLookup_Metrics verifies per-platform counters and the API version counter.
*/
func TestLookup_Metrics(t *testing.T) {
	fixture := newAPIFixture(t)

	fixture.do(http.MethodGet, "/api/v2/lookup?platform=discord&ids=1", nil)
	fixture.do(http.MethodGet, "/api/v2/lookup?platform=discord&ids=1,2,2,404", nil)
	fixture.do(http.MethodGet, "/api/v2/lookup?platform=discord", nil)

	collector := fixture.collector
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LookupRequests.WithLabelValues("discord", metrics.MethodSingle)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LookupRequests.WithLabelValues("discord", metrics.MethodBulk)))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.LookupIDs.WithLabelValues("discord")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.LookupHits.WithLabelValues("discord")))
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.APICallVersion.WithLabelValues("2")))
}

func TestLookup_BadRequest(t *testing.T) {
	fixture := newAPIFixture(t)
	tooMany := "1"
	for i := 2; i <= 51; i++ {
		tooMany += "," + string(rune('a'+i%26)) + string(rune('a'+i/26))
	}

	tests := []struct {
		name    string
		query   string
		message string
	}{
		{name: "missing platform", query: "ids=1", message: "`platform` and `ids` query parameters are required."},
		{name: "missing ids", query: "platform=discord", message: "`platform` and `ids` query parameters are required."},
		{name: "unknown platform", query: "platform=myspace&ids=1", message: "`platform` is not a valid platform."},
		{name: "only separators", query: "platform=discord&ids=,,,", message: "`ids` must contain between 1 and 50 IDs."},
		{name: "fifty one ids", query: "platform=discord&ids=" + tooMany, message: "`ids` must contain between 1 and 50 IDs."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := fixture.do(http.MethodGet, "/api/v2/lookup?"+tt.query, nil)

			assert.Equal(t, http.StatusBadRequest, response.Code)
			assertPublicCORS(t, response.Header())

			body := decodeBody(t, response)
			assert.Equal(t, 400.0, body["code"])
			assert.Equal(t, "Bad request", body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestPublicEndpoints_Methods(t *testing.T) {
	fixture := newAPIFixture(t)

	for _, path := range []string{"/api/v2/lookup", "/api/v2/users/" + userA, "/api/v2/stats"} {
		t.Run(path, func(t *testing.T) {
			preflight := fixture.do(http.MethodOptions, path, nil)
			assert.Equal(t, http.StatusNoContent, preflight.Code)
			assertPublicCORS(t, preflight.Header())

			rejected := fixture.do(http.MethodPost, path, nil)
			assert.Equal(t, http.StatusMethodNotAllowed, rejected.Code)
			assert.JSONEq(t, `{"statusCode":405,"error":"Method not allowed"}`, rejected.Body.String())
		})
	}
}

func TestGetUser(t *testing.T) {
	fixture := newAPIFixture(t)

	tests := []struct {
		name    string
		id      string
		status  int
		message string
	}{
		{name: "found", id: userA, status: http.StatusOK},
		{name: "upper case", id: "0190A5C4-7C1E-7B3A-9E52-3F1F2D6A8B10", status: http.StatusOK},
		{name: "missing", id: "0190a5c4-0000-7000-8000-000000000000", status: http.StatusNotFound},
		{name: "malformed", id: "not-a-uuid", status: http.StatusBadRequest, message: "Invalid user ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := fixture.do(http.MethodGet, "/api/v2/users/"+tt.id, nil)

			assert.Equal(t, tt.status, response.Code)
			assertPublicCORS(t, response.Header())

			body := decodeBody(t, response)
			if tt.status == http.StatusOK {
				assert.Equal(t, userA, body["id"])
				assert.Equal(t, "sparkles", body["decoration"])
				assert.Equal(t, map[string]any{"en": []any{"she", "it"}}, body["sets"])
				return
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
}

/*
TestGetSelf covers lax authentication and the extension CORS policy.
*/
func TestGetSelf(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		fixture := newAPIFixture(t)

		response := fixture.do(http.MethodGet, "/api/v2/users/self", nil)

		assert.Equal(t, http.StatusNotFound, response.Code)
		assert.Empty(t, response.Body.String())
		assert.Equal(t, "origin", response.Header().Get("Vary"))
		assert.Equal(t, "*", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, []bool{true}, fixture.sessions.lax)
	})

	t.Run("extension origin", func(t *testing.T) {
		fixture := newAPIFixture(t)
		decoration := "sparkles"
		fixture.sessions.user = &account.User{ID: userA, Decoration: &decoration, Pronouns: account.PronounSets{"en": {"they"}}}

		response := fixture.do(http.MethodGet, "/api/v2/users/self", map[string]string{"Origin": "moz-extension://4c5e7d2a"})

		require.Equal(t, http.StatusOK, response.Code)
		assert.Equal(t, "moz-extension://4c5e7d2a", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", response.Header().Get("Access-Control-Allow-Credentials"))
		assert.JSONEq(t, `{"decoration":"sparkles","sets":{"en":["they"]}}`, response.Body.String())
	})

	t.Run("website origin", func(t *testing.T) {
		fixture := newAPIFixture(t)
		fixture.sessions.user = &account.User{ID: userA, Pronouns: account.PronounSets{}}

		response := fixture.do(http.MethodGet, "/api/v2/users/self", map[string]string{"Origin": "https://evil.example"})

		assert.Equal(t, http.StatusOK, response.Code)
		assert.Equal(t, "*", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, response.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("preflight", func(t *testing.T) {
		fixture := newAPIFixture(t)

		response := fixture.do(http.MethodOptions, "/api/v2/users/self", map[string]string{"Origin": "chrome-extension://abc"})

		assert.Equal(t, http.StatusNoContent, response.Code)
		assert.Equal(t, "chrome-extension://abc", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, fixture.sessions.lax)
	})
}

func TestGetStats(t *testing.T) {
	fixture := newAPIFixture(t)

	response := fixture.do(http.MethodGet, "/api/v2/stats", nil)

	require.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "public, max-age=3600", response.Header().Get("Cache-Control"))

	body := decodeBody(t, response)
	assert.Equal(t, 2.0, body["users"])
	assert.Equal(t, 1.0, body["accounts"].(map[string]any)["github"])
}
