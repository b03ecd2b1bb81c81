// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronoundb/pronoundb/internal/lookup"
	"github.com/pronoundb/pronoundb/internal/platform/metrics"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

func TestLegacyIdentifier(t *testing.T) {
	tests := []struct {
		name string
		sets []string
		want string
	}{
		{name: "none", sets: nil, want: "unspecified"},
		{name: "he", sets: []string{"he"}, want: "hh"},
		{name: "she", sets: []string{"she"}, want: "sh"},
		{name: "it", sets: []string{"it"}, want: "ii"},
		{name: "they", sets: []string{"they"}, want: "tt"},
		{name: "she he", sets: []string{"she", "he"}, want: "shh"},
		{name: "he she", sets: []string{"he", "she"}, want: "hs"},
		{name: "they it", sets: []string{"they", "it"}, want: "ti"},
		{name: "third set dropped", sets: []string{"she", "they", "he"}, want: "st"},
		{name: "any", sets: []string{"any"}, want: "any"},
		{name: "avoid", sets: []string{"avoid"}, want: "avoid"},
		{name: "neopronoun", sets: []string{"xe"}, want: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lookup.LegacyIdentifier(tt.sets))
		})
	}
}

func TestFormatPronouns(t *testing.T) {
	tests := []struct {
		name       string
		sets       []string
		capitalize bool
		want       string
	}{
		{name: "single", sets: []string{"she"}, want: "she/her"},
		{name: "single capitalized", sets: []string{"they"}, capitalize: true, want: "They/Them"},
		{name: "several", sets: []string{"she", "it"}, want: "she/it"},
		{name: "several capitalized", sets: []string{"he", "they"}, capitalize: true, want: "He/They"},
		{name: "meta", sets: []string{"ask"}, want: "ask me my pronouns"},
		{name: "meta capitalized", sets: []string{"any"}, capitalize: true, want: "Any pronouns"},
		{name: "unknown", sets: []string{"xe"}, want: "xe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lookup.FormatPronouns(tt.sets, tt.capitalize))
		})
	}
}

/*
TestLegacyLookup verifies that every requested id is answered and misses map
to "unspecified".
*/
func TestLegacyLookup(t *testing.T) {
	repository := newFakeRepository()
	service := newLookupService(t, repository)

	result, err := service.LegacyLookup(context.Background(), "discord", []string{"1", "2", "404"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": "si", "2": "unspecified", "404": "unspecified"}, result.Identifiers)
	assert.Equal(t, 2, result.Hits)
	assert.Len(t, repository.lookups, 1)
}

func TestLegacyLookup_Validation(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		ids      []string
		wantErr  error
	}{
		{name: "v2 only platform", platform: "osu", ids: makeIDs(1), wantErr: lookup.ErrInvalidPlatform},
		{name: "fifty one ids", platform: "twitch", ids: makeIDs(51), wantErr: lookup.ErrInvalidIDCount},
		{name: "legacy import platform", platform: "minecraft", ids: makeIDs(50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repository := newFakeRepository()
			service := newLookupService(t, repository)

			_, err := service.LegacyLookup(context.Background(), tt.platform, tt.ids)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repository.lookups)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestShield(t *testing.T) {
	service := newLookupService(t, newFakeRepository())

	tests := []struct {
		name       string
		id         string
		capitalize bool
		want       lookup.Shield
	}{
		{name: "found", id: userA, want: lookup.Shield{SchemaVersion: 1, Label: "pronouns", Message: "she/it"}},
		{name: "capitalized", id: userA, capitalize: true, want: lookup.Shield{SchemaVersion: 1, Label: "Pronouns", Message: "She/It"}},
		{name: "no english pronouns", id: userB, want: lookup.Shield{SchemaVersion: 1, Label: "error", Message: "not found", IsError: true}},
		{name: "unknown user", id: "0190a5c4-0000-7000-8000-000000000000", want: lookup.Shield{SchemaVersion: 1, Label: "error", Message: "not found", IsError: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shield, err := service.Shield(context.Background(), tt.id, tt.capitalize)

			require.NoError(t, err)
			assert.Equal(t, tt.want, *shield)
		})
	}

	_, err := service.Shield(context.Background(), "5f0a3e1b2c4d6e8f90a1b2c3", false)
	assert.ErrorIs(t, err, lookup.ErrInvalidUserID)
}

// # HTTP

func assertLegacyCORS(t *testing.T, header http.Header, maxAge string) {
	t.Helper()
	assert.Equal(t, "GET", header.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "*", header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, maxAge, header.Get("Access-Control-Max-Age"))
	assert.Equal(t, "origin", header.Get("Vary"))
}

func TestLegacyHTTP_Lookup(t *testing.T) {
	fixture := newAPIFixture(t)

	response := fixture.do(http.MethodGet, "/api/v1/lookup?platform=discord&id=1", nil)

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"pronouns":"si"}`, response.Body.String())
	assertLegacyCORS(t, response.Header(), "600")
	assert.Empty(t, response.Header().Get("Cache-Control"))

	response = fixture.do(http.MethodGet, "/api/v1/lookup?platform=discord&id=404", nil)
	assert.JSONEq(t, `{"pronouns":"unspecified"}`, response.Body.String())
}

func TestLegacyHTTP_LookupBulk(t *testing.T) {
	fixture := newAPIFixture(t)

	response := fixture.do(http.MethodGet, "/api/v1/lookup-bulk?platform=discord&ids=1,2,404,1", nil)

	require.Equal(t, http.StatusOK, response.Code)
	assert.JSONEq(t, `{"1":"si","2":"unspecified","404":"unspecified"}`, response.Body.String())
	assertLegacyCORS(t, response.Header(), "7200")

	preflight := fixture.do(http.MethodOptions, "/api/v1/lookup-bulk", nil)
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assertLegacyCORS(t, preflight.Header(), "7200")
}

/*
TestLegacyHTTP_BadRequest verifies the v1 error body, which carries the status
under errorCode.
*/
func TestLegacyHTTP_BadRequest(t *testing.T) {
	fixture := newAPIFixture(t)

	tests := []struct {
		name    string
		target  string
		message string
	}{
		{name: "single missing id", target: "/api/v1/lookup?platform=discord", message: "`platform` and `id` query parameters are required."},
		{name: "single v2 platform", target: "/api/v1/lookup?platform=reddit&id=1", message: "`platform` is not a valid platform."},
		{name: "bulk missing ids", target: "/api/v1/lookup-bulk?platform=discord", message: "`platform` and `ids` query parameters are required."},
		{name: "bulk only separators", target: "/api/v1/lookup-bulk?platform=discord&ids=,,", message: "`ids` must contain between 1 and 50 IDs."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := fixture.do(http.MethodGet, tt.target, nil)

			assert.Equal(t, http.StatusBadRequest, response.Code)

			body := decodeBody(t, response)
			assert.Equal(t, 400.0, body["errorCode"])
			assert.Equal(t, "Bad request", body["error"])
			assert.Equal(t, tt.message, body["message"])
			assert.NotContains(t, body, "code")
		})
	}
}

func TestLegacyHTTP_Metrics(t *testing.T) {
	fixture := newAPIFixture(t)

	fixture.do(http.MethodGet, "/api/v1/lookup?platform=discord&id=1", nil)
	fixture.do(http.MethodGet, "/api/v1/lookup-bulk?platform=discord&ids=1,2,404", nil)
	fixture.do(http.MethodGet, "/api/v1/lookup/me", nil)
	fixture.do(http.MethodGet, "/api/v2/lookup?platform=discord&ids=1", nil)

	collector := fixture.collector
	assert.Equal(t, 3.0, testutil.ToFloat64(collector.APICallVersion.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.APICallVersion.WithLabelValues("2")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.LookupRequests.WithLabelValues("discord", metrics.MethodSingle)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.LookupRequests.WithLabelValues("discord", metrics.MethodBulk)))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.LookupIDs.WithLabelValues("discord")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.LookupHits.WithLabelValues("discord")))
}

func TestLegacyHTTP_Self(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		fixture := newAPIFixture(t)

		response := fixture.do(http.MethodGet, "/api/v1/lookup/me", nil)

		require.Equal(t, http.StatusOK, response.Code)
		assert.JSONEq(t, `{"pronouns":"unspecified"}`, response.Body.String())
		assert.Equal(t, []bool{true}, fixture.sessions.lax)
	})

	t.Run("firefox", func(t *testing.T) {
		fixture := newAPIFixture(t)
		fixture.sessions.user = &account.User{ID: userA, Pronouns: account.PronounSets{"en": {"they", "she"}}}

		response := fixture.do(http.MethodGet, "/api/v1/lookup/me", map[string]string{"Origin": "moz-extension://4c5e7d2a"})

		require.Equal(t, http.StatusOK, response.Code)
		assert.JSONEq(t, `{"pronouns":"ts"}`, response.Body.String())
		assert.Equal(t, "moz-extension://4c5e7d2a", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", response.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, "7200", response.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("chromium", func(t *testing.T) {
		fixture := newAPIFixture(t)

		response := fixture.do(http.MethodGet, "/api/v1/lookup/me", map[string]string{"Origin": "chrome-extension://abc"})

		assert.Equal(t, "*", response.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, response.Header().Get("Access-Control-Allow-Credentials"))
	})
}

func TestShieldHTTP(t *testing.T) {
	fixture := newAPIFixture(t)

	tests := []struct {
		name   string
		target string
		status int
		body   string
	}{
		{name: "found", target: "/shields/" + userA + ".json", status: http.StatusOK, body: `{"schemaVersion":1,"label":"pronouns","message":"she/it"}`},
		{name: "capitalized", target: "/shields/" + userA + ".json?capitalize", status: http.StatusOK, body: `{"schemaVersion":1,"label":"Pronouns","message":"She/It"}`},
		{name: "not found", target: "/shields/" + userB + ".json", status: http.StatusOK, body: `{"schemaVersion":1,"label":"error","message":"not found","isError":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := fixture.do(http.MethodGet, tt.target, nil)

			assert.Equal(t, tt.status, response.Code)
			assert.JSONEq(t, tt.body, response.Body.String())
		})
	}

	t.Run("malformed id", func(t *testing.T) {
		response := fixture.do(http.MethodGet, "/shields/not-a-uuid.json", nil)

		assert.Equal(t, http.StatusBadRequest, response.Code)
		assert.Equal(t, "400: Bad request\n", response.Body.String())
	})

	t.Run("method", func(t *testing.T) {
		response := fixture.do(http.MethodPost, "/shields/"+userA+".json", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, response.Code)
		assert.Equal(t, "405: Method not allowed\n", response.Body.String())
	})
}
