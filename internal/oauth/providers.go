// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pronoundb/pronoundb/internal/platform/config"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

// Profile endpoints.
const (
	discordSelfURL    = "https://discord.com/api/v10/users/@me"
	githubSelfURL     = "https://api.github.com/user"
	osuSelfURL        = "https://osu.ppy.sh/api/v2/me"
	redditSelfURL     = "https://oauth.reddit.com/api/v1/me"
	sourcehutQueryURL = "https://meta.sr.ht/query"
	twitchSelfURL     = "https://api.twitch.tv/helix/users"
)

// maxProfileBytes caps profile responses.
const maxProfileBytes = 1 << 20

// NewRegistryFromConfig builds the registry of every provider with credentials.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	clients := cfg.OAuthClients()
	return NewRegistry(
		Discord(clients["discord"]),
		GitHub(clients["github"]),
		Osu(clients["osu"]),
		Reddit(clients["reddit"]),
		SourceHut(clients["sourcehut"]),
		Twitch(clients["twitch"]),
	)
}

// # Providers

func Discord(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "discord",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://discord.com/oauth2/authorize",
		TokenURL:         "https://discord.com/api/v10/oauth2/token",
		Scopes:           []string{"identify"},
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			var self struct {
				ID       flexibleID `json:"id"`
				Username string     `json:"username"`
			}
			if err := fetchJSON(ctx, httpClient, http.MethodGet, discordSelfURL, accessToken, nil, nil, &self); err != nil {
				return nil, err
			}
			return external("discord", self.ID, self.Username), nil
		},
	}
}

func GitHub(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "github",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://github.com/login/oauth/authorize",
		TokenURL:         "https://github.com/login/oauth/access_token",
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			var self struct {
				ID    flexibleID `json:"id"`
				Login string     `json:"login"`
			}
			if err := fetchJSON(ctx, httpClient, http.MethodGet, githubSelfURL, accessToken, nil, nil, &self); err != nil {
				return nil, err
			}
			return external("github", self.ID, self.Login), nil
		},
	}
}

func Osu(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "osu",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://osu.ppy.sh/oauth/authorize",
		TokenURL:         "https://osu.ppy.sh/oauth/token",
		Scopes:           []string{"identify"},
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			var self struct {
				ID       flexibleID `json:"id"`
				Username string     `json:"username"`
			}
			if err := fetchJSON(ctx, httpClient, http.MethodGet, osuSelfURL, accessToken, nil, nil, &self); err != nil {
				return nil, err
			}
			return external("osu", self.ID, self.Username), nil
		},
	}
}

func Reddit(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "reddit",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://www.reddit.com/api/v1/authorize",
		TokenURL:         "https://www.reddit.com/api/v1/access_token",
		Scopes:           []string{"identity"},
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			var self struct {
				ID   flexibleID `json:"id"`
				Name string     `json:"name"`
			}
			if err := fetchJSON(ctx, httpClient, http.MethodGet, redditSelfURL, accessToken, nil, nil, &self); err != nil {
				return nil, err
			}
			return external("reddit", self.ID, self.Name), nil
		},
	}
}

// SourceHut requires PKCE and rejects Basic client authentication.
func SourceHut(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "sourcehut",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://meta.sr.ht/oauth2/authorize",
		TokenURL:         "https://meta.sr.ht/oauth2/access-token",
		Scopes:           []string{"meta.sr.ht/PROFILE:RO"},
		UsePKCE:          true,
		NoAuthHeader:     true,
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			query := map[string]string{"query": "{ me { username canonicalName } }"}

			var self struct {
				Data struct {
					Me *struct {
						Username      string `json:"username"`
						CanonicalName string `json:"canonicalName"`
					} `json:"me"`
				} `json:"data"`
			}
			if err := fetchJSON(ctx, httpClient, http.MethodPost, sourcehutQueryURL, accessToken, nil, query, &self); err != nil {
				return nil, err
			}
			if self.Data.Me == nil {
				return nil, nil
			}
			return external("sourcehut", flexibleID(self.Data.Me.Username), self.Data.Me.CanonicalName), nil
		},
	}
}

// Twitch requires the client id on every Helix call.
func Twitch(client config.OAuthClient) *Provider {
	return &Provider{
		Platform:         "twitch",
		ClientID:         client.ClientID,
		ClientSecret:     client.ClientSecret,
		AuthorizationURL: "https://id.twitch.tv/oauth2/authorize",
		TokenURL:         "https://id.twitch.tv/oauth2/token",
		GetSelf: func(ctx context.Context, httpClient *http.Client, accessToken string) (*account.External, error) {
			var self struct {
				Data []struct {
					ID          flexibleID `json:"id"`
					DisplayName string     `json:"display_name"`
				} `json:"data"`
			}
			headers := http.Header{"Client-Id": {client.ClientID}}
			if err := fetchJSON(ctx, httpClient, http.MethodGet, twitchSelfURL, accessToken, headers, nil, &self); err != nil {
				return nil, err
			}
			if len(self.Data) == 0 {
				return nil, nil
			}
			return external("twitch", self.Data[0].ID, self.Data[0].DisplayName), nil
		},
	}
}

// # Helpers

// flexibleID accepts ids sent as JSON strings or numbers.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*id = flexibleID(value)
		return nil
	}

	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return err
	}
	*id = flexibleID(number.String())
	return nil
}

// external returns nil for a profile without an id.
func external(platform string, id flexibleID, name string) *account.External {
	if id == "" {
		return nil
	}
	return &account.External{Platform: platform, AccountID: string(id), AccountName: name}
}

// fetchJSON performs an authenticated profile request and decodes the response.
// A nil body sends no payload; otherwise it is JSON-encoded.
func fetchJSON(ctx context.Context, client *http.Client, method, url, accessToken string, headers http.Header, body, target any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("oauth_profile_encode_failed: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("oauth_profile_request_failed: %w", err)
	}

	request.Header.Set("Authorization", "Bearer "+accessToken)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for name, values := range headers {
		request.Header[name] = values
	}

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("oauth_profile_fetch_failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("oauth_profile_fetch_failed: status %d from %s", response.StatusCode, strings.SplitN(url, "?", 2)[0])
	}

	if err := json.NewDecoder(io.LimitReader(response.Body, maxProfileBytes)).Decode(target); err != nil {
		return fmt.Errorf("oauth_profile_decode_failed: %w", err)
	}
	return nil
}
