// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package oauth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/oauth2"

	"github.com/pronoundb/pronoundb/internal/users/account"
)

// SelfFetcher resolves the account behind an access token.
//
// It returns nil (or an error) when the profile can't be read. A *flash.Error
// is relayed to the user as is.
type SelfFetcher func(ctx context.Context, client *http.Client, accessToken string) (*account.External, error)

// Provider describes an OAuth2 identity provider.
type Provider struct {
	Platform         string
	ClientID         string
	ClientSecret     string
	AuthorizationURL string
	TokenURL         string
	Scopes           []string

	// UsePKCE adds an S256 code challenge to the authorization request.
	UsePKCE bool

	// NoAuthHeader sends client credentials in the token request body
	// instead of HTTP Basic authentication.
	NoAuthHeader bool

	GetSelf SelfFetcher
}

// config builds the x/oauth2 configuration for one redirect URI.
func (provider *Provider) config(redirectURL string) *oauth2.Config {
	style := oauth2.AuthStyleInHeader
	if provider.NoAuthHeader {
		style = oauth2.AuthStyleInParams
	}

	return &oauth2.Config{
		ClientID:     provider.ClientID,
		ClientSecret: provider.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   provider.AuthorizationURL,
			TokenURL:  provider.TokenURL,
			AuthStyle: style,
		},
		RedirectURL: redirectURL,
		Scopes:      slices.Clone(provider.Scopes),
	}
}

// # Registry

// Registry is the closed set of providers enabled at startup.
type Registry struct {
	providers map[string]*Provider
}

// NewRegistry registers every provider that has a client id.
func NewRegistry(providers ...*Provider) *Registry {
	registry := &Registry{providers: make(map[string]*Provider, len(providers))}
	for _, provider := range providers {
		if provider == nil || provider.ClientID == "" {
			continue
		}
		registry.providers[strings.ToLower(provider.Platform)] = provider
	}
	return registry
}

// Get returns the provider of platform.
func (registry *Registry) Get(platform string) (*Provider, bool) {
	provider, ok := registry.providers[platform]
	return provider, ok
}

// Platforms lists the enabled platforms in lexical order.
func (registry *Registry) Platforms() []string {
	platforms := make([]string, 0, len(registry.providers))
	for platform := range registry.providers {
		platforms = append(platforms, platform)
	}
	slices.Sort(platforms)
	return platforms
}
