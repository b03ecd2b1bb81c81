// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It maps OS environment variables into a strongly-typed struct with
'caarlos0/env'. During local development an optional .env file is loaded
first with 'joho/godotenv'; variables already present in the environment win.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// # Configuration Schema

// OAuthClient holds the credentials registered with one identity provider.
// A provider with an empty ClientID is disabled.
type OAuthClient struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
}

// Enabled reports whether credentials were configured.
func (c OAuthClient) Enabled() bool {
	return c.ClientID != ""
}

// Config holds all runtime configuration for the PronounDB API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// PublicURL is the externally reachable origin, used to build OAuth redirect URIs.
	PublicURL string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	// TrustedProxies lists the CIDRs of reverse proxies whose X-Real-IP and
	// X-Forwarded-For headers are believed. Empty trusts no proxy.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Relational Database (PostgreSQL)
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// RedisURL is optional. When set, OAuth state and CSRF tokens are shared
	// through Redis so several instances can serve the same flows.
	RedisURL string `env:"REDIS_URL"`

	// SecretKey seeds the session token signing key.
	SecretKey string `env:"SECRET_KEY,required,notEmpty"`

	// Third-party identity providers
	Discord   OAuthClient `envPrefix:"OAUTH_DISCORD_"`
	GitHub    OAuthClient `envPrefix:"OAUTH_GITHUB_"`
	Osu       OAuthClient `envPrefix:"OAUTH_OSU_"`
	Reddit    OAuthClient `envPrefix:"OAUTH_REDDIT_"`
	SourceHut OAuthClient `envPrefix:"OAUTH_SOURCEHUT_"`
	Twitch    OAuthClient `envPrefix:"OAUTH_TWITCH_"`
}

// # Configuration Loading

// Load reads an optional .env file, then parses environment variables into a [Config].
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: failed to read .env file: %w", err)
	}
	return Parse()
}

// Parse maps the current environment into a [Config] without touching the filesystem.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	return cfg, nil
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// OAuthClients returns the configured credentials keyed by platform name.
func (c *Config) OAuthClients() map[string]OAuthClient {
	return map[string]OAuthClient{
		"discord":   c.Discord,
		"github":    c.GitHub,
		"osu":       c.Osu,
		"reddit":    c.Reddit,
		"sourcehut": c.SourceHut,
		"twitch":    c.Twitch,
	}
}
