// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package oauth runs the OAuth2 authorization code flow against third-party
identity providers to prove ownership of an external account.

# Flow

 1. Authorize stores a random state under the composite key
    {platform}-{state}-{intent} and sets matching state/intent cookies
    scoped to the callback path.
 2. Callback checks the query state against the cookies, consumes the stored
    state (single use), exchanges the code and reads the profile.

Nothing is written to the database here: the caller decides between
registration, login and account linking based on the returned [Intent].
*/
package oauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/flash"
	"github.com/pronoundb/pronoundb/internal/platform/sec"
	"github.com/pronoundb/pronoundb/internal/platform/statestore"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

// stateBytes is the entropy of an authorization state.
const stateBytes = 32

var (
	// ErrCSRF means the callback could not be matched to an authorization
	// this browser started.
	ErrCSRF = flash.Errorf(flash.CSRF)

	// ErrOAuthGeneric means the code exchange failed.
	ErrOAuthGeneric = flash.Errorf(flash.OAuthGeneric)

	// ErrOAuthFetch means the profile of the authorized account could not be read.
	ErrOAuthFetch = flash.Errorf(flash.OAuthFetch)

	// ErrUnknownPlatform is returned for platforms without an enabled provider.
	ErrUnknownPlatform = apperr.NotFound("Platform")
)

// # Engine

// Engine drives authorization flows for every registered provider.
type Engine struct {
	registry  *Registry
	states    statestore.Store[time.Time]
	verifiers statestore.Store[string]
	client    *http.Client
	publicURL string
	secure    bool
	now       func() time.Time
	tracer    trace.Tracer
	logger    *slog.Logger
}

// EngineConfig groups the collaborators of an [Engine].
type EngineConfig struct {
	Registry  *Registry
	States    statestore.Store[time.Time]
	Verifiers statestore.Store[string]

	// Client is used for token exchanges and profile requests. Nil means
	// [NewHTTPClient].
	Client *http.Client

	// PublicURL is the origin redirect URIs are built from.
	PublicURL string

	// Secure marks the state cookies as Secure.
	Secure bool

	Logger *slog.Logger
}

// NewEngine constructs an [Engine].
func NewEngine(cfg EngineConfig) *Engine {
	client := cfg.Client
	if client == nil {
		client = NewHTTPClient()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		registry:  cfg.Registry,
		states:    cfg.States,
		verifiers: cfg.Verifiers,
		client:    client,
		publicURL: cfg.PublicURL,
		secure:    cfg.Secure,
		now:       time.Now,
		tracer:    otel.Tracer("github.com/pronoundb/pronoundb/internal/oauth"),
		logger:    logger,
	}
}

// CallbackPath is the path the provider redirects back to.
func CallbackPath(platform string) string {
	return "/oauth/" + platform + "/callback"
}

func compositeKey(platform, state string, intent Intent) string {
	return platform + "-" + state + "-" + intent.String()
}

/*
Authorize starts a flow and returns the provider URL to redirect the browser to.

Parameters:
  - writer: http.ResponseWriter (receives the state and intent cookies)
  - request: *http.Request (reads ?intent=)
  - platform: string

Returns:
  - string: Authorization URL
  - error: ErrUnknownPlatform, ErrInvalidIntent or store failures
*/
func (engine *Engine) Authorize(writer http.ResponseWriter, request *http.Request, platform string) (string, error) {
	provider, ok := engine.registry.Get(platform)
	if !ok {
		return "", ErrUnknownPlatform
	}

	intent, err := ParseIntent(request.URL.Query().Get("intent"))
	if err != nil {
		return "", err
	}

	state, err := sec.RandomString(stateBytes)
	if err != nil {
		return "", err
	}

	ctx := request.Context()
	key := compositeKey(platform, state, intent)
	if err := engine.states.Put(ctx, key, engine.now(), constants.OAuthStateTTL); err != nil {
		return "", err
	}

	var options []oauth2.AuthCodeOption
	if provider.UsePKCE {
		verifier := oauth2.GenerateVerifier()
		if err := engine.verifiers.Put(ctx, key, verifier, constants.OAuthStateTTL); err != nil {
			return "", err
		}
		options = append(options, oauth2.S256ChallengeOption(verifier))
	}

	engine.setFlowCookie(writer, platform, constants.OAuthStateCookieName, state)
	engine.setFlowCookie(writer, platform, constants.OAuthIntentCookieName, intent.String())

	return provider.config(engine.redirectURL(platform)).AuthCodeURL(state, options...), nil
}

/*
Callback completes a flow and returns the proven external account.

Description: The state is validated and consumed before any network call.
The returned intent is meaningful even on error, so the caller can pick the
right page to redirect to.

Returns:
  - *account.External: The authorized account
  - Intent: Login or link
  - error: ErrUnknownPlatform, ErrCSRF, ErrOAuthGeneric, ErrOAuthFetch or a provider *flash.Error
*/
func (engine *Engine) Callback(request *http.Request, platform string) (*account.External, Intent, error) {
	intent := IntentLogin
	if cookie, err := request.Cookie(constants.OAuthIntentCookieName); err == nil {
		if parsed, err := ParseIntent(cookie.Value); err == nil {
			intent = parsed
		}
	}

	provider, ok := engine.registry.Get(platform)
	if !ok {
		return nil, intent, ErrUnknownPlatform
	}

	ctx, span := engine.tracer.Start(request.Context(), "oauth.callback",
		trace.WithAttributes(attribute.String("oauth.platform", platform), attribute.String("oauth.intent", intent.String())),
	)
	defer span.End()

	verifier, err := engine.checkState(ctx, request, platform, provider)
	if err != nil {
		span.SetStatus(codes.Error, "state rejected")
		return nil, intent, err
	}

	external, err := engine.complete(ctx, request, platform, provider, verifier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, intent, err
	}

	span.SetStatus(codes.Ok, "")
	return external, intent, nil
}

// checkState validates and consumes the stored state, returning the PKCE
// verifier when the provider uses one.
func (engine *Engine) checkState(ctx context.Context, request *http.Request, platform string, provider *Provider) (string, error) {
	query := request.URL.Query()
	state := query.Get("state")
	code := query.Get("code")

	stateCookie, stateErr := request.Cookie(constants.OAuthStateCookieName)
	intentCookie, intentErr := request.Cookie(constants.OAuthIntentCookieName)
	if state == "" || code == "" || stateErr != nil || intentErr != nil || stateCookie.Value == "" {
		return "", ErrCSRF
	}

	intent, err := ParseIntent(intentCookie.Value)
	if err != nil || intentCookie.Value == "" {
		return "", ErrCSRF
	}

	key := compositeKey(platform, state, intent)
	expected := compositeKey(platform, stateCookie.Value, intent)
	if !sec.Equal([]byte(expected), []byte(key)) {
		return "", ErrCSRF
	}

	if _, ok, err := engine.states.Consume(ctx, key); err != nil || !ok {
		if err != nil {
			engine.logger.ErrorContext(ctx, "oauth_state_consume_failed", slog.String("platform", platform), slog.Any("error", err))
		}
		return "", ErrCSRF
	}

	if !provider.UsePKCE {
		return "", nil
	}

	verifier, ok, err := engine.verifiers.Consume(ctx, key)
	if err != nil || !ok || verifier == "" {
		return "", ErrCSRF
	}
	return verifier, nil
}

// complete exchanges the code and reads the profile, bounded by the upstream timeout.
func (engine *Engine) complete(ctx context.Context, request *http.Request, platform string, provider *Provider, verifier string) (*account.External, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.UpstreamTimeout)
	defer cancel()

	var options []oauth2.AuthCodeOption
	if verifier != "" {
		options = append(options, oauth2.VerifierOption(verifier))
	}

	exchangeCtx, exchangeSpan := engine.tracer.Start(ctx, "oauth.token_exchange")
	token, err := provider.config(engine.redirectURL(platform)).Exchange(
		context.WithValue(exchangeCtx, oauth2.HTTPClient, engine.client),
		request.URL.Query().Get("code"),
		options...,
	)
	exchangeSpan.End()

	if err != nil || token == nil || token.AccessToken == "" {
		engine.logger.WarnContext(ctx, "oauth_exchange_failed", slog.String("platform", platform), slog.Any("error", err))
		return nil, ErrOAuthGeneric
	}

	selfCtx, selfSpan := engine.tracer.Start(ctx, "oauth.get_self")
	external, err := provider.GetSelf(selfCtx, engine.client, token.AccessToken)
	selfSpan.End()

	if err != nil {
		var flashErr *flash.Error
		if errors.As(err, &flashErr) {
			return nil, flashErr
		}
		engine.logger.WarnContext(ctx, "oauth_profile_failed", slog.String("platform", platform), slog.Any("error", err))
		return nil, ErrOAuthFetch
	}
	if external == nil {
		return nil, ErrOAuthFetch
	}
	return external, nil
}

func (engine *Engine) redirectURL(platform string) string {
	return engine.publicURL + CallbackPath(platform)
}

func (engine *Engine) setFlowCookie(writer http.ResponseWriter, platform, name, value string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     CallbackPath(platform),
		MaxAge:   int(constants.OAuthStateTTL / time.Second),
		Secure:   engine.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// # HTTP Client

// NewHTTPClient returns the client used for provider calls. Every request
// carries the service User-Agent.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   constants.UpstreamTimeout,
		Transport: &userAgentTransport{base: http.DefaultTransport},
	}
}

type userAgentTransport struct {
	base http.RoundTripper
}

func (transport *userAgentTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	clone := request.Clone(request.Context())
	clone.Header.Set("User-Agent", constants.UserAgent)
	return transport.base.RoundTrip(clone)
}
