// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and session token management.
//
// # Architecture
//
// This package isolates security-sensitive code (token signing, random
// material, constant-time comparison) from the domain logic.
package sec

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("sec: invalid session token")

// SessionClaims is the payload of a session token.
//
// The only application claim is the user id; everything else needed to serve
// a request is read from the database.
type SessionClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// SessionTokens signs and verifies HS256 session tokens.
type SessionTokens struct {
	key        []byte
	timeToLive time.Duration
	now        func() time.Time
}

// NewSessionTokens derives the signing key from secret once and returns a token service.
func NewSessionTokens(secret string, timeToLive time.Duration) (*SessionTokens, error) {
	if secret == "" {
		return nil, errors.New("sec: empty session secret")
	}
	return &SessionTokens{
		key:        DeriveKey(secret),
		timeToLive: timeToLive,
		now:        time.Now,
	}, nil
}

// WithClock overrides the clock used for issued-at and expiry, for tests.
func (service *SessionTokens) WithClock(now func() time.Time) *SessionTokens {
	service.now = now
	return service
}

// GenerateToken issues a token carrying userID that expires after the configured TTL.
func (service *SessionTokens) GenerateToken(userID string) (string, error) {
	issuedAt := service.now()
	claims := SessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(service.timeToLive)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(service.key)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken checks signature and expiry.
func (service *SessionTokens) VerifyToken(token string) (*SessionClaims, error) {
	return service.parse(token, jwt.WithTimeFunc(service.now), jwt.WithExpirationRequired())
}

// VerifyTokenLax checks the signature only. Expired tokens are accepted so
// read-only consumers can keep showing the data of a stale session.
func (service *SessionTokens) VerifyTokenLax(token string) (*SessionClaims, error) {
	return service.parse(token, jwt.WithoutClaimsValidation())
}

func (service *SessionTokens) parse(token string, options ...jwt.ParserOption) (*SessionClaims, error) {
	options = append(options, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return service.key, nil
	}, options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
