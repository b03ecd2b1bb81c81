// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account owns PronounDB users, their linked third-party accounts and
their per-locale pronoun sets.

# Architecture

  - Entities: User, External, LinkedAccount, LookupResult.
  - Persistence: Repository, implemented on PostgreSQL by PostgresRepository.
  - Service: business rules (one account minimum, decoration ownership,
    pronoun set shape).
  - Delivery: the /api/v2/me self-service endpoints.

# Invariants

  - (platform, account id) belongs to at most one user.
  - A user keeps at least one linked account for as long as it exists.
*/
package account

import (
	"slices"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/flash"
)

// # Platforms

// Platforms lists every platform whose account ids can be looked up.
// minecraft and twitter have no OAuth2 flow; their accounts come from
// earlier imports.
var Platforms = []string{
	"discord",
	"github",
	"minecraft",
	"osu",
	"reddit",
	"sourcehut",
	"twitch",
	"twitter",
}

// IsPlatform reports whether platform is a supported platform.
func IsPlatform(platform string) bool {
	return slices.Contains(Platforms, platform)
}

// # Domain Entities

// PronounSets maps a locale to an ordered list of pronoun set identifiers.
type PronounSets map[string][]string

// User is a PronounDB account.
type User struct {
	ID                   string      `json:"id"`
	Decoration           *string     `json:"decoration"`
	AvailableDecorations []string    `json:"availableDecorations"`
	Pronouns             PronounSets `json:"sets"`
}

// External identifies an account on a third-party platform, as reported by
// that platform's profile endpoint.
type External struct {
	Platform    string `json:"platform"`
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
}

// LinkedAccount is an external account bound to a user.
type LinkedAccount = External

// LookupResult is the public data of the user owning an external account.
type LookupResult struct {
	AccountID  string
	Decoration *string
	Pronouns   PronounSets
}

// Stats aggregates public counters.
type Stats struct {
	Users    int64            `json:"users"`
	Accounts map[string]int64 `json:"accounts"`
}

// # Errors

var (
	// ErrAccountTaken is returned when an external account already belongs to another user.
	ErrAccountTaken = apperr.Conflict(string(flash.AccountTaken), flash.AccountTaken.Message())

	// ErrAlreadyLinked is returned when creating a user whose first external
	// account is already linked. Nothing is persisted in that case.
	ErrAlreadyLinked = apperr.Conflict(string(flash.AccountExists), flash.AccountExists.Message())

	// ErrOnlyAccount is returned when unlinking the last account of a user.
	ErrOnlyAccount = apperr.Conflict(string(flash.OnlyAccount), flash.OnlyAccount.Message())

	// ErrAccountNotFound is returned when an operation targets an account the user does not own.
	ErrAccountNotFound = apperr.NotFound("Account")

	// ErrUserNotFound is returned by mutations on a missing user.
	ErrUserNotFound = apperr.NotFound("User")
)
