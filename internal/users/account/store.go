// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import "context"

// # Repository Contracts

// Repository defines the persistence contract for users, linked accounts and pronouns.
type Repository interface {
	/*
		CreateUser atomically creates a user and its first external account.

		Returns:
		  - string: The new user id
		  - error: ErrAlreadyLinked if the account is already linked (nothing is persisted)
	*/
	CreateUser(context context.Context, external External) (string, error)

	// FindUser returns the user with the given id, or nil.
	FindUser(context context.Context, id string) (*User, error)

	// FindUserByExternalAccount returns the user owning an external account, or nil.
	FindUserByExternalAccount(context context.Context, platform, accountID string) (*User, error)

	// DeleteUser removes a user with its accounts and pronouns.
	DeleteUser(context context.Context, id string) error

	/*
		AddExternalAccount links an external account to a user. Linking an
		account the user already owns refreshes its name.

		Returns:
		  - error: ErrAccountTaken if another user owns the account
	*/
	AddExternalAccount(context context.Context, userID string, external External) error

	// UpdateExternalAccountName refreshes the cached display name of an account.
	UpdateExternalAccountName(context context.Context, external External) error

	// ListExternalAccounts returns every account linked to a user.
	ListExternalAccounts(context context.Context, userID string) ([]LinkedAccount, error)

	/*
		RemoveExternalAccount unlinks an account from a user.

		Returns:
		  - error: ErrOnlyAccount for the last account, ErrAccountNotFound if not owned
	*/
	RemoveExternalAccount(context context.Context, userID, platform, accountID string) error

	// GetPronouns returns the sets of one locale, or nil.
	GetPronouns(context context.Context, userID, locale string) ([]string, error)

	// SetPronouns creates or replaces the sets of one locale.
	SetPronouns(context context.Context, userID, locale string, sets []string) error

	// DeletePronouns removes the sets of one locale.
	DeletePronouns(context context.Context, userID, locale string) error

	// SetDecoration sets or clears the decoration of a user.
	SetDecoration(context context.Context, userID string, decoration *string) error

	// LookupPronouns resolves many account ids of one platform in a single round trip.
	// Ids without an account are omitted.
	LookupPronouns(context context.Context, platform string, accountIDs []string) ([]LookupResult, error)

	// CountUsers returns the number of users.
	CountUsers(context context.Context) (int64, error)

	// CountAccountsPerPlatform returns the number of linked accounts per platform.
	CountAccountsPerPlatform(context context.Context) (map[string]int64, error)
}

// QueryObserver times database queries. metrics.Collector satisfies it.
type QueryObserver interface {
	StartQuery(kind, op string) func()
}

type noopObserver struct{}

func (noopObserver) StartQuery(string, string) func() { return func() {} }
