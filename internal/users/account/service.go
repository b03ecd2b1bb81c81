// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/text/language"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/flash"
	"github.com/pronoundb/pronoundb/internal/platform/validate"
)

// MaxPronounSets is the number of sets a user may declare per locale.
const MaxPronounSets = 3

var (
	errUnknownLocale     = apperr.BadRequest(string(flash.UnknownLocale), flash.UnknownLocale.Message())
	errDuplicatePronouns = apperr.BadRequest(string(flash.DuplicatePronouns), flash.DuplicatePronouns.Message())
	errLockedDecoration  = apperr.Forbidden(string(flash.LockedDecoration), flash.LockedDecoration.Message())
)

// # Service Layer

// Service orchestrates business logic for users and their linked accounts.
type Service struct {
	repository Repository
	logger     *slog.Logger
}

// NewService constructs a new [Service].
func NewService(repository Repository, logger *slog.Logger) *Service {
	return &Service{repository: repository, logger: logger}
}

// Profile is the private view of a user returned to its owner.
type Profile struct {
	*User
	Accounts []LinkedAccount `json:"accounts"`
}

// # Identity

// FindUser returns nil when no user has the given id.
func (service *Service) FindUser(context context.Context, id string) (*User, error) {
	user, err := service.repository.FindUser(context, id)
	if err != nil {
		return nil, fmt.Errorf("account_service_find_user_failed: %w", err)
	}
	return user, nil
}

/*
FindByExternalAccount resolves the owner of an external account and refreshes
the cached account name when the user is found.

Returns:
  - *User: Owner, or nil when the account is not linked
  - error: Storage failures
*/
func (service *Service) FindByExternalAccount(context context.Context, external External) (*User, error) {
	user, err := service.repository.FindUserByExternalAccount(context, external.Platform, external.AccountID)
	if err != nil {
		return nil, fmt.Errorf("account_service_find_by_external_failed: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if err := service.repository.UpdateExternalAccountName(context, external); err != nil {
		service.logger.Warn("account_name_refresh_failed",
			slog.String("platform", external.Platform),
			slog.Any("error", err),
		)
	}
	return user, nil
}

// Register creates a user from its first external account.
// It returns ErrAlreadyLinked when the account already belongs to a user.
func (service *Service) Register(context context.Context, external External) (string, error) {
	id, err := service.repository.CreateUser(context, external)
	if err != nil {
		return "", err
	}

	service.logger.Info("user_registered",
		slog.String("user_id", id),
		slog.String("platform", external.Platform),
	)
	return id, nil
}

// Profile returns the user with its linked accounts.
func (service *Service) Profile(context context.Context, userID string) (*Profile, error) {
	user, err := service.FindUser(context, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	accounts, err := service.repository.ListExternalAccounts(context, userID)
	if err != nil {
		return nil, fmt.Errorf("account_service_profile_failed: %w", err)
	}

	return &Profile{User: user, Accounts: accounts}, nil
}

// DeleteUser removes the user and everything attached to it.
func (service *Service) DeleteUser(context context.Context, userID string) error {
	if err := service.repository.DeleteUser(context, userID); err != nil {
		return err
	}

	service.logger.Warn("user_deleted", slog.String("user_id", userID))
	return nil
}

// # Linked Accounts

// LinkAccount binds an external account to an existing user.
// It returns ErrAccountTaken when another user owns the account.
func (service *Service) LinkAccount(context context.Context, userID string, external External) error {
	if err := service.repository.AddExternalAccount(context, userID, external); err != nil {
		return err
	}

	service.logger.Info("account_linked",
		slog.String("user_id", userID),
		slog.String("platform", external.Platform),
	)
	return nil
}

// UnlinkAccount removes a linked account. The last account can't be removed.
func (service *Service) UnlinkAccount(context context.Context, userID, platform, accountID string) error {
	if !IsPlatform(platform) {
		return ErrAccountNotFound
	}
	return service.repository.RemoveExternalAccount(context, userID, platform, accountID)
}

// # Pronouns

/*
SetPronouns replaces the pronoun sets of one locale.

Description: The locale must be a valid BCP 47 tag and is stored in its
canonical form. Sets are ordered, non-empty, unique, and at most [MaxPronounSets].

Parameters:
  - context: context.Context
  - userID: string
  - locale: string
  - sets: []string

Returns:
  - string: The canonical locale
  - error: Validation or storage failures
*/
func (service *Service) SetPronouns(context context.Context, userID, locale string, sets []string) (string, error) {
	canonical, err := CanonicalLocale(locale)
	if err != nil {
		return "", err
	}

	if err := ValidateSets(sets); err != nil {
		return "", err
	}

	if err := service.repository.SetPronouns(context, userID, canonical, sets); err != nil {
		return "", fmt.Errorf("account_service_set_pronouns_failed: %w", err)
	}
	return canonical, nil
}

// ClearPronouns removes the sets of one locale. Clearing an empty locale is a no-op.
func (service *Service) ClearPronouns(context context.Context, userID, locale string) error {
	canonical, err := CanonicalLocale(locale)
	if err != nil {
		return err
	}

	if err := service.repository.DeletePronouns(context, userID, canonical); err != nil {
		return fmt.Errorf("account_service_clear_pronouns_failed: %w", err)
	}
	return nil
}

// CanonicalLocale parses locale as a BCP 47 tag.
func CanonicalLocale(locale string) (string, error) {
	if locale == "" {
		return "", errUnknownLocale
	}

	tag, err := language.Parse(locale)
	if err != nil {
		return "", errUnknownLocale
	}
	return tag.String(), nil
}

// ValidateSets checks the shape of a list of pronoun sets.
func ValidateSets(sets []string) error {
	v := &validate.Validator{}
	v.Range("sets", len(sets), 1, MaxPronounSets)
	for i, set := range sets {
		v.Required(fmt.Sprintf("sets[%d]", i), set)
	}
	if err := v.Err(); err != nil {
		return err
	}

	for i, set := range sets {
		if slices.Contains(sets[:i], set) {
			return errDuplicatePronouns
		}
	}
	return nil
}

// # Decoration

// SetDecoration sets or clears (nil) the decoration of a user. Only
// decorations listed in the user's available decorations can be selected.
func (service *Service) SetDecoration(context context.Context, userID string, decoration *string) error {
	if decoration != nil {
		user, err := service.FindUser(context, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return ErrUserNotFound
		}
		if !slices.Contains(user.AvailableDecorations, *decoration) {
			return errLockedDecoration
		}
	}

	if err := service.repository.SetDecoration(context, userID, decoration); err != nil {
		return err
	}
	return nil
}
