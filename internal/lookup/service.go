// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package lookup serves the public, read-only PronounDB API consumed by the
browser extension and third-party integrations.

# Endpoints

  - GET /api/v2/lookup     : Bulk pronoun lookup by platform account ids.
  - GET /api/v2/users/{id} : Public profile of a PronounDB user.
  - GET /api/v2/users/self : Profile of the signed-in user, for extensions.
  - GET /api/v2/stats      : Aggregated counters.

The v1 endpoints (/api/v1/lookup, /api/v1/lookup-bulk, /api/v1/lookup/me)
are kept for older extension builds and answer with short pronoun codes.
GET /shields/{id}.json renders a shields.io badge.
*/
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pronoundb/pronoundb/internal/platform/apperr"
	"github.com/pronoundb/pronoundb/internal/platform/constants"
	"github.com/pronoundb/pronoundb/internal/platform/statestore"
	"github.com/pronoundb/pronoundb/internal/platform/validate"
	"github.com/pronoundb/pronoundb/internal/users/account"
	"github.com/pronoundb/pronoundb/pkg/slice"
)

const statsKey = "global"

var (
	ErrParamsRequired  = apperr.BadRequest("LOOKUP_PARAMS_REQUIRED", "`platform` and `ids` query parameters are required.")
	ErrInvalidPlatform = apperr.BadRequest("LOOKUP_INVALID_PLATFORM", "`platform` is not a valid platform.")
	ErrInvalidIDCount  = apperr.BadRequest("LOOKUP_INVALID_IDS", "`ids` must contain between 1 and 50 IDs.")
	ErrInvalidUserID   = apperr.BadRequest("INVALID_USER_ID", "Invalid user ID")
	ErrUserNotFound    = apperr.NotFound("User")
)

// Repository is the read side of the account store used by the public API.
// account.PostgresRepository satisfies it.
type Repository interface {
	LookupPronouns(context context.Context, platform string, accountIDs []string) ([]account.LookupResult, error)
	FindUser(context context.Context, id string) (*account.User, error)
	GetPronouns(context context.Context, userID, locale string) ([]string, error)
	CountUsers(context context.Context) (int64, error)
	CountAccountsPerPlatform(context context.Context) (map[string]int64, error)
}

// # Entities

// Entry is the public pronoun data of one account.
type Entry struct {
	Decoration *string             `json:"decoration"`
	Sets       account.PronounSets `json:"sets"`
}

// PublicUser is the public view of a PronounDB user.
type PublicUser struct {
	ID         string              `json:"id"`
	Decoration *string             `json:"decoration"`
	Sets       account.PronounSets `json:"sets"`
}

// Result holds the resolved entries of one lookup, keyed by account id.
type Result struct {
	Entries   map[string]Entry
	Requested int
}

// Complete reports whether every requested id resolved.
func (result *Result) Complete() bool {
	return len(result.Entries) == result.Requested
}

// # Service Layer

// Service implements the public read operations.
type Service struct {
	repository Repository
	stats      statestore.Store[account.Stats]
	logger     *slog.Logger
}

// NewService constructs a new [Service]. stats caches the aggregated counters.
func NewService(repository Repository, stats statestore.Store[account.Stats], logger *slog.Logger) *Service {
	return &Service{repository: repository, stats: stats, logger: logger}
}

// ParseIDs splits a comma separated id list, dropping empty entries and
// duplicates while keeping the first-seen order.
func ParseIDs(raw string) []string {
	ids := slice.Filter(strings.Split(raw, ","), func(id string) bool { return id != "" })
	return slice.Unique(ids)
}

/*
Lookup resolves the owners of many accounts of one platform in a single query.

Parameters:
  - platform: string (must be a supported platform)
  - ids: []string (distinct account ids, 1 to 50)

Returns:
  - *Result: Entries for the ids that resolved, unknown ids are omitted
  - error: ErrInvalidPlatform, ErrInvalidIDCount or storage failures
*/
func (service *Service) Lookup(context context.Context, platform string, ids []string) (*Result, error) {
	if !account.IsPlatform(platform) {
		return nil, ErrInvalidPlatform
	}
	if len(ids) < 1 || len(ids) > constants.LookupMaxIDs {
		return nil, ErrInvalidIDCount
	}

	found, err := service.repository.LookupPronouns(context, platform, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup_service_lookup_failed: %w", err)
	}

	entries := make(map[string]Entry, len(found))
	for _, item := range found {
		entries[item.AccountID] = Entry{Decoration: item.Decoration, Sets: item.Pronouns}
	}

	return &Result{Entries: entries, Requested: len(ids)}, nil
}

// FindUser returns the public profile of a user. id must be UUID shaped.
func (service *Service) FindUser(context context.Context, id string) (*PublicUser, error) {
	if !validate.IsUUID(id) {
		return nil, ErrInvalidUserID
	}

	user, err := service.repository.FindUser(context, strings.ToLower(id))
	if err != nil {
		return nil, fmt.Errorf("lookup_service_find_user_failed: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	return &PublicUser{ID: user.ID, Decoration: user.Decoration, Sets: user.Pronouns}, nil
}

/*
Stats returns the number of users and linked accounts per platform.

Description: Counting scans whole tables, so the result is cached for
constants.StatsCacheTTL. A failing cache is logged and bypassed.
*/
func (service *Service) Stats(context context.Context) (*account.Stats, error) {
	if cached, ok, err := service.stats.Get(context, statsKey); err != nil {
		service.logger.WarnContext(context, "stats_cache_read_failed", slog.Any("error", err))
	} else if ok {
		return &cached, nil
	}

	users, err := service.repository.CountUsers(context)
	if err != nil {
		return nil, fmt.Errorf("lookup_service_stats_failed: %w", err)
	}

	accounts, err := service.repository.CountAccountsPerPlatform(context)
	if err != nil {
		return nil, fmt.Errorf("lookup_service_stats_failed: %w", err)
	}
	if accounts == nil {
		accounts = make(map[string]int64, len(account.Platforms))
	}

	for _, platform := range account.Platforms {
		if _, ok := accounts[platform]; !ok {
			accounts[platform] = 0
		}
	}

	stats := account.Stats{Users: users, Accounts: accounts}
	if err := service.stats.Put(context, statsKey, stats, constants.StatsCacheTTL); err != nil {
		service.logger.WarnContext(context, "stats_cache_write_failed", slog.Any("error", err))
	}
	return &stats, nil
}
