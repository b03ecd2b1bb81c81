// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package lookup_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pronoundb/pronoundb/internal/lookup"
	"github.com/pronoundb/pronoundb/internal/platform/statestore"
	"github.com/pronoundb/pronoundb/internal/users/account"
)

const (
	userA = "0190a5c4-7c1e-7b3a-9e52-3f1f2d6a8b10"
	userB = "0190a5c4-7c1e-7b3a-9e52-3f1f2d6a8b11"
)

// fakeRepository serves a fixed set of users and linked accounts.
type fakeRepository struct {
	users    map[string]*account.User
	accounts map[string]string
	lookups  [][]string
	counts   int
	err      error
}

func newFakeRepository() *fakeRepository {
	sparkles := "sparkles"
	return &fakeRepository{
		users: map[string]*account.User{
			userA: {ID: userA, Decoration: &sparkles, Pronouns: account.PronounSets{"en": {"she", "it"}}},
			userB: {ID: userB, Pronouns: account.PronounSets{}},
		},
		accounts: map[string]string{
			"discord/1": userA,
			"discord/2": userB,
			"github/1":  userB,
		},
	}
}

func (repository *fakeRepository) LookupPronouns(_ context.Context, platform string, accountIDs []string) ([]account.LookupResult, error) {
	if repository.err != nil {
		return nil, repository.err
	}
	repository.lookups = append(repository.lookups, accountIDs)

	var results []account.LookupResult
	for _, id := range accountIDs {
		userID, ok := repository.accounts[platform+"/"+id]
		if !ok {
			continue
		}
		user := repository.users[userID]
		results = append(results, account.LookupResult{AccountID: id, Decoration: user.Decoration, Pronouns: user.Pronouns})
	}
	return results, nil
}

func (repository *fakeRepository) FindUser(_ context.Context, id string) (*account.User, error) {
	if repository.err != nil {
		return nil, repository.err
	}
	return repository.users[id], nil
}

func (repository *fakeRepository) GetPronouns(_ context.Context, userID, locale string) ([]string, error) {
	if repository.err != nil {
		return nil, repository.err
	}
	user, ok := repository.users[userID]
	if !ok {
		return nil, nil
	}
	return user.Pronouns[locale], nil
}

func (repository *fakeRepository) CountUsers(context.Context) (int64, error) {
	if repository.err != nil {
		return 0, repository.err
	}
	repository.counts++
	return int64(len(repository.users)), nil
}

func (repository *fakeRepository) CountAccountsPerPlatform(context.Context) (map[string]int64, error) {
	if repository.err != nil {
		return nil, repository.err
	}
	return map[string]int64{"discord": 2, "github": 1}, nil
}

func newLookupService(t *testing.T, repository lookup.Repository) *lookup.Service {
	t.Helper()

	stats := statestore.NewMemory[account.Stats]()
	t.Cleanup(stats.Close)
	return lookup.NewService(repository, stats, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func makeIDs(count int) []string {
	ids := make([]string, count)
	for i := range ids {
		ids[i] = fmt.Sprintf("%d", i+1)
	}
	return ids
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{raw: "1", want: []string{"1"}},
		{raw: "1,2,3", want: []string{"1", "2", "3"}},
		{raw: "2,1,2,,1", want: []string{"2", "1"}},
		{raw: ",,,", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, lookup.ParseIDs(tt.raw))
		})
	}
}

/*
TestLookup_OnlyMatched verifies that unknown ids are omitted and resolved in
a single repository call.
*/
func TestLookup_OnlyMatched(t *testing.T) {
	repository := newFakeRepository()
	service := newLookupService(t, repository)

	result, err := service.Lookup(context.Background(), "discord", []string{"1", "404", "2"})

	require.NoError(t, err)
	assert.Len(t, repository.lookups, 1)
	assert.Equal(t, 3, result.Requested)
	assert.False(t, result.Complete())
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "sparkles", *result.Entries["1"].Decoration)
	assert.Equal(t, account.PronounSets{"en": {"she", "it"}}, result.Entries["1"].Sets)
	assert.Nil(t, result.Entries["2"].Decoration)
}

func TestLookup_Validation(t *testing.T) {
	tests := []struct {
		name     string
		platform string
		ids      []string
		wantErr  error
	}{
		{name: "fifty ids", platform: "discord", ids: makeIDs(50)},
		{name: "one id", platform: "github", ids: makeIDs(1)},
		{name: "fifty one ids", platform: "discord", ids: makeIDs(51), wantErr: lookup.ErrInvalidIDCount},
		{name: "no ids", platform: "discord", ids: nil, wantErr: lookup.ErrInvalidIDCount},
		{name: "unknown platform", platform: "myspace", ids: makeIDs(1), wantErr: lookup.ErrInvalidPlatform},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repository := newFakeRepository()
			service := newLookupService(t, repository)

			_, err := service.Lookup(context.Background(), tt.platform, tt.ids)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repository.lookups, "invalid lookups never reach the database")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLookup_RepositoryError(t *testing.T) {
	repository := newFakeRepository()
	repository.err = assert.AnError
	service := newLookupService(t, repository)

	_, err := service.Lookup(context.Background(), "discord", []string{"1"})

	assert.ErrorIs(t, err, assert.AnError)
}

func TestFindUser(t *testing.T) {
	service := newLookupService(t, newFakeRepository())

	user, err := service.FindUser(context.Background(), "0190A5C4-7C1E-7B3A-9E52-3F1F2D6A8B10")
	require.NoError(t, err)
	assert.Equal(t, userA, user.ID)
	assert.Equal(t, account.PronounSets{"en": {"she", "it"}}, user.Sets)

	_, err = service.FindUser(context.Background(), "0190a5c4-0000-7000-8000-000000000000")
	assert.ErrorIs(t, err, lookup.ErrUserNotFound)

	_, err = service.FindUser(context.Background(), "5f0a3e1b2c4d6e8f90a1b2c3")
	assert.ErrorIs(t, err, lookup.ErrInvalidUserID)
}

/*
TestStats_Cached verifies zero-filled platforms and that counters are only
recomputed once the cache expires.
*/
func TestStats_Cached(t *testing.T) {
	repository := newFakeRepository()
	service := newLookupService(t, repository)

	stats, err := service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Users)
	assert.Equal(t, int64(2), stats.Accounts["discord"])
	assert.Equal(t, int64(0), stats.Accounts["twitch"])
	assert.Len(t, stats.Accounts, len(account.Platforms))

	_, err = service.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repository.counts)
}
