// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/pronoundb/pronoundb/internal/users/account"
)

// memoryRepository is an in-memory [account.Repository].
type memoryRepository struct {
	mu       sync.Mutex
	users    map[string]*account.User
	accounts map[string]string // platform/id -> user id
	names    map[string]string
	nextID   int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		users:    map[string]*account.User{},
		accounts: map[string]string{},
		names:    map[string]string{},
	}
}

func accountKey(platform, id string) string { return platform + "/" + id }

func (repository *memoryRepository) CreateUser(_ context.Context, external account.External) (string, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	key := accountKey(external.Platform, external.AccountID)
	if _, ok := repository.accounts[key]; ok {
		return "", account.ErrAlreadyLinked
	}

	repository.nextID++
	id := fmt.Sprintf("00000000-0000-7000-8000-%012d", repository.nextID)
	repository.users[id] = &account.User{ID: id, AvailableDecorations: []string{}, Pronouns: account.PronounSets{}}
	repository.accounts[key] = id
	repository.names[key] = external.AccountName
	return id, nil
}

func (repository *memoryRepository) FindUser(_ context.Context, id string) (*account.User, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[id]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

func (repository *memoryRepository) FindUserByExternalAccount(ctx context.Context, platform, accountID string) (*account.User, error) {
	repository.mu.Lock()
	id, ok := repository.accounts[accountKey(platform, accountID)]
	repository.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return repository.FindUser(ctx, id)
}

func (repository *memoryRepository) DeleteUser(_ context.Context, id string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if _, ok := repository.users[id]; !ok {
		return account.ErrUserNotFound
	}
	delete(repository.users, id)
	for key, owner := range repository.accounts {
		if owner == id {
			delete(repository.accounts, key)
		}
	}
	return nil
}

func (repository *memoryRepository) AddExternalAccount(_ context.Context, userID string, external account.External) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	key := accountKey(external.Platform, external.AccountID)
	if owner, ok := repository.accounts[key]; ok && owner != userID {
		return account.ErrAccountTaken
	}
	repository.accounts[key] = userID
	repository.names[key] = external.AccountName
	return nil
}

func (repository *memoryRepository) UpdateExternalAccountName(_ context.Context, external account.External) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	repository.names[accountKey(external.Platform, external.AccountID)] = external.AccountName
	return nil
}

func (repository *memoryRepository) ListExternalAccounts(_ context.Context, userID string) ([]account.LinkedAccount, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	accounts := []account.LinkedAccount{}
	for key, owner := range repository.accounts {
		if owner != userID {
			continue
		}
		platform, id, _ := strings.Cut(key, "/")
		accounts = append(accounts, account.LinkedAccount{Platform: platform, AccountID: id, AccountName: repository.names[key]})
	}
	slices.SortFunc(accounts, func(a, b account.LinkedAccount) int {
		return strings.Compare(accountKey(a.Platform, a.AccountID), accountKey(b.Platform, b.AccountID))
	})
	return accounts, nil
}

func (repository *memoryRepository) RemoveExternalAccount(_ context.Context, userID, platform, accountID string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	count := 0
	for _, owner := range repository.accounts {
		if owner == userID {
			count++
		}
	}
	if count <= 1 {
		return account.ErrOnlyAccount
	}

	key := accountKey(platform, accountID)
	if repository.accounts[key] != userID {
		return account.ErrAccountNotFound
	}
	delete(repository.accounts, key)
	return nil
}

func (repository *memoryRepository) GetPronouns(_ context.Context, userID, locale string) ([]string, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if user, ok := repository.users[userID]; ok {
		return user.Pronouns[locale], nil
	}
	return nil, nil
}

func (repository *memoryRepository) SetPronouns(_ context.Context, userID, locale string, sets []string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[userID]
	if !ok {
		return account.ErrUserNotFound
	}
	pronouns := account.PronounSets{}
	for k, v := range user.Pronouns {
		pronouns[k] = v
	}
	pronouns[locale] = sets
	user.Pronouns = pronouns
	return nil
}

func (repository *memoryRepository) DeletePronouns(_ context.Context, userID, locale string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	if user, ok := repository.users[userID]; ok {
		pronouns := account.PronounSets{}
		for k, v := range user.Pronouns {
			if k != locale {
				pronouns[k] = v
			}
		}
		user.Pronouns = pronouns
	}
	return nil
}

func (repository *memoryRepository) SetDecoration(_ context.Context, userID string, decoration *string) error {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	user, ok := repository.users[userID]
	if !ok {
		return account.ErrUserNotFound
	}
	user.Decoration = decoration
	return nil
}

func (repository *memoryRepository) LookupPronouns(_ context.Context, platform string, accountIDs []string) ([]account.LookupResult, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()

	var results []account.LookupResult
	for _, id := range accountIDs {
		owner, ok := repository.accounts[accountKey(platform, id)]
		if !ok {
			continue
		}
		user := repository.users[owner]
		results = append(results, account.LookupResult{AccountID: id, Decoration: user.Decoration, Pronouns: user.Pronouns})
	}
	return results, nil
}

func (repository *memoryRepository) CountUsers(context.Context) (int64, error) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	return int64(len(repository.users)), nil
}

func (repository *memoryRepository) CountAccountsPerPlatform(context.Context) (map[string]int64, error) {
	return map[string]int64{}, nil
}

// grant makes a decoration available to a user.
func (repository *memoryRepository) grant(userID, decoration string) {
	repository.mu.Lock()
	defer repository.mu.Unlock()
	user := repository.users[userID]
	user.AvailableDecorations = append(user.AvailableDecorations, decoration)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubGuard accepts exactly one CSRF token value.
type stubGuard struct {
	token   string
	cleared bool
}

func (guard *stubGuard) CreateCsrf(context.Context, *http.Request) (string, error) {
	return guard.token, nil
}

func (guard *stubGuard) ValidateCsrf(_ context.Context, _ *http.Request, supplied string) (bool, error) {
	return supplied == guard.token, nil
}

func (guard *stubGuard) ClearCookie(http.ResponseWriter) {
	guard.cleared = true
}
