// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package account (Postgres) implements the storage layer for users.

# Schema Table Mapping
  - users: Identity and decoration data.
  - accounts: External accounts, keyed by (platform, account_id).
  - pronouns: One row of ordered sets per (user, locale).

Uniqueness of linked accounts is enforced by the accounts primary key, so
conflicting links are resolved with ON CONFLICT rather than by inspecting
driver error codes.
*/
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pronoundb/pronoundb/internal/platform/database/schema"
	"github.com/pronoundb/pronoundb/internal/platform/dberr"
	"github.com/pronoundb/pronoundb/internal/platform/postgres"
)

// # Repository Implementation

// PostgresRepository implements [Repository] using pgx.
type PostgresRepository struct {
	db       postgres.DB
	observer QueryObserver
}

// NewPostgresRepository creates a repository on top of a pool (or any [postgres.DB]).
// observer may be nil.
func NewPostgresRepository(db postgres.DB, observer QueryObserver) *PostgresRepository {
	if observer == nil {
		observer = noopObserver{}
	}
	return &PostgresRepository{db: db, observer: observer}
}

// userColumns selects a user together with its pronouns aggregated as a JSON object.
var userColumns = fmt.Sprintf(`
	u.%[1]s::text, u.%[2]s, u.%[3]s,
	coalesce((SELECT jsonb_object_agg(p.%[5]s, p.%[6]s) FROM %[4]s p WHERE p.%[7]s = u.%[1]s), '{}'::jsonb)`,
	schema.Users.ID, schema.Users.Decoration, schema.Users.AvailableDecorations,
	schema.Pronouns.Table, schema.Pronouns.Locale, schema.Pronouns.Sets, schema.Pronouns.UserID,
)

func scanUser(row pgx.Row) (*User, error) {
	user := &User{}
	if err := row.Scan(&user.ID, &user.Decoration, &user.AvailableDecorations, &user.Pronouns); err != nil {
		return nil, err
	}
	if user.AvailableDecorations == nil {
		user.AvailableDecorations = []string{}
	}
	if user.Pronouns == nil {
		user.Pronouns = PronounSets{}
	}
	return user, nil
}

// # User Methods

/*
CreateUser inserts a user and its first account in one transaction.

Description: The account insert uses ON CONFLICT DO NOTHING. When no row comes
back the account is already linked and the transaction is rolled back, so no
orphan user survives.

Parameters:
  - context: context.Context
  - external: External

Returns:
  - string: New user id (UUIDv7)
  - error: ErrAlreadyLinked or database failure
*/
func (repository *PostgresRepository) CreateUser(context context.Context, external External) (string, error) {
	defer repository.observer.StartQuery("insert", "create_user")()

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("postgres_account_repo_create_user_failed: %w", err)
	}

	insertUser := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1)`, schema.Users.Table, schema.Users.ID)
	insertAccount := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%s, %s) DO NOTHING
		RETURNING %s::text`,
		schema.Accounts.Table,
		schema.Accounts.Platform, schema.Accounts.AccountID, schema.Accounts.AccountName, schema.Accounts.UserID,
		schema.Accounts.Platform, schema.Accounts.AccountID,
		schema.Accounts.UserID,
	)

	err = postgres.WithTx(context, repository.db, func(tx postgres.Querier) error {
		if _, err := tx.Exec(context, insertUser, id.String()); err != nil {
			return err
		}

		var owner string
		err := tx.QueryRow(context, insertAccount,
			external.Platform, external.AccountID, external.AccountName, id.String(),
		).Scan(&owner)
		if dberr.IsNoRows(err) {
			return ErrAlreadyLinked
		}
		return err
	})

	if err != nil {
		if errors.Is(err, ErrAlreadyLinked) {
			return "", ErrAlreadyLinked
		}
		return "", dberr.Wrap(err, "postgres_account_repo_create_user")
	}

	return id.String(), nil
}

// FindUser returns nil, nil when no user has the given id.
func (repository *PostgresRepository) FindUser(context context.Context, id string) (*User, error) {
	defer repository.observer.StartQuery("select", "find_user")()

	query := fmt.Sprintf(`SELECT %s FROM %s u WHERE u.%s = $1`, userColumns, schema.Users.Table, schema.Users.ID)

	user, err := scanUser(repository.db.QueryRow(context, query, id))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(err, "postgres_account_repo_find_user")
	}
	return user, nil
}

// FindUserByExternalAccount returns nil, nil when the account is not linked.
func (repository *PostgresRepository) FindUserByExternalAccount(context context.Context, platform, accountID string) (*User, error) {
	defer repository.observer.StartQuery("select", "find_user_by_account")()

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s u
		JOIN %s a ON a.%s = u.%s
		WHERE a.%s = $1 AND a.%s = $2`,
		userColumns,
		schema.Users.Table,
		schema.Accounts.Table, schema.Accounts.UserID, schema.Users.ID,
		schema.Accounts.Platform, schema.Accounts.AccountID,
	)

	user, err := scanUser(repository.db.QueryRow(context, query, platform, accountID))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(err, "postgres_account_repo_find_user_by_account")
	}
	return user, nil
}

// DeleteUser relies on ON DELETE CASCADE for accounts and pronouns.
func (repository *PostgresRepository) DeleteUser(context context.Context, id string) error {
	defer repository.observer.StartQuery("delete", "delete_user")()

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.Users.Table, schema.Users.ID)
	tag, err := repository.db.Exec(context, query, id)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_repo_delete_user")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// # External Account Methods

/*
AddExternalAccount links an account to a user.

Description: The upsert only touches the row when it already belongs to the
same user. A row owned by someone else makes RETURNING yield nothing.

Returns:
  - error: ErrAccountTaken or database failure
*/
func (repository *PostgresRepository) AddExternalAccount(context context.Context, userID string, external External) error {
	defer repository.observer.StartQuery("insert", "add_account")()

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s, %[5]s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (%[2]s, %[3]s) DO UPDATE SET %[4]s = EXCLUDED.%[4]s
		WHERE %[1]s.%[5]s = EXCLUDED.%[5]s
		RETURNING %[5]s::text`,
		schema.Accounts.Table,
		schema.Accounts.Platform, schema.Accounts.AccountID, schema.Accounts.AccountName, schema.Accounts.UserID,
	)

	var owner string
	err := repository.db.QueryRow(context, query,
		external.Platform, external.AccountID, external.AccountName, userID,
	).Scan(&owner)

	if err != nil {
		if dberr.IsNoRows(err) {
			return ErrAccountTaken
		}
		return dberr.Wrap(err, "postgres_account_repo_add_account")
	}
	return nil
}

func (repository *PostgresRepository) UpdateExternalAccountName(context context.Context, external External) error {
	defer repository.observer.StartQuery("update", "update_account_name")()

	query := fmt.Sprintf(`UPDATE %s SET %s = $3 WHERE %s = $1 AND %s = $2`,
		schema.Accounts.Table, schema.Accounts.AccountName,
		schema.Accounts.Platform, schema.Accounts.AccountID,
	)

	if _, err := repository.db.Exec(context, query, external.Platform, external.AccountID, external.AccountName); err != nil {
		return dberr.Wrap(err, "postgres_account_repo_update_account_name")
	}
	return nil
}

func (repository *PostgresRepository) ListExternalAccounts(context context.Context, userID string) ([]LinkedAccount, error) {
	defer repository.observer.StartQuery("select", "list_accounts")()

	query := fmt.Sprintf(`
		SELECT %s, %s, %s FROM %s
		WHERE %s = $1
		ORDER BY %s, %s`,
		schema.Accounts.Platform, schema.Accounts.AccountID, schema.Accounts.AccountName,
		schema.Accounts.Table,
		schema.Accounts.UserID,
		schema.Accounts.Platform, schema.Accounts.AccountID,
	)

	rows, err := repository.db.Query(context, query, userID)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_list_accounts")
	}
	defer rows.Close()

	accounts := []LinkedAccount{}
	for rows.Next() {
		var account LinkedAccount
		if err := rows.Scan(&account.Platform, &account.AccountID, &account.AccountName); err != nil {
			return nil, dberr.Wrap(err, "postgres_account_repo_list_accounts_scan")
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_list_accounts")
	}
	return accounts, nil
}

/*
RemoveExternalAccount unlinks an account while keeping at least one.

Description: The user row is locked first so two concurrent unlinks cannot
both observe two remaining accounts.

Returns:
  - error: ErrOnlyAccount, ErrAccountNotFound or database failure
*/
func (repository *PostgresRepository) RemoveExternalAccount(context context.Context, userID, platform, accountID string) error {
	defer repository.observer.StartQuery("delete", "remove_account")()

	lockUser := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 FOR UPDATE`,
		schema.Users.ID, schema.Users.Table, schema.Users.ID)
	countAccounts := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1`,
		schema.Accounts.Table, schema.Accounts.UserID)
	deleteAccount := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2 AND %s = $3`,
		schema.Accounts.Table, schema.Accounts.UserID, schema.Accounts.Platform, schema.Accounts.AccountID)

	err := postgres.WithTx(context, repository.db, func(tx postgres.Querier) error {
		if _, err := tx.Exec(context, lockUser, userID); err != nil {
			return err
		}

		var count int64
		if err := tx.QueryRow(context, countAccounts, userID).Scan(&count); err != nil {
			return err
		}
		if count <= 1 {
			return ErrOnlyAccount
		}

		tag, err := tx.Exec(context, deleteAccount, userID, platform, accountID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAccountNotFound
		}
		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrOnlyAccount):
		return ErrOnlyAccount
	case errors.Is(err, ErrAccountNotFound):
		return ErrAccountNotFound
	default:
		return dberr.Wrap(err, "postgres_account_repo_remove_account")
	}
}

// # Pronoun Methods

func (repository *PostgresRepository) GetPronouns(context context.Context, userID, locale string) ([]string, error) {
	defer repository.observer.StartQuery("select", "get_pronouns")()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		schema.Pronouns.Sets, schema.Pronouns.Table, schema.Pronouns.UserID, schema.Pronouns.Locale)

	var sets []string
	err := repository.db.QueryRow(context, query, userID, locale).Scan(&sets)
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, nil
		}
		return nil, dberr.Wrap(err, "postgres_account_repo_get_pronouns")
	}
	return sets, nil
}

func (repository *PostgresRepository) SetPronouns(context context.Context, userID, locale string, sets []string) error {
	defer repository.observer.StartQuery("update", "set_pronouns")()

	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, %[3]s, %[4]s)
		VALUES ($1, $2, $3)
		ON CONFLICT (%[2]s, %[3]s) DO UPDATE SET %[4]s = EXCLUDED.%[4]s`,
		schema.Pronouns.Table, schema.Pronouns.UserID, schema.Pronouns.Locale, schema.Pronouns.Sets,
	)

	if _, err := repository.db.Exec(context, query, userID, locale, sets); err != nil {
		return dberr.Wrap(err, "postgres_account_repo_set_pronouns")
	}
	return nil
}

func (repository *PostgresRepository) DeletePronouns(context context.Context, userID, locale string) error {
	defer repository.observer.StartQuery("delete", "delete_pronouns")()

	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1 AND %s = $2`,
		schema.Pronouns.Table, schema.Pronouns.UserID, schema.Pronouns.Locale)

	if _, err := repository.db.Exec(context, query, userID, locale); err != nil {
		return dberr.Wrap(err, "postgres_account_repo_delete_pronouns")
	}
	return nil
}

func (repository *PostgresRepository) SetDecoration(context context.Context, userID string, decoration *string) error {
	defer repository.observer.StartQuery("update", "set_decoration")()

	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.Users.Table, schema.Users.Decoration, schema.Users.ID)

	tag, err := repository.db.Exec(context, query, userID, decoration)
	if err != nil {
		return dberr.Wrap(err, "postgres_account_repo_set_decoration")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// # Lookup Methods

/*
LookupPronouns resolves many account ids of one platform with a single query.

Parameters:
  - context: context.Context
  - platform: string
  - accountIDs: []string (already deduplicated by the caller)

Returns:
  - []LookupResult: One entry per matched id; unmatched ids are absent
  - error: Database failure
*/
func (repository *PostgresRepository) LookupPronouns(context context.Context, platform string, accountIDs []string) ([]LookupResult, error) {
	defer repository.observer.StartQuery("select", "lookup")()

	query := fmt.Sprintf(`
		SELECT a.%[1]s, u.%[2]s,
			coalesce((SELECT jsonb_object_agg(p.%[5]s, p.%[6]s) FROM %[4]s p WHERE p.%[7]s = u.%[3]s), '{}'::jsonb)
		FROM %[8]s a
		JOIN %[9]s u ON u.%[3]s = a.%[10]s
		WHERE a.%[11]s = $1 AND a.%[1]s = ANY($2)`,
		schema.Accounts.AccountID, schema.Users.Decoration, schema.Users.ID,
		schema.Pronouns.Table, schema.Pronouns.Locale, schema.Pronouns.Sets, schema.Pronouns.UserID,
		schema.Accounts.Table, schema.Users.Table, schema.Accounts.UserID, schema.Accounts.Platform,
	)

	rows, err := repository.db.Query(context, query, platform, accountIDs)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_lookup")
	}
	defer rows.Close()

	results := make([]LookupResult, 0, len(accountIDs))
	for rows.Next() {
		var result LookupResult
		if err := rows.Scan(&result.AccountID, &result.Decoration, &result.Pronouns); err != nil {
			return nil, dberr.Wrap(err, "postgres_account_repo_lookup_scan")
		}
		if result.Pronouns == nil {
			result.Pronouns = PronounSets{}
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_lookup")
	}
	return results, nil
}

// # Stats Methods

func (repository *PostgresRepository) CountUsers(context context.Context) (int64, error) {
	defer repository.observer.StartQuery("select", "count_users")()

	var count int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, schema.Users.Table)
	if err := repository.db.QueryRow(context, query).Scan(&count); err != nil {
		return 0, dberr.Wrap(err, "postgres_account_repo_count_users")
	}
	return count, nil
}

func (repository *PostgresRepository) CountAccountsPerPlatform(context context.Context) (map[string]int64, error) {
	defer repository.observer.StartQuery("select", "count_accounts")()

	query := fmt.Sprintf(`SELECT %[1]s, count(*) FROM %[2]s GROUP BY %[1]s`,
		schema.Accounts.Platform, schema.Accounts.Table)

	rows, err := repository.db.Query(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_count_accounts")
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var platform string
		var count int64
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, dberr.Wrap(err, "postgres_account_repo_count_accounts_scan")
		}
		counts[platform] = count
	}

	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "postgres_account_repo_count_accounts")
	}
	return counts, nil
}
