// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// AccountsTable represents the 'accounts' table.
// (platform, account_id) is the primary key.
type AccountsTable struct {
	Table       string
	Platform    string
	AccountID   string
	AccountName string
	UserID      string
}

// Accounts is the schema definition for accounts.
var Accounts = AccountsTable{
	Table:       "accounts",
	Platform:    "platform",
	AccountID:   "account_id",
	AccountName: "account_name",
	UserID:      "user_id",
}

func (t AccountsTable) Columns() []string {
	return []string{t.Platform, t.AccountID, t.AccountName, t.UserID}
}
