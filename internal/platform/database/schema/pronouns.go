// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package schema

// PronounsTable represents the 'pronouns' table, one row per (user, locale).
type PronounsTable struct {
	Table  string
	UserID string
	Locale string
	Sets   string
}

// Pronouns is the schema definition for pronouns.
var Pronouns = PronounsTable{
	Table:  "pronouns",
	UserID: "user_id",
	Locale: "locale",
	Sets:   "sets",
}

func (t PronounsTable) Columns() []string {
	return []string{t.UserID, t.Locale, t.Sets}
}
