// Copyright (c) 2026 PronounDB. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns of the PronounDB database so
// queries never hardcode identifiers.
package schema

// UsersTable represents the 'users' table.
type UsersTable struct {
	Table                string
	ID                   string
	Decoration           string
	AvailableDecorations string
}

// Users is the schema definition for users.
var Users = UsersTable{
	Table:                "users",
	ID:                   "id",
	Decoration:           "decoration",
	AvailableDecorations: "available_decorations",
}

func (t UsersTable) Columns() []string {
	return []string{t.ID, t.Decoration, t.AvailableDecorations}
}
