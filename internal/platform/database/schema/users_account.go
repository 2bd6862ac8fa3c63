// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema names the tables and columns used by the Postgres repositories,
// so SQL is assembled from one definition per table.
package schema

import "strings"

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Department   string
	IsActive     string
	CreatedAt    string
	UpdatedAt    string
	DeletedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	ID:           "id",
	Email:        "email",
	Name:         "name",
	PasswordHash: "passwordhash",
	Role:         "role",
	Department:   "department",
	IsActive:     "isactive",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
	DeletedAt:    "deletedat",
}

// Columns returns the columns every user read selects, in scan order.
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.Email, t.Name, t.PasswordHash, t.Role,
		t.Department, t.IsActive, t.CreatedAt, t.UpdatedAt,
	}
}

// SelectList returns [UserAccountTable.Columns] joined for a SELECT clause.
func (t UserAccountTable) SelectList() string {
	return strings.Join(t.Columns(), ", ")
}
