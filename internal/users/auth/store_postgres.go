// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/workhub/internal/platform/database/schema"
	"github.com/taibuivan/workhub/internal/platform/dberr"
	"github.com/taibuivan/workhub/pkg/pointer"
)

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

var (
	sqlSelectUser = fmt.Sprintf(`SELECT %s FROM %s`, schema.UserAccount.SelectList(), schema.UserAccount.Table)

	sqlFindUserByID = fmt.Sprintf(`%s WHERE %s = $1 AND %s IS NULL`,
		sqlSelectUser, schema.UserAccount.ID, schema.UserAccount.DeletedAt)

	sqlFindUserByEmail = fmt.Sprintf(`%s WHERE lower(%s) = lower($1) AND %s IS NULL`,
		sqlSelectUser, schema.UserAccount.Email, schema.UserAccount.DeletedAt)

	sqlInsertUser = fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		schema.UserAccount.Table, schema.UserAccount.SelectList())
)

/*
ScanUser hydrates a [User] from a row selected with [schema.UserAccountTable.SelectList].

It is shared with other repositories that read users.account.
*/
func ScanUser(row pgx.Row) (*User, error) {
	var (
		user       User
		department *string
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.Role,
		&department,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Department = pointer.Val(department)
	return &user, nil
}

/*
FindByID retrieves a user record by their unique ID.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	user, err := ScanUser(repository.pool.QueryRow(context, sqlFindUserByID, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_user_repo_find_by_id_failed")
	}
	return user, nil
}

/*
FindByEmail retrieves a user record by their email address.

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	user, err := ScanUser(repository.pool.QueryRow(context, sqlFindUserByEmail, email))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_user_repo_find_by_email_failed")
	}
	return user, nil
}

/*
Create persists a new user record into the users.account table.

Timestamps are initialized when the caller leaves them zero.
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, sqlInsertUser,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.Role,
		pointer.NilIfZero(user.Department),
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return dberr.Wrap(err, "User", "postgres_user_repo_create_failed")
	}

	return nil
}
