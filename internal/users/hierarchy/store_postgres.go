// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/constants"
	"github.com/taibuivan/workhub/internal/platform/database/schema"
	"github.com/taibuivan/workhub/internal/platform/dberr"
	"github.com/taibuivan/workhub/internal/platform/postgres"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/internal/users/auth"
)

// errTxRequired is returned by LockRole outside a transaction.
var errTxRequired = errors.New("hierarchy: role lock requires a transaction")

// PostgresRepository implements [Repository] on users.account.
//
// The zero-transaction value runs each call on the pool; the value handed to
// [Repository.Transact] callbacks runs every call on the transaction.
type PostgresRepository struct {
	pool *pgxpool.Pool
	db   postgres.Querier
	inTx bool
}

// NewRepository creates a new PostgreSQL implementation of [Repository].
func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool, db: pool}
}

var (
	account = schema.UserAccount

	sqlSelectAccount = fmt.Sprintf(`SELECT %s FROM %s`, account.SelectList(), account.Table)

	sqlFindByID = fmt.Sprintf(`%s WHERE %s = $1 AND %s IS NULL`,
		sqlSelectAccount, account.ID, account.DeletedAt)

	sqlFindByEmail = fmt.Sprintf(`%s WHERE lower(%s) = lower($1) AND %s IS NULL`,
		sqlSelectAccount, account.Email, account.DeletedAt)

	sqlUpdateRole = fmt.Sprintf(`UPDATE %s SET %s = $2, %s = now() WHERE %s = $1 AND %s IS NULL RETURNING %s`,
		account.Table, account.Role, account.UpdatedAt, account.ID, account.DeletedAt, account.SelectList())

	sqlSoftDelete = fmt.Sprintf(`UPDATE %s SET %s = FALSE, %s = now(), %s = now() WHERE %s = $1 AND %s IS NULL`,
		account.Table, account.IsActive, account.DeletedAt, account.UpdatedAt, account.ID, account.DeletedAt)

	sqlCountByRole = fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s = $1 AND %s IS NULL`,
		account.Table, account.Role, account.DeletedAt)

	sqlLockRole = `SELECT pg_advisory_xact_lock($1, $2)`
)

/*
FindByID retrieves a user that has not been removed.

Returns:
  - *auth.User: Hydrated entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresRepository) FindByID(ctx context.Context, id string) (*auth.User, error) {
	user, err := auth.ScanUser(repository.db.QueryRow(ctx, sqlFindByID, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_hierarchy_repo_find_by_id_failed")
	}
	return user, nil
}

/*
FindByIDForUpdate retrieves a user and locks its row (SELECT ... FOR UPDATE)
until the transaction ends. Outside a transaction the lock is released at once.
*/
func (repository *PostgresRepository) FindByIDForUpdate(ctx context.Context, id string) (*auth.User, error) {
	user, err := auth.ScanUser(repository.db.QueryRow(ctx, sqlFindByID+` FOR UPDATE`, id))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_hierarchy_repo_find_for_update_failed")
	}
	return user, nil
}

// FindByEmail retrieves a user by email, case-insensitively.
func (repository *PostgresRepository) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := auth.ScanUser(repository.db.QueryRow(ctx, sqlFindByEmail, email))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_hierarchy_repo_find_by_email_failed")
	}
	return user, nil
}

/*
FindAll lists users matching filter, ordered by name. Ordering by locale is
left to the caller.
*/
func (repository *PostgresRepository) FindAll(ctx context.Context, filter Filter) ([]*auth.User, error) {
	var (
		conditions = []string{account.DeletedAt + " IS NULL"}
		arguments  []any
	)

	if !filter.IncludeInactive {
		conditions = append(conditions, account.IsActive)
	}
	if filter.Department != "" {
		arguments = append(arguments, filter.Department)
		conditions = append(conditions, fmt.Sprintf("lower(%s) = $%d", account.Department, len(arguments)))
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY %s, %s`,
		sqlSelectAccount, strings.Join(conditions, " AND "), account.Name, account.ID)

	rows, err := repository.db.Query(ctx, query, arguments...)
	if err != nil {
		return nil, fmt.Errorf("postgres_hierarchy_repo_find_all_failed: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		user, err := auth.ScanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres_hierarchy_repo_scan_failed: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres_hierarchy_repo_rows_failed: %w", err)
	}

	return users, nil
}

// UpdateRole sets the role of a user and returns the updated row.
func (repository *PostgresRepository) UpdateRole(ctx context.Context, id string, role sec.Role) (*auth.User, error) {
	user, err := auth.ScanUser(repository.db.QueryRow(ctx, sqlUpdateRole, id, role))
	if err != nil {
		return nil, dberr.Wrap(err, "User", "postgres_hierarchy_repo_update_role_failed")
	}
	return user, nil
}

// CountByRole counts non-removed users holding role; activeOnly also skips
// deactivated ones.
func (repository *PostgresRepository) CountByRole(ctx context.Context, role sec.Role, activeOnly bool) (int, error) {
	query := sqlCountByRole
	if activeOnly {
		query += " AND " + account.IsActive
	}

	var count int
	if err := repository.db.QueryRow(ctx, query, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres_hierarchy_repo_count_failed: %w", err)
	}
	return count, nil
}

// SoftDelete deactivates a user and stamps deletedat.
func (repository *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	tag, err := repository.db.Exec(ctx, sqlSoftDelete, id)
	if err != nil {
		return fmt.Errorf("postgres_hierarchy_repo_soft_delete_failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User")
	}
	return nil
}

/*
LockRole takes a transaction-scoped advisory lock keyed by (role class, rank).
Concurrent holders of the same role lock queue behind each other; the lock is
released at commit or rollback.
*/
func (repository *PostgresRepository) LockRole(ctx context.Context, role sec.Role) error {
	if !repository.inTx {
		return errTxRequired
	}
	if _, err := repository.db.Exec(ctx, sqlLockRole, constants.LockClassRole, int32(role.Rank())); err != nil {
		return fmt.Errorf("postgres_hierarchy_repo_lock_role_failed: %w", err)
	}
	return nil
}

// Transact runs fn in a READ COMMITTED transaction. Nested calls join the
// outer transaction.
func (repository *PostgresRepository) Transact(ctx context.Context, fn func(tx Repository) error) error {
	if repository.inTx {
		return fn(repository)
	}

	return postgres.WithTx(ctx, repository.pool, func(tx pgx.Tx) error {
		return fn(&PostgresRepository{pool: repository.pool, db: tx, inTx: true})
	})
}
