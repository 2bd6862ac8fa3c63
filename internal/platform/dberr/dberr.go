// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/workhub/internal/platform/apperr"
)

// SQLSTATE codes that map to client-facing errors.
const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// resource names the missing entity ("User") and action names the failed
// operation for the internal cause ("find_user").
func Wrap(err error, resource, action string) error {
	if err == nil {
		return nil
	}

	// 1. Already classified
	if apperr.As(err) != nil {
		return err
	}

	// 2. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource).WithCause(err)
	}

	// 3. Constraint and concurrency failures the client can act on
	var pgError *pgconn.PgError
	if errors.As(err, &pgError) {
		switch pgError.Code {
		case uniqueViolation:
			return apperr.Conflict(resource + " already exists").WithCause(err)
		case serializationFailure, deadlockDetected:
			return apperr.Conflict("Concurrent update detected, retry the request").WithCause(err)
		}
	}

	// 4. Unknown query errors become Internal Server Errors
	return apperr.Internal(fmt.Errorf("%s: %w", action, err))
}
