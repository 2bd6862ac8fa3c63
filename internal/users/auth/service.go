// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/platform/ctxutil"
	"github.com/taibuivan/workhub/internal/platform/sec"
	"github.com/taibuivan/workhub/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for generating access tokens.
type TokenProvider interface {
	GenerateAccessToken(userID, email string, role sec.Role, timeToLive time.Duration) (string, error)
}

// Service implements user authentication use cases.
type Service struct {
	userRepository UserRepository
	tokenProvider  TokenProvider
	accessTokenTTL time.Duration
}

// NewService constructs a new [Service] with necessary dependencies.
func NewService(userRepo UserRepository, tokenProv TokenProvider, accessTokenTTL time.Duration) *Service {
	return &Service{
		userRepository: userRepo,
		tokenProvider:  tokenProv,
		accessTokenTTL: accessTokenTTL,
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email    string
	Password string
}

// LoginSession represents a successfully issued access token.
type LoginSession struct {
	AccessToken string
	ExpiresIn   time.Duration
	User        *User
}

/*
Login validates user credentials and issues an access token.

Unknown accounts, deactivated accounts and wrong passwords all fail with the
same Unauthorized error, and an unknown account still pays for one bcrypt
comparison so response time does not reveal which emails exist.

Returns:
  - *LoginSession: Transport-ready token and profile
  - error: apperr.Unauthorized or internal failures
*/
func (service *Service) Login(ctx context.Context, input LoginInput) (*LoginSession, error) {
	invalid := apperr.Unauthorized("Invalid login credentials")

	user, err := service.userRepository.FindByEmail(ctx, input.Email)
	if err != nil {
		if apperr.IsNotFound(err) {
			sec.BurnPasswordCheck(input.Password)
			return nil, invalid
		}
		return nil, fmt.Errorf("auth_service_find_user_failed: %w", err)
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) || !user.IsActive {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "login_rejected",
			slog.String("user_id", user.ID),
			slog.Bool("is_active", user.IsActive),
		)
		return nil, invalid
	}

	accessToken, err := service.tokenProvider.GenerateAccessToken(user.ID, user.Email, user.Role, service.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_failed: %w", err)
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_logged_in",
		slog.String("user_id", user.ID),
		slog.String("role", user.Role.String()),
	)

	return &LoginSession{
		AccessToken: accessToken,
		ExpiresIn:   service.accessTokenTTL,
		User:        user,
	}, nil
}

// # Account Provisioning

// RegisterInput holds the details of an account created by an administrator.
type RegisterInput struct {
	Email      string
	Name       string
	Password   string
	Department string
}

/*
Register creates an active MEMBER account.

Accounts are provisioned by administrators; promotion to any other role goes
through the hierarchy workflow afterwards.

Returns:
  - *User: The created account
  - error: apperr.Conflict when the email is taken, or internal failures
*/
func (service *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {

	// ── 1. Uniqueness ─────────────────────────────────────────────────────
	_, err := service.userRepository.FindByEmail(ctx, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}
	if !apperr.IsNotFound(err) {
		return nil, fmt.Errorf("auth_service_find_user_failed: %w", err)
	}

	// ── 2. Security ───────────────────────────────────────────────────────
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// ── 3. Entity Construction ────────────────────────────────────────────
	user := &User{
		ID:           uuidv7.New(),
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hashedPassword,
		Role:         sec.RoleMember,
		Department:   input.Department,
		IsActive:     true,
	}

	// ── 4. Persistence ────────────────────────────────────────────────────
	// A concurrent registration of the same email still fails with Conflict
	// through the unique index.
	if err := service.userRepository.Create(ctx, user); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "user_registered",
		slog.String("user_id", user.ID),
		slog.String("actor_id", ctxutil.GetActorID(ctx)),
	)

	return user, nil
}
