// Copyright (c) 2026 Workhub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package account

import (
	"context"

	"github.com/taibuivan/workhub/internal/platform/apperr"
	"github.com/taibuivan/workhub/internal/users/auth"
)

// Service implements the self-service account use cases.
type Service struct {
	userRepository auth.UserRepository
}

// NewService constructs a new account [Service].
func NewService(userRepo auth.UserRepository) *Service {
	return &Service{userRepository: userRepo}
}

/*
GetProfile returns the stored profile of userID.

Deactivated accounts resolve as not found: a token issued before removal must
not keep reading the profile.
*/
func (service *Service) GetProfile(ctx context.Context, userID string) (*auth.User, error) {
	user, err := service.userRepository.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.NotFound("User")
	}
	return user, nil
}

// GetCapabilities returns the permissions of userID's stored role.
func (service *Service) GetCapabilities(ctx context.Context, userID string) (*Capabilities, error) {
	user, err := service.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	capabilities := capabilitiesOf(user.Role)
	return &capabilities, nil
}
