package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lorrc/trusted-invoker/internal/core/domain"
	apperrors "github.com/lorrc/trusted-invoker/internal/core/errors"
	"github.com/lorrc/trusted-invoker/internal/core/ports"
)

const (
	msgUserNotFound     = "Could not retrieve user details"
	msgUserLookupFailed = "Error retrieving user details: "
)

// UserInfoService builds the summary of the current caller from the directory.
type UserInfoService struct {
	directory ports.UserDirectory
	logger    *slog.Logger
}

var _ ports.UserInfoService = (*UserInfoService)(nil)

// NewUserInfoService creates a new UserInfoService.
func NewUserInfoService(directory ports.UserDirectory, logger *slog.Logger) *UserInfoService {
	return &UserInfoService{
		directory: directory,
		logger:    logger.With("service", "user_info"),
	}
}

// GetUserInfo returns the profile summary for identity. Directory failures
// never fail the call; they are reported in the profile's Error field.
func (s *UserInfoService) GetUserInfo(ctx context.Context, identity domain.Identity) *domain.UserProfile {
	profile := domain.NewUserProfile(identity)

	if identity.IsAnonymous() {
		s.logger.InfoContext(ctx, "anonymous or unauthenticated user")
		return profile
	}

	s.logger.InfoContext(ctx, "authenticated user detected", "user_id", identity.UserID)

	attrs, err := s.directory.LookupAttributes(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			s.logger.InfoContext(ctx, "user could not be found in directory", "user_id", identity.UserID)
			profile.Error = msgUserNotFound
			return profile
		}

		s.logger.ErrorContext(ctx, "failed to get user details",
			"user_id", identity.UserID,
			"error", err,
		)
		profile.Error = msgUserLookupFailed + err.Error()
		return profile
	}

	profile.Attributes = domain.ProfileAttributesFrom(attrs)
	if profile.Attributes.Email == "" {
		s.logger.DebugContext(ctx, "no email found for user", "user_id", identity.UserID)
	}
	if profile.Attributes.Country == "" {
		s.logger.DebugContext(ctx, "no country found for user", "user_id", identity.UserID)
	}

	return profile
}
