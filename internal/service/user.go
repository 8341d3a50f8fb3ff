package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/auth"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// MaxBioLength caps the free-text bio on a profile, in characters.
const MaxBioLength = 500

// UserService reads the user directory and applies profile edits.
type UserService struct {
	store     repository.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(store repository.Store, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{store: store, passwords: passwords, logger: logger}
}

// ProfileInput carries an edit to the caller's own profile. Empty Username
// or Email keep the current value; empty image URLs reset to the defaults.
type ProfileInput struct {
	Username       string
	Email          string
	ImageURL       string
	HeaderImageURL string
	Bio            string
	Location       string
}

func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.store.GetUserByID(ctx, id)
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
}

// Search lists users whose username contains query. An empty query lists
// everyone, alphabetically.
func (s *UserService) Search(ctx context.Context, query string, limit, offset int) ([]model.User, error) {
	users, err := s.store.SearchUsers(ctx, strings.TrimSpace(query), repository.ListOptions{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("searching users: %w", err)
	}
	return users, nil
}

// Profile returns the user with message, follower, following and like counts.
func (s *UserService) Profile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.store.CountProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// IsFollowing reports whether selfID follows otherID.
func (s *UserService) IsFollowing(ctx context.Context, selfID, otherID string) (bool, error) {
	return s.store.HasFollow(ctx, selfID, otherID)
}

// IsFollowedBy reports whether otherID follows selfID.
func (s *UserService) IsFollowedBy(ctx context.Context, selfID, otherID string) (bool, error) {
	return s.store.HasFollow(ctx, otherID, selfID)
}

// UpdateProfile applies in to the caller's own record after re-checking
// currentPassword. A wrong password is apperror.ErrUnauthorized; a username
// or email already in use is apperror.ErrIntegrity.
func (s *UserService) UpdateProfile(ctx context.Context, callerID string, in ProfileInput, currentPassword string) (*model.User, error) {
	if utf8.RuneCountInString(in.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}

	var updated *model.User
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		user, err := tx.GetUserByID(ctx, callerID)
		if err != nil {
			return err
		}

		if err := s.passwords.Verify(user.Password, currentPassword); err != nil {
			if errors.Is(err, auth.ErrInvalidPassword) {
				return apperror.Unauthorized(InvalidCredentialsMessage)
			}
			return err
		}

		if v := strings.TrimSpace(in.Username); v != "" {
			user.Username = v
		}
		if v := strings.TrimSpace(in.Email); v != "" {
			user.Email = v
		}
		user.ImageURL = orDefault(strings.TrimSpace(in.ImageURL), model.DefaultImageURL)
		user.HeaderImageURL = orDefault(strings.TrimSpace(in.HeaderImageURL), model.DefaultHeaderImageURL)
		user.Bio = strings.TrimSpace(in.Bio)
		user.Location = strings.TrimSpace(in.Location)

		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating profile of %s: %w", callerID, err)
	}

	s.logger.Info("profile updated", slog.String("userID", callerID))
	return updated, nil
}

// Delete removes targetID and everything hanging off it. Only the user
// themself may do this.
func (s *UserService) Delete(ctx context.Context, callerID, targetID string) error {
	if callerID == "" || callerID != targetID {
		return apperror.Forbidden("you can only delete your own account")
	}

	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		return tx.DeleteUser(ctx, targetID)
	})
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", targetID, err)
	}

	s.logger.Info("user deleted", slog.String("userID", targetID))
	return nil
}
