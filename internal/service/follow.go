package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// FollowService mutates and projects the follow graph.
type FollowService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewFollowService(store repository.Store, logger *slog.Logger) *FollowService {
	return &FollowService{store: store, logger: logger}
}

// Follow adds the edge followerID -> followedID. Following someone twice is
// not an error. Following yourself is a validation error, following a
// missing user is apperror.ErrNotFound.
func (s *FollowService) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return apperror.ValidationFailed("followed_id", "you cannot follow yourself")
	}

	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		if _, err := tx.GetUserByID(ctx, followedID); err != nil {
			return err
		}
		return tx.AddFollow(ctx, followerID, followedID)
	})
	if err != nil {
		return fmt.Errorf("following %s: %w", followedID, err)
	}

	s.logger.Info("follow added",
		slog.String("follower", followerID),
		slog.String("followed", followedID),
	)
	return nil
}

// Unfollow removes the edge. Unfollowing someone you don't follow is a no-op.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followedID string) error {
	err := s.store.WithTx(ctx, func(tx repository.Repos) error {
		return tx.RemoveFollow(ctx, followerID, followedID)
	})
	if err != nil {
		return fmt.Errorf("unfollowing %s: %w", followedID, err)
	}

	s.logger.Info("follow removed",
		slog.String("follower", followerID),
		slog.String("followed", followedID),
	)
	return nil
}

// Followers lists who follows userID, by username.
func (s *FollowService) Followers(ctx context.Context, userID string) ([]model.User, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListFollowers(ctx, userID)
}

// Following lists whom userID follows, by username.
func (s *FollowService) Following(ctx context.Context, userID string) ([]model.User, error) {
	if _, err := s.store.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListFollowing(ctx, userID)
}
