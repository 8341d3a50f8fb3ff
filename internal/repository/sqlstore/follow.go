package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

var _ repository.FollowRepository = (*DB)(nil)

// AddFollow inserts follower -> followed. ON CONFLICT DO NOTHING makes a
// repeated follow a no-op; a missing user or a self-follow still fails the
// foreign key / CHECK constraint and comes back as apperror.ErrIntegrity.
func (db *DB) AddFollow(ctx context.Context, followerID, followedID string) error {
	_, err := db.exec(ctx,
		`INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)
		 ON CONFLICT (follower_id, followed_id) DO NOTHING`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: adding follow %s -> %s: %w", followerID, followedID, db.wrap(err))
	}
	return nil
}

func (db *DB) RemoveFollow(ctx context.Context, followerID, followedID string) error {
	_, err := db.exec(ctx,
		`DELETE FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: removing follow %s -> %s: %w", followerID, followedID, err)
	}
	return nil
}

func (db *DB) HasFollow(ctx context.Context, followerID, followedID string) (bool, error) {
	var n int
	err := db.queryRow(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND followed_id = ?`,
		followerID, followedID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlstore: checking follow %s -> %s: %w", followerID, followedID, err)
	}
	return n > 0, nil
}

func (db *DB) ListFollowers(ctx context.Context, userID string) ([]model.User, error) {
	rows, err := db.query(ctx,
		`SELECT `+prefixed("u", userColumns)+`
		 FROM users u
		 JOIN follows f ON f.follower_id = u.id
		 WHERE f.followed_id = ?
		 ORDER BY u.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing followers of %s: %w", userID, err)
	}
	return collectUsers(rows)
}

func (db *DB) ListFollowing(ctx context.Context, userID string) ([]model.User, error) {
	rows, err := db.query(ctx,
		`SELECT `+prefixed("u", userColumns)+`
		 FROM users u
		 JOIN follows f ON f.followed_id = u.id
		 WHERE f.follower_id = ?
		 ORDER BY u.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing users followed by %s: %w", userID, err)
	}
	return collectUsers(rows)
}
