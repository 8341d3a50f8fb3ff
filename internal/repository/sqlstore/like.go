package sqlstore

import (
	"context"
	"fmt"

	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

var _ repository.LikeRepository = (*DB)(nil)

// AddLike records that userID likes messageID. Authorship is irrelevant:
// users may like their own messages. Repeating a like is a no-op.
func (db *DB) AddLike(ctx context.Context, userID, messageID string) error {
	_, err := db.exec(ctx,
		`INSERT INTO likes (user_id, message_id) VALUES (?, ?)
		 ON CONFLICT (user_id, message_id) DO NOTHING`,
		userID, messageID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: adding like %s -> %s: %w", userID, messageID, db.wrap(err))
	}
	return nil
}

func (db *DB) RemoveLike(ctx context.Context, userID, messageID string) error {
	_, err := db.exec(ctx,
		`DELETE FROM likes WHERE user_id = ? AND message_id = ?`,
		userID, messageID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: removing like %s -> %s: %w", userID, messageID, err)
	}
	return nil
}

func (db *DB) HasLike(ctx context.Context, userID, messageID string) (bool, error) {
	var n int
	err := db.queryRow(ctx,
		`SELECT COUNT(*) FROM likes WHERE user_id = ? AND message_id = ?`,
		userID, messageID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlstore: checking like %s -> %s: %w", userID, messageID, err)
	}
	return n > 0, nil
}

// ListLikedMessages returns the messages userID likes, newest message first.
func (db *DB) ListLikedMessages(ctx context.Context, userID string) ([]model.Message, error) {
	rows, err := db.query(ctx,
		messageSelect+`
		 JOIN likes l ON l.message_id = m.id
		 WHERE l.user_id = ?
		 ORDER BY m.created_at DESC, m.id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing likes of %s: %w", userID, err)
	}
	return collectMessages(rows, 0)
}
