package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

var _ repository.MessageRepository = (*DB)(nil)

// messageSelect joins the author so every listing carries Username and
// ImageURL.
const messageSelect = `SELECT m.id, m.text, m.user_id, u.username, u.image_url, m.created_at
	FROM messages m
	JOIN users u ON u.id = m.user_id`

// CreateMessage inserts a message and fills in ID and CreatedAt.
//
// xid ids start with a timestamp and a per-process counter, so ordering by
// (created_at, id) is stable even for messages created in the same instant.
// An unknown UserID fails the foreign key and returns apperror.ErrIntegrity.
func (db *DB) CreateMessage(ctx context.Context, msg *model.Message) error {
	msg.ID = xid.New().String()
	msg.CreatedAt = time.Now().UTC()

	_, err := db.exec(ctx,
		`INSERT INTO messages (id, text, user_id, created_at) VALUES (?, ?, ?, ?)`,
		msg.ID,
		nullIfEmpty(msg.Text),
		nullIfEmpty(msg.UserID),
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: creating message: %w", db.wrap(err))
	}
	return nil
}

// GetMessageByID retrieves a single message with its author's username.
func (db *DB) GetMessageByID(ctx context.Context, id string) (*model.Message, error) {
	m, err := scanMessage(db.queryRow(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("message", id)
		}
		return nil, fmt.Errorf("sqlstore: getting message %s: %w", id, err)
	}
	return m, nil
}

// DeleteMessage removes a message; likes on it cascade.
func (db *DB) DeleteMessage(ctx context.Context, id string) error {
	result, err := db.exec(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting message %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("message", id)
	}
	return nil
}

// ListMessagesByUser returns userID's messages, newest first.
func (db *DB) ListMessagesByUser(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Message, error) {
	limit, offset := clampList(opts)

	rows, err := db.query(ctx,
		messageSelect+`
		 WHERE m.user_id = ?
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing messages of %s: %w", userID, err)
	}
	return collectMessages(rows, limit)
}

// ListTimeline returns the home feed: userID's own messages plus those of
// everyone userID follows, newest first.
func (db *DB) ListTimeline(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Message, error) {
	limit, offset := clampList(opts)

	rows, err := db.query(ctx,
		messageSelect+`
		 WHERE m.user_id = ?
		    OR m.user_id IN (SELECT followed_id FROM follows WHERE follower_id = ?)
		 ORDER BY m.created_at DESC, m.id DESC
		 LIMIT ? OFFSET ?`,
		userID, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing timeline of %s: %w", userID, err)
	}
	return collectMessages(rows, limit)
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	if err := row.Scan(&m.ID, &m.Text, &m.UserID, &m.Username, &m.ImageURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// collectMessages drains rows. sizeHint pre-allocates the slice; pass the
// LIMIT when there is one.
func collectMessages(rows *sql.Rows, sizeHint int) ([]model.Message, error) {
	defer rows.Close()

	messages := make([]model.Message, 0, sizeHint)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning message row: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating messages: %w", err)
	}
	return messages, nil
}
