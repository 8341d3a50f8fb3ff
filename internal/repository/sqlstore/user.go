package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/warbler/internal/apperror"
	"github.com/sakif/warbler/internal/model"
	"github.com/sakif/warbler/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, password, image_url, header_image_url, bio, location, created_at, updated_at`

// CreateUser inserts a new user and fills in ID and timestamps.
//
// Empty Email or Username is sent as NULL, so the NOT NULL constraint
// rejects it with the same apperror.ErrIntegrity a duplicate would get.
// Password is expected to be a hash already; this layer never sees
// plaintext.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.exec(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		nullIfEmpty(user.Email),
		nullIfEmpty(user.Username),
		nullIfEmpty(user.Password),
		user.ImageURL,
		user.HeaderImageURL,
		user.Bio,
		user.Location,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: inserting user %q: %w", user.Username, db.wrap(err))
	}

	return nil
}

// GetUserByID retrieves a user by id.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by exact username.
// Returns apperror.ErrNotFound if nobody has that username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrNotFound,
				Message: fmt.Sprintf("user not found with username %s", username),
				Field:   "username",
			}
		}
		return nil, fmt.Errorf("sqlstore: getting user by username %q: %w", username, err)
	}
	return u, nil
}

// SearchUsers lists users whose username contains query, case-insensitively.
// An empty query lists everyone. Results are ordered by username.
func (db *DB) SearchUsers(ctx context.Context, query string, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampList(opts)
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := db.query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE LOWER(username) LIKE ? ESCAPE '\'
		 ORDER BY username
		 LIMIT ? OFFSET ?`,
		pattern, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: searching users: %w", err)
	}
	return collectUsers(rows)
}

// UpdateUser writes the mutable profile fields back. The password column is
// written too, so a caller that changes it must hash it first.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.exec(ctx,
		`UPDATE users
		 SET email = ?, username = ?, password = ?, image_url = ?, header_image_url = ?,
		     bio = ?, location = ?, updated_at = ?
		 WHERE id = ?`,
		nullIfEmpty(user.Email),
		nullIfEmpty(user.Username),
		nullIfEmpty(user.Password),
		user.ImageURL,
		user.HeaderImageURL,
		user.Bio,
		user.Location,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating user %s: %w", user.ID, db.wrap(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

// DeleteUser removes the user. Their messages, follow edges in both
// directions and likes go with them through ON DELETE CASCADE, as do other
// users' likes on the deleted messages.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlstore: deleting user %s: %w", id, db.wrap(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// CountProfile loads the user and the sizes of its relations in one round
// trip.
func (db *DB) CountProfile(ctx context.Context, userID string) (model.Profile, error) {
	u, err := db.GetUserByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	p := model.Profile{User: *u}
	err = db.queryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM messages WHERE user_id = ?),
			(SELECT COUNT(*) FROM follows WHERE followed_id = ?),
			(SELECT COUNT(*) FROM follows WHERE follower_id = ?),
			(SELECT COUNT(*) FROM likes WHERE user_id = ?)`,
		userID, userID, userID, userID,
	).Scan(&p.MessageCount, &p.FollowerCount, &p.FollowingCount, &p.LikeCount)
	if err != nil {
		return model.Profile{}, fmt.Errorf("sqlstore: counting relations of user %s: %w", userID, err)
	}
	return p, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.Password,
		&u.ImageURL,
		&u.HeaderImageURL,
		&u.Bio,
		&u.Location,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows *sql.Rows) ([]model.User, error) {
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating users: %w", err)
	}
	return users, nil
}

// escapeLike escapes the LIKE wildcards so a search for "a_b" matches the
// literal underscore.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// prefixed qualifies a column list with a table alias:
// prefixed("u", "id, email") == "u.id, u.email".
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
