package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/warbler/internal/apperror"
)

// dialect isolates everything that differs between SQLite and Postgres.
type dialect interface {
	name() string
	driverName() string
	// configure runs once after the pool is opened.
	configure(conn *sql.DB) error
	schema() []string
	rebind(query string) string
	// integrity returns an *apperror.AppError wrapping ErrIntegrity when err
	// is a constraint violation, and nil otherwise.
	integrity(err error) error
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case "", "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
}

// =========================================================================
// SQLITE
// =========================================================================

type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) configure(conn *sql.DB) error {
	// One connection: SQLite has a single writer anyway, PRAGMAs are
	// per-connection, and every new connection to ":memory:" would be a
	// brand-new empty database.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}
	// Foreign keys are OFF by default in SQLite. The cascades on users
	// depend on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	return nil
}

func (sqliteDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			email            TEXT NOT NULL UNIQUE,
			username         TEXT NOT NULL UNIQUE,
			password         TEXT NOT NULL,
			image_url        TEXT NOT NULL DEFAULT '',
			header_image_url TEXT NOT NULL DEFAULT '',
			bio              TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			followed_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (follower_id, followed_id),
			CHECK (follower_id <> followed_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_follows_followed_id ON follows(followed_id)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, message_id)
		)`,
	}
}

func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) integrity(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return nil
	}

	// The message looks like:
	//   constraint failed: UNIQUE constraint failed: users.username (2067)
	msg := se.Error()
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		field := sqliteColumn(msg, "UNIQUE constraint failed: ")
		return apperror.Integrity(field, integrityMessage(field, "already taken"))
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		field := sqliteColumn(msg, "NOT NULL constraint failed: ")
		return apperror.Integrity(field, integrityMessage(field, "is required"))
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return apperror.Integrity("", "referenced record does not exist")
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return apperror.Integrity("", "check constraint failed")
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return apperror.Integrity("", "constraint failed")
	}
	return nil
}

// sqliteColumn pulls "username" out of "...failed: users.username (2067)".
// For composite keys ("follows.follower_id, follows.followed_id") it keeps
// only the first column.
func sqliteColumn(msg, marker string) string {
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " ,("); j >= 0 {
		rest = rest[:j]
	}
	if dot := strings.LastIndex(rest, "."); dot >= 0 {
		rest = rest[dot+1:]
	}
	return rest
}

// =========================================================================
// POSTGRES
// =========================================================================

type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "postgres" }

func (postgresDialect) configure(conn *sql.DB) error {
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	return nil
}

func (postgresDialect) schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               TEXT PRIMARY KEY,
			email            TEXT NOT NULL,
			username         TEXT NOT NULL,
			password         TEXT NOT NULL,
			image_url        TEXT NOT NULL DEFAULT '',
			header_image_url TEXT NOT NULL DEFAULT '',
			bio              TEXT NOT NULL DEFAULT '',
			location         TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT users_email_key UNIQUE (email),
			CONSTRAINT users_username_key UNIQUE (username)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			followed_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (follower_id, followed_id),
			CONSTRAINT follows_no_self CHECK (follower_id <> followed_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_follows_followed_id ON follows(followed_id)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			message_id TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, message_id)
		)`,
	}
}

// rebind turns "a = ? AND b = ?" into "a = $1 AND b = $2".
func (postgresDialect) rebind(query string) string {
	if !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (postgresDialect) integrity(err error) error {
	var pe *pq.Error
	if !errors.As(err, &pe) {
		return nil
	}
	if pe.Code.Class() != "23" { // integrity_constraint_violation
		return nil
	}

	switch pe.Code.Name() {
	case "unique_violation":
		field := strings.TrimSuffix(strings.TrimPrefix(pe.Constraint, "users_"), "_key")
		if !strings.HasPrefix(pe.Constraint, "users_") {
			field = ""
		}
		return apperror.Integrity(field, integrityMessage(field, "already taken"))
	case "not_null_violation":
		return apperror.Integrity(pe.Column, integrityMessage(pe.Column, "is required"))
	case "foreign_key_violation":
		return apperror.Integrity("", "referenced record does not exist")
	case "check_violation":
		return apperror.Integrity("", "check constraint failed")
	}
	return apperror.Integrity("", "constraint failed")
}

func integrityMessage(field, what string) string {
	if field == "" {
		return "constraint failed: value " + what
	}
	return field + " " + what
}
