// Package sqlstore implements the repository interfaces over database/sql.
//
// Two drivers are supported:
//   - "sqlite"   → modernc.org/sqlite (pure Go, the default; ":memory:" in tests)
//   - "postgres" → github.com/lib/pq
//
// Queries are written once with "?" placeholders. The dialect rebinds them
// for Postgres ($1, $2, ...) and translates driver errors into
// apperror.ErrIntegrity, so nothing above this package sees a driver type.
//
// TRANSACTIONS:
// Every method runs against a querier, which is either the pool (*sql.DB)
// or an open *sql.Tx. WithTx hands fn a copy of the DB bound to the
// transaction:
//
//	err := db.WithTx(ctx, func(tx repository.Repos) error {
//	    if err := tx.CreateUser(ctx, u); err != nil {
//	        return err // rolled back
//	    }
//	    return nil // committed
//	})
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/sakif/warbler/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// querier is the subset of *sql.DB and *sql.Tx the repository methods use.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a connection pool plus the dialect that knows how to talk to it.
// A DB returned by New talks to the pool; the copy WithTx passes to its
// callback talks to the transaction.
type DB struct {
	conn    *sql.DB
	q       querier
	dialect dialect
	inTx    bool
}

// New opens the database for driver ("sqlite" or "postgres") and runs
// migrations.
//
// dsn examples:
//   - "data/warbler.db", ":memory:"                       (sqlite)
//   - "postgres://localhost/warbler?sslmode=disable"      (postgres)
func New(driver, dsn string) (*DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: opening %s database: %w", driver, err)
	}

	// sql.Open only builds the pool. Ping forces a real connection so a bad
	// path or unreachable server fails here and not on the first request.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: pinging %s database: %w", driver, err)
	}

	if err := d.configure(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: configuring %s: %w", driver, err)
	}

	db := &DB{conn: conn, q: conn, dialect: d}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Calling Close on a transaction-bound
// copy is a no-op; the transaction belongs to WithTx.
func (db *DB) Close() error {
	if db.inTx {
		return nil
	}
	return db.conn.Close()
}

// Driver reports which driver the DB was opened with.
func (db *DB) Driver() string {
	return db.dialect.name()
}

// WithTx runs fn in a transaction. Calling WithTx on a DB that is already
// bound to a transaction joins it instead of nesting.
func (db *DB) WithTx(ctx context.Context, fn func(tx repository.Repos) error) (err error) {
	if db.inTx {
		return fn(db)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			// The rollback error (if any) is less interesting than the
			// failure that caused it; the caller gets the original.
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = db.wrap(fmt.Errorf("sqlstore: committing transaction: %w", cerr))
		}
	}()

	bound := &DB{conn: db.conn, q: tx, dialect: db.dialect, inTx: true}
	return fn(bound)
}

// exec, query and queryRow rebind the "?" placeholders for the dialect
// before delegating to the querier.
func (db *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.q.ExecContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.q.QueryContext(ctx, db.dialect.rebind(query), args...)
}

func (db *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return db.q.QueryRowContext(ctx, db.dialect.rebind(query), args...)
}

// wrap converts constraint failures into apperror.ErrIntegrity and leaves
// every other error untouched.
func (db *DB) wrap(err error) error {
	if err == nil {
		return nil
	}
	if ie := db.dialect.integrity(err); ie != nil {
		return ie
	}
	return err
}

// migrate creates the schema. Statements are idempotent (IF NOT EXISTS), so
// migrate runs on every start.
func (db *DB) migrate() error {
	for i, stmt := range db.dialect.schema() {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("applying schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// clampList applies the default and maximum page sizes.
func clampList(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// nullIfEmpty stores "" as SQL NULL, so NOT NULL columns reject blank
// required values at the database instead of accepting an empty string.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
