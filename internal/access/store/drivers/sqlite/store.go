package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sproutcrm/tenantcore/internal/access/store"

	_ "modernc.org/sqlite"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the repos work
// identically inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	dsn string
}

func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection, so the pool must be
	// pinned to one connection or concurrent queries see empty schemas.
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		dsn: dsn,
	}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Ensure rollback is called if we panic or return early with error
	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err // rollback happens in defer
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users                 { return &usersRepo{db: s.db} }
func (s *Store) Organizations() store.Organizations { return &organizationsRepo{db: s.db} }
func (s *Store) Memberships() store.Memberships     { return &membershipsRepo{db: s.db} }
func (s *Store) Invites() store.Invites             { return &invitesRepo{db: s.db} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapConstraint converts sqlite unique violations into ErrAlreadyExists
// so services can branch on the sentinel instead of driver error text.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrAlreadyExists
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
