// Package storage persists budgets, ledger rows, categories, clients and
// suppliers in SQLite. Every query runs through a Scope bound to one user.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	db  *sql.DB
	now func() time.Time
}

// DSN builds the modernc connection string used for both the pool and migrations.
func DSN(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// Open creates the database file if needed, migrates it and returns a handle.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Scope returns a handle whose queries only see rows owned by userID.
// An empty userID is rejected before any statement is prepared.
func (d *DB) Scope(userID string) (*Scope, error) {
	if userID == "" {
		return nil, core.ErrUnauthorized
	}
	return &Scope{q: d.db, db: d.db, userID: userID, now: d.now}, nil
}

// Scope is a per-user view of the database, optionally bound to a transaction.
type Scope struct {
	q      querier
	db     *sql.DB
	tx     *sql.Tx
	userID string
	now    func() time.Time
}

func (s *Scope) UserID() string { return s.userID }

// InTx runs fn inside a transaction. Nested calls reuse the outer transaction.
func (s *Scope) InTx(ctx context.Context, fn func(tx *Scope) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&Scope{q: tx, db: s.db, tx: tx, userID: s.userID, now: s.now}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", mapErr(err))
	}
	return nil
}

func (s *Scope) stamp() string {
	return s.now().UTC().Format(timeLayout)
}

func newID() string { return uuid.NewString() }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullDate(d *core.Date) sql.NullString {
	if d == nil || d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDate(ns sql.NullString) (*core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := core.ParseDate(ns.String)
	if err != nil {
		return nil, fmt.Errorf("stored date %q: %w", ns.String, err)
	}
	return &d, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
