// Package store persists students, grade records, academic years and
// accounts on database/sql.
//
// SQLite (modernc.org/sqlite) is the default engine; Postgres (lib/pq) is
// supported with the same schema. Queries are written with "?" placeholders
// and rebound to "$n" for Postgres.
//
// The empty string stands for "no tenant" and "no academic year", so the
// same equality predicates work on both engines.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/gradebook/dbopen"
	"github.com/hazyhaar/gradebook/idgen"
)

// ErrNotFound is returned by updates that match no row.
var ErrNotFound = errors.New("store: not found")

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn carries the operations shared by Store and Tx.
type conn struct {
	q      querier
	driver string
	ids    idgen.Generator
	now    func() time.Time
}

// Store wraps the gradebook database.
type Store struct {
	conn
	db *sql.DB
}

// Tx is a Store scoped to one database transaction.
type Tx struct {
	conn
	tx *sql.Tx
}

// Option customises a Store.
type Option func(*Store)

// WithIDGenerator replaces the UUIDv7 row id generator. Prefixes are still
// prepended per table.
func WithIDGenerator(gen idgen.Generator) Option { return func(s *Store) { s.ids = gen } }

// WithClock replaces time.Now for created_at / updated_at stamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens (or creates) the database and runs migrations. The caller must
// blank-import the driver.
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	dbOpts := []dbopen.Option{dbopen.WithDriver(driver)}
	if dbopen.IsSQLite(driver) {
		dbOpts = append(dbOpts, dbopen.WithMkdirAll())
	}
	db, err := dbopen.Open(dsn, dbOpts...)
	if err != nil {
		return nil, err
	}
	s, err := New(db, driver, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already open handle and runs migrations.
func New(db *sql.DB, driver string, opts ...Option) (*Store, error) {
	s := &Store{
		conn: conn{q: db, driver: driver, ids: idgen.Default, now: time.Now},
		db:   db,
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for sharing with the job queue.
func (s *Store) DB() *sql.DB { return s.db }

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn inside one transaction. Any error or panic rolls the whole
// transaction back. SQLite BUSY conditions retry fn from scratch, so fn must
// not keep state across calls.
func (s *Store) InTx(ctx context.Context, fn func(*Tx) error) error {
	return dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		t := &Tx{conn: s.conn, tx: tx}
		t.q = tx
		return fn(t)
	})
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS academic_years (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL DEFAULT '',
    label       TEXT NOT NULL,
    is_current  INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL,
    UNIQUE (tenant_id, label)
);

CREATE TABLE IF NOT EXISTS students (
    id                TEXT PRIMARY KEY,
    tenant_id         TEXT NOT NULL DEFAULT '',
    enrollment        TEXT NOT NULL,
    name              TEXT NOT NULL,
    class_label       TEXT NOT NULL DEFAULT '',
    shift             TEXT NOT NULL DEFAULT '',
    sex               TEXT NOT NULL DEFAULT '',
    birth_date        TEXT NOT NULL DEFAULT '',
    birthplace        TEXT NOT NULL DEFAULT '',
    zone              TEXT NOT NULL DEFAULT '',
    address           TEXT NOT NULL DEFAULT '',
    guardians         TEXT NOT NULL DEFAULT '',
    phones            TEXT NOT NULL DEFAULT '',
    tax_id            TEXT NOT NULL DEFAULT '',
    social_id         TEXT NOT NULL DEFAULT '',
    national_id       TEXT NOT NULL DEFAULT '',
    prior_status      TEXT NOT NULL DEFAULT '',
    academic_year_id  TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL,
    UNIQUE (tenant_id, enrollment)
);

CREATE INDEX IF NOT EXISTS idx_students_name ON students(tenant_id, name);

CREATE TABLE IF NOT EXISTS grade_records (
    id                TEXT PRIMARY KEY,
    student_id        TEXT NOT NULL REFERENCES students(id),
    tenant_id         TEXT NOT NULL DEFAULT '',
    academic_year_id  TEXT NOT NULL DEFAULT '',
    subject           TEXT NOT NULL,
    subject_key       TEXT NOT NULL,
    period1           NUMERIC(6,2),
    period2           NUMERIC(6,2),
    period3           NUMERIC(6,2),
    total             NUMERIC(6,2),
    recovery          NUMERIC(6,2),
    absences          INTEGER,
    status            TEXT,
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grades_lookup
    ON grade_records(student_id, subject_key, tenant_id, academic_year_id);

CREATE TABLE IF NOT EXISTS accounts (
    id                    TEXT PRIMARY KEY,
    tenant_id             TEXT NOT NULL DEFAULT '',
    username              TEXT NOT NULL UNIQUE,
    password_hash         TEXT NOT NULL,
    role                  TEXT NOT NULL,
    student_id            TEXT NOT NULL DEFAULT '',
    must_change_password  INTEGER NOT NULL DEFAULT 0,
    created_at            TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_student ON accounts(student_id);
`

func (c *conn) rebind(query string) string { return dbopen.Rebind(c.driver, query) }

func (c *conn) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.q.ExecContext(ctx, c.rebind(query), args...)
}

func (c *conn) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.q.QueryContext(ctx, c.rebind(query), args...)
}

func (c *conn) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.q.QueryRowContext(ctx, c.rebind(query), args...)
}

// timeLayout is fixed width so stamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (c *conn) stamp() string {
	return c.now().UTC().Format(timeLayout)
}

func (c *conn) newID(prefix string) string {
	return prefix + c.ids()
}

// mustAffect turns a zero-row update into ErrNotFound.
func mustAffect(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
