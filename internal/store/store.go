// Package store is the Postgres persistence layer: one repository per
// aggregate over a shared *sql.DB (pgx stdlib driver), with goose-managed
// schema migrations embedded in the binary.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/kmalloy/workhours/internal/store/migrations"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB

	Users     *UsersRepo
	Employees *EmployeesRepo
	Entries   *EntriesRepo
	Sessions  *SessionsRepo
}

// Open connects to Postgres and wires the repositories. The zone anchors
// entry-date normalization; pass the reporting timezone.
func Open(dsn string, zone *time.Location) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db, zone), nil
}

// New wires repositories over an existing handle. Tests use this with a mock.
func New(db *sql.DB, zone *time.Location) *Store {
	return &Store{
		db:        db,
		Users:     &UsersRepo{db: db},
		Employees: &EmployeesRepo{db: db},
		Entries:   &EntriesRepo{db: db, zone: zone},
		Sessions:  &SessionsRepo{db: db},
	}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}
