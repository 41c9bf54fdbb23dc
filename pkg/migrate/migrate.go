// Package migrate applies the storefront schema with goose.
//
// Migrations are embedded into every binary so the api, outbox publisher and
// cron worker always ship the schema they were built against.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migration files are written, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded migration files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("migrate: embedded migrations missing: %v", err))
	}
	return sub
}

// Runner wraps a goose provider bound to one Postgres database.
type Runner struct {
	provider *goose.Provider
}

// NewRunner builds a runner over fsys. Pass Migrations() outside of tests.
func NewRunner(db *sql.DB, fsys fs.FS) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Runner{provider: provider}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) ([]*goose.MigrationResult, error) {
	results, err := r.provider.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("goose up: %w", err)
	}
	return results, nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) (*goose.MigrationResult, error) {
	result, err := r.provider.Down(ctx)
	if err != nil {
		return result, fmt.Errorf("goose down: %w", err)
	}
	return result, nil
}

// Status lists every known migration with its applied state.
func (r *Runner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	return statuses, nil
}

// Pending reports whether the database is behind the embedded migrations.
func (r *Runner) Pending(ctx context.Context) (bool, error) {
	pending, err := r.provider.HasPending(ctx)
	if err != nil {
		return false, fmt.Errorf("goose pending: %w", err)
	}
	return pending, nil
}

// To moves the schema up or down until target (YYYYMMDDHHMMSS) is the current version.
func (r *Runner) To(ctx context.Context, target string) ([]*goose.MigrationResult, error) {
	version, err := ParseVersion(target)
	if err != nil {
		return nil, err
	}

	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}

	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err := r.provider.UpTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose up-to %d: %w", version, err)
		}
		return results, nil
	default:
		results, err := r.provider.DownTo(ctx, version)
		if err != nil {
			return results, fmt.Errorf("goose down-to %d: %w", version, err)
		}
		return results, nil
	}
}

// ParseVersion validates a YYYYMMDDHHMMSS migration version.
func ParseVersion(value string) (int64, error) {
	if len(value) != versionLayoutLen {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil || version <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	return version, nil
}
