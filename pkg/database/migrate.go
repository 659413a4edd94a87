package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// MigrationStatus is a flattened goose status row.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

func provider(db *sqlx.DB, driver string) (*goose.Provider, error) {
	dialect := goose.DialectPostgres
	dir := "migrations/postgres"
	if driver == DriverSQLite {
		dialect = goose.DialectSQLite3
		dir = "migrations/sqlite"
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, db.DB, fsys)
}

// Migrate applies all pending migrations and returns the versions applied.
func Migrate(ctx context.Context, db *sqlx.DB, driver string) ([]int64, error) {
	p, err := provider(db, driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate up: %w", err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sqlx.DB, driver string) (int64, error) {
	p, err := provider(db, driver)
	if err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	r, err := p.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate down: %w", err)
	}
	return r.Source.Version, nil
}

// Status lists every known migration and whether it is applied.
func Status(ctx context.Context, db *sqlx.DB, driver string) ([]MigrationStatus, error) {
	p, err := provider(db, driver)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	rows, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(rows))
	for _, s := range rows {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}
