// Package migrate applies the embedded goose migrations of one database.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/authsync/migrations"
)

// Up applies the pending migrations of dir (migrations.Identity or
// migrations.Projection) and returns the versions it applied.
func Up(ctx context.Context, dsn, dir string) ([]int64, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	p, err := provider(db, dir)
	if err != nil {
		return nil, err
	}
	results, err := p.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate %s: %w", dir, err)
	}
	applied := make([]int64, 0, len(results))
	for _, r := range results {
		applied = append(applied, r.Source.Version)
	}
	return applied, nil
}

// provider scopes goose to one directory so the two databases never see
// each other's migrations.
func provider(db *sql.DB, dir string) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations.FS, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectPostgres, db, fsys)
}
