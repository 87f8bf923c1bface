// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/verdora/gardensync/internal/dbx"
	"github.com/verdora/gardensync/internal/garden/repositories/achievements"
	"github.com/verdora/gardensync/internal/garden/repositories/plants"
	"github.com/verdora/gardensync/internal/server/migrations"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// Plants returns a plants.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Plants(db dbx.DBTX) plants.Repository {
	return plants.NewPostgresRepository(db)
}

// Achievements returns an achievements.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Achievements(db dbx.DBTX) achievements.Repository {
	return achievements.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(db *sql.DB) (RepositoryManager, error) {
	return &PostgresRepositoryManager{}, nil
}
