package repomanager

import (
	"context"
	"database/sql"

	"github.com/verdora/gardensync/internal/dbx"
	"github.com/verdora/gardensync/internal/garden/repositories/achievements"
	"github.com/verdora/gardensync/internal/garden/repositories/plants"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Plants(db dbx.DBTX) plants.Repository
	Achievements(db dbx.DBTX) achievements.Repository
}
