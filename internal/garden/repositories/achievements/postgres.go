package achievements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/dbx"
)

// PostgresRepository implements achievement progress storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetValue(ctx context.Context, ownerID, achievementType string) (int64, error) {
	query := `SELECT value FROM achievements WHERE owner_id=$1 AND type=$2`

	var value int64
	err := r.db.QueryRowContext(ctx, query, ownerID, achievementType).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("achievement %s: %w", achievementType, common.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("select achievement: %w: %v", common.ErrStoreUnavailable, err)
	}
	return value, nil
}

func (r *PostgresRepository) RecordValue(ctx context.Context, ownerID, achievementType string, value int64) error {
	// GREATEST keeps the write monotonic under concurrent sweeps.
	query := `
		INSERT INTO achievements (owner_id, type, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (owner_id, type)
		DO UPDATE SET
			value = GREATEST(achievements.value, EXCLUDED.value),
			updated_at = now();
	`
	_, err := r.db.ExecContext(ctx, query, ownerID, achievementType, value)
	if err != nil {
		return fmt.Errorf("upsert achievement: %w: %v", common.ErrStoreUnavailable, err)
	}
	return nil
}
