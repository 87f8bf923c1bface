package plants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/verdora/gardensync/internal/common"
	"github.com/verdora/gardensync/internal/dbx"
	"github.com/verdora/gardensync/internal/garden/models"
)

// PostgresRepository implements plant storage over a dbx.DBTX
// (*sql.DB or *sql.Tx). Watering frequency is stored as nanoseconds.
type PostgresRepository struct {
	db dbx.DBTX

	now func() time.Time
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// WithClock overrides the creation-time clock. Test helper.
func (r *PostgresRepository) WithClock(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

func (r *PostgresRepository) NewID() string {
	return uuid.NewString()
}

func (r *PostgresRepository) Create(ctx context.Context, ownerID, id string, plant models.Plant, lastWatered time.Time) (models.OwnedPlant, error) {
	query := `
		INSERT INTO plants (id, owner_id, name, species, description, photo_url,
			watering_frequency, health_status, health_status_description,
			last_watered, previous_last_watered, date_of_creation, healthy_since)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, $11, NULL);
	`
	created := r.now().UTC()
	_, err := r.db.ExecContext(ctx, query,
		id, ownerID, plant.Name, plant.Species, plant.Description, plant.PhotoURL,
		int64(plant.WateringFrequency), string(plant.HealthStatus), plant.HealthStatusDescription,
		lastWatered, created)
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("insert plant: %w: %v", common.ErrStoreUnavailable, err)
	}

	return models.OwnedPlant{
		ID:             id,
		OwnerID:        ownerID,
		Plant:          plant,
		LastWatered:    lastWatered,
		DateOfCreation: created,
	}, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string) (models.OwnedPlant, error) {
	query := selectColumns + ` FROM plants WHERE owner_id=$1 AND id=$2`
	row := r.db.QueryRowContext(ctx, query, ownerID, id)

	rec, err := scanPlant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return models.OwnedPlant{}, fmt.Errorf("plant %q: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return models.OwnedPlant{}, fmt.Errorf("select plant: %w: %v", common.ErrStoreUnavailable, err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListAll(ctx context.Context, ownerID string) ([]models.OwnedPlant, error) {
	query := selectColumns + ` FROM plants WHERE owner_id=$1 ORDER BY date_of_creation, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select plants: %w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var result []models.OwnedPlant
	for rows.Next() {
		rec, err := scanPlant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w: %v", common.ErrStoreUnavailable, err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plants: %w: %v", common.ErrStoreUnavailable, err)
	}
	return result, nil
}

func (r *PostgresRepository) Replace(ctx context.Context, updated models.OwnedPlant) error {
	// id and date_of_creation deliberately left out of SET: immutable.
	query := `
		UPDATE plants SET
			name=$3, species=$4, description=$5, photo_url=$6,
			watering_frequency=$7, health_status=$8, health_status_description=$9,
			last_watered=$10, previous_last_watered=$11, healthy_since=$12
		WHERE owner_id=$1 AND id=$2;
	`
	res, err := r.db.ExecContext(ctx, query,
		updated.OwnerID, updated.ID,
		updated.Plant.Name, updated.Plant.Species, updated.Plant.Description, updated.Plant.PhotoURL,
		int64(updated.Plant.WateringFrequency), string(updated.Plant.HealthStatus), updated.Plant.HealthStatusDescription,
		updated.LastWatered, nullableTime(updated.PreviousLastWatered), nullableTime(updated.HealthySince))
	if err != nil {
		return fmt.Errorf("update plant: %w: %v", common.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w: %v", common.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("plant %q: %w", updated.ID, common.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plants WHERE owner_id=$1 AND id=$2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete plant: %w: %v", common.ErrStoreUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w: %v", common.ErrStoreUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("plant %q: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) ListOwners(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT owner_id FROM plants ORDER BY owner_id`)
	if err != nil {
		return nil, fmt.Errorf("select owners: %w: %v", common.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, fmt.Errorf("scan owner: %w: %v", common.ErrStoreUnavailable, err)
		}
		owners = append(owners, owner)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owners: %w: %v", common.ErrStoreUnavailable, err)
	}
	return owners, nil
}

const selectColumns = `SELECT id, owner_id, name, species, description, photo_url,
	watering_frequency, health_status, health_status_description,
	last_watered, previous_last_watered, date_of_creation, healthy_since`

func scanPlant(scan func(dest ...any) error) (models.OwnedPlant, error) {
	var (
		rec          models.OwnedPlant
		frequency    int64
		status       string
		prevWatered  sql.NullTime
		healthySince sql.NullTime
	)
	err := scan(
		&rec.ID, &rec.OwnerID,
		&rec.Plant.Name, &rec.Plant.Species, &rec.Plant.Description, &rec.Plant.PhotoURL,
		&frequency, &status, &rec.Plant.HealthStatusDescription,
		&rec.LastWatered, &prevWatered, &rec.DateOfCreation, &healthySince,
	)
	if err != nil {
		return models.OwnedPlant{}, err
	}
	rec.Plant.WateringFrequency = time.Duration(frequency)
	rec.Plant.HealthStatus = models.HealthStatus(status)
	if prevWatered.Valid {
		t := prevWatered.Time
		rec.PreviousLastWatered = &t
	}
	if healthySince.Valid {
		t := healthySince.Time
		rec.HealthySince = &t
	}
	return rec, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
