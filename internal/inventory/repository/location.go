package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// DefaultLocationName is the singleton location lots fall back to when none
// is assigned.
const DefaultLocationName = "Central"

// Location is a flat storage tag, not a ledger dimension
type Location struct {
	ID        string `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	IsDefault bool   `db:"is_default" json:"is_default"`
}

// LocationRepository handles location persistence
type LocationRepository struct {
	db *database.DB
}

// NewLocationRepository creates a new location repository
func NewLocationRepository(db *database.DB) *LocationRepository {
	return &LocationRepository{db: db}
}

// GetDefault returns the default location, creating it if missing
func (r *LocationRepository) GetDefault(ctx context.Context) (*Location, error) {
	var loc Location
	query := `
		INSERT INTO locations (id, name, is_default)
		VALUES ($1, $2, true)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, is_default
	`
	row := r.db.QueryRowxContext(ctx, query, uuid.New().String(), DefaultLocationName)
	if err := row.StructScan(&loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, loc *Location) error {
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}

	query := `INSERT INTO locations (id, name, is_default) VALUES ($1, $2, $3)`
	_, err := r.db.ExecContext(ctx, query, loc.ID, loc.Name, loc.IsDefault)
	return err
}

// GetByID gets a location by ID
func (r *LocationRepository) GetByID(ctx context.Context, id string) (*Location, error) {
	var loc Location
	query := `SELECT * FROM locations WHERE id = $1`
	if err := r.db.GetContext(ctx, &loc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("location")
		}
		return nil, err
	}
	return &loc, nil
}

// List lists all locations ordered by name
func (r *LocationRepository) List(ctx context.Context) ([]*Location, error) {
	var locations []*Location
	query := `SELECT * FROM locations ORDER BY name`
	if err := r.db.SelectContext(ctx, &locations, query); err != nil {
		return nil, err
	}
	return locations, nil
}

// Delete removes a location; lots referencing it fall back to null
func (r *LocationRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM locations WHERE id = $1 AND is_default = false`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("location")
	}

	return nil
}
