package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// CodeMapping links legacy product codes and raw barcodes to a product, for
// labels whose printed code never matched the catalog
type CodeMapping struct {
	ID             string    `db:"id" json:"id"`
	ProductID      *string   `db:"product_id" json:"product_id,omitempty"`
	NewProductCode string    `db:"new_product_code" json:"new_product_code"`
	OldProductCode string    `db:"old_product_code" json:"old_product_code"`
	Barcode        string    `db:"barcode" json:"barcode"`
	Notes          string    `db:"notes" json:"notes"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// MappingRepository handles product code mapping persistence
type MappingRepository struct {
	db *database.DB
}

// NewMappingRepository creates a new mapping repository
func NewMappingRepository(db *database.DB) *MappingRepository {
	return &MappingRepository{db: db}
}

// Create creates a new code mapping
func (r *MappingRepository) Create(ctx context.Context, m *CodeMapping) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}

	query := `
		INSERT INTO product_code_mappings (
			id, product_id, new_product_code, old_product_code, barcode, notes
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		m.ID, m.ProductID, m.NewProductCode, m.OldProductCode, m.Barcode, m.Notes,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
}

// Update updates a code mapping
func (r *MappingRepository) Update(ctx context.Context, m *CodeMapping) error {
	query := `
		UPDATE product_code_mappings SET
			product_id = $2, new_product_code = $3, old_product_code = $4,
			barcode = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		m.ID, m.ProductID, m.NewProductCode, m.OldProductCode, m.Barcode, m.Notes,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("code mapping")
	}

	return nil
}

// List lists code mappings, most recently updated first
func (r *MappingRepository) List(ctx context.Context) ([]*CodeMapping, error) {
	var mappings []*CodeMapping
	query := `SELECT * FROM product_code_mappings ORDER BY updated_at DESC, created_at DESC`
	if err := r.db.SelectContext(ctx, &mappings, query); err != nil {
		return nil, err
	}
	return mappings, nil
}

// ResolveProductID resolves a scanned value to a mapped product, matching
// the raw barcode or either code, case-insensitively. Returns empty when no
// mapping applies.
func (r *MappingRepository) ResolveProductID(ctx context.Context, value string) (string, error) {
	var productID string
	query := `
		SELECT product_id FROM product_code_mappings
		WHERE product_id IS NOT NULL
		AND (
			LOWER(barcode) = LOWER($1)
			OR LOWER(new_product_code) = LOWER($1)
			OR LOWER(old_product_code) = LOWER($1)
		)
		ORDER BY updated_at DESC LIMIT 1
	`
	if err := r.db.GetContext(ctx, &productID, query, value); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return productID, nil
}

// Delete removes a code mapping
func (r *MappingRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM product_code_mappings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("code mapping")
	}

	return nil
}
