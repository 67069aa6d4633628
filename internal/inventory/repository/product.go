package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Supplier tags
const (
	SupplierLeica      = "LEICA"
	SupplierThirdParty = "THIRD_PARTY"
)

// Product represents a catalog product identified by its product code
type Product struct {
	ID           string    `db:"id" json:"id"`
	ProductCode  string    `db:"product_code" json:"product_code"`
	Name         string    `db:"name" json:"name"`
	Supplier     string    `db:"supplier" json:"supplier"`
	Threshold    int       `db:"threshold" json:"threshold"`
	LeadTimeDays int       `db:"lead_time_days" json:"lead_time_days"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProductStockSummary pairs a product with the stock aggregated over its lots
type ProductStockSummary struct {
	Product
	TotalStock     decimal.Decimal `db:"total_stock" json:"total_stock"`
	RemainingParts int             `db:"remaining_parts" json:"remaining_parts"`
}

// ProductRepository handles product persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, product_code, name, supplier, threshold, lead_time_days)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		product.ID, product.ProductCode, product.Name, product.Supplier,
		product.Threshold, product.LeadTimeDays,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// GetByCode gets a product by its exact product code, case-insensitively
func (r *ProductRepository) GetByCode(ctx context.Context, code string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE LOWER(product_code) = LOWER($1)`
	if err := r.db.GetContext(ctx, &product, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ProductNotFound(code)
		}
		return nil, err
	}
	return &product, nil
}

// List lists all products ordered by name
func (r *ProductRepository) List(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT * FROM products ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Update updates a product
func (r *ProductRepository) Update(ctx context.Context, product *Product) error {
	query := `
		UPDATE products SET
			name = $2, supplier = $3, threshold = $4, lead_time_days = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Supplier, product.Threshold, product.LeadTimeDays,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}

// Delete deletes a product and, by cascade, its lots
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.NotFound("product")
	}

	return nil
}

// TotalStock sums current stock across all lots of a product
func (r *ProductRepository) TotalStock(ctx context.Context, productID string) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	query := `SELECT SUM(current_stock) FROM lots WHERE product_id = $1`
	if err := r.db.GetContext(ctx, &total, query, productID); err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ListLowStock lists products whose total stock is below their reorder
// threshold and for which no purchase order is outstanding. The pending-order
// check suppresses repeat reorder alerts while a delivery is in flight.
func (r *ProductRepository) ListLowStock(ctx context.Context) ([]*ProductStockSummary, error) {
	var products []*ProductStockSummary
	query := `
		SELECT p.*,
			COALESCE(SUM(l.current_stock), 0) AS total_stock,
			COALESCE(SUM(l.accumulated_partial), 0) AS remaining_parts
		FROM products p
		LEFT JOIN lots l ON l.product_id = p.id
		WHERE NOT EXISTS (
			SELECT 1 FROM purchase_orders po
			WHERE po.product_code = p.product_code
			AND po.status IN ('Ordered', 'Delayed')
		)
		GROUP BY p.id
		HAVING COALESCE(SUM(l.current_stock), 0) < p.threshold
		ORDER BY p.name
	`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// ListWithZeroThreshold lists products whose reorder threshold was never set
func (r *ProductRepository) ListWithZeroThreshold(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT * FROM products WHERE threshold = 0 ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// DuplicateNames finds product names that collide after trimming whitespace
// and lowercasing, across distinct raw spellings. A data-hygiene signal, not
// an error.
func (r *ProductRepository) DuplicateNames(ctx context.Context) ([]string, error) {
	var names []string
	query := `
		SELECT MIN(name) FROM products
		GROUP BY LOWER(TRIM(name))
		HAVING COUNT(DISTINCT name) > 1
		ORDER BY MIN(name)
	`
	if err := r.db.SelectContext(ctx, &names, query); err != nil {
		return nil, err
	}
	return names, nil
}
