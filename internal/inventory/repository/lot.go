package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// Product features
const (
	FeatureUnit   = "unit"
	FeatureVolume = "volume"
)

// Lot represents a tracked batch of a product. Its identity is the
// (product, lot number, expiry date) triple; receipts against the same triple
// credit the same row.
type Lot struct {
	ID                 string          `db:"id" json:"id"`
	ProductID          string          `db:"product_id" json:"product_id"`
	LotNumber          string          `db:"lot_number" json:"lot_number"`
	ExpiryDate         *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	CurrentStock       decimal.Decimal `db:"current_stock" json:"current_stock"`
	UnitsPerQuantity   int             `db:"units_per_quantity" json:"units_per_quantity"`
	AccumulatedPartial int             `db:"accumulated_partial" json:"accumulated_partial"`
	ProductFeature     string          `db:"product_feature" json:"product_feature"`
	LocationID         *string         `db:"location_id" json:"location_id,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// LotWithProduct joins a lot with its product's identity fields
type LotWithProduct struct {
	Lot
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
	Threshold   int    `db:"threshold" json:"threshold"`
}

// PartWithdrawalResult reports the state of a lot after a part withdrawal
// was applied, plus the whole-item decrement the carry produced.
type PartWithdrawalResult struct {
	WholeItemsWithdrawn int
	RemainingPartial    int
	CurrentStock        decimal.Decimal
	UnitsPerQuantity    int
}

// SplitParts applies the carry rule: parts accumulate on top of the existing
// partial count and roll over into whole items once per full multiple of
// unitsPer. The returned remainder is always in [0, unitsPer).
func SplitParts(partial, parts, unitsPer int) (whole, remainder int) {
	if unitsPer <= 0 {
		return 0, partial + parts
	}
	total := partial + parts
	return total / unitsPer, total % unitsPer
}

// LotRepository handles lot persistence
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create creates a new lot
func (r *LotRepository) Create(ctx context.Context, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.ProductFeature == "" {
		lot.ProductFeature = FeatureUnit
	}
	if lot.UnitsPerQuantity == 0 {
		lot.UnitsPerQuantity = 1
	}

	query := `
		INSERT INTO lots (
			id, product_id, lot_number, expiry_date, current_stock,
			units_per_quantity, accumulated_partial, product_feature, location_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.LotNumber, lot.ExpiryDate, lot.CurrentStock,
		lot.UnitsPerQuantity, lot.AccumulatedPartial, lot.ProductFeature, lot.LocationID,
	).Scan(&lot.CreatedAt, &lot.UpdatedAt)
}

// GetOrCreate resolves a lot by its (product, lot number, expiry) triple,
// inserting a zero-stock row if none exists. The upsert is a single statement
// so two concurrent receipts of a new triple converge on one row.
func (r *LotRepository) GetOrCreate(ctx context.Context, q sqlx.ExtContext, lot *Lot) error {
	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	if lot.ProductFeature == "" {
		lot.ProductFeature = FeatureUnit
	}
	if lot.UnitsPerQuantity == 0 {
		lot.UnitsPerQuantity = 1
	}

	query := `
		INSERT INTO lots (
			id, product_id, lot_number, expiry_date, current_stock,
			units_per_quantity, accumulated_partial, product_feature, location_id
		) VALUES ($1, $2, $3, $4, 0, $5, 0, $6, $7)
		ON CONFLICT (product_id, lot_number, expiry_date)
		DO UPDATE SET updated_at = NOW()
		RETURNING id, product_id, lot_number, expiry_date, current_stock,
			units_per_quantity, accumulated_partial, product_feature, location_id,
			created_at, updated_at
	`

	row := q.QueryRowxContext(ctx, query,
		lot.ID, lot.ProductID, lot.LotNumber, lot.ExpiryDate,
		lot.UnitsPerQuantity, lot.ProductFeature, lot.LocationID,
	)
	return row.StructScan(lot)
}

// GetByID gets a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1`
	if err := r.db.GetContext(ctx, &lot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.LotNotFound()
		}
		return nil, err
	}
	return &lot, nil
}

// FindForWithdrawal resolves a lot by product plus optional lot number and
// expiry filters. Withdrawals never create lots, so a miss is LotNotFound.
func (r *LotRepository) FindForWithdrawal(ctx context.Context, productID, lotNumber string, expiry *time.Time) (*Lot, error) {
	query := `SELECT * FROM lots WHERE product_id = $1`
	args := []interface{}{productID}

	if lotNumber != "" {
		args = append(args, lotNumber)
		query += ` AND LOWER(lot_number) = LOWER($` + strconv.Itoa(len(args)) + `)`
	}
	if expiry != nil {
		args = append(args, *expiry)
		query += ` AND expiry_date = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY expiry_date ASC NULLS LAST LIMIT 1`

	var lot Lot
	if err := r.db.GetContext(ctx, &lot, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.LotNotFound()
		}
		return nil, err
	}
	return &lot, nil
}

// LatestByProduct returns the lot with the farthest expiry for a product
func (r *LotRepository) LatestByProduct(ctx context.Context, productID string) (*Lot, error) {
	var lot Lot
	query := `
		SELECT * FROM lots WHERE product_id = $1
		ORDER BY expiry_date DESC NULLS LAST LIMIT 1
	`
	if err := r.db.GetContext(ctx, &lot, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.LotNotFound()
		}
		return nil, err
	}
	return &lot, nil
}

// EarliestByProduct returns the lot expiring soonest for a product
func (r *LotRepository) EarliestByProduct(ctx context.Context, productID string) (*Lot, error) {
	var lot Lot
	query := `
		SELECT * FROM lots WHERE product_id = $1
		ORDER BY expiry_date ASC NULLS LAST LIMIT 1
	`
	if err := r.db.GetContext(ctx, &lot, query, productID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.LotNotFound()
		}
		return nil, err
	}
	return &lot, nil
}

// ListByProduct lists lots for a product ordered by expiry
func (r *LotRepository) ListByProduct(ctx context.Context, productID string) ([]*Lot, error) {
	var lots []*Lot
	query := `SELECT * FROM lots WHERE product_id = $1 ORDER BY expiry_date ASC NULLS LAST`
	if err := r.db.SelectContext(ctx, &lots, query, productID); err != nil {
		return nil, err
	}
	return lots, nil
}

// Update updates a lot's descriptive fields. Stock fields are only touched
// through the atomic AddStock/WithdrawStock/ApplyPartWithdrawal operations.
func (r *LotRepository) Update(ctx context.Context, lot *Lot) error {
	query := `
		UPDATE lots SET
			lot_number = $2, expiry_date = $3, units_per_quantity = $4,
			product_feature = $5, location_id = $6, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		lot.ID, lot.LotNumber, lot.ExpiryDate, lot.UnitsPerQuantity,
		lot.ProductFeature, lot.LocationID,
	)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.LotNotFound()
	}

	return nil
}

// Delete removes a lot
func (r *LotRepository) Delete(ctx context.Context, q sqlx.ExtContext, id string) error {
	query := `DELETE FROM lots WHERE id = $1`
	result, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return errors.LotNotFound()
	}

	return nil
}

// AddStock credits a lot's stock by quantity as a single relative update
func (r *LotRepository) AddStock(ctx context.Context, q sqlx.ExtContext, id string, quantity decimal.Decimal) (decimal.Decimal, error) {
	var stock decimal.Decimal
	query := `
		UPDATE lots SET current_stock = current_stock + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING current_stock
	`
	if err := q.QueryRowxContext(ctx, query, id, quantity).Scan(&stock); err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, errors.LotNotFound()
		}
		return decimal.Zero, err
	}
	return stock, nil
}

// WithdrawStock debits a lot's stock by quantity. The decrement is evaluated
// in the database, never read-modify-write in application memory, so
// concurrent withdrawals against the same lot cannot lose updates. The
// policy decides what happens when the debit would drive stock negative.
func (r *LotRepository) WithdrawStock(ctx context.Context, q sqlx.ExtContext, id string, quantity decimal.Decimal, policy string) (decimal.Decimal, error) {
	var query string
	switch policy {
	case config.StockPolicyClamp:
		query = `
			UPDATE lots SET current_stock = GREATEST(current_stock - $2, 0), updated_at = NOW()
			WHERE id = $1
			RETURNING current_stock
		`
	case config.StockPolicyReject:
		query = `
			UPDATE lots SET current_stock = current_stock - $2, updated_at = NOW()
			WHERE id = $1 AND current_stock >= $2
			RETURNING current_stock
		`
	default:
		query = `
			UPDATE lots SET current_stock = current_stock - $2, updated_at = NOW()
			WHERE id = $1
			RETURNING current_stock
		`
	}

	var stock decimal.Decimal
	if err := q.QueryRowxContext(ctx, query, id, quantity).Scan(&stock); err != nil {
		if err == sql.ErrNoRows {
			if policy == config.StockPolicyReject {
				return r.rejectOrNotFound(ctx, q, id)
			}
			return decimal.Zero, errors.LotNotFound()
		}
		return decimal.Zero, err
	}
	return stock, nil
}

// ApplyPartWithdrawal folds parts into a lot's partial counter and debits
// whole items for every full multiple of units_per_quantity, in one
// statement. Integer division and modulo are evaluated by the database
// against the row's current values.
func (r *LotRepository) ApplyPartWithdrawal(ctx context.Context, q sqlx.ExtContext, id string, parts int, policy string) (*PartWithdrawalResult, error) {
	query := `
		UPDATE lots SET
			current_stock = current_stock - (accumulated_partial + $2) / units_per_quantity,
			accumulated_partial = (accumulated_partial + $2) % units_per_quantity,
			updated_at = NOW()
		WHERE id = $1
	`
	if policy == config.StockPolicyReject {
		query += ` AND current_stock >= (accumulated_partial + $2) / units_per_quantity`
	}
	query += ` RETURNING current_stock, accumulated_partial, units_per_quantity`

	var res PartWithdrawalResult
	row := q.QueryRowxContext(ctx, query, id, parts)
	if err := row.Scan(&res.CurrentStock, &res.RemainingPartial, &res.UnitsPerQuantity); err != nil {
		if err == sql.ErrNoRows {
			if policy == config.StockPolicyReject {
				_, rerr := r.rejectOrNotFound(ctx, q, id)
				return nil, rerr
			}
			return nil, errors.LotNotFound()
		}
		return nil, err
	}

	// The statement returns the post-update state; recover the whole-item
	// decrement from the remainder it left behind.
	u := res.UnitsPerQuantity
	prior := (res.RemainingPartial - parts) % u
	if prior < 0 {
		prior += u
	}
	res.WholeItemsWithdrawn, _ = SplitParts(prior, parts, u)
	return &res, nil
}

// rejectOrNotFound disambiguates a zero-row reject-policy update: the lot is
// either missing or has insufficient stock.
func (r *LotRepository) rejectOrNotFound(ctx context.Context, q sqlx.ExtContext, id string) (decimal.Decimal, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM lots WHERE id = $1)`, id); err != nil {
		return decimal.Zero, err
	}
	if exists {
		return decimal.Zero, errors.InsufficientStock()
	}
	return decimal.Zero, errors.LotNotFound()
}

// ListExpired lists lots whose expiry date has passed, soonest first
func (r *LotRepository) ListExpired(ctx context.Context) ([]*LotWithProduct, error) {
	var lots []*LotWithProduct
	query := `
		SELECT l.*, p.product_code, p.name AS product_name, p.threshold
		FROM lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.expiry_date IS NOT NULL AND l.expiry_date <= CURRENT_DATE
		ORDER BY l.expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListExpiring lists lots expiring within the next withinDays days,
// excluding ones already expired
func (r *LotRepository) ListExpiring(ctx context.Context, withinDays int) ([]*LotWithProduct, error) {
	var lots []*LotWithProduct
	query := `
		SELECT l.*, p.product_code, p.name AS product_name, p.threshold
		FROM lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.expiry_date IS NOT NULL
		AND l.expiry_date > CURRENT_DATE
		AND l.expiry_date <= CURRENT_DATE + $1
		ORDER BY l.expiry_date
	`
	if err := r.db.SelectContext(ctx, &lots, query, withinDays); err != nil {
		return nil, err
	}
	return lots, nil
}
