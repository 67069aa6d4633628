package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/pkg/database"
)

// Withdrawal types
const (
	WithdrawalTypeUnit    = "unit"
	WithdrawalTypeVolume  = "volume"
	WithdrawalTypePart    = "part"
	WithdrawalTypeDiscard = "lot_discard"
)

// Withdrawal is an append-only ledger entry for stock leaving a lot. Product
// and lot identity are snapshotted at write time so history survives lot
// deletion; the lot reference itself is nulled on cascade.
type Withdrawal struct {
	ID              string          `db:"id" json:"id"`
	LotID           *string         `db:"lot_id" json:"lot_id,omitempty"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	WithdrawalType  string          `db:"withdrawal_type" json:"withdrawal_type"`
	PartsWithdrawn  int             `db:"parts_withdrawn" json:"parts_withdrawn"`
	Barcode         *string         `db:"barcode" json:"barcode,omitempty"`
	LocationID      *string         `db:"location_id" json:"location_id,omitempty"`
	PerformedBy     *string         `db:"performed_by" json:"performed_by,omitempty"`
	PerformedByName *string         `db:"performed_by_name" json:"performed_by_name,omitempty"`
	ProductCode     string          `db:"product_code" json:"product_code"`
	ProductName     string          `db:"product_name" json:"product_name"`
	LotNumber       string          `db:"lot_number" json:"lot_number"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// StockRegistration is an append-only ledger entry for stock entering a lot
type StockRegistration struct {
	ID              string          `db:"id" json:"id"`
	LotID           *string         `db:"lot_id" json:"lot_id,omitempty"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	Barcode         *string         `db:"barcode" json:"barcode,omitempty"`
	DeliveryAt      *time.Time      `db:"delivery_at" json:"delivery_at,omitempty"`
	LocationID      *string         `db:"location_id" json:"location_id,omitempty"`
	PerformedBy     *string         `db:"performed_by" json:"performed_by,omitempty"`
	PerformedByName *string         `db:"performed_by_name" json:"performed_by_name,omitempty"`
	ProductCode     string          `db:"product_code" json:"product_code"`
	ProductName     string          `db:"product_name" json:"product_name"`
	LotNumber       string          `db:"lot_number" json:"lot_number"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// LedgerRepository handles the append-only withdrawal and registration logs
type LedgerRepository struct {
	db *database.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *database.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CreateWithdrawal appends a withdrawal entry
func (r *LedgerRepository) CreateWithdrawal(ctx context.Context, q sqlx.ExtContext, w *Withdrawal) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}

	query := `
		INSERT INTO withdrawals (
			id, lot_id, quantity, withdrawal_type, parts_withdrawn, barcode,
			location_id, performed_by, performed_by_name,
			product_code, product_name, lot_number, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	return q.QueryRowxContext(ctx, query,
		w.ID, w.LotID, w.Quantity, w.WithdrawalType, w.PartsWithdrawn, w.Barcode,
		w.LocationID, w.PerformedBy, w.PerformedByName,
		w.ProductCode, w.ProductName, w.LotNumber, w.ExpiryDate,
	).Scan(&w.CreatedAt)
}

// ListWithdrawals lists the most recent withdrawals
func (r *LedgerRepository) ListWithdrawals(ctx context.Context, limit int) ([]*Withdrawal, error) {
	var withdrawals []*Withdrawal
	query := `SELECT * FROM withdrawals ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &withdrawals, query, limit); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// ListWithdrawalsByProduct lists withdrawals snapshotted for a product code
func (r *LedgerRepository) ListWithdrawalsByProduct(ctx context.Context, productCode string, limit int) ([]*Withdrawal, error) {
	var withdrawals []*Withdrawal
	query := `
		SELECT * FROM withdrawals
		WHERE product_code = $1
		ORDER BY created_at DESC LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &withdrawals, query, productCode, limit); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

// CreateRegistration appends a stock registration entry
func (r *LedgerRepository) CreateRegistration(ctx context.Context, q sqlx.ExtContext, reg *StockRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stock_registrations (
			id, lot_id, quantity, barcode, delivery_at, location_id,
			performed_by, performed_by_name,
			product_code, product_name, lot_number, expiry_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	return q.QueryRowxContext(ctx, query,
		reg.ID, reg.LotID, reg.Quantity, reg.Barcode, reg.DeliveryAt, reg.LocationID,
		reg.PerformedBy, reg.PerformedByName,
		reg.ProductCode, reg.ProductName, reg.LotNumber, reg.ExpiryDate,
	).Scan(&reg.CreatedAt)
}

// ListRegistrations lists the most recent stock registrations
func (r *LedgerRepository) ListRegistrations(ctx context.Context, limit int) ([]*StockRegistration, error) {
	var registrations []*StockRegistration
	query := `SELECT * FROM stock_registrations ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &registrations, query, limit); err != nil {
		return nil, err
	}
	return registrations, nil
}
