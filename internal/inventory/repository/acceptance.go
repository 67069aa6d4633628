package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/stockflow/stockflow-backend/pkg/database"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// AcceptanceTest records a quality sign-off for a lot
type AcceptanceTest struct {
	ID            string     `db:"id" json:"id"`
	LotID         string     `db:"lot_id" json:"lot_id"`
	Tested        bool       `db:"tested" json:"tested"`
	Passed        bool       `db:"passed" json:"passed"`
	SignedOffBy   *string    `db:"signed_off_by" json:"signed_off_by,omitempty"`
	SignedOffAt   *time.Time `db:"signed_off_at" json:"signed_off_at,omitempty"`
	TestReference *string    `db:"test_reference" json:"test_reference,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AcceptanceRepository handles lot acceptance test persistence
type AcceptanceRepository struct {
	db *database.DB
}

// NewAcceptanceRepository creates a new acceptance test repository
func NewAcceptanceRepository(db *database.DB) *AcceptanceRepository {
	return &AcceptanceRepository{db: db}
}

// Create records an acceptance test for a lot
func (r *AcceptanceRepository) Create(ctx context.Context, test *AcceptanceTest) error {
	if test.ID == "" {
		test.ID = uuid.New().String()
	}

	query := `
		INSERT INTO lot_acceptance_tests (
			id, lot_id, tested, passed, signed_off_by, signed_off_at, test_reference
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	return r.db.QueryRowxContext(ctx, query,
		test.ID, test.LotID, test.Tested, test.Passed,
		test.SignedOffBy, test.SignedOffAt, test.TestReference,
	).Scan(&test.CreatedAt, &test.UpdatedAt)
}

// GetLatestByLot returns the most recent acceptance test for a lot
func (r *AcceptanceRepository) GetLatestByLot(ctx context.Context, lotID string) (*AcceptanceTest, error) {
	var test AcceptanceTest
	query := `
		SELECT * FROM lot_acceptance_tests
		WHERE lot_id = $1
		ORDER BY created_at DESC LIMIT 1
	`
	if err := r.db.GetContext(ctx, &test, query, lotID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("acceptance test")
		}
		return nil, err
	}
	return &test, nil
}

// ListByLot lists acceptance tests for a lot, newest first
func (r *AcceptanceRepository) ListByLot(ctx context.Context, lotID string) ([]*AcceptanceTest, error) {
	var tests []*AcceptanceTest
	query := `SELECT * FROM lot_acceptance_tests WHERE lot_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &tests, query, lotID); err != nil {
		return nil, err
	}
	return tests, nil
}

// ListUntestedLots lists in-stock lots with no completed acceptance test
func (r *AcceptanceRepository) ListUntestedLots(ctx context.Context) ([]*LotWithProduct, error) {
	var lots []*LotWithProduct
	query := `
		SELECT l.*, p.product_code, p.name AS product_name, p.threshold
		FROM lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.current_stock > 0
		AND NOT EXISTS (
			SELECT 1 FROM lot_acceptance_tests t
			WHERE t.lot_id = l.id AND t.tested = true
		)
		ORDER BY p.name, l.lot_number
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}

// ListFailedLots lists in-stock lots with a tested-and-failed acceptance
// record
func (r *AcceptanceRepository) ListFailedLots(ctx context.Context) ([]*LotWithProduct, error) {
	var lots []*LotWithProduct
	query := `
		SELECT l.*, p.product_code, p.name AS product_name, p.threshold
		FROM lots l
		JOIN products p ON p.id = l.product_id
		WHERE l.current_stock > 0
		AND EXISTS (
			SELECT 1 FROM lot_acceptance_tests t
			WHERE t.lot_id = l.id AND t.tested = true AND t.passed = false
		)
		ORDER BY p.name, l.lot_number
	`
	if err := r.db.SelectContext(ctx, &lots, query); err != nil {
		return nil, err
	}
	return lots, nil
}
