package repository_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/config"
	"github.com/stockflow/stockflow-backend/pkg/errors"
	"github.com/stockflow/stockflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitParts(t *testing.T) {
	tests := []struct {
		name          string
		partial       int
		parts         int
		unitsPer      int
		wantWhole     int
		wantRemainder int
	}{
		{"no rollover", 0, 3, 10, 0, 3},
		{"exact rollover", 7, 3, 10, 1, 0},
		{"rollover with remainder", 7, 5, 10, 1, 2},
		{"multiple rollovers", 0, 25, 10, 2, 5},
		{"single-part units", 0, 4, 1, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole, remainder := repository.SplitParts(tt.partial, tt.parts, tt.unitsPer)
			assert.Equal(t, tt.wantWhole, whole)
			assert.Equal(t, tt.wantRemainder, remainder)
		})
	}
}

// Splitting N parts across any sequence of calls must decrement the same
// number of whole items and leave the same remainder as one big call.
func TestSplitParts_CarryAssociativity(t *testing.T) {
	const unitsPer = 12
	splits := [][]int{
		{37},
		{10, 27},
		{1, 1, 35},
		{12, 12, 12, 1},
		{5, 5, 5, 5, 5, 5, 5, 2},
	}

	for _, seq := range splits {
		partial := 0
		totalWhole := 0
		totalParts := 0
		for _, parts := range seq {
			whole, remainder := repository.SplitParts(partial, parts, unitsPer)
			partial = remainder
			totalWhole += whole
			totalParts += parts
		}

		require.Equal(t, 37, totalParts)
		assert.Equal(t, 37/unitsPer, totalWhole, "splits %v", seq)
		assert.Equal(t, 37%unitsPer, partial, "splits %v", seq)
	}
}

func TestLotRepository_ApplyPartWithdrawal(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	// Lot had 7 parts accumulated; 5 more roll one whole item over.
	mockDB.ExpectQuery("UPDATE lots SET").
		WithArgs("lot-1", 5).
		WillReturnRows(testutil.MockRows("current_stock", "accumulated_partial", "units_per_quantity").
			AddRow("9", 2, 10))

	res, err := repo.ApplyPartWithdrawal(context.Background(), mockDB.DB, "lot-1", 5, config.StockPolicyAllow)
	require.NoError(t, err)
	assert.Equal(t, 1, res.WholeItemsWithdrawn)
	assert.Equal(t, 2, res.RemainingPartial)
	assert.True(t, res.CurrentStock.Equal(decimal.NewFromInt(9)))

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_ApplyPartWithdrawal_NoRollover(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE lots SET").
		WithArgs("lot-1", 3).
		WillReturnRows(testutil.MockRows("current_stock", "accumulated_partial", "units_per_quantity").
			AddRow("10", 3, 10))

	res, err := repo.ApplyPartWithdrawal(context.Background(), mockDB.DB, "lot-1", 3, config.StockPolicyAllow)
	require.NoError(t, err)
	assert.Equal(t, 0, res.WholeItemsWithdrawn)
	assert.Equal(t, 3, res.RemainingPartial)

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_WithdrawStock_RejectInsufficient(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE lots SET").
		WithArgs("lot-1", decimal.NewFromInt(5)).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs("lot-1").
		WillReturnRows(testutil.MockRows("exists").AddRow(true))

	_, err := repo.WithdrawStock(context.Background(), mockDB.DB, "lot-1", decimal.NewFromInt(5), config.StockPolicyReject)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_WithdrawStock_RejectMissingLot(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("UPDATE lots SET").
		WithArgs("lot-x", decimal.NewFromInt(5)).
		WillReturnError(sql.ErrNoRows)
	mockDB.ExpectQuery("SELECT EXISTS").
		WithArgs("lot-x").
		WillReturnRows(testutil.MockRows("exists").AddRow(false))

	_, err := repo.WithdrawStock(context.Background(), mockDB.DB, "lot-x", decimal.NewFromInt(5), config.StockPolicyReject)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_GetOrCreate(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.Mock.ExpectQuery("INSERT INTO lots").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "product_id", "lot_number", "expiry_date", "current_stock",
			"units_per_quantity", "accumulated_partial", "product_feature", "location_id",
			"created_at", "updated_at",
		}).AddRow("lot-1", "prod-1", "LOT42", nil, "12.00", 10, 0, "unit", nil, testTime, testTime))

	lot := &repository.Lot{ProductID: "prod-1", LotNumber: "LOT42"}
	err := repo.GetOrCreate(context.Background(), mockDB.DB, lot)
	require.NoError(t, err)

	// The existing row wins over the candidate values.
	assert.Equal(t, "lot-1", lot.ID)
	assert.True(t, lot.CurrentStock.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, 10, lot.UnitsPerQuantity)

	mockDB.ExpectationsWereMet(t)
}

func TestLotRepository_FindForWithdrawal_NotFound(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	defer mockDB.Close()

	repo := repository.NewLotRepository(mockDB.DB)

	mockDB.ExpectQuery("SELECT * FROM lots WHERE product_id = $1").
		WithArgs("prod-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindForWithdrawal(context.Background(), "prod-1", "", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	mockDB.ExpectationsWereMet(t)
}
